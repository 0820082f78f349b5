package mqtt

import (
	"fmt"
	"strings"
)

// ValidateTopic checks a topic name or filter.
//
// Wildcards are only legal in subscription filters: "+" must fill a whole
// level and "#" must be the last level.
func ValidateTopic(topic string, allowWildcards bool) error {
	if topic == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTopic)
	}
	if strings.ContainsRune(topic, 0) {
		return fmt.Errorf("%w: contains NUL", ErrInvalidTopic)
	}

	levels := strings.Split(topic, "/")
	for i, level := range levels {
		if !strings.ContainsAny(level, "+#") {
			continue
		}
		if !allowWildcards {
			return fmt.Errorf("%w: wildcard in %q", ErrInvalidTopic, topic)
		}
		switch {
		case level == "+":
		case level == "#" && i == len(levels)-1:
		default:
			return fmt.Errorf("%w: misplaced wildcard in %q", ErrInvalidTopic, topic)
		}
	}
	return nil
}

// MatchTopic reports whether topic matches the subscription filter.
func MatchTopic(filter, topic string) bool {
	fl := strings.Split(filter, "/")
	tl := strings.Split(topic, "/")

	for i, f := range fl {
		if f == "#" {
			return true
		}
		if i >= len(tl) {
			return false
		}
		if f != "+" && f != tl[i] {
			return false
		}
	}
	return len(fl) == len(tl)
}
