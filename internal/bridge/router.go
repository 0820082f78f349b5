package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nerrad567/estufa-core/internal/device"
	"github.com/nerrad567/estufa-core/internal/infrastructure/mqtt"
)

// soilPrefix is the soil humidity topic without its session segment.
const soilPrefix = "estufa/umidade/solo/"

// Kind identifies what an inbound message carries.
type Kind int

// Route kinds.
const (
	KindTemperature Kind = iota + 1
	KindAirHumidity
	KindSoilHumidity
	KindImage
	KindDeviceStatus
	KindAlert
)

func (k Kind) String() string {
	switch k {
	case KindTemperature:
		return "temperature"
	case KindAirHumidity:
		return "air_humidity"
	case KindSoilHumidity:
		return "soil_humidity"
	case KindImage:
		return "image"
	case KindDeviceStatus:
		return "device_status"
	case KindAlert:
		return "alert"
	default:
		return "unknown"
	}
}

// Route is a resolved inbound topic.
type Route struct {
	Kind Kind

	// Class is set for KindDeviceStatus.
	Class device.Class

	// SessionID is set for KindSoilHumidity from the topic's last segment.
	SessionID int64
}

// Message is a decoded payload. Only the fields of its route's kind are set.
type Message struct {
	Route Route

	// Value is the reading for temperature and humidity routes.
	Value float64

	// Image is the base64 camera frame, decoded later by the ingestor.
	Image string

	// Status and StatusSession come from device status reports.
	Status        string
	StatusSession *int64

	// AlertMessage and AlertLevel are nil when absent from the payload.
	AlertMessage *string
	AlertLevel   *string
}

// Router resolves topics against the fixed inbound table.
type Router struct {
	exact map[string]Route
}

// NewRouter builds the inbound routing table.
func NewRouter() *Router {
	exact := map[string]Route{
		TopicTemperature: {Kind: KindTemperature},
		TopicAirHumidity: {Kind: KindAirHumidity},
		TopicCamera:      {Kind: KindImage},
		TopicAlert:       {Kind: KindAlert},
	}
	for _, c := range device.Classes() {
		exact[c.StatusTopic()] = Route{Kind: KindDeviceStatus, Class: c}
	}
	return &Router{exact: exact}
}

// Resolve maps topic to its route.
//
// Soil humidity topics must end in exactly one integer segment; anything
// else under that prefix is ErrMalformedTopic. Topics outside the table are
// ErrUnknownTopic.
func (r *Router) Resolve(topic string) (Route, error) {
	if route, ok := r.exact[topic]; ok {
		return route, nil
	}

	if segment, ok := strings.CutPrefix(topic, soilPrefix); ok {
		if !mqtt.MatchTopic(TopicSoilHumidity, topic) {
			return Route{}, fmt.Errorf("%w: %q", ErrMalformedTopic, topic)
		}
		id, err := strconv.ParseInt(segment, 10, 64)
		if err != nil {
			return Route{}, fmt.Errorf("%w: session segment %q of %q", ErrMalformedTopic, segment, topic)
		}
		return Route{Kind: KindSoilHumidity, SessionID: id}, nil
	}

	return Route{}, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
}

// Payload shapes, one per kind. Pointers tell absent from zero.
type (
	temperaturePayload struct {
		Temperature *number `json:"temperatura"`
	}
	airHumidityPayload struct {
		Humidity *number `json:"umidade_ar"`
	}
	soilHumidityPayload struct {
		Humidity *number `json:"umidade"`
	}
	imagePayload struct {
		Image *string `json:"imagem"`
	}
	statusPayload struct {
		Status    statusText `json:"status"`
		SessionID *number    `json:"sessao_id"`
	}
	alertPayload struct {
		Message *string `json:"mensagem"`
		Level   *string `json:"nivel"`
	}
)

// number accepts a JSON number or a numeric string. Some controllers
// serialise readings as strings.
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		*n = number(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = number(v)
	return nil
}

// statusText accepts a JSON string, number or bool. Controllers report
// state as "ligado", 1 or true depending on firmware. false, 0 and null
// decode to "" and leave the stored state alone.
type statusText string

func (s *statusText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*s = ""
	case string:
		*s = statusText(x)
	case bool:
		if x {
			*s = "true"
		} else {
			*s = ""
		}
	case float64:
		if x == 0 {
			*s = ""
		} else {
			*s = statusText(strconv.FormatFloat(x, 'f', -1, 64))
		}
	default:
		return fmt.Errorf("status must be a string, number or bool, got %s", data)
	}
	return nil
}

// sessionID converts a decoded sessao_id, rejecting fractions and values
// outside int64.
func sessionID(n number) (int64, error) {
	v := float64(n)
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, fmt.Errorf("%w: sessao_id %v is not an integer", ErrInvalidPayload, v)
	}
	if v < math.MinInt64 || v >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: sessao_id %v out of range", ErrInvalidPayload, v)
	}
	return int64(v), nil
}

// Decode parses payload for route. The payload must be a JSON object.
func (r *Router) Decode(route Route, payload []byte) (Message, error) {
	msg := Message{Route: route}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil || obj == nil {
		return msg, fmt.Errorf("%w: not a JSON object", ErrInvalidPayload)
	}

	switch route.Kind {
	case KindTemperature:
		var p temperaturePayload
		if err := decodeInto(payload, &p); err != nil {
			return msg, err
		}
		if p.Temperature == nil {
			return msg, missingField("temperatura")
		}
		msg.Value = float64(*p.Temperature)

	case KindAirHumidity:
		var p airHumidityPayload
		if err := decodeInto(payload, &p); err != nil {
			return msg, err
		}
		if p.Humidity == nil {
			return msg, missingField("umidade_ar")
		}
		msg.Value = float64(*p.Humidity)

	case KindSoilHumidity:
		var p soilHumidityPayload
		if err := decodeInto(payload, &p); err != nil {
			return msg, err
		}
		if p.Humidity == nil {
			return msg, missingField("umidade")
		}
		msg.Value = float64(*p.Humidity)

	case KindImage:
		var p imagePayload
		if err := decodeInto(payload, &p); err != nil {
			return msg, err
		}
		if p.Image == nil || *p.Image == "" {
			return msg, missingField("imagem")
		}
		msg.Image = *p.Image

	case KindDeviceStatus:
		var p statusPayload
		if err := decodeInto(payload, &p); err != nil {
			return msg, err
		}
		msg.Status = string(p.Status)
		if p.SessionID != nil {
			id, err := sessionID(*p.SessionID)
			if err != nil {
				return msg, err
			}
			msg.StatusSession = &id
		}

	case KindAlert:
		var p alertPayload
		if err := decodeInto(payload, &p); err != nil {
			return msg, err
		}
		msg.AlertMessage = p.Message
		msg.AlertLevel = p.Level

	default:
		return msg, fmt.Errorf("%w: no decoder for %s", ErrInvalidPayload, route.Kind)
	}
	return msg, nil
}

func decodeInto(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}

func missingField(name string) error {
	return fmt.Errorf("%w: missing %q", ErrInvalidPayload, name)
}
