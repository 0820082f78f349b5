package mqtt

import (
	"errors"
	"testing"
)

func TestValidateTopic(t *testing.T) {
	tests := []struct {
		topic     string
		wildcards bool
		wantErr   bool
	}{
		{"estufa/temperatura", false, false},
		{"estufa/umidade/solo/7", false, false},
		{"", false, true},
		{"estufa/umidade/solo/#", true, false},
		{"estufa/+/status", true, false},
		{"estufa/umidade/solo/#", false, true},
		{"estufa/#/solo", true, true},
		{"estufa/umi+dade", true, true},
		{"estufa/temp#", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			err := ValidateTopic(tt.topic, tt.wildcards)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTopic(%q, %v) error = %v, wantErr %v", tt.topic, tt.wildcards, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTopic) {
				t.Errorf("ValidateTopic() error = %v, want ErrInvalidTopic", err)
			}
		})
	}
}

func TestMatchTopic(t *testing.T) {
	tests := []struct {
		filter string
		topic  string
		want   bool
	}{
		{"estufa/temperatura", "estufa/temperatura", true},
		{"estufa/temperatura", "estufa/umidade/ar", false},
		{"estufa/umidade/solo/#", "estufa/umidade/solo/7", true},
		{"estufa/umidade/solo/#", "estufa/umidade/solo/7/extra", true},
		{"estufa/umidade/solo/#", "estufa/umidade/solo", true},
		{"estufa/umidade/solo/+", "estufa/umidade/solo/7", true},
		{"estufa/umidade/solo/+", "estufa/umidade/solo/7/extra", false},
		{"estufa/umidade/solo/+", "estufa/umidade/solo", false},
		{"estufa/+/status", "estufa/irrigacao/status", true},
		{"#", "estufa/alerta", true},
	}

	for _, tt := range tests {
		t.Run(tt.filter+"|"+tt.topic, func(t *testing.T) {
			if got := MatchTopic(tt.filter, tt.topic); got != tt.want {
				t.Errorf("MatchTopic(%q, %q) = %v, want %v", tt.filter, tt.topic, got, tt.want)
			}
		})
	}
}
