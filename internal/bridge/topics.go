package bridge

import "github.com/nerrad567/estufa-core/internal/device"

// Inbound topics. These strings are fixed by the field device firmware.
const (
	TopicTemperature  = "estufa/temperatura"
	TopicAirHumidity  = "estufa/umidade/ar"
	TopicSoilHumidity = "estufa/umidade/solo/+"
	TopicSoilFilter   = "estufa/umidade/solo/#"
	TopicCamera       = "estufa/camera/imagem"
	TopicAlert        = "estufa/alerta"
)

// subscribeQoS is the QoS requested for every inbound subscription.
const subscribeQoS byte = 1

// Subscription is one entry of the inbound topic table.
type Subscription struct {
	Topic string
	QoS   byte
}

// InboundTopics returns the subscriptions made after every connect.
// Command topics are publish-only and not subscribed.
func InboundTopics() []Subscription {
	subs := []Subscription{
		{Topic: TopicTemperature, QoS: subscribeQoS},
		{Topic: TopicAirHumidity, QoS: subscribeQoS},
		{Topic: TopicSoilFilter, QoS: subscribeQoS},
		{Topic: TopicCamera, QoS: subscribeQoS},
	}
	for _, c := range device.Classes() {
		subs = append(subs, Subscription{Topic: c.StatusTopic(), QoS: subscribeQoS})
	}
	return append(subs, Subscription{Topic: TopicAlert, QoS: subscribeQoS})
}
