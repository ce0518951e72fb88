package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTOptions locate the broker events are published to.
type MQTTOptions struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
}

// publisher is the part of mqtt.Client the sink uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTSink publishes every event as JSON to <topic>/<kind>.
type MQTTSink struct {
	client publisher
	topic  string
	logger *log.Logger
}

func NewMQTTSink(o MQTTOptions, logger *log.Logger) (*MQTTSink, error) {
	if logger == nil {
		logger = log.Default()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}
	opts.SetKeepAlive(30 * time.Second)
	opts.SetAutoReconnect(true)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "broker", o.Broker, "err", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout", o.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", o.Broker, err)
	}
	logger.Info("mqtt connected", "broker", o.Broker, "topic", o.Topic)
	return newMQTTSink(client, o.Topic, logger), nil
}

func newMQTTSink(client publisher, topic string, logger *log.Logger) *MQTTSink {
	return &MQTTSink{client: client, topic: strings.TrimSuffix(topic, "/"), logger: logger}
}

// Emit publishes without waiting for the broker; failures are logged when they arrive.
func (s *MQTTSink) Emit(e Event) {
	payload, err := encode(e)
	if err != nil {
		s.logger.Warn("encode stats event", "kind", e.Kind(), "err", err)
		return
	}
	topic := s.topic + "/" + e.Kind()
	token := s.client.Publish(topic, 0, false, payload)
	go func() {
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			s.logger.Warn("mqtt publish failed", "topic", topic, "err", token.Error())
		}
	}()
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
