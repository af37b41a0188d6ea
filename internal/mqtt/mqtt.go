package mqtt

import (
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Config carries the broker connection parameters from the settings file.
type Config struct {
	Broker   string
	Port     int
	Username string
	Password string
	Topic    string // base topic, replies go here
	ClientID string
}

// Publisher mirrors the bridge's conversation onto MQTT for smart-home
// integrations: assistant replies on the base topic, session state on
// <topic>/state, and an availability topic with a birth/will pair so
// subscribers can tell when the bridge goes away.
type Publisher struct {
	client paho.Client
	topic  string
}

func brokerURL(cfg Config) string {
	return fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port)
}

func availabilityTopic(base string) string { return base + "/availability" }
func stateTopic(base string) string        { return base + "/state" }
func transcriptTopic(base string) string   { return base + "/transcript" }

// Connect dials the broker. The caller treats failure as non-fatal: the
// bridge keeps working without MQTT.
func Connect(cfg Config) (*Publisher, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "emo-bridge"
	}

	opts := paho.NewClientOptions().
		AddBroker(brokerURL(cfg)).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetWill(availabilityTopic(cfg.Topic), "offline", 1, true).
		SetOnConnectHandler(func(c paho.Client) {
			c.Publish(availabilityTopic(cfg.Topic), 1, true, "online")
			slog.Info("mqtt connected", "broker", brokerURL(cfg))
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connect %s: timeout", brokerURL(cfg))
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", brokerURL(cfg), err)
	}

	return &Publisher{client: client, topic: cfg.Topic}, nil
}

// PublishReply publishes an assistant reply on the base topic.
func (p *Publisher) PublishReply(text string) {
	p.client.Publish(p.topic, 0, false, text)
}

// PublishTranscript publishes what the user said.
func (p *Publisher) PublishTranscript(text string) {
	p.client.Publish(transcriptTopic(p.topic), 0, false, text)
}

// PublishState publishes a session state change, retained so late
// subscribers see the current state.
func (p *Publisher) PublishState(state string) {
	p.client.Publish(stateTopic(p.topic), 0, true, state)
}

// Close announces offline and disconnects.
func (p *Publisher) Close() {
	t := p.client.Publish(availabilityTopic(p.topic), 1, true, "offline")
	t.WaitTimeout(time.Second)
	p.client.Disconnect(250)
}
