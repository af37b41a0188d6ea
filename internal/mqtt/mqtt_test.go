package mqtt

import "testing"

func TestBrokerURL(t *testing.T) {
	cfg := Config{Broker: "broker.local", Port: 1883}
	if got := brokerURL(cfg); got != "tcp://broker.local:1883" {
		t.Errorf("brokerURL = %q", got)
	}
}

func TestTopics(t *testing.T) {
	base := "emo/bridge"

	if got := availabilityTopic(base); got != "emo/bridge/availability" {
		t.Errorf("availability = %q", got)
	}
	if got := stateTopic(base); got != "emo/bridge/state" {
		t.Errorf("state = %q", got)
	}
	if got := transcriptTopic(base); got != "emo/bridge/transcript" {
		t.Errorf("transcript = %q", got)
	}
}
