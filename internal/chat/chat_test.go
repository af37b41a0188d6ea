package chat

import (
	"context"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		if _, err := New(context.Background(), "openai", Options{}); err == nil {
			t.Error("expected error without api key")
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		if _, err := New(context.Background(), "bard", Options{APIKey: "k"}); err == nil {
			t.Error("expected error for unknown provider")
		}
	})

	t.Run("socks proxy yields a proxied client", func(t *testing.T) {
		client, err := socksClient("127.0.0.1:1080")
		if err != nil {
			t.Fatalf("socksClient: %v", err)
		}
		if client.Transport == nil {
			t.Error("expected a custom transport")
		}
		if client.Timeout == 0 {
			t.Error("proxied client should carry a timeout")
		}
	})

	t.Run("openai default model", func(t *testing.T) {
		c, err := New(context.Background(), "openai", Options{APIKey: "k"})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer c.Close()

		oc, ok := c.(*openaiClient)
		if !ok {
			t.Fatalf("expected *openaiClient, got %T", c)
		}
		if oc.model == "" {
			t.Error("model should default")
		}
	})
}
