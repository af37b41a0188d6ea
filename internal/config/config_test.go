package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	t.Run("missing file writes defaults to disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "conf", "config.yaml")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}

		if cfg.Persona != "EMO" {
			t.Errorf("expected default persona EMO, got %q", cfg.Persona)
		}
		if cfg.MQTTTopic != "emo/bridge" {
			t.Errorf("expected default topic emo/bridge, got %q", cfg.MQTTTopic)
		}

		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected config file to be created: %v", err)
		}
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		body := "persona: EMUSINIO\nvoice_rate: 200\nenable_mqtt: true\nmqtt_broker: broker.local\nmqtt_port: 8883\nmqtt_topic: home/emo\n"
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}

		if cfg.Persona != "EMUSINIO" {
			t.Errorf("persona = %q", cfg.Persona)
		}
		if cfg.VoiceRate != 200 {
			t.Errorf("voice_rate = %d", cfg.VoiceRate)
		}
		if cfg.MQTTBroker != "broker.local" || cfg.MQTTPort != 8883 {
			t.Errorf("mqtt = %q:%d", cfg.MQTTBroker, cfg.MQTTPort)
		}
		// untouched fields keep defaults
		if cfg.ReplyLanguage != "pt-PT" {
			t.Errorf("reply_language = %q", cfg.ReplyLanguage)
		}
	})

	t.Run("env key overrides file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("gemini_api_key: from-file\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		t.Setenv("GEMINI_API_KEY", "from-env")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.GeminiAPIKey != "from-env" {
			t.Errorf("gemini_api_key = %q", cfg.GeminiAPIKey)
		}
	})

	t.Run("invalid provider rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("provider: bard\n"), 0o600); err != nil {
			t.Fatal(err)
		}

		if _, err := Load(path); err == nil {
			t.Error("expected error for unknown provider")
		}
	})
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.Persona = "EMUSINIO"
	cfg.EnableMQTT = true
	cfg.MQTTBroker = "10.0.0.2"
	cfg.MQTTUsername = "emo"
	cfg.MQTTPassword = "secret"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got.Persona != cfg.Persona || got.MQTTBroker != cfg.MQTTBroker ||
		got.MQTTUsername != cfg.MQTTUsername || got.MQTTPassword != cfg.MQTTPassword {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults ok", func(c *Config) {}, false},
		{"zero rate", func(c *Config) { c.VoiceRate = 0 }, true},
		{"volume above one", func(c *Config) { c.VoiceVolume = 1.5 }, true},
		{"mqtt without broker", func(c *Config) { c.EnableMQTT = true; c.MQTTBroker = "" }, true},
		{"mqtt bad port", func(c *Config) { c.EnableMQTT = true; c.MQTTPort = 70000 }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
