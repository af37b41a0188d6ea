package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the whole bridge configuration. It is read once at launch
// and rewritten wholesale when settings are saved.
type Config struct {
	// Chat provider
	Provider     string `yaml:"provider"` // "gemini" or "openai"
	GeminiAPIKey string `yaml:"gemini_api_key"`
	OpenAIAPIKey string `yaml:"openai_api_key"`
	Model        string `yaml:"model"`

	// Conversation
	Persona       string `yaml:"persona"`
	ReplyLanguage string `yaml:"reply_language"`

	// STT
	WhisperModelPath string `yaml:"whisper_model_path"`
	SpeechLanguage   string `yaml:"speech_language"`

	// TTS
	VoiceRate   int     `yaml:"voice_rate"`
	VoiceVolume float64 `yaml:"voice_volume"`

	// MQTT
	EnableMQTT   bool   `yaml:"enable_mqtt"`
	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTPort     int    `yaml:"mqtt_port"`
	MQTTUsername string `yaml:"mqtt_username"`
	MQTTPassword string `yaml:"mqtt_password"`
	MQTTTopic    string `yaml:"mqtt_topic"`

	// Status API
	Listen string `yaml:"listen"`

	// Audio
	ChimePath string `yaml:"chime_path"`
	DuckAudio bool   `yaml:"duck_audio"`

	// Networking
	SocksProxy string `yaml:"socks_proxy"`
}

// Default returns the stock configuration, matching what the bridge writes
// on first launch.
func Default() *Config {
	return &Config{
		Provider:         "gemini",
		Model:            "gemini-1.5-flash",
		Persona:          "EMO",
		ReplyLanguage:    "pt-PT",
		WhisperModelPath: "models/ggml-base.bin",
		SpeechLanguage:   "auto",
		VoiceRate:        180,
		VoiceVolume:      1.0,
		EnableMQTT:       false,
		MQTTBroker:       "localhost",
		MQTTPort:         1883,
		MQTTTopic:        "emo/bridge",
		Listen:           "127.0.0.1:8792",
	}
}

// Load reads the YAML config at path. A missing file is not an error: the
// defaults are written to disk and returned, so a fresh install always ends
// up with an editable config file.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if werr := cfg.Save(path); werr != nil {
			return nil, fmt.Errorf("write default config: %w", werr)
		}
		cfg.applyEnv()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv lets secrets come from the environment (or a .env loaded by the
// daemon) without being written into config.yaml.
func (c *Config) applyEnv() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.GeminiAPIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAIAPIKey = v
	}
	if v := os.Getenv("EMO_BRIDGE_LISTEN"); v != "" {
		c.Listen = v
	}
}

// Save rewrites the config file wholesale, creating the parent directory
// if needed.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func (c *Config) Validate() error {
	switch c.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unknown provider %q (want gemini or openai)", c.Provider)
	}

	if c.VoiceRate <= 0 {
		return fmt.Errorf("voice_rate must be positive, got %d", c.VoiceRate)
	}
	if c.VoiceVolume < 0 || c.VoiceVolume > 1 {
		return fmt.Errorf("voice_volume must be within [0, 1], got %g", c.VoiceVolume)
	}
	if c.EnableMQTT {
		if c.MQTTBroker == "" {
			return fmt.Errorf("enable_mqtt is set but mqtt_broker is empty")
		}
		if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
			return fmt.Errorf("invalid mqtt_port %d", c.MQTTPort)
		}
		if c.MQTTTopic == "" {
			return fmt.Errorf("enable_mqtt is set but mqtt_topic is empty")
		}
	}

	return nil
}

// APIKey returns the key for the configured provider.
func (c *Config) APIKey() string {
	if c.Provider == "openai" {
		return c.OpenAIAPIKey
	}
	return c.GeminiAPIKey
}
