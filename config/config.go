// Package config holds the immutable session configuration: provider
// credentials, audio format, wake words, dismissal phrases and persona.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
)

// DeepgramConfig carries credentials and model selection for both Deepgram
// sockets.
type DeepgramConfig struct {
	APIKey   string `json:"api_key"`
	STTModel string `json:"stt_model"`
	TTSModel string `json:"tts_model"`
}

// OpenAIConfig carries credentials and generation parameters for the LLM.
type OpenAIConfig struct {
	APIKey      string  `json:"api_key"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

// ClickUpConfig selects the grounding document. An empty APIKey disables
// grounding entirely.
type ClickUpConfig struct {
	APIKey  string `json:"api_key"`
	DocName string `json:"doc_name"`
}

// Config is the top-level configuration loaded from settings.json, with
// credentials overlaid from the environment.
type Config struct {
	Host string `json:"host"`
	Port int    `json:"port"`

	BotName            string   `json:"bot_name"`
	WakeWords          []string `json:"wake_words"`
	DismissalPhrases   []string `json:"dismissal_phrases"`
	IdleTimeoutSeconds int      `json:"idle_timeout_seconds"`

	SampleRate    int    `json:"sample_rate"`
	AudioEncoding string `json:"audio_encoding"` // "linear16", "mulaw" or "alaw"

	Deepgram DeepgramConfig `json:"deepgram"`
	OpenAI   OpenAIConfig   `json:"openai"`
	ClickUp  ClickUpConfig  `json:"clickup"`
}

// DefaultConfig returns a Config with sensible defaults; only credentials
// need to be supplied.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8000,
		BotName:            "alex",
		WakeWords:          []string{"hello alex", "hey alex", "alex"},
		DismissalPhrases:   []string{"that's all", "thanks alex", "goodbye", "bye", "see you", "stop"},
		IdleTimeoutSeconds: 50,
		SampleRate:         48000,
		AudioEncoding:      "linear16",
		Deepgram: DeepgramConfig{
			STTModel: "nova-2",
			TTSModel: "aura-2-thalia-en",
		},
		OpenAI: OpenAIConfig{
			Model:       "gpt-4o-mini",
			MaxTokens:   400,
			Temperature: 0.7,
		},
		ClickUp: ClickUpConfig{
			DocName: "Daily Standup Summary By AI",
		},
	}
}

// FromJSON parses a JSON blob over the defaults.
func FromJSON(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("settings: %w", err)
	}
	return cfg, nil
}

// FromFile reads and parses a Config from a JSON file.
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("settings: read %q: %w", path, err)
	}
	return FromJSON(data)
}

// ApplyEnv overlays credentials and the listen port from environment
// variables, which always win over file values.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("DEEPGRAM_API_KEY"); v != "" {
		c.Deepgram.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("CLICKUP_API_KEY"); v != "" {
		c.ClickUp.APIKey = v
	}
	for _, key := range []string{"VOICE_BOT_PORT", "PORT"} {
		if v := os.Getenv(key); v != "" {
			if port, err := strconv.Atoi(v); err == nil {
				c.Port = port
				break
			}
		}
	}
}

// Validate checks that the configuration can actually run a session.
func (c *Config) Validate() error {
	if c.Deepgram.APIKey == "" {
		return errors.New("settings: Deepgram API key is required")
	}
	if c.OpenAI.APIKey == "" {
		return errors.New("settings: OpenAI API key is required")
	}
	if len(c.WakeWords) == 0 {
		return errors.New("settings: at least one wake word is required")
	}
	if c.SampleRate <= 0 {
		return errors.New("settings: sample rate must be positive")
	}
	return nil
}
