package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromJSONOverlaysDefaults(t *testing.T) {
	cfg, err := FromJSON([]byte(`{
		"bot_name": "nova",
		"sample_rate": 16000,
		"deepgram": {"api_key": "dg", "stt_model": "nova-2", "tts_model": "aura-2-thalia-en"},
		"openai": {"api_key": "oa"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "nova", cfg.BotName)
	assert.Equal(t, 16000, cfg.SampleRate)
	// untouched fields keep their defaults
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, []string{"hello alex", "hey alex", "alex"}, cfg.WakeWords)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	require.NoError(t, cfg.Validate())
}

func TestValidateRequiresCredentials(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate())

	cfg.Deepgram.APIKey = "dg"
	assert.Error(t, cfg.Validate())

	cfg.OpenAI.APIKey = "oa"
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "dg-env")
	t.Setenv("OPENAI_API_KEY", "oa-env")
	t.Setenv("VOICE_BOT_PORT", "9100")

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	assert.Equal(t, "dg-env", cfg.Deepgram.APIKey)
	assert.Equal(t, "oa-env", cfg.OpenAI.APIKey)
	assert.Equal(t, 9100, cfg.Port)
}

func TestFromJSONMalformed(t *testing.T) {
	_, err := FromJSON([]byte(`{not json`))
	assert.Error(t, err)
}
