package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("ENV", "unit")

	settings, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "unit", settings.Env)
	assert.Equal(t, ":8090", settings.Server.Addr)
	assert.Equal(t, 500*time.Millisecond, settings.Gate.HaltDebounce)
	assert.Equal(t, uint(25), settings.Gate.ShortTriggerLimit)
	assert.Equal(t, -50.0, settings.Detector.Threshold)
	assert.True(t, settings.Preferences.AutomaticSensitivity)
	assert.Nil(t, settings.Preferences.MicrophoneSensitivity)

	gate := settings.Voicegate()
	assert.Equal(t, 10*time.Second, gate.LongEpisode)
	assert.Equal(t, 5.0, gate.AdjustStep)
	assert.Equal(t, 5*time.Millisecond, settings.Activity().PollInterval)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ENV", "unit")
	t.Setenv("VOICEGATE_GATE_HALT_DEBOUNCE", "750ms")
	t.Setenv("VOICEGATE_GATE_MIN_MAGNITUDE", "20")
	t.Setenv("VOICEGATE_SERVER_ADDR", ":9999")

	settings, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 750*time.Millisecond, settings.Gate.HaltDebounce)
	assert.Equal(t, 20.0, settings.Gate.MinMagnitude)
	assert.Equal(t, ":9999", settings.Server.Addr)
}

func TestDefaultIgnoresEnvironment(t *testing.T) {
	t.Setenv("VOICEGATE_SERVER_ADDR", ":9999")

	settings := Default()
	assert.Equal(t, ":8090", settings.Server.Addr)
	assert.Equal(t, int32(16000), settings.Detector.SampleRate)
}
