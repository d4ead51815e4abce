package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/xpanvictor/voicegate/internal/domains/preferences"
	"github.com/xpanvictor/voicegate/internal/domains/voicegate"
	"github.com/xpanvictor/voicegate/pkg/io/activity"
)

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	SessionTimeout  time.Duration `mapstructure:"session_timeout"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	AllowedOrigin   string        `mapstructure:"allowed_origin"`
}

type GateConfig struct {
	HaltDebounce      time.Duration `mapstructure:"halt_debounce"`
	CheckInterval     time.Duration `mapstructure:"check_interval"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	AdjustStep        float64       `mapstructure:"adjust_step"`
	MinMagnitude      float64       `mapstructure:"min_magnitude"`
	ShortEpisode      time.Duration `mapstructure:"short_episode"`
	ShortTriggerLimit uint          `mapstructure:"short_trigger_limit"`
	LongEpisode       time.Duration `mapstructure:"long_episode"`
	LongSessionLimit  uint          `mapstructure:"long_session_limit"`
}

type DetectorConfig struct {
	Threshold    float64 `mapstructure:"threshold"`
	History      int     `mapstructure:"history"`
	RingCapacity int     `mapstructure:"ring_capacity"`
	SampleRate   int32   `mapstructure:"sample_rate"`
}

type Settings struct {
	Server      ServerConfig                 `mapstructure:"server"`
	Gate        GateConfig                   `mapstructure:"gate"`
	Detector    DetectorConfig               `mapstructure:"detector"`
	Preferences preferences.VoicePreferences `mapstructure:"preferences"`
	Env         string                       `mapstructure:"env"`
	Debug       bool                         `mapstructure:"debug" default:"false"`
}

// Voicegate converts the gate section for the core.
func (s *Settings) Voicegate() voicegate.Config {
	return voicegate.Config{
		HaltDebounce:      s.Gate.HaltDebounce,
		CheckInterval:     s.Gate.CheckInterval,
		PollInterval:      s.Gate.PollInterval,
		AdjustStep:        s.Gate.AdjustStep,
		MinMagnitude:      s.Gate.MinMagnitude,
		ShortEpisode:      s.Gate.ShortEpisode,
		ShortTriggerLimit: s.Gate.ShortTriggerLimit,
		LongEpisode:       s.Gate.LongEpisode,
		LongSessionLimit:  s.Gate.LongSessionLimit,
	}
}

// Activity converts the detector section; the poll interval is owned by the
// gate, which pushes it on start.
func (s *Settings) Activity() activity.Config {
	return activity.Config{
		Threshold:    s.Detector.Threshold,
		PollInterval: s.Gate.PollInterval,
		History:      s.Detector.History,
		RingCapacity: s.Detector.RingCapacity,
	}
}

func Load() (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config_" + genEnv())
	v.AddConfigPath(".")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("voicegate")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &settings, nil
}

// Default returns settings built from defaults alone, ignoring files and env.
func Default() *Settings {
	v := viper.New()
	setDefaults(v)
	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		panic(fmt.Sprintf("config: defaults do not decode: %v", err))
	}
	return &settings
}

func setDefaults(v *viper.Viper) {
	gate := voicegate.DefaultConfig()
	det := activity.DefaultConfig()

	v.SetDefault("env", genEnv())
	v.SetDefault("debug", false)

	v.SetDefault("server.addr", ":8090")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.session_timeout", 30*time.Minute)
	v.SetDefault("server.read_buffer_size", 4096)
	v.SetDefault("server.write_buffer_size", 1024)
	v.SetDefault("server.allowed_origin", "*")

	v.SetDefault("gate.halt_debounce", gate.HaltDebounce)
	v.SetDefault("gate.check_interval", gate.CheckInterval)
	v.SetDefault("gate.poll_interval", gate.PollInterval)
	v.SetDefault("gate.adjust_step", gate.AdjustStep)
	v.SetDefault("gate.min_magnitude", gate.MinMagnitude)
	v.SetDefault("gate.short_episode", gate.ShortEpisode)
	v.SetDefault("gate.short_trigger_limit", gate.ShortTriggerLimit)
	v.SetDefault("gate.long_episode", gate.LongEpisode)
	v.SetDefault("gate.long_session_limit", gate.LongSessionLimit)

	v.SetDefault("detector.threshold", det.Threshold)
	v.SetDefault("detector.history", det.History)
	v.SetDefault("detector.ring_capacity", det.RingCapacity)
	v.SetDefault("detector.sample_rate", 16000)

	v.SetDefault("preferences.monitoring_enabled", false)
	v.SetDefault("preferences.automatic_sensitivity", true)
	v.SetDefault("preferences.muted", false)
}

func genEnv() string {
	v := viper.New()
	v.AutomaticEnv()
	env := v.GetString("ENV")
	if env == "" {
		return "dev"
	}
	return env
}
