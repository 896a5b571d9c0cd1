package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lisuiheng/soundcard/audio"
	"github.com/lisuiheng/soundcard/logger"
	"github.com/spf13/viper"
)

// DefaultDevice selects the platform default device in DeviceConfig.
const DefaultDevice = -1

// Config mirrors the YAML configuration file.
type Config struct {
	// Backend is "malgo" or "portaudio".
	Backend string `mapstructure:"backend"`

	Audio struct {
		Capture  DeviceConfig `mapstructure:"capture"`
		Playback DeviceConfig `mapstructure:"playback"`
		// FrameDuration is the length in milliseconds of one relayed
		// audio frame.
		FrameDuration int `mapstructure:"frame_duration"`
	} `mapstructure:"audio"`

	Relay RelayConfig `mapstructure:"relay"`

	Logging logger.Config `mapstructure:"logging"`
}

// DeviceConfig selects a device and the stream parameters requested from
// it.
type DeviceConfig struct {
	// Device is a device id from the backend's listing, or DefaultDevice.
	Device       int `mapstructure:"device"`
	audio.Config `mapstructure:",squash"`
}

type RelayConfig struct {
	URL         string `mapstructure:"url"`
	AccessToken string `mapstructure:"access_token"`
	DeviceID    string `mapstructure:"device_id"`
	ClientID    string `mapstructure:"client_id"`
	// Codec is "opus" or "pcm".
	Codec   string `mapstructure:"codec"`
	Bitrate int    `mapstructure:"bitrate"`
	// MetricsAddr is the listen address of the Prometheus endpoint. Empty
	// disables it.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", "malgo")
	for _, dir := range []string{"capture", "playback"} {
		v.SetDefault("audio."+dir+".device", DefaultDevice)
		v.SetDefault("audio."+dir+".sample_rate", 48000)
		v.SetDefault("audio."+dir+".channels", 1)
		v.SetDefault("audio."+dir+".block_size", 0)
		v.SetDefault("audio."+dir+".queue_depth", 0)
	}
	v.SetDefault("audio.frame_duration", 20)
	v.SetDefault("relay.url", "")
	v.SetDefault("relay.access_token", "")
	v.SetDefault("relay.device_id", "")
	v.SetDefault("relay.client_id", "")
	v.SetDefault("relay.codec", "opus")
	v.SetDefault("relay.bitrate", 24000)
	v.SetDefault("relay.metrics_addr", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.outputs", []string{"stdout"})
}

// LoadConfig reads the configuration from configPath, or when empty from
// config.yaml in ., ./config or /etc/soundcard. A missing file in the search
// paths is not an error. Every key can be overridden from the environment
// with the SOUNDCARD_ prefix, e.g. SOUNDCARD_RELAY_URL.
func LoadConfig(configPath string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("SOUNDCARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/soundcard")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values LoadConfig cannot default.
func (c Config) Validate() error {
	switch c.Backend {
	case "malgo", "portaudio":
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedBackend, c.Backend)
	}
	switch c.Relay.Codec {
	case CodecOpus, CodecPCM:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedCodec, c.Relay.Codec)
	}
	if c.Audio.FrameDuration <= 0 {
		return fmt.Errorf("invalid frame duration: %dms", c.Audio.FrameDuration)
	}
	return nil
}
