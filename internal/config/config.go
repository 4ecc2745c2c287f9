// Package config loads daemon configuration from an optional config file,
// a .env file and KIOSK_* environment variables, in increasing precedence.
package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string `mapstructure:"http_address"`
	LogLevel    string `mapstructure:"log_level"`
	LogPretty   bool   `mapstructure:"log_pretty"`

	// AvatarBaseURL is the avatar backend root; the offer and control
	// endpoints hang off it.
	AvatarBaseURL  string `mapstructure:"avatar_base_url"`
	ICEServersJSON string `mapstructure:"ice_servers_json"`

	WhisperServerURL      string  `mapstructure:"whisper_server_url"`
	WhisperLanguage       string  `mapstructure:"whisper_language"`
	WhisperModel          string  `mapstructure:"whisper_model"`
	WhisperUseVAD         bool    `mapstructure:"whisper_use_vad"`
	WhisperTranslate      bool    `mapstructure:"whisper_translate"`
	WhisperTargetLanguage string  `mapstructure:"whisper_target_language"`
	AudioGain             float64 `mapstructure:"audio_gain"`

	AssistantName  string        `mapstructure:"assistant_name"`
	WakePhrases    []string      `mapstructure:"wake_phrases"`
	SessionTimeout time.Duration `mapstructure:"session_timeout"`

	PlaybackEnabled bool   `mapstructure:"playback_enabled"`
	DebugDumpDir    string `mapstructure:"debug_dump_dir"`
}

// Load reads configuration with sane defaults. A missing config file is not
// an error; a malformed one is.
func Load() (Config, error) {
	// .env for local development, same as plain environment afterwards
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("KIOSK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http_address", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("avatar_base_url", "http://localhost:8010")
	v.SetDefault("ice_servers_json", `["stun:stun.l.google.com:19302"]`)
	v.SetDefault("whisper_server_url", "ws://localhost:9090")
	v.SetDefault("whisper_language", "en")
	v.SetDefault("whisper_model", "small")
	v.SetDefault("whisper_use_vad", true)
	v.SetDefault("whisper_translate", false)
	v.SetDefault("whisper_target_language", "")
	v.SetDefault("audio_gain", 2.0)
	v.SetDefault("assistant_name", "mira")
	v.SetDefault("wake_phrases", []string{})
	v.SetDefault("session_timeout", 2*time.Minute)
	v.SetDefault("playback_enabled", true)
	v.SetDefault("debug_dump_dir", "")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/kioskd")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// OfferURL is the WebRTC signaling endpoint.
func (c Config) OfferURL() string {
	return strings.TrimRight(c.AvatarBaseURL, "/") + "/offer"
}

// ICEServerURLs parses the configured ICE server list.
func (c Config) ICEServerURLs() ([]string, error) {
	if c.ICEServersJSON == "" {
		return nil, nil
	}
	var urls []string
	if err := json.Unmarshal([]byte(c.ICEServersJSON), &urls); err != nil {
		return nil, fmt.Errorf("parse ice servers: %w", err)
	}
	return urls, nil
}
