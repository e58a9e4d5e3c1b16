package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/john/lastemote/internal/emote"
	"github.com/john/lastemote/internal/overlay"
)

// ErrUnknownKey is returned when the config file contains a key the schema does not define
var ErrUnknownKey = errors.New("unknown config key")

// Config holds the application configuration
type Config struct {
	Platform  string          `yaml:"platform" env:"LASTEMOTE_PLATFORM"` // "twitch" or "kick"
	Channel   string          `yaml:"channel" env:"LASTEMOTE_CHANNEL"`   // Channel to watch
	Kick      KickConfig      `yaml:"kick" envPrefix:"LASTEMOTE_KICK_"`
	Overlay   OverlayConfig   `yaml:"overlay" envPrefix:"LASTEMOTE_"`
	Sources   SourcesConfig   `yaml:"sources" envPrefix:"LASTEMOTE_ENABLE_"`
	Transport TransportConfig `yaml:"transport" envPrefix:"LASTEMOTE_"`
	Journal   JournalConfig   `yaml:"journal" envPrefix:"LASTEMOTE_JOURNAL_"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Health    HealthConfig    `yaml:"health" envPrefix:"LASTEMOTE_HEALTH_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LASTEMOTE_LOG_"`
}

// KickConfig holds Kick-specific identity; zero values are resolved through the Kick API
type KickConfig struct {
	ChatroomID int `yaml:"chatroom_id" env:"CHATROOM_ID"`
	UserID     int `yaml:"user_id" env:"USER_ID"`
}

// OverlayConfig holds the combo/decay behaviour switches.
// Booleans are pointers so an explicit false survives defaulting.
type OverlayConfig struct {
	FadeTimeoutMS       *int     `yaml:"fade_timeout_ms" env:"FADE_TIMEOUT_MS"` // 0 = never fade
	ShowCombo           *bool    `yaml:"show_combo" env:"SHOW_COMBO"`
	ComboSave           *bool    `yaml:"combo_save" env:"COMBO_SAVE"`
	FireShow            *bool    `yaml:"fire_show" env:"FIRE_SHOW"`
	FireComboCount      *int     `yaml:"fire_combo_count" env:"FIRE_COMBO_COUNT"`
	MaxFire             *float64 `yaml:"max_fire" env:"MAX_FIRE"`
	ComboPulseAnimation *bool    `yaml:"combo_pulse_animation" env:"COMBO_PULSE_ANIMATION"`
	FireAnimation       *bool    `yaml:"fire_animation" env:"FIRE_ANIMATION"`
	ComboDecayAnimation *bool    `yaml:"combo_decay_animation" env:"COMBO_DECAY_ANIMATION"`
}

// SourcesConfig holds the per-source enable flags
type SourcesConfig struct {
	PlatformNative    *bool `yaml:"platform_native" env:"PLATFORM_NATIVE"`
	ChannelCustom     *bool `yaml:"channel_custom" env:"CHANNEL_CUSTOM"`
	GlobalCustom      *bool `yaml:"global_custom" env:"GLOBAL_CUSTOM"`
	ThirdPartyGlobal  *bool `yaml:"third_party_global" env:"THIRD_PARTY_GLOBAL"`
	ThirdPartyChannel *bool `yaml:"third_party_channel" env:"THIRD_PARTY_CHANNEL"`
}

// TransportConfig holds chat connection settings
type TransportConfig struct {
	RetryDelaySeconds int `yaml:"retry_delay_seconds" env:"RETRY_DELAY_SECONDS"`
	BufferSize        int `yaml:"buffer_size" env:"LINE_BUFFER_SIZE"`
}

// JournalConfig holds snapshot journal configuration
type JournalConfig struct {
	Enabled         bool   `yaml:"enabled" env:"ENABLED"`
	OutputDir       string `yaml:"output_dir" env:"OUTPUT_DIR"`
	RotateMinutes   int    `yaml:"rotate_minutes" env:"ROTATE_MINUTES"`
	RotateMegabytes int    `yaml:"rotate_megabytes" env:"ROTATE_MEGABYTES"`
	BufferSize      int    `yaml:"buffer_size" env:"BUFFER_SIZE"`
}

// ArchiveConfig holds S3 archive configuration; an empty bucket disables archiving
type ArchiveConfig struct {
	Bucket            string `yaml:"bucket" env:"S3_BUCKET"`
	Region            string `yaml:"region" env:"S3_REGION"`
	RoleARN           string `yaml:"role_arn" env:"AWS_ROLE_ARN"`                // IAM role ARN for OIDC authentication
	AccessKeyID       string `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID"`         // Legacy: static credentials
	SecretAccessKey   string `yaml:"secret_access_key" env:"S3_SECRET_ACCESS_KEY"` // Legacy: static credentials
	DeleteAfterUpload bool   `yaml:"delete_after_upload" env:"S3_DELETE_AFTER_UPLOAD"`
	MaxRetries        int    `yaml:"max_retries" env:"S3_MAX_RETRIES"`
}

// HealthConfig holds the HTTP status server address
type HealthConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level       string `yaml:"level" env:"LEVEL"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

// Load loads configuration from a file, applies environment overrides and
// defaults, then validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML strictly; keys outside the schema are an error
func Parse(data []byte) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		if strings.Contains(err.Error(), "not found in type") {
			return nil, fmt.Errorf("parse config file: %w: %v", ErrUnknownKey, err)
		}
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &cfg, nil
}

// Settings converts the overlay section into engine settings.
// Call after defaults have been applied.
func (c *Config) Settings() overlay.Settings {
	o := c.Overlay
	return overlay.Settings{
		FadeTimeout:         time.Duration(*o.FadeTimeoutMS) * time.Millisecond,
		ShowCombo:           *o.ShowCombo,
		ComboSave:           *o.ComboSave,
		FireShow:            *o.FireShow,
		FireComboCount:      *o.FireComboCount,
		MaxFire:             *o.MaxFire,
		ComboPulseAnimation: *o.ComboPulseAnimation,
		FireAnimation:       *o.FireAnimation,
		ComboDecayAnimation: *o.ComboDecayAnimation,
	}
}

// EnabledSources returns the per-source flags in catalog form
func (c *Config) EnabledSources() map[emote.SourceID]bool {
	s := c.Sources
	return map[emote.SourceID]bool{
		emote.PlatformNative:    *s.PlatformNative,
		emote.ChannelCustom:     *s.ChannelCustom,
		emote.GlobalCustom:      *s.GlobalCustom,
		emote.ThirdPartyGlobal:  *s.ThirdPartyGlobal,
		emote.ThirdPartyChannel: *s.ThirdPartyChannel,
	}
}

// RetryDelay is the fixed chat reconnect delay
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Transport.RetryDelaySeconds) * time.Second
}
