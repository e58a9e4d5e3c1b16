package config

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/john/lastemote/internal/overlay"
)

// intField describes one bounded integer setting
type intField struct {
	name     string
	value    *int
	min, max int
}

func (c *Config) applyDefaults() {
	d := overlay.DefaultSettings()
	o := &c.Overlay
	defaultInt(&o.FadeTimeoutMS, int(d.FadeTimeout.Milliseconds()))
	defaultBool(&o.ShowCombo, d.ShowCombo)
	defaultBool(&o.ComboSave, d.ComboSave)
	defaultBool(&o.FireShow, d.FireShow)
	defaultInt(&o.FireComboCount, d.FireComboCount)
	if o.MaxFire == nil {
		v := d.MaxFire
		o.MaxFire = &v
	}
	defaultBool(&o.ComboPulseAnimation, d.ComboPulseAnimation)
	defaultBool(&o.FireAnimation, d.FireAnimation)
	defaultBool(&o.ComboDecayAnimation, d.ComboDecayAnimation)

	s := &c.Sources
	defaultBool(&s.PlatformNative, true)
	defaultBool(&s.ChannelCustom, true)
	defaultBool(&s.GlobalCustom, true)
	defaultBool(&s.ThirdPartyGlobal, true)
	defaultBool(&s.ThirdPartyChannel, true)

	if c.Platform == "" {
		c.Platform = "twitch"
	}
	c.Platform = strings.ToLower(c.Platform)
	c.Channel = strings.ToLower(strings.TrimPrefix(c.Channel, "#"))

	if c.Transport.RetryDelaySeconds == 0 {
		c.Transport.RetryDelaySeconds = 5
	}
	if c.Transport.BufferSize == 0 {
		c.Transport.BufferSize = 100
	}

	if c.Journal.OutputDir == "" {
		c.Journal.OutputDir = "./data"
	}
	if c.Journal.RotateMinutes == 0 {
		c.Journal.RotateMinutes = 60
	}
	if c.Journal.RotateMegabytes == 0 {
		c.Journal.RotateMegabytes = 100
	}
	if c.Journal.BufferSize == 0 {
		c.Journal.BufferSize = 100
	}

	if c.Archive.MaxRetries == 0 {
		c.Archive.MaxRetries = 3
	}

	if c.Health.Addr == "" {
		c.Health.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks required fields and bounds
func (c *Config) Validate() error {
	if c.Channel == "" {
		return fmt.Errorf("channel is required (or set LASTEMOTE_CHANNEL env var)")
	}
	switch c.Platform {
	case "twitch", "kick":
	default:
		return fmt.Errorf("platform must be twitch or kick, got %q", c.Platform)
	}

	fields := []intField{
		{"transport.retry_delay_seconds", &c.Transport.RetryDelaySeconds, 1, 300},
		{"transport.buffer_size", &c.Transport.BufferSize, 1, 100000},
		{"journal.rotate_minutes", &c.Journal.RotateMinutes, 1, 24 * 60},
		{"journal.rotate_megabytes", &c.Journal.RotateMegabytes, 1, 10240},
		{"journal.buffer_size", &c.Journal.BufferSize, 1, 100000},
		{"archive.max_retries", &c.Archive.MaxRetries, 0, 20},
		{"kick.chatroom_id", &c.Kick.ChatroomID, 0, math.MaxInt32},
		{"kick.user_id", &c.Kick.UserID, 0, math.MaxInt32},
	}
	if c.Overlay.FadeTimeoutMS != nil {
		fields = append(fields, intField{"overlay.fade_timeout_ms", c.Overlay.FadeTimeoutMS, 0, 3600000})
	}
	if c.Overlay.FireComboCount != nil {
		fields = append(fields, intField{"overlay.fire_combo_count", c.Overlay.FireComboCount, 1, 10000})
	}
	for _, f := range fields {
		if *f.value < f.min || *f.value > f.max {
			return fmt.Errorf("%s must be between %d and %d, got %d", f.name, f.min, f.max, *f.value)
		}
	}

	if m := c.Overlay.MaxFire; m != nil && (*m < 1 || *m > 100) {
		return fmt.Errorf("overlay.max_fire must be between 1 and 100, got %g", *m)
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	if c.Archive.Bucket != "" {
		if c.Archive.Region == "" {
			return fmt.Errorf("archive.region is required when archive.bucket is set")
		}
		// Either OIDC role or static credentials required
		if c.Archive.RoleARN == "" && c.Archive.AccessKeyID == "" {
			return fmt.Errorf("either archive.role_arn (OIDC) or archive.access_key_id (legacy) is required")
		}
		if c.Archive.AccessKeyID != "" && c.Archive.SecretAccessKey == "" {
			return fmt.Errorf("archive.secret_access_key is required when using access_key_id")
		}
		if !c.Journal.Enabled {
			return fmt.Errorf("archive requires journal.enabled")
		}
	}

	return nil
}

func defaultBool(p **bool, v bool) {
	if *p == nil {
		*p = &v
	}
}

func defaultInt(p **int, v int) {
	if *p == nil {
		*p = &v
	}
}
