// Package config defines the persisted application configuration and the
// command line options of nudge.
package config

import (
	"fmt"
	"time"
)

// AppConfig is the persisted user configuration.
type AppConfig struct {
	Enabled         bool  `json:"enabled" toml:"enabled" yaml:"enabled"`
	DurationMinutes int   `json:"durationMinutes" toml:"duration_minutes" yaml:"duration_minutes"`
	LastModified    int64 `json:"lastModified" toml:"last_modified" yaml:"last_modified"`
}

// Partial is a sparse update of AppConfig. Nil fields are left untouched.
type Partial struct {
	Enabled         *bool `json:"enabled,omitempty"`
	DurationMinutes *int  `json:"durationMinutes,omitempty"`
}

// Keys accepted by the single-field store accessors.
const (
	KeyEnabled         = "enabled"
	KeyDurationMinutes = "durationMinutes"
	KeyLastModified    = "lastModified"
)

// DefaultDurationMinutes is the session length used when nothing is configured.
const DefaultDurationMinutes = 60

// DurationOptions are the session lengths offered by the presentation layers.
// Zero means unbounded.
var DurationOptions = []int{30, 60, 120, 240, 480, 0}

// Default returns the configuration used before anything has been persisted.
func Default() AppConfig {
	return AppConfig{
		Enabled:         false,
		DurationMinutes: DefaultDurationMinutes,
	}
}

// Duration returns the configured session length, zero when unbounded.
func (c AppConfig) Duration() time.Duration {
	return time.Duration(c.DurationMinutes) * time.Minute
}

// Validate reports the first invalid field.
func (c AppConfig) Validate() error {
	if c.DurationMinutes < 0 {
		return &Error{Key: KeyDurationMinutes, Msg: fmt.Sprintf("must be >= 0, got %d", c.DurationMinutes)}
	}
	return nil
}

// Apply returns a copy of c with the non-nil fields of p set. It does not
// stamp LastModified.
func (c AppConfig) Apply(p Partial) AppConfig {
	if p.Enabled != nil {
		c.Enabled = *p.Enabled
	}
	if p.DurationMinutes != nil {
		c.DurationMinutes = *p.DurationMinutes
	}
	return c
}

// IsEmpty reports whether p carries no field.
func (p Partial) IsEmpty() bool {
	return p.Enabled == nil && p.DurationMinutes == nil
}

// NextDuration returns the option following current in DurationOptions,
// wrapping around. Values not in the list restart at the first option.
func NextDuration(current int) int {
	for i, d := range DurationOptions {
		if d == current {
			return DurationOptions[(i+1)%len(DurationOptions)]
		}
	}
	return DurationOptions[0]
}

// PrevDuration is the inverse of NextDuration.
func PrevDuration(current int) int {
	n := len(DurationOptions)
	for i, d := range DurationOptions {
		if d == current {
			return DurationOptions[(i-1+n)%n]
		}
	}
	return DurationOptions[n-1]
}

// FormatDuration renders a minute count for display.
func FormatDuration(minutes int) string {
	switch {
	case minutes <= 0:
		return "unlimited"
	case minutes < 60:
		return fmt.Sprintf("%d min", minutes)
	case minutes%60 == 0:
		h := minutes / 60
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	default:
		return fmt.Sprintf("%dh%02dm", minutes/60, minutes%60)
	}
}

// Error is an invalid configuration value or command line option.
type Error struct {
	Key string
	Msg string
	Err error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg != "" {
			msg += ": "
		}
		msg += e.Err.Error()
	}
	if e.Key == "" {
		return "config: " + msg
	}
	return fmt.Sprintf("config: %s: %s", e.Key, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}
