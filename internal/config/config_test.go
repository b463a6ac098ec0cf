package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 60, cfg.DurationMinutes)
	assert.Equal(t, time.Hour, cfg.Duration())
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cfg := AppConfig{DurationMinutes: -5}
	err := cfg.Validate()

	var cfgErr *Error
	assert.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, KeyDurationMinutes, cfgErr.Key)
}

func TestApply(t *testing.T) {
	enabled := true
	minutes := 240

	base := Default()
	got := base.Apply(Partial{Enabled: &enabled})
	assert.True(t, got.Enabled)
	assert.Equal(t, base.DurationMinutes, got.DurationMinutes)

	got = got.Apply(Partial{DurationMinutes: &minutes})
	assert.True(t, got.Enabled)
	assert.Equal(t, 240, got.DurationMinutes)

	assert.True(t, Partial{}.IsEmpty())
	assert.False(t, Partial{Enabled: &enabled}.IsEmpty())
}

func TestDurationCycling(t *testing.T) {
	assert.Equal(t, 60, NextDuration(30))
	assert.Equal(t, 0, NextDuration(480))
	assert.Equal(t, 30, NextDuration(0))
	assert.Equal(t, 30, NextDuration(45))

	assert.Equal(t, 0, PrevDuration(30))
	assert.Equal(t, 480, PrevDuration(0))
	assert.Equal(t, 0, PrevDuration(45))
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{0, "unlimited"},
		{30, "30 min"},
		{60, "1 hour"},
		{240, "4 hours"},
		{90, "1h30m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.minutes))
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Key: "enabled", Msg: "expected bool"}
	assert.Equal(t, "config: enabled: expected bool", err.Error())

	inner := errors.New("boom")
	wrapped := &Error{Msg: "decode", Err: inner}
	assert.Equal(t, "config: decode: boom", wrapped.Error())
	assert.ErrorIs(t, wrapped, inner)
}
