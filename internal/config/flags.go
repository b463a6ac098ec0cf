package config

import (
	"errors"
	"math"
	"time"

	"github.com/spf13/pflag"
)

// UI modes.
const (
	UIModeTUI  = "tui"
	UIModeTray = "tray"
	UIModeNone = "none"
)

// DefaultListenAddr is the loopback address of the command API.
const DefaultListenAddr = "127.0.0.1:7420"

// Options are the process options taken from the command line.
type Options struct {
	Duration    string
	Clock       string
	Start       bool
	UI          string
	Listen      string
	Token       string
	ConfigPath  string
	WatchConfig bool
	LogFile     string
	LogLevel    string
}

// DefaultOptions returns the options used when no flag is given.
func DefaultOptions() Options {
	return Options{
		UI:       UIModeTUI,
		Listen:   DefaultListenAddr,
		LogLevel: "info",
	}
}

// Register binds the process options to a flag set. The command API options
// are bound separately by RegisterAPI so that client sub-commands can share
// them.
func (o *Options) Register(flags *pflag.FlagSet) {
	flags.StringVarP(&o.Duration, "duration", "d", o.Duration, `Session length, minutes or Go duration (e.g. "150", "2h30m")`)
	flags.StringVarP(&o.Clock, "clock", "c", o.Clock, `Keep the session running until a time of day (e.g. "22:00" or "10:00PM")`)
	flags.BoolVar(&o.Start, "start", o.Start, "Start a session immediately")
	flags.StringVar(&o.UI, "ui", o.UI, "Presentation: tui, tray or none")
	flags.StringVar(&o.ConfigPath, "config", o.ConfigPath, "Config file (.toml, .json or .yaml)")
	flags.BoolVar(&o.WatchConfig, "watch-config", o.WatchConfig, "Reload the config file when it changes on disk")
	flags.StringVar(&o.LogFile, "log-file", o.LogFile, "Log file path")
	flags.StringVar(&o.LogLevel, "log-level", o.LogLevel, "Log level: debug, info, warn or error")
}

// RegisterAPI binds the command API address and token.
func (o *Options) RegisterAPI(flags *pflag.FlagSet) {
	flags.StringVar(&o.Listen, "listen", o.Listen, `Command API address, "" disables it`)
	flags.StringVar(&o.Token, "token", o.Token, "Bearer token required by the command API")
}

// Resolved holds the values derived from Options.
type Resolved struct {
	// DurationMinutes is -1 when neither --duration nor --clock was given.
	DurationMinutes int
	Until           time.Time
	Start           bool
}

// Resolve validates the options and converts --duration / --clock into a
// session length in minutes relative to now.
func (o Options) Resolve(now time.Time) (Resolved, error) {
	r := Resolved{DurationMinutes: -1, Start: o.Start}

	switch o.UI {
	case UIModeTUI, UIModeTray, UIModeNone:
	default:
		return r, &Error{Key: "ui", Msg: `must be one of "tui", "tray" or "none", got "` + o.UI + `"`}
	}

	if o.Duration != "" && o.Clock != "" {
		return r, errors.New("cannot use --duration and --clock together")
	}

	if o.Duration != "" {
		d, err := ParseDuration(o.Duration)
		if err != nil {
			return r, err
		}
		if d < 0 {
			return r, errors.New("duration must not be negative")
		}
		r.DurationMinutes = int(math.Ceil(d.Minutes()))
		r.Start = true
	}

	if o.Clock != "" {
		until, err := ParseUntil(o.Clock, now)
		if err != nil {
			return r, err
		}
		r.Until = until
		r.DurationMinutes = int(math.Ceil(until.Sub(now).Minutes()))
		r.Start = true
	}

	return r, nil
}
