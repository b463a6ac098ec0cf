package session

import (
	"encoding/json"
	"time"
)

// State is the merged snapshot broadcast to presentation surfaces.
// Zero times mean unset.
type State struct {
	IsActive         bool
	HasPermission    bool
	EndAt            time.Time
	RemainingSeconds int
	NextMoveAt       time.Time
	Countdown        int
	LastMoveAt       time.Time
}

// Bounded reports whether the session has an end time.
func (s State) Bounded() bool {
	return !s.EndAt.IsZero()
}

type stateJSON struct {
	IsActive         bool  `json:"isActive"`
	HasPermission    bool  `json:"hasPermission"`
	EndAt            int64 `json:"endAt"`
	RemainingSeconds int   `json:"remainingSeconds"`
	NextMoveAt       int64 `json:"nextMoveAt"`
	Countdown        int   `json:"countdown"`
	LastMoveAt       int64 `json:"lastMoveAt"`
}

// MarshalJSON encodes times as unix milliseconds, 0 when unset.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateJSON{
		IsActive:         s.IsActive,
		HasPermission:    s.HasPermission,
		EndAt:            toMillis(s.EndAt),
		RemainingSeconds: s.RemainingSeconds,
		NextMoveAt:       toMillis(s.NextMoveAt),
		Countdown:        s.Countdown,
		LastMoveAt:       toMillis(s.LastMoveAt),
	})
}

func (s *State) UnmarshalJSON(data []byte) error {
	var w stateJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = State{
		IsActive:         w.IsActive,
		HasPermission:    w.HasPermission,
		EndAt:            fromMillis(w.EndAt),
		RemainingSeconds: w.RemainingSeconds,
		NextMoveAt:       fromMillis(w.NextMoveAt),
		Countdown:        w.Countdown,
		LastMoveAt:       fromMillis(w.LastMoveAt),
	}
	return nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// ceilSeconds rounds a remaining duration up to whole seconds, never below zero.
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
