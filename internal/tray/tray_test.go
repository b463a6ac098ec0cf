package tray

import (
	"bytes"
	"encoding/binary"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stigoleg/nudge/internal/session"
)

func TestStatusLine(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		state session.State
		want  string
	}{
		{"no permission", session.State{}, "Permission required"},
		{"idle", session.State{HasPermission: true}, "Idle"},
		{"unbounded", session.State{HasPermission: true, IsActive: true}, "Active, no time limit"},
		{
			"bounded",
			session.State{HasPermission: true, IsActive: true, EndAt: now.Add(29*time.Minute + 5*time.Second)},
			"Active, 29:05 left",
		},
		{
			"hours",
			session.State{HasPermission: true, IsActive: true, EndAt: now.Add(2*time.Hour + 3*time.Minute)},
			"Active, 2:03:00 left",
		},
		{
			"overdue",
			session.State{HasPermission: true, IsActive: true, EndAt: now.Add(-time.Second)},
			"Active, 0:00 left",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusLine(tt.state, now))
		})
	}
}

func TestToggleTitle(t *testing.T) {
	assert.Equal(t, "Stop", toggleTitle(true))
	assert.Equal(t, "Start", toggleTitle(false))
}

func TestIconPNG(t *testing.T) {
	for _, active := range []bool{true, false} {
		img, err := png.Decode(bytes.NewReader(iconPNG(active)))
		require.NoError(t, err)
		assert.Equal(t, iconSize, img.Bounds().Dx())

		_, _, _, centerAlpha := img.At(iconSize/2, iconSize/2).RGBA()
		_, _, _, cornerAlpha := img.At(0, 0).RGBA()
		assert.Zero(t, cornerAlpha)
		assert.Equal(t, active, centerAlpha > 0, "active=%v", active)
	}
}

func TestWrapICO(t *testing.T) {
	data := iconPNG(true)
	ico := wrapICO(data)

	require.Len(t, ico, 6+16+len(data))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(ico[2:4]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(ico[4:6]))
	assert.Equal(t, uint32(len(data)), binary.LittleEndian.Uint32(ico[14:18]))
	assert.Equal(t, uint32(22), binary.LittleEndian.Uint32(ico[18:22]))
	assert.Equal(t, data, ico[22:])
}
