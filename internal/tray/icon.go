package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"runtime"
)

const iconSize = 16

var (
	activeColor = color.RGBA{R: 0x5A, G: 0x56, B: 0xE0, A: 0xFF}
	idleColor   = color.RGBA{R: 0x8A, G: 0x8A, B: 0x8A, A: 0xFF}
)

// iconPNG draws a filled dot for an active session and a ring otherwise.
func iconPNG(active bool) []byte {
	img := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))
	c := idleColor
	if active {
		c = activeColor
	}

	const center = float64(iconSize-1) / 2
	const outer = 7.0
	const inner = 4.5
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			dx, dy := float64(x)-center, float64(y)-center
			d := dx*dx + dy*dy
			if d > outer*outer {
				continue
			}
			if !active && d < inner*inner {
				continue
			}
			img.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// wrapICO embeds a PNG in a single-image ICO container, which is what the
// Windows tray expects.
func wrapICO(pngData []byte) []byte {
	var buf bytes.Buffer
	// ICONDIR: reserved, type 1 (icon), one image.
	_ = binary.Write(&buf, binary.LittleEndian, [3]uint16{0, 1, 1})
	// ICONDIRENTRY
	buf.Write([]byte{iconSize, iconSize, 0, 0})
	_ = binary.Write(&buf, binary.LittleEndian, [2]uint16{1, 32})
	_ = binary.Write(&buf, binary.LittleEndian, [2]uint32{uint32(len(pngData)), 6 + 16})
	buf.Write(pngData)
	return buf.Bytes()
}

func icon(active bool) []byte {
	data := iconPNG(active)
	if runtime.GOOS == "windows" {
		return wrapICO(data)
	}
	return data
}
