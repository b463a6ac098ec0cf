package keepalive

import (
	"math/rand"

	"github.com/stigoleg/nudge/internal/platform"
)

// Direction is one of the four axis-aligned nudge directions.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

var directions = [...]Direction{Up, Down, Left, Right}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// Offset returns pos moved by px pixels in direction d. Screen y grows downwards.
func (d Direction) Offset(pos platform.Position, px int) platform.Position {
	switch d {
	case Up:
		pos.Y -= px
	case Down:
		pos.Y += px
	case Left:
		pos.X -= px
	case Right:
		pos.X += px
	}
	return pos
}

func randomDirection(rnd *rand.Rand) Direction {
	return directions[rnd.Intn(len(directions))]
}
