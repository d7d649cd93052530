package model

import "strings"

// Direction is a cardinal move understood by the game server.
type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// Directions lists every legal move. Diagonals do not exist.
var Directions = []Direction{Up, Down, Left, Right}

// ParseDirection reports whether s names one of the four moves.
func ParseDirection(s string) (Direction, bool) {
	for _, d := range Directions {
		if string(d) == s {
			return d, true
		}
	}
	return "", false
}

// Delta returns the (dx, dy) offset of a move. (0,0) is the top-left
// corner of the map, so "up" decreases y.
func (d Direction) Delta() (int, int) {
	switch d {
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	}
	return 0, 0
}

// Position is a cell on the game grid.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Step returns the position reached by moving one cell in d.
// Unknown directions leave the position unchanged.
func (p Position) Step(d Direction) Position {
	dx, dy := d.Delta()
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// Manhattan returns the grid distance between two positions.
func Manhattan(a, b Position) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// ContainsDirective reports whether src mentions at least one move keyword.
// It is a plain substring test, not a parse.
func ContainsDirective(src string) bool {
	for _, d := range Directions {
		if strings.Contains(src, string(d)) {
			return true
		}
	}
	return false
}
