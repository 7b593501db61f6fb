package connect4

import (
	"fmt"
	"strings"
)

var discs = [...]string{".", "X", "O"}

// Render draws the board, top row first, followed by the outcome.
func Render(s *State) string {
	var sb strings.Builder
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			sb.WriteString(discs[s.At(r, c)])
			sb.WriteByte(' ')
		}
		sb.WriteByte('\n')
	}
	for c := 0; c < Cols; c++ {
		fmt.Fprintf(&sb, "%d ", c)
	}
	sb.WriteByte('\n')
	switch s.Winner {
	case NoWinner:
		fmt.Fprintf(&sb, "player %d to move\n", s.Current)
	case Draw:
		sb.WriteString("draw\n")
	default:
		fmt.Fprintf(&sb, "player %d wins\n", s.Winner)
	}
	return sb.String()
}
