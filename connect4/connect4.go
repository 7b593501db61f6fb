// Package connect4 is a 6x7 grid-drop game for the arbiter. Players 1 and 2
// drop discs into columns; four in a row wins and a full board is a draw.
package connect4

import (
	"github.com/dedis/zkarena/game"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

const (
	Rows = 6
	Cols = 7
)

// Winner values besides the player numbers.
const (
	NoWinner = 0
	Draw     = 3
)

// State is the public state. Row 0 of Board is the top row.
type State struct {
	Board   []uint32
	Current uint32
	Winner  uint32
	Moves   []byte
}

// Private counts the discs actually placed.
type Private struct {
	Placed int
}

// NewState returns an empty board with player 1 to move.
func NewState() *State {
	return &State{Board: make([]uint32, Rows*Cols), Current: 1}
}

// Terminal implements game.State.
func (s *State) Terminal() bool {
	return s.Winner != NoWinner
}

// History implements game.State.
func (s *State) History() []byte {
	return s.Moves
}

// At returns the disc at row r, column c.
func (s *State) At(r, c int) uint32 {
	return s.Board[r*Cols+c]
}

// Open reports whether a disc can still be dropped into col.
func (s *State) Open(col int) bool {
	return col >= 0 && col < Cols && s.At(0, col) == 0
}

func opponent(p uint32) uint32 {
	if p == 1 {
		return 2
	}
	return 1
}

// Rules implements game.Reducer.
type Rules struct{}

// Name implements game.Reducer.
func (Rules) Name() string {
	return "connect4"
}

// Initial implements game.Reducer.
func (Rules) Initial() (game.State, interface{}) {
	return NewState(), &Private{}
}

// Apply implements game.Reducer. Moves on a finished game and moves into a
// full or missing column are ignored: nothing is placed or recorded and the
// same player stays to move.
func (Rules) Apply(pub game.State, priv interface{}, move byte, _ *game.Context) {
	s := pub.(*State)
	col := int(move)
	if s.Terminal() || !s.Open(col) {
		return
	}
	row := Rows - 1
	for s.At(row, col) != 0 {
		row--
	}
	s.Board[row*Cols+col] = s.Current
	if p, ok := priv.(*Private); ok {
		p.Placed++
	}
	s.Moves = append(s.Moves, move)
	switch {
	case s.wins(row, col, s.Current):
		s.Winner = s.Current
	case s.full():
		s.Winner = Draw
	default:
		s.Current = opponent(s.Current)
	}
}

// Decode implements game.Reducer.
func (Rules) Decode(buf []byte) (game.State, error) {
	s := &State{}
	if err := protobuf.Decode(buf, s); err != nil {
		return nil, xerrors.Errorf("couldn't decode connect4 state: %v", err)
	}
	if len(s.Board) != Rows*Cols {
		return nil, xerrors.Errorf("board has %d cells", len(s.Board))
	}
	return s, nil
}

var directions = [][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}

// wins reports whether the disc at (row, col) completes four in a row.
func (s *State) wins(row, col int, p uint32) bool {
	for _, d := range directions {
		n := 1 + s.run(row, col, d[0], d[1], p) + s.run(row, col, -d[0], -d[1], p)
		if n >= 4 {
			return true
		}
	}
	return false
}

func (s *State) run(row, col, dr, dc int, p uint32) int {
	n := 0
	for r, c := row+dr, col+dc; r >= 0 && r < Rows && c >= 0 && c < Cols && s.At(r, c) == p; r, c = r+dr, c+dc {
		n++
	}
	return n
}

func (s *State) full() bool {
	for c := 0; c < Cols; c++ {
		if s.Open(c) {
			return false
		}
	}
	return true
}
