package connect4

import (
	"math"

	"github.com/dedis/zkarena/game"
)

// FirstColumn always plays column 0.
var FirstColumn = game.AgentFunc(func(game.State, *game.Context) byte {
	return 0
})

// Leftmost plays the lowest-numbered open column.
var Leftmost = game.AgentFunc(func(pub game.State, _ *game.Context) byte {
	s := pub.(*State)
	for c := 0; c < Cols; c++ {
		if s.Open(c) {
			return byte(c)
		}
	}
	return 0
})

// Random plays a uniformly drawn open column, using the committed randomness
// of its context.
var Random = game.AgentFunc(func(pub game.State, ctx *game.Context) byte {
	s := pub.(*State)
	var open []byte
	for c := 0; c < Cols; c++ {
		if s.Open(c) {
			open = append(open, byte(c))
		}
	}
	if s.Terminal() || len(open) == 0 {
		return 0
	}
	return open[ctx.Intn(len(open))]
})

// DefaultDepth is the search depth of the minimax agent.
const DefaultDepth = 6

// Minimax searches depth plies with alpha-beta pruning.
func Minimax(depth int) game.Agent {
	return game.AgentFunc(func(pub game.State, _ *game.Context) byte {
		s := pub.(*State)
		var b board
		for r := 0; r < Rows; r++ {
			for c := 0; c < Cols; c++ {
				b[r][c] = uint8(s.At(r, c))
			}
		}
		me := uint8(s.Current)
		_, col := b.minimax(depth, math.MinInt32, math.MaxInt32, true, me, uint8(opponent(s.Current)))
		if col < 0 {
			return 0
		}
		return byte(col)
	})
}

type board [Rows][Cols]uint8

func (b *board) moves() []int {
	var out []int
	for c := 0; c < Cols; c++ {
		if b[0][c] == 0 {
			out = append(out, c)
		}
	}
	return out
}

func (b board) drop(col int, p uint8) board {
	for r := Rows - 1; r >= 0; r-- {
		if b[r][col] == 0 {
			b[r][col] = p
			break
		}
	}
	return b
}

// windows calls fn on every line of four cells.
func (b *board) windows(fn func(w [4]uint8)) {
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			for _, d := range directions {
				er, ec := r+3*d[0], c+3*d[1]
				if er < 0 || er >= Rows || ec < 0 || ec >= Cols {
					continue
				}
				var w [4]uint8
				for i := range w {
					w[i] = b[r+i*d[0]][c+i*d[1]]
				}
				fn(w)
			}
		}
	}
}

func (b *board) wins(p uint8) bool {
	won := false
	b.windows(func(w [4]uint8) {
		if w == [4]uint8{p, p, p, p} {
			won = true
		}
	})
	return won
}

func scoreWindow(w [4]uint8, p uint8) int {
	mine, empty := 0, 0
	for _, v := range w {
		switch v {
		case p:
			mine++
		case 0:
			empty++
		}
	}
	switch {
	case mine == 4:
		return 1000
	case mine == 3 && empty == 1:
		return 5
	case mine == 2 && empty == 2:
		return 2
	}
	return 0
}

func (b *board) evaluate(me, opp uint8) int {
	score := 0
	for r := 0; r < Rows; r++ {
		if b[r][Cols/2] == me {
			score += 6
		}
	}
	b.windows(func(w [4]uint8) {
		score += scoreWindow(w, me) - scoreWindow(w, opp)
	})
	return score
}

func (b *board) minimax(depth, alpha, beta int, maximizing bool, me, opp uint8) (int, int) {
	moves := b.moves()
	switch {
	case b.wins(me):
		return 1000000 + depth, -1
	case b.wins(opp):
		return -1000000 - depth, -1
	case len(moves) == 0:
		return 0, -1
	case depth == 0:
		return b.evaluate(me, opp), -1
	}
	best := moves[0]
	if maximizing {
		value := math.MinInt32
		for _, col := range moves {
			next := b.drop(col, me)
			score, _ := next.minimax(depth-1, alpha, beta, false, me, opp)
			if score > value {
				value, best = score, col
			}
			if value > alpha {
				alpha = value
			}
			if alpha >= beta {
				break
			}
		}
		return value, best
	}
	value := math.MaxInt32
	for _, col := range moves {
		next := b.drop(col, opp)
		score, _ := next.minimax(depth-1, alpha, beta, true, me, opp)
		if score < value {
			value, best = score, col
		}
		if value < beta {
			beta = value
		}
		if alpha >= beta {
			break
		}
	}
	return value, best
}
