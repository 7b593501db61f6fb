// Package input assembles the byte streams the verifiable programs read, and
// reads them back inside the programs.
//
// Every stream starts with the same metadata section:
//
//	u32 len | server commitment
//	u32 2   | (u32 len | player commitment) x 2
//
// The game program's stream continues with the mover-tagged history
//
//	u32 n | (u8 mover | u8 move) x n
//
// and each agent program's stream with the flat history and its seat
//
//	u32 n | u8 move x n | u8 seat
//
// Integers are little-endian. Streams built from equal content are
// byte-identical.
package input

import (
	"github.com/dedis/zkarena/commit"
	"github.com/dedis/zkarena/game"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// MaxMoves bounds the history section of a stream.
const MaxMoves = 1 << 16

// ErrInvalid is wrapped by every malformed metadata, history or stream.
var ErrInvalid = xerrors.New("invalid execution input")

// Inputs are the three streams of one run.
type Inputs struct {
	Game   []byte
	Agents [game.Seats][]byte
}

// Assemble builds the streams of a run from its commitments and record.
func Assemble(md *commit.Metadata, rec *game.Record) (*Inputs, error) {
	if rec == nil {
		return nil, xerrors.Errorf("missing record: %w", ErrInvalid)
	}
	for i, t := range rec.Turns {
		if t.Mover != i%game.Seats {
			return nil, xerrors.Errorf("turn %d moved by player %d: %w", i, t.Mover, ErrInvalid)
		}
	}
	moves := rec.Moves()
	in := &Inputs{}
	var err error
	in.Game, err = Game(md, moves)
	if err != nil {
		return nil, err
	}
	for seat := range in.Agents {
		in.Agents[seat], err = Agent(md, moves, seat)
		if err != nil {
			return nil, err
		}
	}
	log.Lvlf2("Assembled inputs for %d moves: game %d bytes, agents %d bytes",
		len(moves), len(in.Game), len(in.Agents[0]))
	return in, nil
}

// Game builds the game program's stream. Movers are tagged 0,1,0,1...
func Game(md *commit.Metadata, moves []byte) ([]byte, error) {
	w, err := header(md, moves)
	if err != nil {
		return nil, err
	}
	w.u32(uint32(len(moves)))
	for i, m := range moves {
		w.u8(uint8(i % game.Seats))
		w.u8(m)
	}
	return w.bytes(), nil
}

// Agent builds the stream of the agent program of seat.
func Agent(md *commit.Metadata, moves []byte, seat int) ([]byte, error) {
	if seat < 0 || seat >= game.Seats {
		return nil, xerrors.Errorf("seat %d: %w", seat, ErrInvalid)
	}
	w, err := header(md, moves)
	if err != nil {
		return nil, err
	}
	w.u32(uint32(len(moves)))
	w.raw(moves)
	w.u8(uint8(seat))
	return w.bytes(), nil
}

func header(md *commit.Metadata, moves []byte) (*writer, error) {
	if err := md.Validate(); err != nil {
		return nil, xerrors.Errorf("%v: %w", err, ErrInvalid)
	}
	if len(moves) > MaxMoves {
		return nil, xerrors.Errorf("%d moves exceed %d: %w", len(moves), MaxMoves, ErrInvalid)
	}
	w := &writer{}
	w.chunk(md.Server.Commitment)
	w.u32(uint32(len(md.Players)))
	for _, p := range md.Players {
		w.chunk(p.Commitment)
	}
	return w, nil
}
