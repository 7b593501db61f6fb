package game

import (
	"github.com/dedis/zkarena/commit"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// DefaultMaxTurns bounds a run whose reducer never reaches a terminal state.
const DefaultMaxTurns = 1024

// ErrTurnLimit is returned when a run exceeds its turn limit.
var ErrTurnLimit = xerrors.New("turn limit reached")

// ErrRejected is returned when the reducer does not record a move exactly as
// it was played. The record of such a run cannot be replayed.
var ErrRejected = xerrors.New("move not recorded by the reducer")

// Phase is the state of the simulator's turn machine.
type Phase int

const (
	AwaitingPlayer0 Phase = iota
	AwaitingPlayer1
	Terminal
)

func (p Phase) String() string {
	switch p {
	case AwaitingPlayer0:
		return "awaiting player 0"
	case AwaitingPlayer1:
		return "awaiting player 1"
	case Terminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Mover returns the seat expected to move in phase p, or -1 once terminal.
func (p Phase) Mover() int {
	switch p {
	case AwaitingPlayer0:
		return 0
	case AwaitingPlayer1:
		return 1
	default:
		return -1
	}
}

// next returns the phase following a move, given whether the state became
// terminal. Movers alternate whatever the reducer does internally.
func (p Phase) next(terminal bool) Phase {
	switch {
	case terminal || p == Terminal:
		return Terminal
	case p == AwaitingPlayer0:
		return AwaitingPlayer1
	default:
		return AwaitingPlayer0
	}
}

// Turn is one applied move.
type Turn struct {
	Mover int
	Move  byte
}

// Record is the authoritative outcome of a run.
type Record struct {
	Final State
	Turns []Turn
}

// Moves returns the applied moves in order.
func (r *Record) Moves() []byte {
	moves := make([]byte, len(r.Turns))
	for i, t := range r.Turns {
		moves[i] = t.Move
	}
	return moves
}

// Simulator plays two agents against each other under a reducer.
type Simulator struct {
	Reducer  Reducer
	Agents   [Seats]Agent
	MaxTurns int
}

// Run plays a full game seeded by the commitments in md. After every move the
// reducer's history must have grown by exactly that move. Otherwise Run stops
// with ErrRejected and also returns the partial record, whose last turn is the
// rejected one and whose Final holds the reducer's state.
func (s *Simulator) Run(md *commit.Metadata) (*Record, error) {
	if s.Reducer == nil || s.Agents[0] == nil || s.Agents[1] == nil {
		return nil, xerrors.New("simulator needs a reducer and two agents")
	}
	if err := md.Validate(); err != nil {
		return nil, xerrors.Errorf("invalid metadata: %v", err)
	}
	limit := s.MaxTurns
	if limit <= 0 {
		limit = DefaultMaxTurns
	}
	var agentCtx, rulesCtx [Seats]*Context
	for seat := range agentCtx {
		agentCtx[seat] = AgentContext(md, seat)
		rulesCtx[seat] = RulesContext(md, seat)
	}

	pub, priv := s.Reducer.Initial()
	rec := &Record{}
	phase := AwaitingPlayer0
	if pub.Terminal() {
		phase = Terminal
	}
	for phase != Terminal {
		if len(rec.Turns) >= limit {
			return nil, xerrors.Errorf("%s after %d turns: %w", s.Reducer.Name(), limit, ErrTurnLimit)
		}
		mover := phase.Mover()
		move := s.Agents[mover].Decide(pub, agentCtx[mover])
		err := Step(s.Reducer, pub, priv, move, rulesCtx[mover])
		rec.Turns = append(rec.Turns, Turn{Mover: mover, Move: move})
		if err != nil {
			rec.Final = pub
			return rec, xerrors.Errorf("%s, turn %d of player %d: %w",
				s.Reducer.Name(), len(rec.Turns), mover, err)
		}
		log.Lvlf3("Turn %d: player %d plays %d", len(rec.Turns), mover, move)
		phase = phase.next(pub.Terminal())
	}
	rec.Final = pub
	log.Lvlf2("%s finished after %d turns", s.Reducer.Name(), len(rec.Turns))
	return rec, nil
}

// Step applies move and checks that the reducer recorded it as played. The
// error wraps ErrRejected.
func Step(r Reducer, pub State, priv interface{}, move byte, ctx *Context) error {
	before := len(pub.History())
	r.Apply(pub, priv, move, ctx)
	if err := recorded(pub.History(), before, move); err != nil {
		return xerrors.Errorf("%v: %w", err, ErrRejected)
	}
	return nil
}

func recorded(h []byte, before int, move byte) error {
	switch {
	case len(h) == before:
		return xerrors.Errorf("move %d ignored", move)
	case len(h) != before+1:
		return xerrors.Errorf("history grew from %d to %d moves", before, len(h))
	case h[before] != move:
		return xerrors.Errorf("move %d recorded as %d", move, h[before])
	}
	return nil
}
