// Package guest holds the verifiable programs of a run: the game program,
// which replays the tagged history under the reducer and outputs the final
// public state, and the agent program, which replays the flat history and
// re-derives every move of its own seat.
package guest

import (
	"bytes"

	"github.com/dedis/zkarena/commit"
	"github.com/dedis/zkarena/game"
	"github.com/dedis/zkarena/input"
	"github.com/dedis/zkarena/zkvm"
	"golang.org/x/xerrors"
)

// ErrHistory is wrapped when a history cannot have been produced by the
// reducer and the agent a program was built for.
var ErrHistory = xerrors.New("history mismatch")

// Version is part of every program descriptor. Bumping it changes every
// program identity and so every key pair.
const Version = "v1"

func descriptor(kind, rules, agent string) []byte {
	var b bytes.Buffer
	b.WriteString("zkarena/")
	b.WriteString(Version)
	b.WriteString("/" + kind + "/" + rules)
	if agent != "" {
		b.WriteString("/" + agent)
	}
	return b.Bytes()
}

// GameProgram returns the game program of rules.
func GameProgram(rules game.Reducer) *zkvm.Program {
	return zkvm.NewProgram("game:"+rules.Name(), descriptor("game", rules.Name(), ""), Game(rules))
}

// AgentProgram returns the program proving the moves of agent, registered
// under name.
func AgentProgram(rules game.Reducer, name string, agent game.Agent) *zkvm.Program {
	return zkvm.NewProgram("agent:"+name, descriptor("agent", rules.Name(), name), Agent(rules, agent))
}

// historyError marks a malformed history section.
func historyError(err error) error {
	return xerrors.Errorf("%v: %w", err, ErrHistory)
}

type replay struct {
	rules game.Reducer
	pub   game.State
	priv  interface{}
	ctx   [game.Seats]*game.Context
}

func newReplay(rules game.Reducer, md *commit.Metadata) *replay {
	r := &replay{rules: rules}
	r.pub, r.priv = rules.Initial()
	for seat := range r.ctx {
		r.ctx[seat] = game.RulesContext(md, seat)
	}
	return r
}

func (r *replay) apply(i, mover int, move byte) error {
	if r.pub.Terminal() {
		return xerrors.Errorf("move %d after the game ended: %w", i, ErrHistory)
	}
	if err := game.Step(r.rules, r.pub, r.priv, move, r.ctx[mover]); err != nil {
		return xerrors.Errorf("move %d: %v: %w", i, err, ErrHistory)
	}
	return nil
}

// Game returns the guest of the game program. It outputs the canonical
// encoding of the final public state.
func Game(rules game.Reducer) zkvm.Guest {
	return func(stdin []byte) ([]byte, error) {
		in := input.NewReader(stdin)
		md, err := in.Metadata()
		if err != nil {
			return nil, err
		}
		turns, err := in.Tagged()
		if err != nil {
			return nil, historyError(err)
		}
		if err := in.Close(); err != nil {
			return nil, historyError(err)
		}
		r := newReplay(rules, md)
		for i, t := range turns {
			if t.Mover != i%game.Seats {
				return nil, xerrors.Errorf("move %d tagged with player %d: %w", i, t.Mover, ErrHistory)
			}
			if err := r.apply(i, t.Mover, t.Move); err != nil {
				return nil, err
			}
		}
		return game.Encode(r.pub)
	}
}

// Agent returns the guest of the agent program. The trailing seat byte
// selects the seat whose moves are re-derived; the owner of every other move
// follows from its position. It outputs the flat move list.
func Agent(rules game.Reducer, agent game.Agent) zkvm.Guest {
	return func(stdin []byte) ([]byte, error) {
		in := input.NewReader(stdin)
		md, err := in.Metadata()
		if err != nil {
			return nil, err
		}
		moves, err := in.Flat()
		if err != nil {
			return nil, historyError(err)
		}
		seat, err := in.Seat()
		if err != nil {
			return nil, historyError(err)
		}
		if err := in.Close(); err != nil {
			return nil, historyError(err)
		}
		r := newReplay(rules, md)
		ctx := game.AgentContext(md, seat)
		for i, m := range moves {
			mover := i % game.Seats
			if mover == seat {
				if want := agent.Decide(r.pub, ctx); want != m {
					return nil, xerrors.Errorf("move %d is %d, agent plays %d: %w", i, m, want, ErrHistory)
				}
			}
			if err := r.apply(i, mover, m); err != nil {
				return nil, err
			}
		}
		return moves, nil
	}
}
