// Package verify is the gate between simulation and proving. It executes the
// game program and both agent programs against their inputs, without
// proving, and checks every declared output against the reference record.
// Only a Verified value obtained from this package can be proven.
package verify

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dedis/zkarena/game"
	"github.com/dedis/zkarena/guest"
	"github.com/dedis/zkarena/input"
	"github.com/dedis/zkarena/zkvm"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// Slot names one of the three programs of a run.
type Slot int

const (
	Game Slot = iota
	Agent0
	Agent1
	// Slots is the number of programs in a run.
	Slots
)

func (s Slot) String() string {
	switch s {
	case Game:
		return "game"
	case Agent0:
		return "agent0"
	case Agent1:
		return "agent1"
	default:
		return "unknown"
	}
}

// AgentSlot returns the slot of the agent program of seat.
func AgentSlot(seat int) Slot {
	return Agent0 + Slot(seat)
}

// Check names a verification rule.
type Check int

const (
	// CheckMoveList compares a declared move list with the record's.
	CheckMoveList Check = iota
	// CheckTerminal requires the declared final state to be terminal.
	CheckTerminal
	// CheckFinalState compares the declared final state, byte for byte.
	CheckFinalState
)

func (c Check) String() string {
	switch c {
	case CheckMoveList:
		return "move list"
	case CheckTerminal:
		return "terminal state"
	case CheckFinalState:
		return "final state"
	default:
		return "unknown"
	}
}

// ErrMismatch is matched by every *MismatchError.
var ErrMismatch = xerrors.New("verification mismatch")

// MismatchError reports which check failed for which program.
type MismatchError struct {
	Program Slot
	Check   Check
	Detail  string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s program: %s mismatch: %s", e.Program, e.Check, e.Detail)
}

// Is makes MismatchError match ErrMismatch.
func (e *MismatchError) Is(target error) bool {
	return target == ErrMismatch
}

func mismatch(s Slot, c Check, format string, args ...interface{}) error {
	return &MismatchError{Program: s, Check: c, Detail: fmt.Sprintf(format, args...)}
}

// Programs are the three programs of a run.
type Programs struct {
	Game   *zkvm.Program
	Agents [game.Seats]*zkvm.Program
}

// Get returns the program in slot s.
func (p *Programs) Get(s Slot) *zkvm.Program {
	if s == Game {
		return p.Game
	}
	return p.Agents[s-Agent0]
}

// Verifier executes programs in an environment and checks their outputs.
type Verifier struct {
	Env      zkvm.Env
	Rules    game.Reducer
	Programs Programs
}

// Verified is an execution that passed every check. It holds its own copies
// of the inputs and outputs. Its zero value is not verified.
type Verified struct {
	programs [Slots]*zkvm.Program
	inputs   [Slots][]byte
	outputs  [Slots][]byte
	final    []byte
	ok       bool
}

// Valid reports whether v came out of a successful verification.
func (v *Verified) Valid() bool {
	return v != nil && v.ok
}

// Program returns the program verified in slot s.
func (v *Verified) Program(s Slot) *zkvm.Program {
	return v.programs[s]
}

// Input returns a copy of the input verified in slot s.
func (v *Verified) Input(s Slot) []byte {
	return clone(v.inputs[s])
}

// Output returns a copy of the public output declared in slot s.
func (v *Verified) Output(s Slot) []byte {
	return clone(v.outputs[s])
}

// FinalState returns a copy of the encoded final public state.
func (v *Verified) FinalState() []byte {
	return clone(v.final)
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

func inputFor(in *input.Inputs, s Slot) []byte {
	if s == Game {
		return in.Game
	}
	return in.Agents[s-Agent0]
}

// Verify executes the three programs against in and checks them against
// rec. It stops at the first failing program.
func (v *Verifier) Verify(ctx context.Context, rec *game.Record, in *input.Inputs) (*Verified, error) {
	if rec == nil || rec.Final == nil || in == nil {
		return nil, xerrors.New("missing record or inputs")
	}
	final, err := game.Encode(rec.Final)
	if err != nil {
		return nil, err
	}
	res := &Verified{final: final}
	for s := Game; s < Slots; s++ {
		p := v.Programs.Get(s)
		if p == nil {
			return nil, xerrors.Errorf("no %s program", s)
		}
		data := clone(inputFor(in, s))
		r, err := v.Env.Execute(ctx, p, data)
		if err != nil {
			if xerrors.Is(err, guest.ErrHistory) {
				return nil, mismatch(s, CheckMoveList, "%v", err)
			}
			return nil, xerrors.Errorf("executing %s program: %w", s, err)
		}
		if s == Game {
			err = CheckGame(v.Rules, rec, r)
		} else {
			err = CheckAgent(s, rec, r)
		}
		if err != nil {
			log.Lvlf1("Rejected %s program %s: %v", s, p, err)
			return nil, err
		}
		log.Lvlf2("Verified %s program %s (%d output bytes)", s, p, len(r.PublicValues))
		res.programs[s] = p
		res.inputs[s] = data
		res.outputs[s] = clone(r.PublicValues)
	}
	res.ok = true
	return res, nil
}

// CheckGame checks the receipt of the game program against rec.
func CheckGame(rules game.Reducer, rec *game.Record, r *zkvm.Receipt) error {
	// STEP 1: the output must be a public state with the record's history.
	state, err := rules.Decode(r.PublicValues)
	if err != nil {
		return mismatch(Game, CheckMoveList, "output is not a state: %v", err)
	}
	if want := rec.Moves(); !bytes.Equal(state.History(), want) {
		return mismatch(Game, CheckMoveList, "declared %v, recorded %v", state.History(), want)
	}
	// STEP 2: the game must be over.
	if !state.Terminal() {
		return mismatch(Game, CheckTerminal, "declared state is not terminal")
	}
	// STEP 3: the output must be the canonical encoding of the final state.
	want, err := game.Encode(rec.Final)
	if err != nil {
		return err
	}
	if !bytes.Equal(r.PublicValues, want) {
		return mismatch(Game, CheckFinalState, "declared %x, recorded %x", r.PublicValues, want)
	}
	return nil
}

// CheckAgent checks the receipt of the agent program in slot s against rec.
func CheckAgent(s Slot, rec *game.Record, r *zkvm.Receipt) error {
	if want := rec.Moves(); !bytes.Equal(r.PublicValues, want) {
		return mismatch(s, CheckMoveList, "declared %v, recorded %v", r.PublicValues, want)
	}
	return nil
}
