// Package game defines what the arbiter needs from a two-player game: a
// reducer applying moves to a public and a private state, and agents choosing
// moves from the public state. It also holds the reference simulator that
// plays agents against each other to produce the authoritative Record.
package game

import (
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

// Seats is the number of players.
const Seats = 2

// State is the public state of a game.
type State interface {
	// Terminal reports whether the game is over.
	Terminal() bool
	// History returns the moves applied so far, in order.
	History() []byte
}

// Reducer applies the rules of a game. Apply mutates pub and priv in place and
// must be a pure function of its arguments and of what it draws from ctx.
type Reducer interface {
	Name() string
	Initial() (pub State, priv interface{})
	Apply(pub State, priv interface{}, move byte, ctx *Context)
	// Decode parses a public state produced by Encode.
	Decode(buf []byte) (State, error)
}

// Agent decides the next move of its seat.
type Agent interface {
	Decide(pub State, ctx *Context) byte
}

// AgentFunc adapts a function to Agent.
type AgentFunc func(pub State, ctx *Context) byte

// Decide implements Agent.
func (f AgentFunc) Decide(pub State, ctx *Context) byte {
	return f(pub, ctx)
}

// Encode returns the canonical encoding of a public state.
func Encode(s State) ([]byte, error) {
	buf, err := protobuf.Encode(s)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode state: %v", err)
	}
	return buf, nil
}
