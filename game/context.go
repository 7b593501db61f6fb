package game

import (
	"encoding/binary"

	"github.com/dedis/zkarena/commit"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/xof/blake2xb"
)

// Streams drawn by agents and by the reducer are kept apart, so that a replay
// which only re-runs one seat's agent stays in step with the reducer.
const (
	agentDomain = "zkarena/agent/v1"
	rulesDomain = "zkarena/rules/v1"
)

// Context is what a participant knows while deciding or applying a move: its
// seat, the commitments it is bound to and a randomness stream derived from
// them.
type Context struct {
	Seat   int
	Server []byte
	Player []byte
	xof    kyber.XOF
}

// AgentContext returns the context handed to the agent of seat.
func AgentContext(md *commit.Metadata, seat int) *Context {
	return newContext(agentDomain, md, seat)
}

// RulesContext returns the context handed to the reducer when seat moves.
func RulesContext(md *commit.Metadata, seat int) *Context {
	return newContext(rulesDomain, md, seat)
}

func newContext(domain string, md *commit.Metadata, seat int) *Context {
	player := md.Players[seat].Commitment
	seed := make([]byte, 0, len(domain)+len(md.Server.Commitment)+len(player)+1)
	seed = append(seed, domain...)
	seed = append(seed, md.Server.Commitment...)
	seed = append(seed, player...)
	seed = append(seed, byte(seat))
	return &Context{
		Seat:   seat,
		Server: md.Server.Commitment,
		Player: player,
		xof:    blake2xb.New(seed),
	}
}

// Uint32 draws the next 32 bits of the stream.
func (c *Context) Uint32() uint32 {
	var buf [4]byte
	c.xof.Read(buf[:])
	return binary.LittleEndian.Uint32(buf[:])
}

// Intn draws a value in [0, n). n must be positive.
func (c *Context) Intn(n int) int {
	return int(c.Uint32() % uint32(n))
}
