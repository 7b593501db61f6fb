package verify

import (
	"context"
	"testing"

	"github.com/dedis/zkarena/commit"
	"github.com/dedis/zkarena/connect4"
	"github.com/dedis/zkarena/game"
	"github.com/dedis/zkarena/guest"
	"github.com/dedis/zkarena/input"
	"github.com/dedis/zkarena/zkvm"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

func TestMain(m *testing.M) {
	log.MainTest(m)
}

var rules = connect4.Rules{}

func programs() Programs {
	return Programs{
		Game: guest.GameProgram(rules),
		Agents: [game.Seats]*zkvm.Program{
			guest.AgentProgram(rules, "random", connect4.Random),
			guest.AgentProgram(rules, "leftmost", connect4.Leftmost),
		},
	}
}

func run(t *testing.T) (*game.Record, *input.Inputs) {
	set, err := commit.Generate()
	require.NoError(t, err)
	md, err := set.Metadata()
	require.NoError(t, err)
	sim := &game.Simulator{
		Reducer: rules,
		Agents:  [game.Seats]game.Agent{connect4.Random, connect4.Leftmost},
	}
	rec, err := sim.Run(md)
	require.NoError(t, err)
	in, err := input.Assemble(md, rec)
	require.NoError(t, err)
	return rec, in
}

// tamper flips one byte of the input of a program before running it.
type tamper struct {
	zkvm.Env
	target *zkvm.Program
	offset func(input []byte) int
}

func (e *tamper) Execute(ctx context.Context, p *zkvm.Program, in []byte) (*zkvm.Receipt, error) {
	if p == e.target {
		in = append([]byte{}, in...)
		i := e.offset(in)
		in[i] = (in[i] + 1) % connect4.Cols
	}
	return e.Env.Execute(ctx, p, in)
}

func receipt(t *testing.T, s game.State) *zkvm.Receipt {
	buf, err := game.Encode(s)
	require.NoError(t, err)
	return &zkvm.Receipt{PublicValues: buf}
}

func requireMismatch(t *testing.T, err error, s Slot, c Check) {
	require.Error(t, err)
	require.True(t, xerrors.Is(err, ErrMismatch))
	var me *MismatchError
	require.True(t, xerrors.As(err, &me))
	require.Equal(t, s, me.Program)
	require.Equal(t, c, me.Check)
}

func TestVerifyAccepts(t *testing.T) {
	rec, in := run(t)
	v := &Verifier{Env: zkvm.NewNative(), Rules: rules, Programs: programs()}
	res, err := v.Verify(context.Background(), rec, in)
	require.NoError(t, err)
	require.True(t, res.Valid())
	require.Equal(t, in.Game, res.Input(Game))
	require.Equal(t, in.Agents[1], res.Input(Agent1))
	require.Equal(t, rec.Moves(), res.Output(Agent0))
	require.Equal(t, res.FinalState(), res.Output(Game))
	require.Equal(t, v.Programs.Agents[1], res.Program(AgentSlot(1)))

	var zero Verified
	require.False(t, zero.Valid())
	var missing *Verified
	require.False(t, missing.Valid())
}

func TestCheckGameDivergences(t *testing.T) {
	rec, _ := run(t)
	final := rec.Final.(*connect4.State)
	clone := func() *connect4.State {
		return &connect4.State{
			Board:   append([]uint32{}, final.Board...),
			Current: final.Current,
			Winner:  final.Winner,
			Moves:   append([]byte{}, final.Moves...),
		}
	}

	require.NoError(t, CheckGame(rules, rec, receipt(t, clone())))

	moves := clone()
	moves.Moves = moves.Moves[:len(moves.Moves)-1]
	requireMismatch(t, CheckGame(rules, rec, receipt(t, moves)), Game, CheckMoveList)

	open := clone()
	open.Winner = connect4.NoWinner
	requireMismatch(t, CheckGame(rules, rec, receipt(t, open)), Game, CheckTerminal)

	board := clone()
	for i, v := range board.Board {
		if v == 0 {
			board.Board[i] = 1
			break
		}
	}
	requireMismatch(t, CheckGame(rules, rec, receipt(t, board)), Game, CheckFinalState)

	garbage := &zkvm.Receipt{PublicValues: []byte{0xff, 0xff, 0xff}}
	requireMismatch(t, CheckGame(rules, rec, garbage), Game, CheckMoveList)
}

func TestCheckAgentDivergence(t *testing.T) {
	rec, _ := run(t)
	require.NoError(t, CheckAgent(Agent0, rec, &zkvm.Receipt{PublicValues: rec.Moves()}))

	moves := rec.Moves()
	moves[0] = (moves[0] + 1) % connect4.Cols
	requireMismatch(t, CheckAgent(Agent1, rec, &zkvm.Receipt{PublicValues: moves}), Agent1, CheckMoveList)
	requireMismatch(t, CheckAgent(Agent0, rec, &zkvm.Receipt{PublicValues: moves[1:]}), Agent0, CheckMoveList)
}

func TestVerifyTamperedHistory(t *testing.T) {
	rec, in := run(t)
	ps := programs()
	n := len(rec.Turns)

	cases := []struct {
		slot   Slot
		offset func([]byte) int
	}{
		{Game, func(b []byte) int { return len(b) - 2*n + 1 }},
		{Agent0, func(b []byte) int { return len(b) - 1 - n }},
		{Agent1, func(b []byte) int { return len(b) - n }},
	}
	for _, c := range cases {
		env := &tamper{Env: zkvm.NewNative(), target: ps.Get(c.slot), offset: c.offset}
		v := &Verifier{Env: env, Rules: rules, Programs: ps}
		res, err := v.Verify(context.Background(), rec, in)
		require.Nil(t, res)
		requireMismatch(t, err, c.slot, CheckMoveList)
	}
}

func TestVerifyBackendFailure(t *testing.T) {
	rec, in := run(t)
	ps := programs()
	ps.Agents[0] = zkvm.NewProgram("broken", []byte("broken"), nil)
	v := &Verifier{Env: zkvm.NewNative(), Rules: rules, Programs: ps}
	_, err := v.Verify(context.Background(), rec, in)
	require.True(t, xerrors.Is(err, zkvm.ErrBackend))
	require.False(t, xerrors.Is(err, ErrMismatch))
}

func TestVerifiedOwnsBytes(t *testing.T) {
	rec, in := run(t)
	v := &Verifier{Env: zkvm.NewNative(), Rules: rules, Programs: programs()}
	res, err := v.Verify(context.Background(), rec, in)
	require.NoError(t, err)

	gameIn := append([]byte{}, in.Game...)
	agentIn := append([]byte{}, in.Agents[0]...)
	// Byte 10 lies in the server commitment.
	in.Game[10] ^= 1
	in.Agents[0][10] ^= 1
	require.Equal(t, gameIn, res.Input(Game))
	require.Equal(t, agentIn, res.Input(Agent0))

	out := res.Output(Agent0)
	out[0] ^= 1
	require.Equal(t, rec.Moves(), res.Output(Agent0))
	final := res.FinalState()
	final[0] ^= 1
	require.Equal(t, res.Output(Game), res.FinalState())
}
