package guest

import (
	"testing"

	"github.com/dedis/zkarena/commit"
	"github.com/dedis/zkarena/connect4"
	"github.com/dedis/zkarena/game"
	"github.com/dedis/zkarena/input"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

func TestMain(m *testing.M) {
	log.MainTest(m)
}

type fixture struct {
	md  *commit.Metadata
	rec *game.Record
	in  *input.Inputs
}

func newFixture(t *testing.T) *fixture {
	set, err := commit.Generate()
	require.NoError(t, err)
	md, err := set.Metadata()
	require.NoError(t, err)
	sim := &game.Simulator{
		Reducer: connect4.Rules{},
		Agents:  [game.Seats]game.Agent{connect4.Random, connect4.Minimax(2)},
	}
	rec, err := sim.Run(md)
	require.NoError(t, err)
	in, err := input.Assemble(md, rec)
	require.NoError(t, err)
	return &fixture{md: md, rec: rec, in: in}
}

func TestGameReplay(t *testing.T) {
	f := newFixture(t)
	out, err := Game(connect4.Rules{})(f.in.Game)
	require.NoError(t, err)
	want, err := game.Encode(f.rec.Final)
	require.NoError(t, err)
	require.Equal(t, want, out)
}

func TestAgentReplay(t *testing.T) {
	f := newFixture(t)
	agents := []game.Agent{connect4.Random, connect4.Minimax(2)}
	for seat, a := range agents {
		out, err := Agent(connect4.Rules{}, a)(f.in.Agents[seat])
		require.NoError(t, err)
		require.Equal(t, f.rec.Moves(), out)
	}

	other := game.AgentFunc(func(game.State, *game.Context) byte {
		return (f.rec.Turns[0].Move + 1) % connect4.Cols
	})
	_, err := Agent(connect4.Rules{}, other)(f.in.Agents[0])
	require.True(t, xerrors.Is(err, ErrHistory))
}

func TestAgentTamperedMove(t *testing.T) {
	f := newFixture(t)
	buf := append([]byte{}, f.in.Agents[0]...)
	// The first move belongs to seat 0 and sits right after the move count.
	first := len(buf) - 1 - len(f.rec.Turns)
	buf[first] = (buf[first] + 1) % connect4.Cols
	_, err := Agent(connect4.Rules{}, connect4.Random)(buf)
	require.True(t, xerrors.Is(err, ErrHistory))
}

func TestGameTamperedTag(t *testing.T) {
	f := newFixture(t)
	buf := append([]byte{}, f.in.Game...)
	tags := len(buf) - 2*len(f.rec.Turns)
	buf[tags] = 1
	_, err := Game(connect4.Rules{})(buf)
	require.True(t, xerrors.Is(err, ErrHistory))
}

func TestGameMovesAfterEnd(t *testing.T) {
	f := newFixture(t)
	moves := append(f.rec.Moves(), 3, 3)
	buf, err := input.Game(f.md, moves)
	require.NoError(t, err)
	_, err = Game(connect4.Rules{})(buf)
	require.True(t, xerrors.Is(err, ErrHistory))
}

func TestTruncatedHistory(t *testing.T) {
	f := newFixture(t)
	_, err := Agent(connect4.Rules{}, connect4.Random)(f.in.Agents[0][:len(f.in.Agents[0])-3])
	require.True(t, xerrors.Is(err, ErrHistory))

	_, err = Game(connect4.Rules{})(f.in.Game[:10])
	require.True(t, xerrors.Is(err, input.ErrInvalid))
}

func TestMalformedCommitment(t *testing.T) {
	f := newFixture(t)
	buf := append([]byte{}, f.in.Game...)
	buf[10] ^= 1
	_, err := Game(connect4.Rules{})(buf)
	require.True(t, xerrors.Is(err, input.ErrInvalid))
	require.False(t, xerrors.Is(err, ErrHistory))

	buf = append([]byte{}, f.in.Agents[1]...)
	buf[10] ^= 1
	_, err = Agent(connect4.Rules{}, connect4.Minimax(2))(buf)
	require.True(t, xerrors.Is(err, input.ErrInvalid))
}

func TestIgnoredMoveInHistory(t *testing.T) {
	f := newFixture(t)
	buf, err := input.Game(f.md, []byte{3, 9})
	require.NoError(t, err)
	_, err = Game(connect4.Rules{})(buf)
	require.True(t, xerrors.Is(err, ErrHistory))

	buf, err = input.Agent(f.md, []byte{3, 9}, 0)
	require.NoError(t, err)
	always3 := game.AgentFunc(func(game.State, *game.Context) byte { return 3 })
	_, err = Agent(connect4.Rules{}, always3)(buf)
	require.True(t, xerrors.Is(err, ErrHistory))
}

func TestProgramIdentity(t *testing.T) {
	a := AgentProgram(connect4.Rules{}, "random", connect4.Random)
	b := AgentProgram(connect4.Rules{}, "minimax", connect4.Minimax(2))
	g := GameProgram(connect4.Rules{})
	require.NotEqual(t, a.ID(), b.ID())
	require.NotEqual(t, a.ID(), g.ID())
	require.Equal(t, a.ID(), AgentProgram(connect4.Rules{}, "random", connect4.Random).ID())
}
