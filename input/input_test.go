package input

import (
	"bytes"
	"testing"

	"github.com/dedis/zkarena/commit"
	"github.com/dedis/zkarena/game"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

func TestMain(m *testing.M) {
	log.MainTest(m)
}

func metadata(t *testing.T) *commit.Metadata {
	set, err := commit.Generate()
	require.NoError(t, err)
	md, err := set.Metadata()
	require.NoError(t, err)
	return md
}

func readGame(buf []byte) (*commit.Metadata, []game.Turn, error) {
	r := NewReader(buf)
	md, err := r.Metadata()
	if err != nil {
		return nil, nil, err
	}
	turns, err := r.Tagged()
	if err != nil {
		return nil, nil, err
	}
	return md, turns, r.Close()
}

func readAgent(buf []byte) (*commit.Metadata, []byte, int, error) {
	r := NewReader(buf)
	md, err := r.Metadata()
	if err != nil {
		return nil, nil, 0, err
	}
	moves, err := r.Flat()
	if err != nil {
		return nil, nil, 0, err
	}
	seat, err := r.Seat()
	if err != nil {
		return nil, nil, 0, err
	}
	return md, moves, seat, r.Close()
}

func record(moves ...byte) *game.Record {
	rec := &game.Record{}
	for i, m := range moves {
		rec.Turns = append(rec.Turns, game.Turn{Mover: i % 2, Move: m})
	}
	return rec
}

func TestAssembleDeterministic(t *testing.T) {
	md := metadata(t)
	rec := record(3, 3, 4, 2, 6)
	a, err := Assemble(md, rec)
	require.NoError(t, err)

	clone := *md
	b, err := Assemble(&clone, record(3, 3, 4, 2, 6))
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestLayout(t *testing.T) {
	md := metadata(t)
	moves := []byte{3, 3, 4}
	in, err := Assemble(md, record(moves...))
	require.NoError(t, err)

	prefix := 4 + commit.Size + 4 + 2*(4+commit.Size)
	require.Len(t, in.Game, prefix+4+2*len(moves))
	require.Len(t, in.Agents[0], prefix+4+len(moves)+1)
	require.True(t, bytes.Equal(in.Game[:prefix], in.Agents[0][:prefix]))
	require.True(t, bytes.Equal(in.Agents[0][:len(in.Agents[0])-1], in.Agents[1][:len(in.Agents[1])-1]))
	require.Equal(t, byte(0), in.Agents[0][len(in.Agents[0])-1])
	require.Equal(t, byte(1), in.Agents[1][len(in.Agents[1])-1])

	require.Equal(t, []byte{3, 0, 0, 0, 0, 3, 1, 3, 0, 4}, in.Game[prefix:])
	require.Equal(t, []byte{3, 0, 0, 0, 3, 3, 4, 1}, in.Agents[1][prefix:])
}

func TestHistoryParity(t *testing.T) {
	md := metadata(t)
	moves := []byte{1, 5, 2, 2, 0, 6}
	in, err := Assemble(md, record(moves...))
	require.NoError(t, err)

	gmd, turns, err := readGame(in.Game)
	require.NoError(t, err)
	require.Equal(t, md, gmd)
	tagged := make([]byte, len(turns))
	for i, turn := range turns {
		require.Equal(t, i%2, turn.Mover)
		tagged[i] = turn.Move
	}

	for seat := range in.Agents {
		amd, flat, s, err := readAgent(in.Agents[seat])
		require.NoError(t, err)
		require.Equal(t, md, amd)
		require.Equal(t, seat, s)
		require.Equal(t, tagged, flat)
		require.Equal(t, moves, flat)
	}
}

func TestEmptyHistory(t *testing.T) {
	md := metadata(t)
	in, err := Assemble(md, &game.Record{})
	require.NoError(t, err)
	_, turns, err := readGame(in.Game)
	require.NoError(t, err)
	require.Empty(t, turns)
}

func TestAssembleInvalid(t *testing.T) {
	md := metadata(t)

	_, err := Assemble(md, nil)
	require.True(t, xerrors.Is(err, ErrInvalid))

	rec := record(1, 2)
	rec.Turns[1].Mover = 0
	_, err = Assemble(md, rec)
	require.True(t, xerrors.Is(err, ErrInvalid))

	bad := *md
	bad.Server.Commitment = []byte{1, 2, 3}
	_, err = Assemble(&bad, record(1))
	require.True(t, xerrors.Is(err, ErrInvalid))

	_, err = Agent(md, []byte{1}, 2)
	require.True(t, xerrors.Is(err, ErrInvalid))

	_, err = Game(md, make([]byte, MaxMoves+1))
	require.True(t, xerrors.Is(err, ErrInvalid))
}

func TestReadInvalid(t *testing.T) {
	md := metadata(t)
	buf, err := Agent(md, []byte{1, 2}, 1)
	require.NoError(t, err)

	_, _, _, err = readAgent(buf[:len(buf)-1])
	require.True(t, xerrors.Is(err, ErrInvalid))

	_, _, _, err = readAgent(append(append([]byte{}, buf...), 0))
	require.True(t, xerrors.Is(err, ErrInvalid))

	seat := append([]byte{}, buf...)
	seat[len(seat)-1] = 2
	_, _, _, err = readAgent(seat)
	require.True(t, xerrors.Is(err, ErrInvalid))

	_, _, err = readGame(buf[:10])
	require.True(t, xerrors.Is(err, ErrInvalid))

	// Byte 10 lies in the server commitment, which then leaves the curve.
	point := append([]byte{}, buf...)
	point[10] ^= 1
	_, _, _, err = readAgent(point)
	require.True(t, xerrors.Is(err, ErrInvalid))
}
