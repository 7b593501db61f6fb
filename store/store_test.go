package store

import (
	"path/filepath"
	"testing"

	"github.com/dedis/zkarena/settle"
	"github.com/dedis/zkarena/zkvm"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

func TestMain(m *testing.M) {
	log.MainTest(m)
}

func entry() *Entry {
	vk := make([]byte, 32)
	return &Entry{
		Bundle: settle.Bundle{
			AgentVKeys:  [][]byte{vk, vk},
			AgentProofs: [][]byte{[]byte("p0"), []byte("p1")},
			GameProof:   []byte("game"),
			PublicState: []byte("state"),
		},
		Proofs: []zkvm.Proof{
			{Program: []byte("g"), PublicValues: []byte("state"), Bytes: []byte("game")},
			{Program: []byte("a"), PublicValues: []byte{0, 1}, Bytes: []byte("p0")},
			{Program: []byte("a"), PublicValues: []byte{0, 1}, Bytes: []byte("p1")},
		},
		VerifyingKeys: [][]byte{[]byte("vk-g"), []byte("vk-a"), []byte("vk-a")},
	}
}

func TestPutGet(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "bundles.db"))
	require.NoError(t, err)
	defer s.Close()

	e := entry()
	id, err := s.Put(e)
	require.NoError(t, err)
	want, err := e.Bundle.ID()
	require.NoError(t, err)
	require.Equal(t, want, id)

	got, err := s.Get(id)
	require.NoError(t, err)
	require.Equal(t, e.Bundle.GameProof, got.Bundle.GameProof)
	require.Equal(t, e.Bundle.AgentProofs, got.Bundle.AgentProofs)
	require.Len(t, got.Proofs, 3)
	require.Equal(t, []byte("p1"), got.Proofs[2].Bytes)
	require.Equal(t, e.VerifyingKeys, got.VerifyingKeys)
	require.False(t, got.Settled)
	require.NotZero(t, got.Created)

	require.NoError(t, s.MarkSettled(id))
	got, err = s.Get(id)
	require.NoError(t, err)
	require.True(t, got.Settled)

	ids, err := s.IDs()
	require.NoError(t, err)
	require.Equal(t, [][]byte{id}, ids)
}

func TestNotFound(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "bundles.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get([]byte("missing"))
	require.True(t, xerrors.Is(err, ErrNotFound))
	require.True(t, xerrors.Is(s.MarkSettled([]byte("missing")), ErrNotFound))
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundles.db")
	s, err := Open(path)
	require.NoError(t, err)
	id, err := s.Put(entry())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(id)
	require.NoError(t, err)
	require.Equal(t, []byte("state"), got.Bundle.PublicState)
}
