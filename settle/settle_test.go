package settle

import (
	"bytes"
	"context"
	"testing"

	"github.com/dedis/zkarena/prove"
	"github.com/dedis/zkarena/verify"
	"github.com/dedis/zkarena/zkvm"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

func TestMain(m *testing.M) {
	log.MainTest(m)
}

type ledger struct {
	got []*Bundle
	err error
}

func (l *ledger) Submit(_ context.Context, b *Bundle) error {
	l.got = append(l.got, b)
	return l.err
}

func proofs() *prove.Proofs {
	p := &prove.Proofs{FinalState: []byte("state")}
	for s := verify.Game; s < verify.Slots; s++ {
		kp := &zkvm.KeyPair{}
		kp.VKeyHash[0] = byte(s)
		p.Keys[s] = kp
		p.Proofs[s] = &zkvm.Proof{Bytes: []byte{byte(s)}}
	}
	p.Proofs[verify.Agent1].Solidity = []byte("solidity")
	return p
}

func TestNewBundle(t *testing.T) {
	b, err := NewBundle(proofs())
	require.NoError(t, err)
	require.NoError(t, b.Validate())
	require.Equal(t, []byte{0}, b.GameProof)
	require.Equal(t, []byte{1}, b.AgentProofs[0])
	require.Equal(t, []byte("solidity"), b.AgentProofs[1])
	require.Equal(t, byte(2), b.AgentVKeys[1][0])
	require.Equal(t, []byte("state"), b.PublicState)

	id, err := b.ID()
	require.NoError(t, err)
	again, err := b.ID()
	require.NoError(t, err)
	require.True(t, bytes.Equal(id, again))

	p := proofs()
	p.Proofs[verify.Agent0] = nil
	_, err = NewBundle(p)
	require.Error(t, err)
}

func TestSubmit(t *testing.T) {
	b, err := NewBundle(proofs())
	require.NoError(t, err)

	l := &ledger{}
	require.NoError(t, Submit(context.Background(), l, b))
	require.Len(t, l.got, 1)
	require.True(t, l.got[0] == b)
}

func TestSubmitErrorsVerbatim(t *testing.T) {
	b, err := NewBundle(proofs())
	require.NoError(t, err)

	refused := xerrors.Errorf("status 0: %w", ErrRejected)
	l := &ledger{err: refused}
	err = Submit(context.Background(), l, b)
	require.True(t, err == refused)
	require.True(t, xerrors.Is(err, ErrRejected))
	require.Len(t, l.got, 1)
}

func TestSubmitInvalid(t *testing.T) {
	b, err := NewBundle(proofs())
	require.NoError(t, err)
	b.AgentVKeys = b.AgentVKeys[:1]

	l := &ledger{}
	require.Error(t, Submit(context.Background(), l, b))
	require.Empty(t, l.got)
}
