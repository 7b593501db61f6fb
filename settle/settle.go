// Package settle hands the proofs of a run to a ledger. The ledger is an
// external collaborator: only its call and its answer matter here.
package settle

import (
	"context"
	"crypto/sha256"

	"github.com/dedis/zkarena/game"
	"github.com/dedis/zkarena/prove"
	"github.com/dedis/zkarena/verify"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

// ErrRejected is wrapped by ledgers that received a submission and refused
// it.
var ErrRejected = xerrors.New("submission rejected by the ledger")

// Bundle is what a ledger receives for one run. AgentVKeys holds the hash of
// each agent's verifying key, by seat.
type Bundle struct {
	AgentVKeys  [][]byte
	AgentProofs [][]byte
	GameProof   []byte
	PublicState []byte
}

// Ledger accepts bundles.
type Ledger interface {
	Submit(ctx context.Context, b *Bundle) error
}

// NewBundle packs the proofs of a run.
func NewBundle(p *prove.Proofs) (*Bundle, error) {
	b := &Bundle{PublicState: p.FinalState}
	for s := verify.Game; s < verify.Slots; s++ {
		if p.Proofs[s] == nil || p.Keys[s] == nil {
			return nil, xerrors.Errorf("missing %s proof", s)
		}
	}
	b.GameProof = p.Proofs[verify.Game].Calldata()
	for seat := 0; seat < game.Seats; seat++ {
		s := verify.AgentSlot(seat)
		b.AgentVKeys = append(b.AgentVKeys, p.Keys[s].VKeyHash[:])
		b.AgentProofs = append(b.AgentProofs, p.Proofs[s].Calldata())
	}
	return b, nil
}

// Validate checks the shape of b.
func (b *Bundle) Validate() error {
	if len(b.AgentVKeys) != game.Seats || len(b.AgentProofs) != game.Seats {
		return xerrors.Errorf("bundle holds %d keys and %d agent proofs",
			len(b.AgentVKeys), len(b.AgentProofs))
	}
	for i, vk := range b.AgentVKeys {
		if len(vk) != sha256.Size {
			return xerrors.Errorf("agent %d key hash has %d bytes", i, len(vk))
		}
	}
	if len(b.GameProof) == 0 || len(b.PublicState) == 0 {
		return xerrors.New("bundle misses the game proof or the public state")
	}
	return nil
}

// ID returns the hash of the encoded bundle.
func (b *Bundle) ID() ([]byte, error) {
	buf, err := protobuf.Encode(b)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode bundle: %v", err)
	}
	h := sha256.Sum256(buf)
	return h[:], nil
}

// Submit sends b to l once. Ledger errors are returned unchanged.
func Submit(ctx context.Context, l Ledger, b *Bundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	log.Lvlf1("Submitting bundle: game proof %d bytes, public state %d bytes",
		len(b.GameProof), len(b.PublicState))
	if err := l.Submit(ctx, b); err != nil {
		log.Errorf("Ledger refused bundle: %v", err)
		return err
	}
	log.Lvl1("Bundle settled")
	return nil
}
