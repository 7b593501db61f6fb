// Package prove turns a verified run into three proofs. It only accepts
// values produced by the verify package, so unverified inputs can never reach
// the proving backend.
package prove

import (
	"bytes"
	"context"
	"time"

	"github.com/dedis/zkarena/setup"
	"github.com/dedis/zkarena/verify"
	"github.com/dedis/zkarena/zkvm"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// ErrUnverified is returned for inputs that did not pass verification.
var ErrUnverified = xerrors.New("input has not been verified")

// Proofs are the proofs of one run, indexed by verify.Slot, with the key
// pairs they were made with.
type Proofs struct {
	Proofs     [verify.Slots]*zkvm.Proof
	Keys       [verify.Slots]*zkvm.KeyPair
	FinalState []byte
}

// Generator proves verified runs. Key pairs come from Keys and proofs from
// Env.
type Generator struct {
	Keys *setup.Cache
	Env  zkvm.Env
}

// Generate proves the three programs of v in turn. Every step runs once;
// the first failure aborts the whole run and no proof is returned.
func (g *Generator) Generate(ctx context.Context, v *verify.Verified) (*Proofs, error) {
	if !v.Valid() {
		return nil, ErrUnverified
	}
	out := &Proofs{FinalState: v.FinalState()}
	for s := verify.Game; s < verify.Slots; s++ {
		p := v.Program(s)
		kp, err := g.Keys.Get(p)
		if err != nil {
			return nil, err
		}
		start := time.Now()
		proof, err := g.Env.Prove(ctx, p, kp, v.Input(s))
		if err != nil {
			return nil, xerrors.Errorf("proving %s program: %w", s, err)
		}
		if !bytes.Equal(proof.PublicValues, v.Output(s)) {
			return nil, xerrors.Errorf("%s program proved an output it was not verified with: %w",
				s, zkvm.ErrBackend)
		}
		log.Lvlf1("Proved %s program %s in %v (%d bytes)", s, p, time.Since(start), len(proof.Bytes))
		out.Proofs[s] = proof
		out.Keys[s] = kp
	}
	return out, nil
}
