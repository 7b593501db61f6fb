package zkvm

import (
	"context"
	"fmt"
	"time"

	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// Native runs programs as in-process guests.
type Native struct{}

// NewNative returns the in-process environment.
func NewNative() *Native {
	return &Native{}
}

// Execute implements Env.
func (n *Native) Execute(ctx context.Context, p *Program, input []byte) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.guest == nil {
		return nil, xerrors.Errorf("%s has no native guest: %w", p, ErrBackend)
	}
	start := time.Now()
	out, err := runGuest(p.guest, input)
	if err != nil {
		return nil, xerrors.Errorf("executing %s: %w", p, err)
	}
	r := &Receipt{
		PublicValues: out,
		Usage: Usage{
			InputBytes:  len(input),
			OutputBytes: len(out),
			Duration:    time.Since(start),
		},
	}
	log.Lvlf3("Executed %s: %d bytes in, %d bytes out, %v", p, len(input), len(out), r.Usage.Duration)
	return r, nil
}

// Prove implements Env.
func (n *Native) Prove(ctx context.Context, p *Program, kp *KeyPair, input []byte) (*Proof, error) {
	r, err := n.Execute(ctx, p, input)
	if err != nil {
		return nil, err
	}
	return ProveOutput(p, kp, input, r.PublicValues)
}

// runGuest turns a guest panic into an execution failure.
func runGuest(g Guest, input []byte) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = xerrors.Errorf("guest panicked: %v: %w", fmt.Sprint(r), ErrBackend)
		}
	}()
	return g(input)
}
