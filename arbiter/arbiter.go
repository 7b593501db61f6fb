// Package arbiter runs the whole pipeline for one match: commitments,
// simulation, input assembly, verification, proving, storage and settlement.
// Every failure is returned as a *StageError naming the step that failed.
package arbiter

import (
	"context"
	"encoding/hex"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/dedis/zkarena/commit"
	"github.com/dedis/zkarena/connect4"
	"github.com/dedis/zkarena/game"
	"github.com/dedis/zkarena/guest"
	"github.com/dedis/zkarena/input"
	"github.com/dedis/zkarena/prove"
	"github.com/dedis/zkarena/settle"
	"github.com/dedis/zkarena/settle/ethereum"
	"github.com/dedis/zkarena/setup"
	"github.com/dedis/zkarena/store"
	"github.com/dedis/zkarena/verify"
	"github.com/dedis/zkarena/zkvm"
	"github.com/dedis/zkarena/zkvm/wasm"
	"github.com/ethereum/go-ethereum/common"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// Arbiter holds everything a match needs. Store and Ledger are optional: a
// nil Store keeps bundles in memory only and a nil Ledger skips settlement.
type Arbiter struct {
	Rules    game.Reducer
	Agents   [game.Seats]game.Agent
	Programs verify.Programs
	Env      zkvm.Env
	Keys     *setup.Cache
	Store    *store.Store
	Ledger   settle.Ledger
	MaxTurns int
	// Entropy seeds the commitments, crypto/rand when nil.
	Entropy io.Reader

	closers []func(context.Context) error
}

// Result is what a successful run produced.
type Result struct {
	Metadata *commit.Metadata
	Record   *game.Record
	Inputs   *input.Inputs
	Proofs   *prove.Proofs
	Bundle   *settle.Bundle
	ID       []byte
	Settled  bool
}

// New builds an arbiter from a configuration. Close releases what it opened.
func New(ctx context.Context, cfg *Config) (*Arbiter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	a := &Arbiter{
		Rules:    connect4.Rules{},
		Keys:     setup.New(nil),
		MaxTurns: cfg.MaxTurns,
	}
	for seat, name := range cfg.Agents {
		agent, err := NewAgent(name, cfg.Depth)
		if err != nil {
			return nil, err
		}
		a.Agents[seat] = agent
	}

	err := a.loadPrograms(ctx, cfg)
	if err == nil && cfg.Store != "" {
		a.Store, err = store.Open(cfg.Store)
		if err == nil {
			a.closers = append(a.closers, func(context.Context) error { return a.Store.Close() })
		}
	}
	if err == nil && cfg.Ledger.URL != "" {
		a.Ledger, err = dialLedger(ctx, &cfg.Ledger)
	}
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *Arbiter) loadPrograms(ctx context.Context, cfg *Config) error {
	if cfg.Backend == BackendNative {
		a.Env = zkvm.NewNative()
		a.Programs.Game = guest.GameProgram(a.Rules)
		for seat, name := range cfg.Agents {
			a.Programs.Agents[seat] = guest.AgentProgram(a.Rules, name, a.Agents[seat])
		}
		return nil
	}

	env, err := wasm.New(ctx)
	if err != nil {
		return err
	}
	a.Env = env
	a.closers = append(a.closers, env.Close)
	a.Programs.Game, err = readProgram(cfg.Programs.Game)
	if err != nil {
		return err
	}
	for seat, path := range cfg.Programs.Agents {
		a.Programs.Agents[seat], err = readProgram(path)
		if err != nil {
			return err
		}
	}
	return nil
}

func readProgram(path string) (*zkvm.Program, error) {
	bin, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("couldn't read program: %v", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return zkvm.NewProgram(name, bin, nil), nil
}

func dialLedger(ctx context.Context, cfg *LedgerConfig) (settle.Ledger, error) {
	if !common.IsHexAddress(cfg.Contract) {
		return nil, xerrors.Errorf("invalid contract address %q", cfg.Contract)
	}
	key, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, xerrors.Errorf("couldn't read key file: %v", err)
	}
	acct, err := ethereum.NewAccount(strings.TrimSpace(string(key)))
	if err != nil {
		return nil, err
	}
	log.Lvlf2("Settling on %s as %s", cfg.URL, acct.Address.Hex())
	return ethereum.Dial(ctx, cfg.URL, common.HexToAddress(cfg.Contract), acct,
		big.NewInt(cfg.ChainID))
}

// Close releases the backend and the store.
func (a *Arbiter) Close(ctx context.Context) error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// Simulate draws fresh commitments and plays one game.
func (a *Arbiter) Simulate() (*commit.Metadata, *game.Record, error) {
	var set *commit.Set
	var err error
	if a.Entropy != nil {
		set, err = commit.GenerateFrom(a.Entropy)
	} else {
		set, err = commit.Generate()
	}
	if err != nil {
		return nil, nil, fail(StageCommitment, err)
	}
	md, err := set.Metadata()
	if err != nil {
		return nil, nil, fail(StageCommitment, err)
	}
	sim := &game.Simulator{Reducer: a.Rules, Agents: a.Agents, MaxTurns: a.MaxTurns}
	rec, err := sim.Run(md)
	if err != nil {
		return nil, nil, fail(StageSimulation, err)
	}
	return md, rec, nil
}

// Run plays, verifies, proves and settles one match. Nothing is proved unless
// every program reproduced the simulation, and nothing is submitted unless
// every proof was produced.
func (a *Arbiter) Run(ctx context.Context) (*Result, error) {
	md, rec, err := a.Simulate()
	if err != nil {
		return nil, err
	}
	return a.Settle(ctx, md, rec)
}

// Settle runs the pipeline from a finished game onwards.
func (a *Arbiter) Settle(ctx context.Context, md *commit.Metadata, rec *game.Record) (*Result, error) {
	res := &Result{Metadata: md, Record: rec}

	in, err := input.Assemble(md, rec)
	if err != nil {
		return nil, fail(StageAssembly, err)
	}
	res.Inputs = in

	verifier := &verify.Verifier{Env: a.Env, Rules: a.Rules, Programs: a.Programs}
	v, err := verifier.Verify(ctx, rec, in)
	if err != nil {
		return nil, fail(StageVerification, err)
	}

	gen := &prove.Generator{Keys: a.Keys, Env: a.Env}
	res.Proofs, err = gen.Generate(ctx, v)
	if err != nil {
		if xerrors.Is(err, setup.ErrDerivation) {
			return nil, fail(StageSetup, err)
		}
		return nil, fail(StageProving, err)
	}

	res.Bundle, err = settle.NewBundle(res.Proofs)
	if err != nil {
		return nil, fail(StageProving, err)
	}
	res.ID, err = a.store(res.Proofs, res.Bundle)
	if err != nil {
		return nil, fail(StageStorage, err)
	}

	if a.Ledger == nil {
		log.Lvl2("No ledger configured, bundle kept for later submission")
		return res, nil
	}
	if err := a.submit(ctx, res.ID, res.Bundle); err != nil {
		return res, err
	}
	res.Settled = true
	return res, nil
}

func (a *Arbiter) store(p *prove.Proofs, b *settle.Bundle) ([]byte, error) {
	if a.Store == nil {
		return b.ID()
	}
	e := &store.Entry{Bundle: *b}
	for s := verify.Game; s < verify.Slots; s++ {
		vk, err := zkvm.MarshalVerifyingKey(p.Keys[s].VerifyingKey)
		if err != nil {
			return nil, err
		}
		e.Proofs = append(e.Proofs, *p.Proofs[s])
		e.VerifyingKeys = append(e.VerifyingKeys, vk)
	}
	return a.Store.Put(e)
}

func (a *Arbiter) submit(ctx context.Context, id []byte, b *settle.Bundle) error {
	if err := settle.Submit(ctx, a.Ledger, b); err != nil {
		return fail(StageSettlement, err)
	}
	if a.Store != nil {
		if err := a.Store.MarkSettled(id); err != nil {
			return fail(StageStorage, err)
		}
	}
	return nil
}

// Resubmit sends a stored bundle to the ledger again. No proof is recomputed.
func (a *Arbiter) Resubmit(ctx context.Context, id []byte) error {
	if a.Store == nil || a.Ledger == nil {
		return fail(StageSettlement, xerrors.New("resubmission needs a store and a ledger"))
	}
	e, err := a.Store.Get(id)
	if err != nil {
		return fail(StageStorage, err)
	}
	if e.Settled {
		log.Lvlf1("Bundle %s is already settled", hex.EncodeToString(id))
		return nil
	}
	return a.submit(ctx, id, &e.Bundle)
}

// VerifyStored checks every proof of a stored bundle against its verifying
// key.
func (a *Arbiter) VerifyStored(id []byte) error {
	if a.Store == nil {
		return fail(StageStorage, xerrors.New("no store configured"))
	}
	e, err := a.Store.Get(id)
	if err != nil {
		return fail(StageStorage, err)
	}
	if len(e.Proofs) != int(verify.Slots) || len(e.VerifyingKeys) != int(verify.Slots) {
		return fail(StageStorage, xerrors.Errorf("entry holds %d proofs and %d keys",
			len(e.Proofs), len(e.VerifyingKeys)))
	}
	for s := verify.Game; s < verify.Slots; s++ {
		vk, err := zkvm.UnmarshalVerifyingKey(e.VerifyingKeys[s])
		if err != nil {
			return fail(StageProving, err)
		}
		if err := zkvm.Verify(vk, &e.Proofs[s]); err != nil {
			return fail(StageProving, xerrors.Errorf("%s proof: %v", s, err))
		}
	}
	return nil
}
