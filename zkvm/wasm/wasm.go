// Package wasm executes program binaries compiled to WASI modules. The input
// stream is the module's stdin and its stdout is the public output.
package wasm

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/dedis/zkarena/zkvm"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// Env is a WASI environment. Compiled modules are kept per program identity
// until Close.
type Env struct {
	runtime wazero.Runtime

	sync.Mutex
	compiled map[zkvm.ID]wazero.CompiledModule
}

// New returns an environment with a fresh runtime.
func New(ctx context.Context) (*Env, error) {
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().
		WithCompilationCache(wazero.NewCompilationCache()))
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		r.Close(ctx)
		return nil, xerrors.Errorf("couldn't instantiate WASI: %v: %w", err, zkvm.ErrBackend)
	}
	return &Env{runtime: r, compiled: make(map[zkvm.ID]wazero.CompiledModule)}, nil
}

// Close releases the runtime and every compiled module.
func (e *Env) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

func (e *Env) compile(ctx context.Context, p *zkvm.Program) (wazero.CompiledModule, error) {
	e.Lock()
	defer e.Unlock()
	if cm, ok := e.compiled[p.ID()]; ok {
		return cm, nil
	}
	cm, err := e.runtime.CompileModule(ctx, p.Binary)
	if err != nil {
		return nil, xerrors.Errorf("couldn't compile %s: %v: %w", p, err, zkvm.ErrBackend)
	}
	e.compiled[p.ID()] = cm
	return cm, nil
}

// Execute implements zkvm.Env.
func (e *Env) Execute(ctx context.Context, p *zkvm.Program, input []byte) (*zkvm.Receipt, error) {
	cm, err := e.compile(ctx, p)
	if err != nil {
		return nil, err
	}
	var stdout, stderr bytes.Buffer
	cfg := wazero.NewModuleConfig().
		WithName("").
		WithArgs(p.Name).
		WithStdin(bytes.NewReader(input)).
		WithStdout(&stdout).
		WithStderr(&stderr)
	start := time.Now()
	mod, err := e.runtime.InstantiateModule(ctx, cm, cfg)
	if mod != nil {
		defer mod.Close(ctx)
	}
	if err != nil {
		exit, ok := err.(*sys.ExitError)
		if !ok || exit.ExitCode() != 0 {
			return nil, xerrors.Errorf("executing %s: %v (stderr: %q): %w",
				p, err, stderr.String(), zkvm.ErrBackend)
		}
	}
	out := stdout.Bytes()
	r := &zkvm.Receipt{
		PublicValues: out,
		Usage: zkvm.Usage{
			InputBytes:  len(input),
			OutputBytes: len(out),
			Duration:    time.Since(start),
		},
	}
	log.Lvlf3("Executed %s under WASI: %d bytes in, %d bytes out", p, len(input), len(out))
	return r, nil
}

// Prove implements zkvm.Env.
func (e *Env) Prove(ctx context.Context, p *zkvm.Program, kp *zkvm.KeyPair, input []byte) (*zkvm.Proof, error) {
	r, err := e.Execute(ctx, p, input)
	if err != nil {
		return nil, err
	}
	return zkvm.ProveOutput(p, kp, input, r.PublicValues)
}
