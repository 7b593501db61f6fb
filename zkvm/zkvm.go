// Package zkvm is the verifiable-execution environment of the arbiter. A
// Program is executed against an input stream to obtain a Receipt, and proven
// against its KeyPair to obtain a Proof that anyone holding the verifying key
// can check without re-running the program.
package zkvm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"golang.org/x/xerrors"
)

// ErrBackend is wrapped by every failure of the execution or proving
// backend.
var ErrBackend = xerrors.New("zkvm backend failure")

// ID is the identity of a program: the sha256 of its binary.
type ID [sha256.Size]byte

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Guest is the in-process form of a verifiable program. It reads its whole
// input stream and returns its public output.
type Guest func(stdin []byte) ([]byte, error)

// Program is an executable program together with the binary that identifies
// it. Programs built for the native environment carry a descriptor as binary.
type Program struct {
	Name   string
	Binary []byte
	guest  Guest
	id     ID
}

// NewProgram returns a program named name, identified by binary. The guest
// may be nil for programs that only run in an environment interpreting the
// binary.
func NewProgram(name string, binary []byte, guest Guest) *Program {
	return &Program{
		Name:   name,
		Binary: binary,
		guest:  guest,
		id:     sha256.Sum256(binary),
	}
}

// ID returns the identity of the program.
func (p *Program) ID() ID {
	return p.id
}

func (p *Program) String() string {
	return p.Name + "/" + p.id.String()[:16]
}

// Usage reports the resources consumed by one execution.
type Usage struct {
	InputBytes  int
	OutputBytes int
	Duration    time.Duration
}

// Receipt is the result of executing a program without proving it.
type Receipt struct {
	PublicValues []byte
	Usage        Usage
}

// KeyPair is the proving material of one program. It is immutable once
// derived.
type KeyPair struct {
	Program      ID
	System       constraint.ConstraintSystem
	ProvingKey   groth16.ProvingKey
	VerifyingKey groth16.VerifyingKey
	VKeyHash     [sha256.Size]byte
}

// Proof is the evidence that a program produced PublicValues from some input.
// It only verifies against the key pair it was produced with.
type Proof struct {
	Program      []byte
	VKeyHash     []byte
	PublicValues []byte
	Binding      []byte
	Bytes        []byte
	Solidity     []byte
}

// Calldata returns the encoding submitted to a ledger: the Solidity form when
// the backend provides one.
func (p *Proof) Calldata() []byte {
	if len(p.Solidity) > 0 {
		return p.Solidity
	}
	return p.Bytes
}

// Env executes and proves programs.
type Env interface {
	// Execute runs p against input and returns its receipt.
	Execute(ctx context.Context, p *Program, input []byte) (*Receipt, error)
	// Prove runs p against input and proves the execution with kp.
	Prove(ctx context.Context, p *Program, kp *KeyPair, input []byte) (*Proof, error)
}
