package zkvm

import (
	"bytes"
	"crypto/sha256"
	"io"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	cmimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	gnarklogger "github.com/consensys/gnark/logger"
	"github.com/consensys/gnark/std/hash/mimc"
	"github.com/rs/zerolog"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// bindingCircuit ties a program identity to the digests of one input stream
// and of the public output it produced. The program identity is compiled in
// as a constant, so every program gets its own key pair.
type bindingCircuit struct {
	Program frontend.Variable `gnark:",public"`
	Output  frontend.Variable `gnark:",public"`
	Binding frontend.Variable `gnark:",public"`
	Input   frontend.Variable

	ID *big.Int `gnark:"-"`
}

func (c *bindingCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(c.Program, c.ID)
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(c.Program, c.Input, c.Output)
	api.AssertIsEqual(c.Binding, h.Sum())
	return nil
}

var quietOnce sync.Once

// quiet silences the prover's own logger.
func quiet() {
	quietOnce.Do(func() {
		gnarklogger.Set(zerolog.New(io.Discard).Level(zerolog.Disabled))
	})
}

// Setup derives the key pair of p. It is slow and meant to be called through
// a setup cache.
func Setup(p *Program) (*KeyPair, error) {
	quiet()
	id := p.ID()
	circuit := &bindingCircuit{ID: digestElement(id[:])}
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return nil, xerrors.Errorf("couldn't compile circuit for %s: %v: %w", p, err, ErrBackend)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, xerrors.Errorf("couldn't run setup for %s: %v: %w", p, err, ErrBackend)
	}
	vkBuf, err := MarshalVerifyingKey(vk)
	if err != nil {
		return nil, err
	}
	log.Lvlf2("Derived key pair for %s (%d constraints)", p, ccs.GetNbConstraints())
	return &KeyPair{
		Program:      id,
		System:       ccs,
		ProvingKey:   pk,
		VerifyingKey: vk,
		VKeyHash:     sha256.Sum256(vkBuf),
	}, nil
}

// ProveOutput produces the proof that p turned input into output. Environments
// call it once they have obtained output by executing p.
func ProveOutput(p *Program, kp *KeyPair, input, output []byte) (*Proof, error) {
	if kp == nil || kp.Program != p.ID() {
		return nil, xerrors.Errorf("key pair does not belong to %s: %w", p, ErrBackend)
	}
	quiet()
	id := p.ID()
	inDigest := sha256.Sum256(input)
	outDigest := sha256.Sum256(output)
	binding := bindingOf(id[:], inDigest[:], outDigest[:])
	assignment := &bindingCircuit{
		Program: digestElement(id[:]),
		Output:  digestElement(outDigest[:]),
		Binding: binding,
		Input:   digestElement(inDigest[:]),
	}
	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, xerrors.Errorf("couldn't build witness: %v: %w", err, ErrBackend)
	}
	proof, err := groth16.Prove(kp.System, kp.ProvingKey, w)
	if err != nil {
		return nil, xerrors.Errorf("couldn't prove %s: %v: %w", p, err, ErrBackend)
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, xerrors.Errorf("couldn't serialize proof: %v: %w", err, ErrBackend)
	}
	out := &Proof{
		Program:      id[:],
		VKeyHash:     kp.VKeyHash[:],
		PublicValues: output,
		Binding:      binding.Bytes(),
		Bytes:        buf.Bytes(),
	}
	if sol, ok := proof.(interface{ MarshalSolidity() []byte }); ok {
		out.Solidity = sol.MarshalSolidity()
	}
	return out, nil
}

// Verify checks proof against the verifying key of the program it claims to
// come from.
func Verify(vk groth16.VerifyingKey, proof *Proof) error {
	if proof == nil {
		return xerrors.New("missing proof")
	}
	p := groth16.NewProof(ecc.BN254)
	if _, err := p.ReadFrom(bytes.NewReader(proof.Bytes)); err != nil {
		return xerrors.Errorf("couldn't decode proof: %v", err)
	}
	outDigest := sha256.Sum256(proof.PublicValues)
	assignment := &bindingCircuit{
		Program: digestElement(proof.Program),
		Output:  digestElement(outDigest[:]),
		Binding: new(big.Int).SetBytes(proof.Binding),
		Input:   0,
	}
	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return xerrors.Errorf("couldn't build public witness: %v", err)
	}
	if err := groth16.Verify(p, vk, w); err != nil {
		return xerrors.Errorf("proof rejected: %v", err)
	}
	return nil
}

// MarshalVerifyingKey serializes vk.
func MarshalVerifyingKey(vk groth16.VerifyingKey) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := vk.WriteTo(&buf); err != nil {
		return nil, xerrors.Errorf("couldn't serialize verifying key: %v: %w", err, ErrBackend)
	}
	return buf.Bytes(), nil
}

// UnmarshalVerifyingKey is the inverse of MarshalVerifyingKey.
func UnmarshalVerifyingKey(buf []byte) (groth16.VerifyingKey, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(buf)); err != nil {
		return nil, xerrors.Errorf("couldn't decode verifying key: %v", err)
	}
	return vk, nil
}

// digestElement maps a digest into the scalar field.
func digestElement(d []byte) *big.Int {
	var e fr.Element
	e.SetBytes(d)
	return e.BigInt(new(big.Int))
}

func bindingOf(digests ...[]byte) *big.Int {
	h := cmimc.NewMiMC()
	for _, d := range digests {
		var e fr.Element
		e.SetBytes(d)
		b := e.Bytes()
		h.Write(b[:])
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}
