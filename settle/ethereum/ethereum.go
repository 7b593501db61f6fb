// Package ethereum submits bundles to an arbitration contract on an
// Ethereum chain.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/dedis/zkarena/game"
	"github.com/dedis/zkarena/settle"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// ABI describes the submission entry point of the contract.
const ABI = `[{"type":"function","name":"submitGame","stateMutability":"nonpayable",
"inputs":[{"name":"agentVKeys","type":"bytes32[2]"},{"name":"agent0Proof","type":"bytes"},
{"name":"agent1Proof","type":"bytes"},{"name":"gameProof","type":"bytes"},
{"name":"publicState","type":"bytes"}],"outputs":[]}]`

// Method is the contract method called per bundle.
const Method = "submitGame"

var contractABI abi.ABI

func init() {
	var err error
	contractABI, err = abi.JSON(strings.NewReader(ABI))
	if err != nil {
		panic("invalid contract ABI: " + err.Error())
	}
}

// Account is the key that signs submissions.
type Account struct {
	Address    common.Address
	PrivateKey *ecdsa.PrivateKey
}

// NewAccount parses a hex-encoded private key.
func NewAccount(privateKey string) (*Account, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return nil, xerrors.Errorf("failed to decode private key: %v", err)
	}
	return &Account{
		Address:    crypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key,
	}, nil
}

// Backend is what the ledger needs from a chain connection.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Ledger implements settle.Ledger against one contract.
type Ledger struct {
	backend  Backend
	contract *bind.BoundContract
	account  *Account
	chainID  *big.Int
	Address  common.Address
}

// New binds the contract at address through backend.
func New(backend Backend, address common.Address, account *Account, chainID *big.Int) *Ledger {
	return &Ledger{
		backend:  backend,
		contract: bind.NewBoundContract(address, contractABI, backend, backend, backend),
		account:  account,
		chainID:  chainID,
		Address:  address,
	}
}

// Dial connects to the node at url.
func Dial(ctx context.Context, url string, address common.Address, account *Account, chainID *big.Int) (*Ledger, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, xerrors.Errorf("couldn't dial %s: %v", url, err)
	}
	return New(client, address, account, chainID), nil
}

func arguments(b *settle.Bundle) ([]interface{}, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	var vkeys [game.Seats][32]byte
	for i := range vkeys {
		copy(vkeys[i][:], b.AgentVKeys[i])
	}
	return []interface{}{vkeys, b.AgentProofs[0], b.AgentProofs[1], b.GameProof, b.PublicState}, nil
}

// Pack returns the calldata of the submission of b.
func Pack(b *settle.Bundle) ([]byte, error) {
	args, err := arguments(b)
	if err != nil {
		return nil, err
	}
	data, err := contractABI.Pack(Method, args...)
	if err != nil {
		return nil, xerrors.Errorf("failed to pack method: %v", err)
	}
	return data, nil
}

// Submit implements settle.Ledger. It sends one transaction and waits for
// it to be mined. A reverted transaction wraps settle.ErrRejected.
func (l *Ledger) Submit(ctx context.Context, b *settle.Bundle) error {
	args, err := arguments(b)
	if err != nil {
		return err
	}
	opts, err := bind.NewKeyedTransactorWithChainID(l.account.PrivateKey, l.chainID)
	if err != nil {
		return err
	}
	opts.Context = ctx
	tx, err := l.contract.Transact(opts, Method, args...)
	if err != nil {
		return err
	}
	log.Lvlf2("Sent %s to %s in %s", Method, l.Address.Hex(), tx.Hash().Hex())
	receipt, err := bind.WaitMined(ctx, l.backend, tx)
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return xerrors.Errorf("transaction %s reverted in block %v: %w",
			tx.Hash().Hex(), receipt.BlockNumber, settle.ErrRejected)
	}
	log.Lvlf1("Bundle settled in block %v", receipt.BlockNumber)
	return nil
}
