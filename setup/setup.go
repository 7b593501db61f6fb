// Package setup memoizes the key pair of every program identity. A key pair
// is derived at most once per identity for the lifetime of a Cache, however
// many callers ask for it concurrently.
package setup

import (
	"sync"

	"github.com/dedis/zkarena/zkvm"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/xerrors"
)

// ErrDerivation is wrapped by every failed derivation. Failures are not
// cached.
var ErrDerivation = xerrors.New("key pair derivation failed")

// DeriveFn derives the key pair of a program.
type DeriveFn func(p *zkvm.Program) (*zkvm.KeyPair, error)

// Cache maps program identities to key pairs.
type Cache struct {
	derive DeriveFn
	group  singleflight.Group

	sync.RWMutex
	pairs map[zkvm.ID]*zkvm.KeyPair
}

// New returns an empty cache using derive on misses. A nil derive uses
// zkvm.Setup.
func New(derive DeriveFn) *Cache {
	if derive == nil {
		derive = zkvm.Setup
	}
	return &Cache{
		derive: derive,
		pairs:  make(map[zkvm.ID]*zkvm.KeyPair),
	}
}

func (c *Cache) lookup(id zkvm.ID) (*zkvm.KeyPair, bool) {
	c.RLock()
	defer c.RUnlock()
	kp, ok := c.pairs[id]
	return kp, ok
}

// Get returns the key pair of p, deriving it on the first request. Callers
// asking for an identity under derivation wait for that derivation and share
// its result.
func (c *Cache) Get(p *zkvm.Program) (*zkvm.KeyPair, error) {
	id := p.ID()
	if kp, ok := c.lookup(id); ok {
		return kp, nil
	}
	v, err, shared := c.group.Do(id.String(), func() (interface{}, error) {
		if kp, ok := c.lookup(id); ok {
			return kp, nil
		}
		log.Lvlf2("Deriving key pair for %s", p)
		kp, err := c.derive(p)
		if err != nil {
			return nil, err
		}
		c.Lock()
		c.pairs[id] = kp
		c.Unlock()
		return kp, nil
	})
	if err != nil {
		return nil, xerrors.Errorf("%s: %v: %w", p, err, ErrDerivation)
	}
	if shared {
		log.Lvlf3("Shared key pair derivation for %s", p)
	}
	return v.(*zkvm.KeyPair), nil
}

// Len returns the number of cached key pairs.
func (c *Cache) Len() int {
	c.RLock()
	defer c.RUnlock()
	return len(c.pairs)
}
