// Package store keeps proof bundles on disk so that a bundle refused by the
// ledger can be submitted again without proving anything twice.
package store

import (
	"encoding/hex"
	"time"

	"github.com/dedis/zkarena/settle"
	"github.com/dedis/zkarena/zkvm"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

var bucket = []byte("bundles")

// ErrNotFound is returned for unknown bundle ids.
var ErrNotFound = xerrors.New("bundle not found")

// Entry is a stored bundle with the full proofs and verifying keys behind it,
// indexed like verify.Slot.
type Entry struct {
	Bundle        settle.Bundle
	Proofs        []zkvm.Proof
	VerifyingKeys [][]byte
	Settled       bool
	Created       int64
}

// Store is a bbolt database of entries keyed by bundle id.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, xerrors.Errorf("couldn't open store %s: %v", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, xerrors.Errorf("couldn't create bucket: %v", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores e under the id of its bundle and returns that id.
func (s *Store) Put(e *Entry) ([]byte, error) {
	id, err := e.Bundle.ID()
	if err != nil {
		return nil, err
	}
	if e.Created == 0 {
		e.Created = time.Now().Unix()
	}
	if err := s.write(id, e); err != nil {
		return nil, err
	}
	log.Lvlf2("Stored bundle %s", hex.EncodeToString(id))
	return id, nil
}

func (s *Store) write(id []byte, e *Entry) error {
	buf, err := protobuf.Encode(e)
	if err != nil {
		return xerrors.Errorf("couldn't encode entry: %v", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(id, buf)
	})
}

// Get returns the entry stored under id.
func (s *Store) Get(id []byte) (*Entry, error) {
	var buf []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get(id)
		if v == nil {
			return xerrors.Errorf("%x: %w", id, ErrNotFound)
		}
		buf = append([]byte{}, v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	e := &Entry{}
	if err := protobuf.Decode(buf, e); err != nil {
		return nil, xerrors.Errorf("couldn't decode entry: %v", err)
	}
	return e, nil
}

// MarkSettled records that the bundle under id was accepted by the ledger.
func (s *Store) MarkSettled(id []byte) error {
	e, err := s.Get(id)
	if err != nil {
		return err
	}
	e.Settled = true
	return s.write(id, e)
}

// IDs lists the stored bundle ids in key order.
func (s *Store) IDs() ([][]byte, error) {
	var ids [][]byte
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, _ []byte) error {
			ids = append(ids, append([]byte{}, k...))
			return nil
		})
	})
	return ids, err
}
