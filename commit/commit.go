// Package commit generates the per-run randomness of the server and of the
// two players. Every participant draws a private scalar s and publishes the
// bn256 G1 point s*G. The point hides s under the discrete-log assumption and
// can be checked against s if s is ever disclosed.
package commit

import (
	"crypto/rand"
	"io"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing"
	"golang.org/x/xerrors"
)

// Role identifies a participant of a run.
type Role int

const (
	Server Role = iota
	Player0
	Player1
)

func (r Role) String() string {
	switch r {
	case Server:
		return "server"
	case Player0:
		return "player0"
	case Player1:
		return "player1"
	default:
		return "unknown"
	}
}

// PlayerRole maps a seat index (0 or 1) to its role.
func PlayerRole(seat int) Role {
	if seat == 0 {
		return Player0
	}
	return Player1
}

// Size is the length of a marshalled commitment.
var Size = suite.G1().PointLen()

// ErrEntropy is returned when the randomness source cannot deliver.
var ErrEntropy = xerrors.New("randomness source exhausted")

var suite = pairing.NewSuiteBn256()

// scalarBytes is read from the source per scalar. Reducing 512 bits modulo
// the group order keeps the bias negligible.
const scalarBytes = 64

// Participant is the public metadata of one participant.
type Participant struct {
	Role       Role
	Commitment []byte
}

// Metadata is the public commitment set of a run.
type Metadata struct {
	Server  Participant
	Players [2]Participant
}

// Secret holds the private scalar of one participant together with its
// commitment. Secrets are never persisted.
type Secret struct {
	Role       Role
	Scalar     kyber.Scalar
	Commitment kyber.Point
}

// Set is the output of one generation: a secret per participant.
type Set struct {
	Server  *Secret
	Players [2]*Secret
}

// Generate draws fresh secrets for the server and both players from
// crypto/rand.
func Generate() (*Set, error) {
	return GenerateFrom(rand.Reader)
}

// GenerateFrom draws fresh secrets from rnd.
func GenerateFrom(rnd io.Reader) (*Set, error) {
	server, err := newSecret(Server, rnd)
	if err != nil {
		return nil, err
	}
	set := &Set{Server: server}
	for i := range set.Players {
		set.Players[i], err = newSecret(PlayerRole(i), rnd)
		if err != nil {
			return nil, err
		}
	}
	return set, nil
}

func newSecret(role Role, rnd io.Reader) (*Secret, error) {
	buf := make([]byte, scalarBytes)
	if _, err := io.ReadFull(rnd, buf); err != nil {
		return nil, xerrors.Errorf("drawing %s scalar (%v): %w", role, err, ErrEntropy)
	}
	s := suite.G1().Scalar().SetBytes(buf)
	return &Secret{
		Role:       role,
		Scalar:     s,
		Commitment: suite.G1().Point().Mul(s, nil),
	}, nil
}

// Metadata returns the public half of the set.
func (s *Set) Metadata() (*Metadata, error) {
	srv, err := s.Server.public()
	if err != nil {
		return nil, err
	}
	md := &Metadata{Server: srv}
	for i, p := range s.Players {
		md.Players[i], err = p.public()
		if err != nil {
			return nil, err
		}
	}
	return md, nil
}

func (s *Secret) public() (Participant, error) {
	buf, err := s.Commitment.MarshalBinary()
	if err != nil {
		return Participant{}, xerrors.Errorf("marshalling %s commitment: %v", s.Role, err)
	}
	return Participant{Role: s.Role, Commitment: buf}, nil
}

// Open reports whether commitment was produced from scalar.
func Open(scalar kyber.Scalar, commitment []byte) bool {
	p := suite.G1().Point()
	if err := p.UnmarshalBinary(commitment); err != nil {
		return false
	}
	return p.Equal(suite.G1().Point().Mul(scalar, nil))
}

// Validate checks that every commitment is a well-formed group element and
// that roles sit in their seats.
func (md *Metadata) Validate() error {
	if md == nil {
		return xerrors.New("missing metadata")
	}
	if md.Server.Role != Server {
		return xerrors.Errorf("server slot holds role %s", md.Server.Role)
	}
	if err := checkPoint(md.Server.Commitment); err != nil {
		return xerrors.Errorf("server commitment: %v", err)
	}
	for i, p := range md.Players {
		if p.Role != PlayerRole(i) {
			return xerrors.Errorf("player slot %d holds role %s", i, p.Role)
		}
		if err := checkPoint(p.Commitment); err != nil {
			return xerrors.Errorf("player %d commitment: %v", i, err)
		}
	}
	return nil
}

func checkPoint(buf []byte) error {
	if len(buf) != Size {
		return xerrors.Errorf("expected %d bytes, got %d", Size, len(buf))
	}
	return suite.G1().Point().UnmarshalBinary(buf)
}
