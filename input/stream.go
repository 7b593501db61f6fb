package input

import (
	"encoding/binary"

	"github.com/dedis/zkarena/commit"
	"github.com/dedis/zkarena/game"
	"golang.org/x/xerrors"
)

type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *writer) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) raw(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *writer) chunk(b []byte) {
	w.u32(uint32(len(b)))
	w.raw(b)
}

func (w *writer) bytes() []byte {
	return w.buf
}

// Reader reads a stream field by field, in stream order.
type Reader struct {
	buf []byte
	off int
}

// NewReader returns a reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || len(r.buf)-r.off < n {
		return nil, xerrors.Errorf("need %d bytes at offset %d, have %d: %w",
			n, r.off, len(r.buf)-r.off, ErrInvalid)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) u8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) chunk() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if int(n) != commit.Size {
		return nil, xerrors.Errorf("commitment of %d bytes: %w", n, ErrInvalid)
	}
	b, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	return append([]byte{}, b...), nil
}

func (r *Reader) count() (int, error) {
	n, err := r.u32()
	if err != nil {
		return 0, err
	}
	if n > MaxMoves {
		return 0, xerrors.Errorf("%d moves exceed %d: %w", n, MaxMoves, ErrInvalid)
	}
	return int(n), nil
}

// Metadata reads the metadata section. Roles follow from positions and every
// commitment must be a group element.
func (r *Reader) Metadata() (*commit.Metadata, error) {
	md := &commit.Metadata{}
	var err error
	md.Server = commit.Participant{Role: commit.Server}
	if md.Server.Commitment, err = r.chunk(); err != nil {
		return nil, err
	}
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if n != game.Seats {
		return nil, xerrors.Errorf("%d players: %w", n, ErrInvalid)
	}
	for i := range md.Players {
		md.Players[i] = commit.Participant{Role: commit.PlayerRole(i)}
		if md.Players[i].Commitment, err = r.chunk(); err != nil {
			return nil, err
		}
	}
	if err := md.Validate(); err != nil {
		return nil, xerrors.Errorf("%v: %w", err, ErrInvalid)
	}
	return md, nil
}

// Tagged reads a mover-tagged history. Tags are returned as found.
func (r *Reader) Tagged() ([]game.Turn, error) {
	n, err := r.count()
	if err != nil {
		return nil, err
	}
	turns := make([]game.Turn, n)
	for i := range turns {
		b, err := r.take(2)
		if err != nil {
			return nil, err
		}
		turns[i] = game.Turn{Mover: int(b[0]), Move: b[1]}
	}
	return turns, nil
}

// Flat reads an untagged history.
func (r *Reader) Flat() ([]byte, error) {
	n, err := r.count()
	if err != nil {
		return nil, err
	}
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	return append([]byte{}, b...), nil
}

// Seat reads the trailing seat byte of an agent stream.
func (r *Reader) Seat() (int, error) {
	v, err := r.u8()
	if err != nil {
		return 0, err
	}
	if int(v) >= game.Seats {
		return 0, xerrors.Errorf("seat %d: %w", v, ErrInvalid)
	}
	return int(v), nil
}

// Close fails if bytes remain unread.
func (r *Reader) Close() error {
	if r.off != len(r.buf) {
		return xerrors.Errorf("%d trailing bytes: %w", len(r.buf)-r.off, ErrInvalid)
	}
	return nil
}
