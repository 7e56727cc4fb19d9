/*
File Name:  Cursor.go

Big-endian primitive encoding for the wire protocol. Replaces the
mutable inout-offset cursor pattern of the source with an explicit type:
Writer accumulates fields into a growable buffer, Reader walks a fixed
buffer and advances its own offset.
*/

package codec

import (
	"encoding/binary"
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	ErrShortBuffer  = errors.New("codec: buffer too short")
	ErrStringTooBig = errors.New("codec: string exceeds field maximum")
	ErrBytesTooBig  = errors.New("codec: byte blob exceeds field maximum")
	ErrInvalidUTF8  = errors.New("codec: invalid utf-8 string")
)

// Writer accumulates big-endian encoded fields into a growable buffer.
type Writer struct {
	buf []byte
}

// NewWriter creates a Writer with a capacity hint to avoid reallocation.
func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) WriteUint8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) WriteUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteRaw appends bytes verbatim, with no length prefix.
func (w *Writer) WriteRaw(b []byte) { w.buf = append(w.buf, b...) }

// WriteUUID appends the 16 raw bytes of a UUID, no hyphens.
func (w *Writer) WriteUUID(id uuid.UUID) { w.buf = append(w.buf, id[:]...) }

// WriteBytes8 writes a byte blob with a u8 length prefix. Use for fields
// whose maximum size is at most 255 bytes.
func (w *Writer) WriteBytes8(b []byte) error {
	if len(b) > 0xFF {
		return ErrBytesTooBig
	}
	w.WriteUint8(uint8(len(b)))
	w.WriteRaw(b)
	return nil
}

// WriteBytes16 writes a byte blob with a u16 length prefix.
func (w *Writer) WriteBytes16(b []byte) error {
	if len(b) > 0xFFFF {
		return ErrBytesTooBig
	}
	w.WriteUint16(uint16(len(b)))
	w.WriteRaw(b)
	return nil
}

// WriteString8 writes a UTF-8 string with a u8 length prefix.
func (w *Writer) WriteString8(s string) error {
	return w.WriteBytes8([]byte(s))
}

// WriteString16 writes a UTF-8 string with a u16 length prefix.
func (w *Writer) WriteString16(s string) error {
	return w.WriteBytes16([]byte(s))
}

// Reader walks a fixed buffer, advancing its own read offset.
type Reader struct {
	buf []byte
	off int
}

// NewReader wraps buf for sequential reads starting at offset 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// Offset returns the current read position.
func (r *Reader) Offset() int { return r.off }

func (r *Reader) ReadUint8() (uint8, error) {
	if r.Remaining() < 1 {
		return 0, ErrShortBuffer
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	if r.Remaining() < 2 {
		return 0, ErrShortBuffer
	}
	v := binary.BigEndian.Uint16(r.buf[r.off : r.off+2])
	r.off += 2
	return v, nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	if r.Remaining() < 4 {
		return 0, ErrShortBuffer
	}
	v := binary.BigEndian.Uint32(r.buf[r.off : r.off+4])
	r.off += 4
	return v, nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	if r.Remaining() < 8 {
		return 0, ErrShortBuffer
	}
	v := binary.BigEndian.Uint64(r.buf[r.off : r.off+8])
	r.off += 8
	return v, nil
}

// ReadBytes reads n raw bytes and copies them out.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, ErrShortBuffer
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:r.off+n])
	r.off += n
	return out, nil
}

// ReadUUID reads 16 raw bytes as a UUID.
func (r *Reader) ReadUUID() (uuid.UUID, error) {
	b, err := r.ReadBytes(16)
	if err != nil {
		return uuid.UUID{}, err
	}
	var id uuid.UUID
	copy(id[:], b)
	return id, nil
}

// ReadBytes8 reads a u8-length-prefixed byte blob.
func (r *Reader) ReadBytes8() ([]byte, error) {
	n, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	return r.ReadBytes(int(n))
}

// ReadBytes16 reads a u16-length-prefixed byte blob.
func (r *Reader) ReadBytes16() ([]byte, error) {
	n, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	return r.ReadBytes(int(n))
}

// ReadString8 reads a u8-length-prefixed UTF-8 string.
func (r *Reader) ReadString8() (string, error) {
	b, err := r.ReadBytes8()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}

// ReadString16 reads a u16-length-prefixed UTF-8 string.
func (r *Reader) ReadString16() (string, error) {
	b, err := r.ReadBytes16()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}

// DisplayUUID renders a UUID as the canonical 8-4-4-4-12 uppercase form
// used whenever an identifier is surfaced to a user.
func DisplayUUID(id uuid.UUID) string {
	s := id.String()
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'f' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
