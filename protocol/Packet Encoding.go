/*
File Name:  Packet Encoding.go

Outer frame for every message exchanged over a Link. Layout, fields in
order, all integers big-endian:

	version        u8
	type           u8
	ttl            u8
	timestamp_ms   u64
	flags          u8
	payload_len    u16
	sender_id      8B
	recipient_id   8B   (only if flags.hasRecipient)
	payload        payload_len B
	signature      64B  (only if flags.hasSignature)

Flags: 0x01 hasRecipient, 0x02 hasSignature, 0x04 compressed. If
compressed, payload is `u32 original_len || deflate(payload)`. The whole
frame is then padded (codec.Pad) to a standard block size.
*/

package protocol

import (
	"bytes"
	"compress/flate"
	"errors"
	"io"

	"github.com/bitchat-go/core/codec"
)

// SupportedVersions is the set of packet versions this build accepts.
var SupportedVersions = map[uint8]bool{1: true}

const CurrentVersion uint8 = 1

// SignatureSize is the length of an Ed25519 signature as carried on the wire.
const SignatureSize = 64

// PeerIDSize is the length in bytes of a sender/recipient peer-id.
const PeerIDSize = 8

const headerSize = 1 + 1 + 1 + 8 + 1 + 2 + PeerIDSize

// BroadcastRecipient is the all-0xFF sentinel recipient id.
var BroadcastRecipient = [PeerIDSize]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

const (
	flagHasRecipient uint8 = 0x01
	flagHasSignature uint8 = 0x02
	flagCompressed   uint8 = 0x04
)

var (
	ErrUnsupportedVersion = errors.New("protocol: unsupported packet version")
	ErrMalformedFrame     = errors.New("protocol: malformed frame")
)

// Packet is the outer frame carried over a Link.
type Packet struct {
	Version     uint8
	Type        MessageType
	TTL         uint8
	TimestampMs uint64
	SenderID    [PeerIDSize]byte
	HasRecip    bool
	RecipientID [PeerIDSize]byte
	Payload     []byte
	HasSig      bool
	Signature   [SignatureSize]byte
}

// IsBroadcast reports whether the packet has no recipient, or an explicit
// broadcast sentinel recipient.
func (p *Packet) IsBroadcast() bool {
	return !p.HasRecip || p.RecipientID == BroadcastRecipient
}

// Encode serializes the packet, optionally compressing the payload, then
// pads the whole frame to a standard block size.
func Encode(p *Packet) ([]byte, error) {
	payload := p.Payload
	flags := uint8(0)

	if compressed, ok := tryCompress(payload); ok {
		payload = compressed
		flags |= flagCompressed
	}
	if len(payload) > 0xFFFF {
		return nil, ErrMalformedFrame
	}
	if p.HasRecip {
		flags |= flagHasRecipient
	}
	if p.HasSig {
		flags |= flagHasSignature
	}

	w := codec.NewWriter(headerSize + len(payload) + SignatureSize + PeerIDSize)
	w.WriteUint8(p.Version)
	w.WriteUint8(uint8(p.Type))
	w.WriteUint8(p.TTL)
	w.WriteUint64(p.TimestampMs)
	w.WriteUint8(flags)
	w.WriteUint16(uint16(len(payload)))
	w.WriteRaw(p.SenderID[:])
	if p.HasRecip {
		w.WriteRaw(p.RecipientID[:])
	}
	w.WriteRaw(payload)
	if p.HasSig {
		w.WriteRaw(p.Signature[:])
	}

	return codec.Pad(w.Bytes()), nil
}

// Decode strips padding and parses the outer frame. Frames whose version is
// not in SupportedVersions are rejected.
func Decode(frame []byte) (*Packet, error) {
	buf := codec.Unpad(frame)
	r := codec.NewReader(buf)

	p := &Packet{}

	version, err := r.ReadUint8()
	if err != nil {
		return nil, ErrMalformedFrame
	}
	if !SupportedVersions[version] {
		return nil, ErrUnsupportedVersion
	}
	p.Version = version

	typ, err := r.ReadUint8()
	if err != nil {
		return nil, ErrMalformedFrame
	}
	p.Type = MessageType(typ)

	if p.TTL, err = r.ReadUint8(); err != nil {
		return nil, ErrMalformedFrame
	}
	if p.TimestampMs, err = r.ReadUint64(); err != nil {
		return nil, ErrMalformedFrame
	}

	flags, err := r.ReadUint8()
	if err != nil {
		return nil, ErrMalformedFrame
	}
	p.HasRecip = flags&flagHasRecipient != 0
	p.HasSig = flags&flagHasSignature != 0
	compressed := flags&flagCompressed != 0

	payloadLen, err := r.ReadUint16()
	if err != nil {
		return nil, ErrMalformedFrame
	}

	sender, err := r.ReadBytes(PeerIDSize)
	if err != nil {
		return nil, ErrMalformedFrame
	}
	copy(p.SenderID[:], sender)

	if p.HasRecip {
		recip, err := r.ReadBytes(PeerIDSize)
		if err != nil {
			return nil, ErrMalformedFrame
		}
		copy(p.RecipientID[:], recip)
	}

	payload, err := r.ReadBytes(int(payloadLen))
	if err != nil {
		return nil, ErrMalformedFrame
	}

	if compressed {
		payload, err = decompressPayload(payload)
		if err != nil {
			return nil, ErrMalformedFrame
		}
	}
	p.Payload = payload

	if p.HasSig {
		sig, err := r.ReadBytes(SignatureSize)
		if err != nil {
			return nil, ErrMalformedFrame
		}
		copy(p.Signature[:], sig)
	}

	return p, nil
}

// tryCompress DEFLATEs payload if it is worth it: larger than 100 bytes and
// the result is at least 10% smaller. The compressed form is prefixed with
// the u32 original length.
func tryCompress(payload []byte) ([]byte, bool) {
	if len(payload) <= 100 {
		return nil, false
	}

	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, false
	}
	if _, err := fw.Write(payload); err != nil {
		return nil, false
	}
	if err := fw.Close(); err != nil {
		return nil, false
	}

	compressed := buf.Bytes()
	if len(compressed)+4 >= len(payload)-len(payload)/10 {
		return nil, false
	}

	w := codec.NewWriter(4 + len(compressed))
	w.WriteUint32(uint32(len(payload)))
	w.WriteRaw(compressed)
	return w.Bytes(), true
}

func decompressPayload(payload []byte) ([]byte, error) {
	r := codec.NewReader(payload)
	originalLen, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}

	rest, err := r.ReadBytes(r.Remaining())
	if err != nil {
		return nil, err
	}

	fr := flate.NewReader(bytes.NewReader(rest))
	defer fr.Close()

	out := make([]byte, originalLen)
	if _, err := io.ReadFull(fr, out); err != nil {
		return nil, err
	}
	return out, nil
}
