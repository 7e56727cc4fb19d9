package protocol

import (
	"bytes"
	"strings"
	"testing"
)

func samplePacket(payloadLen int) *Packet {
	p := &Packet{
		Version:     CurrentVersion,
		Type:        TypeMessage,
		TTL:         7,
		TimestampMs: 1700000000000,
		Payload:     bytes.Repeat([]byte{0x11}, payloadLen),
	}
	copy(p.SenderID[:], []byte{1, 2, 3, 4, 5, 6, 7, 8})
	return p
}

func TestPacketRoundTrip(t *testing.T) {
	cases := []*Packet{
		samplePacket(5),
		samplePacket(0),
		samplePacket(300),
	}
	for _, want := range cases {
		encoded, err := Encode(want)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		got, err := Decode(encoded)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Version != want.Version || got.Type != want.Type || got.TTL != want.TTL ||
			got.TimestampMs != want.TimestampMs || got.SenderID != want.SenderID ||
			!bytes.Equal(got.Payload, want.Payload) {
			t.Fatalf("round-trip mismatch: got %+v want %+v", got, want)
		}
	}
}

func TestPacketWithRecipientAndSignature(t *testing.T) {
	p := samplePacket(10)
	p.HasRecip = true
	copy(p.RecipientID[:], []byte{9, 9, 9, 9, 9, 9, 9, 9})
	p.HasSig = true
	for i := range p.Signature {
		p.Signature[i] = byte(i)
	}

	encoded, err := Encode(p)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if !got.HasRecip || got.RecipientID != p.RecipientID {
		t.Fatalf("recipient not preserved")
	}
	if !got.HasSig || got.Signature != p.Signature {
		t.Fatalf("signature not preserved")
	}
}

func TestPacketRejectsUnsupportedVersion(t *testing.T) {
	p := samplePacket(5)
	p.Version = 2
	encoded, err := Encode(p)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(encoded); err != ErrUnsupportedVersion {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestPacketCompressesLargeCompressiblePayload(t *testing.T) {
	p := samplePacket(0)
	p.Payload = bytes.Repeat([]byte("compressible payload data "), 20)

	encoded, err := Encode(p)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Payload, p.Payload) {
		t.Fatalf("payload mismatch after compression round-trip")
	}
}

func TestInnerMessageRoundTrip(t *testing.T) {
	m := &InnerMessage{
		Sender:            "alice",
		Content:           "hello mesh",
		TimestampMs:       1700000000000,
		IsRelay:           true,
		OriginalSender:    "bob",
		IsPrivate:         true,
		RecipientNickname: "carol",
		HasSenderPeerID:   true,
		Mentions:          []string{"bob", "carol"},
		Channel:           "#general",
		EncryptedContent:  []byte{1, 2, 3},
		IsEncrypted:       true,
	}
	copy(m.SenderPeerID[:], []byte{1, 1, 1, 1, 1, 1, 1, 1})

	encoded, err := EncodeInnerMessage(m)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeInnerMessage(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if got.Sender != m.Sender || got.Content != m.Content || got.Channel != m.Channel ||
		!strings.HasPrefix(got.Channel, "#") || len(got.Mentions) != 2 {
		t.Fatalf("inner message round-trip mismatch: %+v", got)
	}
}
