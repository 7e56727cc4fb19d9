package noise

import (
	"bytes"
	"testing"
)

func TestHandshakeAndTransport(t *testing.T) {
	aStatic, err := GenerateStaticKeypair()
	if err != nil {
		t.Fatal(err)
	}
	bStatic, err := GenerateStaticKeypair()
	if err != nil {
		t.Fatal(err)
	}

	var aID, bID [8]byte
	copy(aID[:], []byte{1, 1, 1, 1, 1, 1, 1, 1})
	copy(bID[:], []byte{2, 2, 2, 2, 2, 2, 2, 2})

	aSession, msg1, err := StartHandshake(bID, aStatic, nil)
	if err != nil {
		t.Fatalf("StartHandshake: %v", err)
	}

	bSession, msg2, err := RespondToHandshake(aID, bStatic, msg1, nil)
	if err != nil {
		t.Fatalf("RespondToHandshake: %v", err)
	}

	if _, err := aSession.ReadHandshakeMessage(msg2); err != nil {
		t.Fatalf("a read msg2: %v", err)
	}
	msg3, err := aSession.WriteHandshakeMessage(nil)
	if err != nil {
		t.Fatalf("a write msg3: %v", err)
	}
	if _, err := bSession.ReadHandshakeMessage(msg3); err != nil {
		t.Fatalf("b read msg3: %v", err)
	}

	if aSession.State != StateEstablished {
		t.Fatalf("initiator session not established")
	}
	if bSession.State != StateEstablished {
		t.Fatalf("responder session not established")
	}

	plaintext := []byte("hello over noise")
	ct, err := aSession.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	pt, err := bSession.Decrypt(ct)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Fatalf("plaintext mismatch: got %q want %q", pt, plaintext)
	}

	reply, err := bSession.Encrypt([]byte("reply"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := aSession.Decrypt(reply); err != nil {
		t.Fatalf("reverse direction decrypt: %v", err)
	}
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	aStatic, _ := GenerateStaticKeypair()
	bStatic, _ := GenerateStaticKeypair()
	var aID, bID [8]byte

	aSession, msg1, _ := StartHandshake(bID, aStatic, nil)
	bSession, msg2, _ := RespondToHandshake(aID, bStatic, msg1, nil)
	aSession.ReadHandshakeMessage(msg2)
	msg3, _ := aSession.WriteHandshakeMessage(nil)
	bSession.ReadHandshakeMessage(msg3)

	ct, err := aSession.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	ct[0] ^= 0xFF
	if _, err := bSession.Decrypt(ct); err != ErrDecryptionFailed {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestSessionTable(t *testing.T) {
	tbl := NewTable()
	var peerID [8]byte
	copy(peerID[:], []byte{9, 9, 9, 9, 9, 9, 9, 9})

	if _, ok := tbl.Get(peerID); ok {
		t.Fatalf("expected no session for unknown peer")
	}

	s := &Session{RemotePeerID: peerID, State: StateEstablished}
	tbl.Put(peerID, s)

	got, ok := tbl.Get(peerID)
	if !ok || got != s {
		t.Fatalf("expected to retrieve the session just stored")
	}

	tbl.Delete(peerID)
	if _, ok := tbl.Get(peerID); ok {
		t.Fatalf("expected session to be gone after delete")
	}
}

func TestRespondToHandshakeRejectsAllZeroEphemeral(t *testing.T) {
	bStatic, err := GenerateStaticKeypair()
	if err != nil {
		t.Fatal(err)
	}
	var aID [8]byte
	copy(aID[:], []byte{1, 1, 1, 1, 1, 1, 1, 1})

	// Message 1 of XX ("-> e") is the raw 32-byte ephemeral public key with
	// no payload; an all-zero key must be rejected before any reply is
	// produced (§4.3, §8).
	zeroEphemeral := make([]byte, 32)

	if _, _, err := RespondToHandshake(aID, bStatic, zeroEphemeral, nil); err != ErrInvalidPublicKey {
		t.Fatalf("expected ErrInvalidPublicKey for all-zero ephemeral key, got %v", err)
	}
}

func TestRespondToHandshakeRejectsAllOnesEphemeral(t *testing.T) {
	bStatic, err := GenerateStaticKeypair()
	if err != nil {
		t.Fatal(err)
	}
	var aID [8]byte
	copy(aID[:], []byte{1, 1, 1, 1, 1, 1, 1, 1})

	allOnesEphemeral := make([]byte, 32)
	for i := range allOnesEphemeral {
		allOnesEphemeral[i] = 0xFF
	}

	if _, _, err := RespondToHandshake(aID, bStatic, allOnesEphemeral, nil); err != ErrInvalidPublicKey {
		t.Fatalf("expected ErrInvalidPublicKey for all-0xFF ephemeral key, got %v", err)
	}
}

func TestValidateRemotePublicKeyRejectsDegenerate(t *testing.T) {
	var zero [32]byte
	if err := ValidateRemotePublicKey(zero[:], nil); err != ErrInvalidPublicKey {
		t.Fatalf("expected rejection of all-zero key")
	}

	var allOnes [32]byte
	for i := range allOnes {
		allOnes[i] = 0xFF
	}
	if err := ValidateRemotePublicKey(allOnes[:], nil); err != ErrInvalidPublicKey {
		t.Fatalf("expected rejection of all-0xFF key")
	}

	if err := ValidateRemotePublicKey(zero[:16], nil); err != ErrInvalidPublicKey {
		t.Fatalf("expected rejection of short key")
	}
}
