package identity

import (
	"testing"

	"github.com/bitchat-go/core/secretstore"
)

func TestAnnouncementRoundTripVerifies(t *testing.T) {
	store := secretstore.NewMemory()
	id, err := LoadOrCreate(store)
	if err != nil {
		t.Fatal(err)
	}

	oldID, _ := NewPeerID()
	newID, _ := NewPeerID()

	ann := Announce(id, newID, oldID, true, "alice", 1700000000000)
	if !ann.Verify() {
		t.Fatalf("expected valid signature to verify")
	}
	if ann.Fingerprint() != id.Fingerprint {
		t.Fatalf("fingerprint mismatch")
	}
}

func TestAnnouncementRejectsTamperedPeerID(t *testing.T) {
	store := secretstore.NewMemory()
	id, _ := LoadOrCreate(store)

	newID, _ := NewPeerID()
	ann := Announce(id, newID, [PeerIDSize]byte{}, false, "alice", 1700000000000)

	ann.PeerID[0] ^= 0xFF
	if ann.Verify() {
		t.Fatalf("expected tampered peer-id to fail verification")
	}
}

func TestNextRotationDelayWithinBounds(t *testing.T) {
	for i := 0; i < 50; i++ {
		d := NextRotationDelay()
		if d < MinRotationInterval || d >= MaxRotationInterval {
			t.Fatalf("rotation delay %v out of [%v,%v)", d, MinRotationInterval, MaxRotationInterval)
		}
	}
}
