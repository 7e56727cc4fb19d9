package identity

import (
	"testing"

	"github.com/bitchat-go/core/secretstore"
)

func TestLoadOrCreatePersistsAcrossCalls(t *testing.T) {
	store := secretstore.NewMemory()

	id1, err := LoadOrCreate(store)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := LoadOrCreate(store)
	if err != nil {
		t.Fatal(err)
	}
	if id1.Fingerprint != id2.Fingerprint {
		t.Fatalf("expected identity to persist across loads")
	}
	if id1.StaticPub != id2.StaticPub {
		t.Fatalf("expected same static key across loads")
	}
}

func TestFingerprintIsHexSHA256OfStaticPub(t *testing.T) {
	store := secretstore.NewMemory()
	id, err := LoadOrCreate(store)
	if err != nil {
		t.Fatal(err)
	}
	if len(id.Fingerprint) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(id.Fingerprint))
	}
}

func TestWipeRemovesAllIdentityKeys(t *testing.T) {
	store := secretstore.NewMemory()
	LoadOrCreate(store)
	Wipe(store)
	if store.Count() != 0 {
		t.Fatalf("expected store empty after wipe, has %d entries", store.Count())
	}
}
