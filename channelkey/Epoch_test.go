package channelkey

import "testing"

func TestSamePasswordChannelEpochProducesSameKey(t *testing.T) {
	k1 := DeriveEpochKey("pw", "#test", "fp-creator", 0)
	k2 := DeriveEpochKey("pw", "#test", "fp-creator", 0)
	if k1 != k2 {
		t.Fatalf("expected deterministic derivation for identical inputs")
	}
}

func TestDifferentPasswordProducesDifferentCommitment(t *testing.T) {
	good := DeriveEpochKey("pw", "#test", "fp-creator", 0)
	bad := DeriveEpochKey("bad", "#test", "fp-creator", 0)
	if CommitmentHex(good) == CommitmentHex(bad) {
		t.Fatalf("expected different commitments for different passwords")
	}
}

func TestDifferentEpochProducesDifferentKey(t *testing.T) {
	e0 := DeriveEpochKey("pw", "#test", "fp-creator", 0)
	e1 := DeriveEpochKey("pw", "#test", "fp-creator", 1)
	if e0 == e1 {
		t.Fatalf("expected epoch number to affect derived key")
	}
}

func TestNewEpochChainsPreviousCommitment(t *testing.T) {
	e0 := NewEpoch("pw", "#test", "fp-creator", 0, nil)
	e1 := NewEpoch("pw2", "#test", "fp-creator", 1, e0)
	if !e1.HasPreviousCommit {
		t.Fatalf("expected rotated epoch to carry previous commitment")
	}
	if e1.PreviousCommitment != e0.Commitment {
		t.Fatalf("previous commitment mismatch")
	}
}
