package relay

import (
	"testing"
	"time"
)

func TestDedupSetRejectsRepeat(t *testing.T) {
	d := NewDedupSet(50 * time.Millisecond)
	defer d.Stop()

	key := DedupKey([8]byte{1}, [16]byte{2}, 123)
	if d.SeenBefore(key) {
		t.Fatalf("first sighting should not be reported as seen before")
	}
	if !d.SeenBefore(key) {
		t.Fatalf("second sighting should be reported as seen before")
	}
}

func TestDedupKeyDiffersOnAnyField(t *testing.T) {
	base := DedupKey([8]byte{1}, [16]byte{2}, 123)
	bySender := DedupKey([8]byte{9}, [16]byte{2}, 123)
	byMessage := DedupKey([8]byte{1}, [16]byte{9}, 123)
	byTime := DedupKey([8]byte{1}, [16]byte{2}, 456)

	if base == bySender || base == byMessage || base == byTime {
		t.Fatalf("expected dedup key to depend on all three fields")
	}
}

func TestEvaluateDropsSeenPackets(t *testing.T) {
	d := NewDedupSet(50 * time.Millisecond)
	defer d.Stop()

	key := DedupKey([8]byte{1}, [16]byte{2}, 123)
	first := Evaluate(d, key, 5, true)
	if !first.ShouldDeliverLocally || !first.ShouldForward {
		t.Fatalf("expected first sighting to deliver and forward: %+v", first)
	}

	second := Evaluate(d, key, 5, true)
	if second.ShouldDeliverLocally || second.ShouldForward {
		t.Fatalf("expected repeat sighting to be dropped entirely: %+v", second)
	}
}

func TestEvaluateForwardsOnceMoreAtTTLOne(t *testing.T) {
	d := NewDedupSet(50 * time.Millisecond)
	defer d.Stop()

	key := DedupKey([8]byte{1}, [16]byte{2}, 999)
	dec := Evaluate(d, key, 1, true)
	if !dec.ShouldForward {
		t.Fatalf("expected one last relay hop when ttl=1 before reaching the floor")
	}
	if dec.ForwardTTL != 0 {
		t.Fatalf("expected forwarded ttl to reach 0, got %d", dec.ForwardTTL)
	}
	if !dec.ShouldDeliverLocally {
		t.Fatalf("local delivery should still happen regardless of TTL")
	}
}

func TestEvaluateStopsForwardingAtTTLZero(t *testing.T) {
	d := NewDedupSet(50 * time.Millisecond)
	defer d.Stop()

	key := DedupKey([8]byte{1}, [16]byte{2}, 1000)
	dec := Evaluate(d, key, 0, true)
	if dec.ShouldForward {
		t.Fatalf("expected no forwarding once TTL has reached zero")
	}
	if !dec.ShouldDeliverLocally {
		t.Fatalf("local delivery should still happen regardless of TTL")
	}
}
