package relay

import "testing"

func TestStoreAndForwardFlushReturnsInOrder(t *testing.T) {
	s := NewStoreAndForward()
	s.Enqueue("fp-a", []byte("first"), false)
	s.Enqueue("fp-a", []byte("second"), false)
	s.Enqueue("fp-b", []byte("other"), false)

	got := s.Flush("fp-a")
	if len(got) != 2 || string(got[0].Frame) != "first" || string(got[1].Frame) != "second" {
		t.Fatalf("unexpected flush order: %+v", got)
	}
	if s.Len() != 1 {
		t.Fatalf("expected fp-b frame to remain queued")
	}
}

func TestStoreAndForwardEvictsOldestNonFavoriteBeyondCount(t *testing.T) {
	s := NewStoreAndForward()
	for i := 0; i < MaxEntryCount+10; i++ {
		s.Enqueue("fp", []byte("x"), false)
	}
	if s.Len() > MaxEntryCount {
		t.Fatalf("expected eviction to cap entry count at %d, got %d", MaxEntryCount, s.Len())
	}
}

func TestStoreAndForwardFavoritesExemptFromEviction(t *testing.T) {
	s := NewStoreAndForward()
	s.Enqueue("fp-favorite", []byte("keepme"), true)
	for i := 0; i < MaxEntryCount+10; i++ {
		s.Enqueue("fp-other", []byte("x"), false)
	}
	got := s.Flush("fp-favorite")
	if len(got) != 1 || string(got[0].Frame) != "keepme" {
		t.Fatalf("expected favorite entry to survive eviction pressure")
	}
}
