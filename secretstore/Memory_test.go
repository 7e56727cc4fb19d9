package secretstore

import "testing"

func TestMemoryGetPutDelete(t *testing.T) {
	m := NewMemory()
	if _, ok := m.Get("k"); ok {
		t.Fatalf("expected miss on empty store")
	}
	if err := m.Put("k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	got, ok := m.Get("k")
	if !ok || string(got) != "v" {
		t.Fatalf("expected to retrieve stored value")
	}
	m.Delete("k")
	if _, ok := m.Get("k"); ok {
		t.Fatalf("expected miss after delete")
	}
}

func TestMemoryDeleteAllOwned(t *testing.T) {
	m := NewMemory()
	m.Put("a", []byte("1"))
	m.Put("b", []byte("2"))
	if m.Count() != 2 {
		t.Fatalf("expected 2 entries")
	}
	m.DeleteAllOwned()
	if m.Count() != 0 {
		t.Fatalf("expected store empty after wipe")
	}
}
