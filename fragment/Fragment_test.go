package fragment

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestSplitReassembleRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("mesh-fragment-payload "), 50)

	for _, mtu := range []int{1, 7, 64, 500, len(payload) + 10} {
		fragments, err := Split(payload, 3, mtu)
		if err != nil {
			t.Fatalf("mtu %d: %v", mtu, err)
		}
		got := Reassemble(fragments)
		if !bytes.Equal(got, payload) {
			t.Fatalf("mtu %d: round-trip mismatch", mtu)
		}
	}
}

func TestReassemblyTableCompletesOutOfOrder(t *testing.T) {
	payload := []byte("reassemble me please, this is long enough to split")
	fragments, err := Split(payload, 7, 10)
	if err != nil {
		t.Fatal(err)
	}

	shuffled := append([]*Fragment(nil), fragments...)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	table := NewReassemblyTable()
	var got []byte
	var gotType uint8
	for i, f := range shuffled {
		payloadOut, typeOut, complete := table.Add(f)
		if i < len(shuffled)-1 {
			if complete {
				t.Fatalf("should not complete before all fragments arrive")
			}
			continue
		}
		if !complete {
			t.Fatalf("expected completion on final fragment")
		}
		got, gotType = payloadOut, typeOut
	}

	if !bytes.Equal(got, payload) {
		t.Fatalf("reassembled payload mismatch")
	}
	if gotType != 7 {
		t.Fatalf("expected original type preserved, got %d", gotType)
	}
}

func TestReassemblyTableCapsInFlightSets(t *testing.T) {
	table := NewReassemblyTable()
	for i := 0; i < MaxInFlightContext+10; i++ {
		f := &Fragment{Index: 0, Total: 2, Data: []byte("x")}
		f.FragmentID[0] = byte(i)
		f.FragmentID[1] = byte(i >> 8)
		table.Add(f)
	}
	if table.Len() > MaxInFlightContext {
		t.Fatalf("expected at most %d in-flight sets, got %d", MaxInFlightContext, table.Len())
	}
}
