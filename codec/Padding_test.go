package codec

import (
	"bytes"
	"testing"
)

func TestPadUnpadRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 5, 100, 239, 240, 400, 1000, 2000, 2016}
	for _, n := range sizes {
		data := bytes.Repeat([]byte{0x42}, n)
		padded := Pad(data)
		got := Unpad(padded)
		if !bytes.Equal(got, data) {
			t.Fatalf("round-trip failed for len=%d: got len=%d", n, len(got))
		}
	}
}

func TestPadReachesBlockSize(t *testing.T) {
	data := make([]byte, 5)
	padded := Pad(data)
	if len(padded) != 256 {
		t.Fatalf("expected 256-byte frame, got %d", len(padded))
	}
	if padded[len(padded)-1] != byte(len(padded)-len(data)) {
		t.Fatalf("last byte does not equal the padding length")
	}
}

func TestPadOversizedLeftUnchanged(t *testing.T) {
	data := make([]byte, 2033) // 2033+16 > 2048, no block fits
	padded := Pad(data)
	if !bytes.Equal(padded, data) {
		t.Fatalf("expected oversized payload to be left unpadded")
	}
}

func TestPadSkippedWhenCountExceedsByte(t *testing.T) {
	// 241 bytes needs the 512 block (241+16 > 256), giving p = 271 > 255.
	data := make([]byte, 241)
	padded := Pad(data)
	if !bytes.Equal(padded, data) {
		t.Fatalf("expected padding to be skipped when the count overflows a byte")
	}
}

func TestPadRandomizedAcrossCalls(t *testing.T) {
	data := make([]byte, 5)
	a := Pad(data)
	b := Pad(data)
	if bytes.Equal(a, b) {
		t.Fatalf("expected two paddings of the same input to differ")
	}
}

func TestUnpadTreatsZeroAsUnpadded(t *testing.T) {
	data := []byte{1, 2, 3, 0}
	if got := Unpad(data); !bytes.Equal(got, data) {
		t.Fatalf("expected data with trailing zero byte to be returned unchanged")
	}
}

func TestUnpadTreatsOverlongAsUnpadded(t *testing.T) {
	data := []byte{1, 2, 3, 200}
	if got := Unpad(data); !bytes.Equal(got, data) {
		t.Fatalf("expected data with an out-of-range count byte to be returned unchanged")
	}
}
