/*
File Name:  Fragment.go

Message fragmentation and reassembly (§4.5, C7) for payloads that exceed
the link MTU. Each piece carries an 8-byte fragment_id shared across the
set, its index and total count, and the original packet type so the
reassembled payload can be redispatched correctly. This replaces the
teacher's merkle-tree file-chunking scheme, which proves block integrity
for a file transfer rather than reconstructing a single in-memory message.
*/

package fragment

import (
	"crypto/rand"
	"errors"
)

const FragmentIDSize = 8

var (
	ErrPayloadTooLargeForMTU = errors.New("fragment: mtu too small to make progress")
	ErrTooManyFragments      = errors.New("fragment: payload requires more than 65535 fragments")
)

// Fragment is one piece of a split payload.
type Fragment struct {
	FragmentID   [FragmentIDSize]byte
	Index        uint16
	Total        uint16
	OriginalType uint8
	Data         []byte
}

// Split divides payload into fragments no larger than mtu bytes of data
// each, suitable for reassemble(fragment(p,m)) = p at any mtu <= 500 per
// §8's fragmentation property. A single fragment_id is shared by the set.
func Split(payload []byte, originalType uint8, mtu int) ([]*Fragment, error) {
	if mtu <= 0 {
		return nil, ErrPayloadTooLargeForMTU
	}

	total := (len(payload) + mtu - 1) / mtu
	if total == 0 {
		total = 1 // always emit at least one fragment, even for empty payloads
	}
	if total > 0xFFFF {
		return nil, ErrTooManyFragments
	}

	var id [FragmentIDSize]byte
	if _, err := rand.Read(id[:]); err != nil {
		return nil, err
	}

	fragments := make([]*Fragment, 0, total)
	for i := 0; i < total; i++ {
		start := i * mtu
		end := start + mtu
		if end > len(payload) {
			end = len(payload)
		}
		fragments = append(fragments, &Fragment{
			FragmentID:   id,
			Index:        uint16(i),
			Total:        uint16(total),
			OriginalType: originalType,
			Data:         append([]byte(nil), payload[start:end]...),
		})
	}
	return fragments, nil
}

// Reassemble concatenates a complete, index-ordered set of fragments back
// into the original payload. Callers must have already verified
// completeness (all indices 0..Total-1 present) via the ReassemblyTable.
func Reassemble(fragments []*Fragment) []byte {
	ordered := make([][]byte, len(fragments))
	for _, f := range fragments {
		ordered[f.Index] = f.Data
	}
	var out []byte
	for _, chunk := range ordered {
		out = append(out, chunk...)
	}
	return out
}
