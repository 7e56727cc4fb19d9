/*
File Name:  Dedup.go

Flood-relay loop suppression (§4.8, C6): every packet is reduced to a
SHA-256 dedup key over its stable fields, and relay only forwards a
packet once per key within the dedup TTL. Built on the ttlcache helper
generalized from the teacher's Sequence.go SequenceManager.
*/

package relay

import (
	"crypto/sha256"
	"encoding/binary"
	"time"

	"github.com/bitchat-go/core/internal/ttlcache"
)

// DedupTTL is how long a dedup key is remembered (§5 timeouts).
const DedupTTL = 10 * time.Minute

// DedupKey identifies a packet for loop-suppression purposes independent
// of its TTL field, which decrements hop by hop.
func DedupKey(senderID [8]byte, messageID [16]byte, timestampMs uint64) [32]byte {
	buf := make([]byte, 0, 8+16+8)
	buf = append(buf, senderID[:]...)
	buf = append(buf, messageID[:]...)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], timestampMs)
	buf = append(buf, ts[:]...)
	return sha256.Sum256(buf)
}

// DedupSet is a TTL-bounded set of recently seen dedup keys.
type DedupSet struct {
	cache *ttlcache.Cache[[32]byte, struct{}]
}

// NewDedupSet creates a dedup set that sweeps every sweepInterval.
func NewDedupSet(sweepInterval time.Duration) *DedupSet {
	return &DedupSet{cache: ttlcache.New[[32]byte, struct{}](sweepInterval)}
}

// Stop releases the background sweep goroutine.
func (d *DedupSet) Stop() {
	d.cache.Stop()
}

// SeenBefore reports whether key was already recorded, and records it if not.
func (d *DedupSet) SeenBefore(key [32]byte) bool {
	if d.cache.Contains(key) {
		return true
	}
	d.cache.Set(key, struct{}{}, DedupTTL)
	return false
}
