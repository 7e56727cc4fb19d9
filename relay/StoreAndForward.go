/*
File Name:  StoreAndForward.go

Store-and-forward cache for private packets addressed to peers that are
not currently reachable (§4.8). Retention is 12h by default, unlimited
for favorited fingerprints; eviction is LRU bounded by both entry count
and total bytes. The doubly-linked-list-plus-map LRU shape follows the
same container/list idiom used for bounded peer/session bookkeeping in
the wireguard-go reference implementation in this pack.
*/

package relay

import (
	"container/list"
	"sync"
	"time"
)

const (
	DefaultRetention = 12 * time.Hour
	MaxEntryCount    = 500
	MaxTotalBytes    = 4 * 1024 * 1024
)

// PendingFrame is one fully-encoded outbound frame awaiting delivery.
type PendingFrame struct {
	RecipientFingerprint string
	Frame                []byte
	QueuedAt             time.Time
}

type sfEntry struct {
	frame    PendingFrame
	favorite bool
}

// StoreAndForward holds undelivered private frames per recipient
// fingerprint, evicting the least-recently-queued entry when either bound
// is exceeded, skipping favorited entries which are exempt from both the
// size bound and the time bound.
type StoreAndForward struct {
	mu         sync.Mutex
	order      *list.List // list of *list.Element wrapping *sfEntry, oldest first
	elements   map[*sfEntry]*list.Element
	totalBytes int
	retention  time.Duration
}

// NewStoreAndForward creates an empty cache with the default 12h retention.
func NewStoreAndForward() *StoreAndForward {
	return &StoreAndForward{
		order:     list.New(),
		elements:  make(map[*sfEntry]*list.Element),
		retention: DefaultRetention,
	}
}

// Enqueue stores a frame for recipientFingerprint, favorite exempting it
// from the byte/count bounds and the retention timeout.
func (s *StoreAndForward) Enqueue(recipientFingerprint string, frame []byte, favorite bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &sfEntry{
		frame: PendingFrame{
			RecipientFingerprint: recipientFingerprint,
			Frame:                append([]byte(nil), frame...),
			QueuedAt:             time.Now(),
		},
		favorite: favorite,
	}
	elem := s.order.PushBack(e)
	s.elements[e] = elem
	s.totalBytes += len(e.frame.Frame)

	s.evictIfNeeded()
}

// evictIfNeeded drops the oldest non-favorite entries until both bounds
// are satisfied, or until only favorites remain.
func (s *StoreAndForward) evictIfNeeded() {
	for s.nonFavoriteCount() > 0 && (s.order.Len() > MaxEntryCount || s.totalBytes > MaxTotalBytes) {
		if !s.evictOldestNonFavorite() {
			break
		}
	}
}

func (s *StoreAndForward) nonFavoriteCount() int {
	n := 0
	for el := s.order.Front(); el != nil; el = el.Next() {
		if !el.Value.(*sfEntry).favorite {
			n++
		}
	}
	return n
}

func (s *StoreAndForward) evictOldestNonFavorite() bool {
	for el := s.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*sfEntry)
		if e.favorite {
			continue
		}
		s.removeElement(el, e)
		return true
	}
	return false
}

func (s *StoreAndForward) removeElement(el *list.Element, e *sfEntry) {
	s.order.Remove(el)
	delete(s.elements, e)
	s.totalBytes -= len(e.frame.Frame)
}

// ExpireStale drops non-favorite entries older than the retention window.
func (s *StoreAndForward) ExpireStale() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.retention)
	var next *list.Element
	for el := s.order.Front(); el != nil; el = next {
		next = el.Next()
		e := el.Value.(*sfEntry)
		if !e.favorite && e.frame.QueuedAt.Before(cutoff) {
			s.removeElement(el, e)
		}
	}
}

// Flush returns every pending frame for recipientFingerprint in original
// queued order and removes them from the cache (peer-up flush, §4.8).
func (s *StoreAndForward) Flush(recipientFingerprint string) []PendingFrame {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []PendingFrame
	var next *list.Element
	for el := s.order.Front(); el != nil; el = next {
		next = el.Next()
		e := el.Value.(*sfEntry)
		if e.frame.RecipientFingerprint == recipientFingerprint {
			out = append(out, e.frame)
			s.removeElement(el, e)
		}
	}
	return out
}

// Len returns the number of frames currently queued, for diagnostics and tests.
func (s *StoreAndForward) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}
