/*
File Name:  Store.go

Per-channel epoch store: keeps up to MaxStoredEpochs recent epochs for a
grace-period decryption window (§4.6) and exposes the single "current"
epoch used for new encryptions. One Store instance per process, channels
keyed by name; guarded by a single mutex since channel joins/rotations are
rare compared to per-message encrypt/decrypt calls, which only read.
*/

package channelkey

import (
	"sort"
	"sync"
)

type channelEpochs struct {
	epochs []*Epoch // ordered oldest to newest
}

// Store holds every joined channel's epoch history.
type Store struct {
	mu       sync.RWMutex
	channels map[string]*channelEpochs
}

// NewStore creates an empty epoch store.
func NewStore() *Store {
	return &Store{channels: make(map[string]*channelEpochs)}
}

// AddEpoch installs a freshly derived epoch as the new current epoch for
// its channel, evicting the oldest epoch once MaxStoredEpochs is exceeded.
func (s *Store) AddEpoch(e *Epoch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ce, ok := s.channels[e.Channel]
	if !ok {
		ce = &channelEpochs{}
		s.channels[e.Channel] = ce
	}
	ce.epochs = append(ce.epochs, e)
	sort.Slice(ce.epochs, func(i, j int) bool {
		return ce.epochs[i].EpochNumber < ce.epochs[j].EpochNumber
	})
	if len(ce.epochs) > MaxStoredEpochs {
		ce.epochs = ce.epochs[len(ce.epochs)-MaxStoredEpochs:]
	}
}

// Current returns the newest epoch for a channel, used for encryption.
func (s *Store) Current(channel string) (*Epoch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ce, ok := s.channels[channel]
	if !ok || len(ce.epochs) == 0 {
		return nil, false
	}
	return ce.epochs[len(ce.epochs)-1], true
}

// CandidateKeys returns every stored key for a channel, newest first, for
// decryption attempts across the grace-period window.
func (s *Store) CandidateKeys(channel string) [][KeySize]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ce, ok := s.channels[channel]
	if !ok {
		return nil
	}
	keys := make([][KeySize]byte, len(ce.epochs))
	for i, e := range ce.epochs {
		keys[len(ce.epochs)-1-i] = e.Key
	}
	return keys
}

// HasChannel reports whether any epoch is known for the channel.
func (s *Store) HasChannel(channel string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ce, ok := s.channels[channel]
	return ok && len(ce.epochs) > 0
}

// Forget removes all epochs for a channel (leave / panic wipe).
func (s *Store) Forget(channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, channel)
}

// Wipe removes every channel's epochs (panic wipe, §4.9).
func (s *Store) Wipe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = make(map[string]*channelEpochs)
}
