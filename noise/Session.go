/*
File Name:  Session.go

Per-peer Noise session lifecycle (§4.3, §5). The session table mirrors the
teacher's PeerInfo map in Peer ID.go: a sync.RWMutex-guarded map keyed by
peer identity, looked up far more often than it is mutated. Handshake and
transport operations on a single session are serialized under that
session's own mutex; two different sessions proceed fully in parallel.
*/

package noise

import (
	"sync"
	"time"

	"github.com/flynn/noise"
)

// Role is which side of the XX handshake this peer played.
type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

// State is the handshake/transport lifecycle of a Session.
type State int

const (
	StateUninitialized State = iota
	StateInProgress
	StateEstablished
	StateExpired
)

// Rekey/expiry thresholds (§3 NoiseSession invariants).
const (
	RekeySendCounterThreshold  = 900_000   // 90% of the hard cap
	MaxSendCounter             = 1_000_000 // hard cap: session is expired at or above this
	InactivityExpiry           = 30 * time.Minute
	HandshakeTimeout           = 10 * time.Second
)

// Session is the per-remote-peer Noise state machine.
type Session struct {
	mu sync.Mutex

	RemotePeerID [8]byte
	Role         Role
	State        State

	hs   *noise.HandshakeState
	send *noise.CipherState
	recv *noise.CipherState

	localPriv []byte

	RemoteStaticPub []byte
	CreatedAt       time.Time
	LastActivity    time.Time
	HandshakeStep   int

	sendCounter uint64
	recvCounter uint64
}

// SendCounter returns the number of transport messages sent so far.
func (s *Session) SendCounter() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendCounter
}

// RecvCounter returns the number of transport messages received so far.
func (s *Session) RecvCounter() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recvCounter
}

// NeedsRekey reports whether this session has crossed the 90% rekey
// threshold and a fresh handshake should be started proactively.
func (s *Session) NeedsRekey() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendCounter >= RekeySendCounterThreshold || time.Since(s.LastActivity) >= InactivityExpiry
}

// Expired reports whether the session has crossed the hard cap and must
// no longer be used; a fresh handshake is required.
func (s *Session) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State == StateExpired {
		return true
	}
	return s.sendCounter >= MaxSendCounter || time.Since(s.LastActivity) >= InactivityExpiry
}

// StartHandshake begins an XX handshake as initiator, producing the first
// "-> e" message. payload, if non-nil, is piggy-backed (e.g. a
// NoiseIdentityAnnouncement) and travels in the clear in message 1.
func StartHandshake(remotePeerID [8]byte, localStatic noise.DHKey, payload []byte) (*Session, []byte, error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   Suite,
		Pattern:       Pattern,
		Initiator:     true,
		StaticKeypair: localStatic,
	})
	if err != nil {
		return nil, nil, err
	}

	s := &Session{
		RemotePeerID:  remotePeerID,
		Role:          RoleInitiator,
		State:         StateInProgress,
		hs:            hs,
		localPriv:     append([]byte(nil), localStatic.Private...),
		CreatedAt:     time.Now(),
		LastActivity:  time.Now(),
		HandshakeStep: 1,
	}

	msg, _, _, err := hs.WriteMessage(nil, payload)
	if err != nil {
		return nil, nil, err
	}
	return s, msg, nil
}

// RespondToHandshake auto-initializes a responder session on receipt of an
// unsolicited "-> e" message and produces the "<- e, ee, s, es" reply.
func RespondToHandshake(remotePeerID [8]byte, localStatic noise.DHKey, initMsg, payload []byte) (*Session, []byte, error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   Suite,
		Pattern:       Pattern,
		Initiator:     false,
		StaticKeypair: localStatic,
	})
	if err != nil {
		return nil, nil, err
	}

	s := &Session{
		RemotePeerID:  remotePeerID,
		Role:          RoleResponder,
		State:         StateInProgress,
		hs:            hs,
		localPriv:     append([]byte(nil), localStatic.Private...),
		CreatedAt:     time.Now(),
		LastActivity:  time.Now(),
		HandshakeStep: 1,
	}

	if _, _, _, err := hs.ReadMessage(nil, initMsg); err != nil {
		return nil, nil, err
	}
	if err := s.validatePeerKeys(); err != nil {
		return nil, nil, err
	}

	reply, send, recv, err := hs.WriteMessage(nil, payload)
	if err != nil {
		return nil, nil, err
	}
	s.HandshakeStep = 2
	if send != nil && recv != nil {
		s.installTransportKeys(send, recv)
	}
	return s, reply, nil
}

// validatePeerKeys applies §4.3's mandatory remote-key check to whichever
// of the peer's ephemeral/static keys the handshake state has revealed so
// far, rejecting all-zero, all-0xFF, or degenerate-DH keys before they are
// trusted for any further handshake step.
func (s *Session) validatePeerKeys() error {
	if s.hs == nil {
		return nil
	}
	if pe := s.hs.PeerEphemeral(); len(pe) > 0 {
		if err := ValidateRemotePublicKey(pe, s.localPriv); err != nil {
			return err
		}
	}
	if ps := s.hs.PeerStatic(); len(ps) > 0 {
		if err := ValidateRemotePublicKey(ps, s.localPriv); err != nil {
			return err
		}
	}
	return nil
}

// ReadHandshakeMessage advances the handshake with an incoming message and
// returns any piggy-backed payload. Completes the session on the final
// "-> s, se" message.
func (s *Session) ReadHandshakeMessage(msg []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hs == nil {
		return nil, ErrWrongHandshakeDir
	}

	payload, send, recv, err := s.hs.ReadMessage(nil, msg)
	if err != nil {
		return nil, err
	}
	if err := s.validatePeerKeys(); err != nil {
		return nil, err
	}
	s.LastActivity = time.Now()
	s.HandshakeStep++
	if send != nil && recv != nil {
		s.installTransportKeys(send, recv)
	}
	return payload, nil
}

// WriteHandshakeMessage produces the next outbound handshake message.
func (s *Session) WriteHandshakeMessage(payload []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hs == nil {
		return nil, ErrWrongHandshakeDir
	}

	msg, send, recv, err := s.hs.WriteMessage(nil, payload)
	if err != nil {
		return nil, err
	}
	s.LastActivity = time.Now()
	s.HandshakeStep++
	if send != nil && recv != nil {
		s.installTransportKeys(send, recv)
	}
	return msg, nil
}

// installTransportKeys finishes the handshake: Split() derives the two
// directional cipher keys, the initiator's first key is its send cipher.
func (s *Session) installTransportKeys(csInitiatorSend, csInitiatorRecv *noise.CipherState) {
	if s.Role == RoleInitiator {
		s.send = csInitiatorSend
		s.recv = csInitiatorRecv
	} else {
		// From the responder's perspective the roles are swapped.
		s.send = csInitiatorRecv
		s.recv = csInitiatorSend
	}
	s.RemoteStaticPub = append([]byte(nil), s.hs.PeerStatic()...)
	s.State = StateEstablished
	s.hs = nil
}

// Encrypt seals plaintext under the send cipher with no associated data;
// framing (padding, headers) is handled by the protocol/packet layer.
func (s *Session) Encrypt(plaintext []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State != StateEstablished {
		return nil, ErrSessionExpired
	}
	ct, err := s.send.Encrypt(nil, nil, plaintext)
	if err != nil {
		return nil, err
	}
	s.sendCounter++
	s.LastActivity = time.Now()
	return ct, nil
}

// Decrypt opens ciphertext under the recv cipher. Noise's internal nonce
// counter enforces strict per-direction ordering; out-of-order or replayed
// ciphertexts fail here.
func (s *Session) Decrypt(ciphertext []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State != StateEstablished {
		return nil, ErrSessionExpired
	}
	pt, err := s.recv.Decrypt(nil, nil, ciphertext)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	s.recvCounter++
	s.LastActivity = time.Now()
	return pt, nil
}

// Table is the per-peer session map (§5: reader/writer locking, low
// contention expected).
type Table struct {
	mu       sync.RWMutex
	sessions map[[8]byte]*Session
}

// NewTable creates an empty session table.
func NewTable() *Table {
	return &Table{sessions: make(map[[8]byte]*Session)}
}

// Get returns the session for peerID, if any.
func (t *Table) Get(peerID [8]byte) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[peerID]
	return s, ok
}

// Put installs or replaces the session for peerID unconditionally, even
// when the new session is still mid-handshake and the old one is
// established. Rekey is the variant that swaps in only an established
// session.
func (t *Table) Put(peerID [8]byte, s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[peerID] = s
}

// Delete removes the session for peerID (peer-down event, §4.3 cancellation).
func (t *Table) Delete(peerID [8]byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, peerID)
}

// Rekey atomically swaps the session for peerID provided the replacement
// has reached the established state.
func (t *Table) Rekey(peerID [8]byte, fresh *Session) error {
	if fresh.State != StateEstablished {
		return ErrWrongHandshakeDir
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[peerID] = fresh
	return nil
}
