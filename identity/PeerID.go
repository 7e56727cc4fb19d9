/*
File Name:  PeerID.go

Ephemeral peer-id generation, rotation scheduling, and the signed
NoiseIdentityAnnouncement that lets other peers remap session state from
an old peer-id to a new one (§4.7). The signature binds peer_id, the
static public key, and the timestamp so an announcement cannot be
replayed against a different identity or time.
*/

package identity

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"
	"time"
)

const PeerIDSize = 8

const (
	MinRotationInterval = 5 * time.Minute
	MaxRotationInterval = 15 * time.Minute

	// OldPeerIDGracePeriod is how long the previous peer-id continues to
	// resolve in-flight messages after a rotation (§5).
	OldPeerIDGracePeriod = 60 * time.Second
)

var ErrInvalidAnnouncementSignature = errors.New("identity: announcement signature does not verify")

// NewPeerID generates a fresh random 8-byte ephemeral peer identifier.
func NewPeerID() ([PeerIDSize]byte, error) {
	var id [PeerIDSize]byte
	_, err := rand.Read(id[:])
	return id, err
}

// NextRotationDelay picks a uniform random duration in [5,15) minutes.
func NextRotationDelay() time.Duration {
	span := int64(MaxRotationInterval - MinRotationInterval)
	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return MinRotationInterval
	}
	return MinRotationInterval + time.Duration(n.Int64())
}

// Announcement is the signed broadcast a peer sends whenever its
// ephemeral peer-id rotates.
type Announcement struct {
	PeerID         [PeerIDSize]byte
	StaticPub      [32]byte
	SigningPub     ed25519.PublicKey
	Nickname       string
	TimestampMs    uint64
	PreviousPeerID [PeerIDSize]byte
	HasPrevious    bool
	Signature      []byte
}

// signedMessage reproduces peer_id‖static_pub‖ASCII(timestamp_ms).
func signedMessage(peerID [PeerIDSize]byte, staticPub [32]byte, timestampMs uint64) []byte {
	buf := make([]byte, 0, PeerIDSize+32+20)
	buf = append(buf, peerID[:]...)
	buf = append(buf, staticPub[:]...)
	buf = append(buf, []byte(strconv.FormatUint(timestampMs, 10))...)
	return buf
}

// Announce builds and signs a fresh identity announcement for a rotation
// to newPeerID.
func Announce(id *Identity, newPeerID [PeerIDSize]byte, previousPeerID [PeerIDSize]byte, havePrevious bool, nickname string, timestampMs uint64) *Announcement {
	sig := ed25519.Sign(id.SigningPriv, signedMessage(newPeerID, id.StaticPub, timestampMs))
	return &Announcement{
		PeerID:         newPeerID,
		StaticPub:      id.StaticPub,
		SigningPub:     id.SigningPub,
		Nickname:       nickname,
		TimestampMs:    timestampMs,
		PreviousPeerID: previousPeerID,
		HasPrevious:    havePrevious,
		Signature:      sig,
	}
}

// Verify checks an incoming announcement's signature against its own
// claimed signing key. Callers decide separately whether to trust that
// signing key (e.g. it matches a previously-seen fingerprint).
func (a *Announcement) Verify() bool {
	if len(a.SigningPub) != ed25519.PublicKeySize || len(a.Signature) != ed25519.SignatureSize {
		return false
	}
	msg := signedMessage(a.PeerID, a.StaticPub, a.TimestampMs)
	return ed25519.Verify(a.SigningPub, msg, a.Signature)
}

// Fingerprint returns the persistent fingerprint implied by this
// announcement's static public key.
func (a *Announcement) Fingerprint() string {
	return fingerprintOf(a.StaticPub)
}

// PeerIDEqual reports whether two peer-ids are identical, for remap bookkeeping.
func PeerIDEqual(a, b [PeerIDSize]byte) bool {
	return bytes.Equal(a[:], b[:])
}
