/*
File Name:  Epoch.go

Channel (group) symmetric-key derivation and rotation (§4.6, C4). Salt is
channel ‖ creator_fingerprint ‖ epoch_number (LE u64); PBKDF2-HMAC-SHA256
at 210,000 iterations yields the 32-byte epoch key, mirroring the
teacher's blockchain genesis/account key-stretching idiom in
Blockchain Genesis.go but keyed by channel identity instead of an
account passphrase.
*/

package channelkey

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

const (
	PBKDF2Iterations = 210_000
	KeySize          = 32
	MaxStoredEpochs  = 7
)

// Epoch is one generation of a channel's symmetric key.
type Epoch struct {
	Channel             string
	EpochNumber         uint64
	Key                 [KeySize]byte
	Commitment          [sha256.Size]byte
	PreviousCommitment  [sha256.Size]byte
	HasPreviousCommit   bool
}

// DeriveEpochKey derives the epoch key for (password, channel, creatorFingerprint, epochNumber).
func DeriveEpochKey(password, channel, creatorFingerprint string, epochNumber uint64) [KeySize]byte {
	salt := make([]byte, 0, len(channel)+len(creatorFingerprint)+8)
	salt = append(salt, channel...)
	salt = append(salt, creatorFingerprint...)
	var epochLE [8]byte
	binary.LittleEndian.PutUint64(epochLE[:], epochNumber)
	salt = append(salt, epochLE[:]...)

	derived := pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, KeySize, sha256.New)
	var key [KeySize]byte
	copy(key[:], derived)
	return key
}

// Commitment computes SHA-256(key), the public proof-of-knowledge value.
func Commitment(key [KeySize]byte) [sha256.Size]byte {
	return sha256.Sum256(key[:])
}

// CommitmentHex is the hex-encoded commitment exchanged on the wire.
func CommitmentHex(key [KeySize]byte) string {
	c := Commitment(key)
	return hex.EncodeToString(c[:])
}

// NewEpoch derives a fresh epoch from a password and seals its commitment.
func NewEpoch(password, channel, creatorFingerprint string, epochNumber uint64, previous *Epoch) *Epoch {
	e := &Epoch{
		Channel:     channel,
		EpochNumber: epochNumber,
		Key:         DeriveEpochKey(password, channel, creatorFingerprint, epochNumber),
	}
	e.Commitment = Commitment(e.Key)
	if previous != nil {
		e.PreviousCommitment = previous.Commitment
		e.HasPreviousCommit = true
	}
	return e
}
