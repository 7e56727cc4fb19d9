/*
File Name:  Handshake.go

Noise_XX_25519_ChaChaPoly_SHA256 primitives. The chained-hash / chained-key
symmetric-state bookkeeping (MixKey, MixHash, HKDF split) that the source
hand-rolls is delegated to github.com/flynn/noise, which implements the
same Noise Protocol Framework primitives bit-for-bit; this file only wires
the cipher suite, pattern, and the public-key validation rule of §4.3.
*/

package noise

import (
	"bytes"
	"crypto/rand"
	"errors"

	"github.com/flynn/noise"
	"golang.org/x/crypto/curve25519"
)

// Suite is the fixed cipher suite for every session: Curve25519 DH,
// ChaCha20-Poly1305 AEAD, SHA-256 hash.
var Suite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

// Pattern is the XX handshake pattern: both static keys are exchanged
// within the handshake itself.
var Pattern = noise.HandshakeXX

var (
	ErrInvalidPublicKey  = errors.New("noise: invalid public key")
	ErrDecryptionFailed  = errors.New("noise: decryption failed")
	ErrHandshakeTimeout  = errors.New("noise: handshake timed out")
	ErrSessionExpired    = errors.New("noise: session expired")
	ErrWrongHandshakeDir = errors.New("noise: handshake message out of sequence")
)

// GenerateStaticKeypair creates a fresh Curve25519 keypair suitable for use
// as either a Noise static or ephemeral key.
func GenerateStaticKeypair() (noise.DHKey, error) {
	return Suite.GenerateKeypair(rand.Reader)
}

// ValidateRemotePublicKey applies §4.3's validation rule to any remote
// static or ephemeral key before it is used: it must be 32 bytes, not
// all-zero, not all-0xFF, and must not produce an all-zero DH output
// against the local private key (a degenerate/small-order point).
func ValidateRemotePublicKey(pub []byte, localPriv []byte) error {
	if len(pub) != 32 {
		return ErrInvalidPublicKey
	}

	var zero, allOnes [32]byte
	for i := range allOnes {
		allOnes[i] = 0xFF
	}
	if bytes.Equal(pub, zero[:]) || bytes.Equal(pub, allOnes[:]) {
		return ErrInvalidPublicKey
	}

	if len(localPriv) == 32 {
		shared, err := curve25519.X25519(localPriv, pub)
		if err != nil {
			return ErrInvalidPublicKey
		}
		if bytes.Equal(shared, zero[:]) {
			return ErrInvalidPublicKey
		}
	}

	return nil
}
