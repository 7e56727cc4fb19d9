/*
File Name:  Identity.go

Long-lived local identity (§4.7, C5): a Curve25519 static key (the Noise
static key) and an Ed25519 signing key, generated once and persisted
through a SecretStore, the way the teacher's Peer ID.go persists its
secp256k1 key into config.PrivateKey on first run. The fingerprint is
derived from the static public key and never changes for the life of the
install; the peer-id is ephemeral and rotates independently.
*/

package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/curve25519"

	"github.com/bitchat-go/core/secretstore"
)

const (
	secretKeyStaticPriv  = "identity.static.priv"
	secretKeyStaticPub   = "identity.static.pub"
	secretKeySigningPriv = "identity.signing.priv"
	secretKeySigningPub  = "identity.signing.pub"
)

var ErrCorruptSecretStore = errors.New("identity: stored key material has unexpected length")

// Identity is the local install's persistent cryptographic identity.
type Identity struct {
	StaticPriv  [32]byte
	StaticPub   [32]byte
	SigningPriv ed25519.PrivateKey
	SigningPub  ed25519.PublicKey
	Fingerprint string
}

// LoadOrCreate loads identity key material from store, generating and
// persisting a fresh identity on first run.
func LoadOrCreate(store secretstore.SecretStore) (*Identity, error) {
	staticPriv, ok1 := store.Get(secretKeyStaticPriv)
	staticPub, ok2 := store.Get(secretKeyStaticPub)
	signingPriv, ok3 := store.Get(secretKeySigningPriv)
	signingPub, ok4 := store.Get(secretKeySigningPub)

	if ok1 && ok2 && ok3 && ok4 {
		if len(staticPriv) != 32 || len(staticPub) != 32 || len(signingPriv) != ed25519.PrivateKeySize || len(signingPub) != ed25519.PublicKeySize {
			return nil, ErrCorruptSecretStore
		}
		id := &Identity{SigningPriv: signingPriv, SigningPub: signingPub}
		copy(id.StaticPriv[:], staticPriv)
		copy(id.StaticPub[:], staticPub)
		id.Fingerprint = fingerprintOf(id.StaticPub)
		return id, nil
	}

	return generate(store)
}

func generate(store secretstore.SecretStore) (*Identity, error) {
	var priv [32]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return nil, err
	}
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	var staticPub [32]byte
	copy(staticPub[:], pub)

	signingPub, signingPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	id := &Identity{
		StaticPriv:  priv,
		StaticPub:   staticPub,
		SigningPriv: signingPriv,
		SigningPub:  signingPub,
		Fingerprint: fingerprintOf(staticPub),
	}

	if err := store.Put(secretKeyStaticPriv, id.StaticPriv[:]); err != nil {
		return nil, err
	}
	if err := store.Put(secretKeyStaticPub, id.StaticPub[:]); err != nil {
		return nil, err
	}
	if err := store.Put(secretKeySigningPriv, id.SigningPriv); err != nil {
		return nil, err
	}
	if err := store.Put(secretKeySigningPub, id.SigningPub); err != nil {
		return nil, err
	}
	return id, nil
}

func fingerprintOf(staticPub [32]byte) string {
	sum := sha256.Sum256(staticPub[:])
	return hex.EncodeToString(sum[:])
}

// FingerprintOfStaticPub exposes the fingerprint derivation rule to callers
// that only have a bare static public key on hand, such as a just-completed
// Noise handshake's remote static key.
func FingerprintOfStaticPub(staticPub [32]byte) string {
	return fingerprintOf(staticPub)
}

// Wipe removes every key this identity owns from store (panic wipe, §4.9).
func Wipe(store secretstore.SecretStore) {
	store.Delete(secretKeyStaticPriv)
	store.Delete(secretKeyStaticPub)
	store.Delete(secretKeySigningPriv)
	store.Delete(secretKeySigningPub)
}
