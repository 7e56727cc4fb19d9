/*
File Name:  Cipher.go

ChaCha20-Poly1305 encryption for channel messages (§4.6): a fresh random
12-byte nonce is prepended to the ciphertext on encrypt; decrypt tries
every candidate epoch key, newest first, until one authenticates.
*/

package channelkey

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrChannelDecryptionFailed means no known epoch key authenticated the ciphertext.
var ErrChannelDecryptionFailed = errors.New("channelkey: decryption failed against all known epochs")

// Encrypt seals plaintext under key with a fresh random nonce, returning
// nonce‖ciphertext.
func Encrypt(key [KeySize]byte, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	out := make([]byte, 0, len(nonce)+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// Decrypt tries every key in candidates, newest first, returning the
// first successful plaintext.
func Decrypt(candidates [][KeySize]byte, data []byte) ([]byte, error) {
	if len(data) < chacha20poly1305.NonceSize {
		return nil, ErrChannelDecryptionFailed
	}
	nonce, ciphertext := data[:chacha20poly1305.NonceSize], data[chacha20poly1305.NonceSize:]

	for _, key := range candidates {
		a, err := chacha20poly1305.New(key[:])
		if err != nil {
			continue
		}
		if pt, err := a.Open(nil, nonce, ciphertext, nil); err == nil {
			return pt, nil
		}
	}
	return nil, ErrChannelDecryptionFailed
}

// DecryptForChannel is the Store-aware convenience wrapper used by the
// dispatcher: it asks the store for every epoch key on file for channel.
func DecryptForChannel(store *Store, channel string, data []byte) ([]byte, error) {
	candidates := store.CandidateKeys(channel)
	if len(candidates) == 0 {
		return nil, ErrChannelDecryptionFailed
	}
	return Decrypt(candidates, data)
}
