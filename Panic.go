/*
File Name:  Panic.go

Emergency wipe (§4.9): a single operation that drops every Noise session,
every channel key, every favorite/blocked fingerprint, and every key this
install owns in its SecretStore, then rotates the peer-id so any cached
mapping of old peer-id to fingerprint held by other peers stops resolving.
Mirrors the all-or-nothing shape of the teacher's Blacklist.go clearing a
whole filter table rather than entry-by-entry removal.
*/

package core

import (
	"time"

	"github.com/bitchat-go/core/identity"
	"github.com/bitchat-go/core/noise"
	"github.com/bitchat-go/core/relay"
)

// PanicWipe destroys all local cryptographic state. The caller is expected
// to treat this as unrecoverable: identity, channel memberships, and
// favorites are gone, and the process starts over as a brand-new peer on
// its next Init.
func (backend *Backend) PanicWipe() {
	backend.peersMu.Lock()
	backend.peers = make(map[[8]byte]*peerInfo)
	backend.linkToPeer = make(map[string][8]byte)
	backend.peersMu.Unlock()

	backend.retiredMu.Lock()
	backend.retired = make(map[[8]byte]time.Time)
	backend.retiredMu.Unlock()

	backend.sessions = noise.NewTable()
	backend.channels.Wipe()
	backend.storeForward = relay.NewStoreAndForward()
	backend.favorites = identity.NewFavoritesList()

	backend.deliveryMu.Lock()
	backend.delivery = make(map[[16]byte]*relay.DeliveryStatus)
	backend.deliveryMu.Unlock()

	identity.Wipe(backend.secrets)
	backend.secrets.DeleteAllOwned()

	newID, err := identity.NewPeerID()
	if err == nil {
		backend.PeerID = newID
	}
}
