/*
File Name:  Send.go

Outward-facing message API (§6): send_public, send_private, channel
password administration, and event subscription. A private send that has
no established session yet only triggers a handshake: the plaintext is
neither sent nor queued. Sends mirror the way the teacher's Message
Send.go built a frame and handed it to whichever transport had a live
connection to the target.
*/

package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bitchat-go/core/channelkey"
	"github.com/bitchat-go/core/fragment"
	"github.com/bitchat-go/core/protocol"
	"github.com/bitchat-go/core/relay"
	"github.com/bitchat-go/core/sanitize"
)

// SendPublic broadcasts content to the mesh, optionally scoped to a
// channel and optionally encrypted under that channel's current epoch key.
func (backend *Backend) SendPublic(content string, mentions []string, channel string) (uuid.UUID, error) {
	if channel != "" {
		if err := sanitize.ChannelName(channel); err != nil {
			return uuid.UUID{}, err
		}
	}

	m := &protocol.InnerMessage{
		ID:          uuid.New(),
		Sender:      sanitize.Nickname(backend.Config.Nickname),
		Content:     content,
		TimestampMs: nowMillis(),
		Channel:     channel,
		Mentions:    mentions,
	}

	if channel != "" {
		if epoch, ok := backend.channels.Current(channel); ok {
			ciphertext, err := channelkey.Encrypt(epoch.Key, []byte(content))
			if err != nil {
				return uuid.UUID{}, err
			}
			m.IsEncrypted = true
			m.EncryptedContent = ciphertext
			m.Content = ""
		}
	}

	payload, err := protocol.EncodeInnerMessage(m)
	if err != nil {
		return uuid.UUID{}, err
	}

	pkt := &protocol.Packet{
		Version: protocol.CurrentVersion, Type: protocol.TypeMessage,
		TTL: 7, TimestampMs: m.TimestampMs, SenderID: backend.PeerID,
		Payload: payload,
	}
	backend.broadcast(context.Background(), pkt)
	return m.ID, nil
}

// SendPrivate delivers content end-to-end encrypted to a single peer
// identified by its persistent fingerprint. If no session is currently
// established it only starts a handshake and content is not sent.
func (backend *Backend) SendPrivate(ctx context.Context, recipientFingerprint, content string) (uuid.UUID, error) {
	peerID, ok := backend.peerIDForFingerprint(recipientFingerprint)
	if !ok {
		return uuid.UUID{}, fmt.Errorf("core: unknown fingerprint %s", recipientFingerprint)
	}

	m := &protocol.InnerMessage{
		ID:              uuid.New(),
		Sender:          sanitize.Nickname(backend.Config.Nickname),
		Content:         content,
		TimestampMs:     nowMillis(),
		IsPrivate:       true,
		HasSenderPeerID: true,
		SenderPeerID:    backend.PeerID,
	}
	payload, err := protocol.EncodeInnerMessage(m)
	if err != nil {
		return uuid.UUID{}, err
	}

	backend.deliveryMu.Lock()
	var id [16]byte
	copy(id[:], m.ID[:])
	backend.delivery[id] = relay.NewDeliveryStatus()
	backend.delivery[id].MarkSent()
	backend.deliveryMu.Unlock()

	if err := backend.sendEncryptedInner(ctx, peerID, protocol.TypeMessage, payload); err != nil {
		return uuid.UUID{}, err
	}
	return m.ID, nil
}

// sendEncryptedInner wraps an inner payload with its type byte and encrypts
// it under the established session with peerID. Without a usable session it
// starts a handshake and drops the payload. The packet is sent whole; it is
// not fragmented, whatever its size relative to the relay MTU.
func (backend *Backend) sendEncryptedInner(ctx context.Context, peerID [8]byte, innerType protocol.MessageType, innerPayload []byte) error {
	plaintext := make([]byte, 0, 1+len(innerPayload))
	plaintext = append(plaintext, byte(innerType))
	plaintext = append(plaintext, innerPayload...)

	sess, ok := backend.sessions.Get(peerID)
	if !ok || sess.Expired() {
		backend.startRekey(ctx, peerID)
		return nil // only the handshake goes out; the payload is dropped
	}

	ciphertext, err := sess.Encrypt(plaintext)
	if err != nil {
		return err
	}

	pkt := &protocol.Packet{
		Version: protocol.CurrentVersion, Type: protocol.TypeNoiseEncrypted,
		TTL: 7, TimestampMs: nowMillis(), SenderID: backend.PeerID,
		HasRecip: true, RecipientID: peerID, Payload: ciphertext,
	}
	backend.sendToPeer(ctx, peerID, pkt)
	return nil
}

// broadcast sends pkt to every link peer directly, fragmenting first if it
// would exceed the relay MTU (§4.5).
func (backend *Backend) broadcast(ctx context.Context, pkt *protocol.Packet) {
	mtu := backend.Config.RelayMTU
	if mtu <= 0 {
		mtu = 500
	}

	if len(pkt.Payload) <= mtu {
		frame, err := protocol.Encode(pkt)
		if err != nil {
			backend.Log.Printf("broadcast", "encode: %v", err)
			return
		}
		for _, peer := range backend.link.Peers() {
			if err := backend.link.Send(ctx, peer, frame); err != nil {
				backend.Log.Printf("broadcast", "send to %s: %v", peer, err)
			}
		}
		return
	}

	pieces, err := fragment.Split(pkt.Payload, uint8(pkt.Type), mtu)
	if err != nil {
		backend.Log.Printf("broadcast", "split: %v", err)
		return
	}
	for i, piece := range pieces {
		fragType := protocol.TypeFragmentContinue
		switch {
		case i == 0:
			fragType = protocol.TypeFragmentStart
		case i == len(pieces)-1:
			fragType = protocol.TypeFragmentEnd
		}
		fragPkt := *pkt
		fragPkt.Type = fragType
		fragPkt.Payload = protocol.EncodeFragment(piece)

		frame, err := protocol.Encode(&fragPkt)
		if err != nil {
			backend.Log.Printf("broadcast", "encode fragment: %v", err)
			return
		}
		for _, peer := range backend.link.Peers() {
			if err := backend.link.Send(ctx, peer, frame); err != nil {
				backend.Log.Printf("broadcast", "send fragment to %s: %v", peer, err)
			}
		}
	}
}

func (backend *Backend) peerIDForFingerprint(fingerprint string) ([8]byte, bool) {
	backend.peersMu.RLock()
	defer backend.peersMu.RUnlock()
	for id, pi := range backend.peers {
		if pi.Fingerprint == fingerprint {
			return id, true
		}
	}
	return [8]byte{}, false
}

// SetChannelPassword rotates the channel's key to a new password (§4.6) and
// notifies every known member with a channelPasswordUpdate carrying the new
// commitment and the password, individually encrypted under that member's
// Noise session; the caller must be the channel's owner.
func (backend *Backend) SetChannelPassword(ctx context.Context, channel, password string) error {
	if err := sanitize.ChannelName(channel); err != nil {
		return err
	}
	epoch := channelkey.Rotate(backend.channels, password, channel, backend.Identity.Fingerprint)

	update := &protocol.ChannelPasswordUpdate{
		Channel:           channel,
		OwnerFingerprint:  backend.Identity.Fingerprint,
		EncryptedPassword: []byte(password),
		NewKeyCommitment:  channelkey.CommitmentHex(epoch.Key),
	}
	payload, err := protocol.EncodeChannelPasswordUpdate(update)
	if err != nil {
		return err
	}

	for _, member := range backend.channelMembers(channel) {
		peerID, ok := backend.peerIDForFingerprint(member)
		if !ok {
			continue
		}
		if err := backend.sendEncryptedInner(ctx, peerID, protocol.TypeChannelPasswordUpdate, payload); err != nil {
			backend.Log.Printf("SetChannelPassword", "notify %s: %v", member, err)
		}
	}
	return nil
}

// RemoveChannelPassword forgets every epoch key known for a channel,
// reverting it to a plaintext channel.
func (backend *Backend) RemoveChannelPassword(channel string) {
	backend.channels.Forget(channel)
}

// SubscribeEvents registers a new event subscriber (§6); buffer sizes the
// channel so a slow consumer drops events instead of blocking the dispatcher.
func (backend *Backend) SubscribeEvents(buffer int) (<-chan Event, int) {
	return backend.events.Subscribe(buffer)
}

// UnsubscribeEvents releases a subscriber registered via SubscribeEvents.
func (backend *Backend) UnsubscribeEvents(id int) {
	backend.events.Unsubscribe(id)
}

// DeliveryStatusFor returns the tracked delivery status for a previously
// sent private message, if any.
func (backend *Backend) DeliveryStatusFor(messageID uuid.UUID) (*relay.DeliveryStatus, bool) {
	var id [16]byte
	copy(id[:], messageID[:])
	backend.deliveryMu.Lock()
	defer backend.deliveryMu.Unlock()
	status, ok := backend.delivery[id]
	return status, ok
}
