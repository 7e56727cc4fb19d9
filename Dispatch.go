/*
File Name:  Dispatch.go

The inbound packet pipeline (§4, §5): one worker reads frames off the
Link, runs each through flood-relay dedup/TTL suppression (C6) before
either delivering it locally, forwarding it to every other reachable
peer, or both. This plays the role of the teacher's single
packet-processing goroutine in Network.go, which decoded frames before
handing them off to per-type handlers; here the per-type handlers are
one switch over protocol.MessageType instead of the teacher's dynamic
opcode table.
*/

package core

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"time"

	flynnnoise "github.com/flynn/noise"

	"github.com/bitchat-go/core/channelkey"
	"github.com/bitchat-go/core/fragment"
	"github.com/bitchat-go/core/identity"
	"github.com/bitchat-go/core/link"
	"github.com/bitchat-go/core/noise"
	"github.com/bitchat-go/core/protocol"
	"github.com/bitchat-go/core/relay"
)

// peerInfo is what the dispatcher has learned about a remote protocol
// peer-id: its persistent fingerprint (once known), its last-announced
// nickname, and which transport-level link currently reaches it.
type peerInfo struct {
	Fingerprint string
	Nickname    string
	LinkPeerID  string
}

func (backend *Backend) readLoop(ctx context.Context) {
	defer backend.wg.Done()
	for {
		linkPeerID, frame, err := backend.link.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			backend.Log.Printf("readLoop", "recv: %v", err)
			continue
		}
		backend.handleFrame(ctx, linkPeerID, frame)
	}
}

func (backend *Backend) peerEventLoop(ctx context.Context) {
	defer backend.wg.Done()
	events := backend.link.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case link.PeerUp:
				backend.sendVersionHello(ctx, ev.LinkPeerID)
				backend.broadcastAnnouncement(identity.Announce(backend.Identity, backend.PeerID, [8]byte{}, false, backend.Config.Nickname, nowMillis()))
			case link.PeerDown:
				backend.forgetLinkPeer(ev.LinkPeerID)
			}
		}
	}
}

// handleFrame decodes one inbound frame and runs it through the
// relay decision before delivering and/or forwarding it.
func (backend *Backend) handleFrame(ctx context.Context, linkPeerID string, frame []byte) {
	pkt, err := protocol.Decode(frame)
	if err != nil {
		backend.Log.Printf("handleFrame", "decode: %v", err)
		return
	}
	if backend.isOwnPeerID(pkt.SenderID) {
		return
	}
	if fp := backend.fingerprintFor(pkt.SenderID); fp != "" && backend.favorites.IsBlocked(fp) {
		return
	}

	key := relay.DedupKey(pkt.SenderID, dedupMessageID(pkt), pkt.TimestampMs)
	decision := relay.Evaluate(backend.dedup, key, pkt.TTL, backend.isForLocalDelivery(pkt))

	if decision.ShouldDeliverLocally {
		backend.deliverLocal(ctx, linkPeerID, pkt)
	}
	if decision.ShouldForward {
		backend.forward(ctx, linkPeerID, pkt, decision.ForwardTTL)
	}
}

// dedupMessageID reduces a packet to the 16-byte identity relay.DedupKey
// expects: the application message's own id when there is one, the shared
// fragment_id plus the piece's index for fragment pieces, or a content hash
// otherwise.
func dedupMessageID(pkt *protocol.Packet) [16]byte {
	var id [16]byte
	switch pkt.Type {
	case protocol.TypeMessage:
		if m, err := protocol.DecodeInnerMessage(pkt.Payload); err == nil {
			copy(id[:], m.ID[:])
			return id
		}
	case protocol.TypeFragmentStart, protocol.TypeFragmentContinue, protocol.TypeFragmentEnd:
		if len(pkt.Payload) >= fragment.FragmentIDSize+2 {
			copy(id[:], pkt.Payload[:fragment.FragmentIDSize+2])
			return id
		}
	}
	sum := sha256.Sum256(pkt.Payload)
	copy(id[:], sum[:16])
	return id
}

// isForLocalDelivery reports whether this packet is addressed to us:
// broadcasts always are, unicast packets only if we are the recipient.
func (backend *Backend) isForLocalDelivery(pkt *protocol.Packet) bool {
	if pkt.HasRecip && !pkt.IsBroadcast() {
		return backend.isOwnPeerID(pkt.RecipientID)
	}
	return true
}

func (backend *Backend) forward(ctx context.Context, originLinkPeerID string, pkt *protocol.Packet, ttl uint8) {
	fwd := *pkt
	fwd.TTL = ttl
	frame, err := protocol.Encode(&fwd)
	if err != nil {
		backend.Log.Printf("forward", "encode: %v", err)
		return
	}
	for _, peer := range backend.link.Peers() {
		if peer == originLinkPeerID {
			continue
		}
		if err := backend.link.Send(ctx, peer, frame); err != nil {
			backend.Log.Printf("forward", "send to %s: %v", peer, err)
		}
	}
}

func (backend *Backend) deliverLocal(ctx context.Context, linkPeerID string, pkt *protocol.Packet) {
	switch pkt.Type {
	case protocol.TypeVersionHello:
		backend.handleVersionHello(ctx, linkPeerID, pkt)
	case protocol.TypeVersionAck:
		// Negotiation outcome is implicit in whether traffic keeps flowing;
		// nothing further to do on receipt.
	case protocol.TypeNoiseHandshakeInit:
		backend.handleHandshakeInit(ctx, linkPeerID, pkt)
	case protocol.TypeNoiseHandshakeResp:
		backend.handleHandshakeResp(ctx, linkPeerID, pkt)
	case protocol.TypeNoiseEncrypted:
		backend.handleNoiseEncrypted(ctx, linkPeerID, pkt)
	case protocol.TypeMessage:
		backend.handlePlainMessage(pkt)
	case protocol.TypeFragmentStart, protocol.TypeFragmentContinue, protocol.TypeFragmentEnd:
		backend.handleFragment(ctx, linkPeerID, pkt)
	case protocol.TypeNoiseIdentityAnnounce:
		backend.handleIdentityAnnounce(ctx, linkPeerID, pkt)
	case protocol.TypeChannelAnnounce, protocol.TypeChannelMetadata:
		backend.handleChannelMetadata(pkt)
	case protocol.TypeChannelRetention:
		backend.handleChannelRetention(pkt)
	case protocol.TypeDeliveryAck:
		backend.handleDeliveryAck(pkt)
	case protocol.TypeReadReceipt:
		backend.handleReadReceipt(pkt)
	case protocol.TypeDeliveryStatusRequest:
		backend.handleDeliveryStatusRequest(ctx, pkt)
	case protocol.TypeChannelKeyVerifyRequest:
		backend.handleChannelKeyVerifyRequest(ctx, pkt)
	case protocol.TypeChannelKeyVerifyResponse:
		backend.handleChannelKeyVerifyResponse(pkt)
	case protocol.TypeChannelPasswordUpdate:
		backend.applyChannelPasswordUpdate(pkt.Payload)
	case protocol.TypeLeave:
		backend.handleLeave(pkt)
	default:
		backend.Log.Printf("deliverLocal", "unhandled type %#x", uint8(pkt.Type))
	}
}

func (backend *Backend) handleVersionHello(ctx context.Context, linkPeerID string, pkt *protocol.Packet) {
	hello, err := protocol.DecodeVersionHello(pkt.Payload)
	if err != nil {
		backend.Log.Printf("handleVersionHello", "decode: %v", err)
		return
	}

	rejected := !containsVersion(hello.SupportedVersions, protocol.CurrentVersion)
	ack := &protocol.VersionAck{
		AgreedVersion: protocol.CurrentVersion,
		ServerVersion: Version,
		Platform:      "go",
		Rejected:      rejected,
	}
	if rejected {
		ack.Reason = "unsupported version"
	}

	payload, err := protocol.EncodeVersionAck(ack)
	if err != nil {
		return
	}
	out := &protocol.Packet{
		Version: protocol.CurrentVersion, Type: protocol.TypeVersionAck,
		TTL: 1, TimestampMs: nowMillis(), SenderID: backend.PeerID,
		HasRecip: true, RecipientID: pkt.SenderID, Payload: payload,
	}
	backend.sendOverLink(ctx, linkPeerID, out)
}

func (backend *Backend) sendVersionHello(ctx context.Context, linkPeerID string) {
	hello := &protocol.VersionHello{
		SupportedVersions: []uint8{protocol.CurrentVersion},
		PreferredVersion:  protocol.CurrentVersion,
		ClientVersion:     Version,
		Platform:          "go",
	}
	payload, err := protocol.EncodeVersionHello(hello)
	if err != nil {
		return
	}
	pkt := &protocol.Packet{
		Version: protocol.CurrentVersion, Type: protocol.TypeVersionHello,
		TTL: 1, TimestampMs: nowMillis(), SenderID: backend.PeerID, Payload: payload,
	}
	backend.sendOverLink(ctx, linkPeerID, pkt)
}

func containsVersion(versions []uint8, v uint8) bool {
	for _, x := range versions {
		if x == v {
			return true
		}
	}
	return false
}

func (backend *Backend) localStaticKeypair() flynnnoise.DHKey {
	return flynnnoise.DHKey{
		Private: append([]byte(nil), backend.Identity.StaticPriv[:]...),
		Public:  append([]byte(nil), backend.Identity.StaticPub[:]...),
	}
}

func (backend *Backend) handleHandshakeInit(ctx context.Context, linkPeerID string, pkt *protocol.Packet) {
	if !backend.rateLimiter.AllowHandshake(pkt.SenderID) {
		return
	}

	sess, replyMsg, err := noise.RespondToHandshake(pkt.SenderID, backend.localStaticKeypair(), pkt.Payload, nil)
	if err != nil {
		backend.Log.Printf("handleHandshakeInit", "respond: %v", err)
		return
	}
	backend.sessions.Put(pkt.SenderID, sess)
	backend.bindSessionIdentity(pkt.SenderID, linkPeerID, sess)

	out := &protocol.Packet{
		Version: protocol.CurrentVersion, Type: protocol.TypeNoiseHandshakeResp,
		TTL: 1, TimestampMs: nowMillis(), SenderID: backend.PeerID,
		HasRecip: true, RecipientID: pkt.SenderID, Payload: replyMsg,
	}
	backend.sendOverLink(ctx, linkPeerID, out)
}

func (backend *Backend) handleHandshakeResp(ctx context.Context, linkPeerID string, pkt *protocol.Packet) {
	sess, ok := backend.sessions.Get(pkt.SenderID)
	if !ok || sess.State == noise.StateEstablished {
		return
	}
	if _, err := sess.ReadHandshakeMessage(pkt.Payload); err != nil {
		backend.Log.Printf("handleHandshakeResp", "read: %v", err)
		backend.sessions.Delete(pkt.SenderID)
		return
	}
	if sess.Role == noise.RoleInitiator {
		finalMsg, err := sess.WriteHandshakeMessage(nil)
		if err != nil {
			backend.Log.Printf("handleHandshakeResp", "write: %v", err)
			backend.sessions.Delete(pkt.SenderID)
			return
		}
		backend.sendOverLink(ctx, linkPeerID, &protocol.Packet{
			Version: protocol.CurrentVersion, Type: protocol.TypeNoiseHandshakeResp,
			TTL: 1, TimestampMs: nowMillis(), SenderID: backend.PeerID,
			HasRecip: true, RecipientID: pkt.SenderID, Payload: finalMsg,
		})
	}
	backend.bindSessionIdentity(pkt.SenderID, linkPeerID, sess)
}

// bindSessionIdentity binds the fingerprint implied by a freshly
// established session's remote static key to the peer-id it arrived on,
// and flushes anything store-and-forward was holding for that fingerprint.
func (backend *Backend) bindSessionIdentity(peerID [8]byte, linkPeerID string, sess *noise.Session) {
	if sess.State != noise.StateEstablished || len(sess.RemoteStaticPub) != 32 {
		return
	}
	var staticPub [32]byte
	copy(staticPub[:], sess.RemoteStaticPub)
	fingerprint := identity.FingerprintOfStaticPub(staticPub)

	backend.rememberPeer(peerID, linkPeerID, fingerprint, backend.nicknameFor(peerID))

	for _, pending := range backend.storeForward.Flush(fingerprint) {
		if err := backend.link.Send(context.Background(), linkPeerID, pending.Frame); err != nil {
			backend.Log.Printf("bindSessionIdentity", "flush send: %v", err)
		}
	}
}

func (backend *Backend) startRekey(ctx context.Context, peerID [8]byte) {
	sess, initMsg, err := noise.StartHandshake(peerID, backend.localStaticKeypair(), nil)
	if err != nil {
		backend.Log.Printf("startRekey", "start: %v", err)
		return
	}
	backend.sessions.Put(peerID, sess)

	pkt := &protocol.Packet{
		Version: protocol.CurrentVersion, Type: protocol.TypeNoiseHandshakeInit,
		TTL: 1, TimestampMs: nowMillis(), SenderID: backend.PeerID,
		HasRecip: true, RecipientID: peerID, Payload: initMsg,
	}
	backend.sendToPeer(ctx, peerID, pkt)
}

func (backend *Backend) handleNoiseEncrypted(ctx context.Context, linkPeerID string, pkt *protocol.Packet) {
	sess, ok := backend.sessions.Get(pkt.SenderID)
	if !ok || sess.State != noise.StateEstablished {
		return
	}
	if !backend.rateLimiter.AllowMessage(pkt.SenderID) {
		return
	}

	plaintext, err := sess.Decrypt(pkt.Payload)
	if err != nil {
		backend.Log.Printf("handleNoiseEncrypted", "decrypt: %v", err)
		return
	}
	if len(plaintext) < 1 {
		return
	}
	backend.bindSessionIdentity(pkt.SenderID, linkPeerID, sess)

	innerType := protocol.MessageType(plaintext[0])
	body := plaintext[1:]

	switch innerType {
	case protocol.TypeMessage:
		backend.handlePlainMessage(&protocol.Packet{Type: innerType, Payload: body, SenderID: pkt.SenderID, TimestampMs: pkt.TimestampMs})
	case protocol.TypeChannelPasswordUpdate:
		backend.applyChannelPasswordUpdate(body)
	case protocol.TypeDeliveryAck:
		backend.handleDeliveryAck(&protocol.Packet{Payload: body})
	case protocol.TypeReadReceipt:
		backend.handleReadReceipt(&protocol.Packet{Payload: body})
	default:
		backend.Log.Printf("handleNoiseEncrypted", "unhandled inner type %#x", uint8(innerType))
	}

	if sess.NeedsRekey() {
		backend.startRekey(ctx, pkt.SenderID)
	}
}

func (backend *Backend) handleFragment(ctx context.Context, linkPeerID string, pkt *protocol.Packet) {
	f, err := protocol.DecodeFragment(pkt.Payload)
	if err != nil {
		backend.Log.Printf("handleFragment", "decode: %v", err)
		return
	}
	payload, originalType, complete := backend.reassembly.Add(f)
	if !complete {
		return
	}
	backend.deliverLocal(ctx, linkPeerID, &protocol.Packet{
		Version: pkt.Version, Type: protocol.MessageType(originalType), TTL: pkt.TTL,
		TimestampMs: pkt.TimestampMs, SenderID: pkt.SenderID,
		HasRecip: pkt.HasRecip, RecipientID: pkt.RecipientID, Payload: payload,
	})
}

func (backend *Backend) handlePlainMessage(pkt *protocol.Packet) {
	m, err := protocol.DecodeInnerMessage(pkt.Payload)
	if err != nil {
		backend.Log.Printf("handlePlainMessage", "decode: %v", err)
		return
	}

	content := m.Content
	if m.IsEncrypted && m.Channel != "" {
		plain, err := channelkey.DecryptForChannel(backend.channels, m.Channel, m.EncryptedContent)
		if err != nil {
			return
		}
		content = string(plain)
	}

	fingerprint := ""
	if pi := backend.peerByID(pkt.SenderID); pi != nil {
		fingerprint = pi.Fingerprint
	}
	if m.Channel != "" && fingerprint != "" {
		backend.rememberChannelMember(m.Channel, fingerprint)
	}

	backend.events.Publish(Event{
		Kind: EventMessage,
		Message: &InnerMessageEvent{
			SenderFingerprint: fingerprint,
			SenderNickname:    m.Sender,
			Content:           content,
			Channel:           m.Channel,
			IsPrivate:         m.IsPrivate,
			TimestampMs:       m.TimestampMs,
		},
	})

	if m.IsPrivate && !m.IsRelay {
		var id [16]byte
		copy(id[:], m.ID[:])
		backend.sendDeliveryAck(pkt.SenderID, id)
	}
}

func (backend *Backend) sendDeliveryAck(to [8]byte, originalMessageID [16]byte) {
	ack := &protocol.DeliveryAck{
		OriginalMessageID: originalMessageID,
		RecipientID:       backend.PeerID,
		RecipientNickname: backend.Config.Nickname,
	}
	payload, err := protocol.EncodeDeliveryAck(ack)
	if err != nil {
		return
	}
	pkt := &protocol.Packet{
		Version: protocol.CurrentVersion, Type: protocol.TypeDeliveryAck,
		TTL: 7, TimestampMs: nowMillis(), SenderID: backend.PeerID,
		HasRecip: true, RecipientID: to, Payload: payload,
	}
	backend.sendToPeer(context.Background(), to, pkt)
}

func (backend *Backend) handleIdentityAnnounce(ctx context.Context, linkPeerID string, pkt *protocol.Packet) {
	ann, err := protocol.DecodeNoiseIdentityAnnounce(pkt.Payload)
	if err != nil {
		backend.Log.Printf("handleIdentityAnnounce", "decode: %v", err)
		return
	}

	signingPub := ed25519.PublicKey(append([]byte(nil), ann.SigningPub[:]...))
	idAnn := &identity.Announcement{
		PeerID:         ann.PeerID,
		StaticPub:      ann.StaticPub,
		SigningPub:     signingPub,
		Nickname:       ann.Nickname,
		TimestampMs:    ann.TimestampMs,
		PreviousPeerID: ann.PreviousPeerID,
		HasPrevious:    ann.HasPrevious,
		Signature:      ann.Signature,
	}
	if !idAnn.Verify() {
		backend.Log.Printf("handleIdentityAnnounce", "signature did not verify for %x", ann.PeerID)
		return
	}

	fingerprint := idAnn.Fingerprint()
	backend.rememberPeer(ann.PeerID, linkPeerID, fingerprint, ann.Nickname)

	if ann.HasPrevious {
		backend.remapSession(ann.PreviousPeerID, ann.PeerID)
		backend.forgetPeerID(ann.PreviousPeerID)
	}

	backend.events.Publish(Event{
		Kind: EventPeerDiscovered, PeerID: ann.PeerID,
		Fingerprint: fingerprint, Nickname: ann.Nickname,
	})

	if linkPeerID != "" {
		for _, pending := range backend.storeForward.Flush(fingerprint) {
			if err := backend.link.Send(ctx, linkPeerID, pending.Frame); err != nil {
				backend.Log.Printf("handleIdentityAnnounce", "flush send: %v", err)
			}
		}
	}
}

func (backend *Backend) remapSession(prev, next [8]byte) {
	if sess, ok := backend.sessions.Get(prev); ok {
		backend.sessions.Delete(prev)
		backend.sessions.Put(next, sess)
	}
}

func (backend *Backend) handleChannelMetadata(pkt *protocol.Packet) {
	c, err := protocol.DecodeChannelMetadata(pkt.Payload)
	if err != nil {
		backend.Log.Printf("handleChannelMetadata", "decode: %v", err)
		return
	}
	backend.events.Publish(Event{
		Kind: EventChannelMetadata,
		Channel: &ChannelInfo{
			Channel:             c.Channel,
			CreatorFingerprint:  c.CreatorFingerprint,
			CreatedAtMs:         c.CreatedAtMs,
			IsPasswordProtected: c.IsPasswordProtected,
		},
	})
}

func (backend *Backend) handleChannelRetention(pkt *protocol.Packet) {
	r, err := protocol.DecodeChannelRetention(pkt.Payload)
	if err != nil {
		backend.Log.Printf("handleChannelRetention", "decode: %v", err)
		return
	}
	backend.Log.Printf("handleChannelRetention", "channel %s retain=%v maxAge=%ds", r.Channel, r.RetainMessages, r.MaxAgeSeconds)
}

func (backend *Backend) handleDeliveryAck(pkt *protocol.Packet) {
	ack, err := protocol.DecodeDeliveryAck(pkt.Payload)
	if err != nil {
		backend.Log.Printf("handleDeliveryAck", "decode: %v", err)
		return
	}
	backend.deliveryMu.Lock()
	status, ok := backend.delivery[ack.OriginalMessageID]
	backend.deliveryMu.Unlock()
	if !ok {
		return
	}
	status.MarkDelivered(ack.RecipientNickname, time.Now())
	backend.events.Publish(Event{Kind: EventDeliveryUpdate, MessageID: ack.OriginalMessageID, Status: status})
}

func (backend *Backend) handleReadReceipt(pkt *protocol.Packet) {
	rr, err := protocol.DecodeReadReceipt(pkt.Payload)
	if err != nil {
		backend.Log.Printf("handleReadReceipt", "decode: %v", err)
		return
	}
	backend.deliveryMu.Lock()
	status, ok := backend.delivery[rr.OriginalMessageID]
	backend.deliveryMu.Unlock()
	if !ok {
		return
	}
	status.MarkRead(rr.ReaderNickname, time.Now())
	backend.events.Publish(Event{Kind: EventDeliveryUpdate, MessageID: rr.OriginalMessageID, Status: status})
}

func (backend *Backend) handleDeliveryStatusRequest(ctx context.Context, pkt *protocol.Packet) {
	req, err := protocol.DecodeDeliveryStatusRequest(pkt.Payload)
	if err != nil {
		backend.Log.Printf("handleDeliveryStatusRequest", "decode: %v", err)
		return
	}
	backend.deliveryMu.Lock()
	status, ok := backend.delivery[req.OriginalMessageID]
	backend.deliveryMu.Unlock()
	if !ok || (status.State != relay.DeliveryDelivered && status.State != relay.DeliveryRead) {
		return
	}
	ack := &protocol.DeliveryAck{
		OriginalMessageID: req.OriginalMessageID,
		RecipientID:       backend.PeerID,
		RecipientNickname: backend.Config.Nickname,
	}
	payload, err := protocol.EncodeDeliveryAck(ack)
	if err != nil {
		return
	}
	out := &protocol.Packet{
		Version: protocol.CurrentVersion, Type: protocol.TypeDeliveryAck,
		TTL: 7, TimestampMs: nowMillis(), SenderID: backend.PeerID,
		HasRecip: true, RecipientID: req.RequesterID, Payload: payload,
	}
	backend.sendToPeer(ctx, req.RequesterID, out)
}

func (backend *Backend) handleChannelKeyVerifyRequest(ctx context.Context, pkt *protocol.Packet) {
	req, err := protocol.DecodeChannelKeyVerifyRequest(pkt.Payload)
	if err != nil {
		backend.Log.Printf("handleChannelKeyVerifyRequest", "decode: %v", err)
		return
	}
	verified := channelkey.VerifyCommitment(backend.channels, req.Channel, req.Commitment)
	if verified {
		if pi := backend.peerByID(pkt.SenderID); pi != nil && pi.Fingerprint != "" {
			backend.rememberChannelMember(req.Channel, pi.Fingerprint)
		}
	}
	resp := &protocol.ChannelKeyVerifyResponse{Channel: req.Channel, Verified: verified}
	payload, err := protocol.EncodeChannelKeyVerifyResponse(resp)
	if err != nil {
		return
	}
	out := &protocol.Packet{
		Version: protocol.CurrentVersion, Type: protocol.TypeChannelKeyVerifyResponse,
		TTL: 1, TimestampMs: nowMillis(), SenderID: backend.PeerID,
		HasRecip: true, RecipientID: pkt.SenderID, Payload: payload,
	}
	backend.sendToPeer(ctx, pkt.SenderID, out)
}

func (backend *Backend) handleChannelKeyVerifyResponse(pkt *protocol.Packet) {
	resp, err := protocol.DecodeChannelKeyVerifyResponse(pkt.Payload)
	if err != nil {
		backend.Log.Printf("handleChannelKeyVerifyResponse", "decode: %v", err)
		return
	}
	backend.Log.Printf("handleChannelKeyVerifyResponse", "channel %s verified=%v", resp.Channel, resp.Verified)
}

func (backend *Backend) applyChannelPasswordUpdate(body []byte) {
	u, err := protocol.DecodeChannelPasswordUpdate(body)
	if err != nil {
		backend.Log.Printf("applyChannelPasswordUpdate", "decode: %v", err)
		return
	}
	previous, _ := backend.channels.Current(u.Channel)
	next := uint64(0)
	if previous != nil {
		next = previous.EpochNumber + 1
	}
	e := channelkey.NewEpoch(string(u.EncryptedPassword), u.Channel, u.OwnerFingerprint, next, previous)
	backend.channels.AddEpoch(e)

	backend.events.Publish(Event{
		Kind: EventChannelMetadata,
		Channel: &ChannelInfo{
			Channel:             u.Channel,
			CreatorFingerprint:  u.OwnerFingerprint,
			IsPasswordProtected: true,
		},
	})
}

func (backend *Backend) handleLeave(pkt *protocol.Packet) {
	backend.Log.Printf("handleLeave", "peer %x left", pkt.SenderID)
}

// sendOverLink encodes and sends pkt directly to a known transport peer,
// without consulting store-and-forward.
func (backend *Backend) sendOverLink(ctx context.Context, linkPeerID string, pkt *protocol.Packet) {
	frame, err := protocol.Encode(pkt)
	if err != nil {
		backend.Log.Printf("sendOverLink", "encode: %v", err)
		return
	}
	if err := backend.link.Send(ctx, linkPeerID, frame); err != nil {
		backend.Log.Printf("sendOverLink", "send: %v", err)
	}
}

// sendToPeer addresses pkt to a protocol peer-id, falling back to
// store-and-forward when no link currently reaches it (§4.8).
func (backend *Backend) sendToPeer(ctx context.Context, peerID [8]byte, pkt *protocol.Packet) {
	frame, err := protocol.Encode(pkt)
	if err != nil {
		backend.Log.Printf("sendToPeer", "encode: %v", err)
		return
	}

	if linkPeerID, ok := backend.linkFor(peerID); ok {
		if err := backend.link.Send(ctx, linkPeerID, frame); err != nil {
			backend.Log.Printf("sendToPeer", "send: %v", err)
		}
		return
	}

	fingerprint := backend.fingerprintFor(peerID)
	if fingerprint == "" {
		return
	}
	backend.storeForward.Enqueue(fingerprint, frame, backend.favorites.IsFavorite(fingerprint))
}

func (backend *Backend) rememberPeer(peerID [8]byte, linkPeerID, fingerprint, nickname string) {
	backend.peersMu.Lock()
	defer backend.peersMu.Unlock()
	backend.peers[peerID] = &peerInfo{Fingerprint: fingerprint, Nickname: nickname, LinkPeerID: linkPeerID}
	if linkPeerID != "" {
		backend.linkToPeer[linkPeerID] = peerID
	}
}

func (backend *Backend) peerByID(peerID [8]byte) *peerInfo {
	backend.peersMu.RLock()
	defer backend.peersMu.RUnlock()
	return backend.peers[peerID]
}

func (backend *Backend) fingerprintFor(peerID [8]byte) string {
	if pi := backend.peerByID(peerID); pi != nil {
		return pi.Fingerprint
	}
	return ""
}

// rememberChannelMember records that fingerprint has been seen participating
// in channel, either by posting to it or by successfully verifying its key
// commitment. §4.4 rotation needs this roster to know who to notify.
func (backend *Backend) rememberChannelMember(channel, fingerprint string) {
	backend.membersMu.Lock()
	defer backend.membersMu.Unlock()
	set, ok := backend.members[channel]
	if !ok {
		set = make(map[string]struct{})
		backend.members[channel] = set
	}
	set[fingerprint] = struct{}{}
}

// channelMembers returns the fingerprints currently known to be members of
// channel, excluding our own fingerprint.
func (backend *Backend) channelMembers(channel string) []string {
	backend.membersMu.Lock()
	defer backend.membersMu.Unlock()
	set := backend.members[channel]
	out := make([]string, 0, len(set))
	for fp := range set {
		if fp == backend.Identity.Fingerprint {
			continue
		}
		out = append(out, fp)
	}
	return out
}

func (backend *Backend) nicknameFor(peerID [8]byte) string {
	if pi := backend.peerByID(peerID); pi != nil {
		return pi.Nickname
	}
	return ""
}

func (backend *Backend) linkFor(peerID [8]byte) (string, bool) {
	pi := backend.peerByID(peerID)
	if pi == nil || pi.LinkPeerID == "" {
		return "", false
	}
	return pi.LinkPeerID, true
}

func (backend *Backend) forgetPeerID(peerID [8]byte) {
	backend.peersMu.Lock()
	defer backend.peersMu.Unlock()
	if pi, ok := backend.peers[peerID]; ok {
		delete(backend.linkToPeer, pi.LinkPeerID)
	}
	delete(backend.peers, peerID)
}

func (backend *Backend) forgetLinkPeer(linkPeerID string) {
	backend.peersMu.Lock()
	peerID, ok := backend.linkToPeer[linkPeerID]
	delete(backend.linkToPeer, linkPeerID)
	if ok {
		delete(backend.peers, peerID)
	}
	backend.peersMu.Unlock()

	if ok {
		backend.sessions.Delete(peerID)
		backend.events.Publish(Event{Kind: EventPeerLost, PeerID: peerID})
	}
}

// broadcastAnnouncement floods a fresh identity announcement to every
// reachable peer when a link peer comes up and after a peer-id rotation
// (§4.7).
func (backend *Backend) broadcastAnnouncement(ann *identity.Announcement) {
	msg := &protocol.NoiseIdentityAnnounce{
		PeerID:         ann.PeerID,
		StaticPub:      ann.StaticPub,
		Nickname:       ann.Nickname,
		TimestampMs:    ann.TimestampMs,
		HasPrevious:    ann.HasPrevious,
		PreviousPeerID: ann.PreviousPeerID,
		Signature:      ann.Signature,
	}
	copy(msg.SigningPub[:], ann.SigningPub)

	payload, err := protocol.EncodeNoiseIdentityAnnounce(msg)
	if err != nil {
		backend.Log.Printf("broadcastAnnouncement", "encode: %v", err)
		return
	}
	pkt := &protocol.Packet{
		Version:     protocol.CurrentVersion,
		Type:        protocol.TypeNoiseIdentityAnnounce,
		TTL:         7,
		TimestampMs: ann.TimestampMs,
		SenderID:    ann.PeerID,
		Payload:     payload,
	}
	frame, err := protocol.Encode(pkt)
	if err != nil {
		backend.Log.Printf("broadcastAnnouncement", "frame: %v", err)
		return
	}

	ctx := context.Background()
	for _, peer := range backend.link.Peers() {
		if err := backend.link.Send(ctx, peer, frame); err != nil {
			backend.Log.Printf("broadcastAnnouncement", "send to %s: %v", peer, err)
		}
	}
}
