/*
File Name:  Control Messages.go

Wire codecs for the control-plane payloads of §4.8 and the delivery
tracking / channel administration payloads of §4.4 and §4.6. Each is a
tagged payload dispatched on the Packet's MessageType byte (§9 Design
Notes: dynamic dispatch over payload types becomes a codec per variant
rather than a shared encode/decode switch).
*/

package protocol

import (
	"github.com/bitchat-go/core/codec"
)

// VersionHello is sent once per new peer before any Noise handshake.
type VersionHello struct {
	SupportedVersions []uint8
	PreferredVersion  uint8
	ClientVersion     string
	Platform          string
	Capabilities      []string
}

func EncodeVersionHello(h *VersionHello) ([]byte, error) {
	w := codec.NewWriter(64)
	w.WriteUint8(uint8(len(h.SupportedVersions)))
	w.WriteRaw(h.SupportedVersions)
	w.WriteUint8(h.PreferredVersion)
	if err := w.WriteString8(h.ClientVersion); err != nil {
		return nil, err
	}
	if err := w.WriteString8(h.Platform); err != nil {
		return nil, err
	}
	w.WriteUint8(uint8(len(h.Capabilities)))
	for _, c := range h.Capabilities {
		if err := w.WriteString8(c); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

func DecodeVersionHello(data []byte) (*VersionHello, error) {
	r := codec.NewReader(data)
	h := &VersionHello{}

	n, err := r.ReadUint8()
	if err != nil {
		return nil, ErrMalformedInnerMessage
	}
	if h.SupportedVersions, err = r.ReadBytes(int(n)); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	if h.PreferredVersion, err = r.ReadUint8(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	if h.ClientVersion, err = r.ReadString8(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	if h.Platform, err = r.ReadString8(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	capCount, err := r.ReadUint8()
	if err != nil {
		return nil, ErrMalformedInnerMessage
	}
	h.Capabilities = make([]string, capCount)
	for i := range h.Capabilities {
		if h.Capabilities[i], err = r.ReadString8(); err != nil {
			return nil, ErrMalformedInnerMessage
		}
	}
	return h, nil
}

// VersionAck is the response to VersionHello.
type VersionAck struct {
	AgreedVersion uint8
	ServerVersion string
	Platform      string
	Capabilities  []string
	Rejected      bool
	Reason        string
}

func EncodeVersionAck(a *VersionAck) ([]byte, error) {
	w := codec.NewWriter(64)
	w.WriteUint8(a.AgreedVersion)
	if err := w.WriteString8(a.ServerVersion); err != nil {
		return nil, err
	}
	if err := w.WriteString8(a.Platform); err != nil {
		return nil, err
	}
	w.WriteUint8(uint8(len(a.Capabilities)))
	for _, c := range a.Capabilities {
		if err := w.WriteString8(c); err != nil {
			return nil, err
		}
	}
	rejected := uint8(0)
	if a.Rejected {
		rejected = 1
	}
	w.WriteUint8(rejected)
	if err := w.WriteString8(a.Reason); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func DecodeVersionAck(data []byte) (*VersionAck, error) {
	r := codec.NewReader(data)
	a := &VersionAck{}

	var err error
	if a.AgreedVersion, err = r.ReadUint8(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	if a.ServerVersion, err = r.ReadString8(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	if a.Platform, err = r.ReadString8(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	capCount, err := r.ReadUint8()
	if err != nil {
		return nil, ErrMalformedInnerMessage
	}
	a.Capabilities = make([]string, capCount)
	for i := range a.Capabilities {
		if a.Capabilities[i], err = r.ReadString8(); err != nil {
			return nil, ErrMalformedInnerMessage
		}
	}
	rejected, err := r.ReadUint8()
	if err != nil {
		return nil, ErrMalformedInnerMessage
	}
	a.Rejected = rejected != 0
	if a.Reason, err = r.ReadString8(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	return a, nil
}

// ChannelMetadata announces a channel's existence and ownership.
type ChannelMetadata struct {
	Channel             string
	CreatorID           [PeerIDSize]byte
	CreatorFingerprint  string
	CreatedAtMs         uint64
	IsPasswordProtected bool
	KeyCommitment       string // empty if not password protected
}

func EncodeChannelMetadata(c *ChannelMetadata) ([]byte, error) {
	w := codec.NewWriter(96)
	if err := w.WriteString8(c.Channel); err != nil {
		return nil, err
	}
	w.WriteRaw(c.CreatorID[:])
	if err := w.WriteString8(c.CreatorFingerprint); err != nil {
		return nil, err
	}
	w.WriteUint64(c.CreatedAtMs)
	protected := uint8(0)
	if c.IsPasswordProtected {
		protected = 1
	}
	w.WriteUint8(protected)
	if err := w.WriteString8(c.KeyCommitment); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func DecodeChannelMetadata(data []byte) (*ChannelMetadata, error) {
	r := codec.NewReader(data)
	c := &ChannelMetadata{}

	var err error
	if c.Channel, err = r.ReadString8(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	id, err := r.ReadBytes(PeerIDSize)
	if err != nil {
		return nil, ErrMalformedInnerMessage
	}
	copy(c.CreatorID[:], id)
	if c.CreatorFingerprint, err = r.ReadString8(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	if c.CreatedAtMs, err = r.ReadUint64(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	protected, err := r.ReadUint8()
	if err != nil {
		return nil, ErrMalformedInnerMessage
	}
	c.IsPasswordProtected = protected != 0
	if c.KeyCommitment, err = r.ReadString8(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	return c, nil
}

// ChannelRetention is the creator-asserted retention policy for a channel
// (supplemental: resolves the Open Question left by channelRetention).
type ChannelRetention struct {
	Channel        string
	RetainMessages bool
	MaxAgeSeconds  uint64
}

func EncodeChannelRetention(r *ChannelRetention) ([]byte, error) {
	w := codec.NewWriter(32)
	if err := w.WriteString8(r.Channel); err != nil {
		return nil, err
	}
	retain := uint8(0)
	if r.RetainMessages {
		retain = 1
	}
	w.WriteUint8(retain)
	w.WriteUint64(r.MaxAgeSeconds)
	return w.Bytes(), nil
}

func DecodeChannelRetention(data []byte) (*ChannelRetention, error) {
	r := codec.NewReader(data)
	out := &ChannelRetention{}

	var err error
	if out.Channel, err = r.ReadString8(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	retain, err := r.ReadUint8()
	if err != nil {
		return nil, ErrMalformedInnerMessage
	}
	out.RetainMessages = retain != 0
	if out.MaxAgeSeconds, err = r.ReadUint64(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	return out, nil
}

// DeliveryAck confirms receipt of a message addressed to self.
type DeliveryAck struct {
	OriginalMessageID  [16]byte
	RecipientID        [PeerIDSize]byte
	RecipientNickname  string
	HopCount           uint8
}

func EncodeDeliveryAck(a *DeliveryAck) ([]byte, error) {
	w := codec.NewWriter(48)
	w.WriteRaw(a.OriginalMessageID[:])
	w.WriteRaw(a.RecipientID[:])
	if err := w.WriteString8(a.RecipientNickname); err != nil {
		return nil, err
	}
	w.WriteUint8(a.HopCount)
	return w.Bytes(), nil
}

func DecodeDeliveryAck(data []byte) (*DeliveryAck, error) {
	r := codec.NewReader(data)
	a := &DeliveryAck{}

	id, err := r.ReadBytes(16)
	if err != nil {
		return nil, ErrMalformedInnerMessage
	}
	copy(a.OriginalMessageID[:], id)

	recip, err := r.ReadBytes(PeerIDSize)
	if err != nil {
		return nil, ErrMalformedInnerMessage
	}
	copy(a.RecipientID[:], recip)

	if a.RecipientNickname, err = r.ReadString8(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	if a.HopCount, err = r.ReadUint8(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	return a, nil
}

// ReadReceipt is emitted when the user reads a received message.
type ReadReceipt struct {
	OriginalMessageID [16]byte
	ReaderID          [PeerIDSize]byte
	ReaderNickname    string
}

func EncodeReadReceipt(r *ReadReceipt) ([]byte, error) {
	w := codec.NewWriter(40)
	w.WriteRaw(r.OriginalMessageID[:])
	w.WriteRaw(r.ReaderID[:])
	if err := w.WriteString8(r.ReaderNickname); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// NoiseIdentityAnnounce is broadcast whenever a peer's ephemeral peer-id
// rotates (§4.7), binding the new peer-id to the persistent static and
// signing keys so receivers can remap existing session state.
type NoiseIdentityAnnounce struct {
	PeerID         [PeerIDSize]byte
	StaticPub      [32]byte
	SigningPub     [32]byte
	Nickname       string
	TimestampMs    uint64
	HasPrevious    bool
	PreviousPeerID [PeerIDSize]byte
	Signature      []byte
}

func EncodeNoiseIdentityAnnounce(a *NoiseIdentityAnnounce) ([]byte, error) {
	w := codec.NewWriter(192)
	w.WriteRaw(a.PeerID[:])
	w.WriteRaw(a.StaticPub[:])
	w.WriteRaw(a.SigningPub[:])
	if err := w.WriteString8(a.Nickname); err != nil {
		return nil, err
	}
	w.WriteUint64(a.TimestampMs)
	hasPrev := uint8(0)
	if a.HasPrevious {
		hasPrev = 1
	}
	w.WriteUint8(hasPrev)
	if a.HasPrevious {
		w.WriteRaw(a.PreviousPeerID[:])
	}
	if err := w.WriteBytes8(a.Signature); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func DecodeNoiseIdentityAnnounce(data []byte) (*NoiseIdentityAnnounce, error) {
	r := codec.NewReader(data)
	a := &NoiseIdentityAnnounce{}

	peerID, err := r.ReadBytes(PeerIDSize)
	if err != nil {
		return nil, ErrMalformedInnerMessage
	}
	copy(a.PeerID[:], peerID)

	staticPub, err := r.ReadBytes(32)
	if err != nil {
		return nil, ErrMalformedInnerMessage
	}
	copy(a.StaticPub[:], staticPub)

	signingPub, err := r.ReadBytes(32)
	if err != nil {
		return nil, ErrMalformedInnerMessage
	}
	copy(a.SigningPub[:], signingPub)

	if a.Nickname, err = r.ReadString8(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	if a.TimestampMs, err = r.ReadUint64(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	hasPrev, err := r.ReadUint8()
	if err != nil {
		return nil, ErrMalformedInnerMessage
	}
	a.HasPrevious = hasPrev != 0
	if a.HasPrevious {
		prev, err := r.ReadBytes(PeerIDSize)
		if err != nil {
			return nil, ErrMalformedInnerMessage
		}
		copy(a.PreviousPeerID[:], prev)
	}
	if a.Signature, err = r.ReadBytes8(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	return a, nil
}

// ChannelKeyVerifyRequest lets a joiner prove knowledge of a channel's
// current key without revealing it (§4.6).
type ChannelKeyVerifyRequest struct {
	Channel    string
	Commitment string
}

func EncodeChannelKeyVerifyRequest(v *ChannelKeyVerifyRequest) ([]byte, error) {
	w := codec.NewWriter(96)
	if err := w.WriteString8(v.Channel); err != nil {
		return nil, err
	}
	if err := w.WriteString8(v.Commitment); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func DecodeChannelKeyVerifyRequest(data []byte) (*ChannelKeyVerifyRequest, error) {
	r := codec.NewReader(data)
	v := &ChannelKeyVerifyRequest{}
	var err error
	if v.Channel, err = r.ReadString8(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	if v.Commitment, err = r.ReadString8(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	return v, nil
}

// ChannelKeyVerifyResponse is the creator's answer to a verify request.
type ChannelKeyVerifyResponse struct {
	Channel  string
	Verified bool
}

func EncodeChannelKeyVerifyResponse(v *ChannelKeyVerifyResponse) ([]byte, error) {
	w := codec.NewWriter(64)
	if err := w.WriteString8(v.Channel); err != nil {
		return nil, err
	}
	verified := uint8(0)
	if v.Verified {
		verified = 1
	}
	w.WriteUint8(verified)
	return w.Bytes(), nil
}

func DecodeChannelKeyVerifyResponse(data []byte) (*ChannelKeyVerifyResponse, error) {
	r := codec.NewReader(data)
	v := &ChannelKeyVerifyResponse{}
	var err error
	if v.Channel, err = r.ReadString8(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	verified, err := r.ReadUint8()
	if err != nil {
		return nil, ErrMalformedInnerMessage
	}
	v.Verified = verified != 0
	return v, nil
}

// ChannelPasswordUpdate delivers a rotated channel password to one
// member, individually encrypted under that member's Noise session
// (§4.6); EncryptedPassword is therefore opaque at this layer.
type ChannelPasswordUpdate struct {
	Channel           string
	OwnerFingerprint  string
	EncryptedPassword []byte
	NewKeyCommitment  string
}

func EncodeChannelPasswordUpdate(u *ChannelPasswordUpdate) ([]byte, error) {
	w := codec.NewWriter(160)
	if err := w.WriteString8(u.Channel); err != nil {
		return nil, err
	}
	if err := w.WriteString8(u.OwnerFingerprint); err != nil {
		return nil, err
	}
	if err := w.WriteBytes16(u.EncryptedPassword); err != nil {
		return nil, err
	}
	if err := w.WriteString8(u.NewKeyCommitment); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func DecodeChannelPasswordUpdate(data []byte) (*ChannelPasswordUpdate, error) {
	r := codec.NewReader(data)
	u := &ChannelPasswordUpdate{}
	var err error
	if u.Channel, err = r.ReadString8(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	if u.OwnerFingerprint, err = r.ReadString8(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	if u.EncryptedPassword, err = r.ReadBytes16(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	if u.NewKeyCommitment, err = r.ReadString8(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	return u, nil
}

// DeliveryStatusRequest asks the original sender's peers to report back
// whatever delivery/read state they observed for a message.
type DeliveryStatusRequest struct {
	OriginalMessageID [16]byte
	RequesterID       [PeerIDSize]byte
}

func EncodeDeliveryStatusRequest(r *DeliveryStatusRequest) ([]byte, error) {
	w := codec.NewWriter(24)
	w.WriteRaw(r.OriginalMessageID[:])
	w.WriteRaw(r.RequesterID[:])
	return w.Bytes(), nil
}

func DecodeDeliveryStatusRequest(data []byte) (*DeliveryStatusRequest, error) {
	r := codec.NewReader(data)
	out := &DeliveryStatusRequest{}

	id, err := r.ReadBytes(16)
	if err != nil {
		return nil, ErrMalformedInnerMessage
	}
	copy(out.OriginalMessageID[:], id)

	requester, err := r.ReadBytes(PeerIDSize)
	if err != nil {
		return nil, ErrMalformedInnerMessage
	}
	copy(out.RequesterID[:], requester)
	return out, nil
}

func DecodeReadReceipt(data []byte) (*ReadReceipt, error) {
	rd := codec.NewReader(data)
	out := &ReadReceipt{}

	id, err := rd.ReadBytes(16)
	if err != nil {
		return nil, ErrMalformedInnerMessage
	}
	copy(out.OriginalMessageID[:], id)

	reader, err := rd.ReadBytes(PeerIDSize)
	if err != nil {
		return nil, ErrMalformedInnerMessage
	}
	copy(out.ReaderID[:], reader)

	if out.ReaderNickname, err = rd.ReadString8(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	return out, nil
}
