/*
File Name:  Message Encoding.go

MessageType is the single byte that identifies every payload carried
inside a Packet (§3). InnerMessage is the application-level chat message,
carried both inside a plain "message" packet and as the plaintext of a
Noise transport message.
*/

package protocol

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/bitchat-go/core/codec"
)

// MessageType identifies the payload carried by a Packet.
type MessageType uint8

const (
	TypeAnnounce                 MessageType = 0x01
	TypeLeave                    MessageType = 0x03
	TypeMessage                  MessageType = 0x04
	TypeFragmentStart            MessageType = 0x05
	TypeFragmentContinue         MessageType = 0x06
	TypeFragmentEnd              MessageType = 0x07
	TypeChannelAnnounce          MessageType = 0x08
	TypeChannelRetention         MessageType = 0x09
	TypeDeliveryAck              MessageType = 0x0A
	TypeDeliveryStatusRequest    MessageType = 0x0B
	TypeReadReceipt              MessageType = 0x0C
	TypeNoiseHandshakeInit       MessageType = 0x10
	TypeNoiseHandshakeResp       MessageType = 0x11
	TypeNoiseEncrypted           MessageType = 0x12
	TypeNoiseIdentityAnnounce    MessageType = 0x13
	TypeChannelKeyVerifyRequest  MessageType = 0x14
	TypeChannelKeyVerifyResponse MessageType = 0x15
	TypeChannelPasswordUpdate    MessageType = 0x16
	TypeChannelMetadata          MessageType = 0x17
	TypeVersionHello             MessageType = 0x20
	TypeVersionAck               MessageType = 0x21
)

var ErrMalformedInnerMessage = errors.New("protocol: malformed inner message")

// InnerMessage is the application-level chat message (§3).
type InnerMessage struct {
	ID                uuid.UUID
	Sender            string
	Content           string
	TimestampMs       uint64
	IsRelay           bool
	OriginalSender    string // empty if absent
	IsPrivate         bool
	RecipientNickname string // empty if absent
	SenderPeerID      [PeerIDSize]byte
	HasSenderPeerID   bool
	Mentions          []string
	Channel           string // empty if absent; begins with '#'
	EncryptedContent  []byte
	IsEncrypted       bool
}

// innerMessage bit flags, first byte of the encoded payload.
const (
	flagIsRelay         uint8 = 0x01
	flagIsPrivate       uint8 = 0x02
	flagIsEncrypted     uint8 = 0x04
	flagHasOriginal     uint8 = 0x08
	flagHasRecipNick    uint8 = 0x10
	flagHasSenderPeerID uint8 = 0x20
	flagHasChannel      uint8 = 0x40
)

// EncodeInnerMessage serializes an InnerMessage for embedding inside a
// "message" packet payload or a Noise transport plaintext.
func EncodeInnerMessage(m *InnerMessage) ([]byte, error) {
	flags := uint8(0)
	if m.IsRelay {
		flags |= flagIsRelay
	}
	if m.IsPrivate {
		flags |= flagIsPrivate
	}
	if m.IsEncrypted {
		flags |= flagIsEncrypted
	}
	if m.OriginalSender != "" {
		flags |= flagHasOriginal
	}
	if m.RecipientNickname != "" {
		flags |= flagHasRecipNick
	}
	if m.HasSenderPeerID {
		flags |= flagHasSenderPeerID
	}
	if m.Channel != "" {
		flags |= flagHasChannel
	}

	w := codec.NewWriter(128 + len(m.Content))
	w.WriteUUID(m.ID)
	w.WriteUint8(flags)
	w.WriteUint64(m.TimestampMs)
	if err := w.WriteString8(m.Sender); err != nil {
		return nil, err
	}
	if err := w.WriteString16(m.Content); err != nil {
		return nil, err
	}
	if m.OriginalSender != "" {
		if err := w.WriteString8(m.OriginalSender); err != nil {
			return nil, err
		}
	}
	if m.RecipientNickname != "" {
		if err := w.WriteString8(m.RecipientNickname); err != nil {
			return nil, err
		}
	}
	if m.HasSenderPeerID {
		w.WriteRaw(m.SenderPeerID[:])
	}
	if m.Channel != "" {
		if err := w.WriteString8(m.Channel); err != nil {
			return nil, err
		}
	}

	w.WriteUint8(uint8(len(m.Mentions)))
	for _, mention := range m.Mentions {
		if err := w.WriteString8(mention); err != nil {
			return nil, err
		}
	}

	if err := w.WriteBytes16(m.EncryptedContent); err != nil {
		return nil, err
	}

	return w.Bytes(), nil
}

// DecodeInnerMessage parses the payload produced by EncodeInnerMessage.
func DecodeInnerMessage(data []byte) (*InnerMessage, error) {
	r := codec.NewReader(data)
	m := &InnerMessage{}

	id, err := r.ReadUUID()
	if err != nil {
		return nil, ErrMalformedInnerMessage
	}
	m.ID = id

	flags, err := r.ReadUint8()
	if err != nil {
		return nil, ErrMalformedInnerMessage
	}
	m.IsRelay = flags&flagIsRelay != 0
	m.IsPrivate = flags&flagIsPrivate != 0
	m.IsEncrypted = flags&flagIsEncrypted != 0

	if m.TimestampMs, err = r.ReadUint64(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	if m.Sender, err = r.ReadString8(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	if m.Content, err = r.ReadString16(); err != nil {
		return nil, ErrMalformedInnerMessage
	}

	if flags&flagHasOriginal != 0 {
		if m.OriginalSender, err = r.ReadString8(); err != nil {
			return nil, ErrMalformedInnerMessage
		}
	}
	if flags&flagHasRecipNick != 0 {
		if m.RecipientNickname, err = r.ReadString8(); err != nil {
			return nil, ErrMalformedInnerMessage
		}
	}
	if flags&flagHasSenderPeerID != 0 {
		b, err := r.ReadBytes(PeerIDSize)
		if err != nil {
			return nil, ErrMalformedInnerMessage
		}
		copy(m.SenderPeerID[:], b)
		m.HasSenderPeerID = true
	}
	if flags&flagHasChannel != 0 {
		channel, err := r.ReadString8()
		if err != nil {
			return nil, ErrMalformedInnerMessage
		}
		if !strings.HasPrefix(channel, "#") {
			return nil, ErrMalformedInnerMessage
		}
		m.Channel = channel
	}

	mentionCount, err := r.ReadUint8()
	if err != nil {
		return nil, ErrMalformedInnerMessage
	}
	if mentionCount > 0 {
		m.Mentions = make([]string, mentionCount)
		for i := range m.Mentions {
			if m.Mentions[i], err = r.ReadString8(); err != nil {
				return nil, ErrMalformedInnerMessage
			}
		}
	}

	if m.EncryptedContent, err = r.ReadBytes16(); err != nil {
		return nil, ErrMalformedInnerMessage
	}

	return m, nil
}
