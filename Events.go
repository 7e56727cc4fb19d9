/*
File Name:  Events.go

Outward event stream (§6 subscribe_events). Per the design note against
the teacher's Filter.go delegate-with-many-methods pattern, callers
register one channel and receive a tagged union of event kinds instead of
implementing a struct of per-callback function fields.
*/

package core

import (
	"sync"

	"github.com/bitchat-go/core/relay"
)

// EventKind tags which variant of Event is populated.
type EventKind int

const (
	EventMessage EventKind = iota
	EventPeerDiscovered
	EventPeerLost
	EventDeliveryUpdate
	EventChannelMetadata
)

// Event is the single tagged-union payload delivered to every subscriber.
// Only the fields relevant to Kind are populated.
type Event struct {
	Kind EventKind

	// EventMessage
	Message *InnerMessageEvent

	// EventPeerDiscovered / EventPeerLost
	PeerID      [8]byte
	Fingerprint string
	Nickname    string

	// EventDeliveryUpdate
	MessageID [16]byte
	Status    *relay.DeliveryStatus

	// EventChannelMetadata
	Channel *ChannelInfo
}

// InnerMessageEvent carries a decoded application message up to the caller.
type InnerMessageEvent struct {
	SenderFingerprint string
	SenderNickname    string
	Content           string
	Channel           string
	IsPrivate         bool
	TimestampMs       uint64
}

// ChannelInfo mirrors the wire ChannelMetadata payload for subscribers.
type ChannelInfo struct {
	Channel             string
	CreatorFingerprint  string
	CreatedAtMs         uint64
	IsPasswordProtected bool
}

// eventBus fans out Events to every subscriber channel. Subscribers that
// fail to keep up have events dropped for them rather than blocking the
// dispatcher; this mirrors the "processed end-to-end on one worker,
// cancellation within one poll" contract of §5 — a stalled subscriber must
// never stall ingestion.
type eventBus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a handle to unsubscribe later.
func (b *eventBus) Subscribe(buffer int) (ch <-chan Event, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := make(chan Event, buffer)
	id = b.next
	b.next++
	b.subs[id] = c
	return c, id
}

// Unsubscribe closes and removes a subscriber's channel.
func (b *eventBus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.subs[id]; ok {
		close(c)
		delete(b.subs, id)
	}
}

// Publish delivers ev to every subscriber, dropping it for any subscriber
// whose buffer is currently full.
func (b *eventBus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.subs {
		select {
		case c <- ev:
		default:
		}
	}
}
