/*
File Name:  Flood.go

Flood-fill forwarding decision (§4.8): a packet is relayed to every link
other than the one it arrived on, provided it has not been seen before
(dedup) and its TTL has not already reached zero. TTL is decremented once
per hop before re-broadcast.
*/

package relay

// Decision describes what the dispatcher should do with an inbound packet
// after the dedup/TTL check.
type Decision struct {
	ShouldDeliverLocally bool // packet's recipient is us, or it's a public broadcast
	ShouldForward        bool
	ForwardTTL           uint8
}

// Evaluate applies the loop-suppression and TTL rules to one inbound
// packet. isForLocalDelivery tells Evaluate whether this packet (also)
// needs to be handed to the local dispatcher, independent of forwarding.
func Evaluate(dedup *DedupSet, key [32]byte, ttl uint8, isForLocalDelivery bool) Decision {
	if dedup.SeenBefore(key) {
		return Decision{ShouldDeliverLocally: false, ShouldForward: false}
	}

	d := Decision{ShouldDeliverLocally: isForLocalDelivery}
	if ttl > 0 {
		d.ShouldForward = true
		d.ForwardTTL = ttl - 1
	}
	return d
}
