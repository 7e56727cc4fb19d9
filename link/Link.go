/*
File Name:  Link.go

Link is the boundary to the out-of-scope radio transport (§1): the core
consumes a Link that delivers/accepts framed byte blobs and emits
peer-up/peer-down events. BLE GATT scanning, advertising, and connection
management live entirely on the other side of this interface.
*/

package link

import "context"

// PeerEventKind distinguishes a Link's two event shapes.
type PeerEventKind int

const (
	PeerUp PeerEventKind = iota
	PeerDown
)

// PeerEvent announces that a peer has become reachable or unreachable.
type PeerEvent struct {
	Kind PeerEventKind
	// LinkPeerID identifies the peer at the transport level; it is opaque
	// to Link and mapped to a protocol peer-id by the dispatcher once an
	// identity announcement has been exchanged.
	LinkPeerID string
}

// Link is implemented by the transport. Send addresses a specific
// transport peer; Recv yields every inbound frame along with which
// transport peer it arrived from (the dispatcher floods to all peers
// other than the origin when relaying).
type Link interface {
	Send(ctx context.Context, linkPeerID string, frame []byte) error
	Recv(ctx context.Context) (linkPeerID string, frame []byte, err error)
	Events() <-chan PeerEvent
	Peers() []string
	Close() error
}
