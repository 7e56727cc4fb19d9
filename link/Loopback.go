/*
File Name:  Loopback.go

An in-process Link used by tests and the reference CLI binding: a set of
named endpoints wired together in memory, each with its own inbound
channel, standing in for BLE GATT connections without requiring real
radios. Messages sent to an endpoint that is not wired (no peer present)
are simply dropped, mirroring an unreachable peer over real radio.
*/

package link

import (
	"context"
	"errors"
	"sync"
)

var ErrLinkClosed = errors.New("link: closed")

// Mesh is a shared fabric of Loopback endpoints that can reach each other.
type Mesh struct {
	mu        sync.Mutex
	endpoints map[string]*Loopback
}

// NewMesh creates an empty loopback fabric.
func NewMesh() *Mesh {
	return &Mesh{endpoints: make(map[string]*Loopback)}
}

// Join creates and wires a new named endpoint into the mesh, notifying
// every existing endpoint of the new peer and vice versa.
func (m *Mesh) Join(name string) *Loopback {
	m.mu.Lock()
	defer m.mu.Unlock()

	ep := &Loopback{
		name:   name,
		mesh:   m,
		inbox:  make(chan frameFrom, 64),
		events: make(chan PeerEvent, 64),
		closed: make(chan struct{}),
	}

	for otherName, other := range m.endpoints {
		ep.events <- PeerEvent{Kind: PeerUp, LinkPeerID: otherName}
		other.events <- PeerEvent{Kind: PeerUp, LinkPeerID: name}
	}
	m.endpoints[name] = ep
	return ep
}

func (m *Mesh) leave(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.endpoints, name)
	for _, other := range m.endpoints {
		select {
		case other.events <- PeerEvent{Kind: PeerDown, LinkPeerID: name}:
		default:
		}
	}
}

func (m *Mesh) peerNames(exclude string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.endpoints))
	for n := range m.endpoints {
		if n != exclude {
			names = append(names, n)
		}
	}
	return names
}

type frameFrom struct {
	from  string
	frame []byte
}

// Loopback is one named endpoint in a Mesh.
type Loopback struct {
	name   string
	mesh   *Mesh
	inbox  chan frameFrom
	events chan PeerEvent
	closed chan struct{}
	once   sync.Once
}

func (l *Loopback) Send(ctx context.Context, linkPeerID string, frame []byte) error {
	l.mesh.mu.Lock()
	target, ok := l.mesh.endpoints[linkPeerID]
	l.mesh.mu.Unlock()
	if !ok {
		return nil // unreachable peer: dropped, as over a real radio out of range
	}
	select {
	case target.inbox <- frameFrom{from: l.name, frame: frame}:
		return nil
	case <-l.closed:
		return ErrLinkClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loopback) Recv(ctx context.Context) (string, []byte, error) {
	select {
	case f := <-l.inbox:
		return f.from, f.frame, nil
	case <-l.closed:
		return "", nil, ErrLinkClosed
	case <-ctx.Done():
		return "", nil, ctx.Err()
	}
}

func (l *Loopback) Events() <-chan PeerEvent {
	return l.events
}

func (l *Loopback) Peers() []string {
	return l.mesh.peerNames(l.name)
}

func (l *Loopback) Close() error {
	l.once.Do(func() {
		close(l.closed)
		l.mesh.leave(l.name)
	})
	return nil
}
