package core

import (
	"context"
	"testing"
	"time"

	"github.com/bitchat-go/core/link"
	"github.com/bitchat-go/core/secretstore"
)

func newTestBackend(t *testing.T, nickname string) *Backend {
	t.Helper()
	backend, status, err := Init("", secretstore.NewMemory())
	if status != ExitSuccess {
		t.Fatalf("init: %v", err)
	}
	backend.Config.Nickname = nickname
	return backend
}

func waitForEvent(t *testing.T, events <-chan Event, kind EventKind, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-events:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %v", kind)
		}
	}
}

func TestPublicMessageReachesSecondPeer(t *testing.T) {
	mesh := link.NewMesh()

	alice := newTestBackend(t, "alice")
	bob := newTestBackend(t, "bob")

	alice.Connect(mesh.Join("alice"))
	bob.Connect(mesh.Join("bob"))
	defer alice.Shutdown()
	defer bob.Shutdown()

	bobEvents, _ := bob.SubscribeEvents(8)

	if _, err := alice.SendPublic("hello mesh", nil, ""); err != nil {
		t.Fatalf("send public: %v", err)
	}

	ev := waitForEvent(t, bobEvents, EventMessage, 2*time.Second)
	if ev.Message.Content != "hello mesh" {
		t.Fatalf("got content %q, want %q", ev.Message.Content, "hello mesh")
	}
	if ev.Message.SenderNickname != "alice" {
		t.Fatalf("got sender %q, want alice", ev.Message.SenderNickname)
	}
}

func TestPrivateMessageEstablishesSessionAndDelivers(t *testing.T) {
	mesh := link.NewMesh()

	alice := newTestBackend(t, "alice")
	bob := newTestBackend(t, "bob")

	alice.Connect(mesh.Join("alice"))
	bob.Connect(mesh.Join("bob"))
	defer alice.Shutdown()
	defer bob.Shutdown()

	aliceEvents, _ := alice.SubscribeEvents(8)
	bobEvents, _ := bob.SubscribeEvents(8)

	waitForEvent(t, aliceEvents, EventPeerDiscovered, 2*time.Second)
	waitForEvent(t, bobEvents, EventPeerDiscovered, 2*time.Second)

	bobFingerprint := bob.Identity.Fingerprint
	ctx := context.Background()
	if _, err := alice.SendPrivate(ctx, bobFingerprint, "first attempt"); err != nil {
		t.Fatalf("send private (handshake kick-off): %v", err)
	}

	// The first call only starts the handshake since no session exists yet;
	// once it completes, a retried send should actually arrive.
	time.Sleep(100 * time.Millisecond)
	if _, err := alice.SendPrivate(ctx, bobFingerprint, "secret hello"); err != nil {
		t.Fatalf("send private: %v", err)
	}

	ev := waitForEvent(t, bobEvents, EventMessage, 2*time.Second)
	if ev.Message.Content != "secret hello" {
		t.Fatalf("got content %q, want %q", ev.Message.Content, "secret hello")
	}
	if !ev.Message.IsPrivate {
		t.Fatalf("expected IsPrivate to be set")
	}
}

func TestChannelPasswordRoundTrip(t *testing.T) {
	backend := newTestBackend(t, "alice")
	backend.Connect(link.NewMesh().Join("alice"))
	defer backend.Shutdown()

	if err := backend.SetChannelPassword(context.Background(), "#general", "correct horse battery staple"); err != nil {
		t.Fatalf("set channel password: %v", err)
	}
	if !backend.channels.HasChannel("#general") {
		t.Fatalf("expected channel key store to have #general")
	}

	backend.RemoveChannelPassword("#general")
	if backend.channels.HasChannel("#general") {
		t.Fatalf("expected #general to be forgotten after removal")
	}
}

func TestChannelPasswordUpdatePropagatesToMember(t *testing.T) {
	mesh := link.NewMesh()

	alice := newTestBackend(t, "alice")
	bob := newTestBackend(t, "bob")

	alice.Connect(mesh.Join("alice"))
	bob.Connect(mesh.Join("bob"))
	defer alice.Shutdown()
	defer bob.Shutdown()

	aliceEvents, _ := alice.SubscribeEvents(8)
	bobEvents, _ := bob.SubscribeEvents(8)

	waitForEvent(t, aliceEvents, EventPeerDiscovered, 2*time.Second)
	waitForEvent(t, bobEvents, EventPeerDiscovered, 2*time.Second)

	ctx := context.Background()
	if _, err := bob.SendPublic("joining #general", nil, "#general"); err != nil {
		t.Fatalf("bob send public: %v", err)
	}
	waitForEvent(t, aliceEvents, EventMessage, 2*time.Second)

	// Establish a Noise session between alice and bob first: the first call
	// only kicks off the handshake, a retry after it completes actually
	// delivers, matching the pattern the handshake-then-retry tests use.
	bobFingerprint := bob.Identity.Fingerprint
	if _, err := alice.SendPrivate(ctx, bobFingerprint, "hi"); err != nil {
		t.Fatalf("send private (handshake kick-off): %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := alice.SetChannelPassword(ctx, "#general", "correct horse battery staple"); err != nil {
		t.Fatalf("set channel password: %v", err)
	}

	ev := waitForEvent(t, bobEvents, EventChannelMetadata, 2*time.Second)
	if ev.Channel.Channel != "#general" {
		t.Fatalf("got channel %q, want #general", ev.Channel.Channel)
	}
	if !ev.Channel.IsPasswordProtected {
		t.Fatalf("expected propagated update to mark the channel password protected")
	}
}

func TestPeerLeavingForgetsMapping(t *testing.T) {
	mesh := link.NewMesh()

	alice := newTestBackend(t, "alice")
	bob := newTestBackend(t, "bob")

	aliceLink := mesh.Join("alice")
	bobLink := mesh.Join("bob")
	alice.Connect(aliceLink)
	bob.Connect(bobLink)
	defer alice.Shutdown()

	aliceEvents, _ := alice.SubscribeEvents(8)
	waitForEvent(t, aliceEvents, EventPeerDiscovered, 2*time.Second)

	bob.Shutdown()
	waitForEvent(t, aliceEvents, EventPeerLost, 2*time.Second)

	alice.peersMu.RLock()
	_, stillTracked := alice.linkToPeer["bob"]
	alice.peersMu.RUnlock()
	if stillTracked {
		t.Fatalf("expected bob's link mapping to be forgotten after peer-down")
	}
}

func TestPanicWipeClearsState(t *testing.T) {
	backend := newTestBackend(t, "alice")
	backend.Connect(link.NewMesh().Join("alice"))
	defer backend.Shutdown()

	if err := backend.SetChannelPassword(context.Background(), "#general", "hunter2"); err != nil {
		t.Fatalf("set channel password: %v", err)
	}
	backend.ToggleFavorite("deadbeef")

	oldPeerID := backend.PeerID
	backend.PanicWipe()

	if backend.channels.HasChannel("#general") {
		t.Fatalf("expected channel keys wiped")
	}
	if backend.IsFavorite("deadbeef") {
		t.Fatalf("expected favorites wiped")
	}
	if backend.PeerID == oldPeerID {
		t.Fatalf("expected peer id to rotate on panic wipe")
	}
}
