package link

import (
	"context"
	"testing"
	"time"
)

func TestLoopbackSendRecv(t *testing.T) {
	mesh := NewMesh()
	alice := mesh.Join("alice")
	bob := mesh.Join("bob")
	defer alice.Close()
	defer bob.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := alice.Send(ctx, "bob", []byte("hi")); err != nil {
		t.Fatal(err)
	}
	from, frame, err := bob.Recv(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if from != "alice" || string(frame) != "hi" {
		t.Fatalf("unexpected recv: from=%s frame=%q", from, frame)
	}
}

func TestLoopbackSendToUnreachablePeerIsDropped(t *testing.T) {
	mesh := NewMesh()
	alice := mesh.Join("alice")
	defer alice.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := alice.Send(ctx, "ghost", []byte("hi")); err != nil {
		t.Fatalf("expected silent drop for unreachable peer, got %v", err)
	}
}

func TestLoopbackEmitsPeerUpOnJoin(t *testing.T) {
	mesh := NewMesh()
	alice := mesh.Join("alice")
	defer alice.Close()

	bob := mesh.Join("bob")
	defer bob.Close()

	select {
	case ev := <-alice.Events():
		if ev.Kind != PeerUp || ev.LinkPeerID != "bob" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for peer-up event")
	}
}
