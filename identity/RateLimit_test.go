package identity

import "testing"

func TestHandshakeRateLimitPerPeer(t *testing.T) {
	rl := NewRateLimiter()
	var peer [PeerIDSize]byte
	peer[0] = 1

	for i := 0; i < HandshakesPerPeerLimit; i++ {
		if !rl.AllowHandshake(peer) {
			t.Fatalf("expected handshake %d to be allowed", i)
		}
	}
	if rl.AllowHandshake(peer) {
		t.Fatalf("expected handshake beyond per-peer limit to be rejected")
	}
}

func TestHandshakeRateLimitGlobal(t *testing.T) {
	rl := NewRateLimiter()
	allowed := 0
	for i := 0; i < HandshakesGlobalLimit+5; i++ {
		var peer [PeerIDSize]byte
		peer[0] = byte(i)
		peer[1] = byte(i >> 8)
		if rl.AllowHandshake(peer) {
			allowed++
		}
	}
	if allowed > HandshakesGlobalLimit {
		t.Fatalf("expected at most %d handshakes globally, got %d", HandshakesGlobalLimit, allowed)
	}
}

func TestMessageRateLimitPerPeer(t *testing.T) {
	rl := NewRateLimiter()
	var peer [PeerIDSize]byte
	peer[0] = 2

	for i := 0; i < MessagesPerPeerLimit; i++ {
		if !rl.AllowMessage(peer) {
			t.Fatalf("expected message %d to be allowed", i)
		}
	}
	if rl.AllowMessage(peer) {
		t.Fatalf("expected message beyond per-peer limit to be rejected")
	}
}
