package sanitize

import "testing"

func TestNicknameTrimsAndCaps(t *testing.T) {
	if got := Nickname("  alice  "); got != "alice" {
		t.Fatalf("expected trimmed nickname, got %q", got)
	}
	if got := Nickname("0123456789012345678901234567890123456789"); len(got) != NicknameMaxLength {
		t.Fatalf("expected cap at %d, got %d", NicknameMaxLength, len(got))
	}
}

func TestNicknameRejectsInvalidUTF8(t *testing.T) {
	bad := string([]byte{0xff, 0xfe, 0xfd})
	if got := Nickname(bad); got != "<invalid encoding>" {
		t.Fatalf("expected invalid-encoding marker, got %q", got)
	}
}

func TestChannelNameValidCases(t *testing.T) {
	valid := []string{"#general", "#test-room_1", "#日本語"}
	for _, c := range valid {
		if err := ChannelName(c); err != nil {
			t.Fatalf("expected %q to be valid, got %v", c, err)
		}
	}
}

func TestChannelNameInvalidCases(t *testing.T) {
	invalid := []string{"", "general", "#", "#has space", "#" + string(make([]byte, 60))}
	for _, c := range invalid {
		if err := ChannelName(c); err == nil {
			t.Fatalf("expected %q to be rejected", c)
		}
	}
}
