package channelid

import (
	"testing"

	"support_portal_backend/platform/apperr"

	"github.com/google/uuid"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []string{
		"550e8400-e29b-41d4-a716-446655440000",
		"00000000-0000-0000-0000-000000000001",
		"ffffffff-ffff-ffff-ffff-ffffffffffff",
		"a",
		"hello world",
		"访客频道", // multi-byte UTF-8 survives the byte-level mapping
	}

	for _, raw := range cases {
		encoded := Encode(raw)
		decoded, err := Decode(encoded)
		if err != nil {
			t.Fatalf("Decode(Encode(%q)) returned error: %v", raw, err)
		}
		if decoded != raw {
			t.Errorf("round trip of %q: got %q via %q", raw, decoded, encoded)
		}
	}
}

func TestEncodeEmpty(t *testing.T) {
	if got := Encode(""); got != "0" {
		t.Errorf("Encode(\"\") = %q, want \"0\"", got)
	}

	decoded, err := Decode("0")
	if err != nil {
		t.Fatalf("Decode(\"0\") returned error: %v", err)
	}
	if decoded != "" {
		t.Errorf("Decode(\"0\") = %q, want \"\"", decoded)
	}
}

func TestDecodeRejectsNonAlphabet(t *testing.T) {
	for _, bad := range []string{"abc-def", "abc!", "a b", "日本"} {
		if _, err := Decode(bad); !apperr.Is(err, apperr.KindFormat) {
			t.Errorf("Decode(%q) error = %v, want format error", bad, err)
		}
	}
}

func TestVisitorChannelIDRoundTrip(t *testing.T) {
	for i := 0; i < 20; i++ {
		id := uuid.New()
		channelID := BuildVisitorChannelID(id)

		parsed, err := ParseVisitorChannelID(channelID)
		if err != nil {
			t.Fatalf("ParseVisitorChannelID(%q) returned error: %v", channelID, err)
		}
		if parsed != id {
			t.Errorf("ParseVisitorChannelID(%q) = %s, want %s", channelID, parsed, id)
		}
	}
}

func TestProjectStaffChannelIDRoundTrip(t *testing.T) {
	id := uuid.New()
	channelID := BuildProjectStaffChannelID(id)

	parsed, err := ParseProjectStaffChannelID(channelID)
	if err != nil {
		t.Fatalf("ParseProjectStaffChannelID(%q) returned error: %v", channelID, err)
	}
	if parsed != id {
		t.Errorf("parsed %s, want %s", parsed, id)
	}
}

func TestParseVisitorChannelIDErrors(t *testing.T) {
	cases := []string{
		"",
		"550e8400-e29b-41d4-a716-446655440000",      // missing suffix
		"550e8400-e29b-41d4-a716-446655440000-prj",  // wrong suffix
		"not-a-uuid-vtr",                            // bad UUID body
		"-vtr",                                      // empty body
	}

	for _, bad := range cases {
		if _, err := ParseVisitorChannelID(bad); !apperr.Is(err, apperr.KindFormat) {
			t.Errorf("ParseVisitorChannelID(%q) error = %v, want format error", bad, err)
		}
	}
}

func TestSessionIDSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"a1-staff", "b2-visitor"},
		{"550e8400-e29b-41d4-a716-446655440000", "663ddc70-f819-42a4-9e4f-0a342d2965cf"},
		{"x", "y"},
		{"same", "same"},
	}

	for _, p := range pairs {
		ab := SessionID(p[0], p[1], 1)
		ba := SessionID(p[1], p[0], 1)
		if ab != ba {
			t.Errorf("SessionID(%q, %q) = %q but reversed = %q", p[0], p[1], ab, ba)
		}
	}
}

func TestSessionIDNonPersonal(t *testing.T) {
	got := SessionID("ignored", "abc-vtr", 251)
	if got != "abc-vtr@251" {
		t.Errorf("SessionID non-personal = %q, want %q", got, "abc-vtr@251")
	}
}
