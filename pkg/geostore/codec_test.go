package geostore

import (
	"testing"
)

func TestEncodeDecodeEntry(t *testing.T) {
	entry := Entry{
		Timestamp: 1700000000,
		Lat:       48.86,
		Lon:       2.35,
		Status:    "free",
		Device:    "phone",
		Version:   2,
	}

	raw := entry.encode()
	if raw != "1700000000 48.86 2.35 free phone 2" {
		t.Fatalf("unexpected wire format %q", raw)
	}

	decoded, err := decodeEntry(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != entry {
		t.Fatalf("roundtrip mismatch: %+v != %+v", decoded, entry)
	}
}

func TestEncodeZeroedEntryKeepsTimestamp(t *testing.T) {
	entry := Entry{
		Timestamp: 1700000000,
		Lat:       0,
		Lon:       0,
		Status:    "free",
		Device:    "phone",
		Version:   2,
	}
	if raw := entry.encode(); raw != "1700000000 0 0 free phone 2" {
		t.Fatalf("unexpected wire format %q", raw)
	}
}

func TestDecodeEntryRejectsMalformedBlobs(t *testing.T) {
	cases := []string{
		"",
		"1700000000 48.86 2.35 free phone",
		"1700000000 48.86 2.35 free phone 2 extra",
		"notatime 48.86 2.35 free phone 2",
		"1700000000 notalat 2.35 free phone 2",
		"1700000000 48.86 2.35 free phone notaversion",
	}
	for _, raw := range cases {
		if _, err := decodeEntry(raw); err == nil {
			t.Fatalf("expected decode error for %q", raw)
		}
	}
}

func TestSplitOperatorMember(t *testing.T) {
	taxiID, operator := SplitOperatorMember("abc123:operator@example.com")
	if taxiID != "abc123" || operator != "operator@example.com" {
		t.Fatalf("unexpected split %q %q", taxiID, operator)
	}

	// Members without an operator part come from the taxi-only index.
	taxiID, operator = SplitOperatorMember("abc123")
	if taxiID != "abc123" || operator != "" {
		t.Fatalf("unexpected split %q %q", taxiID, operator)
	}
}

func TestKeyBuilders(t *testing.T) {
	if got := taxiKey("abc"); got != "taxi:abc" {
		t.Fatalf("unexpected taxi key %q", got)
	}
	if got := hailLogKey("xyz1234"); got != "hail:xyz1234" {
		t.Fatalf("unexpected hail log key %q", got)
	}
	if got := OperatorMember("abc", "op@example.com"); got != "abc:op@example.com" {
		t.Fatalf("unexpected member %q", got)
	}
}
