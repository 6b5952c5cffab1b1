package httpdate

import "testing"

func TestFormatKnownTimestamp(t *testing.T) {
	// 2020-12-21T07:57:47.123Z
	got := Format(1608537467123)
	want := "Mon, 21 Dec 2020 07:57:47.123 GMT"
	if got != want {
		t.Fatalf("Format: got %q, want %q", got, want)
	}
}

func TestParseRoundTrip(t *testing.T) {
	millis := int64(1608537467123)
	parsed, err := Parse(Format(millis))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed != millis {
		t.Fatalf("round trip: got %d, want %d", parsed, millis)
	}
}

func TestParsePreservesMilliseconds(t *testing.T) {
	parsed, err := Parse("Mon, 21 Dec 2020 07:57:47.001 GMT")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed%1000 != 1 {
		t.Fatalf("expected 1ms fraction, got %d", parsed%1000)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse("yesterday-ish"); err == nil {
		t.Fatal("expected error for invalid date")
	}
	if _, err := Parse("Mon, 21 Dec 2020 07:57:47 GMT"); err == nil {
		t.Fatal("expected error for missing milliseconds")
	}
}
