package validators

import "testing"

func TestSanitizeStringCollapsesWhitespace(t *testing.T) {
	if got := SanitizeString("  12  Herzl \t St  ", 0); got != "12 Herzl St" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestSanitizeStringKeepsRunesWhole(t *testing.T) {
	got := SanitizeString("רחוב הרצל 12", 4)
	if got != "רחוב" {
		t.Fatalf("expected first four runes, got %q", got)
	}
}
