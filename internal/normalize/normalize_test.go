package normalize

import "testing"

func TestCleanTextCollapsesWhitespace(t *testing.T) {
	got := CleanText("  hello   \t world\n\n", 100)
	if got != "hello world" {
		t.Fatalf("got %q", got)
	}
}

func TestCleanTextTruncates(t *testing.T) {
	got := CleanText("this is a long sentence that overflows", 10)
	if len(got) > 10 {
		t.Fatalf("expected truncated length <= 10, got %d (%q)", len(got), got)
	}
}

func TestCleanTagSlugifies(t *testing.T) {
	cases := map[string]string{
		"Quest: Main!!":  "quest:_main",
		"  leading  ":    "leading",
		"__trim__me__":   "trim__me",
		"Trade/Vendor":   "trade_vendor",
	}
	for in, want := range cases {
		if got := CleanTag(in, 0); got != want {
			t.Errorf("CleanTag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDedupeTagsPreservesFirstOccurrence(t *testing.T) {
	got := DedupeTags([]string{"Quest", "quest", "Trade", "quest"}, 0)
	if len(got) != 2 || got[0] != "quest" || got[1] != "trade" {
		t.Fatalf("got %v", got)
	}
}

func TestDedupeTagsCapsCount(t *testing.T) {
	tags := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		tags = append(tags, string(rune('a'+i%26))+string(rune('0'+i/26)))
	}
	got := DedupeTags(tags, 24)
	if len(got) > 24 {
		t.Fatalf("expected at most 24 tags, got %d", len(got))
	}
}

func TestContentHashStableAcrossWhitespaceAndCase(t *testing.T) {
	a := ContentHash("Hello   World")
	b := ContentHash("hello world")
	if a != b {
		t.Fatalf("expected equal hashes, got %q vs %q", a, b)
	}
}

func TestContentHashDiffersOnContent(t *testing.T) {
	a := ContentHash("hello world")
	b := ContentHash("goodbye world")
	if a == b {
		t.Fatal("expected different hashes for different content")
	}
}

func TestSanitizeIDKeepsAllowedCharacters(t *testing.T) {
	got := SanitizeID("Profile One/NPC#42")
	if got != "Profile_One_NPC_42" {
		t.Fatalf("got %q", got)
	}
}

func TestSanitizeIDEmptyBecomesUnknown(t *testing.T) {
	if got := SanitizeID("###"); got != "unknown" {
		t.Fatalf("got %q", got)
	}
}

func TestSanitizeIDCapsLength(t *testing.T) {
	long := ""
	for i := 0; i < 400; i++ {
		long += "a"
	}
	got := SanitizeID(long)
	if len(got) > 180 {
		t.Fatalf("expected length <= 180, got %d", len(got))
	}
}
