package repository

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestTitleFrom(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"turn on the lights", "turn on the lights"},
		{"  padded  ", "padded"},
		{"", "New conversation"},
		{"   ", "New conversation"},
	}

	for _, tt := range tests {
		if got := titleFrom(tt.in); got != tt.want {
			t.Errorf("titleFrom(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := strings.Repeat("a", 80)
	got := titleFrom(long)
	if len(got) != 50 || !strings.HasSuffix(got, "...") {
		t.Errorf("titleFrom(long) = %q (len %d)", got, len(got))
	}
}

func TestTitleFromTruncatesOnRuneBoundary(t *testing.T) {
	tests := []string{
		strings.Repeat("ü", 80),
		strings.Repeat("灯", 80),
		"schalte das licht im büro an und mach es gemütlich warm für den abend bitte",
	}

	for _, in := range tests {
		got := titleFrom(in)
		if !utf8.ValidString(got) {
			t.Errorf("titleFrom(%q) = %q is not valid UTF-8", in, got)
		}
		if runes := []rune(got); len(runes) != 50 {
			t.Errorf("titleFrom(%q) = %q (%d runes)", in, got, len(runes))
		}
		if !strings.HasSuffix(got, "...") {
			t.Errorf("titleFrom(%q) = %q missing ellipsis", in, got)
		}
	}
}

func TestChronologicalReversesNewestFirstPage(t *testing.T) {
	base := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	newestFirst := []*Message{
		{Role: "assistant", Content: "The kitchen light is on.", CreatedAt: base.Add(2 * time.Second)},
		{Role: "user", Content: "turn on the kitchen light", CreatedAt: base.Add(time.Second)},
		{Role: "assistant", Content: "Hi, how can I help?", CreatedAt: base},
	}

	got := chronological(newestFirst)

	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.Before(got[i-1].CreatedAt) {
			t.Fatalf("message %d (%q) out of order", i, got[i].Content)
		}
	}
	if got[0].Content != "Hi, how can I help?" || got[len(got)-1].Content != "The kitchen light is on." {
		t.Errorf("unexpected order: first %q, last %q", got[0].Content, got[len(got)-1].Content)
	}

	if out := chronological(nil); out != nil {
		t.Errorf("chronological(nil) = %v", out)
	}
	single := []*Message{{Content: "only"}}
	if out := chronological(single); len(out) != 1 || out[0].Content != "only" {
		t.Errorf("chronological(single) = %v", out)
	}
}
