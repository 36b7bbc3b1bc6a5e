package memory

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestFIFOEviction(t *testing.T) {
	b := NewBuffer()
	for i := 0; i < 55; i++ {
		b.Append(RoleUser, fmt.Sprintf("turn-%d", i), nil)
	}
	if b.Len() != MaxEntries {
		t.Fatalf("len = %d, want %d", b.Len(), MaxEntries)
	}

	// Retained entries must be the last 40, in original order.
	all := b.Recent(MaxEntries)
	for i, e := range all {
		want := fmt.Sprintf("turn-%d", 15+i)
		if e.Content != want {
			t.Fatalf("entry %d = %q, want %q", i, e.Content, want)
		}
	}
}

func TestRecentBounds(t *testing.T) {
	b := NewBuffer()
	b.Append(RoleUser, "a", nil)
	b.Append(RoleAssistant, "b", nil)

	if got := b.Recent(5); len(got) != 2 {
		t.Errorf("Recent(5) len = %d, want 2", len(got))
	}
	if got := b.Recent(0); got != nil {
		t.Errorf("Recent(0) should be nil, got %v", got)
	}
	if got := b.Recent(1); got[0].Content != "b" {
		t.Errorf("Recent(1) = %q, want b", got[0].Content)
	}
}

func TestFormatForPrompt(t *testing.T) {
	b := NewBuffer()
	if got := b.FormatForPrompt(); got != "" {
		t.Errorf("empty buffer should format to empty string, got %q", got)
	}

	long := strings.Repeat("x", 300)
	for i := 0; i < 12; i++ {
		b.Append(RoleUser, fmt.Sprintf("q%d", i), nil)
	}
	b.Append(RoleAssistant, long, nil)

	out := b.FormatForPrompt()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 10 {
		t.Fatalf("rendered %d lines, want 10", len(lines))
	}

	// Last line is the assistant entry, truncated to 200 chars of content.
	last := lines[9]
	if !strings.HasPrefix(last, "Coach: ") {
		t.Errorf("assistant line not role-prefixed: %q", last)
	}
	if len(last) != len("Coach: ")+200 {
		t.Errorf("content not truncated to 200 chars: len=%d", len(last))
	}

	// Formatting must not mutate the buffer.
	if b.Len() != 13 {
		t.Errorf("FormatForPrompt mutated the buffer: len=%d", b.Len())
	}
	if again := b.FormatForPrompt(); again != out {
		t.Error("FormatForPrompt not stable across calls")
	}
}

func TestFormatForPromptRuneBoundary(t *testing.T) {
	// 199 ASCII bytes followed by a 3-byte rune straddling the 200-byte
	// limit: the rune must be dropped whole, never split.
	b := NewBuffer()
	b.Append(RoleUser, strings.Repeat("x", 199)+"世界", nil)

	out := b.FormatForPrompt()
	if !utf8.ValidString(out) {
		t.Fatal("truncation produced invalid UTF-8")
	}
	if want := "User: " + strings.Repeat("x", 199) + "\n"; out != want {
		t.Fatalf("got %q tail, want clean cut at the rune boundary", out[len(out)-12:])
	}
}
