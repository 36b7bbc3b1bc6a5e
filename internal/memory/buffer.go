// Package memory holds the bounded conversation buffer injected into
// follow-up prompts. Entries are immutable once appended; the buffer evicts
// oldest-first at the cap.
package memory

import (
	"time"
	"unicode/utf8"
)

// Roles for conversation entries.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	// MaxEntries caps the buffer at 20 exchanges.
	MaxEntries = 40
	// promptEntries is how many trailing entries FormatForPrompt renders.
	promptEntries = 10
	// promptContentLimit truncates each rendered entry's content.
	promptContentLimit = 200
)

// Entry is one turn of conversation.
type Entry struct {
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Buffer is a FIFO conversation window. Per-session state, serialized by the
// session lock like the limiter and tracker.
type Buffer struct {
	entries []Entry
}

// NewBuffer returns an empty conversation buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append pushes a new entry and evicts from the front past MaxEntries.
func (b *Buffer) Append(role, content string, metadata map[string]string) {
	b.entries = append(b.entries, Entry{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Metadata:  metadata,
	})
	if n := len(b.entries); n > MaxEntries {
		b.entries = b.entries[n-MaxEntries:]
	}
}

// Len reports the current entry count.
func (b *Buffer) Len() int {
	return len(b.entries)
}

// Recent returns the last n entries in chronological order. The slice is a
// copy; callers may retain it.
func (b *Buffer) Recent(n int) []Entry {
	if n <= 0 {
		return nil
	}
	if n > len(b.entries) {
		n = len(b.entries)
	}
	out := make([]Entry, n)
	copy(out, b.entries[len(b.entries)-n:])
	return out
}

// Clear discards all entries.
func (b *Buffer) Clear() {
	b.entries = nil
}

// FormatForPrompt renders the trailing entries as a role-prefixed text block
// for inclusion in a prompt, or an empty string when the buffer is empty.
// Pure with respect to buffer state; safe to call during prompt assembly.
func (b *Buffer) FormatForPrompt() string {
	if len(b.entries) == 0 {
		return ""
	}
	recent := b.Recent(promptEntries)
	out := make([]byte, 0, len(recent)*64)
	for _, e := range recent {
		content := truncate(e.Content, promptContentLimit)
		label := "User"
		if e.Role == RoleAssistant {
			label = "Coach"
		}
		out = append(out, label...)
		out = append(out, ": "...)
		out = append(out, content...)
		out = append(out, '\n')
	}
	return string(out)
}

// truncate cuts s to at most limit bytes without splitting a UTF-8 rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
