package coach

import (
	"strings"
	"time"

	"github.com/lumenclass/selcoach/internal/provider"
)

const (
	flushBytes    = 40
	flushInterval = 40 * time.Millisecond
)

// Sink receives batched text fragments during a streaming generation.
type Sink func(fragment string)

// relay drains a provider stream, concatenating fragments in arrival order.
// Pending text is flushed to the sink once it reaches flushBytes or when
// flushInterval elapses, whichever comes first, so a slow renderer is never
// driven chunk-by-chunk. Returns the full text and the final usage envelope
// (nil when the stream ended without one).
func relay(ch <-chan *provider.StreamChunk, sink Sink) (string, *provider.Usage) {
	var full, pending strings.Builder
	var finalUsage *provider.Usage

	flush := func() {
		if pending.Len() == 0 || sink == nil {
			return
		}
		sink(pending.String())
		pending.Reset()
	}

	timer := time.NewTimer(flushInterval)
	defer timer.Stop()

	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				flush()
				return full.String(), finalUsage
			}
			if chunk.Done {
				if chunk.Usage != nil {
					u := *chunk.Usage
					finalUsage = &u
				}
				continue
			}
			full.WriteString(chunk.Content)
			pending.WriteString(chunk.Content)
			if pending.Len() >= flushBytes {
				flush()
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(flushInterval)
			}
		case <-timer.C:
			flush()
			timer.Reset(flushInterval)
		}
	}
}
