package coach

import (
	"strings"
	"testing"
	"time"

	"github.com/lumenclass/selcoach/internal/provider"
)

func TestRelayBatchesBySize(t *testing.T) {
	ch := make(chan *provider.StreamChunk, 16)
	// 10 fragments of 10 chars each; size-based flushes should batch them.
	for i := 0; i < 10; i++ {
		ch <- &provider.StreamChunk{Content: strings.Repeat("a", 10)}
	}
	ch <- &provider.StreamChunk{Done: true, Usage: &provider.Usage{OutputTokens: 10}}
	close(ch)

	var flushes []string
	text, u := relay(ch, func(s string) { flushes = append(flushes, s) })

	if len(text) != 100 {
		t.Fatalf("text len = %d, want 100", len(text))
	}
	if u == nil || u.OutputTokens != 10 {
		t.Fatalf("usage = %+v", u)
	}
	if strings.Join(flushes, "") != text {
		t.Error("sink fragments do not reassemble into the full text")
	}
	// Every flush except possibly the last should carry at least flushBytes.
	for i, f := range flushes[:len(flushes)-1] {
		if len(f) < flushBytes {
			t.Errorf("flush %d only %d bytes", i, len(f))
		}
	}
}

func TestRelayFlushesOnInterval(t *testing.T) {
	ch := make(chan *provider.StreamChunk)
	flushed := make(chan string, 4)

	go func() {
		ch <- &provider.StreamChunk{Content: "short"} // under flushBytes
		// Hold the stream open past the flush interval.
		time.Sleep(3 * flushInterval)
		ch <- &provider.StreamChunk{Done: true, Usage: &provider.Usage{}}
		close(ch)
	}()

	done := make(chan struct{})
	go func() {
		relay(ch, func(s string) { flushed <- s })
		close(done)
	}()

	select {
	case s := <-flushed:
		if s != "short" {
			t.Errorf("flush = %q", s)
		}
	case <-time.After(2 * flushInterval):
		t.Fatal("pending text not flushed on interval")
	}
	<-done
}

func TestRelayNilSink(t *testing.T) {
	ch := make(chan *provider.StreamChunk, 2)
	ch <- &provider.StreamChunk{Content: "hello"}
	ch <- &provider.StreamChunk{Done: true, Usage: &provider.Usage{}}
	close(ch)

	text, u := relay(ch, nil)
	if text != "hello" || u == nil {
		t.Errorf("relay without sink: text=%q usage=%v", text, u)
	}
}
