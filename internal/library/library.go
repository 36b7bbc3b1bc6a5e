// Package library holds the evidence library: SEL strategy excerpts with
// their research citations, stored as embeddings in Qdrant and retrieved to
// ground the evidence sections of generated recommendations. The library is
// optional infrastructure: when it is absent or a lookup fails, prompts go
// out without a retrieved block.
package library

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultCollection is the Qdrant collection for strategy evidence.
const DefaultCollection = "sel_evidence"

// Entry is one strategy excerpt in the library.
type Entry struct {
	Content    string
	Competency string
	Source     string
	Score      float32
}

// Library retrieves strategy evidence by semantic similarity.
type Library struct {
	embedder   Embedder
	store      *vectorClient
	collection string
	logger     *zap.Logger
}

// New connects to Qdrant and ensures the evidence collection exists.
func New(ctx context.Context, embedder Embedder, cfg VectorConfig, collection string, logger *zap.Logger) (*Library, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	store, err := dialVectorStore(cfg)
	if err != nil {
		return nil, err
	}
	dim := uint64(embedder.Dimension())
	if dim == 0 {
		dim = 1024
	}
	if err := store.ensureCollection(ctx, collection, dim); err != nil {
		store.close()
		return nil, err
	}
	return &Library{embedder: embedder, store: store, collection: collection, logger: logger}, nil
}

// Add embeds an excerpt and stores it with its competency and source
// citation.
func (l *Library) Add(ctx context.Context, content, competency, source string) error {
	vectors, err := l.embedder.Embed(ctx, []string{content})
	if err != nil {
		return fmt.Errorf("embed entry: %w", err)
	}
	if len(vectors) == 0 {
		return fmt.Errorf("empty embedding result")
	}
	payload := map[string]string{
		"content":    content,
		"competency": competency,
		"source":     source,
		"indexed_at": time.Now().UTC().Format(time.RFC3339),
	}
	return l.store.upsert(ctx, l.collection, uuid.NewString(), vectors[0], payload)
}

// Query returns the topK excerpts most relevant to the query text.
func (l *Library) Query(ctx context.Context, query string, topK int) ([]Entry, error) {
	vectors, err := l.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	hits, err := l.store.search(ctx, l.collection, vectors[0], uint64(topK))
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(hits))
	for _, h := range hits {
		entries = append(entries, Entry{
			Content:    h.payload["content"],
			Competency: h.payload["competency"],
			Source:     h.payload["source"],
			Score:      h.score,
		})
	}
	return entries, nil
}

// Close tears down the vector store connection.
func (l *Library) Close() error {
	return l.store.close()
}

// FormatEvidence renders retrieved entries into the block consumed by
// prompt.WithEvidence. Empty input yields the empty string so callers can
// pass the result straight through.
func FormatEvidence(entries []Entry) string {
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. ", i+1)
		if e.Competency != "" {
			fmt.Fprintf(&b, "[%s] ", e.Competency)
		}
		b.WriteString(e.Content)
		if e.Source != "" {
			fmt.Fprintf(&b, " (Source: %s)", e.Source)
		}
		b.WriteString("\n")
	}
	return b.String()
}
