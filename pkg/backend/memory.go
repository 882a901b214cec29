package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/killallgit/canvaschat/pkg/logger"
	"github.com/philippgille/chromem-go"
)

// DefaultMemoryResults is how many past messages a search returns
const DefaultMemoryResults = 3

// Memory keeps past chat messages in a chromem collection and finds the
// ones most similar to a query.
type Memory struct {
	collection *chromem.Collection
	results    int
	log        *logger.ComponentLogger
	mu         sync.RWMutex
}

// NewMemory creates an in-memory collection named name. results caps how
// many documents Search returns; zero means DefaultMemoryResults.
func NewMemory(embedder Embedder, name string, results int) (*Memory, error) {
	if results <= 0 {
		results = DefaultMemoryResults
	}

	embedFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedText(ctx, text)
	}

	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection(name, nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	return &Memory{
		collection: col,
		results:    results,
		log:        logger.WithComponent("memory"),
	}, nil
}

// Add stores text under a new ID. Blank text is ignored.
func (m *Memory) Add(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc := chromem.Document{
		ID:      uuid.New().String(),
		Content: text,
	}
	if err := m.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to add to memory: %w", err)
	}
	m.log.Debug("Added to memory", "id", doc.ID, "length", len(text))
	return nil
}

// Search returns the stored texts most similar to query, best match first.
// An empty collection yields no results.
func (m *Memory) Search(ctx context.Context, query string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := m.collection.Count()
	if count == 0 || query == "" {
		return []string{}, nil
	}

	k := min(m.results, count)
	results, err := m.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query memory: %w", err)
	}

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Content
	}
	return texts, nil
}

// Count returns the number of stored texts
func (m *Memory) Count() int {
	return m.collection.Count()
}
