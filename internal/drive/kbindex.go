package drive

import (
	"context"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// KBIndexDoc is one chunked document handed to the indexer, grounded on
// the teacher's internal/rag package shape (Indexer.Index(ctx, docs)).
type KBIndexDoc struct {
	ID      string
	Content string
	Meta    map[string]string
}

// KBIndexer is the external collaborator the KB stream dispatches to.
// ChromemIndexer is the concrete implementation wired against
// github.com/philippgille/chromem-go, an embedded vector store that fits
// "one collection per bot+KB" far better than a shared relational store.
type KBIndexer interface {
	Index(ctx context.Context, collection string, docs []KBIndexDoc) error
	Clear(ctx context.Context, collection string) error
	TryLock(kbKey string) bool
	Unlock(kbKey string)
}

// ChromemIndexer indexes documents into a chromem-go collection per
// (bot, kb_name), embedding content with the DB's configured embedding
// function.
type ChromemIndexer struct {
	db *chromem.DB

	mu       sync.Mutex
	inFlight map[string]bool // kb_key -> indexing in progress
}

// NewChromemIndexer opens (or creates) a persistent chromem-go database
// rooted at path.
func NewChromemIndexer(path string) (*ChromemIndexer, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("drive: open chromem db: %w", err)
	}
	return &ChromemIndexer{db: db, inFlight: make(map[string]bool)}, nil
}

// TryLock acquires the per-(bot,kb) in-flight guard spec.md §4.6
// requires to prevent duplicate concurrent indexings; it returns false
// if indexing for kbKey is already running.
func (c *ChromemIndexer) TryLock(kbKey string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[kbKey] {
		return false
	}
	c.inFlight[kbKey] = true
	return true
}

// Unlock releases the in-flight guard; callers must release it on every
// exit path (success, error, timeout) per spec.md §5, to avoid a
// permanently blocked key.
func (c *ChromemIndexer) Unlock(kbKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, kbKey)
}

func (c *ChromemIndexer) Index(ctx context.Context, collection string, docs []KBIndexDoc) error {
	col, err := c.db.GetOrCreateCollection(collection, nil, nil)
	if err != nil {
		return fmt.Errorf("drive: get collection %s: %w", collection, err)
	}
	cdocs := make([]chromem.Document, 0, len(docs))
	for _, d := range docs {
		cdocs = append(cdocs, chromem.Document{ID: d.ID, Content: d.Content, Metadata: d.Meta})
	}
	if len(cdocs) == 0 {
		return nil
	}
	return col.AddDocuments(ctx, cdocs, 1)
}

func (c *ChromemIndexer) Clear(_ context.Context, collection string) error {
	return c.db.DeleteCollection(collection)
}
