package vectordb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/trii-invest/insightd/internal/embeddings"
)

const (
	collectionName = "research_notes"
	exportFile     = "notes.gob.gz"
)

// ErrNoteNotFound is returned by Get for an unknown ID.
var ErrNoteNotFound = errors.New("note not found")

// ChromemStore implements NoteStore using chromem-go.
type ChromemStore struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	embedFunc  chromem.EmbeddingFunc
}

// NewChromemStore creates a new in-memory ChromemStore.
func NewChromemStore(embedder embeddings.Embedder) (*ChromemStore, error) {
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)

	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemStore{
		db:         db,
		collection: col,
		embedFunc:  ef,
	}, nil
}

func newNoteID() string { return uuid.New().String() }

func (s *ChromemStore) col() *chromem.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection
}

func (s *ChromemStore) AddNotes(ctx context.Context, notes []Note) error {
	if len(notes) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(notes))
	for i, n := range notes {
		if err := n.Validate(); err != nil {
			return fmt.Errorf("note %d: %w", i, err)
		}
		if n.ID == "" {
			n.ID = newNoteID()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now().UTC()
		}
		docs[i] = chromem.Document{
			ID:       n.ID,
			Content:  n.Content,
			Metadata: noteToMap(n),
		}
	}

	return s.col().AddDocuments(ctx, docs, 1)
}

func (s *ChromemStore) Search(ctx context.Context, query string, limit int, filter *SearchFilter) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	col := s.col()

	// chromem-go requires nResults <= collection size.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	limit = min(limit, count)

	results, err := col.Query(ctx, query, limit, buildWhereClause(filter), nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			Note:       mapToNote(r.ID, r.Content, r.Metadata),
			Similarity: r.Similarity,
		}
	}
	return out, nil
}

func (s *ChromemStore) Get(ctx context.Context, id string) (*Note, error) {
	doc, err := s.col().GetByID(ctx, id)
	if err != nil {
		return nil, ErrNoteNotFound
	}
	n := mapToNote(doc.ID, doc.Content, doc.Metadata)
	return &n, nil
}

func (s *ChromemStore) Delete(ctx context.Context, id string) error {
	return s.col().Delete(ctx, nil, nil, id)
}

func (s *ChromemStore) DeleteBySymbol(ctx context.Context, symbol string) error {
	return s.col().Delete(ctx, map[string]string{"symbol": strings.ToUpper(symbol)}, nil)
}

func (s *ChromemStore) Persist(ctx context.Context, dir string) error {
	return s.db.ExportToFile(filepath.Join(dir, exportFile), true, "")
}

func (s *ChromemStore) Load(ctx context.Context, dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.ImportFromFile(filepath.Join(dir, exportFile), ""); err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	// Re-acquire collection reference after import.
	col := s.db.GetCollection(collectionName, s.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	s.collection = col
	return nil
}

func (s *ChromemStore) Count() int {
	return s.col().Count()
}

// noteToMap flattens a note into chromem's string metadata.
func noteToMap(n Note) map[string]string {
	return map[string]string{
		"symbol":     n.Symbol,
		"title":      n.Title,
		"author":     n.Author,
		"source":     n.Source,
		"tags":       strings.Join(n.Tags, ","),
		"created_at": n.CreatedAt.Format(time.RFC3339),
	}
}

func mapToNote(id, content string, m map[string]string) Note {
	createdAt, _ := time.Parse(time.RFC3339, m["created_at"])
	var tags []string
	if m["tags"] != "" {
		tags = strings.Split(m["tags"], ",")
	}
	return Note{
		ID:        id,
		Symbol:    m["symbol"],
		Title:     m["title"],
		Content:   content,
		Author:    m["author"],
		Source:    m["source"],
		Tags:      tags,
		CreatedAt: createdAt,
	}
}

// buildWhereClause converts a SearchFilter to a chromem where clause.
func buildWhereClause(filter *SearchFilter) map[string]string {
	if filter == nil {
		return nil
	}

	where := make(map[string]string)
	if filter.Symbol != "" {
		where["symbol"] = strings.ToUpper(filter.Symbol)
	}
	if filter.Author != "" {
		where["author"] = filter.Author
	}

	if len(where) == 0 {
		return nil
	}
	return where
}
