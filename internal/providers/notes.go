package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/trii-invest/insightd/internal/resource"
	"github.com/trii-invest/insightd/internal/vectordb"
)

// ResearchNotesScheme prefixes every URI the research notes provider owns.
const ResearchNotesScheme = "research-notes"

const defaultTopK = 3

// ResearchNotes surfaces the notes most related to a symbol.
type ResearchNotes struct {
	store vectordb.NoteStore
	topK  int
}

// NewResearchNotes returns a provider over store. topK <= 0 means 3.
func NewResearchNotes(store vectordb.NoteStore, topK int) *ResearchNotes {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &ResearchNotes{store: store, topK: topK}
}

func (n *ResearchNotes) Name() string { return "research_notes" }

func (n *ResearchNotes) ListResources(ctx context.Context, scope resource.Scope) ([]resource.Resource, error) {
	symbol := strings.ToUpper(scope.Symbol())
	if symbol == "" || n.store.Count() == 0 {
		return nil, nil
	}

	results, err := n.store.Search(ctx, symbol+" outlook, risks and catalysts", n.topK, &vectordb.SearchFilter{Symbol: symbol})
	if err != nil {
		return nil, fmt.Errorf("searching notes for %s: %w", symbol, err)
	}

	out := make([]resource.Resource, 0, len(results))
	for _, r := range results {
		name := r.Note.Title
		if name == "" {
			name = "Research note " + r.Note.ID
		}
		out = append(out, resource.Resource{
			URI:          ResearchNotesScheme + "://" + symbol + "/" + r.Note.ID,
			Name:         name,
			Description:  "Research note on " + symbol,
			MIMEType:     "text/plain",
			ResourceType: resource.TypeResearchNote,
			Metadata: map[string]any{
				"similarity": r.Similarity,
				"author":     r.Note.Author,
			},
		})
	}
	return out, nil
}

func (n *ResearchNotes) ListTools(ctx context.Context, scope resource.Scope) ([]resource.Tool, error) {
	return []resource.Tool{{
		Name:        "search_research_notes",
		Description: "Semantic search over stored research notes",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":  map[string]any{"type": "string"},
				"symbol": map[string]any{"type": "string"},
				"limit":  map[string]any{"type": "integer"},
			},
			"required": []string{"query"},
		},
	}}, nil
}

func (n *ResearchNotes) FetchContent(ctx context.Context, uri string) (*resource.Content, bool, error) {
	_, id, ok := splitURI(uri, ResearchNotesScheme)
	if !ok {
		return nil, false, nil
	}
	note, err := n.store.Get(ctx, id)
	if errors.Is(err, vectordb.ErrNoteNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &resource.Content{URI: uri, MIMEType: "text/plain", Text: note.Content}, true, nil
}
