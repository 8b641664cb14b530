package vectordb

import (
	"errors"
	"strings"
	"time"
)

// Note is a piece of research text attached to a symbol.
type Note struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Author    string    `json:"author,omitempty"`
	Source    string    `json:"source,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate normalizes the symbol and checks required fields.
func (n *Note) Validate() error {
	n.Symbol = strings.ToUpper(strings.TrimSpace(n.Symbol))
	if n.Symbol == "" {
		return errors.New("symbol is required")
	}
	if strings.TrimSpace(n.Content) == "" {
		return errors.New("content is required")
	}
	return nil
}

// SearchResult pairs a note with its similarity score.
type SearchResult struct {
	Note       Note    `json:"note"`
	Similarity float32 `json:"similarity"`
}

// SearchFilter narrows search results by metadata.
type SearchFilter struct {
	Symbol string
	Author string
}
