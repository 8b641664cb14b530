package vectordb

import "context"

// NoteStore stores research notes and searches them by meaning.
type NoteStore interface {
	// AddNotes adds or replaces notes by ID.
	AddNotes(ctx context.Context, notes []Note) error

	// Search returns up to limit notes most similar to query.
	Search(ctx context.Context, query string, limit int, filter *SearchFilter) ([]SearchResult, error)

	// Get returns the note with the given ID.
	Get(ctx context.Context, id string) (*Note, error)

	// Delete removes a single note.
	Delete(ctx context.Context, id string) error

	// DeleteBySymbol removes every note attached to symbol.
	DeleteBySymbol(ctx context.Context, symbol string) error

	// Persist saves the store's data to the given directory.
	Persist(ctx context.Context, dir string) error

	// Load restores the store's data from the given directory.
	Load(ctx context.Context, dir string) error

	// Count returns the total number of notes in the store.
	Count() int
}
