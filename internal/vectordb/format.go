package vectordb

import (
	"fmt"
	"strings"
)

// FormatResults renders search results as human-readable text.
func FormatResults(results []SearchResult) string {
	if len(results) == 0 {
		return "No notes found."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d note(s):\n\n", len(results))

	for i, r := range results {
		fmt.Fprintf(&sb, "--- Note %d (similarity: %.4f) ---\n", i+1, r.Similarity)
		if r.Note.Title != "" {
			fmt.Fprintf(&sb, "Title: %s\n", r.Note.Title)
		}
		fmt.Fprintf(&sb, "Symbol: %s\n", r.Note.Symbol)
		if r.Note.Author != "" {
			fmt.Fprintf(&sb, "Author: %s\n", r.Note.Author)
		}
		if !r.Note.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "Date: %s\n", r.Note.CreatedAt.Format("2006-01-02"))
		}
		sb.WriteString("\n")
		sb.WriteString(r.Note.Content)
		sb.WriteString("\n\n")
	}

	return sb.String()
}
