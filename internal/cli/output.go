// Package cli formats search results for the librarian command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/librarian/internal/models"
	"github.com/hyperjump/librarian/pkg/utils"
)

// OutputFormat is the format for result output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints one result per line.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat returns the format named s.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
}

// WriteSearchResults writes semantic search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for _, r := range response.Results {
			fmt.Fprintf(w, "%d\t%.4f\t%s/%s/%s\t%s\n", r.Rank, r.Similarity,
				r.LibraryID, r.DocumentID, r.Chunk.ID, compactText(r.Chunk.Text))
		}
		return nil
	default:
		fmt.Fprintf(w, "\nFound %d results in %dms (%d candidates)\n\n",
			len(response.Results), response.QueryTime, response.Candidates)
		for _, r := range response.Results {
			fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "Rank: %d | Similarity: %.4f\n", r.Rank, r.Similarity)
			writeLocation(w, r.LibraryID, r.DocumentID, r.Chunk)
		}
		return nil
	}
}

// WriteKeywordResults writes keyword search results to w in the given format.
func WriteKeywordResults(w io.Writer, response *models.KeywordResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for _, h := range response.Results {
			fmt.Fprintf(w, "%s/%s/%s\t%s\n", h.LibraryID, h.DocumentID, h.Chunk.ID, compactText(h.Chunk.Text))
		}
		return nil
	default:
		fmt.Fprintf(w, "\nFound %d chunks containing %q\n\n", len(response.Results), response.Term)
		for _, h := range response.Results {
			fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
			writeLocation(w, h.LibraryID, h.DocumentID, h.Chunk)
		}
		return nil
	}
}

func writeLocation(w io.Writer, libraryID, docID string, chunk *models.TextChunk) {
	fmt.Fprintf(w, "Library: %s | Document: %s | Chunk: %s\n", libraryID, docID, chunk.ID)
	fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(chunk.Text, 200))
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func compactText(s string) string {
	return utils.Truncate(strings.Join(strings.Fields(s), " "), 120)
}
