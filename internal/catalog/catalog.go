// Package catalog loads the mood-tagged song catalog and indexes it by mood.
package catalog

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/timmy/moodtune/internal/domain"
)

// Required CSV columns.
const (
	ColumnTitle      = "name"
	ColumnArtist     = "artist"
	ColumnExternalID = "id"
	ColumnMood       = "mood"
)

var requiredColumns = []string{ColumnTitle, ColumnArtist, ColumnExternalID, ColumnMood}

// Index is an immutable, loaded catalog.
type Index struct {
	entries []domain.CatalogEntry
	byMood  map[string][]int
	// Version is the sha256 of the source bytes; it changes whenever rows may
	// have changed meaning.
	Version string
}

// Parse reads a catalog CSV with at least the name, artist, id and mood
// columns. Header names are matched case-insensitively; extra columns are
// ignored.
// Parameters:
//   - r: CSV source.
//
// Returns:
//   - *Index: parsed catalog, possibly empty.
//   - error: *domain.SchemaError when required columns are missing, or a
//     read/parse error for unreadable or malformed input.
func Parse(r io.Reader) (*Index, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	sum := sha256.Sum256(data)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &domain.SchemaError{Missing: append([]string(nil), requiredColumns...)}
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.SchemaError{Missing: missing}
	}

	idx := &Index{
		byMood:  make(map[string][]int),
		Version: hex.EncodeToString(sum[:]),
	}
	for row := 0; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse catalog row %d: %w", row, err)
		}

		entry := domain.CatalogEntry{
			Row:        row,
			Title:      strings.TrimSpace(record[columns[ColumnTitle]]),
			Artist:     strings.TrimSpace(record[columns[ColumnArtist]]),
			ExternalID: strings.TrimSpace(record[columns[ColumnExternalID]]),
			Mood:       domain.NormalizeMood(record[columns[ColumnMood]]),
		}
		idx.byMood[entry.Mood] = append(idx.byMood[entry.Mood], len(idx.entries))
		idx.entries = append(idx.entries, entry)
	}

	return idx, nil
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Entries returns a copy of all entries in row order.
func (idx *Index) Entries() []domain.CatalogEntry {
	out := make([]domain.CatalogEntry, len(idx.entries))
	copy(out, idx.entries)
	return out
}

// ByMood returns the entries tagged with any of moods, in row order.
// Mood matching is case-insensitive.
func (idx *Index) ByMood(moods ...string) []domain.CatalogEntry {
	seen := make(map[string]bool, len(moods))
	var positions []int
	for _, m := range moods {
		m = domain.NormalizeMood(m)
		if seen[m] {
			continue
		}
		seen[m] = true
		positions = append(positions, idx.byMood[m]...)
	}

	// Keep row order across moods.
	out := make([]domain.CatalogEntry, 0, len(positions))
	if len(positions) == 0 {
		return out
	}
	marked := make([]bool, len(idx.entries))
	for _, p := range positions {
		marked[p] = true
	}
	for i, ok := range marked {
		if ok {
			out = append(out, idx.entries[i])
		}
	}
	return out
}

// Moods returns the number of entries per mood tag.
func (idx *Index) Moods() map[string]int {
	counts := make(map[string]int, len(idx.byMood))
	for mood, positions := range idx.byMood {
		counts[mood] = len(positions)
	}
	return counts
}
