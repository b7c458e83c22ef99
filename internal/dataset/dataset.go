// Package dataset loads the movie dataset used to exercise the network
// facade's bulk and concurrent operations with realistic (key, blob)
// pairs. It stays out of the DHT core's scope as an external
// collaborator and uses only the standard library's CSV/JSON support.
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Record is one (key, blob) pair ready for insertion into the network
// facade: Title is the DHT key, Blob is a JSON-encoded value.
type Record struct {
	Title string
	Blob  string
}

// MovieRecord mirrors the handful of columns of the reference movie
// dataset this module actually needs; unparseable numeric fields fall
// back to zero rather than failing the whole load.
type MovieRecord struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	Genres      string  `json:"genre_names"`
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int     `json:"vote_count"`
}

// LoadMovies reads a CSV file at path with a header row containing at
// least "title", and optionally "id", "release_date", "genre_names",
// "vote_average", "vote_count", producing one Record per row with a
// non-empty title. Rows with a duplicate title keep only the first
// occurrence, since the DHT key space is title-addressed.
func LoadMovies(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("dataset: reading header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	titleIdx, ok := col["title"]
	if !ok {
		return nil, fmt.Errorf("dataset: %s has no \"title\" column", path)
	}

	seen := make(map[string]bool)
	var records []Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: reading row: %w", err)
		}
		if titleIdx >= len(row) {
			continue
		}
		title := row[titleIdx]
		if title == "" || seen[title] {
			continue
		}
		seen[title] = true

		mr := MovieRecord{Title: title}
		mr.ID = atoiOr(field(row, col, "id"), 0)
		mr.ReleaseDate = field(row, col, "release_date")
		mr.Genres = field(row, col, "genre_names")
		mr.VoteAverage = parseFloatOr(field(row, col, "vote_average"), 0)
		mr.VoteCount = atoiOr(field(row, col, "vote_count"), 0)

		blob, err := json.Marshal(mr)
		if err != nil {
			return nil, fmt.Errorf("dataset: encoding %q: %w", title, err)
		}
		records = append(records, Record{Title: title, Blob: string(blob)})
	}
	return records, nil
}

func field(row []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func parseFloatOr(s string, fallback float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return f
}
