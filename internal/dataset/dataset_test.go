package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCSV(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "movies.csv")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadMoviesParsesRows(t *testing.T) {
	path := writeCSV(t, "id,title,release_date,genre_names,vote_average,vote_count\n"+
		"27205,Inception,2010-07-15,Action,8.4,34000\n"+
		"603,The Matrix,1999-03-30,Action,8.2,25000\n")

	records, err := LoadMovies(path)
	if err != nil {
		t.Fatalf("LoadMovies: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].Title != "Inception" {
		t.Errorf("records[0].Title = %q, want Inception", records[0].Title)
	}
}

func TestLoadMoviesSkipsEmptyAndDuplicateTitles(t *testing.T) {
	path := writeCSV(t, "title,vote_average\n"+
		"Her,8.0\n"+
		",9.0\n"+
		"Her,7.0\n")

	records, err := LoadMovies(path)
	if err != nil {
		t.Fatalf("LoadMovies: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
}

func TestLoadMoviesMissingTitleColumn(t *testing.T) {
	path := writeCSV(t, "id,year\n1,2020\n")
	if _, err := LoadMovies(path); err == nil {
		t.Fatal("expected error for missing title column")
	}
}
