package storage

import (
	"encoding/csv"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cpeq/infolettre-automatique/pkg/models"
)

func TestWriteNewsletterMarkdown(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}

	published := time.Date(2024, 1, 9, 12, 0, 0, 0, time.UTC)
	nl := models.NewNewsletter(
		[]models.News{{Title: "Titre", Summary: "Résumé", Link: "https://example.com", Rubric: models.RubricEau}},
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		published,
	)

	path, err := store.WriteNewsletterMarkdown(nl)
	if err != nil {
		t.Fatalf("WriteNewsletterMarkdown returned error: %v", err)
	}
	if !strings.HasSuffix(path, "infolettre_2024-01-09.md") {
		t.Errorf("unexpected file name: %s", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written markdown: %v", err)
	}
	if !strings.Contains(string(content), "## "+models.RubricEau.String()) {
		t.Error("rendered markdown missing rubric section")
	}
}

func TestWriteNewsCSV(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}

	dt := time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)
	news := []models.News{
		{Title: "Avec date", Content: "c", Link: "https://a", Datetime: &dt, Rubric: models.RubricEau, Summary: "s", JobID: "1"},
		{Title: "Sans date", Content: "c", Link: "https://b", Rubric: models.RubricEnergie, Summary: "s", JobID: "2"},
	}

	path, err := store.WriteNewsCSV(news, "2024-01-09")
	if err != nil {
		t.Fatalf("WriteNewsCSV returned error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open written CSV: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse written CSV: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("expected header + 2 records, got %d rows", len(records))
	}
	if records[0][0] != "Titre" {
		t.Errorf("unexpected header: %v", records[0])
	}
	if records[1][3] != "2024-01-03 10:00:00" {
		t.Errorf("unexpected datetime formatting: %q", records[1][3])
	}
	if records[2][3] != "" {
		t.Errorf("nil datetime should serialize empty, got %q", records[2][3])
	}
}
