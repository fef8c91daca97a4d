package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/cpeq/infolettre-automatique/pkg/logger"
	"github.com/cpeq/infolettre-automatique/pkg/models"
)

// FileStore writes audit and delivery documents to the output directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// WriteNewsletterMarkdown writes the rendered issue, named by publication
// date.
func (s *FileStore) WriteNewsletterMarkdown(newsletter models.Newsletter) (string, error) {
	path := filepath.Join(s.dir, fmt.Sprintf("infolettre_%s.md", newsletter.PublishedAt.Format("2006-01-02")))

	if err := os.WriteFile(path, []byte(newsletter.ToMarkdown()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write newsletter markdown: %w", err)
	}

	logger.Info("newsletter markdown written", zap.String("path", path))
	return path, nil
}

// WriteNewsCSV writes the audit record of all processed news.
func (s *FileStore) WriteNewsCSV(news []models.News, publishedAt string) (string, error) {
	path := filepath.Join(s.dir, fmt.Sprintf("nouvelles_%s.csv", publishedAt))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create news CSV: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Titre", "Contenu", "Lien", "Date", "Rubrique", "Résumé", "Job"}); err != nil {
		return "", fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, n := range news {
		datetime := ""
		if n.Datetime != nil {
			datetime = n.Datetime.Format("2006-01-02 15:04:05")
		}
		record := []string{n.Title, n.Content, n.Link, datetime, string(n.Rubric), n.Summary, n.JobID}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush CSV: %w", err)
	}

	logger.Info("news CSV written",
		zap.String("path", path),
		zap.Int("count", len(news)),
	)
	return path, nil
}
