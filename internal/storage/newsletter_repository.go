package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/cpeq/infolettre-automatique/pkg/logger"
	"github.com/cpeq/infolettre-automatique/pkg/models"
)

// NewsletterRepository stores generated newsletters in Postgres.
type NewsletterRepository struct {
	db *sqlx.DB
}

// NewNewsletterRepository creates a newsletter repository.
func NewNewsletterRepository(db *sqlx.DB) *NewsletterRepository {
	return &NewsletterRepository{db: db}
}

// SaveNewsletter records one generated issue with its rendered markdown.
func (r *NewsletterRepository) SaveNewsletter(ctx context.Context, newsletter models.Newsletter) error {
	query := `
		INSERT INTO newsletters (start_date, end_date, published_at, article_count, markdown)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := r.db.ExecContext(ctx, query,
		newsletter.StartDate,
		newsletter.EndDate,
		newsletter.PublishedAt,
		len(newsletter.News),
		newsletter.ToMarkdown(),
	); err != nil {
		return fmt.Errorf("failed to save newsletter: %w", err)
	}

	logger.Info("newsletter saved",
		zap.Time("start_date", newsletter.StartDate),
		zap.Time("end_date", newsletter.EndDate),
		zap.Int("articles", len(newsletter.News)),
	)
	return nil
}
