// Package storage persists pipeline output: processed news and newsletters
// in Postgres, plus CSV and markdown documents on disk for the editors.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/cpeq/infolettre-automatique/pkg/logger"
	"github.com/cpeq/infolettre-automatique/pkg/models"
)

// NewsRepository stores processed news in Postgres.
type NewsRepository struct {
	db *sqlx.DB
}

// NewNewsRepository creates a news repository.
func NewNewsRepository(db *sqlx.DB) *NewsRepository {
	return &NewsRepository{db: db}
}

// SaveNews upserts a batch of processed news. Identity is the deterministic
// UUID of the title, so re-scraped articles update in place.
func (r *NewsRepository) SaveNews(ctx context.Context, news []models.News) error {
	if len(news) == 0 {
		return nil
	}

	query := `
		INSERT INTO news (id, title, content, link, datetime, rubric, summary, job_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			link = EXCLUDED.link,
			datetime = EXCLUDED.datetime,
			rubric = EXCLUDED.rubric,
			summary = EXCLUDED.summary,
			job_id = EXCLUDED.job_id
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	for _, n := range news {
		if _, err := tx.ExecContext(ctx, query,
			n.ID().String(),
			n.Title,
			n.Content,
			n.Link,
			n.Datetime,
			string(n.Rubric),
			n.Summary,
			n.JobID,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to upsert news %q: %w", n.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Info("news saved", zap.Int("count", len(news)))
	return nil
}

// ListByDateRange returns processed news with a datetime inside [start, end).
func (r *NewsRepository) ListByDateRange(ctx context.Context, start, end time.Time) ([]models.News, error) {
	query := `
		SELECT title, content, link, datetime, rubric, summary, job_id
		FROM news
		WHERE datetime >= $1 AND datetime < $2
		ORDER BY datetime
	`

	var news []models.News
	if err := r.db.SelectContext(ctx, &news, query, start, end); err != nil {
		return nil, fmt.Errorf("failed to list news: %w", err)
	}
	return news, nil
}
