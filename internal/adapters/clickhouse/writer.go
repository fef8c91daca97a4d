// Package clickhouse implements the metrics Writer on top of ClickHouse.
package clickhouse

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/cpeq/infolettre-automatique/internal/adapters/config"
	"github.com/cpeq/infolettre-automatique/pkg/logger"
	"github.com/cpeq/infolettre-automatique/pkg/metrics"
)

// Writer writes metric batches into ClickHouse tables.
type Writer struct {
	db *sqlx.DB
}

// NewWriter connects to ClickHouse and verifies the connection.
func NewWriter(cfg *config.ClickHouseConfig) (*Writer, error) {
	db, err := sqlx.Connect("clickhouse", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	logger.Info("clickhouse connection established",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
	)

	return &Writer{db: db}, nil
}

// Write inserts one batch of metrics into a table. All metrics in a batch
// belong to the same table.
func (w *Writer) Write(ctx context.Context, tableName string, batch []metrics.Metric) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch[0].Values())), ",")
	stmt, err := tx.Preparex(fmt.Sprintf("INSERT INTO %s VALUES (%s)", tableName, placeholders))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, metric := range batch {
		if _, err := stmt.ExecContext(ctx, metric.Values()...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert metric into %s: %w", tableName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Debug("saved metrics to ClickHouse",
		zap.String("table", tableName),
		zap.Int("count", len(batch)),
	)

	return nil
}

// Close closes the ClickHouse connection.
func (w *Writer) Close() error {
	return w.db.Close()
}
