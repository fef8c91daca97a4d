package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cpeq/infolettre-automatique/pkg/logger"
)

// BufferedMetrics batches metrics per table and flushes them on size or on a
// timer.
type BufferedMetrics struct {
	writer      Writer
	buffer      map[string][]Metric
	flushTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
	batchSize   int
	bufferMu    sync.RWMutex
}

// BufferConfig configures a metrics buffer.
type BufferConfig struct {
	Writer        Writer
	BatchSize     int           // flush when a table buffer reaches this size
	FlushInterval time.Duration // auto-flush interval
}

// NewBufferedMetrics creates a buffer and starts its auto-flush goroutine.
func NewBufferedMetrics(cfg BufferConfig) *BufferedMetrics {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 10 * time.Second
	}

	bm := &BufferedMetrics{
		writer:      cfg.Writer,
		buffer:      make(map[string][]Metric),
		batchSize:   cfg.BatchSize,
		flushTicker: time.NewTicker(cfg.FlushInterval),
		stopCh:      make(chan struct{}),
	}

	bm.wg.Add(1)
	go bm.autoFlush()

	logger.Info("metrics buffer initialized",
		zap.Int("batch_size", cfg.BatchSize),
		zap.Duration("flush_interval", cfg.FlushInterval),
	)

	return bm
}

// Add adds a metric to the buffer (thread-safe).
func (bm *BufferedMetrics) Add(metric Metric) error {
	if metric == nil {
		return fmt.Errorf("metric is nil")
	}

	tableName := metric.TableName()
	if tableName == "" {
		return fmt.Errorf("metric table name is empty")
	}

	bm.bufferMu.Lock()
	bm.buffer[tableName] = append(bm.buffer[tableName], metric)
	shouldFlush := len(bm.buffer[tableName]) >= bm.batchSize
	bm.bufferMu.Unlock()

	if shouldFlush {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return bm.Flush(ctx)
	}
	return nil
}

// Flush writes all buffered metrics to the writer.
func (bm *BufferedMetrics) Flush(ctx context.Context) error {
	bm.bufferMu.Lock()
	pending := bm.buffer
	bm.buffer = make(map[string][]Metric)
	bm.bufferMu.Unlock()

	for table, batch := range pending {
		if len(batch) == 0 {
			continue
		}
		if err := bm.writer.Write(ctx, table, batch); err != nil {
			logger.Error("failed to flush metrics batch",
				zap.String("table", table),
				zap.Int("count", len(batch)),
				zap.Error(err),
			)
			return err
		}
		logger.Debug("metrics batch flushed",
			zap.String("table", table),
			zap.Int("count", len(batch)),
		)
	}
	return nil
}

// Size returns the total number of buffered metrics.
func (bm *BufferedMetrics) Size() int {
	bm.bufferMu.RLock()
	defer bm.bufferMu.RUnlock()

	total := 0
	for _, batch := range bm.buffer {
		total += len(batch)
	}
	return total
}

// Close flushes remaining metrics and stops the auto-flush goroutine.
func (bm *BufferedMetrics) Close(ctx context.Context) error {
	close(bm.stopCh)
	bm.flushTicker.Stop()
	bm.wg.Wait()
	return bm.Flush(ctx)
}

func (bm *BufferedMetrics) autoFlush() {
	defer bm.wg.Done()

	for {
		select {
		case <-bm.flushTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := bm.Flush(ctx); err != nil {
				logger.Error("auto-flush failed", zap.Error(err))
			}
			cancel()
		case <-bm.stopCh:
			return
		}
	}
}
