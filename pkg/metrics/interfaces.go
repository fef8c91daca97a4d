package metrics

import "context"

// Metric is a generic interface for any metric record.
type Metric interface {
	// TableName returns the storage table for this metric.
	TableName() string
	// Values returns metric values in column order.
	Values() []interface{}
}

// Writer writes metric batches to storage (ClickHouse here, but anything
// table-shaped works).
type Writer interface {
	Write(ctx context.Context, tableName string, metrics []Metric) error
	Close() error
}

// Buffer batches metrics and flushes them to a Writer.
type Buffer interface {
	// Add adds a metric to the buffer (thread-safe).
	Add(metric Metric) error
	// Flush writes out everything currently buffered.
	Flush(ctx context.Context) error
	// Size returns the current buffer size.
	Size() int
	// Close flushes and stops the buffer.
	Close(ctx context.Context) error
}
