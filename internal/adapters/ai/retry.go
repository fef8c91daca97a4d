package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/cpeq/infolettre-automatique/pkg/logger"
)

// withRetry runs fn with exponential backoff (1s, 2s, 4s, ...) on retryable
// errors. Non-retryable errors abort immediately.
func withRetry[T any](ctx context.Context, maxRetries int, op string, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			logger.Debug("retrying OpenAI request",
				zap.String("op", op),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return zero, fmt.Errorf("context canceled during retry backoff: %w", ctx.Err())
			}
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryableError(err) {
			logger.Warn("non-retryable OpenAI error, aborting",
				zap.String("op", op),
				zap.Error(err),
			)
			return zero, err
		}

		logger.Warn("retryable OpenAI error",
			zap.String("op", op),
			zap.Error(err),
			zap.Int("attempt", attempt+1),
		)
	}

	return zero, fmt.Errorf("max retries (%d) exceeded: %w", maxRetries, lastErr)
}

// isRetryableError checks whether an error should trigger a retry.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests ||
			apiErr.HTTPStatusCode >= 500
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "429"), strings.Contains(errStr, "rate limit"):
		return true
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return true
	case strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "connection reset"):
		return true
	case strings.Contains(errStr, "500"), strings.Contains(errStr, "502"), strings.Contains(errStr, "503"):
		return true
	}
	return false
}
