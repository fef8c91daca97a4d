package classifier

import (
	"context"
	"fmt"

	"github.com/cpeq/infolettre-automatique/pkg/models"
)

// RubricClassifier assigns a single rubric to a news item using whatever
// strategy it wraps.
type RubricClassifier struct {
	strategy Strategy
}

// NewRubricClassifier wraps a strategy.
func NewRubricClassifier(strategy Strategy) *RubricClassifier {
	return &RubricClassifier{strategy: strategy}
}

// StrategyName reports the wrapped strategy, for metrics.
func (c *RubricClassifier) StrategyName() string {
	return c.strategy.Name()
}

// PredictProbs returns the rubric probability ranking.
func (c *RubricClassifier) PredictProbs(ctx context.Context, news models.News, embedding []float32, ids []string) (Scores, error) {
	return PredictProbs(ctx, c.strategy, news, embedding, ids)
}

// Predict returns the top-ranked rubric. The label universe comes from the
// corpus, which can diverge from the enumeration when the corpus is stale;
// an unknown top label fails with ErrInvalidLabel rather than passing
// through.
func (c *RubricClassifier) Predict(ctx context.Context, news models.News, embedding []float32, ids []string) (models.Rubric, error) {
	probs, err := c.PredictProbs(ctx, news, embedding, ids)
	if err != nil {
		return "", err
	}

	top, ok := probs.Top()
	if !ok {
		return "", fmt.Errorf("%w: empty probability ranking", ErrInvalidLabel)
	}

	rubric, ok := models.ParseRubric(top.Label)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidLabel, top.Label)
	}
	return rubric, nil
}
