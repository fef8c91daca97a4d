package classifier

import (
	"context"

	"github.com/cpeq/infolettre-automatique/pkg/models"
)

// RelevancyClassifier derives a binary relevant/irrelevant decision from the
// rubric probability of the catch-all label. It is not an independently
// trained classifier.
type RelevancyClassifier struct {
	strategy  Strategy
	threshold float64
}

// NewRelevancyClassifier wraps a strategy with an irrelevance threshold.
// Lower thresholds let more articles through.
func NewRelevancyClassifier(strategy Strategy, threshold float64) *RelevancyClassifier {
	return &RelevancyClassifier{strategy: strategy, threshold: threshold}
}

// PredictProbs computes the {Pertinent, Autre} probabilities, highest first.
func (c *RelevancyClassifier) PredictProbs(ctx context.Context, news models.News, embedding []float32, ids []string) (Scores, error) {
	probs, err := PredictProbs(ctx, c.strategy, news, embedding, ids)
	if err != nil {
		return nil, err
	}

	// A missing Autre entry means nothing retrieved looked irrelevant.
	irrelevant, _ := probs.Get(string(models.RubricAutre))
	relevant := 1.0 - irrelevant

	scores := Scores{
		{Label: string(models.RelevancePertinent), Score: relevant},
		{Label: string(models.RelevanceAutre), Score: irrelevant},
	}
	scores.sortDescending()
	return scores, nil
}

// Predict classifies the news as Autre when the irrelevance probability
// reaches the threshold. The boundary is inclusive: probability equal to the
// threshold classifies Autre.
func (c *RelevancyClassifier) Predict(ctx context.Context, news models.News, embedding []float32, ids []string) (models.Relevance, error) {
	probs, err := c.PredictProbs(ctx, news, embedding, ids)
	if err != nil {
		return "", err
	}

	irrelevant, _ := probs.Get(string(models.RelevanceAutre))
	if irrelevant >= c.threshold {
		return models.RelevanceAutre, nil
	}
	return models.RelevancePertinent, nil
}
