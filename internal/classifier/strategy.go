package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/cpeq/infolettre-automatique/internal/adapters/config"
	"github.com/cpeq/infolettre-automatique/pkg/models"
)

var (
	// ErrInvalidLabel is returned when a corpus label does not map back
	// into the rubric enumeration.
	ErrInvalidLabel = errors.New("label does not map to a known rubric")

	// ErrNotSetup is returned when a trained strategy is used before Fit.
	ErrNotSetup = errors.New("strategy has not been fitted")

	// ErrUnknownStrategy is returned for an unrecognized strategy name.
	ErrUnknownStrategy = errors.New("unknown classification strategy")
)

// Retriever is the vectorstore surface strategies depend on.
type Retriever interface {
	Search(ctx context.Context, news models.News, vectorName string, ids []string) ([]models.ScoredNews, error)
	TrainingSet(ctx context.Context, vectorName string) ([]models.TrainingSample, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Strategy turns a news item into a label→score mapping. The label space is
// not fixed: the same contract serves rubric and relevance labels.
type Strategy interface {
	Name() string
	// PredictScores returns raw scores per label. embedding may be nil, in
	// which case the strategy embeds the news itself. ids, when non-empty,
	// restricts retrieval to those reference IDs.
	PredictScores(ctx context.Context, news models.News, embedding []float32, ids []string) (Scores, error)
}

// Fittable is implemented by strategies that train on the labeled corpus
// before use.
type Fittable interface {
	Fit(samples []models.TrainingSample) error
}

// PredictProbs ranks a strategy's raw scores and normalizes them into
// probabilities. Entries are ordered by descending raw score and softmax
// preserves that order. An empty score set defaults to {Autre: 1.0}.
func PredictProbs(ctx context.Context, strategy Strategy, news models.News, embedding []float32, ids []string) (Scores, error) {
	scores, err := strategy.PredictScores(ctx, news, embedding, ids)
	if err != nil {
		return nil, err
	}

	if len(scores) == 0 {
		scores = Scores{{Label: string(models.RubricAutre), Score: 1.0}}
	}

	scores.sortDescending()
	scores.softmax()
	return scores, nil
}

// NewStrategy builds the strategy selected by configuration. Trained
// strategies come back unfitted; callers fit them from the corpus at
// startup.
func NewStrategy(cfg *config.ClassifierConfig, retriever Retriever) (Strategy, error) {
	switch cfg.Strategy {
	case "max-score":
		return NewMaxScore(retriever), nil
	case "max-mean-score":
		return NewMaxMeanScore(retriever), nil
	case "centroid":
		return NewCentroid(retriever), nil
	case "knn":
		return NewKNN(retriever, cfg.KNNNeighbors), nil
	case "random-forest":
		return NewRandomForest(retriever, cfg.ForestTrees), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.Strategy)
	}
}
