package classifier

import (
	"context"

	"github.com/cpeq/infolettre-automatique/pkg/models"
)

// MaxScore scores each label by the best hybrid-search score among retrieved
// reference articles carrying it.
type MaxScore struct {
	retriever Retriever
}

// NewMaxScore creates a max-of-retrieved-scores strategy.
func NewMaxScore(retriever Retriever) *MaxScore {
	return &MaxScore{retriever: retriever}
}

func (s *MaxScore) Name() string { return "max-score" }

func (s *MaxScore) PredictScores(ctx context.Context, news models.News, embedding []float32, ids []string) (Scores, error) {
	retrieved, err := s.retriever.Search(ctx, news, models.VectorTitleContent, ids)
	if err != nil {
		return nil, err
	}

	// Labels appear in first-encounter order; only retrieved labels exist,
	// absent labels are absent rather than zero.
	var scores Scores
	index := make(map[string]int)
	for _, item := range retrieved {
		if item.Rubric == "" {
			continue
		}
		label := string(item.Rubric)
		if i, ok := index[label]; ok {
			if item.Score > scores[i].Score {
				scores[i].Score = item.Score
			}
			continue
		}
		index[label] = len(scores)
		scores = append(scores, LabelScore{Label: label, Score: item.Score})
	}

	return scores, nil
}

// MaxMeanScore scores each label by the mean hybrid-search score across all
// retrieved reference articles carrying it.
type MaxMeanScore struct {
	retriever Retriever
}

// NewMaxMeanScore creates a mean-of-retrieved-scores strategy.
func NewMaxMeanScore(retriever Retriever) *MaxMeanScore {
	return &MaxMeanScore{retriever: retriever}
}

func (s *MaxMeanScore) Name() string { return "max-mean-score" }

func (s *MaxMeanScore) PredictScores(ctx context.Context, news models.News, embedding []float32, ids []string) (Scores, error) {
	retrieved, err := s.retriever.Search(ctx, news, models.VectorTitleContent, ids)
	if err != nil {
		return nil, err
	}

	var order []string
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, item := range retrieved {
		if item.Rubric == "" {
			continue
		}
		label := string(item.Rubric)
		if _, ok := counts[label]; !ok {
			order = append(order, label)
		}
		sums[label] += item.Score
		counts[label]++
	}

	scores := make(Scores, 0, len(order))
	for _, label := range order {
		scores = append(scores, LabelScore{
			Label: label,
			Score: sums[label] / float64(counts[label]),
		})
	}

	return scores, nil
}
