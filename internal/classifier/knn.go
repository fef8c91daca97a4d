package classifier

import (
	"context"
	"sort"

	"github.com/cpeq/infolettre-automatique/internal/vectorstore"
	"github.com/cpeq/infolettre-automatique/pkg/models"
)

// KNN scores each label by the fraction of the k nearest reference articles
// (cosine distance) carrying it.
type KNN struct {
	retriever Retriever
	neighbors int

	samples []models.TrainingSample
	labels  []string
}

// NewKNN creates an unfitted k-nearest-neighbors strategy.
func NewKNN(retriever Retriever, neighbors int) *KNN {
	if neighbors <= 0 {
		neighbors = 4
	}
	return &KNN{retriever: retriever, neighbors: neighbors}
}

func (s *KNN) Name() string { return "knn" }

// Fit memorizes the training samples and the sorted label universe.
func (s *KNN) Fit(samples []models.TrainingSample) error {
	if len(samples) == 0 {
		return ErrNotSetup
	}

	s.samples = samples

	seen := make(map[string]struct{})
	s.labels = s.labels[:0]
	for _, sample := range samples {
		if _, ok := seen[sample.Label]; !ok {
			seen[sample.Label] = struct{}{}
			s.labels = append(s.labels, sample.Label)
		}
	}
	sort.Strings(s.labels)

	return nil
}

func (s *KNN) PredictScores(ctx context.Context, news models.News, embedding []float32, ids []string) (Scores, error) {
	if len(s.samples) == 0 {
		return nil, ErrNotSetup
	}

	if embedding == nil {
		var err error
		embedding, err = s.retriever.Embed(ctx, vectorstore.CreateQuery(news, models.VectorTitleContent))
		if err != nil {
			return nil, err
		}
	}

	vector := toFloat64(embedding)

	type neighbor struct {
		label    string
		distance float64
	}
	neighbors := make([]neighbor, 0, len(s.samples))
	for _, sample := range s.samples {
		neighbors = append(neighbors, neighbor{
			label:    sample.Label,
			distance: 1 - cosineSimilarity(vector, toFloat64(sample.Embedding)),
		})
	}
	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].distance < neighbors[j].distance
	})

	k := s.neighbors
	if k > len(neighbors) {
		k = len(neighbors)
	}

	votes := make(map[string]int)
	for _, n := range neighbors[:k] {
		votes[n.label]++
	}

	// Every known label gets a probability, zero when unvoted.
	scores := make(Scores, 0, len(s.labels))
	for _, label := range s.labels {
		scores = append(scores, LabelScore{
			Label: label,
			Score: float64(votes[label]) / float64(k),
		})
	}

	return scores, nil
}
