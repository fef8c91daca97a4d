package classifier

import (
	"context"
	"math"
	"sort"

	"github.com/cpeq/infolettre-automatique/internal/vectorstore"
	"github.com/cpeq/infolettre-automatique/pkg/models"
)

// Centroid scores each label by cosine similarity between the news embedding
// and the mean embedding of that label's reference articles.
type Centroid struct {
	retriever Retriever
	labels    []string
	centroids map[string][]float64
}

// NewCentroid creates an unfitted centroid strategy.
func NewCentroid(retriever Retriever) *Centroid {
	return &Centroid{retriever: retriever}
}

func (s *Centroid) Name() string { return "centroid" }

// Fit computes one mean embedding per label from the corpus.
func (s *Centroid) Fit(samples []models.TrainingSample) error {
	if len(samples) == 0 {
		return ErrNotSetup
	}

	sums := make(map[string][]float64)
	counts := make(map[string]int)
	for _, sample := range samples {
		sum, ok := sums[sample.Label]
		if !ok {
			sum = make([]float64, len(sample.Embedding))
			sums[sample.Label] = sum
		}
		for i, v := range sample.Embedding {
			sum[i] += float64(v)
		}
		counts[sample.Label]++
	}

	s.centroids = make(map[string][]float64, len(sums))
	s.labels = make([]string, 0, len(sums))
	for label, sum := range sums {
		centroid := make([]float64, len(sum))
		for i, v := range sum {
			centroid[i] = v / float64(counts[label])
		}
		s.centroids[label] = centroid
		s.labels = append(s.labels, label)
	}
	sort.Strings(s.labels)

	return nil
}

func (s *Centroid) PredictScores(ctx context.Context, news models.News, embedding []float32, ids []string) (Scores, error) {
	if len(s.centroids) == 0 {
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
	scores := make(Scores, 0, len(s.labels))
	for _, label := range s.labels {
		scores = append(scores, LabelScore{
			Label: label,
			Score: cosineSimilarity(vector, s.centroids[label]),
		})
	}

	return scores, nil
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// cosineSimilarity of two vectors; zero vectors yield 0.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
