// Package vectorstore retrieves reference news similar to an incoming
// article. It sits between the classifier and the Weaviate adapter: queries
// are built from the news text, embedded, then run as hybrid searches
// against one of the named vector spaces.
package vectorstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cpeq/infolettre-automatique/internal/adapters/config"
	"github.com/cpeq/infolettre-automatique/pkg/logger"
	"github.com/cpeq/infolettre-automatique/pkg/models"
)

// SearchClient is the vector database surface the store needs.
type SearchClient interface {
	Count(ctx context.Context) (int, error)
	HybridSearch(ctx context.Context, query string, vector []float32, targetVector string, alpha float64, limit int, ids []string) ([]models.ScoredNews, error)
	ObjectsWithVectors(ctx context.Context) ([]models.ReferenceNews, error)
}

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Vectorstore searches the reference corpus.
type Vectorstore struct {
	search   SearchClient
	embedder Embedder
	cfg      *config.VectorstoreConfig
}

// New creates a vectorstore.
func New(search SearchClient, embedder Embedder, cfg *config.VectorstoreConfig) *Vectorstore {
	return &Vectorstore{search: search, embedder: embedder, cfg: cfg}
}

// CreateQuery builds the retrieval query for a news item. The text depends
// on the target vector space: summaries for the title+summary space, full
// content otherwise.
func CreateQuery(news models.News, vectorName string) string {
	if vectorName == models.VectorTitleSummary {
		return fmt.Sprintf("%s %s", news.Title, news.Summary)
	}
	return fmt.Sprintf("%s %s", news.Title, news.Content)
}

// Search retrieves reference news similar to the given news, with their
// hybrid scores in descending order. Results at or below the minimal score
// are dropped. An empty corpus yields no results and no error.
func (v *Vectorstore) Search(ctx context.Context, news models.News, vectorName string, ids []string) ([]models.ScoredNews, error) {
	count, err := v.search.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count reference corpus: %w", err)
	}
	if count == 0 {
		logger.Warn("reference corpus is empty, search yields nothing")
		return nil, nil
	}

	limit := v.cfg.MaxResults
	if count < limit {
		limit = count
	}

	query := CreateQuery(news, vectorName)
	vector, err := v.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	scored, err := v.search.HybridSearch(ctx, query, vector, vectorName, v.cfg.HybridWeight, limit, ids)
	if err != nil {
		return nil, err
	}

	results := make([]models.ScoredNews, 0, len(scored))
	for _, item := range scored {
		if item.Score > v.cfg.MinimalScore {
			results = append(results, item)
		}
	}

	logger.Debug("reference search completed",
		zap.String("title", news.Title),
		zap.String("vector", vectorName),
		zap.Int("retrieved", len(scored)),
		zap.Int("kept", len(results)),
	)
	return results, nil
}

// SimilarNews retrieves similar reference news without scores, preserving
// the retrieval order.
func (v *Vectorstore) SimilarNews(ctx context.Context, news models.News, vectorName string, ids []string) ([]models.News, error) {
	scored, err := v.Search(ctx, news, vectorName, ids)
	if err != nil {
		return nil, err
	}

	similar := make([]models.News, 0, len(scored))
	for _, item := range scored {
		similar = append(similar, item.News)
	}
	return similar, nil
}

// TrainingSet extracts labeled embeddings from the whole reference corpus
// for the strategies that need fitting.
func (v *Vectorstore) TrainingSet(ctx context.Context, vectorName string) ([]models.TrainingSample, error) {
	references, err := v.search.ObjectsWithVectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference corpus: %w", err)
	}

	samples := make([]models.TrainingSample, 0, len(references))
	for _, ref := range references {
		vector, ok := ref.Vectors[vectorName]
		if !ok || len(vector) == 0 {
			logger.Warn("reference news missing vector, skipping",
				zap.String("title", ref.Title),
				zap.String("vector", vectorName),
			)
			continue
		}
		samples = append(samples, models.TrainingSample{
			Label:     string(ref.Rubric),
			Embedding: vector,
		})
	}

	return samples, nil
}

// Embed exposes the underlying embedder for callers that need raw vectors.
func (v *Vectorstore) Embed(ctx context.Context, text string) ([]float32, error) {
	return v.embedder.Embed(ctx, text)
}
