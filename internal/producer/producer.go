// Package producer composes classification and summarization into the
// per-article transform of the pipeline.
package producer

import (
	"context"
	"fmt"
	"time"

	"github.com/cpeq/infolettre-automatique/internal/classifier"
	"github.com/cpeq/infolettre-automatique/internal/summary"
	"github.com/cpeq/infolettre-automatique/pkg/metrics"
	"github.com/cpeq/infolettre-automatique/pkg/models"
)

// Retriever fetches exemplar reference articles for summarization.
type Retriever interface {
	SimilarNews(ctx context.Context, news models.News, vectorName string, ids []string) ([]models.News, error)
}

// Producer turns a relevant raw article into a summarized, rubric-tagged
// one.
type Producer struct {
	rubrics   *classifier.RubricClassifier
	generator *summary.Generator
	retriever Retriever
	metrics   metrics.Buffer
}

// New creates a news producer. metricsBuffer may be nil.
func New(rubrics *classifier.RubricClassifier, generator *summary.Generator, retriever Retriever, metricsBuffer metrics.Buffer) *Producer {
	return &Producer{
		rubrics:   rubrics,
		generator: generator,
		retriever: retriever,
		metrics:   metricsBuffer,
	}
}

// Produce classifies the article's rubric, then summarizes it using similar
// reference articles as exemplars. The input is returned enriched; raw
// fields are untouched.
func (p *Producer) Produce(ctx context.Context, news models.News) (models.News, error) {
	rubric, err := p.rubrics.Predict(ctx, news, nil, nil)
	if err != nil {
		return news, fmt.Errorf("failed to classify %q: %w", news.Title, err)
	}
	news.Rubric = rubric

	exemplars, err := p.retriever.SimilarNews(ctx, news, models.VectorTitleContent, nil)
	if err != nil {
		return news, fmt.Errorf("failed to retrieve exemplars for %q: %w", news.Title, err)
	}

	generated, err := p.generator.Generate(ctx, news, exemplars)
	if err != nil {
		return news, fmt.Errorf("failed to summarize %q: %w", news.Title, err)
	}
	news.Summary = generated

	if p.metrics != nil {
		_ = p.metrics.Add(&metrics.ClassificationMetric{
			Timestamp: time.Now(),
			NewsID:    news.ID().String(),
			JobID:     news.JobID,
			Strategy:  p.rubrics.StrategyName(),
			Rubric:    string(rubric),
		})
	}

	return news, nil
}
