package producer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cpeq/infolettre-automatique/internal/classifier"
	"github.com/cpeq/infolettre-automatique/internal/summary"
	"github.com/cpeq/infolettre-automatique/pkg/metrics"
	"github.com/cpeq/infolettre-automatique/pkg/models"
	"github.com/cpeq/infolettre-automatique/pkg/templates"
)

type stubStrategy struct {
	scores classifier.Scores
	err    error
}

func (s *stubStrategy) Name() string { return "stub" }

func (s *stubStrategy) PredictScores(ctx context.Context, news models.News, embedding []float32, ids []string) (classifier.Scores, error) {
	return s.scores, s.err
}

type fakeRetriever struct {
	exemplars  []models.News
	err        error
	calls      int
	lastVector string
}

func (f *fakeRetriever) SimilarNews(ctx context.Context, news models.News, vectorName string, ids []string) ([]models.News, error) {
	f.calls++
	f.lastVector = vectorName
	return f.exemplars, f.err
}

type fakeCompletion struct{}

func (f *fakeCompletion) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	return "Résumé produit.", nil
}

type fakeBuffer struct {
	added []metrics.Metric
}

func (f *fakeBuffer) Add(m metrics.Metric) error { f.added = append(f.added, m); return nil }
func (f *fakeBuffer) Flush(ctx context.Context) error { return nil }
func (f *fakeBuffer) Size() int { return len(f.added) }
func (f *fakeBuffer) Close(ctx context.Context) error { return nil }

func newTestProducer(t *testing.T, strategy classifier.Strategy, retriever Retriever, buffer metrics.Buffer) *Producer {
	t.Helper()
	renderer, err := templates.NewManager()
	if err != nil {
		t.Fatalf("failed to load default templates: %v", err)
	}
	return New(
		classifier.NewRubricClassifier(strategy),
		summary.NewGenerator(&fakeCompletion{}, renderer),
		retriever,
		buffer,
	)
}

func TestProduceEnrichesNews(t *testing.T) {
	strategy := &stubStrategy{scores: classifier.Scores{
		{Label: "Eau et domaine hydrique", Score: 0.9},
		{Label: "Énergie", Score: 0.2},
	}}
	retriever := &fakeRetriever{exemplars: []models.News{
		{Content: "Contenu de référence", Summary: "Résumé de référence"},
	}}
	buffer := &fakeBuffer{}
	producer := newTestProducer(t, strategy, retriever, buffer)

	datetime := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)
	input := models.News{
		Title:    "Nouvelle règlementation sur l'eau",
		Content:  "Le gouvernement annonce...",
		Link:     "https://example.org/eau",
		Datetime: &datetime,
		JobID:    "42",
	}

	produced, err := producer.Produce(context.Background(), input)
	if err != nil {
		t.Fatalf("Produce returned error: %v", err)
	}

	if produced.Rubric != models.RubricEau {
		t.Errorf("expected rubric %q, got %q", models.RubricEau, produced.Rubric)
	}
	if produced.Summary != "Résumé produit." {
		t.Errorf("unexpected summary: %q", produced.Summary)
	}
	if produced.Title != input.Title || produced.Content != input.Content ||
		produced.Link != input.Link || produced.Datetime != input.Datetime ||
		produced.JobID != input.JobID {
		t.Error("raw fields must not change during production")
	}
	if retriever.lastVector != models.VectorTitleContent {
		t.Errorf("exemplars retrieved with vector %q, want %q", retriever.lastVector, models.VectorTitleContent)
	}

	if len(buffer.added) != 1 {
		t.Fatalf("expected 1 classification metric, got %d", len(buffer.added))
	}
	metric, ok := buffer.added[0].(*metrics.ClassificationMetric)
	if !ok {
		t.Fatalf("unexpected metric type %T", buffer.added[0])
	}
	if metric.Rubric != string(models.RubricEau) || metric.Strategy != "stub" || metric.JobID != "42" {
		t.Errorf("metric fields wrong: %+v", metric)
	}
	if metric.NewsID != input.ID().String() {
		t.Errorf("metric news id %q, want %q", metric.NewsID, input.ID().String())
	}
}

func TestProduceClassificationFailureLeavesNewsUntouched(t *testing.T) {
	strategy := &stubStrategy{err: errors.New("retrieval down")}
	retriever := &fakeRetriever{}
	producer := newTestProducer(t, strategy, retriever, nil)

	produced, err := producer.Produce(context.Background(), models.News{Title: "Titre"})
	if err == nil {
		t.Fatal("expected classification error")
	}
	if produced.Rubric != "" || produced.Summary != "" {
		t.Errorf("news must stay unenriched on classification failure: %+v", produced)
	}
	if retriever.calls != 0 {
		t.Error("exemplar retrieval must not run when classification fails")
	}
}

func TestProduceUnknownLabel(t *testing.T) {
	strategy := &stubStrategy{scores: classifier.Scores{{Label: "Cryptomonnaies", Score: 1.0}}}
	producer := newTestProducer(t, strategy, &fakeRetriever{}, nil)

	if _, err := producer.Produce(context.Background(), models.News{Title: "Titre"}); !errors.Is(err, classifier.ErrInvalidLabel) {
		t.Errorf("expected ErrInvalidLabel, got %v", err)
	}
}

func TestProduceSummaryFailureKeepsRubric(t *testing.T) {
	strategy := &stubStrategy{scores: classifier.Scores{{Label: string(models.RubricEnergie), Score: 1.0}}}
	// No usable exemplars: the generator refuses to prompt.
	retriever := &fakeRetriever{exemplars: []models.News{{Content: "Sans résumé"}}}
	producer := newTestProducer(t, strategy, retriever, nil)

	produced, err := producer.Produce(context.Background(), models.News{Title: "Titre", Content: "Contenu"})
	if !errors.Is(err, summary.ErrNoExemplars) {
		t.Fatalf("expected ErrNoExemplars, got %v", err)
	}
	if produced.Rubric != models.RubricEnergie {
		t.Errorf("rubric assigned before summarization must survive the error, got %q", produced.Rubric)
	}
	if produced.Summary != "" {
		t.Errorf("summary must stay empty on failure, got %q", produced.Summary)
	}
}
