package classifier

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/cpeq/infolettre-automatique/pkg/models"
)

type fakeRetriever struct {
	results []models.ScoredNews
	samples []models.TrainingSample
}

func (f *fakeRetriever) Search(ctx context.Context, news models.News, vectorName string, ids []string) ([]models.ScoredNews, error) {
	return f.results, nil
}

func (f *fakeRetriever) TrainingSet(ctx context.Context, vectorName string) ([]models.TrainingSample, error) {
	return f.samples, nil
}

func (f *fakeRetriever) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

// stubStrategy returns canned raw scores.
type stubStrategy struct {
	scores Scores
}

func (s *stubStrategy) Name() string { return "stub" }

func (s *stubStrategy) PredictScores(ctx context.Context, news models.News, embedding []float32, ids []string) (Scores, error) {
	out := make(Scores, len(s.scores))
	copy(out, s.scores)
	return out, nil
}

func retrieved(rubric models.Rubric, score float64) models.ScoredNews {
	return models.ScoredNews{
		News:  models.News{Title: "ref", Rubric: rubric},
		Score: score,
	}
}

func TestPredictProbsNormalizesAndPreservesRanking(t *testing.T) {
	strategy := &stubStrategy{scores: Scores{
		{Label: "B", Score: 0.2},
		{Label: "A", Score: 0.9},
		{Label: "C", Score: 0.5},
	}}

	probs, err := PredictProbs(context.Background(), strategy, models.News{Title: "t"}, nil, nil)
	if err != nil {
		t.Fatalf("PredictProbs returned error: %v", err)
	}

	if len(probs) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(probs))
	}

	// Entries ranked by descending raw score, softmax must not reorder.
	wantOrder := []string{"A", "C", "B"}
	for i, want := range wantOrder {
		if probs[i].Label != want {
			t.Errorf("position %d: expected %q, got %q", i, want, probs[i].Label)
		}
	}
	for i := 1; i < len(probs); i++ {
		if probs[i].Score > probs[i-1].Score {
			t.Error("probabilities not in descending order")
		}
	}

	var sum float64
	for _, p := range probs {
		sum += p.Score
	}
	if math.Abs(sum-1.0) > 1e-6 {
		t.Errorf("probabilities sum to %v, expected 1.0", sum)
	}
}

func TestPredictProbsEmptyDefaultsToAutre(t *testing.T) {
	strategy := &stubStrategy{scores: nil}

	probs, err := PredictProbs(context.Background(), strategy, models.News{Title: "t"}, nil, nil)
	if err != nil {
		t.Fatalf("PredictProbs returned error: %v", err)
	}

	if len(probs) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(probs))
	}
	if probs[0].Label != string(models.RubricAutre) || probs[0].Score != 1.0 {
		t.Errorf("expected {Autre: 1.0}, got {%s: %v}", probs[0].Label, probs[0].Score)
	}
}

func TestMaxScoreKeepsBestScorePerLabel(t *testing.T) {
	strategy := NewMaxScore(&fakeRetriever{results: []models.ScoredNews{
		retrieved(models.RubricEau, 0.8),
		retrieved(models.RubricEnergie, 0.7),
		retrieved(models.RubricEau, 0.9),
	}})

	scores, err := strategy.PredictScores(context.Background(), models.News{Title: "t"}, nil, nil)
	if err != nil {
		t.Fatalf("PredictScores returned error: %v", err)
	}

	if len(scores) != 2 {
		t.Fatalf("expected 2 labels, got %d", len(scores))
	}
	// First-encounter order.
	if scores[0].Label != string(models.RubricEau) || scores[1].Label != string(models.RubricEnergie) {
		t.Errorf("labels not in first-encounter order: %v", scores)
	}
	if eau, _ := scores.Get(string(models.RubricEau)); eau != 0.9 {
		t.Errorf("expected max score 0.9 for Eau, got %v", eau)
	}
}

func TestMaxMeanScoreAveragesPerLabel(t *testing.T) {
	strategy := NewMaxMeanScore(&fakeRetriever{results: []models.ScoredNews{
		retrieved(models.RubricEau, 0.8),
		retrieved(models.RubricEau, 0.4),
		retrieved(models.RubricEnergie, 0.7),
	}})

	scores, err := strategy.PredictScores(context.Background(), models.News{Title: "t"}, nil, nil)
	if err != nil {
		t.Fatalf("PredictScores returned error: %v", err)
	}

	eau, _ := scores.Get(string(models.RubricEau))
	if math.Abs(eau-0.6) > 1e-9 {
		t.Errorf("expected mean 0.6 for Eau, got %v", eau)
	}

	// A label with no retrieved item is absent, not zero.
	if _, ok := scores.Get(string(models.RubricForets)); ok {
		t.Error("unretrieved label should be absent from scores")
	}
}

func TestMaxMeanScoreEmptyRetrievalYieldsAutreProb(t *testing.T) {
	strategy := NewMaxMeanScore(&fakeRetriever{})

	probs, err := PredictProbs(context.Background(), strategy, models.News{Title: "t"}, nil, nil)
	if err != nil {
		t.Fatalf("PredictProbs returned error: %v", err)
	}
	if len(probs) != 1 || probs[0].Label != string(models.RubricAutre) || probs[0].Score != 1.0 {
		t.Errorf("expected {Autre: 1.0}, got %v", probs)
	}
}

func trainingSamples() []models.TrainingSample {
	return []models.TrainingSample{
		{Label: "Eau et domaine hydrique", Embedding: []float32{1, 0, 0}},
		{Label: "Eau et domaine hydrique", Embedding: []float32{0.9, 0.1, 0}},
		{Label: "Énergie", Embedding: []float32{0, 1, 0}},
		{Label: "Énergie", Embedding: []float32{0.1, 0.9, 0}},
	}
}

func TestCentroidRequiresFit(t *testing.T) {
	strategy := NewCentroid(&fakeRetriever{})
	if _, err := strategy.PredictScores(context.Background(), models.News{Title: "t"}, []float32{1, 0, 0}, nil); !errors.Is(err, ErrNotSetup) {
		t.Errorf("expected ErrNotSetup before fit, got %v", err)
	}
}

func TestCentroidScoresBySimilarityToLabelMean(t *testing.T) {
	strategy := NewCentroid(&fakeRetriever{})
	if err := strategy.Fit(trainingSamples()); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}

	scores, err := strategy.PredictScores(context.Background(), models.News{Title: "t"}, []float32{1, 0, 0}, nil)
	if err != nil {
		t.Fatalf("PredictScores returned error: %v", err)
	}

	eau, _ := scores.Get("Eau et domaine hydrique")
	energie, _ := scores.Get("Énergie")
	if eau <= energie {
		t.Errorf("expected Eau centroid closer than Énergie: %v <= %v", eau, energie)
	}

	// An embedding equal to a label centroid has similarity 1.
	self, err := strategy.PredictScores(context.Background(), models.News{Title: "t"}, []float32{0.95, 0.05, 0}, nil)
	if err != nil {
		t.Fatalf("PredictScores returned error: %v", err)
	}
	best, _ := self.Get("Eau et domaine hydrique")
	if math.Abs(best-1.0) > 1e-9 {
		t.Errorf("expected self-similarity 1.0, got %v", best)
	}
}

func TestKNNVoteFractions(t *testing.T) {
	strategy := NewKNN(&fakeRetriever{}, 3)
	if err := strategy.Fit(trainingSamples()); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}

	scores, err := strategy.PredictScores(context.Background(), models.News{Title: "t"}, []float32{1, 0, 0}, nil)
	if err != nil {
		t.Fatalf("PredictScores returned error: %v", err)
	}

	// The 3 nearest of the query are both Eau samples and one Énergie.
	eau, _ := scores.Get("Eau et domaine hydrique")
	energie, _ := scores.Get("Énergie")
	if math.Abs(eau-2.0/3.0) > 1e-9 {
		t.Errorf("expected Eau vote fraction 2/3, got %v", eau)
	}
	if math.Abs(energie-1.0/3.0) > 1e-9 {
		t.Errorf("expected Énergie vote fraction 1/3, got %v", energie)
	}

	var sum float64
	for _, s := range scores {
		sum += s.Score
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("vote fractions sum to %v, expected 1.0", sum)
	}
}

func TestRandomForestSeparatesClasses(t *testing.T) {
	strategy := NewRandomForest(&fakeRetriever{}, 20)
	if err := strategy.Fit(trainingSamples()); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}

	scores, err := strategy.PredictScores(context.Background(), models.News{Title: "t"}, []float32{0.95, 0.05, 0}, nil)
	if err != nil {
		t.Fatalf("PredictScores returned error: %v", err)
	}

	eau, _ := scores.Get("Eau et domaine hydrique")
	energie, _ := scores.Get("Énergie")
	if eau <= energie {
		t.Errorf("forest failed to separate classes: Eau %v <= Énergie %v", eau, energie)
	}
}

func TestRandomForestRequiresFit(t *testing.T) {
	strategy := NewRandomForest(&fakeRetriever{}, 5)
	if _, err := strategy.PredictScores(context.Background(), models.News{Title: "t"}, []float32{1, 0, 0}, nil); !errors.Is(err, ErrNotSetup) {
		t.Errorf("expected ErrNotSetup before fit, got %v", err)
	}
}

func TestRubricClassifierPredictsTopLabel(t *testing.T) {
	strategy := &stubStrategy{scores: Scores{
		{Label: string(models.RubricEau), Score: 0.9},
		{Label: string(models.RubricEnergie), Score: 0.3},
	}}
	c := NewRubricClassifier(strategy)

	rubric, err := c.Predict(context.Background(), models.News{Title: "t"}, nil, nil)
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if rubric != models.RubricEau {
		t.Errorf("expected %q, got %q", models.RubricEau, rubric)
	}
}

func TestRubricClassifierRejectsUnknownLabel(t *testing.T) {
	strategy := &stubStrategy{scores: Scores{
		{Label: "Rubrique disparue", Score: 0.9},
	}}
	c := NewRubricClassifier(strategy)

	if _, err := c.Predict(context.Background(), models.News{Title: "t"}, nil, nil); !errors.Is(err, ErrInvalidLabel) {
		t.Errorf("expected ErrInvalidLabel, got %v", err)
	}
}

func TestRelevancyClassifierThresholdInclusive(t *testing.T) {
	// Two labels with equal raw scores softmax to 0.5 each.
	strategy := &stubStrategy{scores: Scores{
		{Label: string(models.RubricEau), Score: 1.0},
		{Label: string(models.RubricAutre), Score: 1.0},
	}}

	atBoundary := NewRelevancyClassifier(strategy, 0.5)
	relevance, err := atBoundary.Predict(context.Background(), models.News{Title: "t"}, nil, nil)
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if relevance != models.RelevanceAutre {
		t.Errorf("probability equal to threshold must classify Autre, got %q", relevance)
	}

	aboveBoundary := NewRelevancyClassifier(strategy, 0.51)
	relevance, err = aboveBoundary.Predict(context.Background(), models.News{Title: "t"}, nil, nil)
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if relevance != models.RelevancePertinent {
		t.Errorf("probability below threshold must classify Pertinent, got %q", relevance)
	}
}

func TestRelevancyClassifierMissingAutreMeansRelevant(t *testing.T) {
	strategy := &stubStrategy{scores: Scores{
		{Label: string(models.RubricEau), Score: 1.0},
	}}
	c := NewRelevancyClassifier(strategy, 0.4)

	probs, err := c.PredictProbs(context.Background(), models.News{Title: "t"}, nil, nil)
	if err != nil {
		t.Fatalf("PredictProbs returned error: %v", err)
	}

	relevant, _ := probs.Get(string(models.RelevancePertinent))
	if relevant != 1.0 {
		t.Errorf("expected relevant probability 1.0 without Autre retrievals, got %v", relevant)
	}

	relevance, err := c.Predict(context.Background(), models.News{Title: "t"}, nil, nil)
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if relevance != models.RelevancePertinent {
		t.Errorf("expected Pertinent, got %q", relevance)
	}
}
