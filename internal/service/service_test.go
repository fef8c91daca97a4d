package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cpeq/infolettre-automatique/internal/adapters/config"
	"github.com/cpeq/infolettre-automatique/internal/adapters/webscraper"
	"github.com/cpeq/infolettre-automatique/pkg/models"
)

type fakeScraper struct {
	mu       sync.Mutex
	jobs     []webscraper.ScrapingJob
	data     map[string][]models.News
	deleted  []string
	downErrs map[string]error
}

func (f *fakeScraper) GetScrapingJobs(ctx context.Context) ([]webscraper.ScrapingJob, error) {
	return f.jobs, nil
}

func (f *fakeScraper) DownloadJobData(ctx context.Context, jobID string) ([]models.News, error) {
	if err := f.downErrs[jobID]; err != nil {
		return nil, err
	}
	return f.data[jobID], nil
}

func (f *fakeScraper) DeleteScrapingJob(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, jobID)
	return nil
}

// fakeRelevancy classifies titles listed in irrelevant as Autre.
type fakeRelevancy struct {
	mu         sync.Mutex
	irrelevant map[string]bool
	seen       []string
}

func (f *fakeRelevancy) Predict(ctx context.Context, news models.News, embedding []float32, ids []string) (models.Relevance, error) {
	f.mu.Lock()
	f.seen = append(f.seen, news.Title)
	f.mu.Unlock()
	if f.irrelevant[news.Title] {
		return models.RelevanceAutre, nil
	}
	return models.RelevancePertinent, nil
}

type fakeProducer struct {
	mu   sync.Mutex
	seen []string
}

func (f *fakeProducer) Produce(ctx context.Context, news models.News) (models.News, error) {
	f.mu.Lock()
	f.seen = append(f.seen, news.Title)
	f.mu.Unlock()
	news.Rubric = models.RubricEau
	news.Summary = "Résumé de " + news.Title
	return news, nil
}

type fakeNewsStore struct {
	mu    sync.Mutex
	saved []models.News
}

func (f *fakeNewsStore) SaveNews(ctx context.Context, news []models.News) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, news...)
	return nil
}

type fakeIssueStore struct {
	saved []models.Newsletter
}

func (f *fakeIssueStore) SaveNewsletter(ctx context.Context, newsletter models.Newsletter) error {
	f.saved = append(f.saved, newsletter)
	return nil
}

type fakeFileStore struct {
	markdowns int
	csvs      int
}

func (f *fakeFileStore) WriteNewsletterMarkdown(newsletter models.Newsletter) (string, error) {
	f.markdowns++
	return "newsletter.md", nil
}

func (f *fakeFileStore) WriteNewsCSV(news []models.News, publishedAt string) (string, error) {
	f.csvs++
	return "news.csv", nil
}

func ts(t *testing.T, value string) *time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("bad test timestamp %q: %v", value, err)
	}
	return &parsed
}

func pipelineConfig() *config.PipelineConfig {
	return &config.PipelineConfig{
		Timezone:   "America/Montreal",
		DeleteJobs: true,
	}
}

func newTestService(t *testing.T, scraper *fakeScraper, relevancy *fakeRelevancy, producer *fakeProducer, cfg *config.PipelineConfig) (*Service, *fakeNewsStore, *fakeIssueStore, *fakeFileStore) {
	t.Helper()

	newsStore := &fakeNewsStore{}
	issueStore := &fakeIssueStore{}
	fileStore := &fakeFileStore{}

	svc, err := New(scraper, relevancy, producer, newsStore, issueStore, fileStore, cfg, Options{})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	// Tuesday 2024-01-09 resolves the window 2024-01-01 .. 2024-01-08.
	svc.now = func() time.Time {
		return time.Date(2024, 1, 9, 10, 0, 0, 0, svc.location)
	}
	return svc, newsStore, issueStore, fileStore
}

func TestWeeklyWindow(t *testing.T) {
	loc, err := time.LoadLocation("America/Montreal")
	if err != nil {
		t.Fatalf("failed to load timezone: %v", err)
	}

	// Tuesday.
	start, end := WeeklyWindow(time.Date(2024, 1, 9, 15, 30, 0, 0, loc))
	if !start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, loc)) {
		t.Errorf("unexpected start: %v", start)
	}
	if !end.Equal(time.Date(2024, 1, 8, 0, 0, 0, 0, loc)) {
		t.Errorf("unexpected end: %v", end)
	}

	// Monday maps to the week just ended.
	start, end = WeeklyWindow(time.Date(2024, 1, 8, 6, 0, 0, 0, loc))
	if !start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, loc)) || !end.Equal(time.Date(2024, 1, 8, 0, 0, 0, 0, loc)) {
		t.Errorf("unexpected Monday window: %v .. %v", start, end)
	}

	// Sunday still belongs to the previous complete week.
	start, end = WeeklyWindow(time.Date(2024, 1, 7, 23, 0, 0, 0, loc))
	if !start.Equal(time.Date(2023, 12, 25, 0, 0, 0, 0, loc)) || !end.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, loc)) {
		t.Errorf("unexpected Sunday window: %v .. %v", start, end)
	}
}

func TestGenerateNewsletterFiltersAndProduces(t *testing.T) {
	scraper := &fakeScraper{
		jobs: []webscraper.ScrapingJob{{ID: 1}, {ID: 2}},
		data: map[string][]models.News{
			"1": {
				{Title: "Dans la fenêtre", Content: "c", Datetime: ts(t, "2024-01-03T10:00:00Z")},
				{Title: "Sans date", Content: "c"},
				{Title: "Trop vieux", Content: "c", Datetime: ts(t, "2023-12-20T10:00:00Z")},
			},
			"2": {
				{Title: "Pertinent aussi", Content: "c", Datetime: ts(t, "2024-01-05T10:00:00Z")},
				{Title: "Hors sujet", Content: "c", Datetime: ts(t, "2024-01-04T10:00:00Z")},
			},
		},
	}
	relevancy := &fakeRelevancy{irrelevant: map[string]bool{"Hors sujet": true}}
	producer := &fakeProducer{}

	svc, newsStore, issueStore, fileStore := newTestService(t, scraper, relevancy, producer, pipelineConfig())

	newsletter, err := svc.GenerateNewsletter(context.Background(), "manual")
	if err != nil {
		t.Fatalf("GenerateNewsletter returned error: %v", err)
	}

	if len(newsletter.News) != 2 {
		t.Fatalf("expected 2 produced articles, got %d", len(newsletter.News))
	}
	if len(newsStore.saved) != 2 {
		t.Errorf("expected 2 saved articles, got %d", len(newsStore.saved))
	}
	if len(issueStore.saved) != 1 {
		t.Errorf("expected 1 saved newsletter, got %d", len(issueStore.saved))
	}
	if fileStore.markdowns != 1 || fileStore.csvs != 1 {
		t.Errorf("expected 1 markdown and 1 CSV, got %d and %d", fileStore.markdowns, fileStore.csvs)
	}

	// Articles without timestamp or outside the window never reach the
	// relevancy classifier, let alone the producer.
	for _, title := range relevancy.seen {
		if title == "Sans date" || title == "Trop vieux" {
			t.Errorf("article %q should have been dropped before classification", title)
		}
	}
	for _, title := range producer.seen {
		if title == "Hors sujet" {
			t.Error("irrelevant article reached the producer")
		}
	}

	if len(scraper.deleted) != 2 {
		t.Errorf("expected both jobs deleted, got %v", scraper.deleted)
	}

	loc := svc.location
	if !newsletter.StartDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, loc)) {
		t.Errorf("unexpected newsletter start date: %v", newsletter.StartDate)
	}
	if !newsletter.EndDate.Equal(time.Date(2024, 1, 8, 0, 0, 0, 0, loc)) {
		t.Errorf("unexpected newsletter end date: %v", newsletter.EndDate)
	}
}

func TestGenerateNewsletterKeepsJobsWhenConfigured(t *testing.T) {
	scraper := &fakeScraper{
		jobs: []webscraper.ScrapingJob{{ID: 1}},
		data: map[string][]models.News{"1": {}},
	}

	cfg := pipelineConfig()
	cfg.DeleteJobs = false

	svc, _, _, _ := newTestService(t, scraper, &fakeRelevancy{}, &fakeProducer{}, cfg)

	if _, err := svc.GenerateNewsletter(context.Background(), "manual"); err != nil {
		t.Fatalf("GenerateNewsletter returned error: %v", err)
	}
	if len(scraper.deleted) != 0 {
		t.Errorf("jobs should not be deleted when disabled, got %v", scraper.deleted)
	}
}

func TestGenerateNewsletterSkipsFailedJobDownload(t *testing.T) {
	scraper := &fakeScraper{
		jobs: []webscraper.ScrapingJob{{ID: 1}, {ID: 2}},
		data: map[string][]models.News{
			"2": {{Title: "Survivant", Content: "c", Datetime: ts(t, "2024-01-03T10:00:00Z")}},
		},
		downErrs: map[string]error{"1": context.DeadlineExceeded},
	}

	svc, _, _, _ := newTestService(t, scraper, &fakeRelevancy{}, &fakeProducer{}, pipelineConfig())

	newsletter, err := svc.GenerateNewsletter(context.Background(), "manual")
	if err != nil {
		t.Fatalf("a failed job must not abort the run: %v", err)
	}
	if len(newsletter.News) != 1 || newsletter.News[0].Title != "Survivant" {
		t.Errorf("expected the healthy job's article, got %v", newsletter.News)
	}
}

func TestAddNewsProducesAndPersists(t *testing.T) {
	producer := &fakeProducer{}
	svc, newsStore, _, _ := newTestService(t, &fakeScraper{}, &fakeRelevancy{}, producer, pipelineConfig())

	news := models.News{Title: "Ajout manuel", Content: "c", Datetime: ts(t, "2024-01-03T10:00:00Z")}
	produced, err := svc.AddNews(context.Background(), news)
	if err != nil {
		t.Fatalf("AddNews returned error: %v", err)
	}

	if !produced.Summarized() {
		t.Error("added article should come back produced")
	}
	if len(newsStore.saved) != 1 {
		t.Errorf("expected 1 saved article, got %d", len(newsStore.saved))
	}
}

func TestSchedulerTriggerMoment(t *testing.T) {
	svc, _, _, _ := newTestService(t, &fakeScraper{}, &fakeRelevancy{}, &fakeProducer{}, pipelineConfig())
	scheduler := NewScheduler(svc, 1, 6) // Mondays at 06:00

	loc := svc.location

	// Tuesday resolves to the Monday just passed.
	now := time.Date(2024, 1, 9, 10, 0, 0, 0, loc)
	want := time.Date(2024, 1, 8, 6, 0, 0, 0, loc)
	if got := scheduler.triggerMoment(now); !got.Equal(want) {
		t.Errorf("expected trigger %v, got %v", want, got)
	}

	// Monday before 06:00 still belongs to the previous week's trigger.
	now = time.Date(2024, 1, 8, 5, 0, 0, 0, loc)
	want = time.Date(2024, 1, 1, 6, 0, 0, 0, loc)
	if got := scheduler.triggerMoment(now); !got.Equal(want) {
		t.Errorf("expected trigger %v, got %v", want, got)
	}
}
