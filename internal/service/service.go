// Package service is the pipeline orchestrator: it resolves the weekly
// window, fans out one goroutine per scraping job, filters and produces
// articles concurrently, and assembles the newsletter.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cpeq/infolettre-automatique/internal/adapters/config"
	"github.com/cpeq/infolettre-automatique/internal/adapters/redis"
	"github.com/cpeq/infolettre-automatique/internal/adapters/webscraper"
	"github.com/cpeq/infolettre-automatique/pkg/logger"
	"github.com/cpeq/infolettre-automatique/pkg/metrics"
	"github.com/cpeq/infolettre-automatique/pkg/models"
)

// ErrRunInProgress is returned when a generation run is already underway.
var ErrRunInProgress = errors.New("newsletter generation already in progress")

// Scraper is the scraping-job provider surface the service needs.
type Scraper interface {
	GetScrapingJobs(ctx context.Context) ([]webscraper.ScrapingJob, error)
	DownloadJobData(ctx context.Context, jobID string) ([]models.News, error)
	DeleteScrapingJob(ctx context.Context, jobID string) error
}

// RelevancyClassifier decides whether an article belongs in the newsletter.
type RelevancyClassifier interface {
	Predict(ctx context.Context, news models.News, embedding []float32, ids []string) (models.Relevance, error)
}

// Producer runs the per-article classify-then-summarize transform.
type Producer interface {
	Produce(ctx context.Context, news models.News) (models.News, error)
}

// NewsStore persists processed articles.
type NewsStore interface {
	SaveNews(ctx context.Context, news []models.News) error
}

// NewsletterStore persists generated issues.
type NewsletterStore interface {
	SaveNewsletter(ctx context.Context, newsletter models.Newsletter) error
}

// FileStore writes the delivery and audit documents.
type FileStore interface {
	WriteNewsletterMarkdown(newsletter models.Newsletter) (string, error)
	WriteNewsCSV(news []models.News, publishedAt string) (string, error)
}

// Notifier delivers the newsletter to the editors.
type Notifier interface {
	SendNewsletter(newsletter *models.Newsletter) error
}

// Service orchestrates newsletter generation.
type Service struct {
	scraper     Scraper
	relevancy   RelevancyClassifier
	producer    Producer
	newsStore   NewsStore
	issueStore  NewsletterStore
	fileStore   FileStore
	notifier    Notifier
	runLock     redis.RunLock
	metrics     metrics.Buffer
	cfg         *config.PipelineConfig
	location    *time.Location
	now         func() time.Time

	mu      sync.Mutex
	running bool
}

// Options carries the optional collaborators.
type Options struct {
	Notifier Notifier
	RunLock  redis.RunLock
	Metrics  metrics.Buffer
}

// New creates the orchestrator.
func New(
	scraper Scraper,
	relevancy RelevancyClassifier,
	producer Producer,
	newsStore NewsStore,
	issueStore NewsletterStore,
	fileStore FileStore,
	cfg *config.PipelineConfig,
	opts Options,
) (*Service, error) {
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline timezone: %w", err)
	}

	runLock := opts.RunLock
	if runLock == nil {
		runLock = redis.NoopLock{}
	}

	return &Service{
		scraper:    scraper,
		relevancy:  relevancy,
		producer:   producer,
		newsStore:  newsStore,
		issueStore: issueStore,
		fileStore:  fileStore,
		notifier:   opts.Notifier,
		runLock:    runLock,
		metrics:    opts.Metrics,
		cfg:        cfg,
		location:   location,
		now:        time.Now,
	}, nil
}

// jobResult is the outcome of one scraping-job task.
type jobResult struct {
	news       []models.News
	downloaded int
	dropped    int
	failed     int
}

// GenerateNewsletter runs the whole pipeline for the previous Monday-to-
// Monday window and returns the assembled issue. Failures inside a job or an
// article are skipped and logged; the run fails only when nothing usable
// comes out of a hard dependency.
func (s *Service) GenerateNewsletter(ctx context.Context, trigger string) (*models.Newsletter, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrRunInProgress
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	acquired, err := s.runLock.TryAcquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !acquired {
		return nil, ErrRunInProgress
	}
	defer func() {
		if err := s.runLock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to release run lock", zap.Error(err))
		}
	}()

	runStart := s.now().In(s.location)
	start, end := WeeklyWindow(runStart)

	logger.Info("newsletter generation started",
		zap.String("trigger", trigger),
		zap.Time("start_date", start),
		zap.Time("end_date", end),
	)

	jobs, err := s.scraper.GetScrapingJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list scraping jobs: %w", err)
	}

	// One task per job; results flow back over the channel, so cross-job
	// ordering is whatever finishes first.
	results := make(chan jobResult, len(jobs))
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(jobID string) {
			defer wg.Done()
			results <- s.processJob(ctx, jobID, start, end)
		}(strconv.Itoa(job.ID))
	}
	wg.Wait()
	close(results)

	var news []models.News
	var downloaded, dropped, failed int
	for result := range results {
		news = append(news, result.news...)
		downloaded += result.downloaded
		dropped += result.dropped
		failed += result.failed
	}

	if err := s.newsStore.SaveNews(ctx, news); err != nil {
		return nil, fmt.Errorf("failed to persist news: %w", err)
	}

	newsletter := models.NewNewsletter(news, start, end, runStart)

	if err := s.issueStore.SaveNewsletter(ctx, newsletter); err != nil {
		return nil, fmt.Errorf("failed to persist newsletter: %w", err)
	}
	if _, err := s.fileStore.WriteNewsletterMarkdown(newsletter); err != nil {
		return nil, err
	}
	if _, err := s.fileStore.WriteNewsCSV(news, runStart.Format("2006-01-02")); err != nil {
		return nil, err
	}

	if s.cfg.DeleteJobs {
		for _, job := range jobs {
			if err := s.scraper.DeleteScrapingJob(ctx, strconv.Itoa(job.ID)); err != nil {
				logger.Warn("failed to delete scraping job",
					zap.Int("job_id", job.ID),
					zap.Error(err),
				)
			}
		}
	}

	if s.notifier != nil {
		if err := s.notifier.SendNewsletter(&newsletter); err != nil {
			logger.Error("failed to deliver newsletter", zap.Error(err))
		}
	}

	if s.metrics != nil {
		_ = s.metrics.Add(&metrics.PipelineRunMetric{
			Timestamp:          runStart,
			StartDate:          start,
			EndDate:            end,
			Trigger:            trigger,
			Jobs:               len(jobs),
			ArticlesDownloaded: downloaded,
			ArticlesFiltered:   dropped,
			ArticlesProduced:   len(news),
			ArticlesFailed:     failed,
			DurationMs:         int(time.Since(runStart).Milliseconds()),
		})
	}

	logger.Info("newsletter generation completed",
		zap.Int("jobs", len(jobs)),
		zap.Int("downloaded", downloaded),
		zap.Int("dropped", dropped),
		zap.Int("failed", failed),
		zap.Int("produced", len(news)),
	)

	return &newsletter, nil
}

// processJob downloads one job's articles, filters them, and produces the
// survivors concurrently. Articles keep their download order in the result.
func (s *Service) processJob(ctx context.Context, jobID string, start, end time.Time) jobResult {
	var result jobResult

	raw, err := s.scraper.DownloadJobData(ctx, jobID)
	if err != nil {
		logger.Error("skipping scraping job, download failed",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		result.failed++
		return result
	}
	result.downloaded = len(raw)

	kept := make([]models.News, 0, len(raw))
	for _, n := range raw {
		if !s.keep(ctx, n, start, end) {
			result.dropped++
			continue
		}
		kept = append(kept, n)
	}

	// Produce concurrently; the indexed slice preserves input order.
	produced := make([]*models.News, len(kept))
	var wg sync.WaitGroup
	for i, n := range kept {
		wg.Add(1)
		go func(i int, n models.News) {
			defer wg.Done()
			out, err := s.producer.Produce(ctx, n)
			if err != nil {
				logger.Error("skipping article, production failed",
					zap.String("job_id", jobID),
					zap.String("title", n.Title),
					zap.Error(err),
				)
				return
			}
			produced[i] = &out
		}(i, n)
	}
	wg.Wait()

	for _, n := range produced {
		if n == nil {
			result.failed++
			continue
		}
		result.news = append(result.news, *n)
	}

	return result
}

// keep applies the window and relevancy filters to one raw article.
func (s *Service) keep(ctx context.Context, n models.News, start, end time.Time) bool {
	if n.Datetime == nil {
		logger.Debug("dropping article without timestamp", zap.String("title", n.Title))
		return false
	}
	if n.Datetime.Before(start) || !n.Datetime.Before(end) {
		logger.Debug("dropping article outside window",
			zap.String("title", n.Title),
			zap.Time("datetime", *n.Datetime),
		)
		return false
	}

	relevance, err := s.relevancy.Predict(ctx, n, nil, nil)
	if err != nil {
		logger.Warn("dropping article, relevancy classification failed",
			zap.String("title", n.Title),
			zap.Error(err),
		)
		return false
	}
	if relevance == models.RelevanceAutre {
		logger.Debug("dropping irrelevant article", zap.String("title", n.Title))
		return false
	}

	return true
}

// AddNews produces and persists one manually submitted article, outside the
// scraped flow. A timestamp outside the current window is allowed but
// logged.
func (s *Service) AddNews(ctx context.Context, news models.News) (models.News, error) {
	start, end := WeeklyWindow(s.now().In(s.location))
	if news.Datetime == nil || news.Datetime.Before(start) || !news.Datetime.Before(end) {
		logger.Warn("manually added article is outside the current window",
			zap.String("title", news.Title),
		)
	}

	produced, err := s.producer.Produce(ctx, news)
	if err != nil {
		return news, err
	}

	if err := s.newsStore.SaveNews(ctx, []models.News{produced}); err != nil {
		return produced, err
	}
	return produced, nil
}
