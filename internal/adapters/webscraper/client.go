// Package webscraper is the client for the webscraper.io cloud API, which
// runs the sitemap scraping jobs that feed the pipeline.
package webscraper

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/cpeq/infolettre-automatique/internal/adapters/config"
	"github.com/cpeq/infolettre-automatique/pkg/logger"
	"github.com/cpeq/infolettre-automatique/pkg/models"
)

// rateLimitFallback is how long to wait on a 429 response that carries no
// usable x-ratelimit-reset header.
const rateLimitFallback = 15 * time.Minute

// Client talks to the webscraper.io API.
type Client struct {
	token   string
	baseURL string
	client  *http.Client

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a webscraper.io client.
func NewClient(cfg *config.WebscraperConfig) *Client {
	return &Client{
		token:   cfg.APIToken,
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
		sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ScrapingJob is a finished or running scraping job.
type ScrapingJob struct {
	ID        int    `json:"id"`
	SitemapID int    `json:"sitemap_id"`
	Status    string `json:"status"`
}

// Sitemap is a configured scraping target.
type Sitemap struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type listResponse struct {
	Success     bool            `json:"success"`
	Data        json.RawMessage `json:"data"`
	CurrentPage int             `json:"current_page"`
	LastPage    int             `json:"last_page"`
}

// GetScrapingJobs lists all scraping jobs, walking every page.
func (c *Client) GetScrapingJobs(ctx context.Context) ([]ScrapingJob, error) {
	var jobs []ScrapingJob

	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/scraping-jobs?api_token=%s&page=%d", c.baseURL, c.token, page)
		body, err := c.doRequest(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list scraping jobs: %w", err)
		}

		var resp listResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode scraping jobs response: %w", err)
		}

		var pageJobs []ScrapingJob
		if err := json.Unmarshal(resp.Data, &pageJobs); err != nil {
			return nil, fmt.Errorf("failed to decode scraping jobs page: %w", err)
		}
		jobs = append(jobs, pageJobs...)

		if resp.LastPage == 0 || resp.CurrentPage >= resp.LastPage {
			break
		}
	}

	logger.Debug("fetched scraping jobs", zap.Int("count", len(jobs)))
	return jobs, nil
}

// GetSitemaps lists all configured sitemaps, walking every page.
func (c *Client) GetSitemaps(ctx context.Context) ([]Sitemap, error) {
	var sitemaps []Sitemap

	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/sitemaps?api_token=%s&page=%d", c.baseURL, c.token, page)
		body, err := c.doRequest(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list sitemaps: %w", err)
		}

		var resp listResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode sitemaps response: %w", err)
		}

		var pageSitemaps []Sitemap
		if err := json.Unmarshal(resp.Data, &pageSitemaps); err != nil {
			return nil, fmt.Errorf("failed to decode sitemaps page: %w", err)
		}
		sitemaps = append(sitemaps, pageSitemaps...)

		if resp.LastPage == 0 || resp.CurrentPage >= resp.LastPage {
			break
		}
	}

	return sitemaps, nil
}

// CreateScrapingJob starts a new scraping job for a sitemap and returns the
// job ID.
func (c *Client) CreateScrapingJob(ctx context.Context, sitemapID int) (int, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"sitemap_id":       sitemapID,
		"driver":           "fulljs",
		"page_load_delay":  2000,
		"request_interval": 2000,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to encode job request: %w", err)
	}

	url := fmt.Sprintf("%s/scraping-job?api_token=%s", c.baseURL, c.token)
	body, err := c.doRequest(ctx, http.MethodPost, url, payload)
	if err != nil {
		return 0, fmt.Errorf("failed to create scraping job: %w", err)
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			ID int `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("failed to decode job creation response: %w", err)
	}

	logger.Info("scraping job created",
		zap.Int("sitemap_id", sitemapID),
		zap.Int("job_id", resp.Data.ID),
	)
	return resp.Data.ID, nil
}

// scrapedRecord is one JSON line of downloaded job data.
type scrapedRecord struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Link     string `json:"web-scraper-start-url"`
	Datetime string `json:"datetime"`
}

// DownloadJobData downloads a job's scraped data. The payload is JSON lines;
// lines that fail to decode are skipped with a warning rather than aborting
// the whole job.
func (c *Client) DownloadJobData(ctx context.Context, jobID string) ([]models.News, error) {
	url := fmt.Sprintf("%s/scraping-job/%s/json?api_token=%s", c.baseURL, jobID, c.token)
	body, err := c.doRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download job %s data: %w", jobID, err)
	}

	var news []models.News
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var record scrapedRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			logger.Warn("skipping malformed scraped line",
				zap.String("job_id", jobID),
				zap.Int("line", line),
				zap.Error(err),
			)
			continue
		}

		news = append(news, models.News{
			Title:    record.Title,
			Content:  record.Content,
			Link:     record.Link,
			Datetime: parseDatetime(record.Datetime),
			JobID:    jobID,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read job %s data: %w", jobID, err)
	}

	logger.Debug("downloaded job data",
		zap.String("job_id", jobID),
		zap.Int("count", len(news)),
	)
	return news, nil
}

// datetimeLayouts are the formats seen in scraped pages.
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseDatetime parses a scraped datetime string. Unparseable values map to
// nil so downstream filtering can reject them explicitly.
func parseDatetime(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range datetimeLayouts {
		if dt, err := time.Parse(layout, raw); err == nil {
			return &dt
		}
	}
	return nil
}

// DeleteScrapingJob removes a finished job from webscraper.io.
func (c *Client) DeleteScrapingJob(ctx context.Context, jobID string) error {
	url := fmt.Sprintf("%s/scraping-job/%s?api_token=%s", c.baseURL, jobID, c.token)
	if _, err := c.doRequest(ctx, http.MethodDelete, url, nil); err != nil {
		return fmt.Errorf("failed to delete scraping job %s: %w", jobID, err)
	}

	logger.Info("scraping job deleted", zap.String("job_id", jobID))
	return nil
}

// doRequest performs one HTTP request, honoring webscraper.io rate limits.
// A 429 response is retried after waiting until the time in the
// x-ratelimit-reset header has passed. Each 429 grants one retry, so the
// request cycles for as long as the API keeps answering 429.
func (c *Client) doRequest(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	for {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := rateLimitWait(resp.Header.Get("x-ratelimit-reset"), time.Now())
			logger.Warn("webscraper.io rate limit hit, waiting for reset",
				zap.Duration("wait", wait),
			)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, fmt.Errorf("canceled while waiting for rate limit reset: %w", err)
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(body))
		}

		return body, nil
	}
}

// rateLimitWait converts an x-ratelimit-reset unix timestamp into a wait
// duration, padded by one second so the limit has actually reset. A missing
// or unparseable header falls back to a conservative fixed wait.
func rateLimitWait(resetHeader string, now time.Time) time.Duration {
	reset, err := strconv.ParseInt(resetHeader, 10, 64)
	if err != nil {
		return rateLimitFallback
	}

	wait := time.Unix(reset, 0).Sub(now) + time.Second
	if wait < time.Second {
		wait = time.Second
	}
	return wait
}
