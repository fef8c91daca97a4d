// Command bootstrap seeds the Weaviate reference corpus from a JSON dump of
// labeled, summarized news. Each article gets its two named vectors embedded
// before upload.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/cpeq/infolettre-automatique/internal/adapters/ai"
	"github.com/cpeq/infolettre-automatique/internal/adapters/config"
	weaviateAdapter "github.com/cpeq/infolettre-automatique/internal/adapters/weaviate"
	"github.com/cpeq/infolettre-automatique/internal/vectorstore"
	"github.com/cpeq/infolettre-automatique/pkg/logger"
	"github.com/cpeq/infolettre-automatique/pkg/models"
)

const batchSize = 50

func main() {
	file := flag.String("file", "reference_news.json", "JSON dump of labeled reference news")
	flag.Parse()

	if err := run(context.Background(), *file); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, file string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read reference dump: %w", err)
	}

	var news []models.News
	if err := json.Unmarshal(raw, &news); err != nil {
		return fmt.Errorf("failed to parse reference dump: %w", err)
	}

	openAI := ai.NewClient(&cfg.OpenAI, nil)

	client := weaviateAdapter.NewClient(&cfg.Weaviate, cfg.Vectorstore.CollectionName)
	if err := client.Ready(ctx); err != nil {
		return err
	}
	if err := client.EnsureSchema(ctx); err != nil {
		return err
	}

	references := make([]models.ReferenceNews, 0, len(news))
	for _, n := range news {
		if n.Rubric == "" || n.Summary == "" {
			logger.Warn("skipping unlabeled or unsummarized article",
				zap.String("title", n.Title),
			)
			continue
		}

		titleSummary, err := openAI.Embed(ctx, vectorstore.CreateQuery(n, models.VectorTitleSummary))
		if err != nil {
			return fmt.Errorf("failed to embed %q: %w", n.Title, err)
		}
		titleContent, err := openAI.Embed(ctx, vectorstore.CreateQuery(n, models.VectorTitleContent))
		if err != nil {
			return fmt.Errorf("failed to embed %q: %w", n.Title, err)
		}

		references = append(references, models.ReferenceNews{
			News: n,
			Vectors: map[string][]float32{
				models.VectorTitleSummary: titleSummary,
				models.VectorTitleContent: titleContent,
			},
		})

		if len(references)%batchSize == 0 {
			if err := client.UpsertReferenceNews(ctx, references[len(references)-batchSize:]); err != nil {
				return err
			}
		}
	}

	if rest := len(references) % batchSize; rest > 0 {
		if err := client.UpsertReferenceNews(ctx, references[len(references)-rest:]); err != nil {
			return err
		}
	}

	count, err := client.Count(ctx)
	if err != nil {
		return err
	}
	logger.Info("reference corpus bootstrapped",
		zap.Int("uploaded", len(references)),
		zap.Int("total_in_collection", count),
	)
	return nil
}
