// Package weaviate wraps the Weaviate vector database holding the reference
// news corpus. Every object carries two named vectors so searches can target
// either the title+summary or the title+content embedding space.
package weaviate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	wvmodels "github.com/weaviate/weaviate/entities/models"
	"go.uber.org/zap"

	"github.com/cpeq/infolettre-automatique/internal/adapters/config"
	"github.com/cpeq/infolettre-automatique/pkg/logger"
	"github.com/cpeq/infolettre-automatique/pkg/models"
)

// Client talks to the Weaviate instance holding the reference corpus.
type Client struct {
	api   *weaviate.Client
	class string
}

// NewClient builds a Weaviate client for the given collection.
func NewClient(cfg *config.WeaviateConfig, class string) *Client {
	api := weaviate.New(weaviate.Config{
		Host:   cfg.Host,
		Scheme: cfg.Scheme,
	})
	return &Client{api: api, class: class}
}

// Ready checks connectivity to the Weaviate instance.
func (c *Client) Ready(ctx context.Context) error {
	ready, err := c.api.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate readiness check failed: %w", err)
	}
	if !ready {
		return fmt.Errorf("weaviate is not ready")
	}
	return nil
}

// Count returns the number of objects in the collection.
func (c *Client) Count(ctx context.Context) (int, error) {
	resp, err := c.api.GraphQL().Aggregate().
		WithClassName(c.class).
		WithFields(graphql.Field{
			Name:   "meta",
			Fields: []graphql.Field{{Name: "count"}},
		}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count objects: %w", err)
	}
	if err := graphQLErrors(resp); err != nil {
		return 0, err
	}

	aggregate, ok := resp.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("unexpected aggregate response shape")
	}
	items, ok := aggregate[c.class].([]interface{})
	if !ok || len(items) == 0 {
		return 0, nil
	}
	meta, ok := items[0].(map[string]interface{})["meta"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("unexpected aggregate meta shape")
	}
	count, ok := meta["count"].(float64)
	if !ok {
		return 0, fmt.Errorf("unexpected aggregate count type")
	}
	return int(count), nil
}

// HybridSearch runs a hybrid (vector + keyword) query against one of the
// named vector spaces and returns scored reference news in descending score
// order. ids, when non-empty, restricts results to those object IDs.
func (c *Client) HybridSearch(ctx context.Context, query string, vector []float32, targetVector string, alpha float64, limit int, ids []string) ([]models.ScoredNews, error) {
	hybrid := c.api.GraphQL().HybridArgumentBuilder().
		WithQuery(query).
		WithVector(vector).
		WithAlpha(float32(alpha)).
		WithTargetVectors(targetVector)

	builder := c.api.GraphQL().Get().
		WithClassName(c.class).
		WithHybrid(hybrid).
		WithLimit(limit).
		WithFields(newsFields()...)

	if len(ids) > 0 {
		values := make([]string, len(ids))
		copy(values, ids)
		builder = builder.WithWhere(filters.Where().
			WithPath([]string{"id"}).
			WithOperator(filters.ContainsAny).
			WithValueText(values...))
	}

	resp, err := builder.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("hybrid search failed: %w", err)
	}
	if err := graphQLErrors(resp); err != nil {
		return nil, err
	}

	objects, err := getObjects(resp, c.class)
	if err != nil {
		return nil, err
	}

	results := make([]models.ScoredNews, 0, len(objects))
	for _, obj := range objects {
		item, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		news := parseNews(item)
		score, err := parseScore(item)
		if err != nil {
			logger.Warn("skipping result with unparseable score",
				zap.String("title", news.Title),
				zap.Error(err),
			)
			continue
		}
		results = append(results, models.ScoredNews{News: news, Score: score})
	}

	return results, nil
}

// ObjectsWithVectors returns the full reference corpus including the named
// vectors of every object. Used to fit classification strategies.
func (c *Client) ObjectsWithVectors(ctx context.Context) ([]models.ReferenceNews, error) {
	total, err := c.Count(ctx)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}

	resp, err := c.api.GraphQL().Get().
		WithClassName(c.class).
		WithLimit(total).
		WithFields(append(newsFields(), graphql.Field{
			Name: "_additional",
			Fields: []graphql.Field{
				{Name: "id"},
				{Name: "vectors", Fields: []graphql.Field{
					{Name: models.VectorTitleSummary},
					{Name: models.VectorTitleContent},
				}},
			},
		})...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reference corpus: %w", err)
	}
	if err := graphQLErrors(resp); err != nil {
		return nil, err
	}

	objects, err := getObjects(resp, c.class)
	if err != nil {
		return nil, err
	}

	references := make([]models.ReferenceNews, 0, len(objects))
	for _, obj := range objects {
		item, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		ref := models.ReferenceNews{
			News:    parseNews(item),
			Vectors: parseVectors(item),
		}
		references = append(references, ref)
	}

	return references, nil
}

// UpsertReferenceNews writes reference news with their named vectors in one
// batch. Objects keep their deterministic IDs so re-seeding is idempotent.
func (c *Client) UpsertReferenceNews(ctx context.Context, references []models.ReferenceNews) error {
	if len(references) == 0 {
		return nil
	}

	objects := make([]*wvmodels.Object, 0, len(references))
	for _, ref := range references {
		vectors := wvmodels.Vectors{}
		for name, vec := range ref.Vectors {
			vectors[name] = wvmodels.Vector(vec)
		}

		properties := map[string]interface{}{
			"title":   ref.Title,
			"content": ref.Content,
			"link":    ref.Link,
			"rubric":  string(ref.Rubric),
			"summary": ref.Summary,
		}
		if ref.Datetime != nil {
			properties["datetime"] = ref.Datetime.Format(time.RFC3339)
		}

		objects = append(objects, &wvmodels.Object{
			Class:      c.class,
			ID:         strfmt.UUID(ref.ID().String()),
			Properties: properties,
			Vectors:    vectors,
		})
	}

	resp, err := c.api.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("batch upsert failed: %w", err)
	}

	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch upsert object %s failed: %s", obj.ID, obj.Result.Errors.Error[0].Message)
		}
	}

	logger.Info("reference news upserted",
		zap.String("collection", c.class),
		zap.Int("count", len(objects)),
	)
	return nil
}

// EnsureSchema creates the reference news collection if it does not exist.
// Vectors are provided by the application, so the vectorizer stays off.
func (c *Client) EnsureSchema(ctx context.Context) error {
	exists, err := c.api.Schema().ClassExistenceChecker().WithClassName(c.class).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	class := &wvmodels.Class{
		Class: c.class,
		Properties: []*wvmodels.Property{
			{Name: "title", DataType: []string{"text"}},
			{Name: "content", DataType: []string{"text"}},
			{Name: "link", DataType: []string{"text"}},
			{Name: "datetime", DataType: []string{"text"}},
			{Name: "rubric", DataType: []string{"text"}},
			{Name: "summary", DataType: []string{"text"}},
		},
		VectorConfig: map[string]wvmodels.VectorConfig{
			models.VectorTitleSummary: {
				Vectorizer:      map[string]interface{}{"none": map[string]interface{}{}},
				VectorIndexType: "hnsw",
			},
			models.VectorTitleContent: {
				Vectorizer:      map[string]interface{}{"none": map[string]interface{}{}},
				VectorIndexType: "hnsw",
			},
		},
	}

	if err := c.api.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	logger.Info("collection created", zap.String("collection", c.class))
	return nil
}

func newsFields() []graphql.Field {
	return []graphql.Field{
		{Name: "title"},
		{Name: "content"},
		{Name: "link"},
		{Name: "datetime"},
		{Name: "rubric"},
		{Name: "summary"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "id"},
			{Name: "score"},
		}},
	}
}

func graphQLErrors(resp *wvmodels.GraphQLResponse) error {
	if len(resp.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", resp.Errors[0].Message)
	}
	return nil
}

func getObjects(resp *wvmodels.GraphQLResponse, class string) ([]interface{}, error) {
	get, ok := resp.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected get response shape")
	}
	objects, ok := get[class].([]interface{})
	if !ok {
		return nil, nil
	}
	return objects, nil
}

func parseNews(item map[string]interface{}) models.News {
	news := models.News{
		Title:   stringProp(item, "title"),
		Content: stringProp(item, "content"),
		Link:    stringProp(item, "link"),
		Summary: stringProp(item, "summary"),
	}
	if rubric, ok := models.ParseRubric(stringProp(item, "rubric")); ok {
		news.Rubric = rubric
	}
	if raw := stringProp(item, "datetime"); raw != "" {
		if dt, err := time.Parse(time.RFC3339, raw); err == nil {
			news.Datetime = &dt
		}
	}
	return news
}

// parseScore reads the hybrid score from _additional. Weaviate returns it as
// a string.
func parseScore(item map[string]interface{}) (float64, error) {
	additional, ok := item["_additional"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("missing _additional block")
	}
	raw, ok := additional["score"].(string)
	if !ok {
		return 0, fmt.Errorf("missing score")
	}
	return strconv.ParseFloat(raw, 64)
}

func parseVectors(item map[string]interface{}) map[string][]float32 {
	additional, ok := item["_additional"].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := additional["vectors"].(map[string]interface{})
	if !ok {
		return nil
	}

	vectors := make(map[string][]float32, len(raw))
	for name, value := range raw {
		values, ok := value.([]interface{})
		if !ok {
			continue
		}
		vector := make([]float32, 0, len(values))
		for _, v := range values {
			f, ok := v.(float64)
			if !ok {
				continue
			}
			vector = append(vector, float32(f))
		}
		vectors[name] = vector
	}
	return vectors
}

func stringProp(item map[string]interface{}, key string) string {
	s, _ := item[key].(string)
	return s
}
