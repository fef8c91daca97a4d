// Package summary drafts French article summaries by few-shot prompting:
// retrieved reference articles and their published summaries serve as
// exemplars for the completion model.
package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cpeq/infolettre-automatique/pkg/logger"
	"github.com/cpeq/infolettre-automatique/pkg/models"
	"github.com/cpeq/infolettre-automatique/pkg/templates"
)

// ErrNoExemplars is returned when no usable reference article is available
// to prompt with.
var ErrNoExemplars = errors.New("no summarized reference news to use as exemplars")

const (
	systemTemplate = "summary_system.tmpl"
	userTemplate   = "summary_user.tmpl"
)

// CompletionModel generates free text from a prompt.
type CompletionModel interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// Generator produces summaries from exemplar-based prompts.
type Generator struct {
	model    CompletionModel
	renderer templates.Renderer
}

type exemplar struct {
	Content string
	Summary string
}

type promptData struct {
	Exemplars []exemplar
	Content   string
}

// NewGenerator creates a summary generator.
func NewGenerator(model CompletionModel, renderer templates.Renderer) *Generator {
	return &Generator{model: model, renderer: renderer}
}

// Generate summarizes a classified news article in the style of the given
// reference articles. References without both content and summary are
// ignored as exemplars.
func (g *Generator) Generate(ctx context.Context, news models.News, references []models.News) (string, error) {
	prompt, err := g.FormatPrompt(news, references)
	if err != nil {
		return "", err
	}

	system, err := g.renderer.ExecuteTemplate(systemTemplate, nil)
	if err != nil {
		return "", fmt.Errorf("failed to render system prompt: %w", err)
	}

	summary, err := g.model.Complete(ctx, strings.TrimSpace(system), prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}

	logger.Debug("summary generated",
		zap.String("title", news.Title),
		zap.Int("length", len(summary)),
	)
	return summary, nil
}

// FormatPrompt builds the few-shot summarization prompt.
func (g *Generator) FormatPrompt(news models.News, references []models.News) (string, error) {
	var exemplars []exemplar
	for _, ref := range references {
		if ref.Content == "" || ref.Summary == "" {
			continue
		}
		exemplars = append(exemplars, exemplar{Content: ref.Content, Summary: ref.Summary})
	}
	if len(exemplars) == 0 {
		return "", ErrNoExemplars
	}

	prompt, err := g.renderer.ExecuteTemplate(userTemplate, promptData{
		Exemplars: exemplars,
		Content:   news.Content,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render summarization prompt: %w", err)
	}
	return prompt, nil
}
