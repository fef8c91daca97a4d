package summary

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cpeq/infolettre-automatique/pkg/models"
	"github.com/cpeq/infolettre-automatique/pkg/templates"
)

type fakeCompletionModel struct {
	lastSystem string
	lastPrompt string
}

func (f *fakeCompletionModel) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	f.lastSystem = systemPrompt
	f.lastPrompt = userMessage
	return "Un résumé généré.", nil
}

func newTestGenerator(t *testing.T, model CompletionModel) *Generator {
	t.Helper()
	renderer, err := templates.NewManager()
	if err != nil {
		t.Fatalf("failed to load default templates: %v", err)
	}
	return NewGenerator(model, renderer)
}

func TestFormatPromptNumbersExemplars(t *testing.T) {
	generator := newTestGenerator(t, nil)
	news := models.News{Title: "Titre", Content: "Contenu à résumer"}
	references := []models.News{
		{Content: "Contenu A", Summary: "Résumé A"},
		{Content: "Contenu B", Summary: "Résumé B"},
	}

	prompt, err := generator.FormatPrompt(news, references)
	if err != nil {
		t.Fatalf("FormatPrompt returned error: %v", err)
	}

	if !strings.Contains(prompt, "## Exemple 1\nContenu: Contenu A\nRésumé: Résumé A") {
		t.Errorf("first exemplar malformed:\n%s", prompt)
	}
	if !strings.Contains(prompt, "## Exemple 2\nContenu: Contenu B\nRésumé: Résumé B") {
		t.Errorf("second exemplar malformed:\n%s", prompt)
	}
	if !strings.Contains(prompt, "#Début du contenu de l'article à résumer:\nContenu à résumer") {
		t.Errorf("article content missing from prompt:\n%s", prompt)
	}
}

func TestFormatPromptSkipsIncompleteReferences(t *testing.T) {
	generator := newTestGenerator(t, nil)
	news := models.News{Content: "Contenu"}
	references := []models.News{
		{Content: "Sans résumé", Summary: ""},
		{Content: "Complet", Summary: "Résumé complet"},
	}

	prompt, err := generator.FormatPrompt(news, references)
	if err != nil {
		t.Fatalf("FormatPrompt returned error: %v", err)
	}

	if strings.Contains(prompt, "Sans résumé") {
		t.Error("reference without summary must not appear as exemplar")
	}
	// Numbering restarts from usable exemplars only.
	if !strings.Contains(prompt, "## Exemple 1\nContenu: Complet") {
		t.Errorf("usable exemplar should be numbered 1:\n%s", prompt)
	}
}

func TestFormatPromptNoExemplars(t *testing.T) {
	generator := newTestGenerator(t, nil)
	news := models.News{Content: "Contenu"}

	if _, err := generator.FormatPrompt(news, nil); !errors.Is(err, ErrNoExemplars) {
		t.Errorf("expected ErrNoExemplars, got %v", err)
	}
	if _, err := generator.FormatPrompt(news, []models.News{{Content: "x"}}); !errors.Is(err, ErrNoExemplars) {
		t.Errorf("expected ErrNoExemplars with only incomplete references, got %v", err)
	}
}

func TestGenerateUsesCompletionModel(t *testing.T) {
	model := &fakeCompletionModel{}
	generator := newTestGenerator(t, model)

	news := models.News{Content: "Contenu"}
	references := []models.News{{Content: "Exemple", Summary: "Résumé"}}

	summary, err := generator.Generate(context.Background(), news, references)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if summary != "Un résumé généré." {
		t.Errorf("unexpected summary: %q", summary)
	}
	if !strings.Contains(model.lastSystem, "politique environnementale") {
		t.Errorf("system prompt not rendered: %q", model.lastSystem)
	}
	if !strings.Contains(model.lastPrompt, "#Début des exemples:") {
		t.Errorf("user prompt not rendered: %q", model.lastPrompt)
	}
}
