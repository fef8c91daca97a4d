// Package templates renders the French prompt templates sent to the
// completion model. Default templates are compiled in; a directory of
// overrides lets editors adjust prompt wording without a rebuild.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"path/filepath"
	"text/template"

	"go.uber.org/zap"

	"github.com/cpeq/infolettre-automatique/pkg/logger"
)

//go:embed defaults/*.tmpl
var defaultTemplates embed.FS

// Renderer renders a named template (for dependency injection).
type Renderer interface {
	ExecuteTemplate(name string, data any) (string, error)
	TemplateExists(name string) bool
}

// Manager holds the parsed template set.
type Manager struct {
	templates *template.Template
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"add": func(a, b int) int { return a + b },
	}
}

// NewManager parses the compiled-in default templates.
func NewManager() (*Manager, error) {
	tmpl, err := template.New("root").Funcs(funcMap()).ParseFS(defaultTemplates, "defaults/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse default templates: %w", err)
	}
	return &Manager{templates: tmpl}, nil
}

// NewManagerFromDir parses the default templates, then overlays any *.tmpl
// files found in dir. A file with the same name as a default replaces it.
func NewManagerFromDir(dir string) (*Manager, error) {
	m, err := NewManager()
	if err != nil {
		return nil, err
	}

	pattern := filepath.Join(dir, "*.tmpl")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates in %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no templates found in %s", dir)
	}

	tmpl, err := m.templates.ParseGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates in %s: %w", dir, err)
	}
	m.templates = tmpl

	logger.Info("template overrides loaded",
		zap.Int("count", len(matches)),
		zap.String("directory", dir),
	)
	return m, nil
}

// ExecuteTemplate renders a template with data.
func (m *Manager) ExecuteTemplate(name string, data any) (string, error) {
	tmpl := m.templates.Lookup(name)
	if tmpl == nil {
		return "", fmt.Errorf("template %s not found", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}

// TemplateExists checks if a template is present.
func (m *Manager) TemplateExists(name string) bool {
	return m.templates.Lookup(name) != nil
}
