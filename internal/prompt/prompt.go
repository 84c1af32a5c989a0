// Package prompt loads the versioned prompt assets used to build generation requests.
package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/tabular-rag/internal/core/domain"
)

//go:embed prompts.yaml
var defaultAssets []byte

type file struct {
	Active  string                  `yaml:"active"`
	Prompts []domain.PromptTemplate `yaml:"prompts"`
}

// Catalog holds every prompt asset of a file keyed by name@version.
type Catalog struct {
	active  string
	prompts map[string]domain.PromptTemplate
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultAssets)
}

// Load reads a catalog from path, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse prompt file: %w", err)
	}
	if len(f.Prompts) == 0 {
		return nil, fmt.Errorf("prompt file defines no prompts")
	}

	catalog := &Catalog{
		active:  strings.TrimSpace(f.Active),
		prompts: make(map[string]domain.PromptTemplate, len(f.Prompts)),
	}
	for _, p := range f.Prompts {
		p = normalize(p)
		if err := validate(p); err != nil {
			return nil, err
		}
		if _, dup := catalog.prompts[p.ID()]; dup {
			return nil, fmt.Errorf("duplicate prompt %s", p.ID())
		}
		catalog.prompts[p.ID()] = p
	}
	if catalog.active == "" {
		catalog.active = normalize(f.Prompts[0]).ID()
	}
	if _, ok := catalog.prompts[catalog.active]; !ok {
		return nil, fmt.Errorf("active prompt %s is not defined", catalog.active)
	}
	return catalog, nil
}

// Active returns the asset selected by override (name@version) or the file's active entry.
func (c *Catalog) Active(override string) (domain.PromptTemplate, error) {
	id := strings.TrimSpace(override)
	if id == "" {
		id = c.active
	}
	p, ok := c.prompts[id]
	if !ok {
		return domain.PromptTemplate{}, fmt.Errorf("prompt %s is not defined", id)
	}
	return p, nil
}

func normalize(p domain.PromptTemplate) domain.PromptTemplate {
	p.Name = strings.TrimSpace(p.Name)
	p.Version = strings.TrimSpace(p.Version)
	if p.Format == "" {
		p.Format = domain.AnswerFormatText
	}
	return p
}

func validate(p domain.PromptTemplate) error {
	if p.Name == "" || p.Version == "" {
		return fmt.Errorf("prompt name and version are required")
	}
	if strings.TrimSpace(p.System) == "" {
		return fmt.Errorf("prompt %s: system instruction is empty", p.ID())
	}
	if strings.TrimSpace(p.User) == "" {
		return fmt.Errorf("prompt %s: user template is empty", p.ID())
	}
	switch p.Format {
	case domain.AnswerFormatText, domain.AnswerFormatJSON:
	default:
		return fmt.Errorf("prompt %s: unknown format %q", p.ID(), p.Format)
	}
	if _, err := template.New(p.ID()).Option("missingkey=error").Parse(p.User); err != nil {
		return fmt.Errorf("prompt %s: parse user template: %w", p.ID(), err)
	}
	return nil
}

// RenderUser fills the user template of req with the joined context and the question.
func RenderUser(req domain.GenerationRequest) (string, error) {
	tmpl, err := template.New(req.PromptVersion).Option("missingkey=error").Parse(req.UserTemplate)
	if err != nil {
		return "", fmt.Errorf("parse user template: %w", err)
	}
	var b strings.Builder
	err = tmpl.Execute(&b, struct {
		Context  string
		Question string
	}{
		Context:  strings.Join(req.ContextItems, domain.FallbackSeparator),
		Question: req.Question,
	})
	if err != nil {
		return "", fmt.Errorf("render user template: %w", err)
	}
	return b.String(), nil
}
