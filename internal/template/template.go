// Package template loads reusable document templates from YAML files, so
// recurring documents (weekly reports, invoices) start from a known shape
// instead of a blank model prompt.
package template

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template describes one document template.
type Template struct {
	Name        string `yaml:"name"`
	Kind        string `yaml:"kind"` // word, excel or powerpoint
	Description string `yaml:"description"`
	Filename    string `yaml:"filename"`
	Content     string `yaml:"content"`
}

// LoadFromDirectory loads template definitions from YAML files in a
// directory. A missing directory is not an error, it just yields no
// templates.
func LoadFromDirectory(dir string, logger *slog.Logger) ([]Template, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Debug("template directory does not exist, skipping", "dir", dir)
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read template dir: %w", err)
	}

	var templates []Template
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("cannot read template file", "path", path, "err", err)
			continue
		}

		var tpl Template
		if err := yaml.Unmarshal(data, &tpl); err != nil {
			logger.Warn("cannot parse template file", "path", path, "err", err)
			continue
		}

		if tpl.Name == "" {
			tpl.Name = strings.TrimSuffix(name, filepath.Ext(name))
		}
		if tpl.Kind == "" {
			tpl.Kind = "word"
		}

		logger.Info("loaded document template", "name", tpl.Name, "kind", tpl.Kind)
		templates = append(templates, tpl)
	}

	return templates, nil
}

// Registry indexes templates by name.
type Registry struct {
	byName map[string]Template
}

func NewRegistry(templates []Template) *Registry {
	r := &Registry{byName: make(map[string]Template, len(templates))}
	for _, t := range templates {
		r.byName[strings.ToLower(t.Name)] = t
	}
	return r
}

// Get looks up a template by case-insensitive name.
func (r *Registry) Get(name string) (Template, bool) {
	t, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// List returns all templates sorted by name.
func (r *Registry) List() []Template {
	out := make([]Template, 0, len(r.byName))
	for _, t := range r.byName {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
