package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"briefboard/internal/models"

	"gopkg.in/yaml.v3"
)

var builtin = []models.ModelOption{
	{Name: "GPT-4.1", Value: "GPT-4.1", Logo: "/logos/ChatGPT-Logo.gif"},
	{Name: "BART", Value: "BART", Logo: "/logos/meta-logo.gif"},
	{Name: "CLAUDE", Value: "CLAUDE", Logo: "/logos/anthropic-logo.gif"},
	{Name: "Mistral small", Value: "Mistral small", Logo: "/logos/mistral-logo.gif"},
	{Name: "Gemini 2.5 Pro", Value: "Gemini 2.5 Pro", Logo: "/logos/Cgemini-logo.gif"},
	{Name: "DeepSeek-R1", Value: "DeepSeek-R1", Logo: "/logos/deepseek-logo.gif"},
	{Name: "Llama 3.1", Value: "Llama 3.1", Logo: "/logos/meta-logo2.gif"},
	{Name: "Grok 3", Value: "Grok 3", Logo: "/logos/xAi-logo.gif"},
}

// Catalog is the list of models a user may submit against.
type Catalog struct {
	Models []models.ModelOption `json:"models" yaml:"models"`
}

func Default() Catalog {
	out := make([]models.ModelOption, len(builtin))
	copy(out, builtin)
	return Catalog{Models: out}
}

// Load reads a catalog from a YAML file. An empty path yields the built-in
// catalog.
func Load(path string) (Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(), nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read model catalog %q: %w", path, err)
	}
	return Parse(content)
}

func Parse(content []byte) (Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return Catalog{}, fmt.Errorf("parse model catalog: %w", err)
	}
	seen := map[string]bool{}
	for i, m := range c.Models {
		m.Name = strings.TrimSpace(m.Name)
		m.Value = strings.TrimSpace(m.Value)
		if m.Value == "" {
			m.Value = m.Name
		}
		if m.Value == "" {
			return Catalog{}, fmt.Errorf("model catalog entry %d has no name", i)
		}
		if m.Name == "" {
			m.Name = m.Value
		}
		if seen[m.Value] {
			return Catalog{}, fmt.Errorf("model catalog lists %q twice", m.Value)
		}
		seen[m.Value] = true
		c.Models[i] = m
	}
	if len(c.Models) == 0 {
		return Catalog{}, errors.New("model catalog is empty")
	}
	return c, nil
}

func (c Catalog) Has(value string) bool {
	for _, m := range c.Models {
		if m.Value == value {
			return true
		}
	}
	return false
}

func (c Catalog) Values() []string {
	out := make([]string, 0, len(c.Models))
	for _, m := range c.Models {
		out = append(out, m.Value)
	}
	return out
}
