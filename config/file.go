// Package config loads and validates the scraper's YAML configuration: the
// shared common profiles, the ordered source list and the run settings.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig represents the structure of the scraper's config.yaml.
type FileConfig struct {
	CommonConfigs map[string]ProfileFields `yaml:"common_configs"`
	Sources       SourceDefs               `yaml:"sources"`
	Settings      Settings                 `yaml:"settings"`
}

// ProfileFields is the selector/header/date-format bundle shared by a common
// profile and, as overrides, by individual sources. Empty fields are treated
// as absent.
type ProfileFields struct {
	ArticleSelector string            `yaml:"article_selector"`
	TitleSelector   string            `yaml:"title_selector"`
	AuthorSelector  string            `yaml:"author_selector"`
	ContentSelector string            `yaml:"content_selector"`
	DateSelector    string            `yaml:"date_selector"`
	DateFormats     []string          `yaml:"date_formats"`
	DateFormat      string            `yaml:"date_format"` // single-format shorthand
	Headers         map[string]string `yaml:"headers"`
	MaxArticles     int               `yaml:"max_articles"`
	URLPattern      string            `yaml:"url_pattern"`
	ExcludePatterns []string          `yaml:"exclude_patterns"`
	Discovery       string            `yaml:"discovery"` // "html" (default) or "feed"
}

// Formats returns the configured date formats in order, folding the
// single-format shorthand in when no list is given.
func (p ProfileFields) Formats() []string {
	if len(p.DateFormats) > 0 {
		return p.DateFormats
	}
	if p.DateFormat != "" {
		return []string{p.DateFormat}
	}
	return nil
}

// SourceDef is one entry of the sources mapping.
type SourceDef struct {
	Name          string `yaml:"-"`
	BaseURL       string `yaml:"base_url"`
	Inherit       string `yaml:"inherit"`
	ProfileFields `yaml:",inline"`
}

// SourceDefs is the sources mapping decoded in document order, since sources
// are processed in the order they are configured.
type SourceDefs []SourceDef

// UnmarshalYAML decodes a mapping of name to source definition, keeping the
// order of the keys.
func (s *SourceDefs) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: sources must be a mapping of name to definition", value.Line)
	}

	defs := make(SourceDefs, 0, len(value.Content)/2)
	seen := make(map[string]bool)
	for i := 0; i+1 < len(value.Content); i += 2 {
		keyNode, valNode := value.Content[i], value.Content[i+1]

		name := keyNode.Value
		if seen[name] {
			return &ConfigError{Source: name, Err: ErrDuplicateSource}
		}
		seen[name] = true

		var def SourceDef
		if err := valNode.Decode(&def); err != nil {
			return fmt.Errorf("source %s: %w", name, err)
		}
		def.Name = name
		defs = append(defs, def)
	}

	*s = defs
	return nil
}

// Names returns the source names in configuration order.
func (s SourceDefs) Names() []string {
	names := make([]string, 0, len(s))
	for _, def := range s {
		names = append(names, def.Name)
	}
	return names
}

// Load reads and parses the configuration file at path, then validates it.
// Every failure is reported as a *ConfigError.
func Load(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("failed to read config file: %w", err)}
	}

	return Parse(data)
}

// Parse decodes and validates configuration from raw YAML.
func Parse(data []byte) (*FileConfig, error) {
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			return nil, cfgErr
		}
		return nil, &ConfigError{Err: fmt.Errorf("failed to parse config file: %w", err)}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the file-level invariants that do not depend on profile
// resolution.
func (c *FileConfig) Validate() error {
	if len(c.Sources) == 0 {
		return &ConfigError{Field: "sources", Err: ErrNoSources}
	}

	for _, def := range c.Sources {
		if def.BaseURL == "" {
			return &ConfigError{Source: def.Name, Field: "base_url", Err: ErrMissingBaseURL}
		}
		u, err := url.Parse(def.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &ConfigError{Source: def.Name, Field: "base_url", Err: ErrInvalidBaseURL}
		}
	}

	return nil
}

// Only restricts the configuration to the named source.
func (c *FileConfig) Only(name string) error {
	for _, def := range c.Sources {
		if def.Name == name {
			c.Sources = SourceDefs{def}
			return nil
		}
	}
	return &ConfigError{Source: name, Err: ErrUnknownSource}
}
