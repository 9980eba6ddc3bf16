package profile

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Vaibhav-Sahai/periodic-scraper/config"
	"github.com/andybalholm/cascadia"
)

// Resolution errors, always wrapped in a *config.ConfigError.
var (
	ErrUnknownProfile   = errors.New("inherited common profile does not exist")
	ErrMissingField     = errors.New("required field is missing after merge")
	ErrInvalidSelector  = errors.New("invalid CSS selector")
	ErrInvalidPattern   = errors.New("invalid URL pattern")
	ErrInvalidDiscovery = errors.New("discovery must be 'html' or 'feed'")
)

// Resolver merges source definitions with their common profiles. Results are
// cached per source name for the lifetime of the resolver.
type Resolver struct {
	common  map[string]config.ProfileFields
	ceiling int
	cache   map[string]SourceProfile
}

// NewResolver creates a resolver over the given common profiles. ceiling is
// the global max_articles_per_source; zero means no ceiling.
func NewResolver(common map[string]config.ProfileFields, ceiling int) *Resolver {
	return &Resolver{
		common:  common,
		ceiling: ceiling,
		cache:   make(map[string]SourceProfile),
	}
}

// Resolve returns the resolved profile for def.
func (r *Resolver) Resolve(def config.SourceDef) (SourceProfile, error) {
	if p, ok := r.cache[def.Name]; ok {
		return p.Clone(), nil
	}

	p, err := Resolve(def, r.common, r.ceiling)
	if err != nil {
		return SourceProfile{}, err
	}

	r.cache[def.Name] = p
	return p.Clone(), nil
}

// ResolveAll resolves every definition in order, stopping at the first
// configuration error.
func (r *Resolver) ResolveAll(defs []config.SourceDef) ([]SourceProfile, error) {
	profiles := make([]SourceProfile, 0, len(defs))
	for _, def := range defs {
		p, err := r.Resolve(def)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// Resolve merges def over the common profile it inherits. Fields present on
// def win; base_url always comes from def. The merged profile must carry
// article, title and content selectors and at least one date format.
func Resolve(def config.SourceDef, common map[string]config.ProfileFields, ceiling int) (SourceProfile, error) {
	if strings.TrimSpace(def.BaseURL) == "" {
		return SourceProfile{}, &config.ConfigError{Source: def.Name, Field: "base_url", Err: config.ErrMissingBaseURL}
	}

	var base config.ProfileFields
	if def.Inherit != "" {
		c, ok := common[def.Inherit]
		if !ok {
			return SourceProfile{}, &config.ConfigError{
				Source: def.Name,
				Field:  "inherit",
				Err:    fmt.Errorf("%w: %q", ErrUnknownProfile, def.Inherit),
			}
		}
		base = c
	}
	merged := merge(base, def.ProfileFields)

	p := SourceProfile{
		Name:        def.Name,
		BaseURL:     def.BaseURL,
		DateFormats: merged.Formats(),
		Headers:     merged.Headers,
		MaxArticles: maxArticles(merged.MaxArticles, ceiling),
		Discovery:   strings.ToLower(merged.Discovery),
	}

	chains := []struct {
		field    string
		raw      string
		required bool
		dst      *[]string
	}{
		{"article_selector", merged.ArticleSelector, true, &p.ArticleSelectors},
		{"title_selector", merged.TitleSelector, true, &p.TitleSelectors},
		{"content_selector", merged.ContentSelector, true, &p.ContentSelectors},
		{"author_selector", merged.AuthorSelector, false, &p.AuthorSelectors},
		{"date_selector", merged.DateSelector, false, &p.DateSelectors},
	}
	for _, c := range chains {
		selectors, err := compileChain(c.raw)
		if err != nil {
			return SourceProfile{}, &config.ConfigError{Source: def.Name, Field: c.field, Err: err}
		}
		if c.required && len(selectors) == 0 {
			return SourceProfile{}, &config.ConfigError{Source: def.Name, Field: c.field, Err: ErrMissingField}
		}
		*c.dst = selectors
	}

	if len(p.DateFormats) == 0 {
		return SourceProfile{}, &config.ConfigError{Source: def.Name, Field: "date_formats", Err: ErrMissingField}
	}

	if len(p.Headers) == 0 {
		p.Headers = map[string]string{"User-Agent": DefaultUserAgent}
	}

	switch p.Discovery {
	case "":
		p.Discovery = DiscoveryHTML
	case DiscoveryHTML, DiscoveryFeed:
	default:
		return SourceProfile{}, &config.ConfigError{Source: def.Name, Field: "discovery", Err: ErrInvalidDiscovery}
	}

	if merged.URLPattern != "" {
		re, err := regexp.Compile(merged.URLPattern)
		if err != nil {
			return SourceProfile{}, &config.ConfigError{Source: def.Name, Field: "url_pattern", Err: fmt.Errorf("%w: %v", ErrInvalidPattern, err)}
		}
		p.URLPattern = re
	}
	for _, pattern := range merged.ExcludePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return SourceProfile{}, &config.ConfigError{Source: def.Name, Field: "exclude_patterns", Err: fmt.Errorf("%w: %v", ErrInvalidPattern, err)}
		}
		p.ExcludePatterns = append(p.ExcludePatterns, re)
	}

	return p.Clone(), nil
}

// merge overlays every non-empty field of override onto base.
func merge(base, override config.ProfileFields) config.ProfileFields {
	m := base

	overrideString(&m.ArticleSelector, override.ArticleSelector)
	overrideString(&m.TitleSelector, override.TitleSelector)
	overrideString(&m.AuthorSelector, override.AuthorSelector)
	overrideString(&m.ContentSelector, override.ContentSelector)
	overrideString(&m.DateSelector, override.DateSelector)
	overrideString(&m.URLPattern, override.URLPattern)
	overrideString(&m.Discovery, override.Discovery)

	if formats := override.Formats(); len(formats) > 0 {
		m.DateFormats = formats
		m.DateFormat = ""
	}
	if override.Headers != nil {
		m.Headers = override.Headers
	}
	if override.MaxArticles > 0 {
		m.MaxArticles = override.MaxArticles
	}
	if override.ExcludePatterns != nil {
		m.ExcludePatterns = override.ExcludePatterns
	}

	return m
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// maxArticles picks the source's cap, bounded by the global ceiling.
func maxArticles(configured, ceiling int) int {
	n := configured
	if n <= 0 {
		n = ceiling
	}
	if n <= 0 {
		n = DefaultMaxArticles
	}
	if ceiling > 0 && n > ceiling {
		n = ceiling
	}
	return n
}

// compileChain splits a selector chain and checks every alternative parses.
func compileChain(raw string) ([]string, error) {
	selectors := SplitChain(raw)
	for _, sel := range selectors {
		if _, err := cascadia.Compile(sel); err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidSelector, sel, err)
		}
	}
	return selectors, nil
}
