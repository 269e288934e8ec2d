// Package catalog holds the immutable keyword tables used by discovery:
// category to sub-source mapping, niche keywords, the source denylist and
// the source-tag category lookup.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"trendcraft/internal/domain/trend"
)

//go:embed default.yaml
var defaultYAML []byte

// CategoryDef describes one discovery bucket
type CategoryDef struct {
	Key         trend.CategoryKey `yaml:"key" json:"key"`
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description" json:"description"`
	Subreddits  []string          `yaml:"subreddits" json:"subreddits"`
}

// TagRule maps source tags containing any keyword to a category
type TagRule struct {
	Category trend.Category `yaml:"category"`
	Keywords []string       `yaml:"keywords"`
}

// FilterRule holds quality thresholds for one source
type FilterRule struct {
	MinScore    int `yaml:"minScore"`
	MinComments int `yaml:"minComments"`
}

type document struct {
	Categories      []CategoryDef               `yaml:"categories"`
	SourceTagRules  []TagRule                   `yaml:"sourceTagRules"`
	DefaultCategory trend.Category              `yaml:"defaultCategory"`
	Denylist        []string                    `yaml:"denylist"`
	Filters         map[trend.Source]FilterRule `yaml:"filters"`
	Niches          map[string][]string         `yaml:"niches"`
}

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	categories      []CategoryDef
	byKey           map[trend.CategoryKey]CategoryDef
	tagRules        []TagRule
	defaultCategory trend.Category
	denylist        []string
	filters         map[trend.Source]FilterRule
	niches          map[string][]string
}

// Default returns the embedded catalog
func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// MustDefault returns the embedded catalog and panics if it is malformed
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads a catalog file, or the embedded default when path is empty
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse builds a catalog from YAML
func Parse(raw []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(doc.Categories) == 0 {
		return nil, fmt.Errorf("catalog has no categories")
	}

	c := &Catalog{
		byKey:           make(map[trend.CategoryKey]CategoryDef, len(doc.Categories)),
		defaultCategory: doc.DefaultCategory,
		filters:         make(map[trend.Source]FilterRule, len(doc.Filters)),
		niches:          make(map[string][]string, len(doc.Niches)),
	}
	if !c.defaultCategory.Valid() {
		c.defaultCategory = trend.CategoryLifestyle
	}

	for _, def := range doc.Categories {
		if def.Key == "" {
			return nil, fmt.Errorf("catalog category without key")
		}
		if _, dup := c.byKey[def.Key]; dup {
			return nil, fmt.Errorf("duplicate catalog category %q", def.Key)
		}
		c.byKey[def.Key] = def
		c.categories = append(c.categories, def)
	}

	for _, rule := range doc.SourceTagRules {
		if !rule.Category.Valid() {
			return nil, fmt.Errorf("source tag rule has unknown category %q", rule.Category)
		}
		c.tagRules = append(c.tagRules, TagRule{Category: rule.Category, Keywords: normalize(rule.Keywords)})
	}

	c.denylist = normalize(doc.Denylist)

	for source, rule := range doc.Filters {
		c.filters[source] = rule
	}

	for niche, keywords := range doc.Niches {
		c.niches[normalizeNiche(niche)] = normalize(keywords)
	}

	return c, nil
}

// Categories returns the category definitions in catalog order
func (c *Catalog) Categories() []CategoryDef {
	out := make([]CategoryDef, len(c.categories))
	copy(out, c.categories)
	return out
}

// Category looks up a category definition
func (c *Catalog) Category(key trend.CategoryKey) (CategoryDef, bool) {
	def, ok := c.byKey[key]
	return def, ok
}

// HasCategory reports whether key is a known discovery bucket
func (c *Catalog) HasCategory(key trend.CategoryKey) bool {
	_, ok := c.byKey[key]
	return ok
}

// Subreddits returns up to limit sub-sources for the category
func (c *Catalog) Subreddits(key trend.CategoryKey, limit int) []string {
	def, ok := c.byKey[key]
	if !ok {
		return nil
	}
	subs := def.Subreddits
	if limit > 0 && len(subs) > limit {
		subs = subs[:limit]
	}
	out := make([]string, len(subs))
	copy(out, subs)
	return out
}

// CategoryForTag derives a trend category from a source tag using the ordered rules
func (c *Catalog) CategoryForTag(tag string) trend.Category {
	tag = strings.ToLower(tag)
	for _, rule := range c.tagRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(tag, kw) {
				return rule.Category
			}
		}
	}
	return c.defaultCategory
}

// Denylist returns the lower-cased low-quality source names
func (c *Catalog) Denylist() []string {
	out := make([]string, len(c.denylist))
	copy(out, c.denylist)
	return out
}

// FilterFor returns the quality thresholds for a source. Sources without an
// entry use the reddit thresholds.
func (c *Catalog) FilterFor(source trend.Source) FilterRule {
	if rule, ok := c.filters[source]; ok {
		return rule
	}
	return c.filters[trend.SourceReddit]
}

// NicheKeywords returns the keyword list for a niche. Lookup ignores case and surrounding space.
func (c *Catalog) NicheKeywords(niche string) ([]string, bool) {
	kws, ok := c.niches[normalizeNiche(niche)]
	if !ok {
		return nil, false
	}
	out := make([]string, len(kws))
	copy(out, kws)
	return out, true
}

// Niches returns the sorted niche names
func (c *Catalog) Niches() []string {
	names := make([]string, 0, len(c.niches))
	for name := range c.niches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeNiche(niche string) string {
	return strings.ToLower(strings.TrimSpace(niche))
}

func normalize(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}
