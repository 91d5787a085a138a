package crisis

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// DefaultLocaleKey is the cache payload key holding the fallback record.
const DefaultLocaleKey = "default"

//go:embed hotlines.yaml
var defaultHotlinesYAML []byte

//go:embed hotlines.schema.json
var hotlineSchemaJSON []byte

// HotlineRecord is one crisis-support contact.
type HotlineRecord struct {
	Name  string `json:"name" yaml:"name"`
	Phone string `json:"phone" yaml:"phone"`
	Text  string `json:"text" yaml:"text"`
}

type hotlineFile struct {
	Default HotlineRecord            `yaml:"default"`
	Locales map[string]HotlineRecord `yaml:"locales"`
}

// HotlineResolver maps a locale to its crisis line. It is read-only after
// construction.
type HotlineResolver struct {
	byLocale map[string]HotlineRecord
	folded   map[string]string // folded locale -> canonical key
	fallback HotlineRecord
}

// NewHotlineResolver builds a resolver over table with the given fallback.
func NewHotlineResolver(table map[string]HotlineRecord, fallback HotlineRecord) *HotlineResolver {
	r := &HotlineResolver{
		byLocale: make(map[string]HotlineRecord, len(table)),
		folded:   make(map[string]string, len(table)),
		fallback: fallback,
	}
	for locale, rec := range table {
		r.byLocale[locale] = rec
		r.folded[foldLocale(locale)] = locale
	}
	return r
}

// DefaultHotlineResolver returns the resolver over the embedded table.
func DefaultHotlineResolver() (*HotlineResolver, error) {
	return ParseHotlines(defaultHotlinesYAML)
}

// LoadHotlineResolver reads an operator-supplied hotline file.
func LoadHotlineResolver(path string) (*HotlineResolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadHotlineResolver: %w", err)
	}
	return ParseHotlines(data)
}

// ParseHotlines validates YAML against the hotline schema and builds a resolver.
func ParseHotlines(data []byte) (*HotlineResolver, error) {
	if err := validateHotlines(data); err != nil {
		return nil, fmt.Errorf("ParseHotlines: %w", err)
	}

	var f hotlineFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ParseHotlines: %w", err)
	}
	return NewHotlineResolver(f.Locales, f.Default), nil
}

func validateHotlines(data []byte) error {
	var schemaObj any
	if err := json.Unmarshal(hotlineSchemaJSON, &schemaObj); err != nil {
		return fmt.Errorf("schema unmarshal: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("hotlines.schema.json", schemaObj); err != nil {
		return fmt.Errorf("schema compile: %w", err)
	}
	sch, err := c.Compile("hotlines.schema.json")
	if err != nil {
		return fmt.Errorf("schema compile: %w", err)
	}

	// Round-trip through JSON so the validator sees plain JSON types.
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("convert yaml: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("convert yaml: %w", err)
	}

	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// Resolve returns the record for locale. Lookup is exact first, then
// case-insensitive with "_" treated as "-". Unknown locales get the fallback.
func (r *HotlineResolver) Resolve(locale string) HotlineRecord {
	if rec, ok := r.byLocale[locale]; ok {
		return rec
	}
	if key, ok := r.folded[foldLocale(locale)]; ok {
		return r.byLocale[key]
	}
	return r.fallback
}

// Fallback returns the generic emergency record.
func (r *HotlineResolver) Fallback() HotlineRecord {
	return r.fallback
}

// Locales returns the curated locale keys in sorted order.
func (r *HotlineResolver) Locales() []string {
	out := make([]string, 0, len(r.byLocale))
	for locale := range r.byLocale {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// LocalCachePayload returns a fresh copy of the whole table plus the
// fallback under DefaultLocaleKey, for clients that cache offline.
func (r *HotlineResolver) LocalCachePayload() map[string]HotlineRecord {
	out := make(map[string]HotlineRecord, len(r.byLocale)+1)
	for locale, rec := range r.byLocale {
		out[locale] = rec
	}
	out[DefaultLocaleKey] = r.fallback
	return out
}

func foldLocale(locale string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(locale)), "_", "-")
}
