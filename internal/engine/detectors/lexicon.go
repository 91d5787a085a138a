package detectors

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/Xanaaash/MiMind-sub000/internal/engine"
	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultLexiconYAML []byte

// KeywordTier is one level of the fast classifier's keyword list.
type KeywordTier struct {
	Level   engine.RiskLevel
	Phrases []string
}

// Lexicon holds every phrase list used by the detection passes.
// A Lexicon is immutable once built and safe to share between goroutines.
type Lexicon struct {
	// Tiers are ordered from most to least severe.
	Tiers            []KeywordTier
	HighIntent       []string
	Immediacy        []string
	ModerateDistress []string
}

type lexiconFile struct {
	KeywordTiers struct {
		High   []string `yaml:"high"`
		Medium []string `yaml:"medium"`
		Low    []string `yaml:"low"`
	} `yaml:"keyword_tiers"`
	Semantic struct {
		HighIntent       []string `yaml:"high_intent"`
		Immediacy        []string `yaml:"immediacy"`
		ModerateDistress []string `yaml:"moderate_distress"`
	} `yaml:"semantic"`
}

// DefaultLexicon parses the lexicon compiled into the binary.
func DefaultLexicon() (*Lexicon, error) {
	return ParseLexicon(defaultLexiconYAML)
}

// LoadLexicon reads and parses a lexicon file from disk.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadLexicon: %w", err)
	}
	return ParseLexicon(data)
}

// ParseLexicon builds a Lexicon from YAML. Phrases are normalised the same
// way message text is, and every list must be non-empty.
func ParseLexicon(data []byte) (*Lexicon, error) {
	var f lexiconFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ParseLexicon: %w", err)
	}

	lex := &Lexicon{
		Tiers: []KeywordTier{
			{Level: engine.RiskHigh, Phrases: normalizePhrases(f.KeywordTiers.High)},
			{Level: engine.RiskMedium, Phrases: normalizePhrases(f.KeywordTiers.Medium)},
			{Level: engine.RiskLow, Phrases: normalizePhrases(f.KeywordTiers.Low)},
		},
		HighIntent:       normalizePhrases(f.Semantic.HighIntent),
		Immediacy:        normalizePhrases(f.Semantic.Immediacy),
		ModerateDistress: normalizePhrases(f.Semantic.ModerateDistress),
	}

	for _, tier := range lex.Tiers {
		if len(tier.Phrases) == 0 {
			return nil, fmt.Errorf("ParseLexicon: keyword tier %s is empty", tier.Level)
		}
	}
	if len(lex.HighIntent) == 0 || len(lex.Immediacy) == 0 || len(lex.ModerateDistress) == 0 {
		return nil, fmt.Errorf("ParseLexicon: semantic phrase lists must not be empty")
	}

	return lex, nil
}

func normalizePhrases(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if n := normalizeText(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// apostropheReplacer folds typographic apostrophes so "can’t" matches "can't".
var apostropheReplacer = strings.NewReplacer("’", "'", "‘", "'", "ʼ", "'")

// normalizeText lower-cases text, folds apostrophes and collapses whitespace.
func normalizeText(s string) string {
	s = apostropheReplacer.Replace(strings.ToLower(s))
	return strings.Join(strings.Fields(s), " ")
}

// firstMatch returns the first phrase contained in text.
func firstMatch(text string, phrases []string) (string, bool) {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return p, true
		}
	}
	return "", false
}
