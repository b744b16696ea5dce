// Package lexicon loads the word lists the analysis pipeline scores against:
// sentiment valences, negations, intensifiers, stopwords, spam phrases and interest synonyms.
// The embedded lexicon.json is the base; an optional YAML overlay adds or overrides entries
package lexicon

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"audiencepulse/internal/core/normalize"
)

//go:embed lexicon.json
var embedded []byte

type rawSentiment struct {
	Positive map[string]float64 `json:"positive" yaml:"positive"`
	Negative map[string]float64 `json:"negative" yaml:"negative"`
}

type rawSpam struct {
	Phrases       []string `json:"phrases" yaml:"phrases"`
	CallsToAction []string `json:"calls_to_action" yaml:"calls_to_action"`
}

type rawLexicon struct {
	Version      int                 `json:"version" yaml:"version"`
	Sentiment    rawSentiment        `json:"sentiment" yaml:"sentiment"`
	Negations    []string            `json:"negations" yaml:"negations"`
	Intensifiers map[string]float64  `json:"intensifiers" yaml:"intensifiers"`
	Stopwords    []string            `json:"stopwords" yaml:"stopwords"`
	Spam         rawSpam             `json:"spam" yaml:"spam"`
	Synonyms     map[string][]string `json:"synonyms" yaml:"synonyms"`
}

// Lexicon is a compiled, read-only word pack. Every key is normalized
type Lexicon struct {
	Version int

	// Valence maps a word to a signed score; positive words > 0, negative words < 0
	Valence      map[string]float64
	Negations    map[string]struct{}
	Intensifiers map[string]float64
	Stopwords    map[string]struct{}

	// SpamPhrases are normalized phrases matched as substrings of a normalized comment
	SpamPhrases []string
	// CallsToAction turn a comment with a link into link-bait
	CallsToAction []string

	// Synonyms maps a term to its curated interest label
	Synonyms map[string]string
}

// Load returns the compiled embedded lexicon
func Load() (*Lexicon, error) {
	var raw rawLexicon
	if err := json.Unmarshal(embedded, &raw); err != nil {
		return nil, fmt.Errorf("lexicon: parse lexicon.json: %w", err)
	}
	if raw.Version != 1 {
		return nil, fmt.Errorf("lexicon: unsupported lexicon.json version %d (want 1)", raw.Version)
	}
	lx := &Lexicon{
		Version:      raw.Version,
		Valence:      make(map[string]float64, 256),
		Negations:    make(map[string]struct{}, 32),
		Intensifiers: make(map[string]float64, 32),
		Stopwords:    make(map[string]struct{}, 256),
		Synonyms:     make(map[string]string, 128),
	}
	lx.apply(raw)
	return lx, nil
}

// MustLoad is Load that panics; the embedded pack is part of the binary
func MustLoad() *Lexicon {
	lx, err := Load()
	if err != nil {
		panic(err)
	}
	return lx
}

// LoadWithOverlay loads the embedded lexicon and merges the YAML file at path over it.
// An empty path returns the embedded lexicon
func LoadWithOverlay(path string) (*Lexicon, error) {
	lx, err := Load()
	if err != nil || path == "" {
		return lx, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lexicon: read overlay %s: %w", path, err)
	}
	if err := lx.MergeYAML(b); err != nil {
		return nil, fmt.Errorf("lexicon: overlay %s: %w", path, err)
	}
	return lx, nil
}

// MergeYAML merges a YAML document of the same shape as lexicon.json.
// Valences and intensifiers override, lists append and synonyms re-point terms
func (lx *Lexicon) MergeYAML(b []byte) error {
	var raw rawLexicon
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return err
	}
	lx.apply(raw)
	return nil
}

func (lx *Lexicon) apply(raw rawLexicon) {
	for w, v := range raw.Sentiment.Positive {
		if k := key(w); k != "" {
			lx.Valence[k] = abs(v)
		}
	}
	for w, v := range raw.Sentiment.Negative {
		if k := key(w); k != "" {
			lx.Valence[k] = -abs(v)
		}
	}
	for _, w := range raw.Negations {
		if k := key(w); k != "" {
			lx.Negations[k] = struct{}{}
		}
	}
	for w, m := range raw.Intensifiers {
		if k := key(w); k != "" && m > 0 {
			lx.Intensifiers[k] = m
		}
	}
	for _, w := range raw.Stopwords {
		if k := key(w); k != "" {
			lx.Stopwords[k] = struct{}{}
		}
	}
	lx.SpamPhrases = mergePhrases(lx.SpamPhrases, raw.Spam.Phrases)
	lx.CallsToAction = mergePhrases(lx.CallsToAction, raw.Spam.CallsToAction)

	// deterministic: labels applied in sorted order so a term listed twice lands on the last label
	labels := make([]string, 0, len(raw.Synonyms))
	for l := range raw.Synonyms {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		label := key(l)
		if label == "" {
			continue
		}
		for _, term := range raw.Synonyms[l] {
			if k := key(term); k != "" {
				lx.Synonyms[k] = label
			}
		}
	}
}

// IsStopword reports whether term is a stopword
func (lx *Lexicon) IsStopword(term string) bool {
	_, ok := lx.Stopwords[term]
	return ok
}

// IsNegation reports whether term flips the next sentiment word
func (lx *Lexicon) IsNegation(term string) bool {
	_, ok := lx.Negations[term]
	return ok
}

// SynonymOf returns the curated label for term, if any
func (lx *Lexicon) SynonymOf(term string) (string, bool) {
	l, ok := lx.Synonyms[term]
	return l, ok
}

// key normalizes a single word; phrases keep their inner spaces
func key(w string) string {
	return normalize.Text(strings.TrimSpace(w))
}

func mergePhrases(have, add []string) []string {
	seen := make(map[string]struct{}, len(have)+len(add))
	for _, p := range have {
		seen[p] = struct{}{}
	}
	for _, p := range add {
		p = key(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		have = append(have, p)
	}
	return have
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
