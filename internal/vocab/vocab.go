// Package vocab holds the data-driven keyword tables that tune triage
// classification, tone detection, query rewriting, and lexical retrieval.
// The tables live in YAML so they can be tested and adjusted without
// touching control flow.
package vocab

import (
	_ "embed"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/integration-desk/internal/textutil"
)

//go:embed tables.yaml
var embeddedTables []byte

// Tables is the full set of keyword configuration.
type Tables struct {
	Categories       map[string][]string `yaml:"categories"`
	Tones            ToneTables          `yaml:"tones"`
	ReferencePhrases []string            `yaml:"reference_phrases"`
	TechnicalTerms   []string            `yaml:"technical_terms"`
	BareFieldNames   []string            `yaml:"bare_field_names"`
	CuratedContexts  map[string]string   `yaml:"curated_contexts"`
	Synonyms         map[string][]string `yaml:"synonyms"`
	DomainPhrases    []string            `yaml:"domain_phrases"`

	// categoryOrder preserves YAML declaration order for tie-breaking.
	categoryOrder []string
}

// ToneTables groups the tone indicator sets.
type ToneTables struct {
	Urgency     []string `yaml:"urgency"`
	Frustration []string `yaml:"frustration"`
	Question    []string `yaml:"question"`
}

// Default returns the embedded tables. Panics only on a corrupt embed,
// which is a build defect.
func Default() *Tables {
	t, err := parse(embeddedTables)
	if err != nil {
		panic(err)
	}
	return t
}

// LoadFile reads a site-local tables file, replacing the defaults.
func LoadFile(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "vocab: read %s", path)
	}
	return parse(data)
}

func parse(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "vocab: unmarshal tables")
	}

	// Recover category declaration order; map iteration would make
	// tie-breaking nondeterministic.
	var doc struct {
		Categories yaml.Node `yaml:"categories"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "vocab: unmarshal category order")
	}
	for i := 0; i+1 < len(doc.Categories.Content); i += 2 {
		t.categoryOrder = append(t.categoryOrder, doc.Categories.Content[i].Value)
	}

	return &t, nil
}

// CategoryOrder returns category names in declaration order.
func (t *Tables) CategoryOrder() []string {
	return t.categoryOrder
}

// CountHits counts how many of the folded keywords occur in the folded
// text (substring matches).
func CountHits(text string, keywords []string) int {
	folded := textutil.Fold(text)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(folded, textutil.Fold(kw)) {
			hits++
		}
	}
	return hits
}

// ExpandSynonyms returns expansion terms for every synonym-table entry
// whose key occurs as a substring of the folded query, capped at five per
// term, preserving table order within each entry. Entries are visited in
// sorted key order so identical queries always expand identically.
func (t *Tables) ExpandSynonyms(query string) []string {
	folded := textutil.Fold(query)

	keys := make([]string, 0, len(t.Synonyms))
	for term := range t.Synonyms {
		keys = append(keys, term)
	}
	sort.Strings(keys)

	var out []string
	seen := make(map[string]bool)
	for _, term := range keys {
		if !strings.Contains(folded, textutil.Fold(term)) {
			continue
		}
		count := 0
		for _, s := range t.Synonyms[term] {
			if count >= 5 {
				break
			}
			key := textutil.Fold(s)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, s)
			count++
		}
	}
	return out
}
