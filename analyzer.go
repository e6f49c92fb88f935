// ═══════════════════════════════════════════════════════════════════════════════
// TEXT ANALYSIS FOR IN-MEMORY SEGMENTS
// ═══════════════════════════════════════════════════════════════════════════════
// Real deployments hand us segments whose terms were produced by an external
// analysis pipeline. The in-memory segment builder still needs *some* pipeline
// so that text fields can be indexed directly:
//
//  1. Tokenization   → Split text on anything that is not a letter or digit
//  2. Lowercasing    → "Quick" → "quick"
//  3. Stop words     → drop "the", "a", ...
//  4. Length filter  → drop tokens shorter than MinTokenLength
//  5. Stemming       → Snowball English stemmer ("running" → "run")
//
// Keyword fields (ids, prices, categories) bypass the analyzer entirely, see
// SegmentBuilder.AddKeyword.
// ═══════════════════════════════════════════════════════════════════════════════

package hitlist

import (
	"strings"
	"unicode"

	snowballeng "github.com/kljensen/snowball/english"
)

// AnalyzerConfig holds configuration options for text analysis
type AnalyzerConfig struct {
	MinTokenLength  int  // Minimum token length to keep (default: 2)
	EnableStemming  bool // Whether to apply stemming (default: true)
	EnableStopwords bool // Whether to remove stopwords (default: true)
}

// DefaultAnalyzerConfig returns the standard analyzer configuration
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		MinTokenLength:  2,
		EnableStemming:  true,
		EnableStopwords: true,
	}
}

// Analyzer turns raw text into index terms.
type Analyzer struct {
	config AnalyzerConfig
}

// NewAnalyzer creates an analyzer with the given configuration.
func NewAnalyzer(config AnalyzerConfig) *Analyzer {
	return &Analyzer{config: config}
}

// Analyze runs the full pipeline over text.
//
// Example:
//
//	a := NewAnalyzer(DefaultAnalyzerConfig())
//	a.Analyze("The Running Foxes") // ["run", "fox"]
func (a *Analyzer) Analyze(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		token := strings.ToLower(f)
		if a.config.EnableStopwords && isStopword(token) {
			continue
		}
		if len(token) < a.config.MinTokenLength {
			continue
		}
		if a.config.EnableStemming {
			token = snowballeng.Stem(token, false)
		}
		tokens = append(tokens, token)
	}
	return tokens
}

func isStopword(token string) bool {
	_, exists := englishStopwords[token]
	return exists
}

// englishStopwords is the classic English stop set.
var englishStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "if": {}, "in": {}, "into": {}, "is": {},
	"it": {}, "no": {}, "not": {}, "of": {}, "on": {}, "or": {}, "such": {},
	"that": {}, "the": {}, "their": {}, "then": {}, "there": {}, "these": {},
	"they": {}, "this": {}, "to": {}, "was": {}, "will": {}, "with": {},
}
