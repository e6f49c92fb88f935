package hitlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzer_Analyze_Default(t *testing.T) {
	a := NewAnalyzer(DefaultAnalyzerConfig())

	got := a.Analyze("The Quick brown foxes are running")

	assert.Equal(t, []string{"quick", "brown", "fox", "run"}, got)
}

func TestAnalyzer_Analyze_SplitsOnPunctuation(t *testing.T) {
	a := NewAnalyzer(DefaultAnalyzerConfig())

	got := a.Analyze("search-engine,ranking;scores")

	assert.Equal(t, []string{"search", "engin", "rank", "score"}, got)
}

func TestAnalyzer_Analyze_NoStemming(t *testing.T) {
	cfg := DefaultAnalyzerConfig()
	cfg.EnableStemming = false
	a := NewAnalyzer(cfg)

	got := a.Analyze("running foxes")

	assert.Equal(t, []string{"running", "foxes"}, got)
}

func TestAnalyzer_Analyze_KeepsStopwordsWhenDisabled(t *testing.T) {
	cfg := DefaultAnalyzerConfig()
	cfg.EnableStopwords = false
	cfg.EnableStemming = false
	a := NewAnalyzer(cfg)

	got := a.Analyze("the fox")

	assert.Equal(t, []string{"the", "fox"}, got)
}

func TestAnalyzer_Analyze_MinTokenLength(t *testing.T) {
	cfg := DefaultAnalyzerConfig()
	cfg.MinTokenLength = 4
	cfg.EnableStemming = false
	a := NewAnalyzer(cfg)

	got := a.Analyze("go fox quick")

	assert.Equal(t, []string{"quick"}, got)
}

func TestAnalyzer_Analyze_Empty(t *testing.T) {
	a := NewAnalyzer(DefaultAnalyzerConfig())

	assert.Empty(t, a.Analyze(""))
	assert.Empty(t, a.Analyze("  ,,; "))
}
