// Package enrich derives a summary, keywords and a sentiment label from
// note text. LocalEnricher runs offline with word statistics;
// OllamaEnricher asks a local language model.
package enrich

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/gaurav-prasanna/notepipe/core"
	"github.com/gaurav-prasanna/notepipe/core/chunk"
)

// Sentiment labels.
const (
	Positive = "positive"
	Negative = "negative"
	Neutral  = "neutral"
)

// LocalEnricher summarizes by truncation, picks the most frequent
// non-stopwords as keywords and scores sentiment against a small lexicon.
type LocalEnricher struct {
	SummaryWords int
	MaxKeywords  int
}

// NewLocal creates a LocalEnricher. Non-positive sizes fall back to 50
// summary words and 5 keywords.
func NewLocal(summaryWords, maxKeywords int) *LocalEnricher {
	if summaryWords <= 0 {
		summaryWords = 50
	}
	if maxKeywords <= 0 {
		maxKeywords = 5
	}
	return &LocalEnricher{SummaryWords: summaryWords, MaxKeywords: maxKeywords}
}

// Enrich never fails; it honours ctx only before starting.
func (e *LocalEnricher) Enrich(ctx context.Context, text string) (core.Enrichment, error) {
	if err := ctx.Err(); err != nil {
		return core.Enrichment{}, err
	}

	words := tokenize(text)
	return core.Enrichment{
		Summary:   Summarize(text, e.SummaryWords),
		Keywords:  keywords(words, e.MaxKeywords),
		Sentiment: sentiment(words),
	}, nil
}

// Summarize returns the first n words of text, with an ellipsis when the
// text was longer.
func Summarize(text string, n int) string {
	first, cut := chunk.New(n).First(text)
	if cut {
		return first + "..."
	}
	return first
}

// tokenize lowercases text and splits it on anything that is not a letter,
// digit or apostrophe.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	out := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, "'"); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func keywords(words []string, limit int) []string {
	counts := make(map[string]int)
	first := make(map[string]int)
	for i, w := range words {
		if len([]rune(w)) < 3 || stopwords[w] || isNumber(w) {
			continue
		}
		if _, ok := counts[w]; !ok {
			first[w] = i
		}
		counts[w]++
	}

	ranked := make([]string, 0, len(counts))
	for w := range counts {
		ranked = append(ranked, w)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		return first[a] < first[b]
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func sentiment(words []string) string {
	score := 0
	for _, w := range words {
		switch {
		case positiveWords[w]:
			score++
		case negativeWords[w]:
			score--
		}
	}
	switch {
	case score > 0:
		return Positive
	case score < 0:
		return Negative
	default:
		return Neutral
	}
}

func isNumber(w string) bool {
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

var stopwords = set(
	"the", "and", "for", "are", "but", "not", "you", "all", "any", "can",
	"had", "her", "was", "one", "our", "out", "has", "have", "him", "his",
	"how", "its", "may", "new", "now", "old", "see", "two", "way", "who",
	"did", "get", "let", "put", "say", "she", "too", "use", "this", "that",
	"with", "from", "they", "them", "then", "than", "there", "their", "what",
	"when", "where", "which", "while", "will", "would", "could", "should",
	"been", "being", "were", "into", "onto", "about", "over", "under", "after",
	"before", "again", "also", "just", "only", "very", "some", "such", "more",
	"most", "other", "each", "both", "your", "yours", "mine", "ours", "these",
	"those", "here", "because", "does", "doing", "done", "off", "own", "same",
	"why", "yet", "via", "per", "it's", "i'm", "don't", "can't", "won't",
)

var positiveWords = set(
	"good", "great", "excellent", "amazing", "awesome", "happy", "love",
	"loved", "lovely", "nice", "wonderful", "fantastic", "beautiful", "best",
	"better", "enjoy", "enjoyed", "fun", "glad", "success", "successful",
	"win", "won", "pleased", "perfect", "delight", "delightful", "calm",
	"relaxing", "helpful", "impressive", "brilliant", "superb",
)

var negativeWords = set(
	"bad", "terrible", "awful", "horrible", "sad", "hate", "hated", "angry",
	"poor", "worst", "worse", "fail", "failed", "failure", "problem",
	"problems", "broken", "bug", "bugs", "lost", "pain", "painful", "annoying",
	"disappointed", "disappointing", "ugly", "wrong", "error", "errors",
	"tired", "sick", "delay", "delayed", "expensive",
)
