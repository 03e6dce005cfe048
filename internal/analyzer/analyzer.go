// Package analyzer classifies queries and recommends retrieval
// parameters. Analysis is a pure function of the query text and static
// indicator tables: the same query always yields the same complexity
// score, query type, source weights, and context budget.
package analyzer

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dshills/memctx-mcp/internal/corpus"
	"github.com/dshills/memctx-mcp/pkg/types"
)

// QueryType is the dominant indicator category of a query.
type QueryType string

const (
	TypeFactual     QueryType = "factual"
	TypeProcedural  QueryType = "procedural"
	TypeConceptual  QueryType = "conceptual"
	TypeComparative QueryType = "comparative"
	TypeGeneral     QueryType = "general"
)

// Budget bounds how much context a query earns. Both fields scale
// monotonically with the complexity score.
type Budget struct {
	MaxItemsPerSource int `json:"max_items_per_source"`
	MaxTokens         int `json:"max_tokens"`
}

// Analysis is the full recommendation for one query.
type Analysis struct {
	Complexity     float64                     `json:"complexity"`
	Type           QueryType                   `json:"type"`
	KeywordDensity float64                     `json:"keyword_density"`
	Weights        map[types.ChunkType]float64 `json:"weights"`
	Budget         Budget                      `json:"budget"`
}

// complexityIndicators are words that mark a query as needing deeper
// context regardless of its length.
var complexityIndicators = map[string]struct{}{
	"why": {}, "how": {}, "explain": {}, "analyze": {}, "compare": {},
	"difference": {}, "architecture": {}, "design": {}, "tradeoff": {},
	"relationship": {}, "implications": {}, "optimize": {}, "debug": {},
	"refactor": {}, "interaction": {},
}

// typeIndicators map each query type to its marker words. The type with
// the most matches wins; ties resolve in the fixed order below and a
// query matching nothing is general.
var typeIndicators = map[QueryType][]string{
	TypeFactual:     {"what", "when", "where", "who", "which", "define", "list", "name"},
	TypeProcedural:  {"how", "steps", "install", "configure", "setup", "build", "run", "create", "implement", "fix"},
	TypeConceptual:  {"why", "explain", "concept", "architecture", "design", "meaning", "understand", "purpose"},
	TypeComparative: {"compare", "versus", "vs", "difference", "better", "tradeoff", "prefer", "alternative"},
}

// typeOrder fixes tie-breaking so classification is deterministic.
var typeOrder = []QueryType{TypeFactual, TypeProcedural, TypeConceptual, TypeComparative}

// sourceIndicators nudge the default source weights when a query leans
// toward one kind of content.
var sourceIndicators = map[types.ChunkType][]string{
	types.ChunkCode:         {"code", "function", "bug", "error", "api", "test", "implement", "class", "method", "compile"},
	types.ChunkConversation: {"said", "discussed", "talked", "conversation", "earlier", "agreed", "asked"},
	types.ChunkNarrative:    {"document", "notes", "readme", "story", "wrote", "description"},
	types.ChunkMemory:       {"remember", "recall", "previous", "before", "last", "history"},
}

// defaultWeights are the starting source weights before nudging. They
// sum to 1.
var defaultWeights = map[types.ChunkType]float64{
	types.ChunkCode:         0.40,
	types.ChunkConversation: 0.25,
	types.ChunkNarrative:    0.20,
	types.ChunkMemory:       0.15,
}

// weightNudge is added per indicator hit, scaled by keyword density.
const weightNudge = 0.10

// Budget bounds.
const (
	minItemsPerSource = 3
	maxItemsPerSource = 12
	minTokenBudget    = 800
	maxTokenBudget    = 4000
)

// Analyze classifies the query. Empty or whitespace-only queries are an
// explicit ErrInvalidInput.
func Analyze(query string) (*Analysis, error) {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: empty query", types.ErrInvalidInput)
	}

	wordSet := make(map[string]struct{}, len(words))
	for _, w := range words {
		wordSet[strings.Trim(w, ".,;:!?\"'()")] = struct{}{}
	}

	complexity := complexityScore(query, words, wordSet)

	return &Analysis{
		Complexity:     complexity,
		Type:           classify(wordSet),
		KeywordDensity: KeywordDensity(query),
		Weights:        sourceWeights(words, wordSet),
		Budget:         budgetFor(complexity),
	}, nil
}

// complexityScore blends indicator hits with word count and average
// sentence length, clamped to [0, 1].
func complexityScore(query string, words []string, wordSet map[string]struct{}) float64 {
	indicators := 0
	for w := range wordSet {
		if _, ok := complexityIndicators[w]; ok {
			indicators++
		}
	}
	indicatorScore := math.Min(float64(indicators)*0.25, 1)

	lengthScore := math.Min(float64(len(words))/30, 1)

	sentences := strings.FieldsFunc(query, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	sentenceCount := 0
	for _, s := range sentences {
		if strings.TrimSpace(s) != "" {
			sentenceCount++
		}
	}
	if sentenceCount == 0 {
		sentenceCount = 1
	}
	avgSentence := float64(len(words)) / float64(sentenceCount)
	sentenceScore := math.Min(avgSentence/25, 1)

	score := 0.5*indicatorScore + 0.3*lengthScore + 0.2*sentenceScore
	return math.Min(math.Max(score, 0), 1)
}

// classify returns the query type with the most indicator matches,
// general when nothing matches.
func classify(wordSet map[string]struct{}) QueryType {
	best := TypeGeneral
	bestCount := 0
	for _, qt := range typeOrder {
		count := 0
		for _, marker := range typeIndicators[qt] {
			if _, ok := wordSet[marker]; ok {
				count++
			}
		}
		if count > bestCount {
			best = qt
			bestCount = count
		}
	}
	return best
}

// sourceWeights nudges the defaults by per-source keyword density and
// renormalizes to sum exactly 1.
func sourceWeights(words []string, wordSet map[string]struct{}) map[types.ChunkType]float64 {
	weights := make(map[types.ChunkType]float64, len(defaultWeights))
	for source, w := range defaultWeights {
		weights[source] = w
	}

	for source, markers := range sourceIndicators {
		hits := 0
		for _, marker := range markers {
			if _, ok := wordSet[marker]; ok {
				hits++
			}
		}
		if hits > 0 {
			density := float64(hits) / float64(len(words))
			weights[source] += weightNudge * math.Min(density*4, 1)
		}
	}

	var total float64
	for _, w := range weights {
		total += w
	}
	for source := range weights {
		weights[source] /= total
	}
	return weights
}

// budgetFor scales the context budget linearly with complexity.
func budgetFor(complexity float64) Budget {
	items := minItemsPerSource + int(math.Round(complexity*float64(maxItemsPerSource-minItemsPerSource)))
	tokens := minTokenBudget + int(complexity*float64(maxTokenBudget-minTokenBudget))
	return Budget{MaxItemsPerSource: items, MaxTokens: tokens}
}

// KeywordDensity reports the fraction of query tokens that survive
// tokenization, a rough signal of how much lexical content a query
// carries. It is part of every Analysis and surfaced in the
// assemble_context response.
func KeywordDensity(query string) float64 {
	words := strings.Fields(query)
	if len(words) == 0 {
		return 0
	}
	return float64(len(corpus.Tokenize(query))) / float64(len(words))
}

// SortedWeights returns the sources ordered by descending weight with
// ties broken by source name, for deterministic assembly order.
func SortedWeights(weights map[types.ChunkType]float64) []types.ChunkType {
	sources := make([]types.ChunkType, 0, len(weights))
	for source := range weights {
		sources = append(sources, source)
	}
	sort.Slice(sources, func(a, b int) bool {
		if weights[sources[a]] != weights[sources[b]] {
			return weights[sources[a]] > weights[sources[b]]
		}
		return sources[a] < sources[b]
	})
	return sources
}
