// Package corpus maintains incremental term and document frequency
// statistics over the ingested chunks. The statistics feed the BM25
// keyword fallback ranker and nothing else; they are persisted as a
// single JSON snapshot and rebuilt from scratch when the minimum
// vocabulary invariant is violated.
package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/dshills/memctx-mcp/pkg/types"
)

// DefaultMinVocabulary is the vocabulary size below which the keyword
// fallback ranker is considered degraded rather than authoritative.
const DefaultMinVocabulary = 100

// stopwords excluded from term statistics and query tokens.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "but": {}, "by": {}, "for": {}, "from": {}, "has": {},
	"have": {}, "in": {}, "is": {}, "it": {}, "its": {}, "of": {},
	"on": {}, "or": {}, "that": {}, "the": {}, "this": {}, "to": {},
	"was": {}, "were": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "who": {}, "will": {}, "with": {},
}

// Tokenize splits text into search terms: lowercased, non-alphanumeric
// runes treated as separators, stop-words and single-character tokens
// dropped. The same tokenizer is used for corpus accumulation, BM25
// scoring, and query analysis so term statistics stay comparable.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, ok := stopwords[f]; ok {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// Stats accumulates term and document frequencies. Mutation is additive
// only; a snapshot is never partially rolled back.
type Stats struct {
	mu sync.RWMutex

	termDocFreq    map[string]int
	totalDocuments int
	totalTerms     int
	avgDocLength   float64
}

// snapshotFile is the on-disk representation of Stats.
type snapshotFile struct {
	TermDocFreq    map[string]int `json:"term_doc_freq"`
	TotalDocuments int            `json:"total_documents"`
	TotalTerms     int            `json:"total_terms"`
	AvgDocLength   float64        `json:"avg_doc_length"`
}

// NewStats creates an empty statistics accumulator.
func NewStats() *Stats {
	return &Stats{
		termDocFreq: make(map[string]int),
	}
}

// Update tokenizes text as one document and increments the per-term
// document frequencies and running totals.
func (s *Stats) Update(text string) {
	tokens := Tokenize(text)

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		s.termDocFreq[tok]++
	}

	s.totalDocuments++
	s.totalTerms += len(tokens)
	s.avgDocLength = float64(s.totalTerms) / float64(s.totalDocuments)
}

// DocFreq returns the number of documents containing term.
func (s *Stats) DocFreq(term string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.termDocFreq[term]
}

// TotalDocuments returns the number of documents processed.
func (s *Stats) TotalDocuments() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalDocuments
}

// AvgDocLength returns the mean token count per document.
func (s *Stats) AvgDocLength() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.avgDocLength
}

// VocabularySize returns the number of distinct terms observed.
func (s *Stats) VocabularySize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.termDocFreq)
}

// CheckSufficient returns ErrCorpusStatsInsufficient when the observed
// vocabulary is below minVocabulary. minVocabulary <= 0 selects the
// default.
func (s *Stats) CheckSufficient(minVocabulary int) error {
	if minVocabulary <= 0 {
		minVocabulary = DefaultMinVocabulary
	}
	if size := s.VocabularySize(); size < minVocabulary {
		return fmt.Errorf("%w: vocabulary %d below minimum %d",
			types.ErrCorpusStatsInsufficient, size, minVocabulary)
	}
	return nil
}

// Snapshot writes the statistics to path as one JSON document. The file
// is written to a temp file and renamed so readers never observe a
// partial snapshot.
func (s *Stats) Snapshot(path string) error {
	s.mu.RLock()
	snap := snapshotFile{
		TermDocFreq:    make(map[string]int, len(s.termDocFreq)),
		TotalDocuments: s.totalDocuments,
		TotalTerms:     s.totalTerms,
		AvgDocLength:   s.avgDocLength,
	}
	for term, df := range s.termDocFreq {
		snap.TermDocFreq[term] = df
	}
	s.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal corpus snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write corpus snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace corpus snapshot: %w", err)
	}
	return nil
}

// Load replaces the statistics with the snapshot at path. A missing
// file leaves the accumulator empty and is not an error.
func (s *Stats) Load(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read corpus snapshot: %w", err)
	}

	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse corpus snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.termDocFreq = snap.TermDocFreq
	if s.termDocFreq == nil {
		s.termDocFreq = make(map[string]int)
	}
	s.totalDocuments = snap.TotalDocuments
	s.totalTerms = snap.TotalTerms
	s.avgDocLength = snap.AvgDocLength
	return nil
}

// Reset discards all accumulated statistics. Used when rebuilding after
// a violated vocabulary invariant.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.termDocFreq = make(map[string]int)
	s.totalDocuments = 0
	s.totalTerms = 0
	s.avgDocLength = 0
}
