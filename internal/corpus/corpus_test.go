package corpus

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/dshills/memctx-mcp/pkg/types"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "lowercase and split",
			text: "Baking a Cake",
			want: []string{"baking", "cake"},
		},
		{
			name: "strip punctuation",
			text: "car-engine repair: pistons!",
			want: []string{"car", "engine", "repair", "pistons"},
		},
		{
			name: "drop stopwords and single chars",
			text: "the cake is a lie x",
			want: []string{"cake", "lie"},
		},
		{
			name: "empty input",
			text: "",
			want: []string{},
		},
		{
			name: "numbers survive",
			text: "error 404 at line 12",
			want: []string{"error", "404", "line", "12"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("Tokenize(%q) = %v, want %v", tt.text, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Tokenize(%q)[%d] = %q, want %q", tt.text, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestStatsUpdate(t *testing.T) {
	s := NewStats()
	s.Update("apple pie recipe")
	s.Update("apple tart recipe")

	if got := s.TotalDocuments(); got != 2 {
		t.Errorf("TotalDocuments() = %d, want 2", got)
	}
	if got := s.DocFreq("apple"); got != 2 {
		t.Errorf("DocFreq(apple) = %d, want 2", got)
	}
	if got := s.DocFreq("pie"); got != 1 {
		t.Errorf("DocFreq(pie) = %d, want 1", got)
	}
	if got := s.DocFreq("missing"); got != 0 {
		t.Errorf("DocFreq(missing) = %d, want 0", got)
	}
	if got := s.AvgDocLength(); math.Abs(got-3.0) > 1e-9 {
		t.Errorf("AvgDocLength() = %v, want 3.0", got)
	}
	if got := s.VocabularySize(); got != 4 {
		t.Errorf("VocabularySize() = %d, want 4", got)
	}
}

func TestStatsRepeatedTermCountsOnce(t *testing.T) {
	s := NewStats()
	s.Update("cake cake cake")

	// Document frequency counts documents, not occurrences
	if got := s.DocFreq("cake"); got != 1 {
		t.Errorf("DocFreq(cake) = %d, want 1", got)
	}
}

func TestCheckSufficient(t *testing.T) {
	s := NewStats()
	for i := 0; i < 10; i++ {
		s.Update(fmt.Sprintf("uniqueterm%d appears here", i))
	}

	// Vocabulary ~12 terms, below the default minimum of 100
	err := s.CheckSufficient(0)
	if !errors.Is(err, types.ErrCorpusStatsInsufficient) {
		t.Errorf("CheckSufficient(0) = %v, want ErrCorpusStatsInsufficient", err)
	}

	// Explicit lower minimum accepts the same corpus
	if err := s.CheckSufficient(5); err != nil {
		t.Errorf("CheckSufficient(5) = %v, want nil", err)
	}
}

func TestSnapshotLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.json")

	s := NewStats()
	s.Update("apple pie recipe")
	s.Update("car engine repair")

	if err := s.Snapshot(path); err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	restored := NewStats()
	if err := restored.Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if restored.TotalDocuments() != s.TotalDocuments() {
		t.Errorf("restored TotalDocuments = %d, want %d", restored.TotalDocuments(), s.TotalDocuments())
	}
	if restored.VocabularySize() != s.VocabularySize() {
		t.Errorf("restored VocabularySize = %d, want %d", restored.VocabularySize(), s.VocabularySize())
	}
	if restored.DocFreq("apple") != 1 {
		t.Errorf("restored DocFreq(apple) = %d, want 1", restored.DocFreq("apple"))
	}
	if math.Abs(restored.AvgDocLength()-s.AvgDocLength()) > 1e-9 {
		t.Errorf("restored AvgDocLength = %v, want %v", restored.AvgDocLength(), s.AvgDocLength())
	}
}

func TestLoadMissingFileIsNotError(t *testing.T) {
	s := NewStats()
	if err := s.Load(filepath.Join(t.TempDir(), "absent.json")); err != nil {
		t.Errorf("Load(missing) = %v, want nil", err)
	}
	if s.TotalDocuments() != 0 {
		t.Errorf("TotalDocuments after missing load = %d, want 0", s.TotalDocuments())
	}
}

func TestReset(t *testing.T) {
	s := NewStats()
	s.Update("some content here")
	s.Reset()

	if s.VocabularySize() != 0 || s.TotalDocuments() != 0 {
		t.Errorf("Reset left vocabulary=%d documents=%d", s.VocabularySize(), s.TotalDocuments())
	}
}
