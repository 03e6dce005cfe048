package assembler

import (
	"strings"
	"testing"

	"github.com/dshills/memctx-mcp/internal/analyzer"
	"github.com/dshills/memctx-mcp/pkg/types"
)

var testWeights = map[types.ChunkType]float64{
	types.ChunkCode:         0.40,
	types.ChunkConversation: 0.25,
	types.ChunkNarrative:    0.20,
	types.ChunkMemory:       0.15,
}

func result(content string) types.SearchResult {
	return types.SearchResult{Content: content}
}

func TestAssembleEmptySources(t *testing.T) {
	got := Assemble(Sources{}, testWeights, analyzer.Budget{MaxTokens: 1000})
	if got != "" {
		t.Errorf("Assemble(empty) = %q, want empty string", got)
	}

	got = Assemble(Sources{
		types.ChunkCode:   nil,
		types.ChunkMemory: {},
	}, testWeights, analyzer.Budget{MaxTokens: 1000})
	if got != "" {
		t.Errorf("Assemble(all-empty) = %q, want empty string", got)
	}
}

func TestAssembleSectionsInDescendingWeightOrder(t *testing.T) {
	sources := Sources{
		types.ChunkMemory:       {result("remembered fact")},
		types.ChunkCode:         {result("func main() {}")},
		types.ChunkConversation: {result("we agreed on jsonl")},
	}

	got := Assemble(sources, testWeights, analyzer.Budget{MaxTokens: 1000})

	codeIdx := strings.Index(got, "## Code")
	convIdx := strings.Index(got, "## Conversation")
	memIdx := strings.Index(got, "## Memory")
	if codeIdx < 0 || convIdx < 0 || memIdx < 0 {
		t.Fatalf("missing section headers in output:\n%s", got)
	}
	if !(codeIdx < convIdx && convIdx < memIdx) {
		t.Errorf("sections out of weight order: code=%d conv=%d mem=%d", codeIdx, convIdx, memIdx)
	}
}

func TestAssembleDeduplicatesExactLines(t *testing.T) {
	sources := Sources{
		types.ChunkCode:      {result("shared line\nunique code line")},
		types.ChunkNarrative: {result("shared line\nunique narrative line")},
	}

	got := Assemble(sources, testWeights, analyzer.Budget{MaxTokens: 1000})

	if n := strings.Count(got, "shared line"); n != 1 {
		t.Errorf("duplicate line appears %d times, want 1:\n%s", n, got)
	}
	if !strings.Contains(got, "unique code line") || !strings.Contains(got, "unique narrative line") {
		t.Errorf("unique lines missing from output:\n%s", got)
	}
}

func TestAssembleFullyDuplicateFragmentDropped(t *testing.T) {
	sources := Sources{
		types.ChunkCode:   {result("only line")},
		types.ChunkMemory: {result("only line")},
	}

	got := Assemble(sources, testWeights, analyzer.Budget{MaxTokens: 1000})

	if strings.Contains(got, "## Memory") {
		t.Errorf("section with nothing new should not render:\n%s", got)
	}
}

func TestAssembleTruncatesLowestWeightFirst(t *testing.T) {
	long := strings.Repeat("word ", 50)
	sources := Sources{
		types.ChunkCode:   {result("important code fragment")},
		types.ChunkMemory: {result(strings.TrimSpace(long))},
	}

	got := Assemble(sources, testWeights, analyzer.Budget{MaxTokens: 20})

	if !strings.Contains(got, "important code fragment") {
		t.Errorf("highest-weighted section was trimmed first:\n%s", got)
	}
	if strings.Contains(got, "## Memory") {
		t.Errorf("lowest-weighted section should be dropped under budget pressure:\n%s", got)
	}
}

func TestAssembleRespectsMaxItemsPerSource(t *testing.T) {
	sources := Sources{
		types.ChunkCode: {
			result("fragment one"),
			result("fragment two"),
			result("fragment three"),
		},
	}

	got := Assemble(sources, testWeights, analyzer.Budget{MaxItemsPerSource: 2, MaxTokens: 1000})

	if !strings.Contains(got, "fragment one") || !strings.Contains(got, "fragment two") {
		t.Errorf("top-ranked fragments missing:\n%s", got)
	}
	if strings.Contains(got, "fragment three") {
		t.Errorf("fragment beyond per-source limit included:\n%s", got)
	}
}

func TestAssembleUnboundedWithoutTokenBudget(t *testing.T) {
	long := strings.Repeat("word ", 500)
	sources := Sources{
		types.ChunkCode: {result(strings.TrimSpace(long))},
	}

	got := Assemble(sources, testWeights, analyzer.Budget{})
	if !strings.Contains(got, "word word") {
		t.Errorf("content dropped despite no token budget:\n%s", got)
	}
}
