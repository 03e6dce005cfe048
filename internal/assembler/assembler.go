// Package assembler merges weighted per-source search results into one
// length-bounded context string.
package assembler

import (
	"strings"

	"github.com/dshills/memctx-mcp/internal/analyzer"
	"github.com/dshills/memctx-mcp/pkg/types"
)

// Sources holds the ranked results from each per-source search.
type Sources map[types.ChunkType][]types.SearchResult

// sectionTitles name the rendered sections.
var sectionTitles = map[types.ChunkType]string{
	types.ChunkCode:         "Code",
	types.ChunkConversation: "Conversation",
	types.ChunkNarrative:    "Narrative",
	types.ChunkMemory:       "Memory",
}

type section struct {
	source    types.ChunkType
	fragments []string
}

// Assemble renders the sources into one context string. Sections appear
// in descending weight order; duplicate lines across fragments are kept
// only at their first occurrence; when the combined size exceeds the
// token budget, fragments are dropped from the lowest-weighted sections
// first. All-empty sources produce an empty string, not an error.
func Assemble(sources Sources, weights map[types.ChunkType]float64, budget analyzer.Budget) string {
	order := analyzer.SortedWeights(weights)

	seenLines := make(map[string]struct{})
	sections := make([]section, 0, len(order))
	for _, source := range order {
		results := sources[source]
		if budget.MaxItemsPerSource > 0 && len(results) > budget.MaxItemsPerSource {
			results = results[:budget.MaxItemsPerSource]
		}

		var fragments []string
		for _, r := range results {
			fragment := dedupeLines(r.Content, seenLines)
			if fragment == "" {
				continue
			}
			fragments = append(fragments, fragment)
		}
		if len(fragments) > 0 {
			sections = append(sections, section{source: source, fragments: fragments})
		}
	}
	if len(sections) == 0 {
		return ""
	}

	if budget.MaxTokens > 0 {
		truncate(sections, budget.MaxTokens)
	}

	var b strings.Builder
	for _, sec := range sections {
		if len(sec.fragments) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("## ")
		b.WriteString(sectionTitles[sec.source])
		b.WriteString("\n\n")
		b.WriteString(strings.Join(sec.fragments, "\n\n"))
	}
	return b.String()
}

// dedupeLines removes lines whose trimmed content has already appeared
// in an earlier fragment. Returns "" when nothing new remains.
func dedupeLines(content string, seen map[string]struct{}) string {
	lines := strings.Split(content, "\n")
	kept := make([]string, 0, len(lines))
	anyContent := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			if _, dup := seen[trimmed]; dup {
				continue
			}
			seen[trimmed] = struct{}{}
			anyContent = true
		}
		kept = append(kept, line)
	}
	if !anyContent {
		return ""
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// truncate drops fragments from the lowest-weighted sections first
// until the combined estimate fits maxTokens. Sections is ordered by
// descending weight, so trimming walks it backwards.
func truncate(sections []section, maxTokens int) {
	total := 0
	for _, sec := range sections {
		total += sectionTokens(sec)
	}

	for i := len(sections) - 1; i >= 0 && total > maxTokens; i-- {
		for len(sections[i].fragments) > 0 && total > maxTokens {
			last := len(sections[i].fragments) - 1
			total -= estimateTokens(sections[i].fragments[last])
			sections[i].fragments = sections[i].fragments[:last]
		}
		if len(sections[i].fragments) == 0 {
			total -= sectionHeaderTokens
		}
	}
}

// sectionHeaderTokens is the flat cost charged per rendered section.
const sectionHeaderTokens = 2

func sectionTokens(sec section) int {
	total := sectionHeaderTokens
	for _, f := range sec.fragments {
		total += estimateTokens(f)
	}
	return total
}

// estimateTokens is a rough whitespace-word count. Close enough for
// budget enforcement; exact tokenizer parity is not a goal.
func estimateTokens(s string) int {
	return len(strings.Fields(s))
}
