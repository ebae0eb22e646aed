package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/docuspace/docuspace/internal/llm"
)

// promptChunksPerDoc bounds how many chunks of one document enter the
// prompt, keeping prompt size under control.
const promptChunksPerDoc = 3

// maxThemes caps the common-themes insight.
const maxThemes = 5

// Insight is a cross-group observation attached to a search response.
type Insight struct {
	Type      string   `json:"type"`
	Insight   string   `json:"insight"`
	Documents []string `json:"documents,omitempty"`
}

// Synthesizer turns aggregated context into a cited natural-language answer.
type Synthesizer struct {
	gen llm.Generator
}

func NewSynthesizer(gen llm.Generator) *Synthesizer {
	return &Synthesizer{gen: gen}
}

// Synthesize builds the structured prompt and asks the model for an answer.
// A generation failure degrades to a fallback string: sources have already
// been retrieved and the search must still succeed.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, agg *Aggregation) (string, []Insight) {
	insights := s.insights(query, agg)

	answer, err := s.gen.Generate(ctx, s.buildPrompt(query, agg))
	if err != nil {
		slog.Warn("answer generation failed, returning sources without an answer", "error", err)
		return fmt.Sprintf(
			"I found %d relevant passages across %d document(s), but could not generate an answer: %v",
			agg.TotalMatches, len(agg.Documents), err), insights
	}
	return answer, insights
}

func (s *Synthesizer) buildPrompt(query string, agg *Aggregation) string {
	var b strings.Builder

	b.WriteString("You are an expert document analyst providing comprehensive answers based on multiple documents.\n\n")
	fmt.Fprintf(&b, "SEARCH QUERY: %s\n\n", query)

	docNames := lo.Map(agg.Documents, func(dg *DocumentGroup, _ int) string { return dg.Filename })
	fmt.Fprintf(&b, "DOCUMENTS ANALYZED (%d documents across %d spaces):\n%s\n\n",
		len(agg.Documents), len(agg.Spaces), strings.Join(docNames, ", "))

	b.WriteString("CONTENT FROM DOCUMENTS:\n")
	for _, sg := range agg.Spaces {
		fmt.Fprintf(&b, "\n=== SPACE: %s ===\n", sg.SpaceID)
		for _, dg := range sg.Documents {
			fmt.Fprintf(&b, "\n--- DOCUMENT: %s (relevance %.3f, %d chunks matched) ---\n",
				dg.Filename, dg.MaxSimilarity, dg.ChunkCount)
			for i, m := range dg.Matches {
				if i >= promptChunksPerDoc {
					break
				}
				fmt.Fprintf(&b, "Chunk %d (similarity %.3f):\n%s\n\n", m.Ordinal+1, m.Score, m.Text)
			}
		}
	}

	b.WriteString(`
INSTRUCTIONS:
1. Synthesize information from ALL relevant documents, citing the document each fact came from.
2. If information appears in multiple documents, say so.
3. Note contradictions or differing perspectives between documents.
4. Base the answer ONLY on the provided content; state clearly when it is insufficient.
5. Start with a direct answer, then supporting detail, then a concise summary.

COMPREHENSIVE ANSWER:
`)
	return b.String()
}

// insights emits cross-group observations when the result set spans at least
// two documents. The common-themes insight is a keyword-frequency overlap, a
// lightweight heuristic rather than semantic clustering.
func (s *Synthesizer) insights(query string, agg *Aggregation) []Insight {
	if len(agg.Documents) < 2 {
		return nil
	}

	docNames := lo.Map(agg.Documents, func(dg *DocumentGroup, _ int) string { return dg.Filename })
	out := []Insight{{
		Type: "multi_document_analysis",
		Insight: fmt.Sprintf("Analysis across %d documents in %d space(s) reveals interconnected information about: %s",
			len(agg.Documents), len(agg.Spaces), query),
		Documents: docNames,
	}}

	if themes := commonThemes(agg.Documents); len(themes) > 0 {
		out = append(out, Insight{
			Type:      "common_themes",
			Insight:   "Recurring terms across documents: " + strings.Join(themes, ", "),
			Documents: docNames,
		})
	}
	return out
}

// commonThemes returns keywords that occur in more than one document group,
// most widespread first.
func commonThemes(groups []*DocumentGroup) []string {
	seenIn := make(map[string]int)
	var order []string

	for _, dg := range groups {
		var words []string
		for _, m := range dg.Matches {
			words = append(words, extractKeywords(m.Text)...)
		}
		for _, w := range lo.Uniq(words) {
			if seenIn[w] == 0 {
				order = append(order, w)
			}
			seenIn[w]++
		}
	}

	themes := lo.Filter(order, func(w string, _ int) bool { return seenIn[w] >= 2 })
	sort.SliceStable(themes, func(i, j int) bool { return seenIn[themes[i]] > seenIn[themes[j]] })
	if len(themes) > maxThemes {
		themes = themes[:maxThemes]
	}
	return themes
}
