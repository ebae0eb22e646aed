package rag

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/docuspace/docuspace/internal/vector"
)

// Relevance thresholds and the chunks-per-page ratio are heuristics.
// Tunable, not load-bearing.
const (
	relevanceHigh     = 0.8
	relevanceModerate = 0.6
	relevanceSomewhat = 0.4

	chunksPerPage = 3

	previewLength = 200
	maxKeywords   = 10
)

// Source is one matched chunk as surfaced to callers, enriched with
// presentation metadata.
type Source struct {
	ID                uuid.UUID `json:"id"`
	Filename          string    `json:"filename"`
	SpaceID           string    `json:"space_id"`
	ChunkOrdinal      int       `json:"chunk_ordinal"`
	SimilarityScore   float64   `json:"similarity_score"`
	TextPreview       string    `json:"text_preview"`
	FullText          string    `json:"full_text"`
	EstimatedPage     int       `json:"estimated_page"`
	TotalChunksInDoc  int       `json:"total_chunks_in_document"`
	RelevanceCategory string    `json:"relevance_category"`
	ContentLength     int       `json:"content_length"`
	Keywords          []string  `json:"keywords_found"`
}

// DocumentGroup aggregates the matches of one document.
type DocumentGroup struct {
	Filename      string
	SpaceID       string
	Matches       []vector.Match
	MaxSimilarity float64
	ChunkCount    int
	TotalChunks   int
}

// SpaceGroup aggregates the matches of one space, with its documents ordered
// by relevance.
type SpaceGroup struct {
	SpaceID       string
	Documents     []*DocumentGroup
	MaxSimilarity float64
	ChunkCount    int
}

// Aggregation is the query-time grouping of raw matches. Groups keep every
// match seen; Sources is the flattened view capped at the requested count.
type Aggregation struct {
	Spaces       []*SpaceGroup
	Documents    []*DocumentGroup
	Sources      []Source
	TotalMatches int
}

// aggregate groups ranked matches by space, then by document within each
// space. Group order is descending max similarity; ties keep first-seen
// order, so identical inputs always aggregate identically.
func aggregate(matches []vector.Match, maxResults int) *Aggregation {
	agg := &Aggregation{TotalMatches: len(matches)}

	spaceIdx := make(map[string]*SpaceGroup)
	docIdx := make(map[string]*DocumentGroup)

	for _, m := range matches {
		sg, ok := spaceIdx[m.SpaceID]
		if !ok {
			// Seed max with the first score; cosine can be negative.
			sg = &SpaceGroup{SpaceID: m.SpaceID, MaxSimilarity: m.Score}
			spaceIdx[m.SpaceID] = sg
			agg.Spaces = append(agg.Spaces, sg)
		}

		docKey := m.SpaceID + "\x00" + m.Filename
		dg, ok := docIdx[docKey]
		if !ok {
			dg = &DocumentGroup{Filename: m.Filename, SpaceID: m.SpaceID, TotalChunks: m.TotalChunks, MaxSimilarity: m.Score}
			docIdx[docKey] = dg
			sg.Documents = append(sg.Documents, dg)
			agg.Documents = append(agg.Documents, dg)
		}

		dg.Matches = append(dg.Matches, m)
		dg.ChunkCount++
		if m.Score > dg.MaxSimilarity {
			dg.MaxSimilarity = m.Score
		}
		sg.ChunkCount++
		if m.Score > sg.MaxSimilarity {
			sg.MaxSimilarity = m.Score
		}
	}

	sort.SliceStable(agg.Spaces, func(i, j int) bool {
		return agg.Spaces[i].MaxSimilarity > agg.Spaces[j].MaxSimilarity
	})
	for _, sg := range agg.Spaces {
		sort.SliceStable(sg.Documents, func(i, j int) bool {
			return sg.Documents[i].MaxSimilarity > sg.Documents[j].MaxSimilarity
		})
	}
	sort.SliceStable(agg.Documents, func(i, j int) bool {
		return agg.Documents[i].MaxSimilarity > agg.Documents[j].MaxSimilarity
	})

	capped := matches
	if len(capped) > maxResults {
		capped = capped[:maxResults]
	}
	agg.Sources = lo.Map(capped, func(m vector.Match, _ int) Source {
		return enrichSource(m)
	})

	return agg
}

func enrichSource(m vector.Match) Source {
	preview := m.Text
	if len(preview) > previewLength {
		preview = preview[:previewLength] + "..."
	}
	return Source{
		ID:                m.ID,
		Filename:          m.Filename,
		SpaceID:           m.SpaceID,
		ChunkOrdinal:      m.Ordinal,
		SimilarityScore:   m.Score,
		TextPreview:       preview,
		FullText:          m.Text,
		EstimatedPage:     m.Ordinal/chunksPerPage + 1,
		TotalChunksInDoc:  m.TotalChunks,
		RelevanceCategory: categorizeRelevance(m.Score),
		ContentLength:     len(m.Text),
		Keywords:          extractKeywords(m.Text),
	}
}

func categorizeRelevance(score float64) string {
	switch {
	case score >= relevanceHigh:
		return "highly_relevant"
	case score >= relevanceModerate:
		return "moderately_relevant"
	case score >= relevanceSomewhat:
		return "somewhat_relevant"
	default:
		return "low_relevance"
	}
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "is": true, "are": true, "was": true, "were": true,
	"this": true, "that": true, "these": true, "those": true, "from": true,
	"have": true, "has": true, "had": true, "will": true, "would": true,
}

// extractKeywords pulls distinctive terms from a chunk: lowercased words
// longer than three characters with stopwords removed. First-occurrence
// order, capped at maxKeywords.
func extractKeywords(text string) []string {
	var keywords []string
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()[]")
		if len(word) > 3 && !stopWords[word] {
			keywords = append(keywords, word)
		}
	}
	keywords = lo.Uniq(keywords)
	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}
	return keywords
}
