package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docuspace/docuspace/internal/vector"
)

const (
	defaultMaxResults = 10
	maxResultsCap     = 50
	// overFetchFactor widens the raw query so grouping stays fair even when
	// the top results cluster in one document.
	overFetchFactor = 2
)

// Search scopes as surfaced in SearchResponse.SearchScope.
const (
	ScopeSingleDocument = "single_document"
	ScopeSingleSpace    = "single_space"
	ScopeMultiSpace     = "multi_space"
	ScopeAllSpaces      = "all_spaces"
	ScopeError          = "error"
)

// ErrInvalidRequest is returned for malformed search input, rejected before
// any external call.
var ErrInvalidRequest = errors.New("invalid search request")

// SearchRequest scopes a natural-language query. A nil SpaceIDs slice
// searches every space; an explicit empty slice is an error. MaxResults of 0
// takes the default.
type SearchRequest struct {
	Query      string
	SpaceIDs   []string
	Filename   string
	MaxResults int
}

// DocumentSummaryEntry describes one matched document in the summary.
type DocumentSummaryEntry struct {
	Filename         string  `json:"filename"`
	SpaceID          string  `json:"space_id"`
	ChunksFound      int     `json:"chunks_found"`
	MaxRelevance     float64 `json:"max_relevance"`
	TotalChunksInDoc int     `json:"total_chunks_in_doc"`
}

// DocumentSummary is summary statistics over the matched documents.
type DocumentSummary struct {
	TotalDocuments        int                    `json:"total_documents"`
	Documents             []DocumentSummaryEntry `json:"documents_list"`
	RelevanceDistribution map[string]int         `json:"relevance_distribution"`
	TotalChunksAnalyzed   int                    `json:"total_chunks_analyzed"`
}

// SearchResponse is always well-formed: even on internal failure the answer
// field carries a human-readable explanation and counts are zero, so no
// caller needs exception handling around search.
type SearchResponse struct {
	Answer            string          `json:"answer"`
	Query             string          `json:"query"`
	Sources           []Source        `json:"sources"`
	DocumentSummary   DocumentSummary `json:"document_summary"`
	Insights          []Insight       `json:"insights"`
	TotalResults      int             `json:"total_results"`
	DocumentsSearched int             `json:"documents_searched"`
	SpacesSearched    int             `json:"spaces_searched"`
	SearchScope       string          `json:"search_scope"`
}

// Search runs the query pipeline: filter, embed, vector query, aggregate,
// synthesize. The returned response is non-nil even when err is non-nil, so
// the API layer can always render it; err distinguishes a degraded response
// from a healthy one.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	resp := &SearchResponse{
		Query:           req.Query,
		SearchScope:     classifyScope(req),
		DocumentSummary: DocumentSummary{RelevanceDistribution: map[string]int{"high": 0, "medium": 0, "low": 0}},
	}

	maxResults := req.MaxResults
	if maxResults == 0 {
		maxResults = defaultMaxResults
	}
	if maxResults < 1 || maxResults > maxResultsCap {
		return s.failSearch(resp, fmt.Errorf("%w: max results must be in [1, %d], got %d",
			ErrInvalidRequest, maxResultsCap, req.MaxResults))
	}
	if strings.TrimSpace(req.Query) == "" {
		return s.failSearch(resp, fmt.Errorf("%w: empty query", ErrInvalidRequest))
	}

	filter, err := vector.BuildFilter(req.SpaceIDs, req.Filename)
	if err != nil {
		return s.failSearch(resp, err)
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return s.failSearch(resp, err)
	}

	matches, err := s.store.Query(ctx, queryVec, filter, maxResults*overFetchFactor)
	if err != nil {
		return s.failSearch(resp, err)
	}

	if len(matches) == 0 {
		resp.Answer = "I couldn't find any relevant information in the uploaded documents for your query."
		return resp, nil
	}

	agg := aggregate(matches, maxResults)
	resp.Answer, resp.Insights = s.synth.Synthesize(ctx, req.Query, agg)
	resp.Sources = agg.Sources
	resp.DocumentSummary = buildDocumentSummary(agg)
	resp.TotalResults = agg.TotalMatches
	resp.DocumentsSearched = len(agg.Documents)
	resp.SpacesSearched = len(agg.Spaces)

	slog.Info("search completed",
		"scope", resp.SearchScope,
		"results", resp.TotalResults,
		"documents", resp.DocumentsSearched,
		"spaces", resp.SpacesSearched)
	return resp, nil
}

// failSearch fills the error-shaped response contract and passes the cause
// through for callers that map it to a status code.
func (s *Service) failSearch(resp *SearchResponse, err error) (*SearchResponse, error) {
	slog.Error("search failed", "query", resp.Query, "error", err)
	resp.Answer = fmt.Sprintf("An error occurred while searching: %v", err)
	resp.SearchScope = ScopeError
	return resp, err
}

func classifyScope(req SearchRequest) string {
	switch {
	case req.Filename != "":
		return ScopeSingleDocument
	case len(req.SpaceIDs) == 1:
		return ScopeSingleSpace
	case len(req.SpaceIDs) > 1:
		return ScopeMultiSpace
	default:
		return ScopeAllSpaces
	}
}

// Summary relevance buckets use coarser cutoffs than source categories.
const (
	summaryHighCutoff   = 0.7
	summaryMediumCutoff = 0.5
)

func buildDocumentSummary(agg *Aggregation) DocumentSummary {
	summary := DocumentSummary{
		TotalDocuments:        len(agg.Documents),
		RelevanceDistribution: map[string]int{"high": 0, "medium": 0, "low": 0},
	}
	for _, dg := range agg.Documents {
		summary.Documents = append(summary.Documents, DocumentSummaryEntry{
			Filename:         dg.Filename,
			SpaceID:          dg.SpaceID,
			ChunksFound:      dg.ChunkCount,
			MaxRelevance:     dg.MaxSimilarity,
			TotalChunksInDoc: dg.TotalChunks,
		})
		summary.TotalChunksAnalyzed += dg.ChunkCount

		switch {
		case dg.MaxSimilarity >= summaryHighCutoff:
			summary.RelevanceDistribution["high"]++
		case dg.MaxSimilarity >= summaryMediumCutoff:
			summary.RelevanceDistribution["medium"]++
		default:
			summary.RelevanceDistribution["low"]++
		}
	}
	return summary
}
