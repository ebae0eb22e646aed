package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuspace/docuspace/internal/vector"
)

type fakeGenerator struct {
	answer string
	err    error
	prompt string
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompt = prompt
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

func themedMatch(filename, spaceID, text string, ordinal int, score float64) vector.Match {
	return vector.Match{
		ID:          uuid.New(),
		Filename:    filename,
		SpaceID:     spaceID,
		Ordinal:     ordinal,
		TotalChunks: 4,
		Text:        text,
		Score:       score,
	}
}

func TestSynthesizeReturnsAnswer(t *testing.T) {
	gen := &fakeGenerator{answer: "The revenue grew by 12%."}
	synth := NewSynthesizer(gen)

	agg := aggregate([]vector.Match{
		themedMatch("report.txt", "s1", "revenue grew twelve percent", 0, 0.9),
	}, 10)

	answer, insights := synth.Synthesize(context.Background(), "revenue growth", agg)
	assert.Equal(t, "The revenue grew by 12%.", answer)
	assert.Nil(t, insights) // single document, no cross-document insights
}

func TestSynthesizeFallbackOnGenerationError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	synth := NewSynthesizer(gen)

	agg := aggregate([]vector.Match{
		themedMatch("a.txt", "s1", "alpha content", 0, 0.9),
		themedMatch("b.txt", "s1", "bravo content", 0, 0.8),
	}, 10)

	answer, insights := synth.Synthesize(context.Background(), "anything", agg)
	assert.Contains(t, answer, "could not generate an answer")
	assert.Contains(t, answer, "model unavailable")
	// Insights still present: they do not depend on the model.
	require.NotEmpty(t, insights)
	assert.Equal(t, "multi_document_analysis", insights[0].Type)
}

func TestBuildPromptStructure(t *testing.T) {
	synth := NewSynthesizer(&fakeGenerator{})

	matches := []vector.Match{
		themedMatch("report.txt", "s1", "first chunk", 0, 0.9),
		themedMatch("report.txt", "s1", "second chunk", 1, 0.8),
		themedMatch("report.txt", "s1", "third chunk", 2, 0.7),
		themedMatch("report.txt", "s1", "fourth chunk", 3, 0.6),
		themedMatch("notes.txt", "s2", "other space", 0, 0.5),
	}
	agg := aggregate(matches, 10)

	prompt := synth.buildPrompt("quarterly revenue", agg)

	assert.Contains(t, prompt, "SEARCH QUERY: quarterly revenue")
	assert.Contains(t, prompt, "=== SPACE: s1 ===")
	assert.Contains(t, prompt, "=== SPACE: s2 ===")
	assert.Contains(t, prompt, "--- DOCUMENT: report.txt")
	assert.Contains(t, prompt, "2 documents across 2 spaces")
	assert.Contains(t, prompt, "COMPREHENSIVE ANSWER:")

	// Only the first three chunks of a document make the prompt.
	assert.Contains(t, prompt, "third chunk")
	assert.NotContains(t, prompt, "fourth chunk")
}

func TestInsightsRequireTwoDocuments(t *testing.T) {
	synth := NewSynthesizer(&fakeGenerator{})

	single := aggregate([]vector.Match{
		themedMatch("only.txt", "s1", "solo text here", 0, 0.9),
	}, 10)
	assert.Nil(t, synth.insights("q", single))

	multi := aggregate([]vector.Match{
		themedMatch("a.txt", "s1", "alpha text", 0, 0.9),
		themedMatch("b.txt", "s1", "bravo text", 0, 0.8),
	}, 10)
	insights := synth.insights("q", multi)
	require.NotEmpty(t, insights)
	assert.Equal(t, "multi_document_analysis", insights[0].Type)
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, insights[0].Documents)
}

func TestCommonThemes(t *testing.T) {
	agg := aggregate([]vector.Match{
		themedMatch("a.txt", "s1", "migration strategy for database systems", 0, 0.9),
		themedMatch("b.txt", "s1", "the migration timeline and database sizing", 0, 0.8),
		themedMatch("c.txt", "s1", "unrelated marketing copy", 0, 0.7),
	}, 10)

	themes := commonThemes(agg.Documents)
	assert.Contains(t, themes, "migration")
	assert.Contains(t, themes, "database")
	assert.NotContains(t, themes, "marketing")
}

func TestCommonThemesOrderedBySpread(t *testing.T) {
	agg := aggregate([]vector.Match{
		themedMatch("a.txt", "s1", "budget planning review", 0, 0.9),
		themedMatch("b.txt", "s1", "budget planning notes", 0, 0.8),
		themedMatch("c.txt", "s1", "budget forecast", 0, 0.7),
	}, 10)

	themes := commonThemes(agg.Documents)
	require.NotEmpty(t, themes)
	// "budget" appears in all three documents, "planning" in two.
	assert.Equal(t, "budget", themes[0])
	assert.Contains(t, themes, "planning")

	joined := strings.Join(themes, " ")
	assert.NotContains(t, joined, "forecast")
	assert.NotContains(t, joined, "review")
}
