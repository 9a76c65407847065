package matcher

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medbot-api/internal/model"
)

func exerciseCatalog() []model.CatalogEntry {
	return []model.CatalogEntry{
		{ID: "a1", Name: "Jumping Jacks", Description: "full body cardio jump exercise"},
		{ID: "a2", Name: "Idle", Description: "standing still resting pose"},
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"lowercases and strips punctuation", "Hello, World!", []string{"hello", "world"}},
		{"drops short tokens", "I am at the gym", []string{"the", "gym"}},
		{"apostrophes removed", "What's my rate?", []string{"whats", "rate"}},
		{"empty", "", []string{}},
		{"only whitespace", "  \t\n ", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestVectorize_CountsRepeats(t *testing.T) {
	v := Vectorize("jump jump JUMP squat")
	assert.Equal(t, TermVector{"jump": 3, "squat": 1}, v)
}

func TestCosine(t *testing.T) {
	a := Vectorize("full body cardio")
	assert.InDelta(t, 1.0, Cosine(a, a), 1e-9)
	assert.Equal(t, 0.0, Cosine(a, Vectorize("")))
	assert.Equal(t, 0.0, Cosine(Vectorize(""), Vectorize("")))
	assert.Equal(t, 0.0, Cosine(a, Vectorize("standing still")))
}

func TestTopK_JumpingJacksScenario(t *testing.T) {
	results := TopK("I want to do jumping jacks", exerciseCatalog(), 1)

	require.Len(t, results, 1)
	assert.Equal(t, "a1", results[0].Entry.ID)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestTopK_EmptyQueryKeepsCatalogOrder(t *testing.T) {
	results := TopK("", exerciseCatalog(), 1)
	require.Len(t, results, 1)
	assert.Equal(t, "a1", results[0].Entry.ID)
	assert.Equal(t, 0.0, results[0].Score)

	all := TopK("", exerciseCatalog(), 5)
	require.Len(t, all, 2)
	assert.Equal(t, "a1", all[0].Entry.ID)
	assert.Equal(t, "a2", all[1].Entry.ID)
	for _, r := range all {
		assert.Equal(t, 0.0, r.Score)
	}
}

func TestTopK_EmptyCatalog(t *testing.T) {
	results := TopK("jumping jacks", nil, 3)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestTopK_NonPositiveKReturnsOne(t *testing.T) {
	assert.Len(t, TopK("rest", exerciseCatalog(), 0), 1)
	assert.Len(t, TopK("rest", exerciseCatalog(), -3), 1)
}

func TestTopK_ScoresInUnitRange(t *testing.T) {
	catalog := exerciseCatalog()
	queries := []string{
		"", "jump", "standing still resting pose", "full body cardio jump exercise jumping jacks",
		"!!!", "idle idle idle", "zzz qqq",
	}
	for _, q := range queries {
		for _, r := range TopK(q, catalog, len(catalog)) {
			assert.GreaterOrEqual(t, r.Score, 0.0, q)
			assert.LessOrEqual(t, r.Score, 1.0+1e-9, q)
		}
	}
}

func TestTopK_SelfSimilarityWins(t *testing.T) {
	catalog := []model.CatalogEntry{
		{ID: "s1", Name: "Squat", Description: "lower body strength squat"},
		{ID: "p1", Name: "Plank", Description: "core stability hold on forearms"},
		{ID: "b1", Name: "Bicycle", Description: "abs crunch with alternating legs"},
	}

	for _, entry := range catalog {
		results := TopK(entry.Description, catalog, 1)
		require.Len(t, results, 1)
		assert.Equal(t, entry.ID, results[0].Entry.ID)
		assert.GreaterOrEqual(t, results[0].Score, 0.7-1e-9)
	}
}

func TestTopK_TiesResolveByInsertionOrder(t *testing.T) {
	catalog := []model.CatalogEntry{
		{ID: "x1", Name: "Alpha", Description: "stretch routine"},
		{ID: "x2", Name: "Beta", Description: "stretch routine"},
		{ID: "x3", Name: "Gamma", Description: "stretch routine"},
	}
	results := TopK("stretch", catalog, 3)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"x1", "x2", "x3"}, ids(results))
}

func TestTopK_Deterministic(t *testing.T) {
	catalog := make([]model.CatalogEntry, 0, 20)
	for i := 0; i < 20; i++ {
		catalog = append(catalog, model.CatalogEntry{
			ID:          fmt.Sprintf("e%d", i),
			Name:        fmt.Sprintf("Move %d", i%4),
			Description: fmt.Sprintf("gentle stretch number %d for back relief", i%3),
		})
	}

	first := TopK("back stretch relief", catalog, 10)
	second := TopK("back stretch relief", catalog, 10)
	assert.Equal(t, first, second)
}

func TestMatcher_Best(t *testing.T) {
	m := New(exerciseCatalog())
	best, ok := m.Best("resting pose")
	require.True(t, ok)
	assert.Equal(t, "a2", best.Entry.ID)
	assert.Equal(t, 2, m.Len())

	_, ok = New(nil).Best("anything")
	assert.False(t, ok)
}

func TestMatcher_CatalogIsCopied(t *testing.T) {
	src := exerciseCatalog()
	m := New(src)
	src[0].ID = "changed"

	assert.Equal(t, "a1", m.Catalog()[0].ID)
}

func ids(results []model.SimilarityResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Entry.ID
	}
	return out
}
