package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordQueryAndSuggestions(t *testing.T) {
	t.Parallel()
	r := setupTestDB(t)
	ctx := t.Context()

	require.NoError(t, r.RecordQuery(ctx, "Golang Testing", 1000))
	require.NoError(t, r.RecordQuery(ctx, "golang generics", 2000))
	require.NoError(t, r.RecordQuery(ctx, "gopher", 3000))

	got, err := r.Suggestions(ctx, "go", 5)
	require.NoError(t, err)
	// "golang" used twice ranks first, then recency decides
	assert.Equal(t, []string{"golang", "gopher"}, got)
}

func TestRecordQueryDropsShortAndDuplicateWords(t *testing.T) {
	t.Parallel()
	r := setupTestDB(t)
	ctx := t.Context()

	require.NoError(t, r.RecordQuery(ctx, "go go to the THE docs", 1000))

	got, err := r.Suggestions(ctx, "t", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"the"}, got)

	got, err = r.Suggestions(ctx, "d", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs"}, got)
}

func TestSuggestionsEmptyPrefix(t *testing.T) {
	t.Parallel()
	r := setupTestDB(t)

	got, err := r.Suggestions(t.Context(), "   ", 5)
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestSuggestionsLimit(t *testing.T) {
	t.Parallel()
	r := setupTestDB(t)
	ctx := t.Context()

	require.NoError(t, r.RecordQuery(ctx, "alpha alert albatross", 1000))

	got, err := r.Suggestions(ctx, "al", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestTokenize(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"golang", "docs"}, tokenize("  Golang   docs golang "))
	assert.Empty(t, tokenize("a an to"))
	assert.Empty(t, tokenize(""))
}
