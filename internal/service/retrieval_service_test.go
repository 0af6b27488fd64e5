package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Guiss-Guiss/ScriptumAI/internal/model"
	appErr "github.com/Guiss-Guiss/ScriptumAI/internal/pkg/errors"
)

func TestRankResultsSameLanguageFirst(t *testing.T) {
	in := []model.SearchResult{
		{ID: "fr_hi", Language: "fr", Similarity: 0.95},
		{ID: "en_mid", Language: "en", Similarity: 0.70},
		{ID: "es_mid", Language: "es", Similarity: 0.80},
		{ID: "en_hi", Language: "en", Similarity: 0.90},
		{ID: "fr_lo", Language: "fr", Similarity: 0.10},
	}
	got := RankResults(in, "en", 10)
	ids := make([]string, 0, len(got))
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	require.Equal(t, []string{"en_hi", "en_mid", "fr_hi", "es_mid", "fr_lo"}, ids)
	require.Equal(t, "fr_hi", in[0].ID)

	require.Len(t, RankResults(in, "en", 2), 2)
	require.Empty(t, RankResults(in, "en", 0))
}

func TestRankResultsTiersAreNonIncreasing(t *testing.T) {
	in := []model.SearchResult{
		{ID: "a", Language: "fr", Similarity: 0.2},
		{ID: "b", Language: "en", Similarity: 0.4},
		{ID: "c", Language: "fr", Similarity: 0.9},
		{ID: "d", Language: "en", Similarity: 0.4},
		{ID: "e", Language: "en", Similarity: 0.1},
	}
	got := RankResults(in, "fr", len(in))
	seenOther := false
	for i, r := range got {
		if r.Language != "fr" {
			seenOther = true
		} else {
			require.False(t, seenOther, "query-language result after another language at %d", i)
		}
		if i > 0 && got[i-1].Language == r.Language {
			require.GreaterOrEqual(t, got[i-1].Similarity, r.Similarity)
		}
	}
	require.Equal(t, "b", got[2].ID)
	require.Equal(t, "d", got[3].ID)
}

func TestRetrieveCapitalOfFrance(t *testing.T) {
	env := newTestEnv(t, IngestConfig{Replace: true})
	env.embedder.constant = true
	ctx := context.Background()
	_, err := env.ingest.Ingest(ctx, textDoc("capitale.txt", "Paris est la capitale de la France."), nil)
	require.NoError(t, err)
	_, err = env.ingest.Ingest(ctx, textDoc("capital.txt", "Paris is the capital of France."), nil)
	require.NoError(t, err)

	got := env.retrieval.Retrieve(ctx, "What is the capital of France?", 5)
	require.Len(t, got, 2)
	require.Equal(t, "capital_0", got[0].ID)
	require.Equal(t, "en", got[0].Language)
	require.Equal(t, "test_en", got[0].Collection)
	require.Equal(t, "capitale_0", got[1].ID)
	require.InDelta(t, 1.0, got[0].Similarity, 1e-6)
	require.InDelta(t, got[0].Similarity, got[1].Similarity, 1e-6)
}

func TestRetrieveUsesQueryCache(t *testing.T) {
	env := newTestEnv(t, IngestConfig{Replace: true})
	ctx := context.Background()
	_, err := env.ingest.Ingest(ctx, textDoc("a.txt", "apples and oranges"), nil)
	require.NoError(t, err)

	first := env.retrieval.Retrieve(ctx, "apples", 3)
	calls := env.embedder.calls
	second := env.retrieval.Retrieve(ctx, "  APPLES ", 3)
	require.Equal(t, calls, env.embedder.calls)
	require.Equal(t, first, second)

	second[0].Content = "mutated"
	third := env.retrieval.Retrieve(ctx, "apples", 3)
	require.Equal(t, "apples and oranges", third[0].Content)

	env.retrieval.Retrieve(ctx, "apples", 4)
	require.Equal(t, calls+1, env.embedder.calls)
}

func TestRetrieveSkipsFailedCollection(t *testing.T) {
	env := newTestEnv(t, IngestConfig{Replace: true})
	ctx := context.Background()
	_, err := env.ingest.Ingest(ctx, textDoc("a.txt", "apples and oranges"), nil)
	require.NoError(t, err)
	env.store.failQuery["test_fr"] = true

	got := env.retrieval.Retrieve(ctx, "apples", 3)
	require.Len(t, got, 1)
}

func TestRetrieveEmptyOnTotalFailure(t *testing.T) {
	env := newTestEnv(t, IngestConfig{Replace: true})
	ctx := context.Background()
	_, err := env.ingest.Ingest(ctx, textDoc("a.txt", "apples and oranges"), nil)
	require.NoError(t, err)
	for _, name := range []string{"test_en", "test_fr", "test_es"} {
		env.store.failQuery[name] = true
	}
	require.Empty(t, env.retrieval.Retrieve(ctx, "apples", 3))

	// failures are not cached
	env.store.failQuery = map[string]bool{}
	require.Len(t, env.retrieval.Retrieve(ctx, "apples", 3), 1)

	env.embedder.err = errors.New("down")
	require.Empty(t, env.retrieval.Retrieve(ctx, "pears", 3))
	require.Empty(t, env.retrieval.Retrieve(ctx, "   ", 3))
}

func TestRetrieveWithLanguage(t *testing.T) {
	env := newTestEnv(t, IngestConfig{Replace: true})
	ctx := context.Background()
	_, err := env.ingest.Ingest(ctx, textDoc("fruit.txt", "apples and oranges"), nil)
	require.NoError(t, err)

	lang, got := env.retrieval.RetrieveWithLanguage(ctx, "la pomme rouge", 3)
	require.Equal(t, "fr", lang)
	require.Len(t, got, 1)

	lang, got = env.retrieval.RetrieveWithLanguage(ctx, "  ", 3)
	require.Equal(t, "en", lang)
	require.Empty(t, got)
}

func TestRetrieveDefaultK(t *testing.T) {
	env := newTestEnv(t, IngestConfig{Replace: true})
	ctx := context.Background()
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt", "f.txt", "g.txt"} {
		_, err := env.ingest.Ingest(ctx, textDoc(name, "shared words "+name), nil)
		require.NoError(t, err)
	}
	require.Len(t, env.retrieval.Retrieve(ctx, "shared words", 0), 5)
}

func TestRetrieveBatchAndByID(t *testing.T) {
	env := newTestEnv(t, IngestConfig{Replace: true})
	ctx := context.Background()
	_, err := env.ingest.Ingest(ctx, textDoc("en.txt", "apples and oranges"), nil)
	require.NoError(t, err)
	_, err = env.ingest.Ingest(ctx, textDoc("fr.txt", "la pomme est rouge"), nil)
	require.NoError(t, err)

	batch := env.retrieval.RetrieveBatch(ctx, []string{"apples", "la pomme rouge", ""}, 1)
	require.Len(t, batch, 3)
	require.Equal(t, "en_0", batch[0][0].ID)
	require.Equal(t, "fr_0", batch[1][0].ID)
	require.Empty(t, batch[2])

	got, err := env.retrieval.RetrieveByID(ctx, []string{"fr_0", "en_0", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "en_0", got[0].ID)
	require.Equal(t, "fr_0", got[1].ID)
	require.Equal(t, "fr", got[1].Language)
}

func TestDeleteDocument(t *testing.T) {
	env := newTestEnv(t, IngestConfig{Replace: true})
	ctx := context.Background()
	_, err := env.ingest.Ingest(ctx, textDoc("a.txt", "apples and oranges"), nil)
	require.NoError(t, err)
	require.Len(t, env.retrieval.Retrieve(ctx, "apples", 3), 1)

	n, err := env.retrieval.DeleteDocument(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Empty(t, env.retrieval.Retrieve(ctx, "apples", 3))

	_, err = env.retrieval.DeleteDocument(ctx, "a")
	require.True(t, errors.Is(err, appErr.ErrNotFound))
	_, err = env.retrieval.DeleteDocument(ctx, " ")
	require.True(t, errors.Is(err, appErr.ErrInvalid))
}
