package vectorstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Guiss-Guiss/ScriptumAI/internal/model"
)

// fakeQdrant keeps points for a single collection and answers the handful of
// REST calls the store issues.
type fakeQdrant struct {
	mu      sync.Mutex
	created bool
	size    int
	points  map[string]map[string]interface{}
	vectors map[string][]float32
	apiKeys []string
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{points: map[string]map[string]interface{}{}, vectors: map[string][]float32{}}
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))
	var body map[string]interface{}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	path := r.URL.Path
	switch {
	case path == "/healthz":
		_, _ = w.Write([]byte("ok"))
	case path == "/collections/docs_en" && r.Method == http.MethodGet:
		if !f.created {
			http.Error(w, `{"status":{"error":"not found"}}`, http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]interface{}{"result": map[string]interface{}{}})
	case path == "/collections/docs_en" && r.Method == http.MethodPut:
		f.created = true
		f.size = int(body["vectors"].(map[string]interface{})["size"].(float64))
		writeJSON(w, map[string]interface{}{"result": true})
	case path == "/collections/docs_en/index":
		writeJSON(w, map[string]interface{}{"result": map[string]interface{}{}})
	case path == "/collections/docs_en/points" && r.Method == http.MethodPut:
		for _, raw := range body["points"].([]interface{}) {
			p := raw.(map[string]interface{})
			id := p["id"].(string)
			f.points[id] = p["payload"].(map[string]interface{})
			var vec []float32
			for _, v := range p["vector"].([]interface{}) {
				vec = append(vec, float32(v.(float64)))
			}
			f.vectors[id] = vec
		}
		writeJSON(w, map[string]interface{}{"result": map[string]interface{}{"status": "completed"}})
	case path == "/collections/docs_en/points" && r.Method == http.MethodPost:
		var out []map[string]interface{}
		for _, raw := range body["ids"].([]interface{}) {
			if p, ok := f.points[raw.(string)]; ok {
				out = append(out, map[string]interface{}{"id": raw, "payload": p})
			}
		}
		writeJSON(w, map[string]interface{}{"result": out})
	case path == "/collections/docs_en/points/search":
		var query []float32
		for _, v := range body["vector"].([]interface{}) {
			query = append(query, float32(v.(float64)))
		}
		var out []map[string]interface{}
		for id, p := range f.points {
			out = append(out, map[string]interface{}{
				"id":      id,
				"payload": p,
				"score":   1 - cosineDistance(query, f.vectors[id]),
			})
		}
		if len(out) > 1 && out[0]["score"].(float64) < out[1]["score"].(float64) {
			out[0], out[1] = out[1], out[0]
		}
		writeJSON(w, map[string]interface{}{"result": out})
	case path == "/collections/docs_en/points/count":
		writeJSON(w, map[string]interface{}{"result": map[string]interface{}{"count": f.matching(body["filter"])}})
	case path == "/collections/docs_en/points/delete":
		if ids, ok := body["points"].([]interface{}); ok {
			for _, id := range ids {
				delete(f.points, id.(string))
			}
		} else {
			for id, p := range f.points {
				if filterMatches(body["filter"], id, p) {
					delete(f.points, id)
				}
			}
		}
		writeJSON(w, map[string]interface{}{"result": map[string]interface{}{"status": "completed"}})
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusBadRequest)
	}
}

func (f *fakeQdrant) matching(filter interface{}) int {
	if filter == nil {
		return len(f.points)
	}
	n := 0
	for id, p := range f.points {
		if filterMatches(filter, id, p) {
			n++
		}
	}
	return n
}

func filterMatches(filter interface{}, id string, payload map[string]interface{}) bool {
	fm := filter.(map[string]interface{})
	cond := fm["must"].([]interface{})[0].(map[string]interface{})
	if payload[cond["key"].(string)] != cond["match"].(map[string]interface{})["value"] {
		return false
	}
	mustNot, _ := fm["must_not"].([]interface{})
	for _, raw := range mustNot {
		for _, keep := range raw.(map[string]interface{})["has_id"].([]interface{}) {
			if keep == id {
				return false
			}
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestQdrantStoreRoundTrip(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	store, err := New(configFor("qdrant", map[string]interface{}{"url": srv.URL + "/", "api_key": "secret"}))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Heartbeat(ctx))

	c, err := store.CreateOrGetCollection(ctx, "docs_en", 2, DistanceCosine)
	require.NoError(t, err)
	require.True(t, fake.created)
	require.Equal(t, 2, fake.size)

	require.NoError(t, c.Add(ctx, []model.ChunkRecord{
		rec("a_0", "a", 1, 0),
		rec("a_1", "a", 0, 1),
		rec("b_0", "b", 1, 1),
	}))
	n, err := c.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	got, err := c.Get(ctx, []string{"b_0"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "b_0", got[0].ID)
	require.Equal(t, "text b_0", got[0].Text)
	require.Equal(t, "b", got[0].Source())

	removed, err := c.DeleteBySource(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	hits, err := c.Query(ctx, []float32{1, 1}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "b_0", hits[0].Record.ID)
	require.InDelta(t, 0, hits[0].Distance, 1e-6)

	require.NoError(t, c.Delete(ctx, []string{"b_0"}))
	n, err = c.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	for _, key := range fake.apiKeys {
		require.Equal(t, "secret", key)
	}
	require.NoError(t, store.Close())
}

func TestQdrantStoreErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	store, err := NewQdrantStore(srv.URL, "", 0)
	require.NoError(t, err)
	err = store.Heartbeat(context.Background())
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "500"))

	_, err = store.CreateOrGetCollection(context.Background(), "docs_en", 2, DistanceCosine)
	require.Error(t, err)

	_, err = NewQdrantStore(" ", "", 0)
	require.Error(t, err)
}

func TestQdrantDeleteBySourceExcept(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	store, err := NewQdrantStore(srv.URL, "", 0)
	require.NoError(t, err)
	ctx := context.Background()
	c, err := store.CreateOrGetCollection(ctx, "docs_en", 2, DistanceCosine)
	require.NoError(t, err)
	require.NoError(t, c.Add(ctx, []model.ChunkRecord{
		rec("a_0", "a", 1, 0),
		rec("a_1", "a", 0, 1),
		rec("a_2", "a", 1, 1),
		rec("b_0", "b", 1, 1),
	}))

	removed, err := c.DeleteBySourceExcept(ctx, "a", []string{"a_0"})
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	got, err := c.Get(ctx, []string{"a_0", "a_1", "a_2", "b_0"})
	require.NoError(t, err)
	var ids []string
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	require.ElementsMatch(t, []string{"a_0", "b_0"}, ids)
}

func TestPointIDIsStable(t *testing.T) {
	require.Equal(t, pointID("docs_en", "a_0"), pointID("docs_en", "a_0"))
	require.NotEqual(t, pointID("docs_en", "a_0"), pointID("docs_fr", "a_0"))
}
