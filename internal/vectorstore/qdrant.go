package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Guiss-Guiss/ScriptumAI/internal/model"
)

const (
	payloadRecordID = "record_id"
	payloadDocument = "document"
	payloadMetadata = "metadata"
	payloadSource   = "source"
)

var pointNamespace = uuid.NameSpaceURL

type qdrantConfig struct {
	URL     string `json:"url"`
	APIKey  string `json:"api_key"`
	Timeout int    `json:"timeout"`
}

type qdrantStore struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func init() {
	Register("qdrant", createQdrantStore)
}

func createQdrantStore(args interface{}) (Store, error) {
	cfg := &qdrantConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return NewQdrantStore(cfg.URL, cfg.APIKey, time.Duration(cfg.Timeout)*time.Second)
}

func NewQdrantStore(endpoint, apiKey string, timeout time.Duration) (Store, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &qdrantStore{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

func (s *qdrantStore) CreateOrGetCollection(ctx context.Context, name string, dimension int, distance Distance) (Collection, error) {
	if distance != DistanceCosine {
		return nil, fmt.Errorf("unsupported distance %q", distance)
	}
	path := "/collections/" + url.PathEscape(name)
	status, err := s.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil && status != http.StatusNotFound {
		return nil, err
	}
	if status == http.StatusNotFound {
		body := map[string]interface{}{
			"vectors": map[string]interface{}{
				"size":     dimension,
				"distance": "Cosine",
			},
		}
		if _, err := s.do(ctx, http.MethodPut, path, body, nil); err != nil {
			return nil, fmt.Errorf("create qdrant collection %s: %w", name, err)
		}
		if _, err := s.do(ctx, http.MethodPut, path+"/index", map[string]interface{}{
			"field_name":   payloadSource,
			"field_schema": "keyword",
		}, nil); err != nil {
			return nil, fmt.Errorf("index qdrant collection %s: %w", name, err)
		}
	}
	return &qdrantCollection{store: s, name: name, path: path}, nil
}

func (s *qdrantStore) Heartbeat(ctx context.Context) error {
	if _, err := s.do(ctx, http.MethodGet, "/healthz", nil, nil); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}

func (s *qdrantStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// do sends a JSON request and decodes the response into out. The returned status
// is set even when err is not nil, so callers can tell a 404 from a transport failure.
func (s *qdrantStore) do(ctx context.Context, method, path string, body interface{}, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.endpoint+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s %s", method, path, resp.Status, strings.TrimSpace(string(b)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode qdrant response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

type qdrantCollection struct {
	store *qdrantStore
	name  string
	path  string
}

type qdrantPoint struct {
	ID      string                 `json:"id"`
	Vector  []float32              `json:"vector,omitempty"`
	Payload map[string]interface{} `json:"payload"`
	Score   float64                `json:"score,omitempty"`
}

func (c *qdrantCollection) Name() string {
	return c.name
}

func pointID(collection, id string) string {
	return uuid.NewSHA1(pointNamespace, []byte(collection+"/"+id)).String()
}

func (c *qdrantCollection) Add(ctx context.Context, records []model.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]qdrantPoint, 0, len(records))
	for i := range records {
		r := &records[i]
		points = append(points, qdrantPoint{
			ID:     pointID(c.name, r.ID),
			Vector: r.Embedding,
			Payload: map[string]interface{}{
				payloadRecordID: r.ID,
				payloadDocument: r.Text,
				payloadMetadata: r.Metadata,
				payloadSource:   recordSource(r),
			},
		})
	}
	_, err := c.store.do(ctx, http.MethodPut, c.path+"/points?wait=true", map[string]interface{}{"points": points}, nil)
	return err
}

// Qdrant scores cosine collections by similarity, converted back to a distance here.
func (c *qdrantCollection) Query(ctx context.Context, vector []float32, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, nil
	}
	var resp struct {
		Result []qdrantPoint `json:"result"`
	}
	body := map[string]interface{}{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
		"with_vector":  true,
	}
	if _, err := c.store.do(ctx, http.MethodPost, c.path+"/points/search", body, &resp); err != nil {
		return nil, err
	}
	out := make([]Neighbor, 0, len(resp.Result))
	for _, p := range resp.Result {
		out = append(out, Neighbor{Record: p.record(), Distance: 1 - p.Score})
	}
	return out, nil
}

func (c *qdrantCollection) Get(ctx context.Context, ids []string) ([]model.ChunkRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	pointIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, pointID(c.name, id))
	}
	var resp struct {
		Result []qdrantPoint `json:"result"`
	}
	body := map[string]interface{}{
		"ids":          pointIDs,
		"with_payload": true,
		"with_vector":  true,
	}
	if _, err := c.store.do(ctx, http.MethodPost, c.path+"/points", body, &resp); err != nil {
		return nil, err
	}
	out := make([]model.ChunkRecord, 0, len(resp.Result))
	for _, p := range resp.Result {
		out = append(out, p.record())
	}
	return out, nil
}

func (c *qdrantCollection) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, pointID(c.name, id))
	}
	_, err := c.store.do(ctx, http.MethodPost, c.path+"/points/delete?wait=true", map[string]interface{}{"points": pointIDs}, nil)
	return err
}

func (c *qdrantCollection) DeleteBySource(ctx context.Context, source string) (int, error) {
	return c.DeleteBySourceExcept(ctx, source, nil)
}

func (c *qdrantCollection) DeleteBySourceExcept(ctx context.Context, source string, keep []string) (int, error) {
	filter := map[string]interface{}{
		"must": []map[string]interface{}{
			{"key": payloadSource, "match": map[string]interface{}{"value": source}},
		},
	}
	if len(keep) > 0 {
		pointIDs := make([]string, 0, len(keep))
		for _, id := range keep {
			pointIDs = append(pointIDs, pointID(c.name, id))
		}
		filter["must_not"] = []map[string]interface{}{{"has_id": pointIDs}}
	}
	count, err := c.count(ctx, filter)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}
	if _, err := c.store.do(ctx, http.MethodPost, c.path+"/points/delete?wait=true", map[string]interface{}{"filter": filter}, nil); err != nil {
		return 0, err
	}
	return count, nil
}

func (c *qdrantCollection) Count(ctx context.Context) (int, error) {
	return c.count(ctx, nil)
}

func (c *qdrantCollection) count(ctx context.Context, filter map[string]interface{}) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	body := map[string]interface{}{"exact": true}
	if filter != nil {
		body["filter"] = filter
	}
	if _, err := c.store.do(ctx, http.MethodPost, c.path+"/points/count", body, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (p qdrantPoint) record() model.ChunkRecord {
	r := model.ChunkRecord{Embedding: p.Vector}
	if v, ok := p.Payload[payloadRecordID].(string); ok {
		r.ID = v
	}
	if v, ok := p.Payload[payloadDocument].(string); ok {
		r.Text = v
	}
	if v, ok := p.Payload[payloadMetadata].(map[string]interface{}); ok {
		r.Metadata = v
	}
	return r
}
