package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/Guiss-Guiss/ScriptumAI/internal/model"
)

type memoryStore struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
}

func init() {
	Register("memory", func(args interface{}) (Store, error) {
		return NewMemoryStore(), nil
	})
}

func NewMemoryStore() Store {
	return &memoryStore{collections: make(map[string]*memoryCollection)}
}

func (s *memoryStore) CreateOrGetCollection(ctx context.Context, name string, dimension int, distance Distance) (Collection, error) {
	if distance != DistanceCosine {
		return nil, fmt.Errorf("unsupported distance %q", distance)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		return c, nil
	}
	c := &memoryCollection{name: name, dimension: dimension, records: make(map[string]model.ChunkRecord)}
	s.collections[name] = c
	return c, nil
}

func (s *memoryStore) Heartbeat(ctx context.Context) error {
	return ctx.Err()
}

func (s *memoryStore) Close() error {
	return nil
}

type memoryCollection struct {
	name      string
	dimension int
	mu        sync.RWMutex
	records   map[string]model.ChunkRecord
	order     []string
}

func (c *memoryCollection) Name() string {
	return c.name
}

func (c *memoryCollection) Add(ctx context.Context, records []model.ChunkRecord) error {
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("record id is required")
		}
		if c.dimension > 0 && len(r.Embedding) != c.dimension {
			return fmt.Errorf("record %s has dimension %d, collection expects %d", r.ID, len(r.Embedding), c.dimension)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range records {
		if _, ok := c.records[r.ID]; !ok {
			c.order = append(c.order, r.ID)
		}
		c.records[r.ID] = cloneRecord(r)
	}
	return nil
}

func (c *memoryCollection) Query(ctx context.Context, vector []float32, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, nil
	}
	c.mu.RLock()
	out := make([]Neighbor, 0, len(c.records))
	for _, id := range c.order {
		r := c.records[id]
		out = append(out, Neighbor{Record: cloneRecord(r), Distance: cosineDistance(vector, r.Embedding)})
	}
	c.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Distance < out[j].Distance
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (c *memoryCollection) Get(ctx context.Context, ids []string) ([]model.ChunkRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.ChunkRecord, 0, len(ids))
	for _, id := range ids {
		if r, ok := c.records[id]; ok {
			out = append(out, cloneRecord(r))
		}
	}
	return out, nil
}

func (c *memoryCollection) Delete(ctx context.Context, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.records, id)
	}
	c.compactLocked()
	return nil
}

func (c *memoryCollection) DeleteBySource(ctx context.Context, source string) (int, error) {
	return c.DeleteBySourceExcept(ctx, source, nil)
}

func (c *memoryCollection) DeleteBySourceExcept(ctx context.Context, source string, keep []string) (int, error) {
	kept := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, r := range c.records {
		if _, ok := kept[id]; ok {
			continue
		}
		if recordSource(&r) == source {
			delete(c.records, id)
			removed++
		}
	}
	c.compactLocked()
	return removed, nil
}

func (c *memoryCollection) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records), nil
}

func (c *memoryCollection) compactLocked() {
	kept := c.order[:0]
	for _, id := range c.order {
		if _, ok := c.records[id]; ok {
			kept = append(kept, id)
		}
	}
	c.order = kept
}

func cloneRecord(r model.ChunkRecord) model.ChunkRecord {
	out := r
	if r.Embedding != nil {
		out.Embedding = append([]float32(nil), r.Embedding...)
	}
	if r.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// cosineDistance is 1 - cosine similarity. A zero vector sits at distance 1 from everything.
func cosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, v := range a {
		normA += float64(v) * float64(v)
	}
	for _, v := range b {
		normB += float64(v) * float64(v)
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
