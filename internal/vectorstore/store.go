package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/Guiss-Guiss/ScriptumAI/internal/config"
	"github.com/Guiss-Guiss/ScriptumAI/internal/model"
)

type Distance string

const DistanceCosine Distance = "cosine"

// Neighbor is a query hit. Distance is the cosine distance, 0 for identical direction.
type Neighbor struct {
	Record   model.ChunkRecord
	Distance float64
}

type Store interface {
	CreateOrGetCollection(ctx context.Context, name string, dimension int, distance Distance) (Collection, error)
	Heartbeat(ctx context.Context) error
	Close() error
}

type Collection interface {
	Name() string
	Add(ctx context.Context, records []model.ChunkRecord) error
	Query(ctx context.Context, vector []float32, k int) ([]Neighbor, error)
	Get(ctx context.Context, ids []string) ([]model.ChunkRecord, error)
	Delete(ctx context.Context, ids []string) error
	DeleteBySource(ctx context.Context, source string) (int, error)
	// DeleteBySourceExcept removes the records of source whose ids are not in keep.
	DeleteBySourceExcept(ctx context.Context, source string, keep []string) (int, error)
	Count(ctx context.Context) (int, error)
}

type Factory func(args interface{}) (Store, error)

var (
	registryMu sync.RWMutex
	factories  = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	factories[key] = factory
	registryMu.Unlock()
}

func New(cfg config.VectorStoreConfig) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("vector_store.type is required")
	}
	registryMu.RLock()
	factory := factories[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported vector store type: %s", cfg.Type)
	}
	return factory(cfg.Data)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode store config: %w", err)
	}
	return nil
}

func recordSource(r *model.ChunkRecord) string {
	return r.Source()
}
