package vectorstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Guiss-Guiss/ScriptumAI/internal/config"
)

type countingStore struct {
	Store
	creates   int32
	heartbeat error
}

func (s *countingStore) CreateOrGetCollection(ctx context.Context, name string, dimension int, distance Distance) (Collection, error) {
	atomic.AddInt32(&s.creates, 1)
	return s.Store.CreateOrGetCollection(ctx, name, dimension, distance)
}

func (s *countingStore) Heartbeat(ctx context.Context) error {
	return s.heartbeat
}

func TestRegistryCreatesOncePerLanguage(t *testing.T) {
	store := &countingStore{Store: NewMemoryStore()}
	reg := NewRegistry(store, "scriptumai", []string{"en", "fr", "es"}, 4)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := reg.Collection(ctx, "fr")
			require.NoError(t, err)
			require.Equal(t, "scriptumai_fr", c.Name())
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, atomic.LoadInt32(&store.creates))

	all, err := reg.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "en", all[0].Language)
	require.Equal(t, "scriptumai_es", all[2].Collection.Name())
	require.EqualValues(t, 3, atomic.LoadInt32(&store.creates))
}

func TestRegistryRejectsUnsupportedLanguage(t *testing.T) {
	reg := NewRegistry(NewMemoryStore(), "base", []string{"en"}, 4)
	_, err := reg.Collection(context.Background(), "de")
	require.Error(t, err)
}

func TestRegistryHealth(t *testing.T) {
	store := &countingStore{Store: NewMemoryStore(), heartbeat: errors.New("down")}
	reg := NewRegistry(store, "base", []string{"en"}, 4)
	require.Error(t, reg.Health(context.Background()))
	store.heartbeat = nil
	require.NoError(t, reg.Health(context.Background()))
}

func TestConnect(t *testing.T) {
	store, err := Connect(context.Background(), config.VectorStoreConfig{Type: "memory", MaxRetries: 2})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = Connect(context.Background(), config.VectorStoreConfig{Type: "nope", MaxRetries: 2, RetryDelay: 0})
	require.Error(t, err)
}

func configFor(kind string, data interface{}) config.VectorStoreConfig {
	return config.VectorStoreConfig{Type: kind, Data: data}
}
