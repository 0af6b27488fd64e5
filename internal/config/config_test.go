package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 1000, cfg.Ingest.ChunkSize)
	require.Equal(t, 200, cfg.Ingest.ChunkOverlap)
	require.Equal(t, 128, cfg.Ingest.BatchSize)
	require.Equal(t, []string{"en", "fr", "es"}, cfg.SupportedLanguages)
	require.Equal(t, 768, cfg.AI.Dimension)
	require.True(t, cfg.Replace())
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `{
		"port": 9000,
		"supported_languages": ["FR", "en"],
		"ingest": {"chunk_size": 500, "chunk_overlap": 50, "replace_existing": false},
		"vector_store": {"type": "qdrant", "collection_base": "docs", "data": {"url": "http://localhost:6333"}}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, []string{"fr", "en"}, cfg.SupportedLanguages)
	require.Equal(t, 500, cfg.Ingest.ChunkSize)
	require.False(t, cfg.Replace())
	require.Equal(t, "qdrant", cfg.VectorStore.Type)
	require.Equal(t, 128, cfg.Ingest.BatchSize)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "overlap too large", body: `{"ingest": {"chunk_size": 100, "chunk_overlap": 100}}`},
		{name: "no languages", body: `{"supported_languages": []}`},
		{name: "unknown provider", body: `{"ai": {"embedders": [{"provider": "nope", "model": "m"}]}}`},
		{name: "bad json", body: `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestPersistentCacheDefaults(t *testing.T) {
	path := writeConfig(t, `{"cache": {"persistent": {"dsn": "postgres://localhost/scriptum"}}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Cache.Persistent)
	require.Equal(t, "0 3 * * *", cfg.Cache.PersistentPrune)
	require.Equal(t, 1000, cfg.Cache.EmbeddingSize)

	cfg, err = Load("")
	require.NoError(t, err)
	require.Nil(t, cfg.Cache.Persistent)
	require.Equal(t, []string(nil), cfg.Auth.CORSOrigins)
	require.Equal(t, 6, cfg.Tasks.UploadMaxAgeHours)
}
