package db

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Guiss-Guiss/ScriptumAI/internal/config"
)

func TestDSN(t *testing.T) {
	require.Equal(t, "postgres://u@h/db", DSN(config.DatabaseConfig{DSN: "postgres://u@h/db", Host: "ignored"}))
	require.Equal(t,
		"host=localhost port=5432 user=rag password=pw dbname=scriptum sslmode=disable",
		DSN(config.DatabaseConfig{Host: "localhost", User: "rag", Password: "pw", DBName: "scriptum"}),
	)
}

func TestMigrationsSplit(t *testing.T) {
	content, err := migrationsFS.ReadFile("migrations/001_vector_store.sql")
	require.NoError(t, err)
	stmts := splitStatements(string(content))
	require.Len(t, stmts, 4)
	require.Contains(t, stmts[0], "CREATE EXTENSION")
	require.Contains(t, stmts[2], "chunk_records")
}
