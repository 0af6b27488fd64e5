package embedcache

import (
	"context"
	"database/sql"
	"errors"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/Guiss-Guiss/ScriptumAI/internal/model"
	"github.com/Guiss-Guiss/ScriptumAI/internal/pkg/dbutil"
)

const cacheTable = "embedding_cache"

// PgStore keeps embeddings in postgres so they survive restarts.
type PgStore struct {
	db *sql.DB
}

func NewPgStore(db *sql.DB) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error) {
	where := map[string]interface{}{
		"model_name":   modelName,
		"task_type":    taskType,
		"content_hash": contentHash,
	}
	sqlStr, args, err := builder.BuildSelect(cacheTable, where, []string{"embedding"})
	if err != nil {
		return nil, false, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var embedding pgvector.Vector
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&embedding); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return embedding.Slice(), true, nil
}

func (s *PgStore) Save(ctx context.Context, item *model.EmbeddingCache) error {
	data := []map[string]interface{}{{
		"model_name":   item.ModelName,
		"task_type":    item.TaskType,
		"content_hash": item.ContentHash,
		"embedding":    pgvector.NewVector(item.Embedding),
		"ctime":        item.Ctime,
	}}
	sqlStr, args, err := builder.BuildInsert(cacheTable, data)
	if err != nil {
		return err
	}
	sqlStr = dbutil.OnConflictUpdate(sqlStr, []string{"model_name", "task_type", "content_hash"}, []string{"embedding", "ctime"})
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = s.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (s *PgStore) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	sqlStr, args, err := builder.BuildDelete(cacheTable, map[string]interface{}{"ctime <": cutoff})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PgStore) Close() error {
	return s.db.Close()
}
