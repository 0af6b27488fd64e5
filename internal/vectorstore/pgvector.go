package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/Guiss-Guiss/ScriptumAI/internal/config"
	"github.com/Guiss-Guiss/ScriptumAI/internal/db"
	"github.com/Guiss-Guiss/ScriptumAI/internal/model"
	"github.com/Guiss-Guiss/ScriptumAI/internal/pkg/dbutil"
)

const (
	collectionTable = "vector_collections"
	recordTable     = "chunk_records"
	insertBatch     = 200
)

var recordColumns = []string{"id", "document", "metadata", "embedding"}

type pgStore struct {
	db *sql.DB
}

func init() {
	Register("pgvector", createPgStore)
}

func createPgStore(args interface{}) (Store, error) {
	cfg := &config.DatabaseConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	conn, err := db.Open(*cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return NewPgStore(conn), nil
}

func NewPgStore(conn *sql.DB) Store {
	return &pgStore{db: conn}
}

func (s *pgStore) CreateOrGetCollection(ctx context.Context, name string, dimension int, distance Distance) (Collection, error) {
	if distance != DistanceCosine {
		return nil, fmt.Errorf("unsupported distance %q", distance)
	}
	sqlStr, args, err := builder.BuildInsert(collectionTable, []map[string]interface{}{{
		"name":      name,
		"dimension": dimension,
		"distance":  string(distance),
		"ctime":     time.Now().Unix(),
	}})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(dbutil.OnConflictUpdate(sqlStr, []string{"name"}, nil), args)
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return nil, err
	}

	sqlStr, args, err = builder.BuildSelect(collectionTable, map[string]interface{}{"name": name}, []string{"dimension"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var existing int
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&existing); err != nil {
		return nil, err
	}
	if dimension > 0 && existing != dimension {
		return nil, fmt.Errorf("collection %s has dimension %d, expected %d", name, existing, dimension)
	}
	return &pgCollection{db: s.db, name: name, dimension: existing}, nil
}

func (s *pgStore) Heartbeat(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *pgStore) Close() error {
	return s.db.Close()
}

type pgCollection struct {
	db        *sql.DB
	name      string
	dimension int
}

func (c *pgCollection) Name() string {
	return c.name
}

func (c *pgCollection) Add(ctx context.Context, records []model.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	now := time.Now().Unix()
	rows := make([]map[string]interface{}, 0, len(records))
	for i := range records {
		r := &records[i]
		if c.dimension > 0 && len(r.Embedding) != c.dimension {
			return fmt.Errorf("record %s has dimension %d, collection expects %d", r.ID, len(r.Embedding), c.dimension)
		}
		row, err := recordRow(c.name, r, now)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()
	for start := 0; start < len(rows); start += insertBatch {
		end := start + insertBatch
		if end > len(rows) {
			end = len(rows)
		}
		sqlStr, args, err := upsertRecordsSQL(rows[start:end])
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (c *pgCollection) Query(ctx context.Context, vector []float32, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, nil
	}
	const query = `
		SELECT id, document, metadata, embedding, embedding <=> ? AS distance
		FROM chunk_records
		WHERE collection = ?
		ORDER BY distance ASC
		LIMIT ?
	`
	sqlStr, args := dbutil.Finalize(query, []interface{}{pgvector.NewVector(vector), c.name, k})
	rows, err := c.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Neighbor
	for rows.Next() {
		var (
			n        Neighbor
			meta     []byte
			emb      pgvector.Vector
			distance sql.NullFloat64
		)
		if err := rows.Scan(&n.Record.ID, &n.Record.Text, &meta, &emb, &distance); err != nil {
			return nil, err
		}
		if err := decodeMetadata(meta, &n.Record); err != nil {
			return nil, err
		}
		n.Record.Embedding = emb.Slice()
		n.Distance = 1
		if distance.Valid {
			n.Distance = distance.Float64
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (c *pgCollection) Get(ctx context.Context, ids []string) ([]model.ChunkRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sqlStr, args, err := selectRecordsSQL(c.name, ids)
	if err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	byID := make(map[string]model.ChunkRecord, len(ids))
	for rows.Next() {
		var (
			r    model.ChunkRecord
			meta []byte
			emb  pgvector.Vector
		)
		if err := rows.Scan(&r.ID, &r.Text, &meta, &emb); err != nil {
			return nil, err
		}
		if err := decodeMetadata(meta, &r); err != nil {
			return nil, err
		}
		r.Embedding = emb.Slice()
		byID[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]model.ChunkRecord, 0, len(byID))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
			delete(byID, id)
		}
	}
	return out, nil
}

func (c *pgCollection) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := c.delete(ctx, map[string]interface{}{
		"collection": c.name,
		"id in":      dbutil.Values(ids),
	})
	return err
}

func (c *pgCollection) DeleteBySource(ctx context.Context, source string) (int, error) {
	return c.DeleteBySourceExcept(ctx, source, nil)
}

func (c *pgCollection) DeleteBySourceExcept(ctx context.Context, source string, keep []string) (int, error) {
	n, err := c.delete(ctx, sourceWhere(c.name, source, keep))
	return int(n), err
}

func (c *pgCollection) delete(ctx context.Context, where map[string]interface{}) (int64, error) {
	sqlStr, args, err := deleteRecordsSQL(where)
	if err != nil {
		return 0, err
	}
	res, err := c.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *pgCollection) Count(ctx context.Context) (int, error) {
	sqlStr, args, err := builder.BuildSelect(recordTable, map[string]interface{}{"collection": c.name}, []string{"COUNT(*) AS cnt"})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var count int
	if err := c.db.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func recordRow(collection string, r *model.ChunkRecord, mtime int64) (map[string]interface{}, error) {
	meta, err := json.Marshal(r.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata of %s: %w", r.ID, err)
	}
	return map[string]interface{}{
		"collection": collection,
		"id":         r.ID,
		"source":     recordSource(r),
		"document":   r.Text,
		"metadata":   string(meta),
		"embedding":  pgvector.NewVector(r.Embedding),
		"mtime":      mtime,
	}, nil
}

func upsertRecordsSQL(rows []map[string]interface{}) (string, []interface{}, error) {
	sqlStr, args, err := builder.BuildInsert(recordTable, rows)
	if err != nil {
		return "", nil, err
	}
	sqlStr = dbutil.OnConflictUpdate(sqlStr,
		[]string{"collection", "id"},
		[]string{"source", "document", "metadata", "embedding", "mtime"},
	)
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return sqlStr, args, nil
}

func selectRecordsSQL(collection string, ids []string) (string, []interface{}, error) {
	where := map[string]interface{}{
		"collection": collection,
		"id in":      dbutil.Values(ids),
	}
	sqlStr, args, err := builder.BuildSelect(recordTable, where, recordColumns)
	if err != nil {
		return "", nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return sqlStr, args, nil
}

func sourceWhere(collection, source string, keep []string) map[string]interface{} {
	where := map[string]interface{}{
		"collection": collection,
		"source":     source,
	}
	if len(keep) > 0 {
		where["id not in"] = dbutil.Values(keep)
	}
	return where
}

func deleteRecordsSQL(where map[string]interface{}) (string, []interface{}, error) {
	sqlStr, args, err := builder.BuildDelete(recordTable, where)
	if err != nil {
		return "", nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return sqlStr, args, nil
}

func decodeMetadata(raw []byte, r *model.ChunkRecord) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &r.Metadata); err != nil {
		return fmt.Errorf("decode metadata of %s: %w", r.ID, err)
	}
	return nil
}
