package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Guiss-Guiss/ScriptumAI/internal/ai"
	"github.com/Guiss-Guiss/ScriptumAI/internal/chunker"
	"github.com/Guiss-Guiss/ScriptumAI/internal/decoder"
	"github.com/Guiss-Guiss/ScriptumAI/internal/filestore"
	"github.com/Guiss-Guiss/ScriptumAI/internal/langdetect"
	"github.com/Guiss-Guiss/ScriptumAI/internal/metrics"
	"github.com/Guiss-Guiss/ScriptumAI/internal/model"
	appErr "github.com/Guiss-Guiss/ScriptumAI/internal/pkg/errors"
	"github.com/Guiss-Guiss/ScriptumAI/internal/tasktracker"
	"github.com/Guiss-Guiss/ScriptumAI/internal/vectorstore"
)

const (
	StageDecoding  = "decoding"
	StageChunking  = "chunking"
	StageDetecting = "detecting language"
	StageEmbedding = "embedding"
	StageReplacing = "removing previous chunks"
	StageStoring   = "storing"
	StageDone      = "done"
)

// ProgressFunc receives the number of chunks handled so far and the current stage.
type ProgressFunc func(count int, stage string)

type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error)
}

// BatchError reports which slice of a document's chunks failed to embed.
type BatchError struct {
	Batch int
	Start int
	End   int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d (chunks %d-%d): %v", e.Batch, e.Start, e.End-1, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

type IngestConfig struct {
	BatchSize        int
	Dimension        int
	Replace          bool
	Workers          int
	DirectoryWorkers int
}

type IngestDeps struct {
	Decoders *decoder.Registry
	Chunker  *chunker.Chunker
	Router   *langdetect.Router
	Embedder BatchEmbedder
	Registry *vectorstore.Registry
	Tracker  *tasktracker.Tracker
	Files    filestore.Store
	Activity *Activity
	// OnWrite runs after records were written or replaced, typically to drop cached query results.
	OnWrite func()
}

type IngestService struct {
	deps IngestDeps
	cfg  IngestConfig

	slots  chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
}

func NewIngestService(deps IngestDeps, cfg IngestConfig) *IngestService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.DirectoryWorkers <= 0 {
		cfg.DirectoryWorkers = 1
	}
	return &IngestService{
		deps:  deps,
		cfg:   cfg,
		slots: make(chan struct{}, cfg.Workers),
	}
}

func (s *IngestService) Ingest(ctx context.Context, doc *model.Document, progress ProgressFunc) (*model.IngestResult, error) {
	if progress == nil {
		progress = func(int, string) {}
	}
	logger := logutil.GetLogger(ctx).With(zap.String("file", doc.Name))
	res, err := s.ingest(ctx, doc, progress)
	if err != nil {
		metrics.IngestTotal.WithLabelValues("failed").Inc()
		logger.Error("ingest document failed", zap.Error(err))
		return nil, err
	}
	metrics.IngestTotal.WithLabelValues("ok").Inc()
	s.deps.Activity.Record()
	logger.Info("document ingested",
		zap.String("language", res.Language),
		zap.String("collection", res.Collection),
		zap.Int("chunks", res.Chunks),
		zap.Int("replaced", res.Replaced),
	)
	return res, nil
}

func (s *IngestService) ingest(ctx context.Context, doc *model.Document, progress ProgressFunc) (*model.IngestResult, error) {
	if doc == nil || doc.Name == "" {
		return nil, fmt.Errorf("%w: document has no name", appErr.ErrUnsupportedInput)
	}
	progress(0, StageDecoding)
	stop := stageTimer(StageDecoding)
	mimeType, err := s.deps.Decoders.Detect(doc.Name, doc.Content)
	if err != nil {
		return nil, err
	}
	doc.MIMEType = mimeType
	text, err := s.deps.Decoders.Decode(ctx, mimeType, doc.Content)
	stop()
	if err != nil {
		return nil, err
	}

	progress(0, StageChunking)
	chunks := s.deps.Chunker.Split(text)

	progress(0, StageDetecting)
	lang := s.deps.Router.Detect(ctx, text)
	coll, err := s.deps.Registry.Collection(ctx, lang)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrStoreWrite, err)
	}
	res := &model.IngestResult{
		Filename:   doc.Name,
		Stem:       doc.Stem(),
		FileType:   doc.Extension(),
		FileHash:   doc.Hash,
		Language:   lang,
		Collection: coll.Name(),
	}
	if len(chunks) == 0 {
		logutil.GetLogger(ctx).Warn("document has no text content", zap.String("file", doc.Name))
		if s.cfg.Replace {
			progress(0, StageReplacing)
			replaced, err := deleteStem(ctx, s.deps.Registry, res.Stem)
			if err != nil {
				return nil, err
			}
			res.Replaced = replaced
			if replaced > 0 && s.deps.OnWrite != nil {
				s.deps.OnWrite()
			}
		}
		progress(0, StageDone)
		return res, nil
	}

	vectors, err := s.embedChunks(ctx, chunks, progress)
	if err != nil {
		return nil, err
	}
	records := s.buildRecords(doc, lang, chunks, vectors)

	progress(len(chunks), StageStoring)
	stop = stageTimer(StageStoring)
	err = coll.Add(ctx, records)
	stop()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", appErr.ErrStoreWrite, coll.Name(), err)
	}
	var cleanErr error
	if s.cfg.Replace {
		progress(len(chunks), StageReplacing)
		keep := make([]string, 0, len(records))
		for _, r := range records {
			keep = append(keep, r.ID)
		}
		res.Replaced, cleanErr = removeStale(ctx, s.deps.Registry, res.Stem, coll.Name(), keep)
	}
	if s.deps.OnWrite != nil {
		s.deps.OnWrite()
	}
	if cleanErr != nil {
		return nil, cleanErr
	}
	metrics.ChunksWritten.WithLabelValues(lang).Add(float64(len(records)))
	res.Chunks = len(records)
	progress(len(records), StageDone)
	return res, nil
}

// embedChunks embeds every chunk before anything is written, so a failed batch
// leaves the collection untouched.
func (s *IngestService) embedChunks(ctx context.Context, chunks []model.Chunk, progress ProgressFunc) ([][]float32, error) {
	defer stageTimer(StageEmbedding)()
	logger := logutil.GetLogger(ctx)
	out := make([][]float32, 0, len(chunks))
	size := s.cfg.BatchSize
	for batch, start := 0, 0; start < len(chunks); batch, start = batch+1, start+size {
		end := start + size
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		vectors, err := s.deps.Embedder.EmbedBatch(ctx, texts, ai.TaskTypeDocument)
		if err == nil && len(vectors) != len(texts) {
			err = fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(texts))
		}
		if err != nil {
			return nil, &BatchError{
				Batch: batch,
				Start: start,
				End:   end,
				Err:   fmt.Errorf("%w: %v", appErr.ErrEmbeddingService, err),
			}
		}
		for _, v := range vectors {
			out = append(out, ai.Reconcile(ctx, v, s.cfg.Dimension))
		}
		logger.Debug("embedded batch", zap.Int("batch", batch), zap.Int("done", end), zap.Int("total", len(chunks)))
		progress(end, StageEmbedding)
	}
	return out, nil
}

func (s *IngestService) buildRecords(doc *model.Document, lang string, chunks []model.Chunk, vectors [][]float32) []model.ChunkRecord {
	stem := doc.Stem()
	records := make([]model.ChunkRecord, 0, len(chunks))
	for i, c := range chunks {
		records = append(records, model.ChunkRecord{
			ID:        model.ChunkID(stem, c.Index),
			Text:      c.Text,
			Embedding: vectors[i],
			Metadata: map[string]interface{}{
				model.MetaFilename:     filepath.Base(doc.Name),
				model.MetaFilePath:     doc.Path,
				model.MetaFileType:     doc.Extension(),
				model.MetaFileSize:     doc.Size,
				model.MetaFileHash:     doc.Hash,
				model.MetaCreatedAt:    doc.Ctime,
				model.MetaModifiedAt:   doc.Mtime,
				model.MetaChunkIndex:   c.Index,
				model.MetaLanguage:     lang,
				model.MetaDocumentStem: stem,
			},
		})
	}
	return records
}

// deleteStem removes a document's chunks from every language collection.
func deleteStem(ctx context.Context, registry *vectorstore.Registry, stem string) (int, error) {
	return removeStale(ctx, registry, stem, "", nil)
}

// removeStale deletes the records of stem from every collection, except the
// ids in keep when the collection is named target.
func removeStale(ctx context.Context, registry *vectorstore.Registry, stem, target string, keep []string) (int, error) {
	colls, err := registry.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", appErr.ErrStoreWrite, err)
	}
	total := 0
	for _, lc := range colls {
		var n int
		if lc.Collection.Name() == target {
			n, err = lc.Collection.DeleteBySourceExcept(ctx, stem, keep)
		} else {
			n, err = lc.Collection.DeleteBySource(ctx, stem)
		}
		if err != nil {
			return total, fmt.Errorf("%w: delete %s from %s: %v", appErr.ErrStoreWrite, stem, lc.Collection.Name(), err)
		}
		total += n
	}
	return total, nil
}

func (s *IngestService) IngestFile(ctx context.Context, path string, progress ProgressFunc) (*model.IngestResult, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	return s.Ingest(ctx, doc, progress)
}

// IngestDirectory ingests every supported file below dir. A failing file is
// recorded in its FileResult and does not stop the others.
func (s *IngestService) IngestDirectory(ctx context.Context, dir string) ([]model.FileResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", appErr.ErrInvalid, dir)
	}
	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !s.deps.Decoders.Supports(d.Name()) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	results := make([]model.FileResult, len(paths))
	var g errgroup.Group
	g.SetLimit(s.cfg.DirectoryWorkers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			results[i].Path = path
			res, err := s.IngestFile(ctx, path, nil)
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].Result = res
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

// SubmitUpload stages r and ingests it in the background. The returned task id can
// be polled through the tracker.
func (s *IngestService) SubmitUpload(ctx context.Context, filename string, r io.Reader) (string, error) {
	if s.closed.Load() {
		return "", fmt.Errorf("%w: ingestion is shutting down", appErr.ErrUnavailable)
	}
	if filename == "" {
		return "", fmt.Errorf("%w: empty file name", appErr.ErrUnsupportedInput)
	}
	key := stagingKey(filename)
	if _, err := s.deps.Files.Save(ctx, key, r); err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	return s.Submit(ctx, filename, key), nil
}

// Submit queues an already staged upload. The staged file is removed once the task ends.
func (s *IngestService) Submit(ctx context.Context, filename, key string) string {
	task := s.deps.Tracker.Create(filename)
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.slots <- struct{}{}
		defer func() { <-s.slots }()
		s.runTask(ctx, task.ID, filename, key)
	}()
	return task.ID
}

func (s *IngestService) runTask(ctx context.Context, taskID, filename, key string) {
	logger := logutil.GetLogger(ctx).With(zap.String("task_id", taskID), zap.String("file", filename))
	defer func() {
		if err := s.deps.Files.Remove(ctx, key); err != nil {
			logger.Warn("remove staged upload failed", zap.String("key", key), zap.Error(err))
		}
	}()
	defer func() {
		if p := recover(); p != nil {
			logger.Error("ingest task panicked", zap.Any("panic", p))
			_ = s.deps.Tracker.Fail(taskID, fmt.Sprintf("internal error: %v", p))
		}
	}()
	doc, err := s.loadStaged(ctx, filename, key)
	if err != nil {
		logger.Error("load staged upload failed", zap.Error(err))
		_ = s.deps.Tracker.Fail(taskID, err.Error())
		return
	}
	res, err := s.Ingest(ctx, doc, func(count int, stage string) {
		_ = s.deps.Tracker.SetProgress(taskID, count, stage)
	})
	if err != nil {
		_ = s.deps.Tracker.Fail(taskID, err.Error())
		return
	}
	_ = s.deps.Tracker.Complete(taskID, res.Chunks)
}

func (s *IngestService) loadStaged(ctx context.Context, filename, key string) (*model.Document, error) {
	rc, err := s.deps.Files.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	return &model.Document{
		Name:    filepath.Base(filename),
		Path:    filename,
		Content: data,
		Size:    int64(len(data)),
		Hash:    hashContent(data),
		Ctime:   now,
		Mtime:   now,
	}, nil
}

// Shutdown stops accepting uploads and waits for queued and running tasks.
func (s *IngestService) Shutdown(ctx context.Context) error {
	s.closed.Store(true)
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func readDocument(path string) (*model.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", appErr.ErrNotFound, path)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", appErr.ErrUnsupportedInput, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	// No portable creation time; the modification time stands in.
	return &model.Document{
		Name:    filepath.Base(path),
		Path:    path,
		Content: data,
		Size:    info.Size(),
		Hash:    hashContent(data),
		Ctime:   info.ModTime().Unix(),
		Mtime:   info.ModTime().Unix(),
	}, nil
}

func hashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func stageTimer(stage string) func() {
	start := time.Now()
	return func() {
		metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
