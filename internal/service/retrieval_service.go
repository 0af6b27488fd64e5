package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Guiss-Guiss/ScriptumAI/internal/ai"
	"github.com/Guiss-Guiss/ScriptumAI/internal/cache"
	"github.com/Guiss-Guiss/ScriptumAI/internal/langdetect"
	"github.com/Guiss-Guiss/ScriptumAI/internal/metrics"
	"github.com/Guiss-Guiss/ScriptumAI/internal/model"
	appErr "github.com/Guiss-Guiss/ScriptumAI/internal/pkg/errors"
	"github.com/Guiss-Guiss/ScriptumAI/internal/vectorstore"
)

const batchQueryWorkers = 4

type QueryEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
}

// QueryKey identifies a cached retrieval: the normalized query and the requested count.
type QueryKey struct {
	Query string
	K     int
}

type QueryCache = cache.TTLCache[QueryKey, []model.SearchResult]

func NewQueryCache(size int, ttl time.Duration) *QueryCache {
	return cache.New[QueryKey, []model.SearchResult]("query", size, ttl)
}

type RetrievalService struct {
	router    *langdetect.Router
	embedder  QueryEmbedder
	registry  *vectorstore.Registry
	cache     *QueryCache
	activity  *Activity
	topK      int
	dimension int
}

func NewRetrievalService(router *langdetect.Router, embedder QueryEmbedder, registry *vectorstore.Registry, queryCache *QueryCache, activity *Activity, topK int) *RetrievalService {
	if topK <= 0 {
		topK = 5
	}
	return &RetrievalService{
		router:    router,
		embedder:  embedder,
		registry:  registry,
		cache:     queryCache,
		activity:  activity,
		topK:      topK,
		dimension: registry.Dimension(),
	}
}

func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Retrieve returns at most k chunks ranked by similarity, with chunks in the
// query's language first. Failures yield an empty result.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, k int) []model.SearchResult {
	_, results := s.RetrieveWithLanguage(ctx, query, k)
	return results
}

// RetrieveWithLanguage is Retrieve that also reports the language detected for query.
func (s *RetrievalService) RetrieveWithLanguage(ctx context.Context, query string, k int) (string, []model.SearchResult) {
	if k <= 0 {
		k = s.topK
	}
	lang := s.router.Detect(ctx, query)
	if strings.TrimSpace(query) == "" {
		return lang, []model.SearchResult{}
	}
	logger := logutil.GetLogger(ctx).With(zap.String("query", query), zap.Int("k", k))
	compute := func(ctx context.Context) ([]model.SearchResult, error) {
		return s.retrieve(ctx, query, lang, k)
	}
	var (
		results []model.SearchResult
		err     error
	)
	if s.cache != nil {
		results, err = s.cache.GetOrCompute(ctx, QueryKey{Query: normalizeQuery(query), K: k}, compute)
	} else {
		results, err = compute(ctx)
	}
	if err != nil {
		metrics.RetrievalTotal.WithLabelValues("failed").Inc()
		logger.Error("retrieve failed", zap.Error(err))
		return lang, []model.SearchResult{}
	}
	metrics.RetrievalTotal.WithLabelValues("ok").Inc()
	s.activity.Record()
	return lang, append([]model.SearchResult(nil), results...)
}

func (s *RetrievalService) retrieve(ctx context.Context, query, lang string, k int) ([]model.SearchResult, error) {
	vec, err := s.embedder.Embed(ctx, query, ai.TaskTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrEmbeddingService, err)
	}
	vec = ai.Reconcile(ctx, vec, s.dimension)

	colls, err := s.registry.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrStoreQuery, err)
	}
	perColl := make([][]model.SearchResult, len(colls))
	failed := make([]error, len(colls))
	var g errgroup.Group
	for i, lc := range colls {
		i, lc := i, lc
		g.Go(func() error {
			neighbors, err := lc.Collection.Query(ctx, vec, k)
			if err != nil {
				failed[i] = err
				return nil
			}
			perColl[i] = toResults(neighbors, lc)
			return nil
		})
	}
	_ = g.Wait()

	var merged []model.SearchResult
	failures := 0
	for i, lc := range colls {
		if failed[i] != nil {
			failures++
			metrics.CollectionQueryErrors.WithLabelValues(lc.Collection.Name()).Inc()
			logutil.GetLogger(ctx).Warn("collection query failed, skipping",
				zap.String("collection", lc.Collection.Name()), zap.Error(failed[i]))
			continue
		}
		merged = append(merged, perColl[i]...)
	}
	if len(colls) > 0 && failures == len(colls) {
		return nil, fmt.Errorf("%w: all %d collections failed", appErr.ErrStoreQuery, failures)
	}
	return RankResults(merged, lang, k), nil
}

func toResults(neighbors []vectorstore.Neighbor, lc vectorstore.LanguageCollection) []model.SearchResult {
	out := make([]model.SearchResult, 0, len(neighbors))
	for _, n := range neighbors {
		out = append(out, model.SearchResult{
			ID:         n.Record.ID,
			Content:    n.Record.Text,
			Metadata:   n.Record.Metadata,
			Language:   lc.Language,
			Collection: lc.Collection.Name(),
			Similarity: 1 - n.Distance,
		})
	}
	return out
}

// RankResults orders results by descending similarity, moves those in lang ahead
// of the rest while keeping that order, and keeps the first k.
func RankResults(results []model.SearchResult, lang string, k int) []model.SearchResult {
	ranked := append([]model.SearchResult(nil), results...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity > ranked[j].Similarity
	})
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Language == lang && ranked[j].Language != lang
	})
	if k >= 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// RetrieveBatch runs every query independently and returns one list per query.
func (s *RetrievalService) RetrieveBatch(ctx context.Context, queries []string, k int) [][]model.SearchResult {
	out := make([][]model.SearchResult, len(queries))
	var g errgroup.Group
	g.SetLimit(batchQueryWorkers)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			out[i] = s.Retrieve(ctx, q, k)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// RetrieveByID looks ids up in every collection and concatenates what is found, unranked.
func (s *RetrievalService) RetrieveByID(ctx context.Context, ids []string) ([]model.SearchResult, error) {
	if len(ids) == 0 {
		return []model.SearchResult{}, nil
	}
	colls, err := s.registry.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrStoreQuery, err)
	}
	out := make([]model.SearchResult, 0, len(ids))
	for _, lc := range colls {
		records, err := lc.Collection.Get(ctx, ids)
		if err != nil {
			logutil.GetLogger(ctx).Warn("collection get failed, skipping",
				zap.String("collection", lc.Collection.Name()), zap.Error(err))
			continue
		}
		for _, r := range records {
			out = append(out, model.SearchResult{
				ID:         r.ID,
				Content:    r.Text,
				Metadata:   r.Metadata,
				Language:   lc.Language,
				Collection: lc.Collection.Name(),
			})
		}
	}
	return out, nil
}

// DeleteDocument removes every chunk of the document with the given stem.
func (s *RetrievalService) DeleteDocument(ctx context.Context, stem string) (int, error) {
	stem = strings.TrimSpace(stem)
	if stem == "" {
		return 0, fmt.Errorf("%w: empty document stem", appErr.ErrInvalid)
	}
	total, err := deleteStem(ctx, s.registry, stem)
	if total > 0 {
		s.Invalidate()
	}
	if err != nil {
		return total, err
	}
	if total == 0 {
		return 0, fmt.Errorf("%w: document %s", appErr.ErrNotFound, stem)
	}
	logutil.GetLogger(ctx).Info("document deleted", zap.String("stem", stem), zap.Int("chunks", total))
	return total, nil
}

// Invalidate drops every cached query result.
func (s *RetrievalService) Invalidate() {
	if s.cache != nil {
		s.cache.Purge()
	}
}
