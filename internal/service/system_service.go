package service

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/Guiss-Guiss/ScriptumAI/internal/model"
	appErr "github.com/Guiss-Guiss/ScriptumAI/internal/pkg/errors"
	"github.com/Guiss-Guiss/ScriptumAI/internal/vectorstore"
)

const (
	HealthStatusHealthy   = "healthy"
	HealthStatusUnhealthy = "unhealthy"
)

type activeCounter interface {
	ActiveCount() int
}

type SystemInfo struct {
	EmbeddingModel     string
	LLMModel           string
	SupportedFileTypes []string
}

type SystemService struct {
	registry *vectorstore.Registry
	tasks    activeCounter
	activity *Activity
	info     SystemInfo
}

func NewSystemService(registry *vectorstore.Registry, tasks activeCounter, activity *Activity, info SystemInfo) *SystemService {
	return &SystemService{
		registry: registry,
		tasks:    tasks,
		activity: activity,
		info:     info,
	}
}

func (s *SystemService) Stats(ctx context.Context) (*model.Stats, error) {
	colls, err := s.registry.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrStoreQuery, err)
	}
	stats := &model.Stats{
		Collections:        make([]model.CollectionStats, 0, len(colls)),
		ChunksByLanguage:   make(map[string]int, len(colls)),
		EmbeddingModel:     s.info.EmbeddingModel,
		LLMModel:           s.info.LLMModel,
		SupportedFileTypes: append([]string(nil), s.info.SupportedFileTypes...),
	}
	for _, lc := range colls {
		n, err := lc.Collection.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: count %s: %v", appErr.ErrStoreQuery, lc.Collection.Name(), err)
		}
		stats.Collections = append(stats.Collections, model.CollectionStats{
			Language:   lc.Language,
			Collection: lc.Collection.Name(),
			Chunks:     n,
		})
		stats.ChunksByLanguage[lc.Language] = n
		stats.TotalChunks += n
	}
	// Documents are not tracked separately from their chunks.
	stats.TotalDocuments = stats.TotalChunks
	if s.tasks != nil {
		stats.ActiveTasks = s.tasks.ActiveCount()
	}
	return stats, nil
}

// Health never fails; an unreachable store is reported in the result.
func (s *SystemService) Health(ctx context.Context) *model.Health {
	h := &model.Health{
		Status:        HealthStatusHealthy,
		VectorStore:   "connected",
		RecentSuccess: s.activity.Recent(),
		LastSuccess:   s.activity.Last(),
	}
	if err := s.registry.Health(ctx); err != nil {
		logutil.GetLogger(ctx).Warn("vector store health check failed", zap.Error(err))
		h.Status = HealthStatusUnhealthy
		h.VectorStore = "disconnected"
		h.Error = err.Error()
	}
	return h
}
