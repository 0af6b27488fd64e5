package ai

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/Guiss-Guiss/ScriptumAI/internal/metrics"
)

// Reconcile fits vec to dim by zero-padding or truncating. The input is never modified.
func Reconcile(ctx context.Context, vec []float32, dim int) []float32 {
	if dim <= 0 || len(vec) == dim {
		return vec
	}
	action := "pad"
	out := make([]float32, dim)
	copy(out, vec)
	if len(vec) > dim {
		action = "truncate"
	}
	metrics.DimensionMismatch.WithLabelValues(action).Inc()
	logutil.GetLogger(ctx).Warn("embedding dimension mismatch",
		zap.Int("got", len(vec)), zap.Int("want", dim), zap.String("action", action))
	return out
}
