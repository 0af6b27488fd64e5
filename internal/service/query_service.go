package service

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/Guiss-Guiss/ScriptumAI/internal/model"
)

const generationFailedAnswer = "Sorry, an answer could not be generated for this question. The most relevant passages are listed below."
const noContextAnswer = "No relevant passages were found for this question."

type Answerer interface {
	Answer(ctx context.Context, query string, language string, chunks []model.SearchResult) (string, error)
	AnswerStream(ctx context.Context, query string, language string, chunks []model.SearchResult, onChunk func(string) error) error
	HasGenerator() bool
}

type QueryOptions struct {
	K         int
	Threshold float64
}

// QueryService answers questions from retrieved chunks.
type QueryService struct {
	retrieval *RetrievalService
	answerer  Answerer
	topK      int
	poolK     int
	threshold float64
}

// NewQueryService builds the service. When a threshold applies, poolK candidates are
// retrieved and filtered before cutting down to k.
func NewQueryService(retrieval *RetrievalService, answerer Answerer, topK, poolK int, threshold float64) *QueryService {
	if topK <= 0 {
		topK = 5
	}
	return &QueryService{
		retrieval: retrieval,
		answerer:  answerer,
		topK:      topK,
		poolK:     poolK,
		threshold: threshold,
	}
}

// Search returns the ranked chunks with no generation step.
func (s *QueryService) Search(ctx context.Context, query string, opts QueryOptions) []model.SearchResult {
	_, out := s.search(ctx, query, opts)
	return out
}

func (s *QueryService) search(ctx context.Context, query string, opts QueryOptions) (string, []model.SearchResult) {
	k := opts.K
	if k <= 0 {
		k = s.topK
	}
	min := s.thresholdFor(opts)
	if min <= 0 {
		return s.retrieval.RetrieveWithLanguage(ctx, query, k)
	}
	pool := k
	if s.poolK > pool {
		pool = s.poolK
	}
	lang, results := s.retrieval.RetrieveWithLanguage(ctx, query, pool)
	out := FilterByScore(results, min)
	if len(out) > k {
		out = out[:k]
	}
	return lang, out
}

func (s *QueryService) Query(ctx context.Context, query string, opts QueryOptions) *model.QueryResult {
	res := s.prepare(ctx, query, opts)
	if res.Answer != "" {
		return res
	}
	answer, err := s.answerer.Answer(ctx, query, res.Language, res.Chunks)
	if err != nil {
		logutil.GetLogger(ctx).Error("generate answer failed", zap.String("query", query), zap.Error(err))
		res.Answer = generationFailedAnswer
		res.Error = err.Error()
		return res
	}
	res.Answer = answer
	return res
}

// QueryStream behaves like Query but hands the answer to onChunk as it is generated.
// The returned result carries the chunks and, on failure, the error; its Answer is
// the concatenation of every fragment sent.
func (s *QueryService) QueryStream(ctx context.Context, query string, opts QueryOptions, onChunk func(string) error) *model.QueryResult {
	res := s.prepare(ctx, query, opts)
	if res.Answer != "" {
		_ = onChunk(res.Answer)
		return res
	}
	var sb strings.Builder
	err := s.answerer.AnswerStream(ctx, query, res.Language, res.Chunks, func(fragment string) error {
		sb.WriteString(fragment)
		return onChunk(fragment)
	})
	res.Answer = sb.String()
	if err != nil {
		logutil.GetLogger(ctx).Error("stream answer failed", zap.String("query", query), zap.Error(err))
		res.Error = err.Error()
		if res.Answer == "" {
			res.Answer = generationFailedAnswer
			_ = onChunk(res.Answer)
		}
	}
	return res
}

// prepare retrieves the context. A non-empty Answer means generation must be skipped.
func (s *QueryService) prepare(ctx context.Context, query string, opts QueryOptions) *model.QueryResult {
	res := &model.QueryResult{Query: query}
	res.Language, res.Chunks = s.search(ctx, query, opts)
	switch {
	case len(res.Chunks) == 0:
		res.Answer = noContextAnswer
	case s.answerer == nil || !s.answerer.HasGenerator():
		res.Answer = generationFailedAnswer
		res.Error = "generator not configured"
	}
	return res
}

func (s *QueryService) thresholdFor(opts QueryOptions) float64 {
	if opts.Threshold > 0 {
		return opts.Threshold
	}
	return s.threshold
}

// FilterByScore drops results below min, keeping order. A min of zero keeps everything.
func FilterByScore(results []model.SearchResult, min float64) []model.SearchResult {
	if min <= 0 {
		return results
	}
	out := make([]model.SearchResult, 0, len(results))
	for _, r := range results {
		if r.Similarity >= min {
			out = append(out, r)
		}
	}
	return out
}
