package langdetect

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/Guiss-Guiss/ScriptumAI/internal/metrics"
	appErr "github.com/Guiss-Guiss/ScriptumAI/internal/pkg/errors"
)

// Detector guesses the ISO 639-1 code of a text. ok is false when it cannot decide.
type Detector interface {
	Detect(text string) (lang string, ok bool)
}

type Router struct {
	languages []string
	supported map[string]struct{}
	detector  Detector
}

func NewRouter(languages []string) *Router {
	return NewRouterWithDetector(languages, NewLinguaDetector(languages))
}

func NewRouterWithDetector(languages []string, detector Detector) *Router {
	r := &Router{
		supported: make(map[string]struct{}, len(languages)),
		detector:  detector,
	}
	for _, lang := range languages {
		lang = normalize(lang)
		if lang == "" {
			continue
		}
		if _, ok := r.supported[lang]; ok {
			continue
		}
		r.supported[lang] = struct{}{}
		r.languages = append(r.languages, lang)
	}
	return r
}

func (r *Router) Languages() []string {
	out := make([]string, len(r.languages))
	copy(out, r.languages)
	return out
}

func (r *Router) Default() string {
	if len(r.languages) == 0 {
		return ""
	}
	return r.languages[0]
}

func (r *Router) Supported(lang string) bool {
	_, ok := r.supported[normalize(lang)]
	return ok
}

// Detect always returns one of the supported languages.
func (r *Router) Detect(ctx context.Context, text string) string {
	lang, err := r.detect(text)
	if err == nil {
		return lang
	}
	metrics.LanguageFallback.Inc()
	logutil.GetLogger(ctx).Debug("language detection fallback",
		zap.String("default", r.Default()),
		zap.Error(err),
	)
	return r.Default()
}

func (r *Router) detect(text string) (lang string, err error) {
	if len(r.languages) == 1 {
		return r.languages[0], nil
	}
	if r.detector == nil {
		return "", fmt.Errorf("%w: no detector configured", appErr.ErrLanguageFallback)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty text", appErr.ErrLanguageFallback)
	}
	defer func() {
		if p := recover(); p != nil {
			lang, err = "", fmt.Errorf("%w: detector panic: %v", appErr.ErrLanguageFallback, p)
		}
	}()
	guess, ok := r.detector.Detect(text)
	if !ok {
		return "", appErr.ErrLanguageFallback
	}
	guess = normalize(guess)
	if _, ok := r.supported[guess]; !ok {
		return "", fmt.Errorf("%w: unsupported language %q", appErr.ErrLanguageFallback, guess)
	}
	return guess, nil
}

func normalize(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}
