package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Guiss-Guiss/ScriptumAI/internal/model"
)

type ManagerConfig struct {
	EmbedTimeout    time.Duration
	GenerateTimeout time.Duration
}

// Manager bounds every inference call with a timeout.
type Manager struct {
	generator IGenerator
	embedder  IEmbedder
	cfg       ManagerConfig
}

func NewManager(generator IGenerator, embedder IEmbedder, cfg ManagerConfig) *Manager {
	return &Manager{
		generator: generator,
		embedder:  embedder,
		cfg:       cfg,
	}
}

func (m *Manager) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	ctx, cancel := withTimeout(ctx, m.cfg.EmbedTimeout)
	defer cancel()
	return m.embedder.Embed(ctx, text, taskType)
}

func (m *Manager) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	ctx, cancel := withTimeout(ctx, m.cfg.EmbedTimeout)
	defer cancel()
	return EmbedBatch(ctx, m.embedder, texts, taskType)
}

func (m *Manager) Answer(ctx context.Context, query string, language string, chunks []model.SearchResult) (string, error) {
	if m.generator == nil {
		return "", fmt.Errorf("generator not configured")
	}
	return m.generateText(ctx, m.generator, AnswerPrompt(query, language, chunks))
}

func (m *Manager) AnswerStream(ctx context.Context, query string, language string, chunks []model.SearchResult, onChunk func(string) error) error {
	if m.generator == nil {
		return fmt.Errorf("generator not configured")
	}
	ctx, cancel := withTimeout(ctx, m.cfg.GenerateTimeout)
	defer cancel()
	prompt := AnswerPrompt(query, language, chunks)
	if sg, ok := m.generator.(IStreamGenerator); ok {
		return sg.GenerateStream(ctx, prompt, onChunk)
	}
	res, err := m.generator.Generate(ctx, prompt)
	if err != nil {
		return err
	}
	return onChunk(res)
}

func (m *Manager) HasGenerator() bool {
	return m.generator != nil
}

func (m *Manager) EmbeddingModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}

func (m *Manager) generateText(ctx context.Context, gen IGenerator, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, m.cfg.GenerateTimeout)
	defer cancel()
	resp, err := gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

var languageNames = map[string]string{
	"en": "English",
	"fr": "French",
	"es": "Spanish",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
}

func AnswerPrompt(query string, language string, chunks []model.SearchResult) string {
	var sb strings.Builder
	for _, chunk := range chunks {
		source := chunk.Source()
		if source == "" {
			source = "Unknown"
		}
		fmt.Fprintf(&sb, "Content: %s\nSource: %s\nRelevance: %.4f\n---\n", chunk.Content, source, chunk.Similarity)
	}
	name := languageNames[language]
	if name == "" {
		name = "the language of the question"
	}
	return fmt.Sprintf(`You are an assistant specialised in text analysis.
Answer the question using the excerpts below.
- Combine information from several excerpts into one coherent answer.
- Say clearly what the excerpts do not cover.
- Mark any inference that goes beyond the excerpts.
- Answer in %s.

CONTEXT:
%s
QUESTION:
%s`, name, sb.String(), query)
}
