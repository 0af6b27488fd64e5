package ai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const defaultOllamaBaseURL = "http://localhost:11434"

type ollamaConfig struct {
	BaseURL     string  `json:"base_url"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	MaxTokens   int     `json:"max_tokens"`
}

type ollamaProvider struct {
	baseURL string
	options map[string]interface{}
	client  *http.Client
}

type ollamaEmbedRequest struct {
	Model string      `json:"model"`
	Input interface{} `json:"input"`
}

type ollamaGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

func (p *ollamaProvider) Name() string {
	return "ollama"
}

func (p *ollamaProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	vectors, err := p.embed(ctx, model, text)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *ollamaProvider) EmbedBatch(ctx context.Context, model string, texts []string, taskType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return p.embed(ctx, model, texts)
}

func (p *ollamaProvider) embed(ctx context.Context, model string, input interface{}) ([][]float32, error) {
	raw, err := postJSON(ctx, p.client, p.baseURL+"/api/embed", nil, ollamaEmbedRequest{Model: model, Input: input})
	if err != nil {
		return nil, err
	}
	return parseEmbeddings(raw)
}

func (p *ollamaProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	raw, err := postJSON(ctx, p.client, p.baseURL+"/api/generate", nil, ollamaGenerateRequest{
		Model:   model,
		Prompt:  prompt,
		Options: p.options,
	})
	if err != nil {
		return "", err
	}
	var out ollamaGenerateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama: %s", out.Error)
	}
	return strings.TrimSpace(out.Response), nil
}

// GenerateStream reads the newline-delimited JSON stream of /api/generate.
func (p *ollamaProvider) GenerateStream(ctx context.Context, model string, prompt string, onChunk func(string) error) error {
	resp, err := doPost(ctx, p.client, p.baseURL+"/api/generate", nil, ollamaGenerateRequest{
		Model:   model,
		Prompt:  prompt,
		Stream:  true,
		Options: p.options,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var part ollamaGenerateResponse
		if err := json.Unmarshal([]byte(line), &part); err != nil {
			return fmt.Errorf("decode ollama stream: %w", err)
		}
		if part.Error != "" {
			return fmt.Errorf("ollama: %s", part.Error)
		}
		if part.Response != "" {
			if err := onChunk(part.Response); err != nil {
				return err
			}
		}
		if part.Done {
			return nil
		}
	}
	return scanner.Err()
}

func createOllamaFactory(args interface{}) (IProvider, error) {
	cfg := &ollamaConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	options := map[string]interface{}{}
	if cfg.Temperature > 0 {
		options["temperature"] = cfg.Temperature
	}
	if cfg.TopP > 0 {
		options["top_p"] = cfg.TopP
	}
	if cfg.MaxTokens > 0 {
		options["num_predict"] = cfg.MaxTokens
	}
	if len(options) == 0 {
		options = nil
	}
	return &ollamaProvider{baseURL: baseURL, options: options, client: &http.Client{}}, nil
}

func init() {
	Register("ollama", createOllamaFactory)
}
