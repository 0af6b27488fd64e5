package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

func postJSON(ctx context.Context, client *http.Client, endpoint string, headers map[string]string, body interface{}) ([]byte, error) {
	resp, err := doPost(ctx, client, endpoint, headers, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func doPost(ctx context.Context, client *http.Client, endpoint string, headers map[string]string, body interface{}) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("request %s failed: %s: %s", endpoint, resp.Status, strings.TrimSpace(string(raw)))
	}
	return resp, nil
}

type embeddingEnvelope struct {
	Embedding  []float32   `json:"embedding"`
	Embeddings [][]float32 `json:"embeddings"`
	Data       []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// parseEmbeddings accepts the response shapes embedding servers commonly return:
// {"embedding": [...]}, {"embeddings": [[...]]}, {"data": [{"embedding": [...]}]},
// a bare vector or a bare list of vectors.
func parseEmbeddings(raw []byte) ([][]float32, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	if trimmed[0] == '[' {
		var many [][]float32
		if err := json.Unmarshal(trimmed, &many); err == nil {
			return nonEmpty(many)
		}
		var one []float32
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("decode embedding array: %w", err)
		}
		return nonEmpty([][]float32{one})
	}
	var env embeddingEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	switch {
	case len(env.Embeddings) > 0:
		return nonEmpty(env.Embeddings)
	case len(env.Embedding) > 0:
		return [][]float32{env.Embedding}, nil
	case len(env.Data) > 0:
		out := make([][]float32, len(env.Data))
		for i, item := range env.Data {
			idx := item.Index
			if idx < 0 || idx >= len(out) || out[idx] != nil {
				idx = i
			}
			out[idx] = item.Embedding
		}
		return nonEmpty(out)
	}
	return nil, fmt.Errorf("response has no embeddings")
}

func nonEmpty(vectors [][]float32) ([][]float32, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("response has no embeddings")
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("embedding %d is empty", i)
		}
	}
	return vectors, nil
}
