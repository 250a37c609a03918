package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const ollamaTimeout = 30 * time.Second

// ollama talks to the /api/embed endpoint, which accepts a batch of inputs
// and truncates each one to the model's context length.
type ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

type embedRequest struct {
	Model    string   `json:"model"`
	Input    []string `json:"input"`
	Truncate bool     `json:"truncate"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// StatusError is a non-200 answer from the embedding server.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ollama embed: status %d: %s", e.Status, e.Body)
}

func newOllama(baseURL, model string) *ollama {
	return &ollama{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: ollamaTimeout},
	}
}

func (o *ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (o *ollama) embed(ctx context.Context, inputs []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: o.model, Input: inputs, Truncate: true})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("ollama embed: decode: %w", err)
	}

	if len(out.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("ollama embed: %d embeddings for %d inputs", len(out.Embeddings), len(inputs))
	}
	for _, v := range out.Embeddings {
		if len(v) == 0 {
			return nil, fmt.Errorf("ollama embed: empty embedding from model %s", o.model)
		}
	}

	return out.Embeddings, nil
}
