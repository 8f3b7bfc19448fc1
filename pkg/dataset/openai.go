package dataset

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmbeddingProvider wraps failures of the external embedding API.
var ErrEmbeddingProvider = errors.New("embedding provider error")

// OpenAIEmbedder embeds text records through an OpenAI-compatible API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// OpenAIConfig holds the embedding provider settings.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewOpenAIEmbedder creates an embedding provider for text datasets.
func NewOpenAIEmbedder(cfg OpenAIConfig) *OpenAIEmbedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  openai.EmbeddingModel(model),
	}
}

// EmbedText returns one embedding per input record.
func (e *OpenAIEmbedder) EmbedText(ctx context.Context, records []string) (Matrix, error) {
	if len(records) == 0 {
		return nil, ErrEmptyMatrix
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:          records,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	})
	if err != nil {
		return nil, parseAPIError(err)
	}
	if len(resp.Data) != len(records) {
		return nil, fmt.Errorf("got %d embeddings for %d records: %w",
			len(resp.Data), len(records), ErrEmbeddingProvider)
	}

	m := make(Matrix, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float64, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float64(v)
		}
		m[i] = vec
	}
	return m, nil
}

// LoadTextRecords reads a text dataset (one record per line) and embeds it.
func LoadTextRecords(ctx context.Context, path string, e *OpenAIEmbedder) (Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	var records []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			records = append(records, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan dataset: %w", err)
	}

	return e.EmbedText(ctx, records)
}

// parseAPIError extracts a readable message from the provider response.
func parseAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, ErrEmbeddingProvider)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("embedding API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), ErrEmbeddingProvider)
	}
	return fmt.Errorf("embedding request failed: %v: %w", err, ErrEmbeddingProvider)
}
