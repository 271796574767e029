package embedding

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"NewsRAG/internal/ports"
)

// OpenAIConfig configures an OpenAI-compatible embeddings endpoint.
type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// OpenAIEncoder calls the embeddings API of any OpenAI-compatible server.
type OpenAIEncoder struct {
	client *openai.Client
	model  string
	dims   int
}

var _ ports.Encoder = (*OpenAIEncoder)(nil)

// NewOpenAIEncoder builds an encoder from configuration.
func NewOpenAIEncoder(cfg OpenAIConfig) *OpenAIEncoder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}

	return &OpenAIEncoder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		dims:   cfg.Dimensions,
	}
}

func (e *OpenAIEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	}
	if e.dims > 0 {
		req.Dimensions = e.dims
	}
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embedding returned for model %s", e.model)
	}
	return resp.Data[0].Embedding, nil
}

func (e *OpenAIEncoder) Dimensions() int {
	return e.dims
}
