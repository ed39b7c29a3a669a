// Package embedding provides text embedding via ONNX, a deterministic mock, and caching.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// ONNXOptions configures NewONNXEmbedder.
type ONNXOptions struct {
	ModelPath string
	// LibraryPath points at the onnxruntime shared library. Empty uses the platform default.
	LibraryPath string
	Dimensions  int
	MaxTokens   int
	InputNames  []string // defaults to input_ids, attention_mask, token_type_ids
	OutputName  string   // defaults to output
}

func (o *ONNXOptions) applyDefaults() {
	if o.Dimensions <= 0 {
		o.Dimensions = 384
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 256
	}
	if len(o.InputNames) == 0 {
		o.InputNames = []string{"input_ids", "attention_mask", "token_type_ids"}
	}
	if o.OutputName == "" {
		o.OutputName = "output"
	}
}

// embedEach calls embed for every text in order, stopping at the first error.
func embedEach(ctx context.Context, texts []string, embed func(context.Context, string) ([]float32, error)) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}
