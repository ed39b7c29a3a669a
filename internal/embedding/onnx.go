//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperjump/librarian/pkg/utils"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXEmbedder uses ONNX Runtime to produce embeddings. It requires CGO and the onnxruntime shared library.
// Runs are serialized because the session reuses pre-allocated tensors.
type ONNXEmbedder struct {
	opts      ONNXOptions
	tokenizer Tokenizer

	mu      sync.Mutex
	session *ort.AdvancedSession
	tensors *onnxTensors
}

// The runtime environment is process-wide and initialized once.
var (
	ortInit    sync.Once
	ortInitErr error
)

type onnxTensors struct {
	inputs []*ort.Tensor[int64] // input_ids, attention_mask, token_type_ids
	output *ort.Tensor[float32]
}

func (t *onnxTensors) destroy() {
	for _, in := range t.inputs {
		_ = in.Destroy()
	}
	t.inputs = nil
	if t.output != nil {
		_ = t.output.Destroy()
		t.output = nil
	}
}

// NewONNXEmbedder creates an ONNX embedder. InitializeEnvironment is called if not already done.
func NewONNXEmbedder(opts ONNXOptions) (*ONNXEmbedder, error) {
	opts.applyDefaults()
	if opts.ModelPath == "" {
		return nil, fmt.Errorf("onnx model path is required")
	}
	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}
	ortInit.Do(func() { ortInitErr = ort.InitializeEnvironment() })
	if ortInitErr != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", ortInitErr)
	}

	tokenizer := &SimpleTokenizer{}
	tensors, err := newONNXTensors(tokenizer, opts)
	if err != nil {
		return nil, err
	}
	inputs := make([]ort.ArbitraryTensor, len(tensors.inputs))
	for i, in := range tensors.inputs {
		inputs[i] = in
	}
	session, err := ort.NewAdvancedSession(
		opts.ModelPath,
		opts.InputNames,
		[]string{opts.OutputName},
		inputs,
		[]ort.ArbitraryTensor{tensors.output},
		nil,
	)
	if err != nil {
		tensors.destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return &ONNXEmbedder{opts: opts, tokenizer: tokenizer, session: session, tensors: tensors}, nil
}

func newONNXTensors(tok Tokenizer, opts ONNXOptions) (*onnxTensors, error) {
	ids, mask, types := tok.Tokenize("", opts.MaxTokens)
	data := [][]int64{ids, mask, types}
	t := &onnxTensors{}
	for i := range opts.InputNames {
		if i >= len(data) {
			t.destroy()
			return nil, fmt.Errorf("unsupported input %q: at most %d inputs", opts.InputNames[i], len(data))
		}
		in, err := ort.NewTensor(ort.NewShape(1, int64(opts.MaxTokens)), data[i])
		if err != nil {
			t.destroy()
			return nil, fmt.Errorf("failed to create %s tensor: %w", opts.InputNames[i], err)
		}
		t.inputs = append(t.inputs, in)
	}
	out, err := ort.NewTensor(ort.NewShape(1, int64(opts.Dimensions)), make([]float32, opts.Dimensions))
	if err != nil {
		t.destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	t.output = out
	return t, nil
}

// Embed runs the model on text and returns the L2-normalized output.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, mask, types := e.tokenizer.Tokenize(text, e.opts.MaxTokens)
	data := [][]int64{ids, mask, types}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, fmt.Errorf("onnx embedder is closed")
	}
	for i, in := range e.tensors.inputs {
		copy(in.GetData(), data[i])
	}
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	emb := make([]float32, e.opts.Dimensions)
	copy(emb, e.tensors.output.GetData())
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, texts, e.Embed)
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.opts.Dimensions
}

// Close destroys the session and tensors.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	if e.tensors != nil {
		e.tensors.destroy()
		e.tensors = nil
	}
	return err
}
