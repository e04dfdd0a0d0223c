//go:build onnx

// Package onnx embeds text locally with an ONNX sentence-transformer
// model (all-MiniLM-L6-v2 by default). Build with the onnx tag and an
// onnxruntime shared library on the machine.
package onnx

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/evermind-ai/recall/memory"
)

const (
	defaultDimensions = 384
	maxSequenceLen    = 128

	// BERT special token ids.
	clsToken = 101
	sepToken = 102
	unkToken = 100
)

var initRuntime sync.Once

// Config configures the ONNX embedder.
type Config struct {
	// ModelPath points at the .onnx model file. Required.
	ModelPath string

	// TokenizerPath points at the tokenizer.json vocabulary. Required.
	TokenizerPath string

	// LibraryPath points at the onnxruntime shared library. Falls back
	// to the ONNXRUNTIME_LIB environment variable.
	LibraryPath string

	// Dimensions is the embedding size. Defaults to 384.
	Dimensions int
}

// Embedder runs sentence-transformer inference through onnxruntime.
type Embedder struct {
	session *ort.DynamicAdvancedSession
	vocab   map[string]int
	dims    int
}

var _ memory.Embedder = (*Embedder)(nil)

// New loads the model and tokenizer and prepares an inference session.
func New(cfg Config) (*Embedder, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("ModelPath is required")
	}
	if cfg.TokenizerPath == "" {
		return nil, fmt.Errorf("TokenizerPath is required")
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = defaultDimensions
	}

	lib := cfg.LibraryPath
	if lib == "" {
		lib = os.Getenv("ONNXRUNTIME_LIB")
	}
	if lib != "" {
		ort.SetSharedLibraryPath(lib)
	}
	var initErr error
	initRuntime.Do(func() {
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return nil, fmt.Errorf("initialize onnx runtime: %w", initErr)
	}

	vocab, err := loadVocabulary(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &Embedder{
		session: session,
		vocab:   vocab,
		dims:    cfg.Dimensions,
	}, nil
}

// Embed tokenizes text, runs inference, and mean-pools to a unit vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	inputIDs, attentionMask := e.encode(text)
	tokenTypeIDs := make([]int64, maxSequenceLen)

	shape := ort.NewShape(1, maxSequenceLen)
	tensors := make([]ort.Value, 0, 3)
	for _, data := range [][]int64{inputIDs, attentionMask, tokenTypeIDs} {
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			for _, prev := range tensors {
				prev.Destroy()
			}
			return nil, fmt.Errorf("create input tensor: %w", err)
		}
		tensors = append(tensors, t)
	}
	defer func() {
		for _, t := range tensors {
			t.Destroy()
		}
	}()

	outputs := []ort.Value{nil}
	if err := e.session.Run(tensors, outputs); err != nil {
		return nil, fmt.Errorf("onnx inference: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type")
	}
	return e.pool(out, attentionMask)
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dims
}

// Close releases the inference session.
func (e *Embedder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}

// pool reduces the hidden-state tensor to one unit vector, mean-pooling
// over attended positions when the model output is not already pooled.
func (e *Embedder) pool(out *ort.Tensor[float32], attentionMask []int64) ([]float32, error) {
	data := out.GetData()
	shape := out.GetShape()
	vec := make([]float32, e.dims)

	switch len(shape) {
	case 2: // already pooled: [1, dims]
		if len(data) < e.dims {
			return nil, fmt.Errorf("output has %d values, want %d", len(data), e.dims)
		}
		copy(vec, data[:e.dims])

	case 3: // [1, seq, dims]
		seqLen, hidden := int(shape[1]), int(shape[2])
		if hidden != e.dims {
			return nil, fmt.Errorf("hidden size %d, want %d", hidden, e.dims)
		}
		var attended float32
		for i := 0; i < seqLen && i < len(attentionMask); i++ {
			if attentionMask[i] == 0 {
				continue
			}
			attended++
			base := i * hidden
			for j := 0; j < hidden; j++ {
				vec[j] += data[base+j]
			}
		}
		if attended > 0 {
			for j := range vec {
				vec[j] /= attended
			}
		}

	default:
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// encode produces fixed-length input ids and attention mask with [CLS]
// and [SEP] framing, truncating long inputs.
func (e *Embedder) encode(text string) (inputIDs, attentionMask []int64) {
	inputIDs = make([]int64, maxSequenceLen)
	attentionMask = make([]int64, maxSequenceLen)

	tokens := e.tokenize(text)
	if len(tokens) > maxSequenceLen-2 {
		tokens = tokens[:maxSequenceLen-2]
	}

	inputIDs[0] = clsToken
	attentionMask[0] = 1
	for i, tok := range tokens {
		inputIDs[i+1] = tok
		attentionMask[i+1] = 1
	}
	inputIDs[len(tokens)+1] = sepToken
	attentionMask[len(tokens)+1] = 1
	return inputIDs, attentionMask
}

// tokenize applies lower-cased WordPiece tokenization over the loaded
// vocabulary, with greedy longest-prefix matching for subwords.
func (e *Embedder) tokenize(text string) []int64 {
	var ids []int64
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()")
		if word == "" {
			continue
		}
		if id, ok := e.vocab[word]; ok {
			ids = append(ids, int64(id))
			continue
		}
		ids = append(ids, e.wordPiece(word)...)
	}
	return ids
}

func (e *Embedder) wordPiece(word string) []int64 {
	var ids []int64
	start := 0
	for start < len(word) {
		matched := false
		for end := len(word); end > start; end-- {
			piece := word[start:end]
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := e.vocab[piece]; ok {
				ids = append(ids, int64(id))
				start = end
				matched = true
				break
			}
		}
		if !matched {
			ids = append(ids, unkToken)
			start++
		}
	}
	return ids
}

func loadVocabulary(path string) (map[string]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tokenizer struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &tokenizer); err != nil {
		return nil, err
	}
	if len(tokenizer.Model.Vocab) == 0 {
		return nil, fmt.Errorf("tokenizer vocabulary is empty")
	}
	return tokenizer.Model.Vocab, nil
}
