// Package testutil holds in-memory doubles for the model and extraction
// interfaces, shared by service tests.
package testutil

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/ternarybob/studygen/internal/interfaces"
)

// Dimension of vectors produced by WordEmbedder
const Dimension = 256

// WordEmbedder is a deterministic bag-of-words embedder. Every distinct word gets
// its own axis, so texts with no words in common score exactly 0.
type WordEmbedder struct {
	mu    sync.Mutex
	words map[string]int
	Calls map[interfaces.EmbedMode]int
	Err   error
}

func NewWordEmbedder() *WordEmbedder {
	return &WordEmbedder{
		words: make(map[string]int),
		Calls: make(map[interfaces.EmbedMode]int),
	}
}

func (e *WordEmbedder) Embed(ctx context.Context, text string, mode interfaces.EmbedMode) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Calls[mode]++
	if e.Err != nil {
		return nil, e.Err
	}

	vector := make([]float32, Dimension)
	for _, word := range Words(text) {
		axis, ok := e.words[word]
		if !ok {
			axis = len(e.words) % Dimension
			e.words[word] = axis
		}
		vector[axis]++
	}
	return vector, nil
}

// CallCount returns the number of Embed calls made in mode
func (e *WordEmbedder) CallCount(mode interfaces.EmbedMode) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Calls[mode]
}

func (e *WordEmbedder) ModelName() string { return "word-embedder" }

func (e *WordEmbedder) Dimension() int { return Dimension }

// Words lower-cases text and splits it on anything that is not a letter or digit
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// FileExtractor returns canned text per path and counts calls. Block, when set,
// is waited on before returning so tests can hold an extraction open.
type FileExtractor struct {
	mu    sync.Mutex
	Texts map[string]string
	Block chan struct{}
	calls int
}

func NewFileExtractor(texts map[string]string) *FileExtractor {
	return &FileExtractor{Texts: texts}
}

func (f *FileExtractor) Extract(ctx context.Context, path string) (*interfaces.ExtractionResult, error) {
	f.mu.Lock()
	f.calls++
	text, block := f.Texts[path], f.Block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	method := "structured"
	if strings.TrimSpace(text) == "" {
		method = "none"
	}
	return &interfaces.ExtractionResult{Text: text, Method: method, PageCount: 1}, nil
}

// Calls returns the number of Extract calls
func (f *FileExtractor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Generator records prompts and answers with a fixed reply. Block, when set,
// is waited on before replying so tests can hold a call open.
type Generator struct {
	mu      sync.Mutex
	Reply   string
	Err     error
	Block   chan struct{}
	prompts []string
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	reply, err, block := g.Reply, g.Err, g.Block
	g.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return reply, err
}

// Prompts returns every prompt received so far
func (g *Generator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

// SetReply changes the reply for later calls
func (g *Generator) SetReply(reply string) {
	g.mu.Lock()
	g.Reply = reply
	g.mu.Unlock()
}

func (g *Generator) ModelName() string { return "fake-generator" }

func (g *Generator) Close() error { return nil }
