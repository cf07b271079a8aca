package interfaces

import (
	"context"
)

// Generator sends a composed prompt to a generative model and returns its raw text
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ModelName() string
	Close() error
}
