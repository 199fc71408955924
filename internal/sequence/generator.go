package sequence

import (
	"context"
	"errors"
	"fmt"
)

var ErrEmptyPrefix = errors.New("sequence prefix must not be empty")

// Counter atomically increments the counter named by prefix and returns the new value.
type Counter interface {
	Increment(ctx context.Context, prefix string) (int64, error)
}

// Generator issues prefixed, zero-padded identifiers such as CMD-00007.
type Generator struct {
	counter Counter
	width   int
}

func NewGenerator(counter Counter) *Generator {
	return &Generator{
		counter: counter,
		width:   5,
	}
}

func (g *Generator) Next(ctx context.Context, prefix string) (string, error) {
	if prefix == "" {
		return "", ErrEmptyPrefix
	}

	n, err := g.counter.Increment(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to increment %s counter: %w", prefix, err)
	}

	return Format(prefix, n, g.width), nil
}

func Format(prefix string, n int64, width int) string {
	return fmt.Sprintf("%s-%0*d", prefix, width, n)
}
