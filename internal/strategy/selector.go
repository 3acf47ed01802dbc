package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AdrianGrassin/p1DAA/internal/device"
	"github.com/AdrianGrassin/p1DAA/internal/logging"
	"github.com/AdrianGrassin/p1DAA/internal/matrix"
)

// Methods returns the canonical method keys the selector accepts.
func Methods() []string {
	return []string{"row", "column", "blocked", "accelerator", "hybrid"}
}

// New resolves a method key to a strategy with the default configuration.
func New(key string) (Strategy, error) {
	return NewWithConfig(key, DefaultConfig())
}

// NewWithConfig resolves a method key to a strategy. Accelerator-backed
// keys probe for a device at most once per process (the result is
// cached); when no device is present they quietly construct the blocked
// CPU strategy instead, so the caller always gets something that works.
func NewWithConfig(key string, cfg Config) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "row":
		return NewRow(cfg), nil
	case "column", "col":
		return NewColumn(cfg), nil
	case "blocked", "cpu":
		return NewBlocked(cfg), nil
	case "accelerator", "gpu":
		acc, err := NewAccelerator(cfg)
		if err != nil {
			if errors.Is(err, device.ErrUnavailable) {
				logging.Debugf("selector: %q requested but no accelerator, using blocked CPU strategy", key)
				return NewBlocked(cfg), nil
			}
			return nil, err
		}
		return acc, nil
	case "hybrid":
		acc, err := NewAccelerator(cfg)
		if err != nil {
			if errors.Is(err, device.ErrUnavailable) {
				logging.Debugf("selector: hybrid requested but no accelerator, using blocked CPU strategy")
				return NewBlocked(cfg), nil
			}
			return nil, err
		}
		return NewHybrid(acc, NewBlocked(cfg), cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownMethod, key, strings.Join(Methods(), ", "))
	}
}

// Multiply is the one-shot invocation surface: resolve the method key,
// run the multiply, release the strategy.
func Multiply(ctx context.Context, key string, a, b *matrix.Matrix) (*matrix.Matrix, error) {
	s, err := New(key)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Multiply(ctx, a, b)
}
