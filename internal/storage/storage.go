package storage

import (
	"context"

	"poolConsole/internal/model"
)

// Storage defines a sink for status transitions.
type Storage interface {
	PutTransitions(ctx context.Context, transitions []model.StatusTransition) error
}

// Multi fans a transition batch out to several sinks. Nil sinks are
// skipped; the first error stops the fan-out.
type Multi []Storage

func (m Multi) PutTransitions(ctx context.Context, transitions []model.StatusTransition) error {
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.PutTransitions(ctx, transitions); err != nil {
			return err
		}
	}
	return nil
}
