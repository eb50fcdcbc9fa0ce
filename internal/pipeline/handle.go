package pipeline

import (
	"context"
	"sync"
)

// Handle is a lazily-initialized, process-wide pipeline reference with
// init-once semantics. The first Get constructs the pipeline (normalizing
// and embedding the catalog when no persisted index exists); every later Get
// returns the same handle or the same construction error.
type Handle struct {
	init func(ctx context.Context) (*Pipeline, error)
	once sync.Once
	p    *Pipeline
	err  error
}

// NewHandle wraps a pipeline constructor without invoking it.
func NewHandle(init func(ctx context.Context) (*Pipeline, error)) *Handle {
	return &Handle{init: init}
}

// Get returns the pipeline, constructing it on first call.
func (h *Handle) Get(ctx context.Context) (*Pipeline, error) {
	h.once.Do(func() {
		h.p, h.err = h.init(ctx)
	})
	return h.p, h.err
}
