package main

import (
	"context"
	"sync"

	"github.com/fpang/leafscan/internal/workflow"
)

// hub records the latest workflow version and wakes long-polling requests
// when it moves.
type hub struct {
	mu      sync.Mutex
	version uint64
	changed chan struct{}
}

func newHub() *hub {
	return &hub{changed: make(chan struct{})}
}

// observe is registered as a workflow observer. Snapshots may arrive out of
// order; older versions are ignored.
func (h *hub) observe(s workflow.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.Version <= h.version {
		return
	}
	h.version = s.Version
	close(h.changed)
	h.changed = make(chan struct{})
}

// waitPast blocks until the version exceeds since or ctx is done.
func (h *hub) waitPast(ctx context.Context, since uint64) {
	for {
		h.mu.Lock()
		if h.version > since {
			h.mu.Unlock()
			return
		}
		ch := h.changed
		h.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return
		}
	}
}
