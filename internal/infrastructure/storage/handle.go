package storage

import (
	"context"
	"sync"
	"sync/atomic"

	"NewsRAG/internal/domain"
	"NewsRAG/internal/ports"
)

// Handle opens the collection on first access and shares one Store between all callers.
// Concurrent first accesses wait for the same initialisation.
type Handle struct {
	dir        string
	collection string
	opened     atomic.Bool
	open       func() (*Store, error)
}

var _ ports.DocumentStore = (*Handle)(nil)

// NewHandle prepares a lazily opened collection.
func NewHandle(dir, collection string) *Handle {
	h := &Handle{dir: dir, collection: collection}
	h.open = sync.OnceValues(func() (*Store, error) {
		st, err := Open(context.Background(), dir, collection)
		if err == nil {
			h.opened.Store(true)
		}
		return st, err
	})
	return h
}

// Store returns the shared Store, opening it on the first call.
// A failed open is remembered; later calls return the same error.
func (h *Handle) Store() (*Store, error) {
	return h.open()
}

// Close closes the store if it was ever opened.
func (h *Handle) Close() error {
	if !h.opened.Load() {
		return nil
	}
	st, err := h.open()
	if err != nil {
		return nil
	}
	return st.Close()
}

func (h *Handle) Upsert(ctx context.Context, doc domain.Document) error {
	st, err := h.Store()
	if err != nil {
		return err
	}
	return st.Upsert(ctx, doc)
}

func (h *Handle) GetByIDs(ctx context.Context, ids []string) ([]domain.Document, error) {
	st, err := h.Store()
	if err != nil {
		return nil, err
	}
	return st.GetByIDs(ctx, ids)
}

func (h *Handle) Query(ctx context.Context, embedding []float32, k int) ([]domain.QueryHit, error) {
	st, err := h.Store()
	if err != nil {
		return nil, err
	}
	return st.Query(ctx, embedding, k)
}

func (h *Handle) ScanMetadata(ctx context.Context) ([]domain.DocumentMeta, error) {
	st, err := h.Store()
	if err != nil {
		return nil, err
	}
	return st.ScanMetadata(ctx)
}

func (h *Handle) Delete(ctx context.Context, ids []string) error {
	st, err := h.Store()
	if err != nil {
		return err
	}
	return st.Delete(ctx, ids)
}

func (h *Handle) Count(ctx context.Context) (int, error) {
	st, err := h.Store()
	if err != nil {
		return 0, err
	}
	return st.Count(ctx)
}
