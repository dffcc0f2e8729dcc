package collect

import (
	"context"
	"fmt"
	"sync"
)

// Adapter performs one fetch attempt against one external source. An adapter
// is bound to its source at construction and must not retry internally;
// retries and instrumentation belong to the scheduling core.
type Adapter interface {
	// Kind returns the adapter kind the factory constructed it under.
	Kind() string

	// Fetch performs a single attempt for the target. It returns a Result on
	// success, ErrNoData when the source legitimately has nothing for the
	// target, or a *FetchError classifying the failure.
	Fetch(ctx context.Context, target Target) (*Result, error)

	// SelfCheck is a cheap structural probe, independent of business
	// fetches, used to detect upstream schema drift.
	SelfCheck(ctx context.Context) bool
}

// Constructor builds an adapter bound to the given source.
type Constructor func(src Source) Adapter

// Factory resolves a source's adapter_kind tag to a constructor by direct
// key lookup. Kinds are explicit registration-time tags, never inferred
// from display names.
type Factory struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

func NewFactory() *Factory {
	return &Factory{ctors: make(map[string]Constructor)}
}

func (f *Factory) Register(kind string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctors[kind] = ctor
}

// New constructs the adapter for src. Unknown kinds are an error the caller
// is expected to treat as skip-with-warning, not fatal.
func (f *Factory) New(src Source) (Adapter, error) {
	f.mu.RLock()
	ctor, ok := f.ctors[src.AdapterKind]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no adapter registered for kind %q (source %s)", src.AdapterKind, src.Name)
	}
	return ctor(src), nil
}

func (f *Factory) Kinds() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	kinds := make([]string, 0, len(f.ctors))
	for k := range f.ctors {
		kinds = append(kinds, k)
	}
	return kinds
}
