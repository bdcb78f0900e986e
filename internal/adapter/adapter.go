// Package adapter ships rendered files to external publishing targets.
//
// Every integration type has one TransferAdapter. Adapters classify their
// failures: a *FatalError means the target itself is unusable (auth rejected,
// network down, service unavailable) and the running job must stop; any other
// error only concerns the file that was being sent.
package adapter

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/webitel/document-exporter/internal/model"
)

type TransferAdapter interface {
	Type() model.IntegrationType
	// Connect checks that the configuration reaches a usable target.
	Connect(ctx context.Context, cfg model.IntegrationConfig) error
	// Transfer uploads one file and returns the URL it is reachable at.
	Transfer(ctx context.Context, file model.File, cfg model.IntegrationConfig) (string, error)
	// Stat reads the document count and storage size of the target folder.
	Stat(ctx context.Context, cfg model.IntegrationConfig) (model.SyncStats, error)
}

// FatalError aborts the whole job.
type FatalError struct {
	Target string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Target == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Target, e.Err.Error())
}

func (e *FatalError) Unwrap() error { return e.Err }

func Fatal(target string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FatalError
	if stderrors.As(err, &fe) {
		return err
	}
	return &FatalError{Target: target, Err: err}
}

func IsFatal(err error) bool {
	var fe *FatalError
	return stderrors.As(err, &fe)
}

// Registry resolves the adapter for an integration type.
type Registry struct {
	mu       sync.RWMutex
	adapters map[model.IntegrationType]TransferAdapter
}

func NewRegistry(adapters ...TransferAdapter) *Registry {
	r := &Registry{adapters: make(map[model.IntegrationType]TransferAdapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

func (r *Registry) Register(a TransferAdapter) {
	r.mu.Lock()
	r.adapters[a.Type()] = a
	r.mu.Unlock()
}

func (r *Registry) Get(t model.IntegrationType) (TransferAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[t]
	return a, ok
}
