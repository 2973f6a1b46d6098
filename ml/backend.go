// backend.go - Backend-Interface und Registrierung fuer ML-Modelle
// Dieses Modul definiert das Backend-Interface und die Backend-Factory-Funktionen.
package ml

import (
	"fmt"
	"maps"
	"runtime"
	"slices"
)

// Backend represents a tensor execution backend (e.g., CPU).
type Backend interface {
	// Name returns the name the backend was registered under
	Name() string

	// Close frees all memory associated with this backend
	Close()

	NewContext() Context
}

// BackendParams controls how the backend executes models
type BackendParams struct {
	// NumThreads sets the number of threads to use if running on the CPU
	NumThreads int
}

var backends = make(map[string]func(BackendParams) (Backend, error))

// RegisterBackend registers a backend factory function.
func RegisterBackend(name string, f func(BackendParams) (Backend, error)) {
	if _, ok := backends[name]; ok {
		panic("backend: backend already registered")
	}

	backends[name] = f
}

// Backends returns the names of all registered backends, sorted.
func Backends() []string {
	return slices.Sorted(maps.Keys(backends))
}

// NewBackend creates a new backend instance. An empty name selects "cpu".
func NewBackend(name string, params BackendParams) (Backend, error) {
	if name == "" {
		name = "cpu"
	}

	if params.NumThreads <= 0 {
		params.NumThreads = runtime.NumCPU()
	}

	if backend, ok := backends[name]; ok {
		return backend(params)
	}

	return nil, fmt.Errorf("unsupported backend %q", name)
}
