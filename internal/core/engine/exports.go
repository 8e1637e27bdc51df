package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrExportNotFound = errors.New("export not found")
	ErrEmptyExport    = errors.New("export name is empty")
)

// ExportFunc is a function a resource exposes to other resources.
type ExportFunc func(args ...any) (any, error)

// Exports is the process-wide table of functions resources expose to each
// other, keyed by resource then by function name.
type Exports struct {
	mu    sync.RWMutex
	table map[string]map[string]ExportFunc
}

func NewExports() *Exports {
	return &Exports{table: make(map[string]map[string]ExportFunc)}
}

// Set registers fn as resource's export name, replacing any previous one.
// A nil fn removes the export.
func (e *Exports) Set(resource, name string, fn ExportFunc) error {
	if resource == "" || name == "" {
		return ErrEmptyExport
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if fn == nil {
		delete(e.table[resource], name)
		return nil
	}
	fns, ok := e.table[resource]
	if !ok {
		fns = make(map[string]ExportFunc)
		e.table[resource] = fns
	}
	fns[name] = fn
	return nil
}

func (e *Exports) Get(resource, name string) (ExportFunc, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn, ok := e.table[resource][name]
	return fn, ok
}

// Call invokes resource's export name with args.
func (e *Exports) Call(resource, name string, args ...any) (any, error) {
	fn, ok := e.Get(resource, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrExportNotFound, resource, name)
	}
	return fn(args...)
}

// Resource returns a view of the exports of one resource.
func (e *Exports) Resource(resource string) ResourceExports {
	return ResourceExports{exports: e, resource: resource}
}

// Names lists the exports of resource in lexical order.
func (e *Exports) Names(resource string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.table[resource]))
	for name := range e.table[resource] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ResourceExports is the export table of a single resource.
type ResourceExports struct {
	exports  *Exports
	resource string
}

func (r ResourceExports) Name() string {
	return r.resource
}

func (r ResourceExports) Has(name string) bool {
	_, ok := r.exports.Get(r.resource, name)
	return ok
}

func (r ResourceExports) Call(name string, args ...any) (any, error) {
	return r.exports.Call(r.resource, name, args...)
}

// CallAs calls an export and asserts its result to T.
func CallAs[T any](r ResourceExports, name string, args ...any) (T, error) {
	var zero T
	v, err := r.Call(name, args...)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("export %s.%s returned %T", r.resource, name, v)
	}
	return out, nil
}
