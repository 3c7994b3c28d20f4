package interp

import (
	"context"
	"slices"

	"github.com/gomlx/exceptions"
	"golang.org/x/exp/maps"
)

// KernelFn is the body of a named kernel. Device-form kernels run on their
// stream's goroutine; host-form kernels run on the interpreter's goroutine.
// operands holds the resolved values of the kernel's data operands.
type KernelFn func(ctx context.Context, operands []any)

// Registry maps kernel names to their bodies. The scheduler never inspects
// kernel semantics; the registry is the whole dispatch surface.
type Registry struct {
	kernels map[string]KernelFn
}

// NewRegistry returns an empty kernel registry.
func NewRegistry() *Registry {
	return &Registry{kernels: make(map[string]KernelFn)}
}

// Register binds name to fn. Registering a name twice is a bug and panics.
func (r *Registry) Register(name string, fn KernelFn) {
	if _, found := r.kernels[name]; found {
		exceptions.Panicf("interp: kernel %q registered twice", name)
	}
	r.kernels[name] = fn
}

// Lookup returns the kernel registered under name.
func (r *Registry) Lookup(name string) (KernelFn, bool) {
	fn, found := r.kernels[name]
	return fn, found
}

// Names returns the registered kernel names, sorted.
func (r *Registry) Names() []string {
	names := maps.Keys(r.kernels)
	slices.Sort(names)
	return names
}
