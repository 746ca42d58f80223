// Package registry maps client-visible members to the remote resources they
// stand for.
//
// A Registry is populated once at startup (from static operator tables and
// CUE catalogs), sealed, and then queried concurrently while proxies compose
// expressions. Resolution is by member signature.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/rxq/internal/ir"
)

// Sentinel errors. Wrapped by *Error; match with errors.Is.
var (
	ErrConflict       = errors.New("conflicting binding")
	ErrSealed         = errors.New("registry is sealed")
	ErrInvalidBinding = errors.New("invalid binding")
	ErrNotFound       = errors.New("binding not found")
)

// Error describes a failed registration or resolution.
type Error struct {
	Kind      error
	Signature string
	Message   string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Signature, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Signature, e.Kind, e.Message)
}

// Unwrap returns the sentinel kind.
func (e *Error) Unwrap() error { return e.Kind }

// Binding is the remote resource a member stands for.
//
// Type is the open static type of the resource: Func<params..., result> for
// methods (with the receiver first for instance methods) and the property
// type for properties.
type Binding struct {
	URI  ir.URI
	Type ir.Type
}

// Entry is one registered member with its binding.
type Entry struct {
	Member  ir.Member
	Binding Binding
}

// Registry is a member-signature keyed binding table.
// Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	sealed  bool
}

// New returns an empty, unsealed registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register binds m to (uri, t).
//
// Registering the identical binding twice is a no-op. Binding a member that
// is already bound to a different URI or type returns ErrConflict. Two
// different members may share a URI.
func (r *Registry) Register(m ir.Member, uri ir.URI, t ir.Type) error {
	sig := m.Signature()
	if uri == "" {
		return &Error{Kind: ErrInvalidBinding, Signature: sig, Message: "empty URI"}
	}
	if err := checkShape(m, t); err != nil {
		return &Error{Kind: ErrInvalidBinding, Signature: sig, Message: err.Error()}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return &Error{Kind: ErrSealed, Signature: sig}
	}
	if prev, ok := r.entries[sig]; ok {
		if prev.Binding.URI == uri && prev.Binding.Type.Equal(t) {
			return nil
		}
		return &Error{
			Kind:      ErrConflict,
			Signature: sig,
			Message:   fmt.Sprintf("already bound to %s as %s, cannot rebind to %s as %s", prev.Binding.URI, prev.Binding.Type, uri, t),
		}
	}
	r.entries[sig] = Entry{Member: m, Binding: Binding{URI: uri, Type: t}}
	return nil
}

// MustRegister is like Register but panics on error.
// Use only for static tables evaluated at startup.
func (r *Registry) MustRegister(m ir.Member, uri ir.URI, t ir.Type) {
	if err := r.Register(m, uri, t); err != nil {
		panic(err)
	}
}

// Resolve returns the binding of m.
func (r *Registry) Resolve(m ir.Member) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[m.Signature()]
	if !ok || e.Member.Kind != m.Kind {
		return Binding{}, false
	}
	return e.Binding, true
}

// Lookup is like Resolve but returns ErrNotFound for unbound members.
func (r *Registry) Lookup(m ir.Member) (Binding, error) {
	b, ok := r.Resolve(m)
	if !ok {
		return Binding{}, &Error{Kind: ErrNotFound, Signature: m.Signature()}
	}
	return b, nil
}

// Seal makes the registry read-only. Later registrations fail with ErrSealed.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Len returns the number of registered members.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Entries returns all entries sorted by member signature.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Member.Signature() < out[j].Member.Signature()
	})
	return out
}

// MembersOf returns the signatures of all members bound to uri, sorted.
func (r *Registry) MembersOf(uri ir.URI) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for sig, e := range r.entries {
		if e.Binding.URI == uri {
			out = append(out, sig)
		}
	}
	sort.Strings(out)
	return out
}

// checkShape verifies that t fits the member: properties bind to their
// result type, methods to a Func over their parameters (optionally preceded
// by a receiver) returning their result.
func checkShape(m ir.Member, t ir.Type) error {
	if t.IsZero() {
		return errors.New("missing type")
	}
	switch m.Kind {
	case ir.PropertyMember:
		if !t.Equal(m.Result) {
			return fmt.Errorf("property type %s does not match binding type %s", m.Result, t)
		}
	case ir.MethodMember:
		if !t.IsFunc() {
			return fmt.Errorf("method binding type %s is not a function", t)
		}
		params := t.FuncParams()
		switch len(params) {
		case len(m.Params):
		case len(m.Params) + 1:
			params = params[1:]
		default:
			return fmt.Errorf("binding type %s has %d parameter(s), member has %d", t, len(params), len(m.Params))
		}
		for i := range m.Params {
			if !params[i].Equal(m.Params[i]) {
				return fmt.Errorf("parameter %d: binding type %s, member type %s", i, params[i], m.Params[i])
			}
		}
		if !t.FuncResult().Equal(m.Result) {
			return fmt.Errorf("result: binding type %s, member type %s", t.FuncResult(), m.Result)
		}
	default:
		return fmt.Errorf("%s members cannot be bound", m.Kind)
	}
	return nil
}

// SignatureType returns the binding type implied by a method or property
// member: Func<params..., result> for static methods and the result type
// for properties.
func SignatureType(m ir.Member) ir.Type {
	if m.Kind == ir.PropertyMember {
		return m.Result
	}
	return ir.FuncOf(m.Result, m.Params...)
}
