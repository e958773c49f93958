// Package registry holds the static catalog of functions a plugin advertises.
//
// A Registry is built once at startup, either from a definition file (Load)
// or programmatically (New), and is immutable afterwards. It is safe to share
// between goroutines without synchronization.
package registry

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/hugr-lab/qlik-sse-go/wire"
)

var (
	// ErrFunctionNotFound is returned by Describe for unknown function ids.
	ErrFunctionNotFound = errors.New("function not found")

	// ErrInvalidDefinition indicates a definition failed validation.
	ErrInvalidDefinition = errors.New("invalid function definition")
)

// Param is one named, typed function parameter.
type Param struct {
	Name string
	Type wire.DataType
}

// FunctionDescriptor describes one callable function.
type FunctionDescriptor struct {
	// ID is the unique, non-negative key used to route calls.
	ID int32
	// Name is the display name shown in the analytics engine.
	Name string
	// Kind is the calling semantics (scalar, aggregation or tensor).
	Kind wire.FunctionType
	// ReturnType is the declared type of the result column.
	ReturnType wire.DataType
	// Params are sorted by name.
	Params []Param
}

// Arity returns the number of declared parameters.
func (d FunctionDescriptor) Arity() int {
	return len(d.Params)
}

// Definition renders the descriptor in its wire form.
func (d FunctionDescriptor) Definition() wire.FunctionDefinition {
	params := make([]wire.Parameter, len(d.Params))
	for i, p := range d.Params {
		params[i] = wire.Parameter{Name: p.Name, DataType: p.Type}
	}
	return wire.FunctionDefinition{
		Name:         d.Name,
		FunctionType: d.Kind,
		ReturnType:   d.ReturnType,
		Params:       params,
		FunctionID:   d.ID,
	}
}

// PluginInfo carries the global capability flags.
type PluginInfo struct {
	Identifier  string
	Version     string
	AllowScript bool
}

// Registry is an immutable, ordered collection of function descriptors.
type Registry struct {
	functions []FunctionDescriptor
	byID      map[int32]int
}

// New validates descriptors and builds a registry.
// Parameters of every descriptor are sorted by name; the input is not modified.
func New(descs ...FunctionDescriptor) (*Registry, error) {
	r := &Registry{
		functions: make([]FunctionDescriptor, 0, len(descs)),
		byID:      make(map[int32]int, len(descs)),
	}

	for _, d := range descs {
		if err := validate(d); err != nil {
			return nil, err
		}
		if prev, ok := r.byID[d.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate id %d (%s and %s)",
				ErrInvalidDefinition, d.ID, r.functions[prev].Name, d.Name)
		}

		params := make([]Param, len(d.Params))
		copy(params, d.Params)
		sort.SliceStable(params, func(i, j int) bool {
			return params[i].Name < params[j].Name
		})
		d.Params = params

		r.byID[d.ID] = len(r.functions)
		r.functions = append(r.functions, d)
	}

	return r, nil
}

func validate(d FunctionDescriptor) error {
	if d.Name == "" {
		return fmt.Errorf("%w: function %d has no name", ErrInvalidDefinition, d.ID)
	}
	if d.ID < 0 {
		return fmt.Errorf("%w: function %s has negative id %d", ErrInvalidDefinition, d.Name, d.ID)
	}
	if !d.Kind.Valid() {
		return fmt.Errorf("%w: function %s has unknown type %s", ErrInvalidDefinition, d.Name, d.Kind)
	}
	if !d.ReturnType.Valid() {
		return fmt.Errorf("%w: function %s has unknown return type %s", ErrInvalidDefinition, d.Name, d.ReturnType)
	}
	seen := make(map[string]struct{}, len(d.Params))
	for _, p := range d.Params {
		if !p.Type.Valid() {
			return fmt.Errorf("%w: parameter %s of %s has unknown type %s", ErrInvalidDefinition, p.Name, d.Name, p.Type)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: function %s declares parameter %s twice", ErrInvalidDefinition, d.Name, p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}

// checkID converts a decoded id into the wire range.
func checkID(name string, id int64) (int32, error) {
	if id < 0 || id > math.MaxInt32 {
		return 0, fmt.Errorf("%w: function %s has id %d out of range", ErrInvalidDefinition, name, id)
	}
	return int32(id), nil
}

// Len returns the number of registered functions.
func (r *Registry) Len() int {
	return len(r.functions)
}

// Functions returns the descriptors in definition order.
// The returned slice must not be modified.
func (r *Registry) Functions() []FunctionDescriptor {
	return r.functions
}

// Describe returns the descriptor registered under id.
func (r *Registry) Describe(id int32) (FunctionDescriptor, error) {
	idx, ok := r.byID[id]
	if !ok {
		return FunctionDescriptor{}, fmt.Errorf("%w: id %d", ErrFunctionNotFound, id)
	}
	return r.functions[idx], nil
}

// Capabilities renders the registry and plugin flags in wire form.
// Every call returns a fresh message with identical content.
func (r *Registry) Capabilities(info PluginInfo) *wire.Capabilities {
	caps := &wire.Capabilities{
		AllowScript:      info.AllowScript,
		PluginIdentifier: info.Identifier,
		PluginVersion:    info.Version,
		Functions:        make([]wire.FunctionDefinition, len(r.functions)),
	}
	for i, d := range r.functions {
		caps.Functions[i] = d.Definition()
	}
	return caps
}
