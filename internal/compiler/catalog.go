package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/registry"
)

// Catalog is the declarative binding surface: members bound to remote
// operators, and named remote resources.
//
// A catalog is written in CUE:
//
//	binding: where: {
//		member:    "method"
//		declaring: "Observable"
//		name:      "Where"
//		params: ["Observable<T>", "Func<T, bool>"]
//		result: "Observable<T>"
//		uri:    "rx://operators/where"
//	}
//
//	resource: ticker: {
//		kind: "observable"
//		uri:  "rx://observables/ticker"
//		type: "Observable<int>"
//	}
type Catalog struct {
	Bindings  []BindingSpec
	Resources []ResourceSpec
}

// BindingSpec is one catalog binding, as written.
type BindingSpec struct {
	Name       string
	Member     string
	Declaring  string
	MemberName string
	Params     []string
	Result     string
	URI        string
	// Type is the explicit binding type; empty means the member signature.
	Type string
	Pos  token.Pos
}

// ResourceSpec is one named remote resource, as written.
type ResourceSpec struct {
	Name string
	Kind string
	URI  string
	Type string
	Pos  token.Pos
}

// LoadCatalog loads every CUE file in dir as one instance and compiles it.
func LoadCatalog(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &CompileError{Field: "catalog", Message: fmt.Sprintf("cannot access %s: %v", dir, err)}
	}
	if !info.IsDir() {
		return nil, &CompileError{Field: "catalog", Message: fmt.Sprintf("not a directory: %s", dir)}
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &CompileError{Field: "catalog", Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &CompileError{Field: "catalog", Message: "no CUE instances loaded"}
	}
	if err := instances[0].Err; err != nil {
		return nil, formatCUEError(err)
	}
	value := ctx.BuildInstance(instances[0])
	return CompileCatalog(value)
}

// ParseCatalog compiles a catalog from CUE source text.
func ParseCatalog(filename string, src []byte) (*Catalog, error) {
	value := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	return CompileCatalog(value)
}

// CompileCatalog extracts bindings and resources from a CUE value.
// Entries are returned sorted by name.
func CompileCatalog(v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	c := &Catalog{}

	bindings := v.LookupPath(cue.ParsePath("binding"))
	if bindings.Exists() {
		iter, err := bindings.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			b, err := compileBinding(iter.Selector().Unquoted(), iter.Value())
			if err != nil {
				return nil, err
			}
			c.Bindings = append(c.Bindings, b)
		}
	}

	resources := v.LookupPath(cue.ParsePath("resource"))
	if resources.Exists() {
		iter, err := resources.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			r, err := compileResource(iter.Selector().Unquoted(), iter.Value())
			if err != nil {
				return nil, err
			}
			c.Resources = append(c.Resources, r)
		}
	}

	sort.Slice(c.Bindings, func(i, j int) bool { return c.Bindings[i].Name < c.Bindings[j].Name })
	sort.Slice(c.Resources, func(i, j int) bool { return c.Resources[i].Name < c.Resources[j].Name })
	return c, nil
}

func compileBinding(name string, v cue.Value) (BindingSpec, error) {
	b := BindingSpec{Name: name, Pos: v.Pos()}
	var err error
	if b.Member, err = requiredString(v, "member"); err != nil {
		return b, err
	}
	if b.Declaring, err = requiredString(v, "declaring"); err != nil {
		return b, err
	}
	if b.MemberName, err = requiredString(v, "name"); err != nil {
		return b, err
	}
	if b.Result, err = requiredString(v, "result"); err != nil {
		return b, err
	}
	if b.URI, err = requiredString(v, "uri"); err != nil {
		return b, err
	}
	if b.Type, err = optionalString(v, "type"); err != nil {
		return b, err
	}

	params := v.LookupPath(cue.ParsePath("params"))
	if params.Exists() {
		list, err := params.List()
		if err != nil {
			return b, formatCUEError(err)
		}
		for list.Next() {
			s, err := list.Value().String()
			if err != nil {
				return b, formatCUEError(err)
			}
			b.Params = append(b.Params, s)
		}
	}
	return b, nil
}

func compileResource(name string, v cue.Value) (ResourceSpec, error) {
	r := ResourceSpec{Name: name, Pos: v.Pos()}
	var err error
	if r.Kind, err = requiredString(v, "kind"); err != nil {
		return r, err
	}
	if r.URI, err = requiredString(v, "uri"); err != nil {
		return r, err
	}
	if r.Type, err = requiredString(v, "type"); err != nil {
		return r, err
	}
	return r, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// ToMember converts the spec to an ir.Member.
func (b BindingSpec) ToMember() (ir.Member, error) {
	kind, err := ir.ParseMemberKind(b.Member)
	if err != nil {
		return ir.Member{}, err
	}
	result, err := ir.ParseType(b.Result)
	if err != nil {
		return ir.Member{}, err
	}
	params := make([]ir.Type, len(b.Params))
	for i, p := range b.Params {
		if params[i], err = ir.ParseType(p); err != nil {
			return ir.Member{}, err
		}
	}
	return ir.Member{Kind: kind, Declaring: b.Declaring, Name: b.MemberName, Params: params, Result: result}, nil
}

// BindingType returns the explicit binding type or the one implied by m.
func (b BindingSpec) BindingType(m ir.Member) (ir.Type, error) {
	if b.Type == "" {
		return registry.SignatureType(m), nil
	}
	return ir.ParseType(b.Type)
}

// Register validates the catalog and adds its bindings to r. Nothing is
// registered when validation fails.
func (c *Catalog) Register(r *registry.Registry) error {
	if errs := ValidateCatalog(c); len(errs) > 0 {
		return errs[0]
	}
	for _, b := range c.Bindings {
		m, _ := b.ToMember()
		t, _ := b.BindingType(m)
		if err := r.Register(m, ir.URI(b.URI), t); err != nil {
			return fmt.Errorf("binding %s: %w", b.Name, err)
		}
	}
	return nil
}

// Resource returns the named resource declaration.
func (c *Catalog) Resource(name string) (ResourceSpec, bool) {
	for _, r := range c.Resources {
		if r.Name == name {
			return r, true
		}
	}
	return ResourceSpec{}, false
}

// CompileError represents a catalog compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
