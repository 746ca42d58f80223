package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/registry"
)

// Validation error codes (E100-E199)
const (
	ErrBindingURIInvalid    = "E101" // uri empty or not scheme://path
	ErrInvalidTypeString    = "E102" // type string does not parse
	ErrInvalidMemberKind    = "E103" // member is not method or property
	ErrDuplicateBinding     = "E104" // two bindings for one member signature
	ErrBindingShape         = "E105" // binding type does not fit the member
	ErrInvalidResourceKind  = "E106" // unknown resource kind
	ErrResourceTypeMismatch = "E107" // resource type does not match its kind
	ErrDuplicateResourceURI = "E108" // two resources share a URI
)

// ValidationError represents a catalog validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// resourceKinds maps a resource kind to the type name it must have.
var resourceKinds = map[string]string{
	"observable":          ir.NameObservable,
	"observer":            ir.NameObserver,
	"subject":             ir.NameSubject,
	"streamFactory":       ir.NameStreamFactory,
	"subscriptionFactory": ir.NameSubscriptionFactory,
}

// ValidateCatalog checks every binding and resource and returns all errors
// found (does not fail fast).
func ValidateCatalog(c *Catalog) []ValidationError {
	var errs []ValidationError
	signatures := make(map[string]string)

	for _, b := range c.Bindings {
		field := "binding." + b.Name
		line := b.Pos.Line()

		if !validURI(b.URI) {
			errs = append(errs, ValidationError{Field: field + ".uri", Message: fmt.Sprintf("invalid URI %q", b.URI), Code: ErrBindingURIInvalid, Line: line})
		}
		if _, err := ir.ParseMemberKind(b.Member); err != nil || b.Member == "constructor" {
			errs = append(errs, ValidationError{Field: field + ".member", Message: fmt.Sprintf("member must be method or property, got %q", b.Member), Code: ErrInvalidMemberKind, Line: line})
			continue
		}
		m, err := b.ToMember()
		if err != nil {
			errs = append(errs, ValidationError{Field: field, Message: err.Error(), Code: ErrInvalidTypeString, Line: line})
			continue
		}
		t, err := b.BindingType(m)
		if err != nil {
			errs = append(errs, ValidationError{Field: field + ".type", Message: err.Error(), Code: ErrInvalidTypeString, Line: line})
			continue
		}

		sig := m.Signature()
		if prev, ok := signatures[sig]; ok {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("member %s already bound by %s", sig, prev), Code: ErrDuplicateBinding, Line: line})
			continue
		}
		signatures[sig] = b.Name

		// Shape is checked by registering into a scratch registry.
		if validURI(b.URI) {
			if err := registry.New().Register(m, ir.URI(b.URI), t); err != nil {
				errs = append(errs, ValidationError{Field: field, Message: err.Error(), Code: ErrBindingShape, Line: line})
			}
		}
	}

	uris := make(map[string]string)
	for _, r := range c.Resources {
		field := "resource." + r.Name
		line := r.Pos.Line()

		if !validURI(r.URI) {
			errs = append(errs, ValidationError{Field: field + ".uri", Message: fmt.Sprintf("invalid URI %q", r.URI), Code: ErrBindingURIInvalid, Line: line})
		} else if prev, ok := uris[r.URI]; ok {
			errs = append(errs, ValidationError{Field: field + ".uri", Message: fmt.Sprintf("URI %s already declared by %s", r.URI, prev), Code: ErrDuplicateResourceURI, Line: line})
		} else {
			uris[r.URI] = r.Name
		}

		want, ok := resourceKinds[r.Kind]
		if !ok {
			errs = append(errs, ValidationError{Field: field + ".kind", Message: fmt.Sprintf("unknown resource kind %q", r.Kind), Code: ErrInvalidResourceKind, Line: line})
			continue
		}
		t, err := ir.ParseType(r.Type)
		if err != nil {
			errs = append(errs, ValidationError{Field: field + ".type", Message: err.Error(), Code: ErrInvalidTypeString, Line: line})
			continue
		}
		if !resourceTypeFits(t, want) {
			errs = append(errs, ValidationError{Field: field + ".type", Message: fmt.Sprintf("%s resource must have a %s type, got %s", r.Kind, want, t), Code: ErrResourceTypeMismatch, Line: line})
		}
	}
	return errs
}

// resourceTypeFits accepts T<...> and parameterized Func<params..., T<...>>.
func resourceTypeFits(t ir.Type, name string) bool {
	if t.IsFunc() && (name == ir.NameObservable || name == ir.NameObserver) {
		t = t.FuncResult()
	}
	return t.Is(name)
}

func validURI(u string) bool {
	scheme, rest, ok := strings.Cut(u, "://")
	return ok && scheme != "" && rest != "" && !strings.ContainsAny(u, " \t\n")
}
