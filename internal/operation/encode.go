package operation

import (
	"fmt"

	"github.com/roach88/rxq/internal/ir"
)

// Encode converts op to its canonical Value form:
//
//	{"kind": "CreateSubscription", "id": "rx://...", "expr": {...}, "state": null}
//
// Only the fields a variant carries are present. State is always present
// (possibly null) on definition variants.
func Encode(op Operation) (ir.Object, error) {
	if err := Validate(op); err != nil {
		return nil, err
	}
	obj := ir.Object{"kind": ir.String(op.Kind())}
	if id := op.Target(); id != "" {
		obj["id"] = ir.String(id)
	}
	if e := Expression(op); e != nil {
		v, err := ir.EncodeExpr(e)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", op.Kind(), err)
		}
		obj["expr"] = v
	}
	if HasDefinition(op.Kind()) {
		obj["state"] = ir.OrNull(State(op))
	}
	switch o := op.(type) {
	case ObserverOnNext:
		obj["value"] = ir.OrNull(o.Value)
	case ObserverOnError:
		obj["error"] = ir.String(o.Message)
	}
	return obj, nil
}

// Decode is the inverse of Encode.
func Decode(v ir.Value) (Operation, error) {
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("decode operation: expected object, got %T", v)
	}
	kind, ok := obj["kind"].(ir.String)
	if !ok {
		return nil, fmt.Errorf("decode operation: missing kind")
	}
	var id ir.URI
	if s, ok := obj["id"].(ir.String); ok {
		id = ir.URI(s)
	}
	var expr ir.Expr
	if raw, ok := obj["expr"]; ok {
		e, err := ir.DecodeExpr(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		expr = e
	}

	payload := obj["state"]
	switch Kind(kind) {
	case KindObserverOnNext:
		payload = obj["value"]
	case KindObserverOnError:
		payload = obj["error"]
	}
	if ir.IsNull(payload) && Kind(kind) != KindObserverOnNext {
		payload = nil
	}
	return New(Kind(kind), id, expr, payload)
}

// Marshal returns the canonical JSON of op.
func Marshal(op Operation) ([]byte, error) {
	obj, err := Encode(op)
	if err != nil {
		return nil, err
	}
	return ir.MarshalCanonical(obj)
}

// Unmarshal parses JSON produced by Marshal.
func Unmarshal(data []byte) (Operation, error) {
	v, err := ir.UnmarshalValue(data)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

// ID computes the content-addressed identity of op. Structurally equal
// operations have the same ID.
func ID(op Operation) (string, error) {
	obj, err := Encode(op)
	if err != nil {
		return "", fmt.Errorf("operation ID: %w", err)
	}
	return ir.ContentHash(ir.DomainOperation, obj)
}

// MustID is like ID but panics on error.
// Use only in tests or for operations known to be valid.
func MustID(op Operation) string {
	id, err := ID(op)
	if err != nil {
		panic(err)
	}
	return id
}
