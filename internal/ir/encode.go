package ir

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrCapture is returned when encoding an expression that still holds a
// Capture node. Only normalized expressions can be encoded.
var ErrCapture = errors.New("expression contains an unresolved capture")

// EncodeExpr converts e to its canonical Value form.
//
// Lambda parameters are encoded by binding position ("p0", "p1", ... in
// pre-order) instead of by name, so structurally equal expressions encode
// to identical values and therefore identical canonical JSON and hashes.
// Parameters not bound inside e keep their names.
func EncodeExpr(e Expr) (Value, error) {
	enc := &exprEncoder{refs: map[*Parameter]string{}}
	return enc.encode(e)
}

type exprEncoder struct {
	refs map[*Parameter]string
	next int
}

func (enc *exprEncoder) encode(e Expr) (Value, error) {
	if e == nil {
		return nil, fmt.Errorf("encode: nil expression")
	}
	obj := Object{
		"node": String(nodeTag(e)),
		"type": String(e.Type().String()),
	}
	switch n := e.(type) {
	case *Constant:
		obj["value"] = OrNull(n.Value)
	case *FreeVariable:
		obj["name"] = String(n.Name)
	case *Parameter:
		if ref, ok := enc.refs[n]; ok {
			obj["ref"] = String(ref)
		} else {
			obj["name"] = String(n.Name)
		}
	case *Default:
	case *Capture:
		return nil, fmt.Errorf("encode %s: %w", n.Name, ErrCapture)
	case *Invoke:
		target, err := enc.encode(n.Target)
		if err != nil {
			return nil, err
		}
		args, err := enc.encodeList(n.Args)
		if err != nil {
			return nil, err
		}
		obj["target"] = target
		obj["args"] = args
	case *Call:
		if n.Object != nil {
			o, err := enc.encode(n.Object)
			if err != nil {
				return nil, err
			}
			obj["object"] = o
		}
		args, err := enc.encodeList(n.Args)
		if err != nil {
			return nil, err
		}
		obj["method"] = EncodeMember(n.Method)
		obj["args"] = args
	case *New:
		args, err := enc.encodeList(n.Args)
		if err != nil {
			return nil, err
		}
		obj["constructor"] = EncodeMember(n.Constructor)
		obj["args"] = args
	case *MemberAccess:
		if n.Object != nil {
			o, err := enc.encode(n.Object)
			if err != nil {
				return nil, err
			}
			obj["object"] = o
		}
		obj["member"] = EncodeMember(n.Member)
	case *BinaryExpr:
		l, err := enc.encode(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := enc.encode(n.Right)
		if err != nil {
			return nil, err
		}
		obj["op"] = String(n.Op)
		obj["left"] = l
		obj["right"] = r
	case *UnaryExpr:
		x, err := enc.encode(n.Operand)
		if err != nil {
			return nil, err
		}
		obj["op"] = String(n.Op)
		obj["operand"] = x
	case *Lambda:
		params := make(Array, len(n.Params))
		for i, p := range n.Params {
			ref := "p" + strconv.Itoa(enc.next)
			enc.next++
			enc.refs[p] = ref
			params[i] = Object{"ref": String(ref), "type": String(p.StaticType.String())}
		}
		body, err := enc.encode(n.Body)
		for _, p := range n.Params {
			delete(enc.refs, p)
		}
		if err != nil {
			return nil, err
		}
		obj["params"] = params
		obj["body"] = body
	default:
		return nil, fmt.Errorf("encode: unsupported node %T", e)
	}
	return obj, nil
}

func (enc *exprEncoder) encodeList(xs []Expr) (Array, error) {
	out := make(Array, len(xs))
	for i, x := range xs {
		v, err := enc.encode(x)
		if err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// EncodeMember converts a member descriptor to its canonical Value form.
func EncodeMember(m Member) Object {
	params := make(Array, len(m.Params))
	for i, p := range m.Params {
		params[i] = String(p.String())
	}
	return Object{
		"kind":      String(m.Kind.String()),
		"declaring": String(m.Declaring),
		"name":      String(m.Name),
		"params":    params,
		"result":    String(m.Result.String()),
	}
}

// DecodeMember is the inverse of EncodeMember.
func DecodeMember(v Value) (Member, error) {
	obj, ok := v.(Object)
	if !ok {
		return Member{}, fmt.Errorf("member: expected object, got %T", v)
	}
	kindStr, err := stringField(obj, "kind")
	if err != nil {
		return Member{}, err
	}
	kind, err := ParseMemberKind(kindStr)
	if err != nil {
		return Member{}, err
	}
	declaring, err := stringField(obj, "declaring")
	if err != nil {
		return Member{}, err
	}
	name, err := stringField(obj, "name")
	if err != nil {
		return Member{}, err
	}
	result, err := typeField(obj, "result")
	if err != nil {
		return Member{}, err
	}
	var params []Type
	if raw, ok := obj["params"].(Array); ok {
		for i, p := range raw {
			s, ok := p.(String)
			if !ok {
				return Member{}, fmt.Errorf("member params[%d]: expected string", i)
			}
			t, err := ParseType(string(s))
			if err != nil {
				return Member{}, err
			}
			params = append(params, t)
		}
	}
	return Member{Kind: kind, Declaring: declaring, Name: name, Params: params, Result: result}, nil
}

// DecodeExpr is the inverse of EncodeExpr. Bound parameters are recreated
// with their positional ref as name.
func DecodeExpr(v Value) (Expr, error) {
	dec := &exprDecoder{scope: map[string]*Parameter{}}
	return dec.decode(v)
}

type exprDecoder struct {
	scope map[string]*Parameter
}

func (dec *exprDecoder) decode(v Value) (Expr, error) {
	obj, ok := v.(Object)
	if !ok {
		return nil, fmt.Errorf("decode: expected object, got %T", v)
	}
	tag, err := stringField(obj, "node")
	if err != nil {
		return nil, err
	}
	t, err := typeField(obj, "type")
	if err != nil {
		return nil, err
	}

	switch tag {
	case "constant":
		val, ok := obj["value"]
		if !ok {
			return nil, fmt.Errorf("decode constant: missing value")
		}
		return &Constant{Value: val, StaticType: t}, nil
	case "free":
		name, err := stringField(obj, "name")
		if err != nil {
			return nil, err
		}
		return &FreeVariable{Name: name, StaticType: t}, nil
	case "parameter":
		if ref, ok := obj["ref"].(String); ok {
			p, ok := dec.scope[string(ref)]
			if !ok {
				return nil, fmt.Errorf("decode parameter: unknown ref %q", ref)
			}
			return p, nil
		}
		name, err := stringField(obj, "name")
		if err != nil {
			return nil, err
		}
		return &Parameter{Name: name, StaticType: t}, nil
	case "default":
		return &Default{StaticType: t}, nil
	case "invoke":
		target, err := dec.field(obj, "target")
		if err != nil {
			return nil, err
		}
		args, err := dec.list(obj, "args")
		if err != nil {
			return nil, err
		}
		return &Invoke{Target: target, Args: args, StaticType: t}, nil
	case "call":
		m, err := DecodeMember(obj["method"])
		if err != nil {
			return nil, err
		}
		object, err := dec.optional(obj, "object")
		if err != nil {
			return nil, err
		}
		args, err := dec.list(obj, "args")
		if err != nil {
			return nil, err
		}
		return &Call{Method: m, Object: object, Args: args, StaticType: t}, nil
	case "new":
		m, err := DecodeMember(obj["constructor"])
		if err != nil {
			return nil, err
		}
		args, err := dec.list(obj, "args")
		if err != nil {
			return nil, err
		}
		return &New{Constructor: m, Args: args, StaticType: t}, nil
	case "member":
		m, err := DecodeMember(obj["member"])
		if err != nil {
			return nil, err
		}
		object, err := dec.optional(obj, "object")
		if err != nil {
			return nil, err
		}
		return &MemberAccess{Object: object, Member: m, StaticType: t}, nil
	case "binary":
		op, err := stringField(obj, "op")
		if err != nil {
			return nil, err
		}
		l, err := dec.field(obj, "left")
		if err != nil {
			return nil, err
		}
		r, err := dec.field(obj, "right")
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: BinaryOp(op), Left: l, Right: r, StaticType: t}, nil
	case "unary":
		op, err := stringField(obj, "op")
		if err != nil {
			return nil, err
		}
		x, err := dec.field(obj, "operand")
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: UnaryOp(op), Operand: x, StaticType: t}, nil
	case "lambda":
		raw, ok := obj["params"].(Array)
		if !ok {
			return nil, fmt.Errorf("decode lambda: missing params")
		}
		params := make([]*Parameter, len(raw))
		for i, r := range raw {
			po, ok := r.(Object)
			if !ok {
				return nil, fmt.Errorf("decode lambda params[%d]: expected object", i)
			}
			ref, err := stringField(po, "ref")
			if err != nil {
				return nil, err
			}
			pt, err := typeField(po, "type")
			if err != nil {
				return nil, err
			}
			params[i] = &Parameter{Name: ref, StaticType: pt}
			dec.scope[ref] = params[i]
		}
		body, err := dec.field(obj, "body")
		for _, p := range params {
			delete(dec.scope, p.Name)
		}
		if err != nil {
			return nil, err
		}
		return &Lambda{Params: params, Body: body, StaticType: t}, nil
	default:
		return nil, fmt.Errorf("decode: unknown node %q", tag)
	}
}

func (dec *exprDecoder) field(obj Object, key string) (Expr, error) {
	v, ok := obj[key]
	if !ok {
		return nil, fmt.Errorf("decode: missing %q", key)
	}
	e, err := dec.decode(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return e, nil
}

func (dec *exprDecoder) optional(obj Object, key string) (Expr, error) {
	if _, ok := obj[key]; !ok {
		return nil, nil
	}
	return dec.field(obj, key)
}

func (dec *exprDecoder) list(obj Object, key string) ([]Expr, error) {
	raw, ok := obj[key].(Array)
	if !ok {
		return nil, fmt.Errorf("decode: missing %q", key)
	}
	out := make([]Expr, len(raw))
	for i, r := range raw {
		e, err := dec.decode(r)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
		}
		out[i] = e
	}
	return out, nil
}

func stringField(obj Object, key string) (string, error) {
	s, ok := obj[key].(String)
	if !ok {
		return "", fmt.Errorf("decode: field %q must be a string", key)
	}
	return string(s), nil
}

func typeField(obj Object, key string) (Type, error) {
	s, err := stringField(obj, key)
	if err != nil {
		return Type{}, err
	}
	return ParseType(s)
}

// MarshalExpr returns the canonical JSON encoding of e.
func MarshalExpr(e Expr) ([]byte, error) {
	v, err := EncodeExpr(e)
	if err != nil {
		return nil, err
	}
	return MarshalCanonical(v)
}

// UnmarshalExpr parses JSON produced by MarshalExpr.
func UnmarshalExpr(data []byte) (Expr, error) {
	v, err := UnmarshalValue(data)
	if err != nil {
		return nil, err
	}
	return DecodeExpr(v)
}
