package ir

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleQuery(t *testing.T, paramName string, threshold int64) Expr {
	t.Helper()
	where := Method(NameObservable, "Where", ObservableOf(TypeParam("T")),
		ObservableOf(TypeParam("T")), FuncOf(TypeBool, TypeParam("T")))
	src, err := InvokeOf(Free("rx://observables/range", tickerType), IntConst(10))
	require.NoError(t, err)
	pred := Lambda1(paramName, TypeInt, func(x Expr) Expr {
		return MustBinary(OpAnd,
			MustBinary(OpGreater, x, IntConst(threshold)),
			&UnaryExpr{Op: OpNot, Operand: MustBinary(OpEqual, x, IntConst(7)), StaticType: TypeBool})
	})
	call, err := CallOf(where, nil, src, pred)
	require.NoError(t, err)
	return call
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := sampleQuery(t, "x", 3)

	data, err := MarshalExpr(original)
	require.NoError(t, err)

	decoded, err := UnmarshalExpr(data)
	require.NoError(t, err)
	assert.True(t, Equal(original, decoded), Diff(original, decoded))

	again, err := MarshalExpr(decoded)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestEncodeParametersPositionally(t *testing.T) {
	a, err := MarshalExpr(sampleQuery(t, "x", 3))
	require.NoError(t, err)
	b, err := MarshalExpr(sampleQuery(t, "value", 3))
	require.NoError(t, err)

	assert.Equal(t, string(a), string(b))
	assert.NotContains(t, string(a), `"value"`)
	assert.Contains(t, string(a), `"ref":"p0"`)
}

func TestExprHash(t *testing.T) {
	h1 := MustExprHash(sampleQuery(t, "x", 3))
	h2 := MustExprHash(sampleQuery(t, "y", 3))
	h3 := MustExprHash(sampleQuery(t, "x", 4))

	assert.Len(t, h1, 64)
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestEncodeRejectsCapture(t *testing.T) {
	_, err := EncodeExpr(CaptureValue("limit", TypeInt, func() Value { return Int(1) }))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCapture))
}

func TestEncodeUnboundParameterKeepsName(t *testing.T) {
	v, err := EncodeExpr(Param("outer", TypeInt))
	require.NoError(t, err)
	obj := v.(Object)
	assert.Equal(t, String("outer"), obj["name"])

	e, err := DecodeExpr(v)
	require.NoError(t, err)
	assert.True(t, Equal(Param("outer", TypeInt), e))
}

func TestEncodeMembersAndNew(t *testing.T) {
	ctor := Constructor("Point", TypeInt, TypeInt)
	n, err := NewOf(ctor, IntConst(1), IntConst(2))
	require.NoError(t, err)
	prop := Property("Point", "X", TypeInt)
	expr := Access(n, prop)

	data, err := MarshalExpr(expr)
	require.NoError(t, err)
	decoded, err := UnmarshalExpr(data)
	require.NoError(t, err)
	assert.True(t, Equal(expr, decoded), Diff(expr, decoded))
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"not an object", `[]`},
		{"unknown node", `{"node":"goto","type":"int"}`},
		{"bad type", `{"node":"default","type":"Observable<"}`},
		{"unknown ref", `{"node":"parameter","ref":"p9","type":"int"}`},
		{"missing args", `{"node":"invoke","type":"int","target":{"node":"default","type":"int"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalExpr([]byte(tt.json))
			assert.Error(t, err)
		})
	}
}
