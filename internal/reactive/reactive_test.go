package reactive

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rxq/internal/compiler"
	"github.com/roach88/rxq/internal/engine"
	"github.com/roach88/rxq/internal/harness"
	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/operation"
	"github.com/roach88/rxq/internal/registry"
)

const (
	tickerURI   ir.URI = "rx://observables/ticker"
	observerURI ir.URI = "rx://observers/o"
	rangeURI    ir.URI = "rx://observables/range"
)

var (
	intObservable = ir.ObservableOf(ir.TypeInt)
	intObserver   = ir.ObserverOf(ir.TypeInt)
	rangeType     = ir.FuncOf(intObservable, ir.TypeInt, ir.TypeInt)
	tickerProp    = ir.Property("Streams", "Ticker", intObservable)
)

func newContext(t *testing.T, e engine.Engine, opts ...Option) *Context {
	t.Helper()
	reg := registry.New()
	require.NoError(t, RegisterBuiltins(reg))
	require.NoError(t, reg.Register(tickerProp, tickerURI, registry.SignatureType(tickerProp)))
	reg.Seal()
	return NewContext(e, reg, opts...)
}

// invoke builds the normalized form of a bound operator applied to args.
func invoke(uri ir.URI, result ir.Type, args ...ir.Expr) ir.Expr {
	types := make([]ir.Type, len(args))
	for i, a := range args {
		types[i] = a.Type()
	}
	return &ir.Invoke{Target: ir.Free(string(uri), ir.FuncOf(result, types...)), Args: args, StaticType: result}
}

func ticker() ir.Expr   { return ir.Free(string(tickerURI), intObservable) }
func observer() ir.Expr { return ir.Free(string(observerURI), intObserver) }

func subscribeTo(src ir.Expr) ir.Expr {
	return invoke("rx://builtin/subscribe", ir.SubscriptionType, src, observer())
}

func greaterThan(name string, n ir.Expr) *ir.Lambda {
	return ir.Lambda1(name, ir.TypeInt, func(x ir.Expr) ir.Expr { return ir.MustBinary(ir.OpGreater, x, n) })
}

func createSubscription(t *testing.T, id ir.URI, e ir.Expr) operation.Operation {
	t.Helper()
	op, err := operation.New(operation.KindCreateSubscription, id, e, nil)
	require.NoError(t, err)
	return op
}

func gt(n int64) func(x ir.Expr) ir.Expr {
	return func(x ir.Expr) ir.Expr { return ir.MustBinary(ir.OpGreater, x, ir.IntConst(n)) }
}

// noLambdaInvoke reports whether e has no invocation of a lambda left.
func noLambdaInvoke(e ir.Expr) bool {
	ok := true
	ir.Walk(e, func(x ir.Expr) bool {
		if inv, isInvoke := x.(*ir.Invoke); isInvoke {
			if _, isLambda := inv.Target.(*ir.Lambda); isLambda {
				ok = false
			}
		}
		return ok
	})
	return ok
}

func TestWhereSelectSubscribe_FullyInlined(t *testing.T) {
	where := invoke("rx://operators/where", intObservable, ticker(), greaterThan("x", ir.IntConst(5)))
	double := ir.Lambda1("x", ir.TypeInt, func(x ir.Expr) ir.Expr { return ir.MustBinary(ir.OpMultiply, x, ir.IntConst(2)) })
	sel := invoke("rx://operators/select", intObservable, where, double)
	want := createSubscription(t, "rx://subscriptions/s1", subscribeTo(sel))

	rec := harness.NewRecorder()
	sap := harness.New(t, want)
	c := newContext(t, engine.EngineFunc(func(ctx context.Context, op operation.Operation) (ir.Value, error) {
		_, _ = rec.Dispatch(ctx, op)
		return sap.Dispatch(ctx, op)
	}))

	sub, err := c.GetObservable(tickerURI, ir.TypeInt).
		Where(gt(5)).
		Select(func(x ir.Expr) ir.Expr { return ir.MustBinary(ir.OpMultiply, x, ir.IntConst(2)) }).
		Subscribe(context.Background(), c.GetObserver(observerURI, ir.TypeInt), "rx://subscriptions/s1", nil)
	require.NoError(t, err)
	assert.Equal(t, ir.URI("rx://subscriptions/s1"), sub.URI())

	ops := rec.Operations()
	require.Len(t, ops, 1)
	expr := operation.Expression(ops[0])
	assert.True(t, noLambdaInvoke(expr))
	assert.Equal(t,
		"<rx://builtin/subscribe>(<rx://operators/select>(<rx://operators/where>(<rx://observables/ticker>, (x) => (x > 5)), (x) => (x * 2)), <rx://observers/o>)",
		ir.Format(expr))
}

func TestEqualityIgnoresParameterNames(t *testing.T) {
	want := createSubscription(t, "rx://subscriptions/s1",
		subscribeTo(invoke("rx://operators/where", intObservable, ticker(), greaterThan("renamed", ir.IntConst(5)))))
	c := newContext(t, harness.New(t, want))

	_, err := c.GetObservable(tickerURI, ir.TypeInt).Where(gt(5)).
		Subscribe(context.Background(), c.GetObserver(observerURI, ir.TypeInt), "rx://subscriptions/s1", nil)
	require.NoError(t, err)
}

func TestEqualitySensitiveToOperatorAndLiterals(t *testing.T) {
	c := newContext(t, harness.NewRecorder())
	src := c.GetObservable(tickerURI, ir.TypeInt)
	o := c.GetObserver(observerURI, ir.TypeInt)

	compile := func(obs Observable) operation.Operation {
		q := obs.SubscribeExpr(o)
		require.NoError(t, q.Err())
		op, err := c.Compiler().Compile(compiler.Action{
			Kind: operation.KindCreateSubscription,
			ID:   "rx://subscriptions/s",
			Expr: q.Expr(),
		})
		require.NoError(t, err)
		return op
	}

	base := compile(src.Take(ir.IntConst(3)))
	assert.True(t, operation.Equal(base, compile(src.Take(ir.IntConst(3)))))
	assert.Contains(t, operation.Diff(base, compile(src.Skip(ir.IntConst(3)))), "free variable")
	assert.Contains(t, operation.Diff(base, compile(src.Take(ir.IntConst(4)))), "constant 3 vs 4")
	assert.Contains(t, operation.Diff(base, compile(src.Take(ir.IntConst(3)).DistinctUntilChanged())), "expr.args[0]")
}

func TestLateCaptureInLoop(t *testing.T) {
	var want []operation.Operation
	for i := int64(1); i <= 3; i++ {
		id := ir.URI(fmt.Sprintf("rx://subscriptions/s%d", i))
		want = append(want, createSubscription(t, id,
			subscribeTo(invoke("rx://operators/where", intObservable, ticker(), greaterThan("x", ir.IntConst(i*10))))))
	}
	c := newContext(t, harness.New(t, want...))

	var threshold int64
	q := c.GetObservable(tickerURI, ir.TypeInt).Where(func(x ir.Expr) ir.Expr {
		return ir.MustBinary(ir.OpGreater, x, Var("threshold", &threshold))
	})
	o := c.GetObserver(observerURI, ir.TypeInt)

	for i := int64(1); i <= 3; i++ {
		threshold = i * 10
		_, err := q.Subscribe(context.Background(), o, ir.URI(fmt.Sprintf("rx://subscriptions/s%d", i)), nil)
		require.NoError(t, err)
	}
}

func TestVarTypes(t *testing.T) {
	var (
		s string
		b bool
		d time.Duration
		n int64
	)
	assert.Equal(t, ir.TypeString, Var("s", &s).Type())
	assert.Equal(t, ir.TypeBool, Var("b", &b).Type())
	assert.Equal(t, ir.TypeDuration, Var("d", &d).Type())
	assert.Equal(t, ir.TypeInt, Var("n", &n).Type())
}

func TestVarObservable_ReadsCurrentSource(t *testing.T) {
	other := ir.Free("rx://observables/other", intObservable)
	take := func(src ir.Expr) ir.Expr {
		return subscribeTo(invoke("rx://operators/take", intObservable, src, ir.IntConst(1)))
	}
	c := newContext(t, harness.New(t,
		createSubscription(t, "rx://subscriptions/a", take(ticker())),
		createSubscription(t, "rx://subscriptions/b", take(other)),
	))
	ctx := context.Background()
	o := c.GetObserver(observerURI, ir.TypeInt)

	src := c.GetObservable(tickerURI, ir.TypeInt)
	q := VarObservable("src", &src).Take(ir.IntConst(1))

	_, err := q.Subscribe(ctx, o, "rx://subscriptions/a", nil)
	require.NoError(t, err)

	src = c.GetObservable("rx://observables/other", ir.TypeInt)
	_, err = q.Subscribe(ctx, o, "rx://subscriptions/b", nil)
	require.NoError(t, err)
}

func TestVarObservable_RejectsHeldProxyAtTerminalAction(t *testing.T) {
	tests := []struct {
		name  string
		reset func(c *Context) Observable
		check func(t *testing.T, err error)
	}{
		{
			name:  "failed proxy",
			reset: func(c *Context) Observable { return c.GetObservable("", ir.TypeInt) },
			check: func(t *testing.T, err error) { assert.True(t, operation.IsArgumentError(err)) },
		},
		{
			name:  "empty proxy",
			reset: func(*Context) Observable { return Observable{} },
			check: func(t *testing.T, err error) {
				assert.True(t, operation.IsArgumentError(err))
				assert.Contains(t, err.Error(), "argument src:")
			},
		},
		{
			name:  "different element type",
			reset: func(c *Context) Observable { return c.GetObservable("rx://observables/names", ir.TypeString) },
			check: func(t *testing.T, err error) {
				assert.True(t, IsCompositionError(err))
				assert.Contains(t, err.Error(), "changed type from Observable<int> to Observable<string>")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := harness.NewRecorder()
			c := newContext(t, rec)
			o := c.GetObserver(observerURI, ir.TypeInt)

			src := c.GetObservable(tickerURI, ir.TypeInt)
			q := VarObservable("src", &src).Take(ir.IntConst(1))
			require.NoError(t, q.Err())

			src = tt.reset(c)
			_, err := q.Subscribe(context.Background(), o, "rx://subscriptions/a", nil)
			require.Error(t, err)
			tt.check(t, err)
			assert.Empty(t, rec.Operations())
		})
	}
}

func TestVarObservable_NilVariable(t *testing.T) {
	q := VarObservable("src", nil)
	assert.True(t, operation.IsArgumentError(q.Err()))
}

func TestVar_NilPointerIsArgumentError(t *testing.T) {
	rec := harness.NewRecorder()
	c := newContext(t, rec)
	o := c.GetObserver(observerURI, ir.TypeInt)

	q := c.GetObservable(tickerURI, ir.TypeInt).Take(Var("n", (*int64)(nil)))
	require.NoError(t, q.Err())

	_, err := q.Subscribe(context.Background(), o, "rx://subscriptions/a", nil)
	require.Error(t, err)
	assert.True(t, operation.IsArgumentError(err))
	assert.Contains(t, err.Error(), "argument n:")
	assert.Empty(t, rec.Operations())
}

func TestParameterizedObservable_Apply(t *testing.T) {
	ranged := &ir.Invoke{
		Target:     ir.Free(string(rangeURI), rangeType),
		Args:       []ir.Expr{ir.IntConst(1), ir.IntConst(5)},
		StaticType: intObservable,
	}
	c := newContext(t, harness.New(t, createSubscription(t, "rx://subscriptions/r", subscribeTo(ranged))))
	ctx := context.Background()
	o := c.GetObserver(observerURI, ir.TypeInt)
	f := c.GetObservableFactory(rangeURI, rangeType)

	_, err := f.Apply(ir.IntConst(1), ir.IntConst(5)).Subscribe(ctx, o, "rx://subscriptions/r", nil)
	require.NoError(t, err)

	// Arity and argument types are checked before anything is dispatched.
	_, err = f.Apply(ir.IntConst(1)).Subscribe(ctx, o, "rx://subscriptions/x", nil)
	require.Error(t, err)
	assert.True(t, IsCompositionError(err))
	assert.Contains(t, err.Error(), "expects 2 argument(s), got 1")

	bad := f.Apply(ir.IntConst(1), ir.Const(ir.String("5"), ir.TypeString))
	assert.Contains(t, bad.Err().Error(), "argument 1 has type string, want int")

	assert.True(t, IsCompositionError(c.GetObservableFactory(rangeURI, intObservable).Err()))
}

func TestParameterizedObserver_Apply(t *testing.T) {
	logType := ir.FuncOf(intObserver, ir.TypeString)
	logger := &ir.Invoke{
		Target:     ir.Free("rx://observers/log", logType),
		Args:       []ir.Expr{ir.Const(ir.String("ticks"), ir.TypeString)},
		StaticType: intObserver,
	}
	want := createSubscription(t, "rx://subscriptions/l",
		invoke("rx://builtin/subscribe", ir.SubscriptionType, ticker(), logger))
	c := newContext(t, harness.New(t, want))
	ctx := context.Background()

	obs := c.GetObserverFactory("rx://observers/log", logType).Apply(ir.Const(ir.String("ticks"), ir.TypeString))
	require.NoError(t, obs.Err())
	assert.Empty(t, obs.URI())

	_, err := c.GetObservable(tickerURI, ir.TypeInt).Subscribe(ctx, obs, "rx://subscriptions/l", nil)
	require.NoError(t, err)

	err = obs.OnNext(ctx, ir.Int(1))
	assert.True(t, operation.IsArgumentError(err))
}

func TestSelectMany_CollapsesInnerFactory(t *testing.T) {
	rec := harness.NewRecorder()
	c := newContext(t, rec)
	ctx := context.Background()
	o := c.GetObserver(observerURI, ir.TypeInt)
	src := c.GetObservable(tickerURI, ir.TypeInt)

	firstN := c.ObservableFunc("n", ir.TypeInt, func(n ir.Expr) Observable { return src.Take(n) })
	require.NoError(t, firstN.Err())

	_, err := src.SelectMany(func(x ir.Expr) Observable { return firstN.Apply(x) }).
		Subscribe(ctx, o, "rx://subscriptions/m", nil)
	require.NoError(t, err)

	ranged := c.GetObservableFactory(rangeURI, rangeType)
	_, err = src.SelectMany(func(x ir.Expr) Observable { return ranged.Apply(x, x) }).
		Subscribe(ctx, o, "rx://subscriptions/r", nil)
	require.NoError(t, err)

	ops := rec.Operations()
	require.Len(t, ops, 2)

	collapsed := operation.Expression(ops[0])
	assert.True(t, noLambdaInvoke(collapsed))
	assert.Equal(t,
		"<rx://builtin/subscribe>(<rx://operators/selectMany>(<rx://observables/ticker>, (x) => <rx://operators/take>(<rx://observables/ticker>, x)), <rx://observers/o>)",
		ir.Format(collapsed))

	known := operation.Expression(ops[1])
	assert.True(t, noLambdaInvoke(known))
	assert.Equal(t,
		"<rx://builtin/subscribe>(<rx://operators/selectMany>(<rx://observables/ticker>, (x) => <rx://observables/range>(x, x)), <rx://observers/o>)",
		ir.Format(known))
}

func TestBoundPropertyEqualsGetObservable(t *testing.T) {
	rec := harness.NewRecorder()
	c := newContext(t, rec)
	ctx := context.Background()
	o := c.GetObserver(observerURI, ir.TypeInt)

	_, err := c.Bound(tickerProp).Where(gt(1)).Subscribe(ctx, o, "rx://subscriptions/s", nil)
	require.NoError(t, err)
	_, err = c.GetObservable(tickerURI, ir.TypeInt).Where(gt(1)).Subscribe(ctx, o, "rx://subscriptions/s", nil)
	require.NoError(t, err)

	ops := rec.Operations()
	require.Len(t, ops, 2)
	assert.True(t, operation.Equal(ops[0], ops[1]), operation.Diff(ops[0], ops[1]))
	assert.Equal(t, operation.MustID(ops[0]), operation.MustID(ops[1]))

	unbound := ir.Property("Streams", "Missing", intObservable)
	assert.True(t, IsCompositionError(c.Bound(unbound).Err()))
	assert.True(t, IsCompositionError(c.Bound(MemberWhere).Err()))
}

func TestStaticOperators(t *testing.T) {
	rec := harness.NewRecorder()
	c := newContext(t, rec)
	ctx := context.Background()
	o := c.GetObserver(observerURI, ir.TypeInt)

	for i, obs := range []Observable{
		c.Timer(5 * time.Second),
		c.Return(ir.Int(7), ir.TypeInt),
		c.Empty(ir.TypeInt),
		c.Never(ir.TypeInt).StartWith(ir.Int(0)),
		c.Empty(ir.TypeInt).Merge(c.Never(ir.TypeInt)),
	} {
		require.NoError(t, obs.Err(), i)
		_, err := obs.Subscribe(ctx, o, ir.URI(fmt.Sprintf("rx://subscriptions/%d", i)), nil)
		require.NoError(t, err)
	}

	var got []string
	for _, op := range rec.Operations() {
		got = append(got, ir.Format(operation.Expression(op)))
	}
	assert.Equal(t, []string{
		"<rx://builtin/subscribe>(<rx://observables/timer>(5000000000), <rx://observers/o>)",
		"<rx://builtin/subscribe>(<rx://observables/return>(7), <rx://observers/o>)",
		"<rx://builtin/subscribe>(<rx://observables/empty>(), <rx://observers/o>)",
		"<rx://builtin/subscribe>(<rx://operators/startWith>(<rx://observables/never>(), 0), <rx://observers/o>)",
		"<rx://builtin/subscribe>(<rx://operators/merge>(<rx://observables/empty>(), <rx://observables/never>()), <rx://observers/o>)",
	}, got)
}

func TestSubscribeNew_UsesGenerator(t *testing.T) {
	c := newContext(t,
		harness.New(t, createSubscription(t, "rx://subscriptions/gen-1", subscribeTo(ticker()))),
		WithURIGenerator(engine.NewFixedGenerator("rx://subscriptions/gen-1")))

	sub, err := c.GetObservable(tickerURI, ir.TypeInt).SubscribeNew(context.Background(), c.GetObserver(observerURI, ir.TypeInt), nil)
	require.NoError(t, err)
	assert.Equal(t, ir.URI("rx://subscriptions/gen-1"), sub.URI())
}

func TestCompositionErrorsAreSticky(t *testing.T) {
	rec := harness.NewRecorder()
	ctx := context.Background()

	// An empty registry binds nothing, so the first operator fails.
	c := NewContext(rec, nil)
	q := c.GetObservable(tickerURI, ir.TypeInt).Where(gt(1))
	require.Error(t, q.Err())
	assert.True(t, IsCompositionError(q.Err()))
	assert.True(t, errors.Is(q.Err(), registry.ErrNotFound))

	later := q.Select(gt(2)).Take(ir.IntConst(1))
	assert.Same(t, q.Err(), later.Err())

	_, err := later.Subscribe(ctx, c.GetObserver(observerURI, ir.TypeInt), "rx://subscriptions/s", nil)
	assert.Same(t, q.Err(), err)

	c = newContext(t, rec)
	typed := c.GetObservable(tickerURI, ir.TypeInt).Take(ir.Const(ir.String("3"), ir.TypeString))
	assert.True(t, IsCompositionError(typed.Err()))

	custom := ir.Method(ir.NameObservable, "Buffer", ir.ObservableOf(ir.TypeInt), intObservable, ir.TypeInt)
	assert.True(t, IsCompositionError(c.GetObservable(tickerURI, ir.TypeInt).Apply(custom, ir.IntConst(2)).Err()))

	notObservable := ir.Method(ir.NameObservable, "Sum", ir.TypeInt, intObservable)
	assert.True(t, IsCompositionError(c.GetObservable(tickerURI, ir.TypeInt).Apply(notObservable).Err()))

	assert.Empty(t, rec.Operations())
}

func TestDefinitions(t *testing.T) {
	n := ir.Param("n", ir.TypeInt)
	defObservable := ir.LambdaOf(
		invoke("rx://operators/where", intObservable, ticker(), greaterThan("x", n)), n)
	subFactoryParam := ir.Param("o", intObserver)
	defSubFactory := ir.LambdaOf(
		invoke("rx://builtin/subscribe", ir.SubscriptionType, ticker(), subFactoryParam), subFactoryParam)
	subjectFactory := ir.Free("rx://streamFactories/subject", ir.StreamFactoryOf(ir.TypeInt))

	def := func(kind operation.Kind, id ir.URI, e ir.Expr, state ir.Value) operation.Operation {
		op, err := operation.New(kind, id, e, state)
		require.NoError(t, err)
		return op
	}
	c := newContext(t, harness.New(t,
		def(operation.KindDefineObservable, "rx://observables/big", defObservable, ir.Object{"owner": ir.String("ops")}),
		def(operation.KindDefineObserver, "rx://observers/alias", observer(), nil),
		def(operation.KindDefineStreamFactory, "rx://streamFactories/alias", subjectFactory, nil),
		def(operation.KindDefineSubscriptionFactory, "rx://subscriptionFactories/tickerTo", defSubFactory, nil),
		operation.UndefineObservable{Reference: operation.Reference{ID: "rx://observables/big"}},
		operation.UndefineObserver{Reference: operation.Reference{ID: "rx://observers/alias"}},
		operation.UndefineStreamFactory{Reference: operation.Reference{ID: "rx://streamFactories/alias"}},
		operation.UndefineSubscriptionFactory{Reference: operation.Reference{ID: "rx://subscriptionFactories/tickerTo"}},
	))
	ctx := context.Background()
	src := c.GetObservable(tickerURI, ir.TypeInt)

	require.NoError(t, c.DefineObservable(ctx, "rx://observables/big",
		Func1("threshold", ir.TypeInt, func(n ir.Expr) Quoted {
			return src.Where(func(x ir.Expr) ir.Expr { return ir.MustBinary(ir.OpGreater, x, n) })
		}),
		ir.Object{"owner": ir.String("ops")}))
	require.NoError(t, c.DefineObserver(ctx, "rx://observers/alias", c.GetObserver(observerURI, ir.TypeInt), nil))
	require.NoError(t, c.DefineStreamFactory(ctx, "rx://streamFactories/alias",
		c.GetStreamFactory("rx://streamFactories/subject", ir.StreamFactoryOf(ir.TypeInt)), nil))
	require.NoError(t, c.DefineSubscriptionFactory(ctx, "rx://subscriptionFactories/tickerTo",
		Func1("target", intObserver, func(o ir.Expr) Quoted {
			return src.SubscribeExpr(Observer{proxy: proxy{ctx: c, expr: o}})
		}), nil))

	require.NoError(t, c.UndefineObservable(ctx, "rx://observables/big"))
	require.NoError(t, c.UndefineObserver(ctx, "rx://observers/alias"))
	require.NoError(t, c.UndefineStreamFactory(ctx, "rx://streamFactories/alias"))
	require.NoError(t, c.UndefineSubscriptionFactory(ctx, "rx://subscriptionFactories/tickerTo"))
}

func TestDefinitionKindMismatch(t *testing.T) {
	rec := harness.NewRecorder()
	c := newContext(t, rec)
	ctx := context.Background()

	err := c.DefineObserver(ctx, "rx://observers/x", c.GetObservable(tickerURI, ir.TypeInt), nil)
	assert.True(t, IsCompositionError(err))

	err = c.DefineObservable(ctx, "rx://observables/x", Quote(ir.IntConst(1)), nil)
	assert.True(t, IsCompositionError(err))

	assert.Empty(t, rec.Operations())
}

func TestStreamLifecycle(t *testing.T) {
	sfType := ir.StreamFactoryOf(ir.TypeInt)
	streamURI := ir.URI("rx://streams/s1")
	create := &ir.Invoke{Target: ir.Free("rx://streamFactories/subject", sfType), StaticType: ir.SubjectOf(ir.TypeInt)}
	fromStream := invoke("rx://operators/where", intObservable, ir.Free(string(streamURI), intObservable), greaterThan("x", ir.IntConst(0)))

	d, err := engine.NewDispatcher(harness.New(t,
		operation.CreateStream{Definition: operation.Definition{ID: streamURI, Expr: create}},
		createSubscription(t, "rx://subscriptions/s2", subscribeTo(fromStream)),
		operation.ObserverOnNext{ID: streamURI, Value: ir.Int(1)},
		operation.ObserverOnError{ID: streamURI, Message: "boom"},
		operation.ObserverOnCompleted{Reference: operation.Reference{ID: streamURI}},
		operation.DeleteStream{Reference: operation.Reference{ID: streamURI}},
	))
	require.NoError(t, err)
	c := newContext(t, d)
	ctx := context.Background()

	s, err := c.GetStreamFactory("rx://streamFactories/subject", sfType).Create(ctx, streamURI, nil)
	require.NoError(t, err)
	assert.Equal(t, streamURI, s.URI())

	_, err = s.Observable().Where(gt(0)).Subscribe(ctx, c.GetObserver(observerURI, ir.TypeInt), "rx://subscriptions/s2", nil)
	require.NoError(t, err)
	require.NoError(t, s.OnNext(ctx, ir.Int(1)))
	require.NoError(t, s.OnError(ctx, errors.New("boom")))
	require.NoError(t, s.OnCompleted(ctx))
	require.NoError(t, s.Dispose(ctx))
	assert.Equal(t, int64(6), d.Seq())
}

func TestStreamFactory_ArgumentChecks(t *testing.T) {
	rec := harness.NewRecorder()
	c := newContext(t, rec)
	ctx := context.Background()
	keyed := c.GetStreamFactory("rx://streamFactories/keyed", ir.StreamFactoryOf(ir.TypeInt, ir.TypeString))

	_, err := keyed.Create(ctx, "rx://streams/k", nil)
	assert.True(t, IsCompositionError(err))

	s, err := keyed.Create(ctx, "rx://streams/k", nil, ir.Const(ir.String("eu"), ir.TypeString))
	require.NoError(t, err)
	assert.Equal(t, ir.URI("rx://streams/k"), s.URI())

	require.Len(t, rec.Operations(), 1)
	assert.Equal(t, `<rx://streamFactories/keyed>("eu")`, ir.Format(operation.Expression(rec.Operations()[0])))

	assert.True(t, IsCompositionError(c.GetStreamFactory("rx://streamFactories/x", intObservable).Err()))
}

func TestSubscriptionFactory_CreateAndDispose(t *testing.T) {
	sfType := ir.SubscriptionFactoryOf(ir.TypeInt)
	created := &ir.Invoke{
		Target:     ir.Free("rx://subscriptionFactories/poll", sfType),
		Args:       []ir.Expr{ir.IntConst(3)},
		StaticType: ir.SubscriptionType,
	}
	c := newContext(t, harness.New(t,
		createSubscription(t, "rx://subscriptions/p", created),
		operation.DeleteSubscription{Reference: operation.Reference{ID: "rx://subscriptions/p"}},
		operation.DeleteSubscription{Reference: operation.Reference{ID: "rx://subscriptions/old"}},
	))
	ctx := context.Background()

	sub, err := c.GetSubscriptionFactory("rx://subscriptionFactories/poll", sfType).Create(ctx, "rx://subscriptions/p", nil, ir.IntConst(3))
	require.NoError(t, err)
	require.NoError(t, sub.Dispose(ctx))
	require.NoError(t, c.GetSubscription("rx://subscriptions/old").Dispose(ctx))
}

func TestObserverNotifications(t *testing.T) {
	c := newContext(t, harness.New(t,
		operation.ObserverOnNext{ID: observerURI, Value: ir.Int(42)},
		operation.ObserverOnError{ID: observerURI, Message: "bad input"},
		operation.ObserverOnCompleted{Reference: operation.Reference{ID: observerURI}},
	))
	ctx := context.Background()
	o := c.GetObserver(observerURI, ir.TypeInt)

	require.NoError(t, o.OnNext(ctx, ir.Int(42)))
	require.NoError(t, o.OnError(ctx, errors.New("bad input")))
	require.NoError(t, o.OnCompleted(ctx))
}

func TestMetadataThroughContext(t *testing.T) {
	rec := harness.NewRecorder()
	rec.Reply = func(operation.Operation) (ir.Value, error) { return ir.Int(2), nil }
	c := newContext(t, rec)

	n, err := c.Metadata().Subscriptions().Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ops := rec.Operations()
	require.Len(t, ops, 1)
	assert.Equal(t, operation.KindMetadataQuery, ops[0].Kind())
	assert.Equal(t, "Queryable.Count(<rx://metadata/subscriptions>)", ir.Format(operation.Expression(ops[0])))
}

// Every entry point rejects a missing required argument with an argument
// error and dispatches nothing.
func TestNullArguments(t *testing.T) {
	rec := harness.NewRecorder()
	c := newContext(t, rec)
	ctx := context.Background()
	src := c.GetObservable(tickerURI, ir.TypeInt)
	o := c.GetObserver(observerURI, ir.TypeInt)
	sf := c.GetStreamFactory("rx://streamFactories/subject", ir.StreamFactoryOf(ir.TypeInt))
	subf := c.GetSubscriptionFactory("rx://subscriptionFactories/poll", ir.SubscriptionFactoryOf())

	calls := map[string]func() error{
		"GetObservable uri":        func() error { return c.GetObservable("", ir.TypeInt).Err() },
		"GetObservable type":       func() error { return c.GetObservable(tickerURI, ir.Type{}).Err() },
		"GetObservableFactory":     func() error { return c.GetObservableFactory("", rangeType).Err() },
		"GetObserver uri":          func() error { return c.GetObserver("", ir.TypeInt).Err() },
		"GetObserverFactory":       func() error { return c.GetObserverFactory("", ir.Type{}).Err() },
		"GetStreamFactory":         func() error { return c.GetStreamFactory("", ir.StreamFactoryOf(ir.TypeInt)).Err() },
		"GetSubscriptionFactory":   func() error { return c.GetSubscriptionFactory("", ir.SubscriptionFactoryOf()).Err() },
		"GetStream":                func() error { return c.GetStream("", ir.TypeInt).Err() },
		"Where":                    func() error { return src.Where(nil).Err() },
		"Select":                   func() error { return src.Select(nil).Err() },
		"SelectMany":               func() error { return src.SelectMany(nil).Err() },
		"Take":                     func() error { return src.Take(nil).Err() },
		"Merge":                    func() error { return src.Merge(Observable{}).Err() },
		"Return type":              func() error { return c.Return(ir.Int(1), ir.Type{}).Err() },
		"Subscribe id":             func() error { _, err := src.Subscribe(ctx, o, "", nil); return err },
		"Subscribe observer":       func() error { _, err := src.Subscribe(ctx, Observer{}, "rx://subscriptions/s", nil); return err },
		"Subscribe observable":     func() error { _, err := Observable{}.Subscribe(ctx, o, "rx://subscriptions/s", nil); return err },
		"SubscribeNew observable":  func() error { _, err := Observable{}.SubscribeNew(ctx, o, nil); return err },
		"DefineObservable id":      func() error { return c.DefineObservable(ctx, "", src, nil) },
		"DefineObservable expr":    func() error { return c.DefineObservable(ctx, "rx://observables/x", nil, nil) },
		"DefineObserver expr":      func() error { return c.DefineObserver(ctx, "rx://observers/x", Observer{}, nil) },
		"DefineStreamFactory id":   func() error { return c.DefineStreamFactory(ctx, "", sf, nil) },
		"DefineSubscriptionFactory": func() error {
			return c.DefineSubscriptionFactory(ctx, "rx://subscriptionFactories/x", Quote(nil), nil)
		},
		"UndefineObservable":          func() error { return c.UndefineObservable(ctx, "") },
		"UndefineObserver":            func() error { return c.UndefineObserver(ctx, "") },
		"UndefineStreamFactory":       func() error { return c.UndefineStreamFactory(ctx, "") },
		"UndefineSubscriptionFactory": func() error { return c.UndefineSubscriptionFactory(ctx, "") },
		"StreamFactory Create id":     func() error { _, err := sf.Create(ctx, "", nil); return err },
		"StreamFactory Create zero":   func() error { _, err := StreamFactory{}.Create(ctx, "rx://streams/s", nil); return err },
		"SubscriptionFactory Create":  func() error { _, err := subf.Create(ctx, "", nil); return err },
		"OnNext":                      func() error { return Observer{}.OnNext(ctx, ir.Int(1)) },
		"OnError":                     func() error { return c.GetObserver("", ir.TypeInt).OnError(ctx, errors.New("x")) },
		"OnCompleted":                 func() error { return Observer{}.OnCompleted(ctx) },
		"Stream OnNext":               func() error { return Stream{}.OnNext(ctx, ir.Int(1)) },
		"Stream Dispose":              func() error { return Stream{}.Dispose(ctx) },
		"Subscription Dispose":        func() error { return Subscription{}.Dispose(ctx) },
		"Metadata Execute":            func() error { _, err := c.Metadata().Execute(ctx, nil); return err },
		"Metadata CreateQuery":        func() error { _, err := c.Metadata().CreateQuery(nil); return err },
		"Func1 body":                  func() error { return Func1("x", ir.TypeInt, nil).Err() },
		"ObservableFunc body":         func() error { return c.ObservableFunc("x", ir.TypeInt, nil).Err() },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			require.Error(t, err)
			assert.True(t, operation.IsArgumentError(err), "%T: %v", err, err)
		})
	}
	assert.Empty(t, rec.Operations())
}
