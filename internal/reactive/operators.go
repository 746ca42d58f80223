package reactive

import (
	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/metadata"
	"github.com/roach88/rxq/internal/registry"
)

var (
	typeT = ir.TypeParam("T")
	typeR = ir.TypeParam("R")

	observableOfT = ir.ObservableOf(typeT)
	observableOfR = ir.ObservableOf(typeR)
)

// Built-in operator members. Each is bound to a remote operator by
// RegisterOperators.
var (
	MemberWhere                = ir.Method(ir.NameObservable, "Where", observableOfT, observableOfT, ir.FuncOf(ir.TypeBool, typeT))
	MemberSelect               = ir.Method(ir.NameObservable, "Select", observableOfR, observableOfT, ir.FuncOf(typeR, typeT))
	MemberSelectMany           = ir.Method(ir.NameObservable, "SelectMany", observableOfR, observableOfT, ir.FuncOf(observableOfR, typeT))
	MemberTake                 = ir.Method(ir.NameObservable, "Take", observableOfT, observableOfT, ir.TypeInt)
	MemberSkip                 = ir.Method(ir.NameObservable, "Skip", observableOfT, observableOfT, ir.TypeInt)
	MemberDistinctUntilChanged = ir.Method(ir.NameObservable, "DistinctUntilChanged", observableOfT, observableOfT)
	MemberMerge                = ir.Method(ir.NameObservable, "Merge", observableOfT, observableOfT, observableOfT)
	MemberStartWith            = ir.Method(ir.NameObservable, "StartWith", observableOfT, observableOfT, typeT)
	MemberTimer                = ir.Method(ir.NameObservable, "Timer", ir.ObservableOf(ir.TypeInt), ir.TypeDuration)
	MemberEmpty                = ir.Method(ir.NameObservable, "Empty", observableOfT)
	MemberNever                = ir.Method(ir.NameObservable, "Never", observableOfT)
	MemberReturn               = ir.Method(ir.NameObservable, "Return", observableOfT, typeT)
	MemberSubscribe            = ir.Method(ir.NameObservable, "Subscribe", ir.SubscriptionType, observableOfT, ir.ObserverOf(typeT))
)

// Operator pairs a member with the remote operator it stands for.
type Operator struct {
	Member ir.Member
	URI    ir.URI
}

// Operators is the built-in binding table.
var Operators = []Operator{
	{MemberWhere, "rx://operators/where"},
	{MemberSelect, "rx://operators/select"},
	{MemberSelectMany, "rx://operators/selectMany"},
	{MemberTake, "rx://operators/take"},
	{MemberSkip, "rx://operators/skip"},
	{MemberDistinctUntilChanged, "rx://operators/distinctUntilChanged"},
	{MemberMerge, "rx://operators/merge"},
	{MemberStartWith, "rx://operators/startWith"},
	{MemberTimer, "rx://observables/timer"},
	{MemberEmpty, "rx://observables/empty"},
	{MemberNever, "rx://observables/never"},
	{MemberReturn, "rx://observables/return"},
	{MemberSubscribe, "rx://builtin/subscribe"},
}

// RegisterOperators binds the built-in operators in reg.
func RegisterOperators(reg *registry.Registry) error {
	for _, op := range Operators {
		if err := reg.Register(op.Member, op.URI, registry.SignatureType(op.Member)); err != nil {
			return err
		}
	}
	return nil
}

// RegisterBuiltins binds the built-in operators and the metadata roots.
func RegisterBuiltins(reg *registry.Registry) error {
	if err := RegisterOperators(reg); err != nil {
		return err
	}
	return metadata.RegisterRoots(reg)
}
