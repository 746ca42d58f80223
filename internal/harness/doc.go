// Package harness provides test tooling for code that compiles quoted
// queries into operations.
//
// The central piece is SequentialAssertionProvider, an engine that holds a
// FIFO queue of expected operations. Each dispatched operation is compared
// structurally with the head of the queue; the first divergence fails the
// test with the operation index, the path of the difference and a diff of
// both encoded operations. Dispatching past the end of the queue fails with
// "too many", and operations left in the queue when the test ends fail with
// "too few".
//
// Expected sequences can be written in Go or loaded from YAML scenarios:
//
//	name: ticker_subscription
//	description: "Subscribing to the ticker creates one subscription"
//	operations:
//	  - kind: CreateSubscription
//	    id: rx://subscriptions/s1
//	    expr:
//	      node: free
//	      name: rx://observables/ticker
//	      type: Observable<int>
//	assertions:
//	  - type: count
//	    kind: CreateSubscription
//	    count: 1
//
// Operations use the canonical encoding of the operation package. The
// assertion types are:
//
//   - contains: an operation of kind (and id, when given) was dispatched
//   - order: the kinds appear in this relative order
//   - count: an operation of kind was dispatched exactly count times
//
// Recorder and AssertGolden cover the snapshot style: record every
// dispatched operation and compare the canonical encoding, one operation
// per line, against testdata/golden/<name>.golden.
package harness
