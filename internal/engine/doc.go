// Package engine is the boundary between the compiler and the engines that
// execute operations.
//
// An Engine receives one operation per call and either accepts it or fails
// as a unit. The Dispatcher wraps an Engine and adds what every engine
// needs from the compiler side:
//
//   - a logical sequence number per operation, in call order (Clock)
//   - structured logging of every dispatch
//   - dispatch metrics
//   - IR version negotiation with engines that declare a constraint
//
// Dispatch is synchronous. The compiler promises to dispatch operations in
// the order the client made the corresponding calls on one goroutine;
// engines may impose their own concurrency policy after that.
//
// Engines that need the sequence number read it with SeqFrom.
package engine
