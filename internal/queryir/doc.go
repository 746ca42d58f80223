// Package queryir is the relational plan that metadata queries are lowered
// to before a backend executes them.
//
// A MetadataQuery carries an arbitrary expression tree rooted at one or two
// metadata collections. Backends do not walk that tree. Plan recognizes the
// subset a relational store can answer and lowers it into a small sealed
// plan:
//
//	[metadata expression] -> Plan -> [queryir] -> querysql -> SQL
//
// # Supported shapes
//
//   - a bare root: every definition in the collection
//   - Where with comparisons on the Uri field, combined with &&, || and !
//   - Select of a single field, or of the element itself
//   - Take with a constant count
//   - Join of two filtered roots on equal key fields
//   - Count, Any and First over any of the above
//
// Everything else, including calls the client could not resolve, is
// rejected with an UnsupportedExpressionError so the engine can fall back
// or fail loudly. Nothing is evaluated in memory.
//
// # Sealed interfaces
//
// Query and Predicate use the marker method pattern. Only types in this
// package implement them, which keeps backend type switches exhaustive:
//
//	switch q := query.(type) {
//	case Select:
//	case Join:
//	case Aggregate:
//	}
package queryir
