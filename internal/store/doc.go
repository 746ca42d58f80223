// Package store is the SQLite journal engine.
//
// A Store is an engine.Engine. Every operation it accepts is appended to
// an operation journal and applied to a resource catalog in one
// transaction:
//   - Operations: the journal, one row per dispatch sequence number
//   - Resources: live definitions and entities, one row per URI
//
// MetadataQuery operations are not journaled. They are lowered with
// queryir.Plan, compiled by querysql and answered from the resources table.
//
// # Critical Patterns
//
// Sequence-level idempotency:
//   - operations.seq is the primary key
//   - redelivering the same operation at the same seq is a no-op
//   - a different operation at a journaled seq is ErrConflict
//
// Logical time:
//   - all ordering uses seq, never timestamps
//   - replays reproduce the journal exactly
//
// Deterministic query results:
//   - every row query ends in ORDER BY uri COLLATE BINARY
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: resources reference the operation that created them
//
// Journaled bodies and op_id values are computed with operation.Marshal and
// operation.ID: canonical JSON and domain-separated SHA-256.
package store
