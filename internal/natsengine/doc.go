// Package natsengine carries operations over NATS.
//
// The client side, Engine, publishes each operation's canonical JSON to
// "<prefix>.<Kind>". Metadata queries use request/reply on
// "<prefix>.MetadataQuery" and block until the reply or the timeout.
//
// The server side, Handler, decodes those messages and dispatches them to
// a local engine such as the SQLite journal. Serve subscribes a Handler to
// "<prefix>.>".
//
// Every message carries these headers:
//
//	Nats-Msg-Id     fresh UUID, used by JetStream for de-duplication
//	Rxq-Op-Id       content hash of the operation (operation.ID)
//	Rxq-Seq         dispatch sequence number, when the context has one
//	Rxq-Ir-Version  IR version the body was encoded with
//
// Replies carry the result as canonical JSON, or an Rxq-Error header.
package natsengine
