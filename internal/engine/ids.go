package engine

import (
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/rxq/internal/ir"
)

// URIGenerator mints identifiers for resources the client creates without
// naming them (anonymous subscriptions and streams).
// Implemented by UUIDGenerator (production) and FixedGenerator (tests).
type URIGenerator interface {
	Generate() ir.URI
}

// UUIDGenerator mints Prefix + UUIDv7. UUIDv7 embeds a timestamp, so
// generated URIs sort by creation time.
//
// Thread-safety: UUIDGenerator is stateless and safe for concurrent use.
type UUIDGenerator struct {
	Prefix string
}

// Generate returns a new URI such as
// "rx://subscriptions/0190b1e2-7c4a-7d1e-9a55-3f6c2d1b0a99".
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDGenerator) Generate() ir.URI {
	return ir.URI(g.Prefix + uuid.Must(uuid.NewV7()).String())
}

// FixedGenerator returns predetermined URIs in order.
//
// Thread-safety: FixedGenerator is safe for concurrent use.
type FixedGenerator struct {
	mu   sync.Mutex
	uris []ir.URI
	idx  int
}

// NewFixedGenerator creates a generator that returns uris in order.
func NewFixedGenerator(uris ...ir.URI) *FixedGenerator {
	return &FixedGenerator{uris: uris}
}

// Generate returns the next predetermined URI.
//
// Panics when all URIs have been consumed: the test created more resources
// than it declared.
func (g *FixedGenerator) Generate() ir.URI {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.uris) {
		panic("FixedGenerator: all URIs exhausted")
	}
	u := g.uris[g.idx]
	g.idx++
	return u
}
