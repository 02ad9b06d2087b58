// Package transport defines the collaborator that moves chunk payloads, and
// a local filesystem implementation used by the worker in simulation.
package transport

import (
	"context"

	"github.com/blockarch/chunkd/internal/chunk"
)

// Transport fetches chunk payloads to local storage and removes them. The
// registry never calls it directly; the manager drives it from worker
// goroutines. Implementations must honour ctx cancellation.
type Transport interface {
	Fetch(ctx context.Context, c chunk.DataChunk) error
	Remove(ctx context.Context, id chunk.ChunkID) error
}
