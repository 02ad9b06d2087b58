package transport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blockarch/chunkd/internal/chunk"
	"github.com/blockarch/chunkd/internal/logger"
)

// ErrUnknownChunk is returned by Remove for an id the transport never fetched
// or indexed.
var ErrUnknownChunk = errors.New("unknown chunk")

// Local simulates a remote transfer layer against the local filesystem.
// Payloads live under dataDir in the layout
// dataset_id=<hex>/block_range=<start>_<end>/<file>. Remove is keyed by chunk
// id, so Local keeps an id-to-directory index fed by Fetch and by the chunks
// supplied at construction.
type Local struct {
	dataDir string
	delay   time.Duration

	mu    sync.Mutex
	paths map[chunk.ChunkID]string
}

// NewLocal creates a local transport rooted at dataDir. known seeds the
// removal index, typically with the chunks the bootstrap scanner discovered.
// delay is added to every operation to stand in for network latency.
func NewLocal(dataDir string, delay time.Duration, known []chunk.DataChunk) *Local {
	l := &Local{
		dataDir: dataDir,
		delay:   delay,
		paths:   make(map[chunk.ChunkID]string, len(known)),
	}

	for _, c := range known {
		l.paths[c.ID] = ChunkDir(dataDir, c)
	}

	return l
}

// ChunkDir returns the payload directory for c under dataDir.
func ChunkDir(dataDir string, c chunk.DataChunk) string {
	return filepath.Join(
		dataDir,
		"dataset_id="+c.DatasetID.String(),
		"block_range="+c.BlockRange.String(),
	)
}

// Fetch writes one payload file per entry in c.Files into the chunk's
// directory. The transfer is simulated; the real payload bytes are not moved.
func (l *Local) Fetch(ctx context.Context, c chunk.DataChunk) error {
	if err := l.sleep(ctx); err != nil {
		return err
	}

	dir := ChunkDir(l.dataDir, c)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create chunk directory: %w", err)
	}

	for name, location := range c.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(location), 0o644); err != nil {
			return fmt.Errorf("write chunk file %s: %w", name, err)
		}
	}

	l.mu.Lock()
	l.paths[c.ID] = dir
	l.mu.Unlock()

	logger.Debugf("fetched chunk %s into %s", c.ID, dir)

	return nil
}

// Remove deletes the payload directory of the chunk with the given id.
func (l *Local) Remove(ctx context.Context, id chunk.ChunkID) error {
	if err := l.sleep(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	dir, ok := l.paths[id]
	l.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChunk, id)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove chunk directory: %w", err)
	}

	l.mu.Lock()
	delete(l.paths, id)
	l.mu.Unlock()

	logger.Debugf("removed chunk %s from %s", id, dir)

	return nil
}

func (l *Local) sleep(ctx context.Context) error {
	if l.delay <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(l.delay)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
