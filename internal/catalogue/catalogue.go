// Package catalogue combines the in-memory registry with snapshot
// persistence. Every mutating operation writes the whole registry to the
// snapshot file synchronously before returning, so the on-disk table never
// lags a completed transition.
package catalogue

import (
	"fmt"
	"sync"

	"github.com/blockarch/chunkd/internal/chunk"
	"github.com/blockarch/chunkd/internal/logger"
	"github.com/blockarch/chunkd/internal/registry"
	"github.com/blockarch/chunkd/internal/snapshot"
)

// Catalogue is the chunk lifecycle façade handed to workers and readers.
type Catalogue struct {
	// mu serializes transition+persist pairs so concurrent mutators cannot
	// interleave a stale snapshot write over a fresher one.
	mu   sync.Mutex
	reg  *registry.Registry
	path string
}

// New builds a catalogue from two sources of truth: the snapshot table at
// snapshotPath and the chunks the bootstrap scanner found on disk. The
// snapshot takes precedence: a locally discovered chunk is registered Ready
// only when the snapshot has no row for its id.
//
// Rows caught mid-transition by a crash are reconciled here so no chunk ever
// starts out wedged in a transient state. A Downloading row is dropped, its
// payload is incomplete and the chunk can be fetched again; its on-disk
// leftovers are excluded from the local merge for the same reason. A Deleting
// row reverts to Ready, the payload was complete before the removal started
// and the deletion can simply be requested again.
func New(snapshotPath string, localChunks []chunk.DataChunk) (*Catalogue, error) {
	entries, err := snapshot.Load(snapshotPath)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	reg := registry.New()
	dropped := make(map[chunk.ChunkID]struct{})

	for _, e := range entries {
		switch e.Status {
		case chunk.Downloading:
			logger.Warnf("dropping interrupted download of chunk %s", e.Chunk.ID)
			dropped[e.Chunk.ID] = struct{}{}
		case chunk.Deleting:
			logger.Warnf("restoring chunk %s from interrupted deletion", e.Chunk.ID)
			reg.Update(e.Chunk, chunk.Ready)
		default:
			reg.Update(e.Chunk, e.Status)
		}
	}

	for _, c := range localChunks {
		if _, ok := dropped[c.ID]; ok {
			continue
		}
		if _, ok := reg.GetByID(c.ID); ok {
			continue
		}
		reg.Update(c, chunk.Ready)
	}

	c := &Catalogue{reg: reg, path: snapshotPath}

	if err := c.persist(); err != nil {
		return nil, err
	}

	return c, nil
}

// StartDownload atomically registers dc as Downloading and persists the
// registry. A guard rejection returns (false, nil); a persistence failure
// rolls the transition back so memory and disk stay in sync.
func (c *Catalogue) StartDownload(dc chunk.DataChunk) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.reg.StartDownload(dc) {
		return false, nil
	}

	if err := c.persist(); err != nil {
		c.reg.Update(dc, chunk.Deleted)
		return false, err
	}

	return true, nil
}

// StartDeletion atomically moves the chunk to Deleting and persists the
// registry. A guard rejection returns (false, nil).
func (c *Catalogue) StartDeletion(id chunk.ChunkID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dc, ok := c.reg.GetByID(id)
	if !ok {
		return false, nil
	}

	if !c.reg.StartDeletion(id) {
		return false, nil
	}

	if err := c.persist(); err != nil {
		c.reg.Update(dc, chunk.Ready)
		return false, err
	}

	return true, nil
}

// UpdateChunk sets the status of dc directly and persists the registry. It is
// the idempotent completion path used by transfer workers; Deleted removes
// the entry.
func (c *Catalogue) UpdateChunk(dc chunk.DataChunk, status chunk.Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reg.Update(dc, status)

	return c.persist()
}

// GetChunkByID returns the descriptor for id in any lifecycle state.
func (c *Catalogue) GetChunkByID(id chunk.ChunkID) (chunk.DataChunk, bool) {
	return c.reg.GetByID(id)
}

// StatusOf returns the lifecycle status of id, or false if absent.
func (c *Catalogue) StatusOf(id chunk.ChunkID) (chunk.Status, bool) {
	return c.reg.StatusOf(id)
}

// FindChunk returns the Ready chunk of the dataset that covers blockNumber.
func (c *Catalogue) FindChunk(datasetID chunk.DatasetID, blockNumber uint64) (chunk.DataChunk, bool) {
	return c.reg.FindByBlock(datasetID, blockNumber)
}

// ListReady returns the ids of all chunks currently servable.
func (c *Catalogue) ListReady() []chunk.ChunkID {
	return c.reg.ReadyIDs()
}

// Len returns the number of live registry entries.
func (c *Catalogue) Len() int {
	return c.reg.Len()
}

func (c *Catalogue) persist() error {
	if err := snapshot.Save(c.path, c.reg.Entries()); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}
