package registry

import (
	"sync"

	"github.com/blockarch/chunkd/internal/chunk"
)

// Entry pairs a chunk descriptor with its lifecycle status. Entries are owned
// exclusively by the registry; callers only ever see copies.
type Entry struct {
	Chunk  chunk.DataChunk
	Status chunk.Status
}

// Registry is the authoritative in-memory index of chunk ids to lifecycle
// state. At most one entry exists per chunk id; absence is equivalent to
// Deleted. Every guard check and the transition it protects run inside one
// critical section, so two callers can never both observe "absent" and both
// begin a download.
type Registry struct {
	mu      sync.RWMutex
	entries map[chunk.ChunkID]Entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[chunk.ChunkID]Entry),
	}
}

// StartDownload registers c as Downloading. It returns false without mutating
// if an entry already exists in any state: a chunk that is downloading, ready
// or being deleted must never be fetched again.
func (r *Registry) StartDownload(c chunk.DataChunk) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[c.ID]; ok {
		return false
	}

	r.entries[c.ID] = Entry{Chunk: c, Status: chunk.Downloading}
	return true
}

// MarkReady promotes a Downloading entry to Ready. It returns false if the
// entry is absent or in any other state.
func (r *Registry) MarkReady(id chunk.ChunkID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.Status != chunk.Downloading {
		return false
	}

	e.Status = chunk.Ready
	r.entries[id] = e
	return true
}

// StartDeletion moves a Ready entry to Deleting. It returns false without
// mutating if the entry is absent or not Ready: chunks still downloading or
// already deleting cannot be deleted again.
func (r *Registry) StartDeletion(id chunk.ChunkID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.Status != chunk.Ready {
		return false
	}

	e.Status = chunk.Deleting
	r.entries[id] = e
	return true
}

// MarkDeleted removes a Deleting entry from the map. Absence is the terminal
// Deleted state. It returns false if the entry is absent or not Deleting.
func (r *Registry) MarkDeleted(id chunk.ChunkID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.Status != chunk.Deleting {
		return false
	}

	delete(r.entries, id)
	return true
}

// Update sets the status of c directly, bypassing the transition guards. It
// is idempotent and used by worker completion paths and tests; Deleted
// removes the entry, any other status upserts it.
func (r *Registry) Update(c chunk.DataChunk, status chunk.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if status == chunk.Deleted {
		delete(r.entries, c.ID)
		return
	}

	r.entries[c.ID] = Entry{Chunk: c, Status: status}
}

// GetByID returns the chunk descriptor for id regardless of state. Callers
// that need only servable chunks must filter on status or use FindByBlock.
func (r *Registry) GetByID(id chunk.ChunkID) (chunk.DataChunk, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return chunk.DataChunk{}, false
	}

	return e.Chunk, true
}

// StatusOf returns the current status of id, or false if absent.
func (r *Registry) StatusOf(id chunk.ChunkID) (chunk.Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return "", false
	}

	return e.Status, true
}

// FindByBlock returns the Ready chunk of datasetID whose range contains
// blockNumber. Ranges within one dataset are disjoint by the contract of the
// chunk producer, so at most one entry can match.
func (r *Registry) FindByBlock(datasetID chunk.DatasetID, blockNumber uint64) (chunk.DataChunk, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.Status != chunk.Ready {
			continue
		}
		if e.Chunk.DatasetID != datasetID {
			continue
		}
		if e.Chunk.BlockRange.Contains(blockNumber) {
			return e.Chunk, true
		}
	}

	return chunk.DataChunk{}, false
}

// ReadyIDs returns the ids of all Ready chunks, snapshotted under a single
// lock acquisition. The result can be stale the moment it is returned.
func (r *Registry) ReadyIDs() []chunk.ChunkID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]chunk.ChunkID, 0, len(r.entries))
	for id, e := range r.entries {
		if e.Status == chunk.Ready {
			ids = append(ids, id)
		}
	}

	return ids
}

// Entries returns a copy of all entries, snapshotted under a single lock
// acquisition. Used by the snapshot store to persist the whole registry.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}

	return entries
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}
