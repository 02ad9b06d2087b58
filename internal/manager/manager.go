// Package manager drives chunk downloads and deletions. Callers get a
// go/no-go decision from the catalogue's guarded transition and a completion
// bridge; the transfer itself runs on a worker goroutine and never blocks the
// caller.
package manager

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blockarch/chunkd/internal/bridge"
	"github.com/blockarch/chunkd/internal/catalogue"
	"github.com/blockarch/chunkd/internal/chunk"
	"github.com/blockarch/chunkd/internal/journal"
	"github.com/blockarch/chunkd/internal/logger"
	"github.com/blockarch/chunkd/internal/transport"
)

const (
	defaultMaxConcurrentTransfers = 4
	defaultTransferTimeout        = 5 * time.Minute
)

// Config carries the manager's concurrency limits.
type Config struct {
	MaxConcurrentTransfers int
	TransferTimeout        time.Duration
}

// Manager owns the catalogue, the transport collaborator and the task
// journal.
type Manager struct {
	cfg  Config
	cat  *catalogue.Catalogue
	tr   transport.Transport
	jrnl *journal.Journal

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	sem    chan struct{}
}

// New creates a manager. jrnl may be nil, in which case task outcomes are not
// journalled.
func New(cfg Config, cat *catalogue.Catalogue, tr transport.Transport, jrnl *journal.Journal) *Manager {
	if cfg.MaxConcurrentTransfers <= 0 {
		cfg.MaxConcurrentTransfers = defaultMaxConcurrentTransfers
	}
	if cfg.TransferTimeout <= 0 {
		cfg.TransferTimeout = defaultTransferTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		cfg:    cfg,
		cat:    cat,
		tr:     tr,
		jrnl:   jrnl,
		ctx:    ctx,
		cancel: cancel,
		sem:    make(chan struct{}, cfg.MaxConcurrentTransfers),
	}
}

// runTask runs a function in a goroutine tracked by the WaitGroup.
func (m *Manager) runTask(task func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		task()
	}()
}

// DownloadChunk schedules a background download of c. It returns (nil, false,
// nil) when the chunk is already registered in any state, the guard rejection
// being a normal outcome. On acceptance the returned bridge completes when
// the transfer finishes, with the transfer's outcome.
func (m *Manager) DownloadChunk(c chunk.DataChunk) (*bridge.Bridge, bool, error) {
	ok, err := m.cat.StartDownload(c)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		logger.Debugf("chunk %s already registered, not downloading", c.ID)
		return nil, false, nil
	}

	br := bridge.New()
	jobID := uuid.New()

	logger.Infof("job %s: downloading chunk %s [%d, %d)", jobID, c.ID, c.BlockRange.Start, c.BlockRange.End)

	m.runTask(func() {
		m.runDownload(jobID, c, br)
	})

	return br, true, nil
}

func (m *Manager) runDownload(jobID uuid.UUID, c chunk.DataChunk, br *bridge.Bridge) {
	select {
	case m.sem <- struct{}{}:
	case <-m.ctx.Done():
		m.finishDownload(jobID, c, br, m.ctx.Err())
		return
	}
	defer func() { <-m.sem }()

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.TransferTimeout)
	defer cancel()

	m.finishDownload(jobID, c, br, m.tr.Fetch(ctx, c))
}

func (m *Manager) finishDownload(jobID uuid.UUID, c chunk.DataChunk, br *bridge.Bridge, fetchErr error) {
	if fetchErr != nil {
		logger.Errorf("job %s: download of chunk %s failed: %v", jobID, c.ID, fetchErr)

		// clear the Downloading entry so the chunk can be retried later
		if err := m.cat.UpdateChunk(c, chunk.Deleted); err != nil {
			logger.Errorf("job %s: failed to clear chunk %s: %v", jobID, c.ID, err)
		}

		m.record(jobID, c.ID, journal.ActionDownload, fetchErr)
		br.Complete(fetchErr)
		return
	}

	err := m.cat.UpdateChunk(c, chunk.Ready)
	if err != nil {
		logger.Errorf("job %s: failed to mark chunk %s ready: %v", jobID, c.ID, err)
	} else {
		logger.Infof("job %s: chunk %s ready", jobID, c.ID)
	}

	m.record(jobID, c.ID, journal.ActionDownload, err)
	br.Complete(err)
}

// DeleteChunk schedules a background deletion of the chunk with the given id.
// It returns (nil, false, nil) when the chunk is absent or not Ready.
func (m *Manager) DeleteChunk(id chunk.ChunkID) (*bridge.Bridge, bool, error) {
	c, found := m.cat.GetChunkByID(id)
	if !found {
		logger.Debugf("chunk %s not registered, nothing to delete", id)
		return nil, false, nil
	}

	ok, err := m.cat.StartDeletion(id)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		logger.Debugf("chunk %s not ready, not deleting", id)
		return nil, false, nil
	}

	br := bridge.New()
	jobID := uuid.New()

	logger.Infof("job %s: deleting chunk %s", jobID, id)

	m.runTask(func() {
		m.runDelete(jobID, c, br)
	})

	return br, true, nil
}

func (m *Manager) runDelete(jobID uuid.UUID, c chunk.DataChunk, br *bridge.Bridge) {
	select {
	case m.sem <- struct{}{}:
	case <-m.ctx.Done():
		m.finishDelete(jobID, c, br, m.ctx.Err())
		return
	}
	defer func() { <-m.sem }()

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.TransferTimeout)
	defer cancel()

	m.finishDelete(jobID, c, br, m.tr.Remove(ctx, c.ID))
}

func (m *Manager) finishDelete(jobID uuid.UUID, c chunk.DataChunk, br *bridge.Bridge, removeErr error) {
	if removeErr != nil {
		logger.Errorf("job %s: deletion of chunk %s failed: %v", jobID, c.ID, removeErr)

		// the payload is still on disk, so the chunk goes back to serving
		if err := m.cat.UpdateChunk(c, chunk.Ready); err != nil {
			logger.Errorf("job %s: failed to restore chunk %s: %v", jobID, c.ID, err)
		}

		m.record(jobID, c.ID, journal.ActionDelete, removeErr)
		br.Complete(removeErr)
		return
	}

	err := m.cat.UpdateChunk(c, chunk.Deleted)
	if err != nil {
		logger.Errorf("job %s: failed to mark chunk %s deleted: %v", jobID, c.ID, err)
	} else {
		logger.Infof("job %s: chunk %s deleted", jobID, c.ID)
	}

	m.record(jobID, c.ID, journal.ActionDelete, err)
	br.Complete(err)
}

// ListChunks returns the ids of all chunks currently servable.
func (m *Manager) ListChunks() []chunk.ChunkID {
	return m.cat.ListReady()
}

// FindChunk returns the Ready chunk of the dataset responsible for
// blockNumber.
func (m *Manager) FindChunk(datasetID chunk.DatasetID, blockNumber uint64) (chunk.DataChunk, bool) {
	return m.cat.FindChunk(datasetID, blockNumber)
}

// GetChunk returns the descriptor for id in any lifecycle state.
func (m *Manager) GetChunk(id chunk.ChunkID) (chunk.DataChunk, bool) {
	return m.cat.GetChunkByID(id)
}

// Shutdown cancels in-flight transfers, waits for workers to drain and
// closes the journal. It returns the context error if ctx expires before the
// workers finish.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()

	waitChan := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(waitChan)
	}()

	var err error
	select {
	case <-waitChan:
	case <-ctx.Done():
		logger.Warnf("shutdown timed out, some tasks may not have completed")
		err = ctx.Err()
	}

	if m.jrnl != nil {
		if cerr := m.jrnl.Close(); cerr != nil {
			logger.Errorf("failed to close journal: %v", cerr)
		}
	}

	return err
}

func (m *Manager) record(jobID uuid.UUID, id chunk.ChunkID, action journal.Action, taskErr error) {
	if m.jrnl == nil {
		return
	}

	e := journal.Entry{
		JobID:      jobID,
		ChunkID:    id.String(),
		Action:     action,
		OK:         taskErr == nil,
		FinishedAt: time.Now().UTC(),
	}
	if taskErr != nil {
		e.Error = taskErr.Error()
	}

	if err := m.jrnl.Record(e); err != nil {
		logger.Warnf("job %s: failed to journal outcome: %v", jobID, err)
	}
}
