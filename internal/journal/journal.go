// Package journal keeps a durable record of finished transfer tasks for
// crash diagnostics. It is an append-only log keyed by job id, separate from
// the registry snapshot that holds the authoritative chunk state.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const (
	tasksBucket    = "tasks"
	metadataBucket = "metadata"
	schemaVersion  = 1
)

// Action names the kind of work a task performed.
type Action string

const (
	ActionDownload Action = "download"
	ActionDelete   Action = "delete"
)

// Entry records the outcome of one transfer task.
type Entry struct {
	JobID      uuid.UUID `json:"job_id"`
	ChunkID    string    `json:"chunk_id"`
	Action     Action    `json:"action"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// Journal is a bbolt-backed task log.
type Journal struct {
	db *bbolt.DB
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	options := &bbolt.Options{
		Timeout: 1 * time.Second,
	}

	db, err := bbolt.Open(path, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	j := &Journal{db: db}

	if err := j.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return j, nil
}

func (j *Journal) initialize() error {
	return j.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(tasksBucket)); err != nil {
			return fmt.Errorf("failed to create tasks bucket: %w", err)
		}

		meta, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return fmt.Errorf("failed to create metadata bucket: %w", err)
		}

		version := []byte(fmt.Sprintf("%d", schemaVersion))
		if err := meta.Put([]byte("schema_version"), version); err != nil {
			return fmt.Errorf("failed to store schema version: %w", err)
		}

		return nil
	})
}

// Record persists a task outcome.
func (j *Journal) Record(e Entry) error {
	if e.JobID == uuid.Nil {
		return errors.New("job id cannot be empty")
	}

	return j.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(tasksBucket))
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", tasksBucket)
		}

		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal journal entry: %w", err)
		}

		if err := bucket.Put([]byte(e.JobID.String()), data); err != nil {
			return fmt.Errorf("failed to save journal entry: %w", err)
		}

		return nil
	})
}

// List returns all recorded task outcomes.
func (j *Journal) List() ([]Entry, error) {
	var entries []Entry

	err := j.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(tasksBucket))
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", tasksBucket)
		}

		return bucket.ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("failed to unmarshal journal entry: %w", err)
			}

			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
