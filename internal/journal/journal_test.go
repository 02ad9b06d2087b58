package journal_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/blockarch/chunkd/internal/journal"
)

func TestOpen_DirectoryPathFails(t *testing.T) {
	if _, err := journal.Open(t.TempDir()); err == nil {
		t.Errorf("expected error opening journal on a directory path, got nil")
	}
}

func TestRecordAndList(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	entries, err := j.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("fresh journal has %d entries, want 0", len(entries))
	}

	e := journal.Entry{
		JobID:      uuid.New(),
		ChunkID:    "93a1ca5e",
		Action:     journal.ActionDownload,
		OK:         true,
		FinishedAt: time.Now().UTC(),
	}
	if err := j.Record(e); err != nil {
		t.Fatalf("Record: %v", err)
	}

	failed := journal.Entry{
		JobID:      uuid.New(),
		ChunkID:    "34f95729",
		Action:     journal.ActionDelete,
		OK:         false,
		Error:      "remove failed",
		FinishedAt: time.Now().UTC(),
	}
	if err := j.Record(failed); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err = j.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(entries))
	}

	byJob := make(map[uuid.UUID]journal.Entry, len(entries))
	for _, got := range entries {
		byJob[got.JobID] = got
	}
	if got := byJob[failed.JobID]; got.Error != "remove failed" || got.OK {
		t.Errorf("failed entry round-trip mismatch: %+v", got)
	}
}

func TestRecord_NilJobID(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	if err := j.Record(journal.Entry{}); err == nil {
		t.Errorf("expected error recording entry with nil job id, got nil")
	}
}

func TestCloseBehavior(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := j.Record(journal.Entry{JobID: uuid.New()}); err == nil {
		t.Errorf("expected error recording after Close, got nil")
	}
	if _, err := j.List(); err == nil {
		t.Errorf("expected error listing after Close, got nil")
	}
}
