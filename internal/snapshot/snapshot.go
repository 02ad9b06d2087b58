// Package snapshot persists the chunk registry as a columnar table file.
//
// The on-disk format is one CSV row per registry entry with the columns
// id, dataset_id, block_start, block_end, files, status. Ids are hex encoded,
// range bounds are decimal, the files mapping is JSON encoded and the status
// is the enum name. Every save fully replaces the previous file.
package snapshot

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/blockarch/chunkd/internal/chunk"
	"github.com/blockarch/chunkd/internal/registry"
)

var header = []string{"id", "dataset_id", "block_start", "block_end", "files", "status"}

// ErrMalformedRow is returned when a snapshot row cannot be decoded.
var ErrMalformedRow = errors.New("malformed snapshot row")

// Save writes all entries to a new table file, syncs it and renames it over
// path, so a crash at any point leaves either the old table or the complete
// new one. A failed save removes the temporary file again.
func Save(path string, entries []registry.Entry) error {
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}

	if err := writeTable(f, entries); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}

	// the rename must not outlive the data it points at
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync snapshot: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close snapshot: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace snapshot: %w", err)
	}

	return nil
}

func writeTable(f *os.File, entries []registry.Entry) error {
	w := csv.NewWriter(f)

	if err := w.Write(header); err != nil {
		return fmt.Errorf("write snapshot header: %w", err)
	}

	for _, e := range entries {
		files, err := json.Marshal(e.Chunk.Files)
		if err != nil {
			return fmt.Errorf("encode files for chunk %s: %w", e.Chunk.ID, err)
		}

		row := []string{
			e.Chunk.ID.String(),
			e.Chunk.DatasetID.String(),
			strconv.FormatUint(e.Chunk.BlockRange.Start, 10),
			strconv.FormatUint(e.Chunk.BlockRange.End, 10),
			string(files),
			string(e.Status),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write snapshot row for chunk %s: %w", e.Chunk.ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}

	return nil
}

// Load reads all entries from the table file at path. A missing file yields
// an empty result so a first run bootstraps cleanly; anything undecodable,
// including an unrecognised status name, is an error rather than a silent
// fallback.
func Load(path string) ([]registry.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	if len(rows) == 0 {
		return nil, nil
	}

	entries := make([]registry.Entry, 0, len(rows)-1)
	for i, row := range rows[1:] {
		e, err := decodeRow(row)
		if err != nil {
			return nil, fmt.Errorf("snapshot row %d: %w", i+1, err)
		}
		entries = append(entries, e)
	}

	return entries, nil
}

func decodeRow(row []string) (registry.Entry, error) {
	id, err := chunk.ChunkIDFromHex(row[0])
	if err != nil {
		return registry.Entry{}, fmt.Errorf("%w: %w", ErrMalformedRow, err)
	}

	datasetID, err := chunk.DatasetIDFromHex(row[1])
	if err != nil {
		return registry.Entry{}, fmt.Errorf("%w: %w", ErrMalformedRow, err)
	}

	start, err := strconv.ParseUint(row[2], 10, 64)
	if err != nil {
		return registry.Entry{}, fmt.Errorf("%w: block_start: %w", ErrMalformedRow, err)
	}

	end, err := strconv.ParseUint(row[3], 10, 64)
	if err != nil {
		return registry.Entry{}, fmt.Errorf("%w: block_end: %w", ErrMalformedRow, err)
	}

	var files map[string]string
	if err := json.Unmarshal([]byte(row[4]), &files); err != nil {
		return registry.Entry{}, fmt.Errorf("%w: files: %w", ErrMalformedRow, err)
	}

	status, err := chunk.ParseStatus(row[5])
	if err != nil {
		return registry.Entry{}, err
	}

	return registry.Entry{
		Chunk: chunk.DataChunk{
			ID:         id,
			DatasetID:  datasetID,
			BlockRange: chunk.BlockRange{Start: start, End: end},
			Files:      files,
		},
		Status: status,
	}, nil
}
