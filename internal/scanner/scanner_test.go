package scanner_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blockarch/chunkd/internal/chunk"
	"github.com/blockarch/chunkd/internal/scanner"
)

func writeChunkDir(t *testing.T, dir, datasetHex, rangeName string, files ...string) {
	t.Helper()

	chunkDir := filepath.Join(dir, "dataset_id="+datasetHex, "block_range="+rangeName)
	if err := os.MkdirAll(chunkDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	for _, name := range files {
		if err := os.WriteFile(filepath.Join(chunkDir, name), nil, 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	datasetHex := strings.Repeat("11", 32)

	writeChunkDir(t, dir, datasetHex, "0_35", "blocks.parquet")
	writeChunkDir(t, dir, datasetHex, "36_94", "blocks.parquet", "logs.parquet")

	chunks, err := scanner.Scan(dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("Scan found %d chunks, want 2", len(chunks))
	}

	datasetID, err := chunk.DatasetIDFromHex(datasetHex)
	if err != nil {
		t.Fatalf("DatasetIDFromHex: %v", err)
	}

	byID := make(map[chunk.ChunkID]chunk.DataChunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	first := chunk.DeriveChunkID(datasetID, chunk.BlockRange{Start: 0, End: 35})
	c, ok := byID[first]
	if !ok {
		t.Fatalf("chunk [0, 35) not discovered")
	}
	if len(c.Files) != 1 {
		t.Errorf("chunk [0, 35) has %d files, want 1", len(c.Files))
	}

	second := chunk.DeriveChunkID(datasetID, chunk.BlockRange{Start: 36, End: 94})
	c, ok = byID[second]
	if !ok {
		t.Fatalf("chunk [36, 94) not discovered")
	}
	if len(c.Files) != 2 {
		t.Errorf("chunk [36, 94) has %d files, want 2", len(c.Files))
	}
}

func TestScan_SkipsMalformedEntries(t *testing.T) {
	dir := t.TempDir()
	datasetHex := strings.Repeat("11", 32)

	writeChunkDir(t, dir, datasetHex, "0_35", "blocks.parquet")
	writeChunkDir(t, dir, datasetHex, "not_a_range")
	writeChunkDir(t, dir, datasetHex, "5_5") // empty range
	writeChunkDir(t, dir, "zzzz", "0_35")    // bad dataset hex

	if err := os.MkdirAll(filepath.Join(dir, "unrelated"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	chunks, err := scanner.Scan(dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("Scan found %d chunks, want 1 (malformed entries skipped)", len(chunks))
	}
}

func TestScan_MissingDir(t *testing.T) {
	chunks, err := scanner.Scan(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("Scan on missing dir: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("Scan on missing dir found %d chunks, want 0", len(chunks))
	}
}
