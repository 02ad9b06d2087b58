// Package scanner rebuilds chunk descriptors from the payload directories
// already present on disk, so a restarted worker can serve what it downloaded
// before.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/blockarch/chunkd/internal/chunk"
	"github.com/blockarch/chunkd/internal/logger"
)

const (
	datasetPrefix = "dataset_id="
	rangePrefix   = "block_range="
)

// Scan walks dir for the dataset_id=<hex>/block_range=<start>_<end> layout
// and returns a descriptor per chunk directory found. Dataset directories are
// scanned concurrently. Entries that do not match the layout are skipped; a
// missing dir yields an empty result.
func Scan(dir string) ([]chunk.DataChunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var (
		mu     sync.Mutex
		chunks []chunk.DataChunk
	)

	g := new(errgroup.Group)

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), datasetPrefix) {
			continue
		}

		datasetID, err := chunk.DatasetIDFromHex(strings.TrimPrefix(entry.Name(), datasetPrefix))
		if err != nil {
			logger.Warnf("skipping dataset directory %s: %v", entry.Name(), err)
			continue
		}

		datasetDir := filepath.Join(dir, entry.Name())

		g.Go(func() error {
			found, err := scanDataset(datasetDir, datasetID)
			if err != nil {
				return err
			}

			mu.Lock()
			chunks = append(chunks, found...)
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return chunks, nil
}

func scanDataset(datasetDir string, datasetID chunk.DatasetID) ([]chunk.DataChunk, error) {
	entries, err := os.ReadDir(datasetDir)
	if err != nil {
		return nil, fmt.Errorf("read dataset dir %s: %w", datasetDir, err)
	}

	var chunks []chunk.DataChunk

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), rangePrefix) {
			continue
		}

		blockRange, ok := parseRange(strings.TrimPrefix(entry.Name(), rangePrefix))
		if !ok {
			logger.Warnf("skipping chunk directory %s: malformed block range", entry.Name())
			continue
		}

		files, err := listFiles(filepath.Join(datasetDir, entry.Name()))
		if err != nil {
			return nil, err
		}

		c, err := chunk.New(datasetID, blockRange, files)
		if err != nil {
			logger.Warnf("skipping chunk directory %s: %v", entry.Name(), err)
			continue
		}

		chunks = append(chunks, c)
	}

	return chunks, nil
}

func parseRange(s string) (chunk.BlockRange, bool) {
	left, right, ok := strings.Cut(s, "_")
	if !ok {
		return chunk.BlockRange{}, false
	}

	start, err := strconv.ParseUint(left, 10, 64)
	if err != nil {
		return chunk.BlockRange{}, false
	}

	end, err := strconv.ParseUint(right, 10, 64)
	if err != nil {
		return chunk.BlockRange{}, false
	}

	return chunk.BlockRange{Start: start, End: end}, true
}

// listFiles maps the payload file names in chunkDir to their local paths.
func listFiles(chunkDir string) (map[string]string, error) {
	entries, err := os.ReadDir(chunkDir)
	if err != nil {
		return nil, fmt.Errorf("read chunk dir %s: %w", chunkDir, err)
	}

	files := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files[entry.Name()] = filepath.Join(chunkDir, entry.Name())
	}

	return files, nil
}
