package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/blockarch/chunkd/internal/bridge"
	"github.com/blockarch/chunkd/internal/catalogue"
	"github.com/blockarch/chunkd/internal/chunk"
	"github.com/blockarch/chunkd/internal/config"
	"github.com/blockarch/chunkd/internal/journal"
	"github.com/blockarch/chunkd/internal/logger"
	"github.com/blockarch/chunkd/internal/manager"
	"github.com/blockarch/chunkd/internal/scanner"
	"github.com/blockarch/chunkd/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "chunkd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.GetConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.Debug, cfg.LogPath); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Close()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.SnapshotPath), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	localChunks, err := scanner.Scan(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("scan data directory: %w", err)
	}
	logger.Infof("discovered %d local chunk(s) in %s", len(localChunks), cfg.DataDir)

	cat, err := catalogue.New(cfg.SnapshotPath, localChunks)
	if err != nil {
		return fmt.Errorf("build catalogue: %w", err)
	}

	jrnl, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	tr := transport.NewLocal(cfg.DataDir, cfg.SimulatedTransferDelay, localChunks)

	mgr := manager.New(manager.Config{
		MaxConcurrentTransfers: cfg.MaxConcurrentTransfers,
		TransferTimeout:        cfg.TransferTimeout,
	}, cat, tr, jrnl)

	logger.Infof("chunkd started, %d chunk(s) servable", len(mgr.ListChunks()))

	demo(mgr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Infof("received signal %v, shutting down", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := mgr.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Infof("shutdown complete")
	return nil
}

// demo schedules a couple of simulated downloads so a fresh worker has
// something to serve, then deletes one of them again.
func demo(mgr *manager.Manager) {
	var datasetID chunk.DatasetID
	for i := range datasetID {
		datasetID[i] = 0x11
	}

	ranges := []chunk.BlockRange{
		{Start: 0, End: 35},
		{Start: 36, End: 94},
		{Start: 95, End: 106},
	}

	var bridges []*bridge.Bridge
	var last chunk.ChunkID

	for _, r := range ranges {
		c, err := chunk.New(datasetID, r, map[string]string{
			"blocks.parquet": fmt.Sprintf("https://example.com/%s/blocks.parquet", r),
		})
		if err != nil {
			logger.Errorf("build chunk: %v", err)
			continue
		}

		br, ok, err := mgr.DownloadChunk(c)
		if err != nil {
			logger.Errorf("schedule download of chunk %s: %v", c.ID, err)
			continue
		}
		if !ok {
			logger.Infof("chunk %s already registered", c.ID)
			continue
		}

		bridges = append(bridges, br)
		last = c.ID
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for _, br := range bridges {
		if err := br.Wait(ctx); err != nil {
			logger.Errorf("download failed: %v", err)
		}
	}

	logger.Infof("%d chunk(s) servable", len(mgr.ListChunks()))

	if c, ok := mgr.FindChunk(datasetID, 45); ok {
		logger.Infof("block 45 served by chunk %s [%d, %d)", c.ID, c.BlockRange.Start, c.BlockRange.End)
	}

	if br, ok, err := mgr.DeleteChunk(last); err != nil {
		logger.Errorf("schedule deletion of chunk %s: %v", last, err)
	} else if ok {
		if err := br.Wait(ctx); err != nil {
			logger.Errorf("deletion failed: %v", err)
		} else {
			logger.Infof("chunk %s deleted", last)
		}
	}
}
