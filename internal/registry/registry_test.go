package registry_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/blockarch/chunkd/internal/chunk"
	"github.com/blockarch/chunkd/internal/registry"
)

func testChunk(t *testing.T, start, end uint64) chunk.DataChunk {
	t.Helper()

	var datasetID chunk.DatasetID
	for i := range datasetID {
		datasetID[i] = 0x11
	}

	c, err := chunk.New(datasetID, chunk.BlockRange{Start: start, End: end}, map[string]string{
		"blocks.parquet": "https://example.com/blocks.parquet",
	})
	if err != nil {
		t.Fatalf("chunk.New: %v", err)
	}

	return c
}

func TestStartDownload_RejectsSecondCall(t *testing.T) {
	r := registry.New()
	c := testChunk(t, 0, 35)

	if !r.StartDownload(c) {
		t.Fatalf("first StartDownload returned false, want true")
	}
	if status, ok := r.StatusOf(c.ID); !ok || status != chunk.Downloading {
		t.Fatalf("status after StartDownload = %q, %v; want %q, true", status, ok, chunk.Downloading)
	}

	if r.StartDownload(c) {
		t.Fatalf("second StartDownload returned true, want false")
	}
	if status, _ := r.StatusOf(c.ID); status != chunk.Downloading {
		t.Errorf("rejected StartDownload mutated status to %q", status)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestStartDownload_RejectsAnyExistingState(t *testing.T) {
	for _, status := range []chunk.Status{chunk.Downloading, chunk.Ready, chunk.Deleting} {
		r := registry.New()
		c := testChunk(t, 0, 35)
		r.Update(c, status)

		if r.StartDownload(c) {
			t.Errorf("StartDownload succeeded over existing %q entry", status)
		}
	}
}

func TestStateMachine_FullLifecycle(t *testing.T) {
	r := registry.New()
	c := testChunk(t, 0, 35)

	if !r.StartDownload(c) {
		t.Fatalf("StartDownload failed on empty registry")
	}
	if !r.MarkReady(c.ID) {
		t.Fatalf("MarkReady failed on Downloading entry")
	}
	if !r.StartDeletion(c.ID) {
		t.Fatalf("StartDeletion failed on Ready entry")
	}
	if !r.MarkDeleted(c.ID) {
		t.Fatalf("MarkDeleted failed on Deleting entry")
	}

	if _, ok := r.GetByID(c.ID); ok {
		t.Errorf("entry still present after MarkDeleted")
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d after full lifecycle, want 0", r.Len())
	}
}

func TestStartDeletion_Guards(t *testing.T) {
	r := registry.New()
	c := testChunk(t, 0, 35)

	if r.StartDeletion(c.ID) {
		t.Errorf("StartDeletion succeeded on absent entry")
	}

	r.StartDownload(c)
	if r.StartDeletion(c.ID) {
		t.Errorf("StartDeletion succeeded on Downloading entry")
	}

	r.MarkReady(c.ID)
	if !r.StartDeletion(c.ID) {
		t.Errorf("StartDeletion failed on Ready entry")
	}

	if r.StartDeletion(c.ID) {
		t.Errorf("StartDeletion succeeded on Deleting entry")
	}
}

func TestMarkReady_Guards(t *testing.T) {
	r := registry.New()
	c := testChunk(t, 0, 35)

	if r.MarkReady(c.ID) {
		t.Errorf("MarkReady succeeded on absent entry")
	}

	r.Update(c, chunk.Ready)
	if r.MarkReady(c.ID) {
		t.Errorf("MarkReady succeeded on Ready entry")
	}
}

func TestUpdate_DeletedRemovesEntry(t *testing.T) {
	r := registry.New()
	c := testChunk(t, 0, 35)

	r.Update(c, chunk.Ready)
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}

	r.Update(c, chunk.Deleted)
	if _, ok := r.GetByID(c.ID); ok {
		t.Errorf("entry present after Update to Deleted")
	}

	// idempotent on an absent entry
	r.Update(c, chunk.Deleted)
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

func TestFindByBlock(t *testing.T) {
	r := registry.New()
	first := testChunk(t, 0, 35)
	second := testChunk(t, 36, 94)
	r.Update(first, chunk.Ready)
	r.Update(second, chunk.Ready)

	datasetID := first.DatasetID

	got, ok := r.FindByBlock(datasetID, 12)
	if !ok || got.ID != first.ID {
		t.Errorf("FindByBlock(12) = %v, %v; want first chunk", got.ID, ok)
	}

	got, ok = r.FindByBlock(datasetID, 45)
	if !ok || got.ID != second.ID {
		t.Errorf("FindByBlock(45) = %v, %v; want second chunk", got.ID, ok)
	}

	if _, ok := r.FindByBlock(datasetID, 300); ok {
		t.Errorf("FindByBlock(300) found a chunk, want none")
	}

	var otherDataset chunk.DatasetID
	otherDataset[0] = 0x99
	if _, ok := r.FindByBlock(otherDataset, 12); ok {
		t.Errorf("FindByBlock matched a chunk from another dataset")
	}
}

func TestFindByBlock_IgnoresNonReady(t *testing.T) {
	r := registry.New()
	c := testChunk(t, 0, 35)
	r.Update(c, chunk.Downloading)

	if _, ok := r.FindByBlock(c.DatasetID, 12); ok {
		t.Errorf("FindByBlock returned a Downloading chunk")
	}
}

func TestReadyIDs(t *testing.T) {
	r := registry.New()
	ready := testChunk(t, 0, 35)
	downloading := testChunk(t, 36, 94)
	r.Update(ready, chunk.Ready)
	r.Update(downloading, chunk.Downloading)

	ids := r.ReadyIDs()
	if len(ids) != 1 || ids[0] != ready.ID {
		t.Errorf("ReadyIDs = %v, want exactly [%v]", ids, ready.ID)
	}
}

func TestStartDownload_ConcurrentSingleWinner(t *testing.T) {
	const workers = 64

	r := registry.New()
	c := testChunk(t, 0, 35)

	var (
		wg        sync.WaitGroup
		successes atomic.Int64
	)

	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if r.StartDownload(c) {
				successes.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()

	if got := successes.Load(); got != 1 {
		t.Fatalf("%d of %d concurrent StartDownload calls succeeded, want exactly 1", got, workers)
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d after concurrent registration, want 1", r.Len())
	}
}
