package queue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"ocrd/pkg/types"
)

func newBareQueue(t *testing.T) *Queue {
	t.Helper()
	return New(Deps{}, zerolog.Nop())
}

func tempUpload(t *testing.T, name string) Upload {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("img"), 0o644); err != nil {
		t.Fatal(err)
	}
	return Upload{Filename: name, TempPath: path}
}

func TestEnqueueAssignsDistinctIDs(t *testing.T) {
	q := newBareQueue(t)
	ids := q.Enqueue([]Upload{
		tempUpload(t, "a.jpg"),
		tempUpload(t, "b.jpg"),
		tempUpload(t, "c.jpg"),
	}, types.OCRParams{PromptType: "ocr"})

	if len(ids) != 3 {
		t.Fatalf("ids = %v, want 3 entries", ids)
	}
	seen := map[int]bool{}
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}

	snap := q.Snapshot()
	if snap.Total != 3 || snap.Pending != 3 {
		t.Fatalf("snapshot = %+v, want 3 pending", snap)
	}
}

func TestEnqueueSkipsEmptyFilenames(t *testing.T) {
	q := newBareQueue(t)
	anon := tempUpload(t, "x.jpg")
	anon.Filename = ""

	ids := q.Enqueue([]Upload{anon, tempUpload(t, "ok.jpg")}, types.OCRParams{})
	if len(ids) != 1 {
		t.Fatalf("ids = %v, want 1 entry", ids)
	}
	if _, err := os.Stat(anon.TempPath); !os.IsNotExist(err) {
		t.Fatal("skipped upload's temp file not removed")
	}
}

func TestIDsStableUnderRemoval(t *testing.T) {
	q := newBareQueue(t)
	first := q.Enqueue([]Upload{tempUpload(t, "a.jpg"), tempUpload(t, "b.jpg")}, types.OCRParams{})

	if err := q.Remove(first[0]); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	second := q.Enqueue([]Upload{tempUpload(t, "c.jpg")}, types.OCRParams{})
	if second[0] == first[0] || second[0] == first[1] {
		t.Fatalf("id %d reused after removal", second[0])
	}
}

func TestRemoveUnknownID(t *testing.T) {
	q := newBareQueue(t)
	q.Enqueue([]Upload{tempUpload(t, "a.jpg")}, types.OCRParams{})

	err := q.Remove(999)
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
	if snap := q.Snapshot(); snap.Total != 1 {
		t.Fatalf("queue mutated by failed remove: %+v", snap)
	}
}

func TestRemoveDeletesTempFile(t *testing.T) {
	q := newBareQueue(t)
	up := tempUpload(t, "a.jpg")
	ids := q.Enqueue([]Upload{up}, types.OCRParams{})

	if err := q.Remove(ids[0]); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(up.TempPath); !os.IsNotExist(err) {
		t.Fatal("temp file survived removal")
	}
	if snap := q.Snapshot(); snap.Total != 0 {
		t.Fatalf("item survived removal: %+v", snap)
	}
}

func TestClearRemovesTempFilesBestEffort(t *testing.T) {
	q := newBareQueue(t)
	a := tempUpload(t, "a.jpg")
	b := tempUpload(t, "b.jpg")
	q.Enqueue([]Upload{a, b}, types.OCRParams{})

	// One temp file already gone; Clear must not blow up on it.
	if err := os.Remove(b.TempPath); err != nil {
		t.Fatal(err)
	}
	q.Clear()

	if snap := q.Snapshot(); snap.Total != 0 {
		t.Fatalf("queue not empty after clear: %+v", snap)
	}
	if _, err := os.Stat(a.TempPath); !os.IsNotExist(err) {
		t.Fatal("temp file survived clear")
	}
}

func TestSnapshotRedactsItems(t *testing.T) {
	q := newBareQueue(t)
	q.Enqueue([]Upload{tempUpload(t, "secret-scan.jpg")}, types.OCRParams{})
	q.mu.Lock()
	q.items[0].Result = "raw result text"
	q.items[0].Status = StatusCompleted
	q.mu.Unlock()

	snap := q.Snapshot()
	if len(snap.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(snap.Items))
	}
	// The view type carries no temp path or result fields at all; check
	// the visible ones survived.
	v := snap.Items[0]
	if v.Filename != "secret-scan.jpg" || v.Status != StatusCompleted {
		t.Fatalf("view = %+v", v)
	}
}

func TestSnapshotReportsProcessingItem(t *testing.T) {
	q := newBareQueue(t)
	q.Enqueue([]Upload{tempUpload(t, "a.jpg")}, types.OCRParams{})
	q.mu.Lock()
	it := q.items[0]
	q.mu.Unlock()
	q.setProcessing(it, "/tmp/preview.jpg")
	q.setProgress(it, 40)

	snap := q.Snapshot()
	if snap.Processing == nil {
		t.Fatal("no processing item in snapshot")
	}
	if snap.Processing.Progress != 40 || snap.Processing.CurrentImagePath != "/tmp/preview.jpg" {
		t.Fatalf("processing = %+v", snap.Processing)
	}
}

func TestSetProgressCapped(t *testing.T) {
	q := newBareQueue(t)
	q.Enqueue([]Upload{tempUpload(t, "a.jpg")}, types.OCRParams{})
	q.mu.Lock()
	it := q.items[0]
	q.mu.Unlock()

	q.setProgress(it, 500)
	if it.Progress != maxItemProgress {
		t.Fatalf("progress = %d, want cap %d", it.Progress, maxItemProgress)
	}

	q.finish(it, "done", "")
	if it.Progress != 100 || it.Status != StatusCompleted {
		t.Fatalf("item after finish = %+v", it)
	}
}
