// Package queue holds the in-memory job queue and its sequential drain.
// All mutation happens under one mutex; the drain itself is single-flight.
package queue

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"ocrd/internal/common/fsutil"
	"ocrd/pkg/types"
)

// Item statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Item is one queued upload. Fields are mutated in place under the queue
// lock as the item moves through processing.
type Item struct {
	ID       int
	Filename string
	TempPath string
	Params   types.OCRParams

	Status   string
	Progress int
	Result   string
	Error    string
	// CurrentImagePath is set only while processing, for live preview.
	CurrentImagePath string
}

// Upload is one file already persisted to a temp path by the HTTP layer.
type Upload struct {
	Filename string
	TempPath string
}

// Queue is the process-wide job queue. IDs come from a strictly increasing
// counter, never from list position, so removal cannot cause reuse.
type Queue struct {
	mu     sync.Mutex
	nextID int
	items  []*Item

	drainMu  sync.Mutex // held for the duration of one drain
	draining atomic.Bool

	deps Deps
	log  zerolog.Logger
}

// Draining reports whether a drain is currently running. Ad-hoc inference
// routes use this to reject work while the queue owns the engine.
func (q *Queue) Draining() bool { return q.draining.Load() }

// New constructs an empty queue.
func New(deps Deps, log zerolog.Logger) *Queue {
	return &Queue{deps: deps, log: log}
}

// Enqueue appends one pending item per upload and returns the assigned ids
// in upload order. Uploads with no filename are skipped silently; their
// temp files are removed.
func (q *Queue) Enqueue(uploads []Upload, params types.OCRParams) []int {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids := make([]int, 0, len(uploads))
	for _, up := range uploads {
		if up.Filename == "" {
			if up.TempPath != "" {
				_ = fsutil.RemoveWithRetry(up.TempPath, 0)
			}
			continue
		}
		q.nextID++
		it := &Item{
			ID:       q.nextID,
			Filename: up.Filename,
			TempPath: up.TempPath,
			Params:   params,
			Status:   StatusPending,
		}
		q.items = append(q.items, it)
		ids = append(ids, it.ID)
	}
	q.log.Info().Ints("ids", ids).Int("queued", len(q.items)).Msg("files enqueued")
	return ids
}

// Snapshot returns aggregate counts plus a redacted item list. Temp paths
// and raw result text never leave the queue.
func (q *Queue) Snapshot() types.QueueStatusResponse {
	q.mu.Lock()
	defer q.mu.Unlock()

	resp := types.QueueStatusResponse{
		Status: "success",
		Total:  len(q.items),
		Items:  make([]types.QueueItemView, 0, len(q.items)),
	}
	for _, it := range q.items {
		switch it.Status {
		case StatusPending:
			resp.Pending++
		case StatusCompleted:
			resp.Completed++
		case StatusFailed:
			resp.Failed++
		case StatusProcessing:
			resp.Processing = &types.ProcessingItem{
				ID:               it.ID,
				Filename:         it.Filename,
				CurrentImagePath: it.CurrentImagePath,
				Progress:         it.Progress,
			}
		}
		resp.Items = append(resp.Items, types.QueueItemView{
			ID:       it.ID,
			Filename: it.Filename,
			Status:   it.Status,
			Progress: it.Progress,
			Error:    it.Error,
		})
	}
	return resp
}

// Remove deletes the item with the given id, removing its temp file first.
// The currently processing item cannot be removed.
func (q *Queue) Remove(id int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, it := range q.items {
		if it.ID != id {
			continue
		}
		if it.Status == StatusProcessing {
			return tooBusyError{msg: "item is currently processing"}
		}
		if it.TempPath != "" {
			if err := fsutil.RemoveWithRetry(it.TempPath, 0); err != nil {
				q.log.Warn().Err(err).Str("path", it.TempPath).Msg("could not remove temp file")
			}
		}
		q.items = append(q.items[:i], q.items[i+1:]...)
		return nil
	}
	return notFoundError{id: id}
}

// Clear empties the queue, deleting temp files best-effort. The currently
// processing item, if any, is left in place.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.items[:0]
	for _, it := range q.items {
		if it.Status == StatusProcessing {
			kept = append(kept, it)
			continue
		}
		if it.TempPath != "" {
			if err := fsutil.RemoveWithRetry(it.TempPath, 0); err != nil {
				q.log.Warn().Err(err).Str("path", it.TempPath).Msg("could not remove temp file")
			}
		}
	}
	q.items = kept
	q.log.Info().Msg("queue cleared")
}

// pendingItems returns the pending items in enqueue order.
func (q *Queue) pendingItems() []*Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Item, 0, len(q.items))
	for _, it := range q.items {
		if it.Status == StatusPending {
			out = append(out, it)
		}
	}
	return out
}

// setProcessing transitions an item to processing under the lock.
func (q *Queue) setProcessing(it *Item, imagePath string) {
	q.mu.Lock()
	it.Status = StatusProcessing
	it.CurrentImagePath = imagePath
	it.Progress = 0
	q.mu.Unlock()
}

// setProgress updates the heuristic progress, capped below completion.
func (q *Queue) setProgress(it *Item, progress int) {
	if progress > maxItemProgress {
		progress = maxItemProgress
	}
	q.mu.Lock()
	it.Progress = progress
	q.mu.Unlock()
}

// finish records the terminal status for an item.
func (q *Queue) finish(it *Item, result, errMsg string) {
	q.mu.Lock()
	it.CurrentImagePath = ""
	if errMsg != "" {
		it.Status = StatusFailed
		it.Error = errMsg
		it.Progress = 0
	} else {
		it.Status = StatusCompleted
		it.Result = result
		it.Progress = 100
	}
	q.mu.Unlock()
}
