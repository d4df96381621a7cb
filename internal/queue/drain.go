package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ocrd/internal/common/fsutil"
	"ocrd/internal/ocr"
	"ocrd/internal/progress"
	"ocrd/pkg/types"
)

// maxItemProgress caps the character-count heuristic until the item
// actually completes.
const maxItemProgress = 90

// progressCharsPerPercent converts generated characters into heuristic
// percent: a typical page yields a few thousand characters.
const progressCharsPerPercent = 50

// Loader gates the drain on model readiness.
type Loader interface {
	EnsureLoaded(ctx context.Context, forceCPU bool) error
}

// CacheClearer releases accelerator memory between items.
type CacheClearer interface {
	ClearCache(ctx context.Context) error
}

// History records finished drain summaries; nil disables recording.
type History interface {
	RecordDrain(summary types.DrainSummary) error
}

// Deps are the queue's collaborators, injected so tests can fake them.
type Deps struct {
	Loader     Loader
	Dispatcher *ocr.Dispatcher
	Clearer    CacheClearer
	Tracker    *progress.Tracker
	History    History
	// OutputRoot is the outputs directory drains write under.
	OutputRoot string
}

// itemMetadata is persisted as metadata.json inside each item's subfolder.
type itemMetadata struct {
	ID         int    `json:"id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	ResultFile string `json:"result_file,omitempty"`
}

// Drain processes all currently pending items in enqueue order. Only one
// drain may run at a time; a second call while one is running gets a
// too-busy error. The model is loaded first; items then run sequentially,
// each into its own subfolder of one timestamped drain folder, with
// accelerator memory released between items. The tracker is reset to idle
// when the drain ends, partial failure included.
func (q *Queue) Drain(ctx context.Context) (types.DrainSummary, error) {
	if !q.drainMu.TryLock() {
		return types.DrainSummary{}, tooBusyError{msg: "queue processing already running"}
	}
	defer q.drainMu.Unlock()
	q.draining.Store(true)
	defer q.draining.Store(false)
	defer q.deps.Tracker.Reset()

	if err := q.deps.Loader.EnsureLoaded(ctx, false); err != nil {
		return types.DrainSummary{}, err
	}

	items := q.pendingItems()
	started := time.Now()
	drainDir := fmt.Sprintf("queue_%s", started.Format("20060102_150405"))
	drainPath := filepath.Join(q.deps.OutputRoot, drainDir)
	if err := os.MkdirAll(drainPath, 0o755); err != nil {
		return types.DrainSummary{}, fmt.Errorf("create drain dir: %w", err)
	}

	summary := types.DrainSummary{
		Status:    "success",
		Total:     len(items),
		OutputDir: drainDir,
		StartedAt: started.Unix(),
		Items:     make([]types.DrainItemResult, 0, len(items)),
	}

	for i, it := range items {
		q.deps.Tracker.Update(progress.StatusProcessing, "queue",
			fmt.Sprintf("Processing %s (%d/%d)", it.Filename, i+1, len(items)), (i*100)/len(items), 0, "")

		itemSub := fmt.Sprintf("item_%d", i+1)
		itemDir := filepath.Join(drainPath, itemSub)
		outcome := q.processItem(ctx, it, itemDir)
		outcome.OutputDir = itemSub
		summary.Items = append(summary.Items, outcome)
		if outcome.Status == StatusCompleted {
			summary.Completed++
		} else {
			summary.Failed++
		}

		// Bound peak accelerator memory across a long batch.
		if err := q.deps.Clearer.ClearCache(ctx); err != nil {
			q.log.Warn().Err(err).Msg("cache clear between items failed")
		}
	}

	summary.EndedAt = time.Now().Unix()
	if err := q.writeSummary(drainPath, summary); err != nil {
		q.log.Error().Err(err).Msg("could not persist drain summary")
	}
	if q.deps.History != nil {
		if err := q.deps.History.RecordDrain(summary); err != nil {
			q.log.Warn().Err(err).Msg("could not record drain in history")
		}
	}
	q.log.Info().Int("total", summary.Total).Int("completed", summary.Completed).
		Int("failed", summary.Failed).Str("dir", drainDir).Msg("queue drain finished")
	return summary, nil
}

// processItem runs one item through the dispatcher and writes its
// metadata.json. The item's temp file is gone afterwards whatever happens;
// a failure is captured into the item, never propagated.
func (q *Queue) processItem(ctx context.Context, it *Item, itemDir string) types.DrainItemResult {
	q.setProcessing(it, it.TempPath)

	res, err := q.deps.Dispatcher.Run(ctx, ocr.Request{
		ImagePath: it.TempPath,
		OutputDir: itemDir,
		Params:    it.Params,
		OnProgress: func(chars int) {
			q.setProgress(it, chars/progressCharsPerPercent)
		},
	})

	// The dispatcher already removed the temp upload; this catches the
	// paths where it could not (and tolerates the file being gone).
	if rmErr := fsutil.RemoveWithRetry(it.TempPath, 0); rmErr != nil {
		q.log.Warn().Err(rmErr).Str("path", it.TempPath).Msg("could not remove temp file")
	}

	meta := itemMetadata{ID: it.ID, Filename: it.Filename}
	if err != nil {
		q.log.Error().Err(err).Int("id", it.ID).Str("file", it.Filename).Msg("queue item failed")
		q.finish(it, "", err.Error())
		meta.Status = StatusFailed
		meta.Error = err.Error()
	} else {
		q.finish(it, res.Text, "")
		meta.Status = StatusCompleted
		meta.ResultFile = ocr.ResultFileFor(res.PromptType)
	}

	if err := q.writeMetadata(itemDir, meta); err != nil {
		q.log.Warn().Err(err).Int("id", it.ID).Msg("could not write item metadata")
	}
	return types.DrainItemResult{ID: it.ID, Filename: it.Filename, Status: meta.Status, Error: meta.Error}
}

func (q *Queue) writeMetadata(itemDir string, meta itemMetadata) error {
	if err := os.MkdirAll(itemDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(itemDir, "metadata.json"), data, 0o644)
}

func (q *Queue) writeSummary(drainPath string, summary types.DrainSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(drainPath, "summary.json"), data, 0o644)
}

// ReadSummary loads a persisted drain summary back from disk.
func ReadSummary(drainPath string) (types.DrainSummary, error) {
	data, err := os.ReadFile(filepath.Join(drainPath, "summary.json"))
	if err != nil {
		return types.DrainSummary{}, err
	}
	var s types.DrainSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return types.DrainSummary{}, err
	}
	return s, nil
}
