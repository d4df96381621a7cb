package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ocrd/internal/progress"
	"ocrd/pkg/types"
)

// BatchInput is one uploaded image already persisted to a temp path.
type BatchInput struct {
	Filename string
	Path     string
}

// BatchResult is the per-item breakdown plus the combined text.
type BatchResult struct {
	Items    []types.BatchItem
	Combined string
}

// RunBatch runs the single-shot contract per input into batch_<n>
// subfolders of outputRoot. An item failure yields empty text for that
// item; the batch keeps going.
func (d *Dispatcher) RunBatch(ctx context.Context, inputs []BatchInput, outputRoot string, params types.OCRParams) (BatchResult, error) {
	total := len(inputs)
	items := make([]types.BatchItem, 0, total)
	combined := make([]string, 0, total)

	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			return BatchResult{}, err
		}
		idx := i + 1
		itemDir := filepath.Join(outputRoot, fmt.Sprintf("batch_%d", idx))
		if err := os.MkdirAll(itemDir, 0o755); err != nil {
			return BatchResult{}, fmt.Errorf("create item dir: %w", err)
		}

		d.tracker.Update(progress.StatusProcessing, "ocr",
			fmt.Sprintf("Processing image %d/%d", idx, total), idx*50/total, 0, "")

		res, err := d.Run(ctx, Request{
			ImagePath: in.Path,
			OutputDir: itemDir,
			Params:    params,
		})
		if err != nil {
			d.log.Error().Err(err).Str("file", in.Filename).Msg("batch item failed")
			items = append(items, types.BatchItem{Index: idx, Text: ""})
			combined = append(combined, "")
			continue
		}

		item := types.BatchItem{Index: idx, Text: res.Text}
		if res.HasBoxes {
			item.BoxesImagePath = fmt.Sprintf("batch_%d/%s", idx, BoxesFile)
		}
		items = append(items, item)
		combined = append(combined, res.Text)
	}

	return BatchResult{Items: items, Combined: strings.Join(combined, "\n\n")}, nil
}
