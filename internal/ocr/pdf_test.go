package ocr

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ocrd/internal/engine"
	"ocrd/pkg/types"
)

func TestDownscalePreservesAspectRatio(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2000, 1000))
	out := downscale(src, 1024)
	b := out.Bounds()
	if b.Dx() != 1024 {
		t.Fatalf("width = %d, want 1024", b.Dx())
	}
	if b.Dy() != 512 {
		t.Fatalf("height = %d, want 512", b.Dy())
	}
}

// fakeRenderer stands in for the MuPDF rasterizer: it writes a stub JPEG
// per page and can be told to fail specific pages.
type fakeRenderer struct {
	pages    int
	failPage map[int]bool // 0-based index
}

func (f fakeRenderer) NumPage() int { return f.pages }

func (f fakeRenderer) RenderPage(index int, dst string, maxWidth int) error {
	if f.failPage[index] {
		return fmt.Errorf("render page %d failed", index+1)
	}
	return os.WriteFile(dst, []byte("jpeg"), 0o644)
}

// pageTextRuntime writes a result file whose content names the page dir it
// ran in, so per-page routing is observable.
type pageTextRuntime struct {
	withBoxes bool
}

func (p *pageTextRuntime) LoadTokenizer(ctx context.Context) error                 { return nil }
func (p *pageTextRuntime) LoadModel(ctx context.Context, pl engine.Placement) error { return nil }
func (p *pageTextRuntime) Warmup(ctx context.Context) error                        { return nil }
func (p *pageTextRuntime) ClearCache(ctx context.Context) error                    { return nil }
func (p *pageTextRuntime) Close() error                                            { return nil }

func (p *pageTextRuntime) Infer(ctx context.Context, req engine.Request, stdout io.Writer) error {
	text := "text for " + filepath.Base(req.OutputDir)
	if err := os.WriteFile(filepath.Join(req.OutputDir, "result.mmd"), []byte(text), 0o644); err != nil {
		return err
	}
	if p.withBoxes {
		if err := os.WriteFile(filepath.Join(req.OutputDir, BoxesFile), []byte("jpg"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func TestRunPDFPagesInOrder(t *testing.T) {
	d, _ := newTestDispatcher(&pageTextRuntime{withBoxes: true})
	out := t.TempDir()

	res, err := d.runPDFPages(context.Background(), fakeRenderer{pages: 3}, out,
		types.OCRParams{PromptType: "document", BaseSize: 1024})
	if err != nil {
		t.Fatalf("runPDFPages: %v", err)
	}
	if len(res.Pages) != 3 {
		t.Fatalf("pages = %d, want 3", len(res.Pages))
	}
	for i, p := range res.Pages {
		if p.Page != i+1 {
			t.Fatalf("page %d has number %d", i, p.Page)
		}
		want := fmt.Sprintf("text for pdf_page_%d", i+1)
		if p.Text != want {
			t.Fatalf("page %d text = %q, want %q", p.Page, p.Text, want)
		}
		if p.BoxesImagePath != fmt.Sprintf("pdf_page_%d/%s", i+1, BoxesFile) {
			t.Fatalf("page %d boxes path = %q", p.Page, p.BoxesImagePath)
		}
		if _, err := os.Stat(filepath.Join(out, fmt.Sprintf("pdf_page_%d", i+1))); err != nil {
			t.Fatalf("page dir %d missing: %v", i+1, err)
		}
	}
	want := "text for pdf_page_1\n\ntext for pdf_page_2\n\ntext for pdf_page_3"
	if res.Combined != want {
		t.Fatalf("combined = %q, want %q", res.Combined, want)
	}
}

func TestRunPDFIsolatesPageFailure(t *testing.T) {
	d, _ := newTestDispatcher(&pageTextRuntime{})
	out := t.TempDir()

	res, err := d.runPDFPages(context.Background(),
		fakeRenderer{pages: 3, failPage: map[int]bool{1: true}}, out,
		types.OCRParams{PromptType: "document"})
	if err != nil {
		t.Fatalf("runPDFPages: %v", err)
	}
	if len(res.Pages) != 3 {
		t.Fatalf("pages = %d, want 3", len(res.Pages))
	}
	if res.Pages[1].Text != "" {
		t.Fatalf("failed page text = %q, want empty", res.Pages[1].Text)
	}
	if res.Pages[0].Text != "text for pdf_page_1" || res.Pages[2].Text != "text for pdf_page_3" {
		t.Fatalf("surviving pages = %q, %q", res.Pages[0].Text, res.Pages[2].Text)
	}
	if res.Combined != "text for pdf_page_1\n\n\n\ntext for pdf_page_3" {
		t.Fatalf("combined = %q", res.Combined)
	}
}

func TestRunPDFDeletesTempPageImages(t *testing.T) {
	d, _ := newTestDispatcher(&pageTextRuntime{})
	out := t.TempDir()

	if _, err := d.runPDFPages(context.Background(), fakeRenderer{pages: 2}, out,
		types.OCRParams{PromptType: "document"}); err != nil {
		t.Fatalf("runPDFPages: %v", err)
	}
	for page := 1; page <= 2; page++ {
		entries, err := os.ReadDir(filepath.Join(out, fmt.Sprintf("pdf_page_%d", page)))
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), "temp_page_") {
				t.Fatalf("page %d still holds temp image %s", page, e.Name())
			}
		}
	}
}

func TestRunPDFCancel(t *testing.T) {
	d, _ := newTestDispatcher(&pageTextRuntime{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.runPDFPages(ctx, fakeRenderer{pages: 2}, t.TempDir(),
		types.OCRParams{PromptType: "document"}); err == nil {
		t.Fatal("runPDFPages succeeded with canceled context")
	}
}
