package ocr

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"

	"ocrd/internal/progress"
	"ocrd/pkg/types"
)

// pdfDPI is the rasterization resolution for PDF pages.
const pdfDPI = 144

// PDFResult is the per-page breakdown plus the blank-line-joined combined
// text for a whole document.
type PDFResult struct {
	Pages    []types.PDFPage
	Combined string
}

// pageRenderer abstracts the rasterizer behind the per-page loop.
type pageRenderer interface {
	NumPage() int
	// RenderPage writes page index (0-based) as a JPEG to dst, downscaled
	// to maxWidth when wider (0 disables the cap).
	RenderPage(index int, dst string, maxWidth int) error
}

// fitzRenderer rasterizes via MuPDF.
type fitzRenderer struct {
	doc *fitz.Document
}

func (f fitzRenderer) NumPage() int { return f.doc.NumPage() }

func (f fitzRenderer) RenderPage(index int, dst string, maxWidth int) error {
	img, err := f.doc.ImageDPI(index, pdfDPI)
	if err != nil {
		return fmt.Errorf("rasterize page %d: %w", index+1, err)
	}

	var out image.Image = img
	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		out = downscale(img, maxWidth)
	}

	fd, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer fd.Close()
	return jpeg.Encode(fd, out, &jpeg.Options{Quality: 92})
}

// RunPDF rasterizes every page of pdfPath and runs the single-shot contract
// per page into pdf_page_<n> subfolders of outputRoot. Page failures are
// isolated: the page gets empty text and the run continues.
func (d *Dispatcher) RunPDF(ctx context.Context, pdfPath, outputRoot string, params types.OCRParams) (PDFResult, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return PDFResult{}, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()
	return d.runPDFPages(ctx, fitzRenderer{doc: doc}, outputRoot, params)
}

func (d *Dispatcher) runPDFPages(ctx context.Context, r pageRenderer, outputRoot string, params types.OCRParams) (PDFResult, error) {
	total := r.NumPage()
	pages := make([]types.PDFPage, 0, total)
	combined := make([]string, 0, total)

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return PDFResult{}, err
		}
		pageNum := i + 1
		pageDir := filepath.Join(outputRoot, fmt.Sprintf("pdf_page_%d", pageNum))
		if err := os.MkdirAll(pageDir, 0o755); err != nil {
			return PDFResult{}, fmt.Errorf("create page dir: %w", err)
		}

		d.tracker.Update(progress.StatusProcessing, "ocr",
			fmt.Sprintf("Processing PDF page %d/%d", pageNum, total), pageNum*50/total, 0, "")

		// A unique name inside the page dir avoids clashing with result
		// files from a previous run of the same document.
		imgPath := filepath.Join(pageDir, fmt.Sprintf("temp_page_%d_%s.jpg", pageNum, uuid.NewString()))
		if err := r.RenderPage(i, imgPath, params.BaseSize); err != nil {
			d.log.Error().Err(err).Int("page", pageNum).Msg("page rasterization failed")
			pages = append(pages, types.PDFPage{Page: pageNum, Text: ""})
			combined = append(combined, "")
			continue
		}

		res, err := d.Run(ctx, Request{
			ImagePath: imgPath,
			OutputDir: pageDir,
			Params:    params,
		})
		if err != nil {
			d.log.Error().Err(err).Int("page", pageNum).Msg("page inference failed")
			pages = append(pages, types.PDFPage{Page: pageNum, Text: ""})
			combined = append(combined, "")
			continue
		}

		page := types.PDFPage{Page: pageNum, Text: res.Text}
		if res.HasBoxes {
			page.BoxesImagePath = fmt.Sprintf("pdf_page_%d/%s", pageNum, BoxesFile)
		}
		pages = append(pages, page)
		combined = append(combined, res.Text)
	}

	return PDFResult{Pages: pages, Combined: strings.Join(combined, "\n\n")}, nil
}

// downscale resizes img to the given width, preserving aspect ratio.
func downscale(img image.Image, width int) image.Image {
	b := img.Bounds()
	height := b.Dy() * width / b.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
