// Package pdfdoc opens PDF files and exposes page geometry and
// classification (embedded text vs. scanned) on top of pdfcpu. Rasterization
// itself is delegated to a Renderer, since pdfcpu does not rasterize pages.
package pdfdoc

import (
	"fmt"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/rezonia/faktura-processor/internal/model"
)

// BaselineDPI and RetryDPI are the two rasterization resolutions the
// pipeline uses; PointsPerInch/DPI is the pixel-to-point scale factor.
const (
	BaselineDPI   = 300
	RetryDPI      = 400
	PointsPerInch = 72.0
)

// Open validates the file and enumerates pages with their geometry. Page
// text classification is deferred to Classify, which needs the
// extracted token stream to decide.
func Open(path string) (*model.Document, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, model.NewPdfReadError(path, "failed to read PDF context", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, model.NewPdfReadError(path, "PDF failed validation", err)
	}

	pageCount := ctx.PageCount
	if pageCount <= 0 {
		return nil, model.NewPdfReadError(path, "PDF has zero pages", nil)
	}

	doc := &model.Document{
		Path:      path,
		PageCount: pageCount,
		OpenedAt:  time.Now(),
		Pages:     make([]*model.Page, pageCount),
	}

	for i := 1; i <= pageCount; i++ {
		dims, err := pageDims(ctx, i)
		if err != nil {
			return nil, model.NewPdfReadError(path, fmt.Sprintf("failed to read page %d geometry", i), err)
		}
		doc.Pages[i-1] = &model.Page{
			Index:  i,
			Width:  dims.w,
			Height: dims.h,
			Kind:   model.PageUnknown,
		}
	}

	return doc, nil
}

type pageSize struct{ w, h float64 }

func pageDims(ctx *pdfmodel.Context, pageNr int) (pageSize, error) {
	d, _, _, err := ctx.PageDict(pageNr, false)
	if err != nil {
		return pageSize{}, err
	}
	box := d.ArrayEntry("MediaBox")
	if box == nil {
		// inherited from Pages tree default; fall back to A4 at 72 dpi
		return pageSize{w: 595.28, h: 841.89}, nil
	}
	vals := make([]float64, 0, 4)
	for _, o := range box {
		f, err := ctx.DereferenceNumber(o)
		if err != nil {
			return pageSize{}, err
		}
		vals = append(vals, f)
	}
	if len(vals) != 4 {
		return pageSize{}, fmt.Errorf("unexpected MediaBox length %d", len(vals))
	}
	return pageSize{w: vals[2] - vals[0], h: vals[3] - vals[1]}, nil
}

// Classify inspects whether the page exposes any embedded text tokens. When
// in doubt (no tokens extracted yet, or extraction itself is ambiguous) it
// defaults to PageScanned — the safer choice since OCR handles both kinds.
func Classify(page *model.Page) model.PageKind {
	if len(page.Tokens) > 0 {
		return model.PageEmbeddedText
	}
	return model.PageScanned
}

// Renderer rasterizes a page to an image at a given DPI. pdfcpu has no
// rasterizer of its own, so this is an external collaborator: production
// deployments plug in a real one (e.g. backed by poppler or a GPU renderer);
// NullRenderer and FuncRenderer below cover tests and environments without one.
type Renderer interface {
	Render(path string, page int, dpi int) (model.ImageHandle, error)
}

// NullRenderer always fails. Useful as a safe default so a missing renderer
// surfaces as a RenderError instead of a nil-pointer panic.
type NullRenderer struct{}

func (NullRenderer) Render(path string, page int, dpi int) (model.ImageHandle, error) {
	return model.ImageHandle{}, model.NewRenderError(page, dpi, "no renderer configured", nil)
}

// FuncRenderer adapts a plain function into a Renderer.
type FuncRenderer func(path string, page int, dpi int) ([]byte, int, int, error)

func (f FuncRenderer) Render(path string, page int, dpi int) (model.ImageHandle, error) {
	bytes, w, h, err := f(path, page, dpi)
	if err != nil {
		return model.ImageHandle{}, model.NewRenderError(page, dpi, "rasterization failed", err)
	}
	return model.ImageHandle{Bytes: bytes, Width: w, Height: h, Dpi: dpi, Page: page}, nil
}
