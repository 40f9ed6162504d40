package services

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/go-pdf/fpdf"
)

// PageSpec describes the page geometry in points
type PageSpec struct {
	Width  float64
	Height float64
}

// A4 is the default page size
var A4 = PageSpec{Width: 595.28, Height: 841.89}

// Text layout constants, in points
const (
	textMargin   = 50
	textFontSize = 10
	textLineHt   = 12
)

// FitMode controls how an image is placed on its page
type FitMode int

const (
	// FitContain scales the image to fit inside the page, preserving
	// aspect ratio, centered. This is the canonical policy.
	FitContain FitMode = iota
	// FitStretch fills the whole page ignoring aspect ratio. Kept only
	// for parity with a legacy behavior; not the default.
	FitStretch
)

// Assembler builds PDF documents in memory. Nothing is serialized until
// Bytes succeeds, so a failed embed can never produce a truncated file.
type Assembler struct {
	page PageSpec
}

// NewAssembler creates an assembler producing A4 pages
func NewAssembler() *Assembler {
	return &Assembler{page: A4}
}

// Document is one in-progress PDF
type Document struct {
	pdf  *fpdf.Fpdf
	page PageSpec
}

// NewDocument starts an empty document
func (a *Assembler) NewDocument() *Document {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: a.page.Width, Ht: a.page.Height},
	})
	pdf.SetMargins(textMargin, textMargin, textMargin)
	// Text stays on its single page; overflow is clipped, not paginated.
	pdf.SetAutoPageBreak(false, 0)
	return &Document{pdf: pdf, page: a.page}
}

// AddTextPage appends one page holding the given text, wrapped to the
// available width between the 50pt margins.
func (d *Document) AddTextPage(text string) {
	d.pdf.AddPage()
	d.pdf.SetFont("Helvetica", "", textFontSize)
	d.pdf.SetXY(textMargin, textMargin)
	d.pdf.MultiCell(d.page.Width-2*textMargin, textLineHt, text, "", "L", false)
}

// AddImagePage appends a page containing the source image. The decode path
// is chosen from the declared mimetype: png goes through the PNG decoder,
// anything else is treated as JPEG.
func (d *Document) AddImagePage(data []byte, mimetype string, fit FitMode) error {
	imageType, cfg, err := probeImage(data, mimetype)
	if err != nil {
		return err
	}

	d.pdf.AddPage()

	x, y, w, h := placeImage(float64(cfg.Width), float64(cfg.Height), d.page, fit)

	opts := fpdf.ImageOptions{ImageType: imageType}
	name := fmt.Sprintf("page-%d-image", d.pdf.PageNo())
	d.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	d.pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")

	return d.pdf.Error()
}

// PageCount returns the number of pages added so far
func (d *Document) PageCount() int {
	return d.pdf.PageCount()
}

// Bytes serializes the document. Returns an error, and no bytes, if any
// prior drawing operation failed.
func (d *Document) Bytes() ([]byte, error) {
	if err := d.pdf.Error(); err != nil {
		return nil, fmt.Errorf("pdf assembly failed: %w", err)
	}

	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf serialization failed: %w", err)
	}

	return buf.Bytes(), nil
}

// probeImage validates the image bytes against the declared mimetype and
// returns the fpdf image type plus the decoded dimensions.
func probeImage(data []byte, mimetype string) (string, image.Config, error) {
	if strings.Contains(strings.ToLower(mimetype), "png") {
		cfg, err := png.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return "", image.Config{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
		}
		return "PNG", cfg, nil
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", image.Config{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return "JPG", cfg, nil
}

// placeImage computes the placement rectangle for an image on a page.
// FitContain scales by min(pageW/w, pageH/h) and centers the result;
// FitStretch covers the whole page.
func placeImage(imgW, imgH float64, page PageSpec, fit FitMode) (x, y, w, h float64) {
	if fit == FitStretch || imgW <= 0 || imgH <= 0 {
		return 0, 0, page.Width, page.Height
	}

	scale := page.Width / imgW
	if s := page.Height / imgH; s < scale {
		scale = s
	}

	w = imgW * scale
	h = imgH * scale
	x = (page.Width - w) / 2
	y = (page.Height - h) / 2
	return x, y, w, h
}
