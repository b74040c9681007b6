// Copyright © 2026, Zotero contributors.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xpdf

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ledongthuc/pdf"
	"github.com/zotero/cross-xpdf/logger"
)

// Letter size, used for pages without a usable MediaBox.
var defaultMediaBox = rect{0, 0, 612, 792}

var _ Document = (*PDFDocument)(nil)

// PDFDocument is a Document read from a PDF file.
type PDFDocument struct {
	r        *pdf.Reader
	ra       io.ReaderAt
	size     int64
	closer   io.Closer
	opts     LayoutOptions
	numPages int
}

// OpenPDF opens the PDF file at path. Pages are laid out according to
// opts.
func OpenPDF(path string, opts LayoutOptions) (*PDFDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	doc, err := NewPDFDocument(f, fi.Size(), opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	doc.closer = f
	logger.Debug(fmt.Sprintf("Opened PDF: path=%s pages=%d", path, doc.numPages), true)
	return doc, nil
}

// NewPDFDocument reads a PDF of the given size from ra.
func NewPDFDocument(ra io.ReaderAt, size int64, opts LayoutOptions) (doc *PDFDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("malformed PDF: %v", r)
		}
	}()
	r, err := pdf.NewReader(ra, size)
	if err != nil {
		return nil, err
	}
	if r.Trailer().Key("Root").IsNull() {
		return nil, errors.New("malformed PDF: missing document catalog")
	}
	return &PDFDocument{r: r, ra: ra, size: size, opts: opts, numPages: r.NumPage()}, nil
}

func (d *PDFDocument) NumPages() int { return d.numPages }

func (d *PDFDocument) PageMediaWidth(page int) float64 {
	box := d.mediaBox(page)
	return box.xMax - box.xMin
}

func (d *PDFDocument) PageMediaHeight(page int) float64 {
	box := d.mediaBox(page)
	return box.yMax - box.yMin
}

func (d *PDFDocument) mediaBox(page int) (box rect) {
	defer func() {
		if r := recover(); r != nil {
			box = defaultMediaBox
		}
	}()
	if page < 1 || page > d.numPages {
		return defaultMediaBox
	}
	return pageMediaBox(d.r.Page(page))
}

// pageMediaBox returns the normalized MediaBox of p, which may be
// inherited from the page tree.
func pageMediaBox(p pdf.Page) rect {
	v := p.V
	for depth := 0; depth < 32 && !v.IsNull(); depth++ {
		if mb := v.Key("MediaBox"); mb.Len() == 4 {
			box := noRect
			box = box.extend(mb.Index(0).Float64(), mb.Index(1).Float64())
			box = box.extend(mb.Index(2).Float64(), mb.Index(3).Float64())
			if box.xMax > box.xMin && box.yMax > box.yMin {
				return box
			}
			break
		}
		v = v.Key("Parent")
	}
	return defaultMediaBox
}

// Info returns the entries of the trailer's Info dictionary in the order
// they are stored in the file. When that order cannot be recovered the
// entries are sorted by key.
func (d *PDFDocument) Info() (info InfoDict) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn(fmt.Sprintf("bad Info dictionary: %v", r))
			info = nil
		}
	}()
	dict := d.r.Trailer().Key("Info")
	keys := dict.Keys()
	if order, ok := infoKeyOrder(d.ra, d.size); ok {
		keys = storedOrder(keys, order)
	}
	for _, key := range keys {
		v := dict.Key(key)
		e := InfoEntry{Key: key}
		if v.Kind() == pdf.String {
			e.Kind = InfoString
			e.Value = []byte(v.RawString())
		}
		info = append(info, e)
	}
	return info
}

// RenderPage interprets the page's content streams and lays out its text.
func (d *PDFDocument) RenderPage(page int) (layout *TextLayout, err error) {
	defer func() {
		if r := recover(); r != nil {
			layout, err = nil, fmt.Errorf("page %d: %v", page, r)
		}
	}()
	if page < 1 || page > d.numPages {
		return nil, fmt.Errorf("page %d out of range 1..%d", page, d.numPages)
	}
	p := d.r.Page(page)
	if p.V.IsNull() {
		return nil, fmt.Errorf("page %d not found in page tree", page)
	}
	pc := renderPage(p, pageMediaBox(p))
	return buildLayout(pc, d.opts), nil
}

// Close closes the underlying file. Later calls do nothing.
func (d *PDFDocument) Close() error {
	if d.closer == nil {
		return nil
	}
	err := d.closer.Close()
	d.closer = nil
	return err
}
