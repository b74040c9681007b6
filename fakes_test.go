// Copyright © 2026, Zotero contributors.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xpdf

import (
	"errors"
	"sync"
)

type fakePage struct {
	width, height float64
	layout        *TextLayout
	err           error
}

// fakeDoc is an in-memory Document recording which pages were rendered and
// how often it was closed.
type fakeDoc struct {
	mu       sync.Mutex
	pages    []fakePage
	info     InfoDict
	rendered []int
	closed   int
	events   *[]string
}

func (d *fakeDoc) NumPages() int { return len(d.pages) }

func (d *fakeDoc) page(n int) fakePage {
	if n < 1 || n > len(d.pages) {
		return fakePage{}
	}
	return d.pages[n-1]
}

func (d *fakeDoc) PageMediaWidth(n int) float64  { return d.page(n).width }
func (d *fakeDoc) PageMediaHeight(n int) float64 { return d.page(n).height }
func (d *fakeDoc) Info() InfoDict                { return d.info }

func (d *fakeDoc) RenderPage(n int) (*TextLayout, error) {
	d.mu.Lock()
	d.rendered = append(d.rendered, n)
	d.mu.Unlock()
	p := d.page(n)
	if p.err != nil {
		return nil, p.err
	}
	if p.layout == nil {
		return &TextLayout{}, nil
	}
	return p.layout, nil
}

func (d *fakeDoc) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	if d.events != nil {
		*d.events = append(*d.events, "document")
	}
	return nil
}

// singleWordLayout wraps w in one column, paragraph and line.
func singleWordLayout(w *Word) *TextLayout {
	return &TextLayout{Columns: []*Column{{
		XMin: w.XMin, YMin: w.YMin, XMax: w.XMax, YMax: w.YMax,
		Paragraphs: []*Paragraph{{
			XMin: w.XMin, YMin: w.YMin, XMax: w.XMax, YMax: w.YMax,
			Lines: []*Line{{
				XMin: w.XMin, YMin: w.YMin, XMax: w.XMax, YMax: w.YMax,
				Rotation: w.Rotation,
				Words:    []*Word{w},
			}},
		}},
	}}}
}

var errBoom = errors.New("boom")

// failingWriter accepts limit bytes and then fails every write.
type failingWriter struct {
	limit   int
	written int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.written+len(p) > w.limit {
		n := w.limit - w.written
		w.written = w.limit
		return n, errBoom
	}
	w.written += len(p)
	return len(p), nil
}
