// Copyright © 2026, Zotero contributors.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Package xpdf converts PDF documents into plain text or into a JSON
// description of their text layout.
//
// # Overview
//
// A conversion run is driven by a Driver. The driver opens a Document,
// resolves the requested page range and either streams the pages through
// the plain-text writer or hands the document to WriteDocJSON, which emits
// one JSON object of the form
//
//	{"metadata":{...},"totalPages":N,"pages":[[width,height,[columns...]],...]}
//
// Each page is rendered into a TextLayout, a four level tree of columns,
// paragraphs, lines and words. Layouts are produced on demand, one page at
// a time, and are never retained after the page has been written.
//
// Document is an interface. OpenPDF returns the implementation backed by
// github.com/ledongthuc/pdf; tests and other callers may supply their own.
package xpdf

// Document is an open document whose pages can be rendered into text
// layouts. Page numbers start at 1.
type Document interface {
	// NumPages returns the number of pages in the document.
	NumPages() int

	// PageMediaWidth and PageMediaHeight return the size of the page's
	// media box in points.
	PageMediaWidth(page int) float64
	PageMediaHeight(page int) float64

	// Info returns the document information dictionary.
	Info() InfoDict

	// RenderPage renders the page and returns its text layout.
	RenderPage(page int) (*TextLayout, error)

	// Close releases the document.
	Close() error
}

// InfoKind distinguishes the values stored in an information dictionary.
type InfoKind int

const (
	InfoOther InfoKind = iota
	InfoString
)

// InfoEntry is one key/value pair of a document information dictionary.
// Value holds the raw string bytes when Kind is InfoString.
type InfoEntry struct {
	Key   string
	Kind  InfoKind
	Value []byte
}

// InfoDict is a document information dictionary in stored order.
type InfoDict []InfoEntry

// TextLayout is the text of one rendered page.
type TextLayout struct {
	Columns []*Column
}

// A Column is a vertical region of a page holding paragraphs.
type Column struct {
	XMin, YMin, XMax, YMax float64
	Paragraphs             []*Paragraph
}

// A Paragraph is a group of consecutive lines.
type Paragraph struct {
	XMin, YMin, XMax, YMax float64
	Lines                  []*Line
}

// A Line is a sequence of words sharing a baseline and rotation.
type Line struct {
	XMin, YMin, XMax, YMax float64
	Rotation               int
	Words                  []*Word
}

// A Word is a run of glyphs. Coordinates are in points with the origin at
// the top left corner of the page and y growing downwards.
type Word struct {
	XMin, YMin, XMax, YMax float64
	FontSize               float64
	SpaceAfter             bool
	Baseline               float64
	// Rotation is the writing direction in quarter turns: 0 left to
	// right, 1 top to bottom, 2 right to left, 3 bottom to top.
	Rotation   int
	Underlined bool
	Font       *FontInfo // nil when the font is unknown
	Color      RGB
	Text       string
}

// FontInfo describes the font of a word. An empty Name means the font has
// no name.
type FontInfo struct {
	Name   string
	Bold   bool
	Italic bool
}

// RGB is a color with components in [0,1].
type RGB struct {
	R, G, B float64
}

// Bold reports whether the word's font is bold. Words without font
// information are not bold.
func (w *Word) Bold() bool {
	return w.Font != nil && w.Font.Bold
}

// Italic reports whether the word's font is italic. Words without font
// information are not italic.
func (w *Word) Italic() bool {
	return w.Font != nil && w.Font.Italic
}

// WordCount returns the number of words on the page.
func (l *TextLayout) WordCount() int {
	n := 0
	for _, col := range l.Columns {
		for _, par := range col.Paragraphs {
			for _, line := range par.Lines {
				n += len(line.Words)
			}
		}
	}
	return n
}
