// Copyright © 2026, Zotero contributors.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xpdf

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/zotero/cross-xpdf/logger"
)

// textWriter writes page layouts as plain text in the output encoding. It
// owns its destination and closes it in Close.
type textWriter struct {
	dst        io.WriteCloser
	bw         *bufio.Writer
	enc        *UnicodeMap
	mode       LayoutMode
	eol        string
	pageBreaks bool
	pitch      float64
	spacing    float64
	buf        []byte
	err        error
	closed     bool
}

func newTextWriter(dst io.WriteCloser, cfg *Config, enc *UnicodeMap) *textWriter {
	tw := &textWriter{
		dst:        dst,
		bw:         bufio.NewWriter(dst),
		enc:        enc,
		mode:       cfg.Mode,
		eol:        cfg.EOL(),
		pageBreaks: !cfg.NoPageBreaks,
		pitch:      cfg.FixedPitch,
		spacing:    cfg.FixedLineSpacing,
	}
	if cfg.InsertBOM && enc.IsUnicode() {
		tw.writeString("\ufeff")
	}
	return tw
}

func (tw *textWriter) writeString(s string) {
	if tw.err != nil {
		return
	}
	tw.buf = tw.enc.AppendString(tw.buf[:0], s)
	_, tw.err = tw.bw.Write(tw.buf)
}

// WritePage writes the text of one page followed by a form feed unless
// page breaks are off.
func (tw *textWriter) WritePage(layout *TextLayout) error {
	var sb strings.Builder
	switch tw.mode {
	case PhysLayout:
		tw.physical(&sb, layout, true)
	case TableLayout:
		tw.physical(&sb, layout, false)
	case LinePrinter:
		tw.linePrinter(&sb, layout)
	default:
		tw.reading(&sb, layout)
	}
	if tw.pageBreaks {
		sb.WriteByte('\f')
	}
	tw.writeString(sb.String())
	if tw.err == nil {
		tw.err = tw.bw.Flush()
	}
	return tw.err
}

// Close flushes buffered text and closes the destination. Later calls
// return the first result.
func (tw *textWriter) Close() error {
	if tw.closed {
		return tw.err
	}
	tw.closed = true
	if tw.err == nil {
		tw.err = tw.bw.Flush()
	}
	if err := tw.dst.Close(); err != nil && tw.err == nil {
		tw.err = err
	}
	return tw.err
}

func lineText(line *Line) string {
	var sb strings.Builder
	for _, w := range line.Words {
		sb.WriteString(w.Text)
		if w.SpaceAfter {
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

// reading writes columns one after the other, each paragraph followed by
// an empty line.
func (tw *textWriter) reading(sb *strings.Builder, layout *TextLayout) {
	for _, col := range layout.Columns {
		for _, par := range col.Paragraphs {
			for _, line := range par.Lines {
				sb.WriteString(lineText(line))
				sb.WriteString(tw.eol)
			}
			sb.WriteString(tw.eol)
		}
	}
}

// allLines returns the horizontal lines of a page sorted by baseline and
// the remaining lines in layout order.
func allLines(layout *TextLayout) (horizontal, other []*Line) {
	for _, col := range layout.Columns {
		for _, par := range col.Paragraphs {
			for _, line := range par.Lines {
				if line.Rotation == 0 && len(line.Words) > 0 {
					horizontal = append(horizontal, line)
				} else {
					other = append(other, line)
				}
			}
		}
	}
	sort.SliceStable(horizontal, func(i, j int) bool {
		return horizontal[i].Words[0].Baseline < horizontal[j].Words[0].Baseline
	})
	return horizontal, other
}

// charWidth returns the grid pitch: the configured one or the average
// character width of the page.
func (tw *textWriter) charWidth(lines []*Line) float64 {
	if tw.pitch > 0 {
		return tw.pitch
	}
	var width float64
	var n int
	for _, line := range lines {
		for _, w := range line.Words {
			width += w.XMax - w.XMin
			n += utf8.RuneCountInString(w.Text)
		}
	}
	if n == 0 || width <= 0 {
		return 7.2
	}
	return math.Max(width/float64(n), 1)
}

// lineSpacing returns the configured line spacing or 1.2 times the median
// font size.
func (tw *textWriter) lineSpacing(lines []*Line) float64 {
	if tw.spacing > 0 {
		return tw.spacing
	}
	var sizes []float64
	for _, line := range lines {
		for _, w := range line.Words {
			sizes = append(sizes, w.FontSize)
		}
	}
	if len(sizes) == 0 {
		return 12
	}
	sort.Float64s(sizes)
	return math.Max(1.2*sizes[len(sizes)/2], 1)
}

// textRow is one output row of the character grid.
type textRow struct {
	base  float64
	words []*Word
}

func groupRows(lines []*Line) []*textRow {
	var rows []*textRow
	for _, line := range lines {
		base := line.Words[0].Baseline
		size := line.Words[0].FontSize
		if n := len(rows); n > 0 && base-rows[n-1].base < lineSlack*size {
			rows[n-1].words = append(rows[n-1].words, line.Words...)
			continue
		}
		rows = append(rows, &textRow{base: base, words: append([]*Word(nil), line.Words...)})
	}
	for _, r := range rows {
		sort.SliceStable(r.words, func(i, j int) bool { return r.words[i].XMin < r.words[j].XMin })
	}
	return rows
}

// gridLine places words at the character column matching their position.
// Words never overlap; a word with SpaceAfter keeps one blank after it.
func gridLine(words []*Word, pitch float64) string {
	var line []rune
	var prevSpace bool
	for _, w := range words {
		col := int(w.XMin/pitch + 0.5)
		if col < len(line) {
			col = len(line)
		}
		if len(line) > 0 && prevSpace && col == len(line) {
			col++
		}
		for len(line) < col {
			line = append(line, ' ')
		}
		line = append(line, []rune(w.Text)...)
		prevSpace = w.SpaceAfter
	}
	return string(line)
}

// physical writes horizontal text on a character grid that keeps its
// position on the page. With blankLines vertical gaps become empty lines.
func (tw *textWriter) physical(sb *strings.Builder, layout *TextLayout, blankLines bool) {
	lines, other := allLines(layout)
	pitch := tw.charWidth(lines)
	spacing := tw.lineSpacing(lines)
	rows := groupRows(lines)
	for i, row := range rows {
		if blankLines && i > 0 {
			for gap := int(math.Round((row.base-rows[i-1].base)/spacing)) - 1; gap > 0; gap-- {
				sb.WriteString(tw.eol)
			}
		}
		sb.WriteString(gridLine(row.words, pitch))
		sb.WriteString(tw.eol)
	}
	for _, line := range other {
		sb.WriteString(lineText(line))
		sb.WriteString(tw.eol)
	}
}

// linePrinter writes every grid row from the top of the page, using a
// fixed pitch and line spacing.
func (tw *textWriter) linePrinter(sb *strings.Builder, layout *TextLayout) {
	lines, other := allLines(layout)
	pitch := tw.charWidth(lines)
	spacing := tw.lineSpacing(lines)
	next := 0
	for _, row := range groupRows(lines) {
		n := int(row.base / spacing)
		for ; next < n; next++ {
			sb.WriteString(tw.eol)
		}
		sb.WriteString(gridLine(row.words, pitch))
		sb.WriteString(tw.eol)
		next++
	}
	for _, line := range other {
		sb.WriteString(lineText(line))
		sb.WriteString(tw.eol)
	}
	logger.Debug(fmt.Sprintf("Line printer page: pitch=%g spacing=%g rows=%d", pitch, spacing, next), true)
}
