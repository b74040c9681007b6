// Copyright © 2026, Zotero contributors.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xpdf

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/zotero/cross-xpdf/logger"
)

// jsonWriter writes to a buffered destination and remembers the first
// write error. Once an error is recorded every further write is dropped.
type jsonWriter struct {
	bw  *bufio.Writer
	buf []byte
	err error
}

func newJSONWriter(w io.Writer) *jsonWriter {
	return &jsonWriter{bw: bufio.NewWriter(w), buf: make([]byte, 0, 256)}
}

func (jw *jsonWriter) write(b []byte) {
	if jw.err != nil {
		return
	}
	_, jw.err = jw.bw.Write(b)
}

func (jw *jsonWriter) str(s string) {
	if jw.err != nil {
		return
	}
	_, jw.err = jw.bw.WriteString(s)
}

func (jw *jsonWriter) comma(first *bool) {
	if *first {
		*first = false
		return
	}
	jw.str(",")
}

func (jw *jsonWriter) float(f float64) {
	jw.buf = appendNumber(jw.buf[:0], f)
	jw.write(jw.buf)
}

func (jw *jsonWriter) int(i int) {
	jw.buf = strconv.AppendInt(jw.buf[:0], int64(i), 10)
	jw.write(jw.buf)
}

func (jw *jsonWriter) flag(b bool) {
	if b {
		jw.str("1")
	} else {
		jw.str("0")
	}
}

func (jw *jsonWriter) flush() error {
	if jw.err == nil {
		jw.err = jw.bw.Flush()
	}
	return jw.err
}

// appendNumber formats f the way C's "%g" does: six significant digits,
// no trailing zeros, exponent form below 1e-4 and from 1e6 on.
func appendNumber(dst []byte, f float64) []byte {
	switch {
	case math.IsNaN(f):
		return append(dst, "nan"...)
	case math.IsInf(f, 1):
		return append(dst, "inf"...)
	case math.IsInf(f, -1):
		return append(dst, "-inf"...)
	}
	return strconv.AppendFloat(dst, f, 'g', 6, 64)
}

// jsonExporter carries the state of one JSON export: the output encoding
// and the color and font tables, which span all pages of the run.
type jsonExporter struct {
	jw     *jsonWriter
	enc    *UnicodeMap
	colors SymbolTable
	fonts  SymbolTable
	text   []byte
	esc    []byte
}

// WriteDocJSON writes the metadata and the text layout of pages
// first..last of doc to w as a single JSON object. Text is converted to
// the output encoding enc. Pages are rendered and written one at a time;
// an empty range yields an empty "pages" array. On a write error the
// output is left truncated.
func WriteDocJSON(ctx context.Context, w io.Writer, doc Document, first, last int, enc *UnicodeMap) error {
	ex := &jsonExporter{jw: newJSONWriter(w), enc: enc}
	return ex.writeDoc(ctx, doc, first, last)
}

func (ex *jsonExporter) writeDoc(ctx context.Context, doc Document, first, last int) error {
	jw := ex.jw
	jw.str(`{"metadata":{`)
	ex.writeInfo(doc.Info())
	jw.str(`},"totalPages":`)
	jw.int(doc.NumPages())
	jw.str(`,"pages":[`)

	firstPage := true
	for page := first; page <= last; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		jw.comma(&firstPage)
		jw.str("[")
		jw.float(doc.PageMediaWidth(page))
		jw.str(",")
		jw.float(doc.PageMediaHeight(page))
		jw.str(",[")

		layout, err := doc.RenderPage(page)
		if err != nil {
			return fmt.Errorf("render page %d: %w", page, err)
		}
		ex.writeLayout(layout)
		jw.str("]]")

		if err := jw.flush(); err != nil {
			logger.Debug(fmt.Sprintf("JSON export: write failed: page=%d err=%v", page, err), true)
			return err
		}
		logger.Debug(fmt.Sprintf("JSON export: page written: page=%d colors=%d fonts=%d", page, ex.colors.Len(), ex.fonts.Len()), true)
	}
	jw.str("]}")
	return jw.flush()
}

// writeInfo writes the string entries of info. Keys that escape to the
// empty string are skipped.
func (ex *jsonExporter) writeInfo(info InfoDict) {
	jw := ex.jw
	first := true
	for _, e := range info {
		key := EscapeJSON([]byte(e.Key))
		if len(key) == 0 || e.Kind != InfoString {
			continue
		}
		jw.comma(&first)
		jw.str(`"`)
		jw.write(key)
		jw.str(`":"`)
		ex.text = EncodeTextString(ex.text[:0], e.Value, ex.enc)
		ex.esc = appendEscaped(ex.esc[:0], ex.text)
		jw.write(ex.esc)
		jw.str(`"`)
	}
}

// writeLayout writes the columns of a page. Columns and lines are wrapped
// in an extra array level and the fourth paragraph coordinate repeats
// YMin; consumers depend on both.
func (ex *jsonExporter) writeLayout(layout *TextLayout) {
	if layout == nil {
		return
	}
	jw := ex.jw
	firstCol := true
	for _, col := range layout.Columns {
		jw.comma(&firstCol)
		jw.str("[[")
		firstPar := true
		for _, par := range col.Paragraphs {
			jw.comma(&firstPar)
			jw.str("[")
			jw.float(par.XMin)
			jw.str(",")
			jw.float(par.YMin)
			jw.str(",")
			jw.float(par.XMax)
			jw.str(",")
			jw.float(par.YMin)
			jw.str(",[")
			firstLine := true
			for _, line := range par.Lines {
				jw.comma(&firstLine)
				jw.str("[[")
				firstWord := true
				for _, word := range line.Words {
					jw.comma(&firstWord)
					ex.writeWord(word)
				}
				jw.str("]]")
			}
			jw.str("]]")
		}
		jw.str("]]")
	}
}

func (ex *jsonExporter) writeWord(w *Word) {
	jw := ex.jw
	colorIdx := ex.colors.IndexOf(ColorKey(w.Color))
	fontIdx := 0
	if w.Font != nil && w.Font.Name != "" {
		fontIdx = ex.fonts.IndexOf(string(EscapeJSON([]byte(w.Font.Name))))
	}

	jw.str("[")
	for _, f := range [...]float64{w.XMin, w.YMin, w.XMax, w.YMax, w.FontSize} {
		jw.float(f)
		jw.str(",")
	}
	jw.flag(w.SpaceAfter)
	jw.str(",")
	jw.float(w.Baseline)
	jw.str(",")
	jw.int(w.Rotation)
	jw.str(",")
	jw.flag(w.Underlined)
	jw.str(",")
	jw.flag(w.Bold())
	jw.str(",")
	jw.flag(w.Italic())
	jw.str(",")
	jw.int(colorIdx)
	jw.str(",")
	jw.int(fontIdx)
	jw.str(`,"`)
	ex.text = ex.enc.AppendString(ex.text[:0], w.Text)
	ex.esc = appendEscaped(ex.esc[:0], ex.text)
	jw.write(ex.esc)
	jw.str(`"]`)
}
