// Copyright © 2026, Zotero contributors.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xpdf

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

const (
	// wordGap is the smallest gap between glyphs, in ems, that splits a word.
	wordGap = 0.1
	// lineSlack is the largest baseline difference, in ems, within a line.
	lineSlack = 0.5
	// paragraphGap is the largest vertical gap, in ems, within a paragraph.
	paragraphGap = 1.0
	// paragraphSizeRatio bounds the font size change within a paragraph.
	paragraphSizeRatio = 1.4
	// columnGap is the smallest horizontal gap, in ems, between columns.
	columnGap = 2.0
)

// LayoutOptions controls how glyphs are grouped into a TextLayout.
type LayoutOptions struct {
	Mode            LayoutMode
	ClipText        bool
	DiscardDiagonal bool
}

// layoutWord is a word with its box in the reading frame of its rotation:
// u runs along the writing direction, v across it in line order.
type layoutWord struct {
	w                      *Word
	uMin, uMax, vMin, vMax float64
	base                   float64
	seq                    int
	spaced                 bool
}

// frame maps a device box into the reading frame of rotation rot.
func frame(rot int, r rect) (uMin, uMax, vMin, vMax float64) {
	switch rot {
	case 1:
		return r.yMin, r.yMax, -r.xMax, -r.xMin
	case 2:
		return -r.xMax, -r.xMin, -r.yMax, -r.yMin
	case 3:
		return -r.yMax, -r.yMin, r.xMin, r.xMax
	default:
		return r.xMin, r.xMax, r.yMin, r.yMax
	}
}

func frameBase(rot int, base float64) float64 {
	if rot == 1 || rot == 2 {
		return -base
	}
	return base
}

// buildLayout groups the glyphs of a page into columns, paragraphs, lines
// and words.
func buildLayout(pc *pageContent, opts LayoutOptions) *TextLayout {
	var kept, clipped []glyph
	for _, g := range pc.glyphs {
		if g.diagonal && opts.DiscardDiagonal {
			continue
		}
		if g.clipped {
			if opts.ClipText {
				clipped = append(clipped, g)
			}
			continue
		}
		kept = append(kept, g)
	}

	layout := &TextLayout{Columns: layoutColumns(buildWords(kept, pc.rules), opts.Mode)}
	if len(clipped) > 0 {
		layout.Columns = append(layout.Columns, layoutColumns(buildWords(clipped, pc.rules), opts.Mode)...)
	}
	return layout
}

// buildWords joins glyphs, in content stream order, into words.
func buildWords(glyphs []glyph, rules []rule) []*layoutWord {
	var words []*layoutWord
	var cur []glyph
	flush := func(spaced bool) {
		if len(cur) > 0 {
			words = append(words, newLayoutWord(cur, len(words), spaced))
			cur = nil
		} else if spaced && len(words) > 0 {
			words[len(words)-1].spaced = true
		}
	}

	for _, g := range glyphs {
		if g.r == 0 {
			continue
		}
		if unicode.IsSpace(g.r) {
			flush(true)
			continue
		}
		if len(cur) > 0 && !continuesWord(cur[len(cur)-1], g) {
			flush(false)
		}
		cur = append(cur, g)
	}
	flush(false)

	for _, w := range words {
		w.w.Underlined = underlined(w.w, rules)
	}
	return words
}

func continuesWord(prev, g glyph) bool {
	if g.rot != prev.rot || g.diagonal != prev.diagonal || g.font != prev.font || g.color != prev.color {
		return false
	}
	size := math.Max(prev.size, g.size)
	if math.Abs(g.base-prev.base) > 0.2*size {
		return false
	}
	if math.Max(prev.size, g.size) > 1.5*math.Min(prev.size, g.size) {
		return false
	}
	_, prevEnd, _, _ := frame(prev.rot, prev.box)
	start, _, _, _ := frame(g.rot, g.box)
	gap := start - prevEnd
	return gap < wordGap*size && gap > -0.5*size
}

func newLayoutWord(glyphs []glyph, seq int, spaced bool) *layoutWord {
	first := glyphs[0]
	box := noRect
	var sb strings.Builder
	for _, g := range glyphs {
		box = box.union(g.box)
		sb.WriteRune(g.r)
	}
	w := &Word{
		XMin: box.xMin, YMin: box.yMin, XMax: box.xMax, YMax: box.yMax,
		FontSize: first.size,
		Baseline: first.base,
		Rotation: first.rot,
		Font:     first.font,
		Color:    first.color,
		Text:     sb.String(),
	}
	lw := &layoutWord{w: w, base: frameBase(first.rot, first.base), seq: seq, spaced: spaced}
	lw.uMin, lw.uMax, lw.vMin, lw.vMax = frame(first.rot, box)
	return lw
}

// underlined reports whether a rule runs under w, between its baseline and
// a little below it, covering the word's width.
func underlined(w *Word, rules []rule) bool {
	if w.Rotation != 0 && w.Rotation != 2 {
		return false
	}
	slack := 0.5 * w.FontSize
	for _, r := range rules {
		if r.x0 > w.XMin+slack || r.x1 < w.XMax-slack {
			continue
		}
		below := r.y - w.Baseline
		if w.Rotation == 2 {
			below = -below
		}
		if below >= -0.1*w.FontSize && below <= 0.4*w.FontSize {
			return true
		}
	}
	return false
}

// layoutColumns arranges words into columns according to mode. Each
// rotation is laid out on its own, horizontal text first.
func layoutColumns(words []*layoutWord, mode LayoutMode) []*Column {
	if len(words) == 0 {
		return nil
	}
	if mode == RawOrder {
		return []*Column{rawColumn(words)}
	}

	var byRot [4][]*layoutWord
	for _, w := range words {
		byRot[w.w.Rotation] = append(byRot[w.w.Rotation], w)
	}

	var cols []*Column
	for _, group := range byRot {
		if len(group) == 0 {
			continue
		}
		if mode == SimpleLayout {
			cols = append(cols, newColumn(buildParagraphs(buildLines(group))))
			continue
		}
		for _, colWords := range splitColumns(group) {
			cols = append(cols, newColumn(buildParagraphs(buildLines(colWords))))
		}
	}
	return cols
}

// splitColumns cuts words at gaps in their projection onto the writing
// direction that are at least columnGap ems wide.
func splitColumns(words []*layoutWord) [][]*layoutWord {
	em := medianSize(words)
	sorted := append([]*layoutWord(nil), words...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].uMin < sorted[j].uMin })

	type slab struct{ lo, hi float64 }
	slabs := []slab{{sorted[0].uMin, sorted[0].uMax}}
	for _, w := range sorted[1:] {
		last := &slabs[len(slabs)-1]
		if w.uMin-last.hi < columnGap*em {
			last.hi = math.Max(last.hi, w.uMax)
			continue
		}
		slabs = append(slabs, slab{w.uMin, w.uMax})
	}

	out := make([][]*layoutWord, len(slabs))
	for _, w := range words {
		for i, s := range slabs {
			if w.uMin >= s.lo && w.uMin <= s.hi {
				out[i] = append(out[i], w)
				break
			}
		}
	}
	return out
}

func medianSize(words []*layoutWord) float64 {
	sizes := make([]float64, len(words))
	for i, w := range words {
		sizes[i] = w.w.FontSize
	}
	sort.Float64s(sizes)
	if m := sizes[len(sizes)/2]; m > 0 {
		return m
	}
	return 1
}

// layoutLine is a line under construction.
type layoutLine struct {
	words                  []*layoutWord
	uMin, uMax, vMin, vMax float64
	base                   float64
	size                   float64
}

func (l *layoutLine) add(w *layoutWord) {
	if len(l.words) == 0 {
		l.uMin, l.uMax, l.vMin, l.vMax = w.uMin, w.uMax, w.vMin, w.vMax
		l.base, l.size = w.base, w.w.FontSize
	} else {
		l.uMin, l.uMax = math.Min(l.uMin, w.uMin), math.Max(l.uMax, w.uMax)
		l.vMin, l.vMax = math.Min(l.vMin, w.vMin), math.Max(l.vMax, w.vMax)
		l.size = math.Max(l.size, w.w.FontSize)
	}
	l.words = append(l.words, w)
}

// buildLines groups words of one rotation into lines by baseline and sorts
// the lines in reading order.
func buildLines(words []*layoutWord) []*layoutLine {
	sorted := append([]*layoutWord(nil), words...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].base != sorted[j].base {
			return sorted[i].base < sorted[j].base
		}
		return sorted[i].uMin < sorted[j].uMin
	})

	var lines []*layoutLine
	var cur *layoutLine
	for _, w := range sorted {
		if cur == nil || w.base-cur.base > lineSlack*math.Min(cur.size, w.w.FontSize) {
			cur = &layoutLine{}
			lines = append(lines, cur)
		}
		cur.add(w)
	}
	for _, l := range lines {
		sort.SliceStable(l.words, func(i, j int) bool { return l.words[i].uMin < l.words[j].uMin })
		setSpacing(l.words)
	}
	return lines
}

// setSpacing decides SpaceAfter for the words of a line. The last word of
// a line never has a space after it.
func setSpacing(words []*layoutWord) {
	for i, w := range words {
		if i == len(words)-1 {
			w.w.SpaceAfter = false
			continue
		}
		next := words[i+1]
		gap := next.uMin - w.uMax
		w.w.SpaceAfter = gap >= wordGap*w.w.FontSize || (w.spaced && next.seq == w.seq+1)
	}
}

// buildParagraphs joins consecutive lines that are close together, overlap
// horizontally and use similar font sizes.
func buildParagraphs(lines []*layoutLine) []*Paragraph {
	var pars []*Paragraph
	var cur []*layoutLine
	for i, l := range lines {
		if i > 0 && !continuesParagraph(lines[i-1], l) {
			pars = append(pars, newParagraph(cur))
			cur = nil
		}
		cur = append(cur, l)
	}
	if len(cur) > 0 {
		pars = append(pars, newParagraph(cur))
	}
	return pars
}

func continuesParagraph(prev, l *layoutLine) bool {
	size := math.Max(prev.size, l.size)
	if l.vMin-prev.vMax > paragraphGap*size {
		return false
	}
	if math.Max(prev.size, l.size) > paragraphSizeRatio*math.Min(prev.size, l.size) {
		return false
	}
	return l.uMin < prev.uMax && prev.uMin < l.uMax
}

// rawColumn keeps words in content stream order. A line ends when the
// baseline moves or the text jumps backwards.
func rawColumn(words []*layoutWord) *Column {
	var lines []*layoutLine
	var cur *layoutLine
	for _, w := range words {
		if cur == nil || !continuesRawLine(cur, w) {
			cur = &layoutLine{}
			lines = append(lines, cur)
		}
		cur.add(w)
	}
	for _, l := range lines {
		setSpacing(l.words)
	}

	var pars []*Paragraph
	var run []*layoutLine
	for i, l := range lines {
		if i > 0 && (l.vMin-lines[i-1].vMax > paragraphGap*l.size || l.vMax < lines[i-1].vMin) {
			pars = append(pars, newParagraph(run))
			run = nil
		}
		run = append(run, l)
	}
	pars = append(pars, newParagraph(run))
	return newColumn(pars)
}

func continuesRawLine(l *layoutLine, w *layoutWord) bool {
	last := l.words[len(l.words)-1]
	if last.w.Rotation != w.w.Rotation {
		return false
	}
	if math.Abs(w.base-last.base) > lineSlack*math.Min(last.w.FontSize, w.w.FontSize) {
		return false
	}
	return w.uMin >= last.uMax-last.w.FontSize
}

func newParagraph(lines []*layoutLine) *Paragraph {
	par := &Paragraph{}
	box := noRect
	for _, l := range lines {
		line := &Line{Rotation: l.words[0].w.Rotation}
		lbox := noRect
		for _, w := range l.words {
			line.Words = append(line.Words, w.w)
			lbox = lbox.union(rect{w.w.XMin, w.w.YMin, w.w.XMax, w.w.YMax})
		}
		line.XMin, line.YMin, line.XMax, line.YMax = lbox.xMin, lbox.yMin, lbox.xMax, lbox.yMax
		par.Lines = append(par.Lines, line)
		box = box.union(lbox)
	}
	par.XMin, par.YMin, par.XMax, par.YMax = box.xMin, box.yMin, box.xMax, box.yMax
	return par
}

func newColumn(pars []*Paragraph) *Column {
	col := &Column{Paragraphs: pars}
	box := noRect
	for _, p := range pars {
		box = box.union(rect{p.XMin, p.YMin, p.XMax, p.YMax})
	}
	col.XMin, col.YMin, col.XMax, col.YMax = box.xMin, box.yMin, box.xMax, box.yMax
	return col
}
