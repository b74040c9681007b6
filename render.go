// Copyright © 2026, Zotero contributors.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xpdf

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/zotero/cross-xpdf/logger"
)

type matrix [3][3]float64

var ident = matrix{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

func (x matrix) mul(y matrix) matrix {
	var z matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				z[i][j] += x[i][k] * y[k][j]
			}
		}
	}
	return z
}

// apply maps the point (px, py) through x.
func (x matrix) apply(px, py float64) (float64, float64) {
	return px*x[0][0] + py*x[1][0] + x[2][0], px*x[0][1] + py*x[1][1] + x[2][1]
}

func matrixFrom(args []pdf.Value) matrix {
	var m matrix
	for i := 0; i < 6; i++ {
		m[i/2][i%2] = args[i].Float64()
	}
	m[2][2] = 1
	return m
}

// rect is an axis-aligned box. The zero value is not empty; use noRect
// as the start of a union.
type rect struct {
	xMin, yMin, xMax, yMax float64
}

var noRect = rect{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}

func (r rect) extend(x, y float64) rect {
	return rect{math.Min(r.xMin, x), math.Min(r.yMin, y), math.Max(r.xMax, x), math.Max(r.yMax, y)}
}

func (r rect) union(o rect) rect {
	return rect{math.Min(r.xMin, o.xMin), math.Min(r.yMin, o.yMin), math.Max(r.xMax, o.xMax), math.Max(r.yMax, o.yMax)}
}

func (r rect) intersect(o rect) rect {
	return rect{math.Max(r.xMin, o.xMin), math.Max(r.yMin, o.yMin), math.Min(r.xMax, o.xMax), math.Min(r.yMax, o.yMax)}
}

func (r rect) empty() bool {
	return r.xMin > r.xMax || r.yMin > r.yMax
}

func (r rect) contains(x, y float64) bool {
	return x >= r.xMin && x <= r.xMax && y >= r.yMin && y <= r.yMax
}

// glyph is one character placed on the page, in device space: points from
// the top left corner of the media box, y growing downwards.
type glyph struct {
	r        rune
	box      rect
	base     float64 // baseline y for rotations 0 and 2, x for 1 and 3
	size     float64
	rot      int
	diagonal bool
	font     *FontInfo
	color    RGB
	clipped  bool
}

// rule is a horizontal line segment drawn on the page, a candidate
// underline.
type rule struct {
	x0, x1, y float64
}

// pageContent is everything the interpreter collects from one page.
type pageContent struct {
	glyphs []glyph
	rules  []rule
}

// fontState caches what the interpreter needs from one font resource.
type fontState struct {
	enc          pdf.TextEncoding
	font         pdf.Font
	info         *FontInfo
	twoByte      bool
	scale        float64 // glyph space to text space
	ascent       float64
	descent      float64
	cidWidths    map[int]float64
	defaultWidth float64
}

const (
	flagItalic    = 1 << 6
	flagForceBold = 1 << 18
)

func newFontState(f pdf.Font) *fontState {
	fs := &fontState{font: f, enc: f.Encoder(), scale: 0.001}
	if fs.enc == nil {
		fs.enc = nopEncoding{}
	}

	name := f.BaseFont()
	desc := f.V.Key("FontDescriptor")
	switch f.V.Key("Subtype").Name() {
	case "Type0":
		fs.twoByte = true
		d := f.V.Key("DescendantFonts").Index(0)
		desc = d.Key("FontDescriptor")
		fs.defaultWidth = 1000
		if dw := d.Key("DW"); dw.Kind() == pdf.Integer || dw.Kind() == pdf.Real {
			fs.defaultWidth = dw.Float64()
		}
		fs.cidWidths = parseCIDWidths(d.Key("W"))
	case "Type3":
		if fm := f.V.Key("FontMatrix"); fm.Len() == 6 && fm.Index(0).Float64() != 0 {
			fs.scale = fm.Index(0).Float64()
		}
	}

	fs.ascent = desc.Key("Ascent").Float64() / 1000
	fs.descent = desc.Key("Descent").Float64() / 1000
	if fs.ascent <= 0 || fs.ascent > 2 {
		fs.ascent = 0.95
	}
	if fs.descent >= 0 || fs.descent < -1 {
		fs.descent = -0.35
	}

	if name != "" || !desc.IsNull() {
		flags := desc.Key("Flags").Int64()
		lower := strings.ToLower(stripSubsetTag(name))
		fs.info = &FontInfo{
			Name: name,
			Bold: flags&flagForceBold != 0 || desc.Key("FontWeight").Float64() >= 600 ||
				containsAny(lower, "bold", "black", "heavy", "semibold", "demi"),
			Italic: flags&flagItalic != 0 || desc.Key("ItalicAngle").Float64() != 0 ||
				containsAny(lower, "italic", "oblique"),
		}
	}
	return fs
}

// stripSubsetTag removes the "ABCDEF+" prefix of embedded font subsets.
func stripSubsetTag(name string) string {
	if i := strings.IndexByte(name, '+'); i == 6 {
		return name[i+1:]
	}
	return name
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// parseCIDWidths reads a CIDFont W array: "c [w1 w2 ...]" and "c1 c2 w"
// entries.
func parseCIDWidths(w pdf.Value) map[int]float64 {
	if w.Len() == 0 {
		return nil
	}
	out := make(map[int]float64)
	for i := 0; i < w.Len(); {
		first := int(w.Index(i).Int64())
		if i+1 >= w.Len() {
			break
		}
		next := w.Index(i + 1)
		if next.Kind() == pdf.Array {
			for j := 0; j < next.Len(); j++ {
				out[first+j] = next.Index(j).Float64()
			}
			i += 2
			continue
		}
		if i+2 >= w.Len() {
			break
		}
		last := int(next.Int64())
		width := w.Index(i + 2).Float64()
		for c := first; c <= last && c-first < 0xffff; c++ {
			out[c] = width
		}
		i += 3
	}
	return out
}

// codes splits a shown string into character codes.
func (fs *fontState) codes(raw string) []int {
	if fs.twoByte {
		out := make([]int, 0, len(raw)/2)
		for i := 0; i+1 < len(raw); i += 2 {
			out = append(out, int(raw[i])<<8|int(raw[i+1]))
		}
		return out
	}
	out := make([]int, len(raw))
	for i := 0; i < len(raw); i++ {
		out[i] = int(raw[i])
	}
	return out
}

// width returns the advance of code in text space units per unit of font
// size. Fonts without widths fall back to half an em, a quarter for the
// space.
func (fs *fontState) width(code int) float64 {
	var w float64
	if fs.twoByte {
		w = fs.defaultWidth
		if cw, ok := fs.cidWidths[code]; ok {
			w = cw
		}
	} else {
		w = fs.font.Width(code)
	}
	if w <= 0 {
		if code == ' ' {
			return 0.25
		}
		return 0.5
	}
	return w * fs.scale
}

type nopEncoding struct{}

func (nopEncoding) Decode(raw string) string { return raw }

// gstate is the part of the graphics state the text extractor tracks.
type gstate struct {
	Tc    float64
	Tw    float64
	Th    float64
	Tl    float64
	Tf    *fontState
	Tfs   float64
	Tmode int
	Trise float64
	Tm    matrix
	Tlm   matrix
	CTM   matrix
	fill  RGB
	clip  rect
}

// resourceScope is the resource dictionary in effect for a content stream,
// with the fonts already loaded from it.
type resourceScope struct {
	res   pdf.Value
	fonts map[string]*fontState
}

func (s *resourceScope) font(name string) *fontState {
	if fs, ok := s.fonts[name]; ok {
		return fs
	}
	fs := newFontState(pdf.Font{V: s.res.Key("Font").Key(name)})
	s.fonts[name] = fs
	return fs
}

const maxFormDepth = 8

// interpreter runs the text-relevant subset of the PDF content stream
// operators and records glyphs and rules in device space.
type interpreter struct {
	page    rect // media box in user space
	g       gstate
	gstack  []gstate
	scope   *resourceScope
	depth   int
	out     pageContent
	noFont  *fontState
	path    rect
	lines   []rule
	rects   []rect
	curX    float64
	curY    float64
	clipNow bool
}

// renderPage interprets the content streams of p. box is the page's media
// box. Syntax errors in a content stream end that stream; the glyphs seen
// before the error are kept.
func renderPage(p pdf.Page, box rect) *pageContent {
	in := &interpreter{
		page: box,
		g: gstate{
			Th:   1,
			CTM:  ident,
			Tm:   ident,
			Tlm:  ident,
			clip: rect{0, 0, box.xMax - box.xMin, box.yMax - box.yMin},
		},
		scope:  &resourceScope{res: p.Resources(), fonts: make(map[string]*fontState)},
		noFont: &fontState{enc: nopEncoding{}, scale: 0.001, ascent: 0.95, descent: -0.35},
		path:   noRect,
	}

	contents := p.V.Key("Contents")
	switch contents.Kind() {
	case pdf.Stream:
		in.run(contents)
	case pdf.Array:
		for i := 0; i < contents.Len(); i++ {
			in.run(contents.Index(i))
		}
	}
	logger.Debug(fmt.Sprintf("Render: page interpreted: glyphs=%d rules=%d", len(in.out.glyphs), len(in.out.rules)), true)
	return &in.out
}

func (in *interpreter) run(strm pdf.Value) {
	if strm.Kind() != pdf.Stream {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn(fmt.Sprintf("content stream error: %v", r))
		}
	}()
	pdf.Interpret(strm, func(stk *pdf.Stack, op string) {
		n := stk.Len()
		args := make([]pdf.Value, n)
		for i := n - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}
		in.do(op, args)
	})
}

func (in *interpreter) toDevice(x, y float64) (float64, float64) {
	return x - in.page.xMin, in.page.yMax - y
}

// userToDevice maps a point in the current user space to device space.
func (in *interpreter) userToDevice(x, y float64) (float64, float64) {
	return in.toDevice(in.g.CTM.apply(x, y))
}

func argsOK(op string, args []pdf.Value, n int) bool {
	if len(args) < n {
		logger.Debug(fmt.Sprintf("bad %s operator: %d args", op, len(args)), true)
		return false
	}
	return true
}

func (in *interpreter) do(op string, args []pdf.Value) {
	g := &in.g
	switch op {
	default:
		return

	case "cm": // update CTM
		if !argsOK(op, args, 6) {
			return
		}
		g.CTM = matrixFrom(args).mul(g.CTM)

	case "q": // save graphics state
		in.gstack = append(in.gstack, *g)

	case "Q": // restore graphics state
		n := len(in.gstack) - 1
		if n < 0 {
			return
		}
		*g = in.gstack[n]
		in.gstack = in.gstack[:n]

	case "g": // fill gray
		if argsOK(op, args, 1) {
			v := args[0].Float64()
			g.fill = RGB{v, v, v}
		}
	case "rg": // fill rgb
		if argsOK(op, args, 3) {
			g.fill = RGB{args[0].Float64(), args[1].Float64(), args[2].Float64()}
		}
	case "k": // fill cmyk
		if argsOK(op, args, 4) {
			g.fill = cmykToRGB(args[0].Float64(), args[1].Float64(), args[2].Float64(), args[3].Float64())
		}
	case "cs": // fill color space, color resets to black
		g.fill = RGB{}
	case "sc", "scn": // fill color in the current space
		nums := make([]float64, 0, len(args))
		for _, a := range args {
			if k := a.Kind(); k == pdf.Integer || k == pdf.Real {
				nums = append(nums, a.Float64())
			}
		}
		switch len(nums) {
		case 1:
			g.fill = RGB{nums[0], nums[0], nums[0]}
		case 3:
			g.fill = RGB{nums[0], nums[1], nums[2]}
		case 4:
			g.fill = cmykToRGB(nums[0], nums[1], nums[2], nums[3])
		}

	case "m": // moveto
		if argsOK(op, args, 2) {
			in.curX, in.curY = in.userToDevice(args[0].Float64(), args[1].Float64())
			in.path = in.path.extend(in.curX, in.curY)
		}
	case "l": // lineto
		if argsOK(op, args, 2) {
			x, y := in.userToDevice(args[0].Float64(), args[1].Float64())
			if math.Abs(y-in.curY) < 0.5 && x != in.curX {
				in.lines = append(in.lines, rule{math.Min(x, in.curX), math.Max(x, in.curX), (y + in.curY) / 2})
			}
			in.curX, in.curY = x, y
			in.path = in.path.extend(x, y)
		}
	case "c", "v", "y": // curves
		for i := 0; i+1 < len(args); i += 2 {
			x, y := in.userToDevice(args[i].Float64(), args[i+1].Float64())
			in.path = in.path.extend(x, y)
			in.curX, in.curY = x, y
		}
	case "re": // append rectangle to path
		if !argsOK(op, args, 4) {
			return
		}
		x, y, w, h := args[0].Float64(), args[1].Float64(), args[2].Float64(), args[3].Float64()
		r := noRect
		for _, p := range [4][2]float64{{x, y}, {x + w, y}, {x, y + h}, {x + w, y + h}} {
			dx, dy := in.userToDevice(p[0], p[1])
			r = r.extend(dx, dy)
		}
		in.rects = append(in.rects, r)
		in.path = in.path.union(r)
	case "W", "W*": // clip
		in.clipNow = true
	case "S", "s": // stroke
		in.out.rules = append(in.out.rules, in.lines...)
		in.endPath()
	case "f", "F", "f*", "B", "B*", "b", "b*": // fill
		for _, r := range in.rects {
			if h, w := r.yMax-r.yMin, r.xMax-r.xMin; h <= 3 && w > 3*h {
				in.out.rules = append(in.out.rules, rule{r.xMin, r.xMax, (r.yMin + r.yMax) / 2})
			}
		}
		in.endPath()
	case "n": // end path
		in.endPath()

	case "Do": // paint XObject
		if argsOK(op, args, 1) {
			in.doXObject(args[0].Name())
		}

	case "BT": // begin text
		g.Tm = ident
		g.Tlm = g.Tm

	case "ET": // end text

	case "T*": // move to start of next line
		in.nextLine()

	case "Tc": // set character spacing
		if argsOK(op, args, 1) {
			g.Tc = args[0].Float64()
		}

	case "TD": // move text position and set leading
		if !argsOK(op, args, 2) {
			return
		}
		g.Tl = -args[1].Float64()
		fallthrough
	case "Td": // move text position
		if !argsOK(op, args, 2) {
			return
		}
		x := matrix{{1, 0, 0}, {0, 1, 0}, {args[0].Float64(), args[1].Float64(), 1}}
		g.Tlm = x.mul(g.Tlm)
		g.Tm = g.Tlm

	case "Tf": // set text font and size
		if !argsOK(op, args, 2) {
			return
		}
		g.Tf = in.scope.font(args[0].Name())
		g.Tfs = args[1].Float64()

	case "\"": // set spacing, move to next line, and show text
		if !argsOK(op, args, 3) {
			return
		}
		g.Tw = args[0].Float64()
		g.Tc = args[1].Float64()
		args = args[2:]
		fallthrough
	case "'": // move to next line and show text
		if !argsOK(op, args, 1) {
			return
		}
		in.nextLine()
		fallthrough
	case "Tj": // show text
		if argsOK(op, args, 1) {
			in.showText(args[0].RawString())
		}

	case "TJ": // show text, allowing individual glyph positioning
		if !argsOK(op, args, 1) {
			return
		}
		v := args[0]
		for i := 0; i < v.Len(); i++ {
			x := v.Index(i)
			if x.Kind() == pdf.String {
				in.showText(x.RawString())
			} else {
				tx := -x.Float64() / 1000 * g.Tfs * g.Th
				g.Tm = matrix{{1, 0, 0}, {0, 1, 0}, {tx, 0, 1}}.mul(g.Tm)
			}
		}

	case "TL": // set text leading
		if argsOK(op, args, 1) {
			g.Tl = args[0].Float64()
		}

	case "Tm": // set text matrix and line matrix
		if argsOK(op, args, 6) {
			g.Tm = matrixFrom(args)
			g.Tlm = g.Tm
		}

	case "Tr": // set text rendering mode
		if argsOK(op, args, 1) {
			g.Tmode = int(args[0].Int64())
		}

	case "Ts": // set text rise
		if argsOK(op, args, 1) {
			g.Trise = args[0].Float64()
		}

	case "Tw": // set word spacing
		if argsOK(op, args, 1) {
			g.Tw = args[0].Float64()
		}

	case "Tz": // set horizontal text scaling
		if argsOK(op, args, 1) {
			g.Th = args[0].Float64() / 100
		}
	}
}

func (in *interpreter) nextLine() {
	x := matrix{{1, 0, 0}, {0, 1, 0}, {0, -in.g.Tl, 1}}
	in.g.Tlm = x.mul(in.g.Tlm)
	in.g.Tm = in.g.Tlm
}

// endPath finishes the current path, applying a pending clip.
func (in *interpreter) endPath() {
	if in.clipNow && !in.path.empty() {
		in.g.clip = in.g.clip.intersect(in.path)
	}
	in.clipNow = false
	in.path = noRect
	in.lines = in.lines[:0]
	in.rects = in.rects[:0]
}

func (in *interpreter) doXObject(name string) {
	xobj := in.scope.res.Key("XObject").Key(name)
	if xobj.Key("Subtype").Name() != "Form" {
		return
	}
	if in.depth >= maxFormDepth {
		logger.Debug(fmt.Sprintf("form XObject %s nested too deeply", name), true)
		return
	}

	saved, savedScope := in.g, in.scope
	if m := xobj.Key("Matrix"); m.Len() == 6 {
		args := make([]pdf.Value, 6)
		for i := range args {
			args[i] = m.Index(i)
		}
		in.g.CTM = matrixFrom(args).mul(in.g.CTM)
	}
	if res := xobj.Key("Resources"); res.Kind() == pdf.Dict {
		in.scope = &resourceScope{res: res, fonts: make(map[string]*fontState)}
	}
	in.depth++
	in.run(xobj)
	in.depth--
	in.g, in.scope = saved, savedScope
}

// showText places the glyphs of one string operand and advances the text
// matrix past them.
func (in *interpreter) showText(raw string) {
	fs := in.g.Tf
	if fs == nil {
		fs = in.noFont
	}
	text := fs.enc.Decode(raw)
	codes := fs.codes(raw)

	if utf8.RuneCountInString(text) == len(codes) {
		i := 0
		for _, r := range text {
			code := codes[i]
			in.addGlyph(fs, r, fs.width(code), code == ' ' && !fs.twoByte)
			i++
		}
		return
	}

	// Codes and characters do not pair up, e.g. ligatures from a
	// ToUnicode map. Spread the characters evenly over the advance.
	total := 0.0
	for _, code := range codes {
		total += fs.width(code)
	}
	n := utf8.RuneCountInString(text)
	if n == 0 {
		in.advance(total, false)
		return
	}
	for _, r := range text {
		in.addGlyph(fs, r, total/float64(n), false)
	}
}

func (in *interpreter) advance(w float64, wordSpace bool) {
	g := &in.g
	tx := w*g.Tfs + g.Tc
	if wordSpace {
		tx += g.Tw
	}
	tx *= g.Th
	g.Tm = matrix{{1, 0, 0}, {0, 1, 0}, {tx, 0, 1}}.mul(g.Tm)
}

func (in *interpreter) addGlyph(fs *fontState, r rune, w float64, wordSpace bool) {
	g := &in.g
	trm := matrix{{g.Tfs * g.Th, 0, 0}, {0, g.Tfs, 0}, {0, g.Trise, 1}}.mul(g.Tm).mul(g.CTM)

	box := noRect
	for _, p := range [4][2]float64{{0, fs.descent}, {w, fs.descent}, {0, fs.ascent}, {w, fs.ascent}} {
		x, y := in.toDevice(trm.apply(p[0], p[1]))
		box = box.extend(x, y)
	}
	ox, oy := in.toDevice(trm.apply(0, 0))
	rot, diagonal := rotationOf(trm[0][0], -trm[0][1])
	base := oy
	if rot == 1 || rot == 3 {
		base = ox
	}
	cx, cy := (box.xMin+box.xMax)/2, (box.yMin+box.yMax)/2

	in.out.glyphs = append(in.out.glyphs, glyph{
		r:        r,
		box:      box,
		base:     base,
		size:     math.Hypot(trm[1][0], trm[1][1]),
		rot:      rot,
		diagonal: diagonal,
		font:     fs.info,
		color:    g.fill,
		clipped:  !g.clip.contains(cx, cy),
	})
	in.advance(w, wordSpace)
}

// rotationOf classifies the device-space writing direction (dx, dy) into
// quarter turns and reports whether it is off the axes.
func rotationOf(dx, dy float64) (rot int, diagonal bool) {
	ax, ay := math.Abs(dx), math.Abs(dy)
	switch {
	case ax >= ay && dx >= 0:
		rot = 0
	case ax >= ay:
		rot = 2
	case dy > 0:
		rot = 1
	default:
		rot = 3
	}
	return rot, math.Min(ax, ay) > 0.05*math.Max(ax, ay)
}

func cmykToRGB(c, m, y, k float64) RGB {
	return RGB{
		R: 1 - math.Min(1, c+k),
		G: 1 - math.Min(1, m+k),
		B: 1 - math.Min(1, y+k),
	}
}
