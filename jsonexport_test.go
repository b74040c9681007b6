// Copyright © 2026, Zotero contributors.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xpdf

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utf8Encoding(t *testing.T) *UnicodeMap {
	t.Helper()
	h, err := NewEncodingRegistry().Acquire("UTF-8")
	require.NoError(t, err)
	t.Cleanup(h.Release)
	return h.Map()
}

func TestAppendNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{612, "612"},
		{0.5, "0.5"},
		{-3.25, "-3.25"},
		{12.3456789, "12.3457"},
		{100000, "100000"},
		{1e6, "1e+06"},
		{1234567, "1.23457e+06"},
		{0.0001, "0.0001"},
		{0.00001, "1e-05"},
		{math.Inf(1), "inf"},
		{math.Inf(-1), "-inf"},
		{math.NaN(), "nan"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, string(appendNumber(nil, tt.in)))
		})
	}
}

func TestWriteDocJSON_SingleWord(t *testing.T) {
	doc := &fakeDoc{
		info: InfoDict{{Key: "Title", Kind: InfoString, Value: []byte("Doc")}},
		pages: []fakePage{{
			width: 612, height: 792,
			layout: singleWordLayout(&Word{
				XMin: 10, YMin: 20, XMax: 30, YMax: 32,
				FontSize: 12, Baseline: 30,
				Underlined: true,
				Font:       &FontInfo{Name: "Helvetica-Bold", Bold: true},
				Color:      RGB{R: 1},
				Text:       "Hi",
			}),
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDocJSON(context.Background(), &buf, doc, 1, 1, utf8Encoding(t)))

	want := `{"metadata":{"Title":"Doc"},"totalPages":1,"pages":[` +
		`[612,792,[` + // page
		`[[` + // column
		`[10,20,30,20,[` + // paragraph, yMin twice
		`[[` + // line
		`[10,20,30,32,12,0,30,0,1,1,0,0,0,"Hi"]` +
		`]]` + `]]` + `]]` + `]]` +
		`]}`
	assert.Equal(t, want, buf.String())
	assert.True(t, json.Valid(buf.Bytes()))
	assert.Equal(t, []int{1}, doc.rendered)
}

func TestWriteDocJSON_EmptyRange(t *testing.T) {
	doc := &fakeDoc{pages: []fakePage{{width: 1, height: 1}, {width: 1, height: 1}}}

	var buf bytes.Buffer
	require.NoError(t, WriteDocJSON(context.Background(), &buf, doc, 3, 2, utf8Encoding(t)))

	assert.Equal(t, `{"metadata":{},"totalPages":2,"pages":[]}`, buf.String())
	assert.Empty(t, doc.rendered)
}

func TestWriteDocJSON_Metadata(t *testing.T) {
	doc := &fakeDoc{info: InfoDict{
		{Key: "Author", Kind: InfoString, Value: []byte{0xfe, 0xff, 0x04, 0x10, 0x00, '"'}},
		{Key: "", Kind: InfoString, Value: []byte("dropped")},
		{Key: "Trapped", Kind: InfoOther},
		{Key: `a"b`, Kind: InfoString, Value: []byte("line\nbreak")},
		{Key: "Producer", Kind: InfoString, Value: []byte{0x80, 'x'}},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteDocJSON(context.Background(), &buf, doc, 1, 0, utf8Encoding(t)))

	want := `{"metadata":{"Author":"А\"","a\"b":"line\nbreak","Producer":"•x"},"totalPages":0,"pages":[]}`
	assert.Equal(t, want, buf.String())
}

func TestWriteDocJSON_SymbolTablesSpanPages(t *testing.T) {
	red := RGB{R: 1}
	word := func(font *FontInfo, c RGB, text string) *Word {
		return &Word{FontSize: 10, Font: font, Color: c, Text: text}
	}
	page1 := singleWordLayout(word(&FontInfo{Name: "Times"}, red, "a"))
	page1.Columns[0].Paragraphs[0].Lines[0].Words = append(page1.Columns[0].Paragraphs[0].Lines[0].Words,
		word(nil, RGB{}, "b"),
		word(&FontInfo{Name: ""}, RGB{}, "c"),
	)
	page2 := singleWordLayout(word(&FontInfo{Name: "Courier", Bold: true, Italic: true}, RGB{B: 1}, "d"))
	page2.Columns[0].Paragraphs[0].Lines[0].Words = append(page2.Columns[0].Paragraphs[0].Lines[0].Words,
		word(&FontInfo{Name: "Times"}, red, "e"),
	)
	doc := &fakeDoc{pages: []fakePage{
		{width: 100, height: 200, layout: page1},
		{width: 100, height: 200, layout: page2},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteDocJSON(context.Background(), &buf, doc, 1, 2, utf8Encoding(t)))

	var out struct {
		Pages [][]json.RawMessage `json:"pages"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out.Pages, 2)

	type attrs struct {
		Bold, Italic, Color, Font float64
		Text                      string
	}
	var got []attrs
	for _, page := range out.Pages {
		var cols [][][][]json.RawMessage
		require.NoError(t, json.Unmarshal(page[2], &cols))
		var lines [][][]any
		require.NoError(t, json.Unmarshal(cols[0][0][0][4], &lines))
		for _, w := range lines[0][0] {
			fields := w.([]any)
			got = append(got, attrs{
				Bold:   fields[9].(float64),
				Italic: fields[10].(float64),
				Color:  fields[11].(float64),
				Font:   fields[12].(float64),
				Text:   fields[13].(string),
			})
		}
	}

	want := []attrs{
		{0, 0, 0, 0, "a"},
		{0, 0, 1, 0, "b"},
		{0, 0, 1, 0, "c"},
		{1, 1, 2, 1, "d"},
		{0, 0, 0, 0, "e"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("word attributes mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteDocJSON_Idempotent(t *testing.T) {
	doc := &fakeDoc{pages: []fakePage{
		{width: 595.28, height: 841.89, layout: singleWordLayout(&Word{
			XMin: 72.5, YMin: 100.125, XMax: 90, YMax: 112, FontSize: 11.04,
			SpaceAfter: true, Baseline: 109.3, Rotation: 1,
			Font: &FontInfo{Name: "F\\1"}, Color: RGB{0.5, 0.25, 0.125}, Text: "tab\there",
		})},
	}}
	enc := utf8Encoding(t)

	var a, b bytes.Buffer
	require.NoError(t, WriteDocJSON(context.Background(), &a, doc, 1, 1, enc))
	require.NoError(t, WriteDocJSON(context.Background(), &b, doc, 1, 1, enc))

	assert.Equal(t, a.String(), b.String())
	assert.Contains(t, a.String(), `[72.5,100.125,90,112,11.04,1,109.3,1,0,0,0,0,0,"tab\there"]`)
}

func TestWriteDocJSON_OutputEncoding(t *testing.T) {
	h, err := NewEncodingRegistry().Acquire("Latin1")
	require.NoError(t, err)
	defer h.Release()

	doc := &fakeDoc{pages: []fakePage{{layout: singleWordLayout(&Word{Text: "café→"})}}}
	var buf bytes.Buffer
	require.NoError(t, WriteDocJSON(context.Background(), &buf, doc, 1, 1, h.Map()))

	assert.Contains(t, buf.String(), "\"caf\xe9\"")
}

func TestWriteDocJSON_Errors(t *testing.T) {
	t.Run("write failure aborts", func(t *testing.T) {
		doc := &fakeDoc{pages: []fakePage{{layout: singleWordLayout(&Word{Text: "x"})}, {}, {}}}
		err := WriteDocJSON(context.Background(), &failingWriter{limit: 10}, doc, 1, 3, utf8Encoding(t))
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, []int{1}, doc.rendered)
	})

	t.Run("render failure aborts", func(t *testing.T) {
		doc := &fakeDoc{pages: []fakePage{{}, {err: errBoom}, {}}}
		var buf bytes.Buffer
		err := WriteDocJSON(context.Background(), &buf, doc, 1, 3, utf8Encoding(t))
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, []int{1, 2}, doc.rendered)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		doc := &fakeDoc{pages: []fakePage{{}}}
		var buf bytes.Buffer
		err := WriteDocJSON(ctx, &buf, doc, 1, 1, utf8Encoding(t))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, doc.rendered)
	})
}
