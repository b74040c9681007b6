// Copyright © 2026, Zotero contributors.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xpdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTextString(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []rune
	}{
		{"utf16 single char", []byte{0xfe, 0xff, 0x00, 0x41}, []rune{'A'}},
		{"utf16 two chars", []byte{0xfe, 0xff, 0x04, 0x10, 0x20, 0xac}, []rune{0x0410, 0x20ac}},
		{"utf16 odd trailing byte dropped", []byte{0xfe, 0xff, 0x00, 0x41, 0x00}, []rune{'A'}},
		{"utf16 bom only", []byte{0xfe, 0xff}, []rune{}},
		{"utf16 surrogate pair", []byte{0xfe, 0xff, 0xd8, 0x3d, 0xde, 0x00}, []rune{0x1f600}},
		{"utf16 surrogate pair between chars", []byte{0xfe, 0xff, 0x00, 0x41, 0xd8, 0x3d, 0xde, 0x00, 0x00, 0x42}, []rune{'A', 0x1f600, 'B'}},
		{"utf16 lone high surrogate", []byte{0xfe, 0xff, 0xd8, 0x3d, 0x00, 0x41}, []rune{0xd83d, 'A'}},
		{"utf16 lone low surrogate", []byte{0xfe, 0xff, 0xde, 0x00}, []rune{0xde00}},
		{"utf16 high surrogate at end", []byte{0xfe, 0xff, 0xd8, 0x3d}, []rune{0xd83d}},
		{"ascii identity", []byte{0x41, 0x42}, []rune{'A', 'B'}},
		{"pdfdoc bullet", []byte{0x80}, []rune{0x2022}},
		{"pdfdoc euro and breve", []byte{0xa0, 0x18}, []rune{0x20ac, 0x02d8}},
		{"pdfdoc unmapped", []byte{0x7f, 0x01}, []rune{0, 0}},
		{"latin1 range", []byte{0xe9}, []rune{0xe9}},
		{"lone fe is not a bom", []byte{0xfe}, []rune{0xfe}},
		{"empty", nil, []rune{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeTextString(tt.in))
		})
	}
}

func TestEncodeTextString(t *testing.T) {
	h, err := NewEncodingRegistry().Acquire("UTF-8")
	require.NoError(t, err)
	defer h.Release()
	m := h.Map()

	assert.Equal(t, []byte("A"), EncodeTextString(nil, []byte{0xfe, 0xff, 0x00, 0x41}, m))
	assert.Equal(t, []byte("AB"), EncodeTextString(nil, []byte{0x41, 0x42}, m))
	assert.Equal(t, []byte("•"), EncodeTextString(nil, []byte{0x80}, m))
	assert.Equal(t, []byte("😀"), EncodeTextString(nil, []byte{0xfe, 0xff, 0xd8, 0x3d, 0xde, 0x00}, m))
	// unmapped bytes disappear instead of producing NULs
	assert.Equal(t, []byte("ab"), EncodeTextString(nil, []byte{'a', 0x7f, 'b'}, m))
	assert.Equal(t, []byte("x-"), EncodeTextString([]byte("x"), []byte("-"), m))
}

func TestPDFDocEncodingTable(t *testing.T) {
	for c := 0x20; c < 0x7f; c++ {
		assert.Equal(t, rune(c), pdfDocEncoding[c], "byte %#x", c)
	}
	for c := 0xae; c <= 0xff; c++ {
		assert.Equal(t, rune(c), pdfDocEncoding[c], "byte %#x", c)
	}
}
