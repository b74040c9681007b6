// Copyright © 2026, Zotero contributors.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xpdf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinEncodings(t *testing.T) {
	tests := []struct {
		enc  string
		in   string
		want []byte
	}{
		{"UTF-8", "Aé€", []byte("Aé€")},
		{"UTF-8", "a\x00b", []byte("ab")},
		{"Latin1", "Aé€", []byte{'A', 0xe9}},
		{"Windows-1252", "Aé€", []byte{'A', 0xe9, 0x80}},
		{"ASCII7", "Aé~", []byte{'A', '~'}},
		{"UCS-2", "Aé", []byte{0x00, 'A', 0x00, 0xe9}},
		{"UCS-2", "\U0001F600x", []byte{0x00, 'x'}},
	}

	reg := NewEncodingRegistry()
	for _, tt := range tests {
		t.Run(tt.enc+"/"+tt.in, func(t *testing.T) {
			h, err := reg.Acquire(tt.enc)
			require.NoError(t, err)
			defer h.Release()
			assert.Equal(t, tt.want, h.Map().AppendString(nil, tt.in))
		})
	}
}

func TestEncodingRegistry_RefCounting(t *testing.T) {
	reg := NewEncodingRegistry()

	h1, err := reg.Acquire("UTF-8")
	require.NoError(t, err)
	h2, err := reg.Acquire("UTF-8")
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Refs("UTF-8"))
	assert.Same(t, h1.Map(), h2.Map())

	h1.Release()
	h1.Release() // second release is a no-op
	assert.Equal(t, 1, reg.Refs("UTF-8"))

	h2.Release()
	assert.Equal(t, 0, reg.Refs("UTF-8"))
}

func TestEncodingRegistry_Unknown(t *testing.T) {
	reg := NewEncodingRegistry()
	_, err := reg.Acquire("EBCDIC")
	assert.ErrorIs(t, err, ErrUnknownEncoding)
	assert.Equal(t, 0, reg.Refs("EBCDIC"))
}

func TestParseUnicodeMap(t *testing.T) {
	src := `
# comment
0020 007e 20
00a0 a0
0410 044f c0
20ac 8880
`
	m, err := ParseUnicodeMap("Test", strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, "Test", m.Name())
	assert.False(t, m.IsUnicode())

	assert.Equal(t, []byte("Hi!"), m.AppendString(nil, "Hi!"))
	assert.Equal(t, []byte{0xa0}, m.AppendRune(nil, 0xa0))
	assert.Equal(t, []byte{0xc0, 0xc1}, m.AppendString(nil, "АБ"))
	assert.Equal(t, []byte{0x88, 0x80}, m.AppendRune(nil, 0x20ac))
	assert.Empty(t, m.AppendRune(nil, 'é'))
}

func TestParseUnicodeMap_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"too many fields", "0020 007e 20 21"},
		{"bad hex", "zz 20"},
		{"odd byte string", "0020 2"},
		{"reversed range", "007e 0020 20"},
		{"too many bytes", "0020 0011223344"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseUnicodeMap("Bad", strings.NewReader(tt.src))
			assert.Error(t, err)
		})
	}
}

func TestEncodingRegistry_LoadDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "cyrillic")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "KOI8-R.unicodeMap"), []byte("0020 007e 20\n0410 c1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("not a map"), 0o644))

	reg := NewEncodingRegistry()
	n, err := reg.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, reg.Names(), "KOI8-R")

	h, err := reg.Acquire("KOI8-R")
	require.NoError(t, err)
	defer h.Release()
	assert.Equal(t, []byte{'A', 0xc1}, h.Map().AppendString(nil, "AА"))
}

func TestEncodingRegistry_LoadDirSkipsBadMaps(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  []string
	}{
		{
			name: "bad map before good map",
			files: map[string]string{
				"A-Bad.unicodeMap":  "zzzz 41\n",
				"B-Good.unicodeMap": "0020 007e 20\n",
			},
			want: []string{"B-Good"},
		},
		{
			name: "bad map after good map",
			files: map[string]string{
				"A-Good.unicodeMap": "0020 007e 20\n",
				"B-Bad.unicodeMap":  "0041 42 43 44\n",
			},
			want: []string{"A-Good"},
		},
		{
			name: "only bad maps",
			files: map[string]string{
				"Odd.unicodeMap": "0041 4\n",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, src := range tt.files {
				require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
			}

			reg := NewEncodingRegistry()
			builtin := len(reg.Names())
			n, err := reg.LoadDir(dir)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), n)
			assert.Len(t, reg.Names(), builtin+len(tt.want))
			for _, name := range tt.want {
				h, err := reg.Acquire(name)
				require.NoError(t, err)
				assert.Equal(t, []byte("A"), h.Map().AppendString(nil, "A"))
				h.Release()
			}
		})
	}
}

func TestEncodingRegistry_LoadDirEmptyAndMissing(t *testing.T) {
	reg := NewEncodingRegistry()
	n, err := reg.LoadDir("")
	assert.NoError(t, err)
	assert.Zero(t, n)

	_, err = reg.LoadDir(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
