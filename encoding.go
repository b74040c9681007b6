// Copyright © 2026, Zotero contributors.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xpdf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/zotero/cross-xpdf/logger"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// ErrUnknownEncoding is returned by Acquire for names that are not registered.
var ErrUnknownEncoding = errors.New("unknown text encoding")

// UnicodeMap maps Unicode code points to the bytes of an output encoding.
// A UnicodeMap is immutable and safe for concurrent use.
type UnicodeMap struct {
	name    string
	unicode bool
	encode  func(dst []byte, r rune) []byte
}

// Name returns the encoding name, e.g. "UTF-8".
func (m *UnicodeMap) Name() string { return m.name }

// IsUnicode reports whether the encoding can represent all of Unicode.
func (m *UnicodeMap) IsUnicode() bool { return m.unicode }

// AppendRune appends the encoding of r to dst. Code points the encoding
// cannot represent, and U+0000, append nothing.
func (m *UnicodeMap) AppendRune(dst []byte, r rune) []byte {
	if r == 0 {
		return dst
	}
	return m.encode(dst, r)
}

// AppendString appends the encoding of every code point in s to dst.
func (m *UnicodeMap) AppendString(dst []byte, s string) []byte {
	for _, r := range s {
		dst = m.AppendRune(dst, r)
	}
	return dst
}

func utf8Map() *UnicodeMap {
	return &UnicodeMap{
		name:    "UTF-8",
		unicode: true,
		encode: func(dst []byte, r rune) []byte {
			if !utf8.ValidRune(r) {
				return dst
			}
			return utf8.AppendRune(dst, r)
		},
	}
}

func ascii7Map() *UnicodeMap {
	return &UnicodeMap{
		name: "ASCII7",
		encode: func(dst []byte, r rune) []byte {
			if r >= 0x80 {
				return dst
			}
			return append(dst, byte(r))
		},
	}
}

func charmapMap(name string, cm *charmap.Charmap) *UnicodeMap {
	return &UnicodeMap{
		name: name,
		encode: func(dst []byte, r rune) []byte {
			b, ok := cm.EncodeRune(r)
			if !ok {
				return dst
			}
			return append(dst, b)
		},
	}
}

func ucs2Map() *UnicodeMap {
	enc := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	return &UnicodeMap{
		name:    "UCS-2",
		unicode: true,
		encode: func(dst []byte, r rune) []byte {
			// UCS-2 stops at the Basic Multilingual Plane
			if r > 0xffff || !utf8.ValidRune(r) {
				return dst
			}
			b, err := enc.NewEncoder().Bytes(utf8.AppendRune(nil, r))
			if err != nil {
				return dst
			}
			return append(dst, b...)
		},
	}
}

// unicodeMapRange maps code points start..end to code+(u-start), written
// big-endian in nBytes bytes.
type unicodeMapRange struct {
	start, end rune
	code       uint32
	nBytes     int
}

// ParseUnicodeMap reads an xpdf style unicodeMap file. Every non-empty
// line is either "uuuu bytes" or "uuuu vvvv bytes", all fields in hex.
func ParseUnicodeMap(name string, r io.Reader) (*UnicodeMap, error) {
	var ranges []unicodeMapRange
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		var rg unicodeMapRange
		var out string
		switch len(fields) {
		case 2:
			u, err := strconv.ParseUint(fields[0], 16, 32)
			if err != nil {
				return nil, fmt.Errorf("unicodeMap %s line %d: %w", name, lineNo, err)
			}
			rg.start, rg.end, out = rune(u), rune(u), fields[1]
		case 3:
			u0, err := strconv.ParseUint(fields[0], 16, 32)
			if err != nil {
				return nil, fmt.Errorf("unicodeMap %s line %d: %w", name, lineNo, err)
			}
			u1, err := strconv.ParseUint(fields[1], 16, 32)
			if err != nil {
				return nil, fmt.Errorf("unicodeMap %s line %d: %w", name, lineNo, err)
			}
			if u1 < u0 {
				return nil, fmt.Errorf("unicodeMap %s line %d: empty range", name, lineNo)
			}
			rg.start, rg.end, out = rune(u0), rune(u1), fields[2]
		default:
			return nil, fmt.Errorf("unicodeMap %s line %d: expected 2 or 3 fields, got %d", name, lineNo, len(fields))
		}
		if len(out)%2 != 0 || len(out) == 0 || len(out) > 8 {
			return nil, fmt.Errorf("unicodeMap %s line %d: bad output bytes %q", name, lineNo, out)
		}
		code, err := strconv.ParseUint(out, 16, 32)
		if err != nil {
			return nil, fmt.Errorf("unicodeMap %s line %d: %w", name, lineNo, err)
		}
		rg.code = uint32(code)
		rg.nBytes = len(out) / 2
		ranges = append(ranges, rg)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("unicodeMap %s: %w", name, err)
	}

	return &UnicodeMap{
		name: name,
		encode: func(dst []byte, r rune) []byte {
			for _, rg := range ranges {
				if r < rg.start || r > rg.end {
					continue
				}
				code := rg.code + uint32(r-rg.start)
				for k := rg.nBytes - 1; k >= 0; k-- {
					dst = append(dst, byte(code>>(8*uint(k))))
				}
				return dst
			}
			return dst
		},
	}, nil
}

// EncodingRegistry holds the output encodings known to a process and counts
// the handles acquired on each of them.
type EncodingRegistry struct {
	mu   sync.Mutex
	maps map[string]*UnicodeMap
	refs map[string]int
}

// NewEncodingRegistry returns a registry holding the built-in encodings
// UTF-8, Latin1, Windows-1252, ASCII7 and UCS-2.
func NewEncodingRegistry() *EncodingRegistry {
	reg := &EncodingRegistry{
		maps: make(map[string]*UnicodeMap),
		refs: make(map[string]int),
	}
	reg.Register(utf8Map())
	reg.Register(charmapMap("Latin1", charmap.ISO8859_1))
	reg.Register(charmapMap("Windows-1252", charmap.Windows1252))
	reg.Register(ascii7Map())
	reg.Register(ucs2Map())
	return reg
}

// DefaultEncodings is the registry used by drivers that are not given one.
var DefaultEncodings = NewEncodingRegistry()

// Register adds m, replacing any encoding of the same name.
func (reg *EncodingRegistry) Register(m *UnicodeMap) {
	reg.mu.Lock()
	reg.maps[m.name] = m
	reg.mu.Unlock()
}

// Names returns the registered encoding names in sorted order.
func (reg *EncodingRegistry) Names() []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	names := make([]string, 0, len(reg.maps))
	for name := range reg.maps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadDir registers every "*.unicodeMap" file found below dir, named after
// the file without its extension. It returns the number of maps loaded.
// Files that cannot be read or parsed are logged and skipped; only a
// failure to read dir itself is returned.
func (reg *EncodingRegistry) LoadDir(dir string) (int, error) {
	if dir == "" {
		return 0, nil
	}
	logger.Debug(fmt.Sprintf("Scanning encoding directory: dir=%s", dir), true)
	n := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			logger.Warn(fmt.Sprintf("skipping %s: %v", path, err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || filepath.Ext(path) != ".unicodeMap" {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			logger.Warn(fmt.Sprintf("skipping unicodeMap %s: %v", path, err))
			return nil
		}
		defer f.Close()
		name := strings.TrimSuffix(d.Name(), ".unicodeMap")
		m, err := ParseUnicodeMap(name, f)
		if err != nil {
			logger.Warn(fmt.Sprintf("skipping unicodeMap %s: %v", path, err))
			return nil
		}
		reg.Register(m)
		n++
		logger.Debug(fmt.Sprintf("Loaded unicodeMap: name=%s path=%s", name, path), true)
		return nil
	})
	return n, err
}

// Acquire returns a handle on the named encoding and increments its
// reference count. The handle must be released exactly once.
func (reg *EncodingRegistry) Acquire(name string) (*EncodingHandle, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.maps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
	reg.refs[name]++
	return &EncodingHandle{reg: reg, m: m}, nil
}

// Refs returns the number of unreleased handles on the named encoding.
func (reg *EncodingRegistry) Refs(name string) int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.refs[name]
}

func (reg *EncodingRegistry) release(name string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.refs[name] > 0 {
		reg.refs[name]--
	}
}

// EncodingHandle is a counted reference to a registered UnicodeMap.
type EncodingHandle struct {
	reg      *EncodingRegistry
	m        *UnicodeMap
	released atomic.Bool
}

// Map returns the encoding the handle refers to.
func (h *EncodingHandle) Map() *UnicodeMap { return h.m }

// Release drops the reference. Only the first call has an effect.
func (h *EncodingHandle) Release() {
	if h.released.Swap(true) {
		return
	}
	h.reg.release(h.m.name)
}
