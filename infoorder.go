// Copyright © 2026, Zotero contributors.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xpdf

import (
	"bytes"
	"io"
	"regexp"
	"strconv"
)

// The PDF reader hands out dictionary keys sorted. The Info dictionary is
// reported in the order its keys are stored, so its object is located and
// its keys read straight from the file.

const (
	scanChunk      = 1 << 16
	scanOverlap    = 256
	maxInfoDictLen = 1 << 20
)

var infoRefRe = regexp.MustCompile(`/Info\s+(\d+)\s+(\d+)\s+R`)

// infoKeyOrder returns the keys of the last Info dictionary referenced by
// a trailer, in file order. It fails for Info dictionaries that are not
// plain indirect objects, e.g. those stored in object streams.
func infoKeyOrder(ra io.ReaderAt, size int64) ([]string, bool) {
	_, ref, ok := lastMatch(ra, size, infoRefRe)
	if !ok {
		return nil, false
	}
	objRe := regexp.MustCompile(`[^0-9]` + string(ref[1]) + `\s+` + string(ref[2]) + `\s+obj`)
	end, _, ok := lastMatch(ra, size, objRe)
	if !ok {
		return nil, false
	}
	buf := make([]byte, min(size-end, maxInfoDictLen))
	n, err := ra.ReadAt(buf, end)
	if n == 0 && err != nil {
		return nil, false
	}
	return scanDictKeys(buf[:n])
}

// storedOrder orders keys after order. Keys missing from order keep their
// relative position at the end.
func storedOrder(keys, order []string) []string {
	pending := make(map[string]bool, len(keys))
	for _, k := range keys {
		pending[k] = true
	}
	out := make([]string, 0, len(keys))
	for _, k := range order {
		if pending[k] {
			out = append(out, k)
			delete(pending, k)
		}
	}
	for _, k := range keys {
		if pending[k] {
			out = append(out, k)
		}
	}
	return out
}

// lastMatch finds the last match of re in the first size bytes of ra,
// reading backwards in chunks. It returns the offset just past the match
// and the submatches.
func lastMatch(ra io.ReaderAt, size int64, re *regexp.Regexp) (int64, [][]byte, bool) {
	buf := make([]byte, scanChunk+scanOverlap)
	for end := size; end > 0; {
		start := max(end-scanChunk, 0)
		want := min(end+scanOverlap, size) - start
		n, err := ra.ReadAt(buf[:want], start)
		if int64(n) < want && err != nil {
			return 0, nil, false
		}
		b := buf[:n]
		locs := re.FindAllSubmatchIndex(b, -1)
		for k := len(locs) - 1; k >= 0; k-- {
			loc := locs[k]
			if int64(loc[0]) >= end-start {
				continue
			}
			sub := make([][]byte, len(loc)/2)
			for g := range sub {
				if loc[2*g] >= 0 {
					sub[g] = bytes.Clone(b[loc[2*g]:loc[2*g+1]])
				}
			}
			return start + int64(loc[1]), sub, true
		}
		end = start
	}
	return 0, nil, false
}

type dictToken struct {
	kind byte // 'n' name, 'i' integer, 'k' keyword, 'v' other value, '>' end
	text string
}

// scanDictKeys returns the top level keys of the dictionary at the start
// of b, in order.
func scanDictKeys(b []byte) ([]string, bool) {
	i := skipPDFSpace(b, 0)
	if !bytes.HasPrefix(b[i:], []byte("<<")) {
		return nil, false
	}
	i += 2
	var toks []dictToken
	for {
		var tok dictToken
		var ok bool
		tok, i, ok = nextDictToken(b, i)
		if !ok {
			return nil, false
		}
		if tok.kind == '>' {
			break
		}
		toks = append(toks, tok)
	}

	var keys []string
	for j := 0; j < len(toks); {
		if toks[j].kind != 'n' || j+1 == len(toks) {
			return nil, false
		}
		keys = append(keys, toks[j].text)
		j++
		if j+2 < len(toks) && toks[j].kind == 'i' && toks[j+1].kind == 'i' &&
			toks[j+2].kind == 'k' && toks[j+2].text == "R" {
			j += 3
		} else {
			j++
		}
	}
	return keys, true
}

func nextDictToken(b []byte, i int) (dictToken, int, bool) {
	i = skipPDFSpace(b, i)
	if i >= len(b) {
		return dictToken{}, i, false
	}
	switch b[i] {
	case '>':
		if i+1 < len(b) && b[i+1] == '>' {
			return dictToken{kind: '>'}, i + 2, true
		}
		return dictToken{}, i, false
	case '/':
		j := i + 1
		for j < len(b) && !isPDFSpace(b[j]) && !isPDFDelim(b[j]) {
			j++
		}
		return dictToken{kind: 'n', text: decodePDFName(b[i+1 : j])}, j, true
	case '(', '[', '<':
		j, ok := skipPDFValue(b, i)
		return dictToken{kind: 'v'}, j, ok
	}
	j := i
	for j < len(b) && !isPDFSpace(b[j]) && !isPDFDelim(b[j]) {
		j++
	}
	if j == i {
		return dictToken{}, i, false
	}
	text := string(b[i:j])
	if _, err := strconv.Atoi(text); err == nil {
		return dictToken{kind: 'i', text: text}, j, true
	}
	return dictToken{kind: 'k', text: text}, j, true
}

// skipPDFValue skips the string, array or dictionary starting at b[i].
func skipPDFValue(b []byte, i int) (int, bool) {
	depth := 0
	for i < len(b) {
		switch b[i] {
		case '(':
			j, ok := skipLiteralString(b, i)
			if !ok {
				return 0, false
			}
			if depth == 0 {
				return j, true
			}
			i = j
			continue
		case '%':
			for i < len(b) && b[i] != '\n' && b[i] != '\r' {
				i++
			}
			continue
		case '[':
			depth++
		case ']':
			depth--
		case '<':
			if i+1 < len(b) && b[i+1] == '<' {
				depth++
				i++
			} else {
				j := bytes.IndexByte(b[i:], '>')
				if j < 0 {
					return 0, false
				}
				i += j
			}
		case '>':
			if i+1 >= len(b) || b[i+1] != '>' {
				return 0, false
			}
			depth--
			i++
		}
		i++
		if depth <= 0 {
			return i, depth == 0
		}
	}
	return 0, false
}

func skipLiteralString(b []byte, i int) (int, bool) {
	depth := 0
	for i < len(b) {
		switch b[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
		i++
	}
	return 0, false
}

func skipPDFSpace(b []byte, i int) int {
	for i < len(b) {
		switch {
		case isPDFSpace(b[i]):
			i++
		case b[i] == '%':
			for i < len(b) && b[i] != '\n' && b[i] != '\r' {
				i++
			}
		default:
			return i
		}
	}
	return i
}

func isPDFSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isPDFDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// decodePDFName resolves #xx escapes in a name.
func decodePDFName(b []byte) string {
	if bytes.IndexByte(b, '#') < 0 {
		return string(b)
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] == '#' && i+2 < len(b) {
			if v, err := strconv.ParseUint(string(b[i+1:i+3]), 16, 8); err == nil {
				out = append(out, byte(v))
				i += 2
				continue
			}
		}
		out = append(out, b[i])
	}
	return string(out)
}
