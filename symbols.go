// Copyright © 2026, Zotero contributors.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xpdf

import "fmt"

// SymbolTable assigns dense integer indices to keys in the order the keys
// are first seen. The zero value is ready to use.
type SymbolTable struct {
	index map[string]int
	keys  []string
}

// IndexOf returns the index of key, assigning the next free index if the
// key has not been seen before.
func (t *SymbolTable) IndexOf(key string) int {
	if i, ok := t.index[key]; ok {
		return i
	}
	if t.index == nil {
		t.index = make(map[string]int)
	}
	i := len(t.keys)
	t.index[key] = i
	t.keys = append(t.keys, key)
	return i
}

// Len returns the number of distinct keys seen.
func (t *SymbolTable) Len() int {
	return len(t.keys)
}

// Keys returns the keys in index order.
func (t *SymbolTable) Keys() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// ColorKey returns the RRGGBB hex key of c. Components are clamped to
// [0,1] before being scaled to 0..255 and truncated.
func ColorKey(c RGB) string {
	return fmt.Sprintf("%02x%02x%02x", colorByte(c.R), colorByte(c.G), colorByte(c.B))
}

func colorByte(v float64) int {
	// NaN fails both comparisons and ends up as 0
	switch {
	case v >= 1:
		return 255
	case v > 0:
		return int(v * 255)
	default:
		return 0
	}
}
