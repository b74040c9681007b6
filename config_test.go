// Copyright © 2026, Zotero contributors.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xpdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(cfg *Config)
		shouldErr bool
	}{
		{
			name:      "default config is valid",
			mutate:    func(cfg *Config) {},
			shouldErr: false,
		},
		{
			name: "json line printer with pitch",
			mutate: func(cfg *Config) {
				cfg.JSON = true
				cfg.Mode = LinePrinter
				cfg.FixedPitch = 7.2
				cfg.FixedLineSpacing = 12
			},
			shouldErr: false,
		},
		{
			name:      "invalid Mode",
			mutate:    func(cfg *Config) { cfg.Mode = "columns" },
			shouldErr: true,
		},
		{
			name:      "negative FixedPitch",
			mutate:    func(cfg *Config) { cfg.FixedPitch = -1 },
			shouldErr: true,
		},
		{
			name:      "negative FixedLineSpacing",
			mutate:    func(cfg *Config) { cfg.FixedLineSpacing = -0.5 },
			shouldErr: true,
		},
		{
			name:      "missing TextEncoding",
			mutate:    func(cfg *Config) { cfg.TextEncoding = "" },
			shouldErr: true,
		},
		{
			name:      "invalid TextEOL",
			mutate:    func(cfg *Config) { cfg.TextEOL = "windows" },
			shouldErr: true,
		},
		{
			name:      "invalid ParsingMode",
			mutate:    func(cfg *Config) { cfg.ParsingMode = "invalid-mode" },
			shouldErr: true,
		},
		{
			name:      "MaxConcurrentDocs too low",
			mutate:    func(cfg *Config) { cfg.MaxConcurrentDocs = 0 },
			shouldErr: true,
		},
		{
			name:      "MaxConcurrentDocs too high",
			mutate:    func(cfg *Config) { cfg.MaxConcurrentDocs = 11 },
			shouldErr: true,
		},
		{
			name: "page numbers are not validated",
			mutate: func(cfg *Config) {
				cfg.FirstPage = -4
				cfg.LastPage = -9
			},
			shouldErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.shouldErr {
				assert.Error(t, err, "expected validation error")
			} else {
				assert.NoError(t, err, "expected validation to pass")
			}
		})
	}
}

func TestSelectMode_Priority(t *testing.T) {
	tests := []struct {
		name  string
		flags ModeFlags
		want  LayoutMode
	}{
		{"none", ModeFlags{}, ReadingOrder},
		{"raw", ModeFlags{Raw: true}, RawOrder},
		{"lineprinter beats raw", ModeFlags{LinePrinter: true, Raw: true}, LinePrinter},
		{"simple beats lineprinter", ModeFlags{Simple: true, LinePrinter: true, Raw: true}, SimpleLayout},
		{"physical beats simple", ModeFlags{Physical: true, Simple: true}, PhysLayout},
		{"table beats everything", ModeFlags{Table: true, Physical: true, Simple: true, LinePrinter: true, Raw: true}, TableLayout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectMode(tt.flags))
		})
	}
}

func TestConfig_PageRange(t *testing.T) {
	tests := []struct {
		name        string
		first, last int
		numPages    int
		wantFirst   int
		wantLast    int
	}{
		{"first zero clamps to one", 0, 3, 10, 1, 3},
		{"last zero selects all", 1, 0, 10, 1, 10},
		{"negative values", -3, -1, 10, 1, 10},
		{"last beyond end", 2, 99, 10, 2, 10},
		{"inverted range stays empty", 5, 3, 10, 5, 3},
		{"first beyond end", 12, 0, 10, 12, 10},
		{"empty document", 1, 0, 0, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.FirstPage, cfg.LastPage = tt.first, tt.last
			first, last := cfg.PageRange(tt.numPages)
			assert.Equal(t, tt.wantFirst, first)
			assert.Equal(t, tt.wantLast, last)
		})
	}
}

func TestConfig_EOL(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, "\n", cfg.EOL())
	cfg.TextEOL = "dos"
	assert.Equal(t, "\r\n", cfg.EOL())
	cfg.TextEOL = "mac"
	assert.Equal(t, "\r", cfg.EOL())
}
