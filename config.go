// Copyright © 2026, Zotero contributors.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xpdf

import (
	"github.com/go-playground/validator/v10"
	"github.com/zotero/cross-xpdf/logger"
)

// LayoutMode selects how page text is laid out.
type LayoutMode string

const (
	ReadingOrder LayoutMode = "reading"
	PhysLayout   LayoutMode = "physical"
	SimpleLayout LayoutMode = "simple"
	TableLayout  LayoutMode = "table"
	LinePrinter  LayoutMode = "lineprinter"
	RawOrder     LayoutMode = "raw"
)

type ParsingMode string

const (
	Strict     ParsingMode = "strict"
	BestEffort ParsingMode = "best-effort"
)

// ModeFlags holds the layout switches of the command line. More than one
// may be set; SelectMode decides which wins.
type ModeFlags struct {
	Table       bool
	Physical    bool
	Simple      bool
	LinePrinter bool
	Raw         bool
}

// SelectMode returns the layout mode for flags. The first match in the
// order table, physical, simple, line printer, raw wins; with no flag set
// the mode is ReadingOrder.
func SelectMode(flags ModeFlags) LayoutMode {
	switch {
	case flags.Table:
		return TableLayout
	case flags.Physical:
		return PhysLayout
	case flags.Simple:
		return SimpleLayout
	case flags.LinePrinter:
		return LinePrinter
	case flags.Raw:
		return RawOrder
	default:
		return ReadingOrder
	}
}

// Config is the complete configuration of a conversion run.
type Config struct {
	// FirstPage and LastPage select the pages to convert. Values below 1
	// select the first and last page of the document.
	FirstPage int
	LastPage  int

	Mode             LayoutMode `validate:"oneof=reading physical simple table lineprinter raw"`
	FixedPitch       float64    `validate:"min=0"`
	FixedLineSpacing float64    `validate:"min=0"`
	ClipText         bool
	DiscardDiagonal  bool

	JSON         bool
	NoPageBreaks bool
	InsertBOM    bool
	TextEncoding string `validate:"required"`
	TextEOL      string `validate:"oneof=unix dos mac"`
	DataDir      string

	ParsingMode       ParsingMode `validate:"oneof=strict best-effort"`
	MaxConcurrentDocs int         `validate:"min=1,max=10"`

	Quiet   bool
	DebugOn bool
	Logger  logger.LogFunc
}

func NewDefaultConfig() *Config {
	return &Config{
		FirstPage:         1,
		LastPage:          0,
		Mode:              ReadingOrder,
		TextEncoding:      "UTF-8",
		TextEOL:           "unix",
		ParsingMode:       Strict,
		MaxConcurrentDocs: 1,
	}
}

func (cfg *Config) Validate() error {
	logger.Debug("Validating Config Object")
	validate := validator.New()
	return validate.Struct(cfg)
}

// EOL returns the end-of-line sequence selected by TextEOL.
func (cfg *Config) EOL() string {
	switch cfg.TextEOL {
	case "dos":
		return "\r\n"
	case "mac":
		return "\r"
	default:
		return "\n"
	}
}

// PageRange clamps the configured page range to a document of numPages
// pages. The result may be empty (first > last).
func (cfg *Config) PageRange(numPages int) (first, last int) {
	first, last = cfg.FirstPage, cfg.LastPage
	if first < 1 {
		first = 1
	}
	if last < 1 || last > numPages {
		last = numPages
	}
	return first, last
}
