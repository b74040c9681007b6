// Copyright © 2026, Zotero contributors.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	xpdf "github.com/zotero/cross-xpdf"
	"github.com/zotero/cross-xpdf/logger"
	"github.com/zotero/cross-xpdf/tracer"
)

const version = "4.04-cross"

// usageOrder lists the flags in the order the usage text shows them.
var usageOrder = []string{
	"f", "l", "layout", "simple", "table", "lineprinter", "raw", "fixed",
	"linespacing", "clip", "nodiag", "datadir", "json", "nopgbrk", "enc",
	"eol", "bom", "q", "v", "h", "help", "?",
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg := xpdf.NewDefaultConfig()
	var modes xpdf.ModeFlags
	var printVersion, printHelp bool

	fs := flag.NewFlagSet("pdftotext", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.IntVar(&cfg.FirstPage, "f", 1, "first page to convert")
	fs.IntVar(&cfg.LastPage, "l", 0, "last page to convert")
	fs.BoolVar(&modes.Physical, "layout", false, "maintain original physical layout")
	fs.BoolVar(&modes.Simple, "simple", false, "simple one-column page layout")
	fs.BoolVar(&modes.Table, "table", false, "similar to -layout, but optimized for tables")
	fs.BoolVar(&modes.LinePrinter, "lineprinter", false, "use strict fixed-pitch/height layout")
	fs.BoolVar(&modes.Raw, "raw", false, "keep strings in content stream order")
	fs.Float64Var(&cfg.FixedPitch, "fixed", 0, "assume fixed-pitch (or tabular) text")
	fs.Float64Var(&cfg.FixedLineSpacing, "linespacing", 0, "fixed line spacing for LinePrinter mode")
	fs.BoolVar(&cfg.ClipText, "clip", false, "separate clipped text")
	fs.BoolVar(&cfg.DiscardDiagonal, "nodiag", false, "discard diagonal text")
	fs.StringVar(&cfg.DataDir, "datadir", "", "data directory")
	fs.BoolVar(&cfg.JSON, "json", false, "output JSON with metadata, layout and rich text")
	fs.BoolVar(&cfg.NoPageBreaks, "nopgbrk", false, "don't insert page breaks between pages")
	fs.StringVar(&cfg.TextEncoding, "enc", cfg.TextEncoding, "output text encoding name")
	fs.StringVar(&cfg.TextEOL, "eol", cfg.TextEOL, "output end-of-line convention (unix, dos, or mac)")
	fs.BoolVar(&cfg.InsertBOM, "bom", false, "insert a Unicode BOM at the start of the text file")
	fs.BoolVar(&cfg.Quiet, "q", false, "don't print any messages or errors")
	fs.BoolVar(&printVersion, "v", false, "print copyright and version info")
	// "--help" parses as -help
	for _, name := range []string{"h", "help", "?"} {
		fs.BoolVar(&printHelp, name, false, "print usage information")
	}
	cfg.DebugOn = os.Getenv("PDFTOTEXT_DEBUG") != ""

	err := fs.Parse(args)
	if err != nil || fs.NArg() != 2 || printVersion || printHelp {
		fmt.Fprintf(stderr, "pdftotext version %s\n", version)
		if !printVersion {
			printUsage(stderr, fs)
		}
		return 99
	}

	cfg.Mode = xpdf.SelectMode(modes)
	cfg.Logger = stderrLogger(stderr, cfg.Quiet, cfg.DebugOn)
	defer logger.Reset()

	d := xpdf.NewDriver(cfg)
	d.Stdout = stdout
	if err := d.Run(ctx, fs.Arg(0), fs.Arg(1)); err != nil {
		logger.Error(err.Error())
		if cfg.DebugOn {
			tracer.Flush(stderr)
		}
		return xpdf.ExitCode(err)
	}
	return 0
}

// stderrLogger prints errors and warnings unless quiet, and debug
// messages only when debug is on.
func stderrLogger(w io.Writer, quiet, debug bool) logger.LogFunc {
	return func(level logger.LogLevel, msg string, keyvals ...interface{}) {
		var prefix string
		switch level {
		case logger.ErrorLevel:
			prefix = "Error"
		case logger.WarnLevel:
			prefix = "Warning"
		default:
			if !debug {
				return
			}
			prefix = "Debug"
		}
		if quiet && level != logger.DebugLevel {
			return
		}
		fmt.Fprintf(w, "%s: %s\n", prefix, msg)
	}
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: pdftotext [options] <PDF-file> <text-file>")
	for _, name := range usageOrder {
		f := fs.Lookup(name)
		arg := ""
		if bf, ok := f.Value.(interface{ IsBoolFlag() bool }); !ok || !bf.IsBoolFlag() {
			arg = " <" + argType(f) + ">"
		}
		fmt.Fprintf(w, "  %-22s: %s\n", "-"+name+arg, f.Usage)
	}
}

func argType(f *flag.Flag) string {
	name, _ := flag.UnquoteUsage(f)
	if name == "" {
		return "value"
	}
	return strings.ToLower(name)
}
