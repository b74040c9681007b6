// Copyright © 2026, Zotero contributors.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xpdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zotero/cross-xpdf/logger"
)

// Error classes of a conversion run. Errors returned by Driver.Run wrap
// exactly one of them.
var (
	ErrConfig   = errors.New("configuration error")
	ErrDocument = errors.New("document error")
	ErrOutput   = errors.New("output error")
)

// ExitCode maps a run error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrDocument):
		return 1
	case errors.Is(err, ErrOutput):
		return 2
	default:
		return 99
	}
}

// PageExtractor produces the layout of a single page. Implementations
// differ in how render errors are handled.
type PageExtractor interface {
	ExtractPage(ctx context.Context, doc Document, page int) (*TextLayout, error)
}

// StrictExtractor fails the run on the first page that cannot be rendered.
type StrictExtractor struct{}

func (s *StrictExtractor) ExtractPage(ctx context.Context, doc Document, page int) (*TextLayout, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return doc.RenderPage(page)
}

// BestEffortExtractor replaces pages that cannot be rendered with an empty
// layout.
type BestEffortExtractor struct{}

func (b *BestEffortExtractor) ExtractPage(ctx context.Context, doc Document, page int) (*TextLayout, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	layout, err := doc.RenderPage(page)
	if err != nil {
		logger.Warn(fmt.Sprintf("skipping page %d: %v", page, err))
		return &TextLayout{}, nil
	}
	return layout, nil
}

func newExtractor(mode ParsingMode) PageExtractor {
	if mode == BestEffort {
		return &BestEffortExtractor{}
	}
	return &StrictExtractor{}
}

// OpenFunc opens the document at path.
type OpenFunc func(path string, opts LayoutOptions) (Document, error)

// CreateFunc opens the output destination at path.
type CreateFunc func(path string) (io.WriteCloser, error)

// OpenPDFDocument is the default OpenFunc.
func OpenPDFDocument(path string, opts LayoutOptions) (Document, error) {
	return OpenPDF(path, opts)
}

// Driver runs conversions of one document into one destination.
type Driver struct {
	cfg       *Config
	extractor PageExtractor

	// Open and Create default to OpenPDFDocument and os.Create.
	Open   OpenFunc
	Create CreateFunc
	// Encodings defaults to DefaultEncodings.
	Encodings *EncodingRegistry
	// Stdout receives the output when the destination path is "-".
	Stdout io.Writer
}

// NewDriver returns a driver for cfg. The configuration is validated when
// a run starts.
func NewDriver(cfg *Config) *Driver {
	if cfg.Logger != nil {
		logger.SetLogger(cfg.Logger)
	}
	return &Driver{
		cfg:       cfg,
		extractor: newExtractor(cfg.ParsingMode),
		Open:      OpenPDFDocument,
		Create:    createFile,
		Encodings: DefaultEncodings,
		Stdout:    os.Stdout,
	}
}

func createFile(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func (d *Driver) create(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{d.Stdout}, nil
	}
	return d.Create(path)
}

// acquireEncoding loads the maps under the configured data directory and
// acquires the configured text encoding.
func (d *Driver) acquireEncoding() (*EncodingHandle, error) {
	dir := d.cfg.DataDir
	if n, err := d.Encodings.LoadDir(dir); err != nil {
		logger.Warn(fmt.Sprintf("reading encodings from %s: %v", dir, err))
	} else if n > 0 {
		logger.Debug(fmt.Sprintf("Loaded encodings: dir=%s count=%d", dir, n), true)
	}
	handle, err := d.Encodings.Acquire(d.cfg.TextEncoding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return handle, nil
}

// Run converts the document at in and writes the result to out. Every
// resource acquired by the run is released before Run returns, in reverse
// order of acquisition.
func (d *Driver) Run(ctx context.Context, in, out string) (err error) {
	cfg := d.cfg
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	handle, err := d.acquireEncoding()
	if err != nil {
		return err
	}
	defer handle.Release()

	opts := LayoutOptions{
		Mode:            cfg.Mode,
		ClipText:        cfg.ClipText,
		DiscardDiagonal: cfg.DiscardDiagonal,
	}
	doc, err := d.Open(in, opts)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrDocument, in, err)
	}
	defer doc.Close()

	first, last := cfg.PageRange(doc.NumPages())
	logger.Debug(fmt.Sprintf("Converting: path=%s pages=%d..%d mode=%s json=%v", in, first, last, cfg.Mode, cfg.JSON), true)

	dst, err := d.create(out)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrOutput, out, err)
	}

	if cfg.JSON {
		defer func() {
			if cerr := dst.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("%w: close %s: %w", ErrOutput, out, cerr)
			}
		}()
		pages := &extractingDoc{Document: doc, ctx: ctx, ext: d.extractor}
		return classify(ctx, WriteDocJSON(ctx, dst, pages, first, last, handle.Map()))
	}

	tw := newTextWriter(dst, cfg, handle.Map())
	defer func() {
		if cerr := tw.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close %s: %w", ErrOutput, out, cerr)
		}
	}()
	for page := first; page <= last; page++ {
		layout, err := d.extractor.ExtractPage(ctx, doc, page)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("%w: page %d: %w", ErrDocument, page, err)
		}
		if err := tw.WritePage(layout); err != nil {
			return fmt.Errorf("%w: %w", ErrOutput, err)
		}
	}
	return nil
}

// extractingDoc routes page rendering through a PageExtractor and marks
// its failures as document errors.
type extractingDoc struct {
	Document
	ctx context.Context
	ext PageExtractor
}

func (d *extractingDoc) RenderPage(page int) (*TextLayout, error) {
	layout, err := d.ext.ExtractPage(d.ctx, d.Document, page)
	if err != nil && d.ctx.Err() == nil {
		return nil, fmt.Errorf("%w: %w", ErrDocument, err)
	}
	return layout, err
}

// classify attaches ErrOutput to errors that are not already document
// errors or cancellation.
func classify(ctx context.Context, err error) error {
	switch {
	case err == nil, errors.Is(err, ErrDocument):
		return err
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrOutput, err)
	}
}
