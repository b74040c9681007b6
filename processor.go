// Copyright © 2026, Zotero contributors.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xpdf

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/zotero/cross-xpdf/logger"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Job is one conversion of Input into Output. An Output of "-" writes to
// the driver's standard output.
type Job struct {
	Input  string
	Output string
}

// Result is the outcome of one Job.
type Result struct {
	Job Job
	Err error
}

// Processor converts several documents concurrently. Each conversion is an
// independent driver run; at most Config.MaxConcurrentDocs run at once.
type Processor struct {
	cfg    *Config
	sem    *semaphore.Weighted
	driver *Driver
}

// NewProcessor validates the config and creates a new processor.
func NewProcessor(cfg *Config) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	logger.Debug(fmt.Sprintf("Processor initialized: parsing_mode=%v, max_concurrent_docs=%d, mode=%s json=%v",
		cfg.ParsingMode, cfg.MaxConcurrentDocs, cfg.Mode, cfg.JSON), true)

	return &Processor{
		cfg:    cfg,
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrentDocs)),
		driver: NewDriver(cfg),
	}, nil
}

// ProcessAll runs every job and returns their results in job order. In
// strict mode the first failure cancels the remaining jobs and is
// returned; in best-effort mode failures are only reported in the results.
func (p *Processor) ProcessAll(ctx context.Context, jobs []Job) ([]Result, error) {
	logger.Debug(fmt.Sprintf("Starting batch: jobs=%d", len(jobs)), true)
	results := make([]Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		i, job := i, job
		results[i].Job = job
		g.Go(func() error {
			err := p.process(gctx, job)
			results[i].Err = err
			if err != nil && p.cfg.ParsingMode == Strict {
				return fmt.Errorf("%s: %w", job.Input, err)
			}
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		logger.Debug(fmt.Sprintf("Strict mode error, batch stopped: err=%v", err), true)
	}
	logger.Debug(fmt.Sprintf("Batch completed: jobs=%d", len(jobs)), true)
	return results, err
}

func (p *Processor) process(ctx context.Context, job Job) error {
	if err := p.acquireSlot(ctx); err != nil {
		return err
	}
	defer p.sem.Release(1)
	logger.Debug(fmt.Sprintf("Slot acquired for conversion: input=%s output=%s", job.Input, job.Output), true)

	if err := p.driver.Run(ctx, job.Input, job.Output); err != nil {
		logger.Debug(fmt.Sprintf("Conversion failed: input=%s err=%v", job.Input, err), true)
		return err
	}
	logger.Debug(fmt.Sprintf("Conversion completed: input=%s", job.Input), true)
	return nil
}

// Extract converts the document at path and returns the output as a
// string instead of writing it to a file.
func (p *Processor) Extract(ctx context.Context, path string) (string, error) {
	if err := p.acquireSlot(ctx); err != nil {
		return "", err
	}
	defer p.sem.Release(1)

	var buf bytes.Buffer
	d := *p.driver
	d.Stdout = &buf
	if err := d.Run(ctx, path, "-"); err != nil {
		return "", err
	}
	logger.Debug(fmt.Sprintf("Extraction completed: path=%s bytes=%d", path, buf.Len()), true)
	return buf.String(), nil
}

// Metadata writes the document's Info dictionary to w as the "metadata"
// object of the JSON output.
func (p *Processor) Metadata(ctx context.Context, path string, w io.Writer) error {
	logger.Debug(fmt.Sprintf("Reading metadata: path=%s", path), true)

	handle, err := p.driver.acquireEncoding()
	if err != nil {
		return err
	}
	defer handle.Release()

	doc, err := p.driver.Open(path, LayoutOptions{Mode: p.cfg.Mode})
	if err != nil {
		logger.Error("failed to open PDF for metadata")
		return fmt.Errorf("%w: open %s: %w", ErrDocument, path, err)
	}
	defer doc.Close()

	// an empty page range leaves only the metadata and the page count
	if err := WriteDocJSON(ctx, w, doc, 1, 0, handle.Map()); err != nil {
		return classify(ctx, err)
	}
	return nil
}

func (p *Processor) acquireSlot(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire slot: %w", err)
	}
	return nil
}
