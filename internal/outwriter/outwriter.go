// Package outwriter has output and writer logic.
package outwriter

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/huangsam/dashcache/internal/contract"
	"github.com/huangsam/dashcache/schema"
)

// ErrParquetOutput is returned for report types that only support tabular text.
var ErrParquetOutput = errors.New("parquet output is only available through 'stats export'")

// OutWriter provides a unified interface for all output operations.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteTimeline prints a simulated scenario timeline using the configured output format.
func (ow *OutWriter) WriteTimeline(rows []schema.TimelineRow, cfg *contract.Config, duration time.Duration) error {
	return ow.dispatch(cfg, func(w io.Writer) error {
		return RenderTimeline(w, rows, cfg, duration)
	})
}

// WritePerf prints an instrumentation snapshot using the configured output format.
func (ow *OutWriter) WritePerf(snap schema.PerfSnapshot, cfg *contract.Config) error {
	return ow.dispatch(cfg, func(w io.Writer) error {
		return RenderPerf(w, snap, cfg)
	})
}

// WriteStoreStatus prints the in-memory store status using the configured output format.
func (ow *OutWriter) WriteStoreStatus(status schema.StoreStatus, cfg *contract.Config) error {
	return ow.dispatch(cfg, func(w io.Writer) error {
		return RenderStoreStatus(w, status, cfg)
	})
}

func (ow *OutWriter) dispatch(cfg *contract.Config, render func(io.Writer) error) error {
	if cfg.Output == schema.ParquetOut {
		return ErrParquetOutput
	}
	msg := "Wrote table"
	switch cfg.Output {
	case schema.JSONOut:
		msg = "Wrote JSON"
	case schema.CSVOut:
		msg = "Wrote CSV"
	}
	if err := writeWithFile(cfg.OutputFile, render, msg); err != nil {
		return fmt.Errorf("error writing %s output: %w", cfg.Output, err)
	}
	return nil
}
