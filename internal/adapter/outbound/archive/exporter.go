// Package archive writes blob store contents to gzip-compressed tarballs.
package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/trusted-programming/tree-grepper/internal/application/common/slogger"
	"github.com/trusted-programming/tree-grepper/internal/domain/errors/domain"
	"github.com/trusted-programming/tree-grepper/internal/port/outbound"
)

const entryMode = 0o644

// ExportReport summarizes an export.
type ExportReport struct {
	Entries int
	Bytes   int64
}

// Exporter streams every blob under a prefix into a .tar.gz archive. Entries are
// named by their key and written in key order.
type Exporter struct {
	store outbound.BlobStore
	level int
	now   func() time.Time
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithCompressionLevel sets the gzip level.
func WithCompressionLevel(level int) ExporterOption {
	return func(e *Exporter) { e.level = level }
}

// WithClock fixes entry modification times.
func WithClock(now func() time.Time) ExporterOption {
	return func(e *Exporter) { e.now = now }
}

// NewExporter creates an exporter reading from store.
func NewExporter(store outbound.BlobStore, opts ...ExporterOption) *Exporter {
	e := &Exporter{store: store, level: gzip.DefaultCompression, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes the archive to w. A key that disappears between listing and reading
// is skipped.
func (e *Exporter) Export(ctx context.Context, prefix string, w io.Writer) (ExportReport, error) {
	var report ExportReport

	keys, err := e.store.Keys(ctx, prefix)
	if err != nil {
		return report, err
	}

	zw, err := gzip.NewWriterLevel(w, e.level)
	if err != nil {
		return report, fmt.Errorf("gzip writer: %w", err)
	}
	tw := tar.NewWriter(zw)
	modTime := e.now().UTC()

	for _, key := range keys {
		value, err := e.store.Get(ctx, key)
		if errors.Is(err, domain.ErrBlobNotFound) {
			slogger.Debug(ctx, "blob vanished during export", slogger.Fields{"key": key})
			continue
		}
		if err != nil {
			return report, err
		}

		header := &tar.Header{
			Name:     key,
			Mode:     entryMode,
			Size:     int64(len(value)),
			ModTime:  modTime,
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(header); err != nil {
			return report, fmt.Errorf("tar header %s: %w", key, err)
		}
		if _, err := io.WriteString(tw, value); err != nil {
			return report, fmt.Errorf("tar entry %s: %w", key, err)
		}
		report.Entries++
		report.Bytes += int64(len(value))
	}

	if err := tw.Close(); err != nil {
		return report, fmt.Errorf("close tar: %w", err)
	}
	if err := zw.Close(); err != nil {
		return report, fmt.Errorf("close gzip: %w", err)
	}

	slogger.Info(ctx, "blob archive written", slogger.Fields{
		"prefix":  prefix,
		"entries": report.Entries,
		"bytes":   report.Bytes,
	})
	return report, nil
}

// ReadArchive returns the entries of a .tar.gz archive keyed by name.
func ReadArchive(r io.Reader) (map[string]string, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer zr.Close()

	entries := make(map[string]string)
	tr := tar.NewReader(zr)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("tar: %w", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("tar entry %s: %w", header.Name, err)
		}
		entries[header.Name] = string(data)
	}
}
