// Package export writes pipeline tables to disk.
//
// Parquet is the primary format. When the Parquet path fails because the
// environment cannot support it (errors.ErrUnsupported, which covers
// ENOTSUP, EOPNOTSUPP and ENOSYS as well as a disabled encoder), the table
// is written once more as CSV at the sibling path. Any other failure is
// returned as a *core.ExportError.
//
// Every artifact is written to a temporary file in the destination
// directory and renamed into place, so a re-run replaces artifacts
// atomically and produces identical bytes for identical input.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/maintetl/internal/core"
	"github.com/JonMunkholm/maintetl/internal/logging"
)

// Format is an artifact encoding.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
)

// Extension returns the file extension including the dot.
func (f Format) Extension() string { return "." + string(f) }

// FormatOf derives the format from a path's extension. Anything that is
// not ".csv" is treated as Parquet.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), FormatCSV.Extension()) {
		return FormatCSV
	}
	return FormatParquet
}

// SiblingPath swaps the extension of path for f's extension.
func SiblingPath(path string, f Format) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + f.Extension()
}

// Options controls the exporter.
type Options struct {
	// ParquetEnabled turns the columnar encoder on. When false every
	// Parquet request takes the fallback path.
	ParquetEnabled bool

	// CSVCopy also writes the CSV sibling after a successful Parquet write.
	CSVCopy bool
}

// Exporter writes tables according to Options. It holds no per-table state
// and is safe for concurrent use.
type Exporter struct {
	opts Options
}

// New returns an Exporter.
func New(opts Options) *Exporter {
	return &Exporter{opts: opts}
}

// Artifact describes one file written by an export.
type Artifact struct {
	Table    string `json:"table"`
	Path     string `json:"path"`
	Format   Format `json:"format"`
	Rows     int    `json:"rows"`
	Bytes    int64  `json:"bytes"`
	Fallback bool   `json:"fallback"`
}

// Export writes rows to dest, choosing the format from dest's extension.
// It returns every artifact written, the primary one first.
func Export[T any](ctx context.Context, x *Exporter, table string, rows []T, dest string) ([]Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := logging.WithFields(ctx, "table", table)
	format := FormatOf(dest)

	if format == FormatCSV {
		a, err := writeArtifact(table, rows, dest, FormatCSV, writeCSV[T])
		if err != nil {
			return nil, err
		}
		logger.Info("table exported", "format", a.Format, "path", a.Path, "rows", a.Rows)
		return []Artifact{a}, nil
	}

	encode := writeParquet[T]
	if !x.opts.ParquetEnabled {
		encode = disabledParquet[T]
	}

	primary, err := writeArtifact(table, rows, dest, FormatParquet, encode)
	if err != nil {
		if !errors.Is(err, errors.ErrUnsupported) {
			return nil, err
		}

		csvPath := SiblingPath(dest, FormatCSV)
		logger.Warn("parquet export unsupported, falling back to csv",
			"path", dest,
			"fallback_path", csvPath,
			"error", err,
		)

		fallback, ferr := writeArtifact(table, rows, csvPath, FormatCSV, writeCSV[T])
		if ferr != nil {
			return nil, ferr
		}
		fallback.Fallback = true
		logger.Info("table exported", "format", fallback.Format, "path", fallback.Path, "rows", fallback.Rows, "fallback", true)
		return []Artifact{fallback}, nil
	}

	logger.Info("table exported", "format", primary.Format, "path", primary.Path, "rows", primary.Rows)
	artifacts := []Artifact{primary}

	if x.opts.CSVCopy {
		csvPath := SiblingPath(dest, FormatCSV)
		cp, err := writeArtifact(table, rows, csvPath, FormatCSV, writeCSV[T])
		if err != nil {
			return nil, err
		}
		logger.Info("table exported", "format", cp.Format, "path", cp.Path, "rows", cp.Rows)
		artifacts = append(artifacts, cp)
	}

	return artifacts, nil
}

// AnyFallback reports whether any artifact was produced by the fallback.
func AnyFallback(artifacts []Artifact) bool {
	for _, a := range artifacts {
		if a.Fallback {
			return true
		}
	}
	return false
}

func writeArtifact[T any](table string, rows []T, path string, format Format, encode encodeFunc[T]) (Artifact, error) {
	size, err := writeAtomic(path, func(f *os.File) error {
		return encode(f, rows)
	})
	if err != nil {
		return Artifact{}, &core.ExportError{Table: table, Path: path, Format: string(format), Err: err}
	}
	return Artifact{Table: table, Path: path, Format: format, Rows: len(rows), Bytes: size}, nil
}

// writeAtomic writes through fn into a temporary file next to path, syncs
// it and renames it over path. The temporary file is removed on failure.
func writeAtomic(path string, fn func(f *os.File) error) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := fn(tmp); err != nil {
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("sync: %w", err)
	}
	info, err := tmp.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return 0, fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, fmt.Errorf("rename: %w", err)
	}
	committed = true

	return info.Size(), nil
}

// WriteJSON writes v as indented JSON to path, replacing it atomically.
func WriteJSON(path string, v any) (int64, error) {
	return writeAtomic(path, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}
