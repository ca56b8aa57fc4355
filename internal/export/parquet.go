package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
)

type encodeFunc[T any] func(w io.Writer, rows []T) error

// writeParquet encodes rows with Snappy compression. Column names and
// optionality come from the `parquet` struct tags of T.
func writeParquet[T any](w io.Writer, rows []T) error {
	pw := parquet.NewGenericWriter[T](w, parquet.Compression(&parquet.Snappy))
	if _, err := pw.Write(rows); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// ErrParquetDisabled is returned when the columnar encoder is switched off.
var ErrParquetDisabled = fmt.Errorf("parquet encoder disabled: %w", errors.ErrUnsupported)

func disabledParquet[T any](io.Writer, []T) error {
	return ErrParquetDisabled
}
