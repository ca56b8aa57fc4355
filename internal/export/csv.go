package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// CSVTimestampLayout renders timestamps in CSV artifacts, always in UTC.
const CSVTimestampLayout = "2006-01-02 15:04:05"

var timeType = reflect.TypeOf(time.Time{})

// column is one exported struct field.
type column struct {
	name  string
	index int
}

// columnsOf lists the exported fields of struct type t, named by the first
// element of their `parquet` tag. Fields tagged "-" are skipped.
func columnsOf(t reflect.Type) []column {
	cols := make([]column, 0, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("parquet"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		cols = append(cols, column{name: name, index: i})
	}
	return cols
}

// writeCSV writes a header and one line per row with every field quoted.
// Nested values (slices, maps, structs) are encoded as compact JSON, nil
// pointers as empty strings, and timestamps with CSVTimestampLayout in UTC.
func writeCSV[T any](w io.Writer, rows []T) error {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("csv export needs a struct row type, got %s", t)
	}
	cols := columnsOf(t)

	bw := bufio.NewWriter(w)
	fields := make([]string, len(cols))

	for i, c := range cols {
		fields[i] = c.name
	}
	if err := writeQuotedLine(bw, fields); err != nil {
		return err
	}

	for r := range rows {
		v := reflect.ValueOf(&rows[r]).Elem()
		for i, c := range cols {
			s, err := formatCSVValue(v.Field(c.index))
			if err != nil {
				return fmt.Errorf("row %d column %s: %w", r, c.name, err)
			}
			fields[i] = s
		}
		if err := writeQuotedLine(bw, fields); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func writeQuotedLine(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if err := w.WriteByte('"'); err != nil {
			return err
		}
		if _, err := w.WriteString(strings.ReplaceAll(f, `"`, `""`)); err != nil {
			return err
		}
		if err := w.WriteByte('"'); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}

func formatCSVValue(v reflect.Value) (string, error) {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return "", nil
		}
		v = v.Elem()
	}

	if v.Type() == timeType {
		return v.Interface().(time.Time).UTC().Format(CSVTimestampLayout), nil
	}

	switch v.Kind() {
	case reflect.String:
		return v.String(), nil
	case reflect.Bool:
		return strconv.FormatBool(v.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10), nil
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'f', -1, 32), nil
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64), nil
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct, reflect.Interface:
		b, err := json.Marshal(v.Interface())
		if err != nil {
			return "", fmt.Errorf("encode nested value: %w", err)
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("unsupported kind %s", v.Kind())
	}
}
