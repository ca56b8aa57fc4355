package core

// convert.go turns raw CSV cells into pgtype values.
//
// Empty cells become invalid (NULL) values. Non-empty cells that cannot be
// coerced return an error so the caller can raise a TransformationError that
// names the table, row and column.

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// groupedRegex matches commas used strictly as thousands separators.
// "1,5" does not match; it is a decimal comma and is left to fail parsing.
var groupedRegex = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

var (
	dateLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"02/01/2006", "02.01.2006",
		"20060102",
	}
	timestampLayouts = []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2006-01-02T15:04",
	}
)

// ToPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ParseFloat8 converts a string to pgtype.Float8.
// Handles currency symbols, thousands separators, and accounting format
// (parentheses for negative).
func ParseFloat8(s string) (pgtype.Float8, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Float8{Valid: false}, nil
	}

	cleaned := normalizeNumber(s)
	if !numericRegex.MatchString(cleaned) {
		return pgtype.Float8{}, fmt.Errorf("%q is not a number", s)
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return pgtype.Float8{}, fmt.Errorf("%q is not a number: %w", s, err)
	}
	return pgtype.Float8{Float64: f, Valid: true}, nil
}

// ParseInt8 converts a string to pgtype.Int8. Integral decimals such as
// "30.0" are accepted.
func ParseInt8(s string) (pgtype.Int8, error) {
	n, ok, err := parseInteger(s, math.MinInt64, math.MaxInt64)
	if err != nil || !ok {
		return pgtype.Int8{}, err
	}
	return pgtype.Int8{Int64: n, Valid: true}, nil
}

// ParseInt4 is ParseInt8 bounded to 32 bits.
func ParseInt4(s string) (pgtype.Int4, error) {
	n, ok, err := parseInteger(s, math.MinInt32, math.MaxInt32)
	if err != nil || !ok {
		return pgtype.Int4{}, err
	}
	return pgtype.Int4{Int32: int32(n), Valid: true}, nil
}

func parseInteger(s string, lo, hi int64) (int64, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}

	cleaned := normalizeNumber(s)
	if n, err := strconv.ParseInt(cleaned, 10, 64); err == nil {
		if n < lo || n > hi {
			return 0, false, fmt.Errorf("%q is out of range", s)
		}
		return n, true, nil
	}

	if !numericRegex.MatchString(cleaned) {
		return 0, false, fmt.Errorf("%q is not an integer", s)
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, false, fmt.Errorf("%q is not an integer", s)
	}
	if f < float64(lo) || f > float64(hi) {
		return 0, false, fmt.Errorf("%q is out of range", s)
	}
	return int64(f), true, nil
}

// normalizeNumber strips currency symbols and well-formed thousands
// separators and turns "(123.45)" into "-123.45". Any other comma is kept.
func normalizeNumber(s string) string {
	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.TrimSpace(s)
	if groupedRegex.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	}

	if isNegative {
		s = "-" + s
	}
	return s
}

// ParseDate converts a string to pgtype.Date. A timestamp is accepted and
// truncated to its date.
func ParseDate(s string) (pgtype.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{Valid: false}, nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pgtype.Date{Time: t, Valid: true}, nil
		}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}, nil
		}
	}
	return pgtype.Date{}, fmt.Errorf("%q is not a date", s)
}

// ParseTimestamp converts a naive "YYYY-MM-DD HH:mm:ss" string to
// pgtype.Timestamp. The wall clock is kept as-is in a UTC time.Time; the
// zone it belongs to is applied later by LocalToUTC.
func ParseTimestamp(s string) (pgtype.Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Timestamp{Valid: false}, nil
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pgtype.Timestamp{Time: t, Valid: true}, nil
		}
	}
	return pgtype.Timestamp{}, fmt.Errorf("%q is not a timestamp", s)
}

// MakeHeaderIndex creates a HeaderIndex from a CSV header row.
// Keys are lowercased for case-insensitive matching.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		if _, dup := idx[key]; dup {
			continue
		}
		idx[key] = i
	}
	return idx
}

// CleanCell trims whitespace and unwraps the Excel text form ="...".
// Quote characters inside the value are data and are kept.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if len(s) >= 3 && strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = strings.TrimSpace(s[2 : len(s)-1])
	}

	return s
}

// Ptr helpers project pgtype values onto the export schema.

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func int4Ptr(i pgtype.Int4) *int32 {
	if !i.Valid {
		return nil
	}
	v := i.Int32
	return &v
}

func float8Ptr(f pgtype.Float8) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func datePtr(d pgtype.Date) *string {
	if !d.Valid {
		return nil
	}
	s := d.Time.Format(time.DateOnly)
	return &s
}
