package core

// extract.go reads the three input files and decodes them into typed rows.
//
// Extraction is strict about shape: the file must exist, carry every
// required header column, and hold a row count within the configured
// bounds. Decoding is strict about values: a non-empty cell that cannot be
// coerced to its column type fails the run with a TransformationError.

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/maintetl/internal/config"
	"github.com/JonMunkholm/maintetl/internal/logging"
)

// InputDefinition describes one source file.
type InputDefinition struct {
	Key      string // row_counts key
	Table    string // validation report key
	FileName string
	Fields   []FieldSpec
}

// Source files read by every run.
var (
	EventsInput = InputDefinition{
		Key:      "maintenance_raw",
		Table:    "maintenance_events",
		FileName: "maintenance_events.csv",
		Fields: []FieldSpec{
			{Name: "event_id", Type: FieldText, Required: true},
			{Name: "factory_id", Type: FieldText, Required: true},
			{Name: "line_id", Type: FieldText, Required: true},
			{Name: "maintenance_type", Type: FieldText, Required: true},
			{Name: "reason", Type: FieldText, Required: true},
			{Name: "start_time", Type: FieldTimestamp, Required: true},
			{Name: "end_time", Type: FieldTimestamp, Required: true},
			{Name: "downtime_min", Type: FieldInteger, Required: true},
			{Name: "technician_id", Type: FieldText, Required: true},
			{Name: "parts_used", Type: FieldText, Required: true},
			{Name: "cost_eur", Type: FieldNumeric, Required: true},
			{Name: "outcome", Type: FieldText, Required: true},
			{Name: "next_due_date", Type: FieldDate, Required: true},
		},
	}

	ProductionInput = InputDefinition{
		Key:      "factory_raw",
		Table:    "manufacturing_factory",
		FileName: "manufacturing_factory_dataset.csv",
		Fields: []FieldSpec{
			{Name: "timestamp", Type: FieldTimestamp, Required: true},
			{Name: "factory_id", Type: FieldText, Required: true},
			{Name: "line_id", Type: FieldText, Required: true},
			{Name: "shift", Type: FieldText, Required: true},
			{Name: "product_id", Type: FieldText, Required: true},
			{Name: "planned_qty", Type: FieldInteger, Required: true},
			{Name: "produced_qty", Type: FieldInteger, Required: true},
			{Name: "scrap_qty", Type: FieldInteger, Required: true},
			{Name: "defects_count", Type: FieldInteger, Required: true},
			{Name: "machine_state", Type: FieldText, Required: true},
			{Name: "availability", Type: FieldNumeric, Required: true},
			{Name: "performance", Type: FieldNumeric, Required: true},
			{Name: "quality", Type: FieldNumeric, Required: true},
			{Name: "oee", Type: FieldNumeric, Required: true},
			{Name: "operator_id", Type: FieldText, Required: true},
		},
	}

	OperatorsInput = InputDefinition{
		Key:      "operators_raw",
		Table:    "operators",
		FileName: "operators_roster.csv",
		Fields: []FieldSpec{
			{Name: "operator_id", Type: FieldText, Required: true},
			{Name: "name", Type: FieldText, Required: true},
			{Name: "factory_id", Type: FieldText, Required: true},
			{Name: "primary_line", Type: FieldText, Required: true},
			{Name: "skill_level", Type: FieldText, Required: true},
			{Name: "reliability_score", Type: FieldNumeric, Required: true},
		},
	}
)

// RawTable is an input file split into cells, before type coercion.
type RawTable struct {
	Input  InputDefinition
	Path   string
	Header HeaderIndex
	Rows   [][]string
	Lines  []int // source line of each row, for error reporting
	Bytes  int64
}

// ReadInput opens dir/def.FileName and returns its rows. Every failure is an
// *ExtractionError.
func ReadInput(ctx context.Context, dir string, def InputDefinition, bounds config.RowBounds) (*RawTable, error) {
	path := filepath.Join(dir, def.FileName)
	fail := func(err error) error {
		return &ExtractionError{Input: def.Key, Path: path, Err: err}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fail(err)
	}
	defer f.Close()

	r, counter := WrapForStreaming(f)
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fail(ErrEmptyInput)
	}
	if err != nil {
		return nil, fail(fmt.Errorf("read header: %w", err))
	}

	idx, err := ValidateHeaders(header, def.Fields)
	if err != nil {
		return nil, fail(err)
	}

	table := &RawTable{Input: def, Path: path, Header: idx}
	for {
		if len(table.Rows)%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fail(err)
		}
		line, _ := cr.FieldPos(0)
		table.Rows = append(table.Rows, record)
		table.Lines = append(table.Lines, line)
	}
	table.Bytes = counter.BytesRead

	if !bounds.Contains(len(table.Rows)) {
		return nil, fail(fmt.Errorf("%w: %d rows, expected %d-%d",
			ErrRowCountOutOfBounds, len(table.Rows), bounds.Min, bounds.Max))
	}

	logging.WithFields(ctx, "input", def.Key).Info("input extracted",
		"path", path,
		"rows", len(table.Rows),
		"bytes", table.Bytes,
	)

	return table, nil
}

// rowDecoder reads typed cells from one raw row and keeps the first
// coercion failure.
type rowDecoder struct {
	table *RawTable
	row   []string
	line  int
	err   error
}

func (d *rowDecoder) cell(name string) string {
	pos, ok := d.table.Header[name]
	if !ok || pos >= len(d.row) {
		return ""
	}
	return CleanCell(d.row[pos])
}

func (d *rowDecoder) fail(name, value string, err error) {
	if d.err != nil {
		return
	}
	d.err = &TransformationError{
		Table:  d.table.Input.Key,
		Row:    d.line,
		Column: name,
		Value:  value,
		Err:    err,
	}
}

func (d *rowDecoder) text(name string) pgtype.Text {
	return ToPgText(d.cell(name))
}

func (d *rowDecoder) int4(name string) pgtype.Int4 {
	raw := d.cell(name)
	v, err := ParseInt4(raw)
	if err != nil {
		d.fail(name, raw, err)
	}
	return v
}

func (d *rowDecoder) int8(name string) pgtype.Int8 {
	raw := d.cell(name)
	v, err := ParseInt8(raw)
	if err != nil {
		d.fail(name, raw, err)
	}
	return v
}

func (d *rowDecoder) float8(name string) pgtype.Float8 {
	raw := d.cell(name)
	v, err := ParseFloat8(raw)
	if err != nil {
		d.fail(name, raw, err)
	}
	return v
}

func (d *rowDecoder) date(name string) pgtype.Date {
	raw := d.cell(name)
	v, err := ParseDate(raw)
	if err != nil {
		d.fail(name, raw, err)
	}
	return v
}

func (d *rowDecoder) timestamp(name string) pgtype.Timestamp {
	raw := d.cell(name)
	v, err := ParseTimestamp(raw)
	if err != nil {
		d.fail(name, raw, err)
	}
	return v
}

func decodeTable[T any](ctx context.Context, t *RawTable, workers int, fn func(d *rowDecoder) T) ([]T, error) {
	return mapRows(ctx, workers, t.Rows, func(i int, row []string) (T, error) {
		d := rowDecoder{table: t, row: row, line: t.Lines[i]}
		v := fn(&d)
		return v, d.err
	})
}

// DecodeEvents coerces maintenance_events rows.
func DecodeEvents(ctx context.Context, t *RawTable, workers int) ([]MaintenanceEvent, error) {
	return decodeTable(ctx, t, workers, func(d *rowDecoder) MaintenanceEvent {
		return MaintenanceEvent{
			EventID:         d.text("event_id"),
			FactoryID:       d.text("factory_id"),
			LineID:          d.text("line_id"),
			MaintenanceType: d.text("maintenance_type"),
			Reason:          d.text("reason"),
			StartTime:       d.timestamp("start_time"),
			EndTime:         d.timestamp("end_time"),
			DowntimeMin:     d.int4("downtime_min"),
			TechnicianID:    d.text("technician_id"),
			PartsUsed:       d.text("parts_used"),
			CostEUR:         d.float8("cost_eur"),
			Outcome:         d.text("outcome"),
			NextDueDate:     d.date("next_due_date"),
		}
	})
}

// DecodeProduction coerces production telemetry rows.
func DecodeProduction(ctx context.Context, t *RawTable, workers int) ([]ProductionRecord, error) {
	return decodeTable(ctx, t, workers, func(d *rowDecoder) ProductionRecord {
		return ProductionRecord{
			Timestamp:    d.timestamp("timestamp"),
			FactoryID:    d.text("factory_id"),
			LineID:       d.text("line_id"),
			Shift:        d.text("shift"),
			ProductID:    d.text("product_id"),
			PlannedQty:   d.int8("planned_qty"),
			ProducedQty:  d.int8("produced_qty"),
			ScrapQty:     d.int8("scrap_qty"),
			DefectsCount: d.int8("defects_count"),
			MachineState: d.text("machine_state"),
			Availability: d.float8("availability"),
			Performance:  d.float8("performance"),
			Quality:      d.float8("quality"),
			OEE:          d.float8("oee"),
			OperatorID:   d.text("operator_id"),
		}
	})
}

// DecodeOperators coerces roster rows.
func DecodeOperators(ctx context.Context, t *RawTable, workers int) ([]Operator, error) {
	return decodeTable(ctx, t, workers, func(d *rowDecoder) Operator {
		return Operator{
			OperatorID:       d.text("operator_id"),
			Name:             d.text("name"),
			FactoryID:        d.text("factory_id"),
			PrimaryLine:      d.text("primary_line"),
			SkillLevel:       d.text("skill_level"),
			ReliabilityScore: d.float8("reliability_score"),
		}
	})
}
