package warehouse

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/maintetl/internal/core"
)

// fakeTx implements the pgx.Tx methods the loader calls. Any other method
// panics through the nil embedded interface.
type fakeTx struct {
	pgx.Tx
	db         *fakeDB
	committed  bool
	rolledBack bool
}

func (tx *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	tx.db.statements = append(tx.db.statements, sql)
	return pgconn.CommandTag{}, nil
}

func (tx *fakeTx) CopyFrom(_ context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	if err := tx.db.copyErr; err != nil {
		return 0, err
	}
	var n int64
	for src.Next() {
		values, err := src.Values()
		if err != nil {
			return n, err
		}
		if len(values) != len(columns) {
			return n, errors.New("column count mismatch")
		}
		tx.db.copied[table[0]] = append(tx.db.copied[table[0]], values)
		n++
	}
	return n, src.Err()
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	if !tx.committed {
		tx.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	statements []string
	copied     map[string][][]any
	copyErr    error
	execErr    error
	tx         *fakeTx
}

func newFakeDB() *fakeDB {
	return &fakeDB{copied: make(map[string][][]any)}
}

func (db *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	db.statements = append(db.statements, sql)
	return pgconn.CommandTag{}, db.execErr
}

func (db *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	db.tx = &fakeTx{db: db}
	return db.tx, nil
}

func strp(s string) *string { return &s }

func sampleFact() core.FactRow {
	start := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	downtime := int32(60)
	cost := 600.0
	return core.FactRow{
		MaintEventID:       strp("E1"),
		FactoryID:          strp("F1"),
		LineID:             strp("L1"),
		StartTimestamp:     &start,
		EventDate:          strp("2025-11-03"),
		EventYearMonth:     strp("2025-11"),
		DowntimeCategory:   "downtime",
		DowntimeMin:        &downtime,
		CostEUR:            &cost,
		SeverityLevel:      "Low",
		OperatorSkillLevel: "Unknown",
		PartsCount:         0,
		LoadTimestamp:      start,
	}
}

func TestLoad(t *testing.T) {
	db := newFakeDB()
	facts := []core.FactRow{sampleFact(), sampleFact()}
	summary := []core.SummaryRow{{FactoryID: strp("F1"), EventDate: strp("2025-11-03"), EventCount: 2}}

	if err := NewLoader(db).Load(context.Background(), facts, summary); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(db.statements) != 3 {
		t.Fatalf("statements = %d, want create, create, truncate", len(db.statements))
	}
	if !strings.HasPrefix(db.statements[0], "CREATE TABLE IF NOT EXISTS fact_maintenance_events") {
		t.Errorf("first statement = %.60s", db.statements[0])
	}
	if db.statements[2] != "TRUNCATE fact_maintenance_events, summary_maintenance_metrics" {
		t.Errorf("truncate statement = %q", db.statements[2])
	}

	if got := len(db.copied[FactTable]); got != 2 {
		t.Errorf("fact rows copied = %d, want 2", got)
	}
	if got := len(db.copied[SummaryTable]); got != 1 {
		t.Errorf("summary rows copied = %d, want 1", got)
	}
	if !db.tx.committed {
		t.Error("transaction not committed")
	}
}

func TestLoad_CopyFailureRollsBack(t *testing.T) {
	db := newFakeDB()
	db.copyErr = errors.New("connection reset")

	err := NewLoader(db).Load(context.Background(), []core.FactRow{sampleFact()}, nil)

	if !errors.Is(err, core.ErrWarehouseLoad) || !errors.Is(err, core.ErrExport) {
		t.Fatalf("error = %v, want ErrWarehouseLoad inside ExportError", err)
	}
	if got := core.MapError(err).Code; got != "EXP002" {
		t.Errorf("code = %s, want EXP002", got)
	}
	if db.tx.committed || !db.tx.rolledBack {
		t.Errorf("committed = %v, rolledBack = %v", db.tx.committed, db.tx.rolledBack)
	}
}

func TestLoad_CreateTableFailure(t *testing.T) {
	db := newFakeDB()
	db.execErr = errors.New("permission denied for schema public")

	err := NewLoader(db).Load(context.Background(), nil, nil)

	var exportErr *core.ExportError
	if !errors.As(err, &exportErr) {
		t.Fatalf("error = %v, want *core.ExportError", err)
	}
	if exportErr.Table != FactTable {
		t.Errorf("Table = %s, want %s", exportErr.Table, FactTable)
	}
	if db.tx != nil {
		t.Error("transaction should not start when DDL fails")
	}
}

func TestFactValues(t *testing.T) {
	values, err := factValues(sampleFact())
	if err != nil {
		t.Fatalf("factValues() error = %v", err)
	}
	if len(values) != len(factColumns) {
		t.Fatalf("values = %d, columns = %d", len(values), len(factColumns))
	}

	date, ok := values[5].(pgtype.Date)
	if !ok || !date.Valid || date.Time.Format(time.DateOnly) != "2025-11-03" {
		t.Errorf("event_date = %#v", values[5])
	}
	if nextDue := values[21].(pgtype.Date); nextDue.Valid {
		t.Errorf("next_due_date = %#v, want NULL", nextDue)
	}
	if parts, ok := values[20].([]string); !ok || parts == nil {
		t.Errorf("parts_list = %#v, want empty non-nil slice", values[20])
	}
}

func TestFactValues_BadDate(t *testing.T) {
	f := sampleFact()
	f.EventDate = strp("03/11/2025")

	if _, err := factValues(f); err == nil || !strings.Contains(err.Error(), "event_date") {
		t.Errorf("factValues() error = %v, want event_date parse error", err)
	}
}

func TestSummaryValues(t *testing.T) {
	values, err := summaryValues(core.SummaryRow{EventCount: 3, UnplannedPct: 33.33})
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != len(summaryColumns) {
		t.Fatalf("values = %d, columns = %d", len(values), len(summaryColumns))
	}
	if values[4] != int64(3) {
		t.Errorf("event_count = %v, want 3", values[4])
	}
}
