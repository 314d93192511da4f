package repository

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// column is one result value with the type the server would send.
type column struct {
	oid   uint32
	value any
}

// binaryRow encodes each column the way pgx requests it from the server
// and scans it back through the same type map, so scanEntry is exercised
// against real wire formats without a database.
type binaryRow struct {
	t    *testing.T
	m    *pgtype.Map
	cols []column
}

func (r *binaryRow) Scan(dest ...any) error {
	r.t.Helper()
	if len(dest) != len(r.cols) {
		r.t.Fatalf("scan with %d targets, row has %d columns", len(dest), len(r.cols))
	}
	for i, col := range r.cols {
		format := r.m.FormatCodeForOID(col.oid)
		src, err := r.m.Encode(col.oid, format, col.value, nil)
		if err != nil {
			r.t.Fatalf("encode column %d: %v", i, err)
		}
		if err := r.m.Scan(col.oid, format, src, dest[i]); err != nil {
			return err
		}
	}
	return nil
}

func TestScanEntry_BinaryTextArray(t *testing.T) {
	t.Parallel()

	m := pgtype.NewMap()
	if m.FormatCodeForOID(pgtype.TextArrayOID) != pgtype.BinaryFormatCode {
		t.Fatal("expected text[] to be read in binary format")
	}

	created := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	row := &binaryRow{t: t, m: m, cols: []column{
		{pgtype.TextOID, "01JGZ0000000000000000000"},
		{pgtype.Int8OID, int64(42)},
		{pgtype.TextOID, "Иванов"},
		{pgtype.TextOID, "2025-01-02"},
		{pgtype.TextArrayOID, []string{"10:10-10:20", "12:25-12:35"}},
		{pgtype.JSONBOID, []byte(`[{"time":"11:00","description":"Проверка ворот"}]`)},
		{pgtype.TimestamptzOID, created},
		{pgtype.TimestamptzOID, created},
	}}

	entry, err := scanEntry(row)
	if err != nil {
		t.Fatalf("scanEntry: %v", err)
	}

	if len(entry.Rounds) != 2 || entry.Rounds[0] != "10:10-10:20" || entry.Rounds[1] != "12:25-12:35" {
		t.Errorf("unexpected rounds: %v", entry.Rounds)
	}
	if len(entry.Events) != 1 || entry.Events[0].Time != "11:00" {
		t.Errorf("unexpected events: %v", entry.Events)
	}
	if entry.Identifier != 42 || entry.Date != "2025-01-02" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if !entry.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", entry.CreatedAt, created)
	}
}

func TestScanEntry_EmptyRounds(t *testing.T) {
	t.Parallel()

	m := pgtype.NewMap()
	now := time.Now().UTC().Truncate(time.Microsecond)
	row := &binaryRow{t: t, m: m, cols: []column{
		{pgtype.TextOID, "id"},
		{pgtype.Int8OID, int64(7)},
		{pgtype.TextOID, "Петров"},
		{pgtype.TextOID, "2025-01-01"},
		{pgtype.TextArrayOID, []string{}},
		{pgtype.JSONBOID, []byte(`[]`)},
		{pgtype.TimestamptzOID, now},
		{pgtype.TimestamptzOID, now},
	}}

	entry, err := scanEntry(row)
	if err != nil {
		t.Fatalf("scanEntry: %v", err)
	}
	if entry.Rounds == nil || len(entry.Rounds) != 0 {
		t.Errorf("expected empty non-nil rounds, got %#v", entry.Rounds)
	}
	if entry.Events == nil || len(entry.Events) != 0 {
		t.Errorf("expected empty non-nil events, got %#v", entry.Events)
	}
}
