package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/JonMunkholm/ParkingTable/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// fakeRows serves sensorRow values to Scan.
type fakeRows struct {
	rows   []sensorRow
	pos    int
	err    error
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	if len(dest) != 6 {
		return fmt.Errorf("scan: got %d destinations", len(dest))
	}
	*dest[0].(*string) = row.ID
	*dest[1].(*string) = row.Name
	*dest[2].(*pgtype.Text) = row.SensorModel
	*dest[3].(*pgtype.Text) = row.Status
	*dest[4].(*pgtype.Text) = row.BaseStationID
	*dest[5].(*pgtype.Text) = row.BaseStationName
	return nil
}

type execCall struct {
	sql  string
	args []any
}

// fakeDB records Exec calls and answers Query with fixed rows.
type fakeDB struct {
	rows     *fakeRows
	queryErr error
	execErr  error
	execTag  pgconn.CommandTag

	queryArgs []any
	execs     []execCall
}

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.execs = append(db.execs, execCall{sql: sql, args: args})
	return db.execTag, db.execErr
}

func (db *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	db.queryArgs = args
	if db.queryErr != nil {
		return nil, db.queryErr
	}
	return db.rows, nil
}

func text(s string) pgtype.Text { return pgtype.Text{String: s, Valid: true} }

func TestLikePattern(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "%%"},
		{"north", "%north%"},
		{"50%", `%50\%%`},
		{"a_b", `%a\_b%`},
		{`c:\x`, `%c:\\x%`},
	}
	for _, tt := range tests {
		if got := likePattern(tt.in); got != tt.want {
			t.Errorf("likePattern(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSensorRow_Record(t *testing.T) {
	row := sensorRow{
		ID:              "0b3c",
		Name:            "P-101",
		SensorModel:     text("PX-2"),
		Status:          text("Free"),
		BaseStationID:   text("bs-1"),
		BaseStationName: text("North Gate"),
	}

	rec := row.record()

	want := []string{"Id", "Name__c", "Sensor_model__c", "Status__c", "Base_Station__c", "Base_Station__r"}
	if got := rec.Keys(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Keys() = %v, want %v", got, want)
	}

	related, _ := rec.Get(core.RelatedField)
	name, _ := related.(core.Record).Get(core.RelatedNameField)
	if name != "North Gate" {
		t.Errorf("base station name = %v", name)
	}
}

func TestSensorRow_RecordOmitsNulls(t *testing.T) {
	rec := sensorRow{ID: "1", Name: "P-1"}.record()

	if rec.Len() != 2 {
		t.Errorf("Keys() = %v, want only Id and Name__c", rec.Keys())
	}
	if rec.Has(core.RelatedField) {
		t.Error("related object present without a base station")
	}
}

func TestStore_FetchRecords(t *testing.T) {
	rows := &fakeRows{rows: []sensorRow{
		{ID: "1", Name: "A", Status: text("Free"), BaseStationID: text("b"), BaseStationName: text("North")},
		{ID: "2", Name: "B"},
	}}
	db := &fakeDB{rows: rows}
	s := New(db, 25)

	res, err := s.FetchRecords(context.Background(), "  no_rth ")
	if err != nil {
		t.Fatalf("FetchRecords() error = %v", err)
	}

	if res.DefaultPageSize != 25 {
		t.Errorf("DefaultPageSize = %d, want 25", res.DefaultPageSize)
	}
	if len(res.Sensors) != 2 || res.Sensors[1].ID() != "2" {
		t.Fatalf("Sensors = %v", res.Sensors)
	}
	if db.queryArgs[0] != "no_rth" || db.queryArgs[1] != `%no\_rth%` {
		t.Errorf("query args = %v", db.queryArgs)
	}
	if !rows.closed {
		t.Error("rows not closed")
	}

	// The table flattens the related name the same way for both backends.
	flat := core.NormalizeRecords(res.Sensors)
	if v, _ := flat[0].Get(core.DisplayField); v != "North" {
		t.Errorf("%s = %v", core.DisplayField, v)
	}
}

func TestStore_FetchRecordsEmpty(t *testing.T) {
	s := New(&fakeDB{rows: &fakeRows{}}, 0)

	res, err := s.FetchRecords(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Sensors == nil || len(res.Sensors) != 0 {
		t.Errorf("Sensors = %v, want empty slice", res.Sensors)
	}
	if res.DefaultPageSize != core.DefaultPageSize {
		t.Errorf("DefaultPageSize = %d", res.DefaultPageSize)
	}
}

func TestStore_FetchRecordsErrors(t *testing.T) {
	s := New(&fakeDB{queryErr: errors.New("connection refused")}, 10)
	if _, err := s.FetchRecords(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("query error = %v", err)
	}

	s = New(&fakeDB{rows: &fakeRows{err: errors.New("conn reset")}}, 10)
	if _, err := s.FetchRecords(context.Background(), ""); err == nil {
		t.Error("rows.Err() was ignored")
	}
}

func TestStore_DeleteRecord(t *testing.T) {
	db := &fakeDB{execTag: pgconn.NewCommandTag("DELETE 1")}
	s := New(db, 10)

	id := "7a0f2b8e-5a1c-4b7e-9a55-2f0c7f0f1e11"
	if err := s.DeleteRecord(context.Background(), id); err != nil {
		t.Fatalf("DeleteRecord() error = %v", err)
	}
	if len(db.execs) != 1 {
		t.Fatalf("execs = %d", len(db.execs))
	}
	arg, ok := db.execs[0].args[0].(pgtype.UUID)
	if !ok || !arg.Valid {
		t.Errorf("arg = %#v, want valid pgtype.UUID", db.execs[0].args[0])
	}
}

func TestStore_DeleteRecordMissingRowSucceeds(t *testing.T) {
	s := New(&fakeDB{execTag: pgconn.NewCommandTag("DELETE 0")}, 10)
	if err := s.DeleteRecord(context.Background(), "7a0f2b8e-5a1c-4b7e-9a55-2f0c7f0f1e11"); err != nil {
		t.Errorf("DeleteRecord() error = %v", err)
	}
}

func TestStore_DeleteRecordInvalidID(t *testing.T) {
	db := &fakeDB{}
	s := New(db, 10)

	err := s.DeleteRecord(context.Background(), "not-a-uuid")
	if err == nil || core.MapError(err).Code != "DEL003" {
		t.Errorf("error = %v, want DEL003", err)
	}
	if len(db.execs) != 0 {
		t.Error("exec ran for an invalid id")
	}
}

func TestParseSensorID_WrapsSentinel(t *testing.T) {
	_, err := parseSensorID("bay-7")
	if !errors.Is(err, core.ErrInvalidRecordID) {
		t.Errorf("error = %v, want ErrInvalidRecordID", err)
	}

	id, err := parseSensorID(" 7A0F2B8E-5A1C-4B7E-9A55-2F0C7F0F1E11 ")
	if err != nil || !id.Valid {
		t.Errorf("parseSensorID() = %v, %v", id, err)
	}
}

func TestStore_CanonicalID(t *testing.T) {
	s := New(&fakeDB{}, 10)
	tests := map[string]string{
		"7A0F2B8E-5A1C-4B7E-9A55-2F0C7F0F1E11":    "7a0f2b8e-5a1c-4b7e-9a55-2f0c7f0f1e11",
		"7a0f2b8e-5a1c-4b7e-9a55-2f0c7f0f1e11":    "7a0f2b8e-5a1c-4b7e-9a55-2f0c7f0f1e11",
		" {7a0f2b8e-5a1c-4b7e-9a55-2f0c7f0f1e11}": "7a0f2b8e-5a1c-4b7e-9a55-2f0c7f0f1e11",
		"not-a-uuid":                              "not-a-uuid",
	}
	for in, want := range tests {
		if got := s.CanonicalID(in); got != want {
			t.Errorf("CanonicalID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStore_UpdateStatus(t *testing.T) {
	db := &fakeDB{execTag: pgconn.NewCommandTag("UPDATE 1")}
	s := New(db, 10)

	ok, err := s.UpdateStatus(context.Background(), "7a0f2b8e-5a1c-4b7e-9a55-2f0c7f0f1e11", "Occupied")
	if err != nil || !ok {
		t.Fatalf("UpdateStatus() = %v, %v", ok, err)
	}
	if db.execs[0].args[1] != "Occupied" {
		t.Errorf("status arg = %v", db.execs[0].args[1])
	}

	db.execTag = pgconn.NewCommandTag("UPDATE 0")
	ok, err = s.UpdateStatus(context.Background(), "7a0f2b8e-5a1c-4b7e-9a55-2f0c7f0f1e11", "Free")
	if err != nil || ok {
		t.Errorf("UpdateStatus() unknown sensor = %v, %v", ok, err)
	}
}

func TestStore_EnsureSchema(t *testing.T) {
	db := &fakeDB{}
	if err := New(db, 10).EnsureSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(db.execs) != 3 {
		t.Errorf("execs = %d, want 3", len(db.execs))
	}

	db = &fakeDB{execErr: errors.New("permission denied")}
	if err := New(db, 10).EnsureSchema(context.Background()); err == nil {
		t.Error("EnsureSchema() ignored exec error")
	}
}
