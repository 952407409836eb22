// Package store is the Postgres sensor backend.
//
// Sensors live in the sensors table and reference an optional row in
// base_stations. FetchRecords returns them in the same shape the platform
// service uses, so the table code does not care which backend serves it.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/ParkingTable/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the subset of pgxpool.Pool, pgx.Conn and pgx.Tx the store uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store reads and deletes sensors in Postgres.
type Store struct {
	db              DBTX
	defaultPageSize int
}

// New creates a store over db. defaultPageSize is returned with every fetch
// as the page size the table should switch to.
func New(db DBTX, defaultPageSize int) *Store {
	if defaultPageSize <= 0 {
		defaultPageSize = core.DefaultPageSize
	}
	return &Store{db: db, defaultPageSize: defaultPageSize}
}

const (
	createBaseStationsSQL = `
		CREATE TABLE IF NOT EXISTS base_stations (
			id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name       TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`

	createSensorsSQL = `
		CREATE TABLE IF NOT EXISTS sensors (
			id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name            TEXT NOT NULL,
			sensor_model    TEXT,
			status          TEXT,
			base_station_id UUID REFERENCES base_stations(id) ON DELETE SET NULL,
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		)`

	createSensorsNameIndexSQL = `
		CREATE INDEX IF NOT EXISTS sensors_name_idx ON sensors (name)`
)

// EnsureSchema creates the sensor tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{createBaseStationsSQL, createSensorsSQL, createSensorsNameIndexSQL} {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

const fetchSensorsSQL = `
	SELECT s.id::text, s.name, s.sensor_model, s.status, b.id::text, b.name
	FROM sensors s
	LEFT JOIN base_stations b ON b.id = s.base_station_id
	WHERE $1 = ''
	   OR s.name ILIKE $2 ESCAPE '\'
	   OR s.sensor_model ILIKE $2 ESCAPE '\'
	   OR s.status ILIKE $2 ESCAPE '\'
	   OR b.name ILIKE $2 ESCAPE '\'
	ORDER BY s.name, s.id`

// sensorRow is one row of fetchSensorsSQL.
type sensorRow struct {
	ID              string
	Name            string
	SensorModel     pgtype.Text
	Status          pgtype.Text
	BaseStationID   pgtype.Text
	BaseStationName pgtype.Text
}

// FetchRecords returns every sensor matching searchKey. An empty key
// matches everything.
func (s *Store) FetchRecords(ctx context.Context, searchKey string) (core.FetchResult, error) {
	key := strings.TrimSpace(searchKey)

	rows, err := s.db.Query(ctx, fetchSensorsSQL, key, likePattern(key))
	if err != nil {
		return core.FetchResult{}, fmt.Errorf("query sensors: %w", err)
	}
	defer rows.Close()

	records := []core.Record{}
	for rows.Next() {
		var r sensorRow
		if err := rows.Scan(&r.ID, &r.Name, &r.SensorModel, &r.Status, &r.BaseStationID, &r.BaseStationName); err != nil {
			return core.FetchResult{}, fmt.Errorf("scan sensor: %w", err)
		}
		records = append(records, r.record())
	}
	if err := rows.Err(); err != nil {
		return core.FetchResult{}, fmt.Errorf("read sensors: %w", err)
	}

	return core.FetchResult{Sensors: records, DefaultPageSize: s.defaultPageSize}, nil
}

// record converts a row to the platform field layout. NULL columns are
// omitted, as the platform does.
func (r sensorRow) record() core.Record {
	rec := core.NewRecord(core.IDField, r.ID, "Name__c", r.Name)
	if r.SensorModel.Valid {
		rec.Set("Sensor_model__c", r.SensorModel.String)
	}
	if r.Status.Valid {
		rec.Set("Status__c", r.Status.String)
	}
	if r.BaseStationID.Valid {
		rec.Set("Base_Station__c", r.BaseStationID.String)
		related := core.NewRecord(core.IDField, r.BaseStationID.String)
		if r.BaseStationName.Valid {
			related.Set(core.RelatedNameField, r.BaseStationName.String)
		}
		rec.Set(core.RelatedField, related)
	}
	return rec
}

// DeleteRecord deletes the sensor with the given id. Deleting a sensor that
// is already gone succeeds.
func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	sensorID, err := parseSensorID(id)
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM sensors WHERE id = $1`, sensorID); err != nil {
		return fmt.Errorf("delete sensor row: %w", err)
	}
	return nil
}

// UpdateStatus sets a sensor's status. Returns false if no sensor has id.
func (s *Store) UpdateStatus(ctx context.Context, id, status string) (bool, error) {
	sensorID, err := parseSensorID(id)
	if err != nil {
		return false, err
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE sensors SET status = $2, updated_at = now() WHERE id = $1`,
		sensorID, status,
	)
	if err != nil {
		return false, fmt.Errorf("update sensor status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CanonicalID implements core.IDCanonicalizer. Postgres accepts a UUID in
// any case but returns it in lower case.
func (s *Store) CanonicalID(id string) string {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return id
	}
	return parsed.String()
}

func parseSensorID(id string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("%w %q: %v", core.ErrInvalidRecordID, id, err)
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}

// likePattern builds a contains pattern for ILIKE, escaping the wildcard
// characters in key.
func likePattern(key string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(key) + "%"
}
