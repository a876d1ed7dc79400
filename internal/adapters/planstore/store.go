// Package planstore provides the SQLite build plan index.
package planstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/jobrunner/s2tile/internal/domain"
	"github.com/jobrunner/s2tile/internal/ports/output"
)

const driverName = "sqlite3_planstore"

// Register the driver with per-connection pragmas.
func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			_, err := conn.Exec("PRAGMA busy_timeout = 5000; PRAGMA journal_mode = WAL;", nil)
			return err
		},
	})
}

const schema = `
CREATE TABLE IF NOT EXISTS tile_plans (
	id                    TEXT PRIMARY KEY,
	tile_path             TEXT NOT NULL,
	profile               TEXT NOT NULL,
	group_name            TEXT NOT NULL DEFAULT '',
	display_name          TEXT NOT NULL DEFAULT '',
	product_name          TEXT NOT NULL DEFAULT '',
	srid                  INTEGER NOT NULL DEFAULT 0,
	footprint_wkt         TEXT NOT NULL,
	footprint_geojson     TEXT NOT NULL,
	acquisition_date      TEXT,
	cloud_coverage        REAL,
	vegetation_percentage REAL,
	function_template     TEXT NOT NULL,
	arguments             TEXT NOT NULL,
	built_at              TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tile_plans_group ON tile_plans (group_name, profile);
`

// timeLayout is fixed width so stored timestamps sort chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectColumns = `id, tile_path, profile, group_name, display_name, product_name, srid,
	footprint_wkt, footprint_geojson, acquisition_date, cloud_coverage, vegetation_percentage,
	function_template, arguments, built_at`

// Store implements the PlanStore port on SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the plan index at path.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s", path)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, &domain.StorageError{Operation: "open", Key: path, Err: err}
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &domain.StorageError{Operation: "open", Key: path, Err: err}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, &domain.StorageError{Operation: "migrate", Key: path, Err: err}
	}

	return &Store{db: db, now: time.Now}, nil
}

// Save inserts or replaces a plan keyed by its ID.
func (s *Store) Save(ctx context.Context, plan *domain.BuildPlan, tilePath string) error {
	footprintWKT, err := plan.Footprint.WKT()
	if err != nil {
		return &domain.StorageError{Operation: "save", Key: plan.ID.String(), Err: err}
	}
	footprintJSON, err := plan.Footprint.GeoJSON()
	if err != nil {
		return &domain.StorageError{Operation: "save", Key: plan.ID.String(), Err: err}
	}
	args, err := json.Marshal(plan.Raster.Arguments)
	if err != nil {
		return &domain.StorageError{Operation: "save", Key: plan.ID.String(), Err: err}
	}

	var acquisition sql.NullString
	if t := plan.KeyProperties.Quality.AcquisitionDate; t != nil {
		acquisition = sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
	}

	query := `
		INSERT INTO tile_plans (` + selectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tile_path = excluded.tile_path,
			group_name = excluded.group_name,
			display_name = excluded.display_name,
			product_name = excluded.product_name,
			srid = excluded.srid,
			footprint_wkt = excluded.footprint_wkt,
			footprint_geojson = excluded.footprint_geojson,
			acquisition_date = excluded.acquisition_date,
			cloud_coverage = excluded.cloud_coverage,
			vegetation_percentage = excluded.vegetation_percentage,
			function_template = excluded.function_template,
			arguments = excluded.arguments,
			built_at = excluded.built_at
	`
	_, err = s.db.ExecContext(ctx, query,
		plan.ID.String(), tilePath, plan.Profile,
		plan.Item.GroupName, plan.Item.DisplayName, plan.KeyProperties.ProductName,
		plan.SpatialReference, footprintWKT, string(footprintJSON), acquisition,
		nullFloat(plan.KeyProperties.Quality.CloudCoverage),
		nullFloat(plan.KeyProperties.Quality.VegetationPercentage),
		plan.Raster.Function, string(args),
		s.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return &domain.StorageError{Operation: "save", Key: plan.ID.String(), Err: err}
	}
	return nil
}

// Get returns a stored plan by ID.
func (s *Store) Get(ctx context.Context, id string) (*output.PlanRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM tile_plans WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrPlanNotFound)
	}
	if err != nil {
		return nil, &domain.StorageError{Operation: "get", Key: id, Err: err}
	}
	return rec, nil
}

// List returns stored plans matching filter, newest acquisition first.
func (s *Store) List(ctx context.Context, filter output.PlanFilter) ([]output.PlanRecord, error) {
	var where []string
	var args []any

	if filter.GroupName != "" {
		where = append(where, "group_name = ?")
		args = append(args, filter.GroupName)
	}
	if filter.Profile != "" {
		where = append(where, "profile = ?")
		args = append(args, filter.Profile)
	}
	if filter.MaxCloudCoverage != nil {
		where = append(where, "cloud_coverage IS NOT NULL AND cloud_coverage <= ?")
		args = append(args, *filter.MaxCloudCoverage)
	}

	query := `SELECT ` + selectColumns + ` FROM tile_plans`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY acquisition_date DESC, group_name, profile"
	// The point test runs on decoded footprints, so the limit applies afterwards.
	if filter.Limit > 0 && filter.Point == nil {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StorageError{Operation: "list", Err: err}
	}
	defer func() { _ = rows.Close() }()

	records := []output.PlanRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &domain.StorageError{Operation: "list", Err: err}
		}
		if filter.Point != nil && !covers(rec.Footprint, *filter.Point) {
			continue
		}
		records = append(records, *rec)
		if filter.Limit > 0 && len(records) == filter.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Operation: "list", Err: err}
	}
	return records, nil
}

func covers(fp domain.FootprintGeometry, p [2]float64) bool {
	b, ok := fp.Bounds()
	return ok && b.Contains(p[0], p[1])
}

// DeleteTile removes every plan built from tilePath and returns the count.
func (s *Store) DeleteTile(ctx context.Context, tilePath string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tile_plans WHERE tile_path = ?`, tilePath)
	if err != nil {
		return 0, &domain.StorageError{Operation: "delete", Key: tilePath, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &domain.StorageError{Operation: "delete", Key: tilePath, Err: err}
	}
	return int(n), nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*output.PlanRecord, error) {
	var rec output.PlanRecord
	var footprintWKT, footprintJSON, args, builtAt string
	var acquisition sql.NullString
	var cloud, vegetation sql.NullFloat64

	err := sc.Scan(
		&rec.ID, &rec.TilePath, &rec.Profile,
		&rec.GroupName, &rec.DisplayName, &rec.ProductName, &rec.SRID,
		&footprintWKT, &footprintJSON, &acquisition, &cloud, &vegetation,
		&rec.FunctionTemplate, &args, &builtAt,
	)
	if err != nil {
		return nil, err
	}

	if rec.Footprint, err = domain.FootprintFromGeoJSON([]byte(footprintJSON), rec.SRID); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(args), &rec.Arguments); err != nil {
		return nil, fmt.Errorf("decoding arguments: %w", err)
	}
	if acquisition.Valid {
		if t, err := time.Parse(time.RFC3339Nano, acquisition.String); err == nil {
			rec.AcquisitionDate = &t
		}
	}
	if cloud.Valid {
		v := cloud.Float64
		rec.CloudCoverage = &v
	}
	if vegetation.Valid {
		v := vegetation.Float64
		rec.VegetationPercentage = &v
	}
	if rec.BuiltAt, err = time.Parse(time.RFC3339Nano, builtAt); err != nil {
		return nil, fmt.Errorf("decoding built_at: %w", err)
	}
	return &rec, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
