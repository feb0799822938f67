package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"blink/internal/domain"
	"blink/internal/plate"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const routeColumns = `id, route_code, route_name, start_point, end_point, color,
	estimated_time_minutes, distance_km, route_description, stations_json`

const busColumns = `id, plate_number, route_code, route_name, last_seen,
	start_point, end_point, estimated_time_minutes, distance_km`

// SQLite persists routes and buses in a single database file.
type SQLite struct {
	db   *sql.DB
	path string
}

func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &SQLite{db: db, path: path}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Path() string {
	return s.path
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reseed)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *SQLite) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func (s *SQLite) ListRoutes(ctx context.Context) ([]*domain.BusRoute, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+routeColumns+` FROM bus_routes ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	defer rows.Close()
	return collectRoutes(rows)
}

func (s *SQLite) RouteByCode(ctx context.Context, code string) (*domain.BusRoute, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+routeColumns+` FROM bus_routes WHERE route_code = ? ORDER BY seq LIMIT 1`, code)
	r, err := scanRoute(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("route by code: %w", err)
	}
	return r, nil
}

func (s *SQLite) RoutesByStation(ctx context.Context, station string) ([]*domain.BusRoute, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+routeColumns+` FROM bus_routes
		 WHERE id IN (SELECT route_id FROM bus_route_stations WHERE name = ?)
		 ORDER BY seq`, station)
	if err != nil {
		return nil, fmt.Errorf("routes by station: %w", err)
	}
	defer rows.Close()
	return collectRoutes(rows)
}

func (s *SQLite) CountRoutes(ctx context.Context) (int, error) {
	return s.count(ctx, "bus_routes")
}

func (s *SQLite) InsertRoute(ctx context.Context, route *domain.BusRoute) error {
	stationsJSON, err := json.Marshal(route.Stations)
	if err != nil {
		return fmt.Errorf("marshal stations: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin route tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO bus_routes (`+routeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		route.ID,
		route.RouteCode,
		route.RouteName,
		route.StartPoint,
		route.EndPoint,
		route.Color,
		route.EstimatedTimeMinutes,
		route.DistanceKm,
		nullableString(route.RouteDescription),
		string(stationsJSON),
	); err != nil {
		return fmt.Errorf("insert route: %w", err)
	}

	for i, st := range route.Stations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bus_route_stations (route_id, position, name) VALUES (?, ?, ?)`,
			route.ID, i, st.Name,
		); err != nil {
			return fmt.Errorf("insert station %q: %w", st.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit route: %w", err)
	}
	return nil
}

func (s *SQLite) ListBuses(ctx context.Context) ([]*domain.BusInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+busColumns+` FROM bus_info ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list buses: %w", err)
	}
	defer rows.Close()
	return collectBuses(rows)
}

func (s *SQLite) BusesByPlate(ctx context.Context, plateNumber string) ([]*domain.BusInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+busColumns+` FROM bus_info WHERE plate_key = ? ORDER BY seq`, plate.Normalize(plateNumber))
	if err != nil {
		return nil, fmt.Errorf("buses by plate: %w", err)
	}
	defer rows.Close()
	return collectBuses(rows)
}

func (s *SQLite) CountBuses(ctx context.Context) (int, error) {
	return s.count(ctx, "bus_info")
}

func (s *SQLite) InsertBus(ctx context.Context, bus *domain.BusInfo) error {
	_, err := s.execWithRetry(ctx,
		`INSERT INTO bus_info (plate_key, `+busColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		plate.Normalize(bus.PlateNumber),
		bus.ID,
		bus.PlateNumber,
		bus.RouteCode,
		bus.RouteName,
		bus.LastSeen.UTC().Format(time.RFC3339Nano),
		bus.StartPoint,
		bus.EndPoint,
		bus.EstimatedTimeMinutes,
		bus.DistanceKm,
	)
	if err != nil {
		return fmt.Errorf("insert bus: %w", err)
	}
	return nil
}

func (s *SQLite) SaveBus(ctx context.Context, bus *domain.BusInfo) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE bus_info
		 SET plate_number = ?, plate_key = ?, route_code = ?, route_name = ?, last_seen = ?,
		     start_point = ?, end_point = ?, estimated_time_minutes = ?, distance_km = ?
		 WHERE id = ?`,
		bus.PlateNumber,
		plate.Normalize(bus.PlateNumber),
		bus.RouteCode,
		bus.RouteName,
		bus.LastSeen.UTC().Format(time.RFC3339Nano),
		bus.StartPoint,
		bus.EndPoint,
		bus.EstimatedTimeMinutes,
		bus.DistanceKm,
		bus.ID,
	)
	if err != nil {
		return fmt.Errorf("save bus: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLite) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE bus_info SET last_seen = ? WHERE id = ?`, at.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("touch last seen: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLite) DeleteBus(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM bus_info WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete bus: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLite) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"bus_info", "bus_route_stations", "bus_routes"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	return nil
}

func (s *SQLite) count(ctx context.Context, table string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func (s *SQLite) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoute(row rowScanner) (*domain.BusRoute, error) {
	var (
		r            domain.BusRoute
		description  sql.NullString
		stationsJSON string
	)
	if err := row.Scan(
		&r.ID,
		&r.RouteCode,
		&r.RouteName,
		&r.StartPoint,
		&r.EndPoint,
		&r.Color,
		&r.EstimatedTimeMinutes,
		&r.DistanceKm,
		&description,
		&stationsJSON,
	); err != nil {
		return nil, err
	}
	r.RouteDescription = description.String
	if err := json.Unmarshal([]byte(stationsJSON), &r.Stations); err != nil {
		return nil, fmt.Errorf("decode stations for %s: %w", r.RouteCode, err)
	}
	return &r, nil
}

func collectRoutes(rows *sql.Rows) ([]*domain.BusRoute, error) {
	var routes []*domain.BusRoute
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

func scanBus(row rowScanner) (*domain.BusInfo, error) {
	var (
		b        domain.BusInfo
		lastSeen string
	)
	if err := row.Scan(
		&b.ID,
		&b.PlateNumber,
		&b.RouteCode,
		&b.RouteName,
		&lastSeen,
		&b.StartPoint,
		&b.EndPoint,
		&b.EstimatedTimeMinutes,
		&b.DistanceKm,
	); err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339Nano, lastSeen); err == nil {
		b.LastSeen = t
	}
	return &b, nil
}

func collectBuses(rows *sql.Rows) ([]*domain.BusInfo, error) {
	var buses []*domain.BusInfo
	for rows.Next() {
		b, err := scanBus(rows)
		if err != nil {
			return nil, err
		}
		buses = append(buses, b)
	}
	return buses, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
