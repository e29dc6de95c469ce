package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/9seconds/beacon/beaconlib"
	_ "github.com/tursodatabase/libsql-client-go/libsql" // libsql:// and https:// databases
	_ "modernc.org/sqlite"                               // local files
)

const (
	DriverSQLite = "sqlite"
	DriverLibSQL = "libsql"

	sqliteBusyTimeout = 5 * time.Second
)

const schema = `
CREATE TABLE IF NOT EXISTS visits (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	ip TEXT NOT NULL DEFAULT '',
	country TEXT NOT NULL DEFAULT '',
	country_code TEXT NOT NULL DEFAULT '',
	region TEXT NOT NULL DEFAULT '',
	city TEXT NOT NULL DEFAULT '',
	zip TEXT NOT NULL DEFAULT '',
	lat REAL,
	lon REAL,
	isp TEXT NOT NULL DEFAULT '',
	org TEXT NOT NULL DEFAULT '',
	timezone TEXT NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT '',
	referer TEXT NOT NULL DEFAULT '',
	lookup_source TEXT NOT NULL DEFAULT '',
	timestamp INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_visits_session_id ON visits(session_id);
CREATE INDEX IF NOT EXISTS idx_visits_timestamp ON visits(timestamp DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_visits_ip_timestamp ON visits(ip, timestamp);
`

const visitColumns = `id, session_id, ip, country, country_code, region, city, zip,
	lat, lon, isp, org, timezone, user_agent, referer, lookup_source, timestamp`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// SQLite is a visit store on top of SQLite database. It works either
// with local files or with remote libSQL servers.
type SQLite struct {
	db *sql.DB
}

func (s *SQLite) Create(ctx context.Context, visit *beaconlib.Visit) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO visits (session_id, ip, country, country_code, region,
			city, zip, lat, lon, isp, org, timezone, user_agent, referer,
			lookup_source, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		visit.SessionID,
		visit.IP,
		visit.Country,
		visit.CountryCode,
		visit.Region,
		visit.City,
		visit.Zip,
		nullFloat(visit.Lat),
		nullFloat(visit.Lon),
		visit.ISP,
		visit.Org,
		visit.Timezone,
		visit.UserAgent,
		visit.Referer,
		visit.LookupSource,
		visit.Timestamp.UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("cannot insert a visit: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("cannot get an id of inserted visit: %w", err)
	}

	visit.ID = id

	return nil
}

func (s *SQLite) Get(ctx context.Context, id int64) (*beaconlib.Visit, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+visitColumns+` FROM visits WHERE id = ?`, id)

	return scanVisit(row)
}

func (s *SQLite) List(ctx context.Context, offset, limit int) ([]beaconlib.Visit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+visitColumns+` FROM visits
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("cannot query visits: %w", err)
	}

	defer rows.Close()

	rv := []beaconlib.Visit{}

	for rows.Next() {
		visit, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}

		rv = append(rv, *visit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cannot iterate over visits: %w", err)
	}

	return rv, nil
}

func (s *SQLite) Count(ctx context.Context) (int64, error) {
	var count int64

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM visits`).Scan(&count); err != nil {
		return 0, fmt.Errorf("cannot count visits: %w", err)
	}

	return count, nil
}

func (s *SQLite) Stats(ctx context.Context, since time.Time, top int) (*beaconlib.Stats, error) {
	rv := &beaconlib.Stats{}

	total, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}

	rv.Total = total

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM visits WHERE timestamp >= ?`,
		since.UTC().UnixNano()).Scan(&rv.RecentCount)
	if err != nil {
		return nil, fmt.Errorf("cannot count recent visits: %w", err)
	}

	if rv.TopCities, err = s.topValues(ctx, "city", top); err != nil {
		return nil, err
	}

	if rv.TopCountries, err = s.topValues(ctx, "country", top); err != nil {
		return nil, err
	}

	if rv.TopISPs, err = s.topValues(ctx, "isp", top); err != nil {
		return nil, err
	}

	return rv, nil
}

// column is never taken from user input.
func (s *SQLite) topValues(ctx context.Context, column string, top int) ([]beaconlib.StatsItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+column+`, COUNT(*) AS cnt FROM visits
		WHERE `+column+` NOT IN ('', ?)
		GROUP BY `+column+`
		ORDER BY cnt DESC, `+column+` ASC
		LIMIT ?`, beaconlib.UnknownValue, top)
	if err != nil {
		return nil, fmt.Errorf("cannot aggregate %s: %w", column, err)
	}

	defer rows.Close()

	rv := []beaconlib.StatsItem{}

	for rows.Next() {
		item := beaconlib.StatsItem{}

		if err := rows.Scan(&item.Value, &item.Count); err != nil {
			return nil, fmt.Errorf("cannot scan %s aggregation: %w", column, err)
		}

		rv = append(rv, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cannot iterate over %s aggregation: %w", column, err)
	}

	return rv, nil
}

func (s *SQLite) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM visits WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("cannot delete a visit: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cannot get a number of deleted visits: %w", err)
	}

	if affected == 0 {
		return beaconlib.ErrVisitNotFound
	}

	return nil
}

func (s *SQLite) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM visits`)
	if err != nil {
		return 0, fmt.Errorf("cannot delete visits: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cannot get a number of deleted visits: %w", err)
	}

	return affected, nil
}

// UpdateLatestPending patches the most recent visit of ip which was
// created after since and still has no city. Empty fields of update
// are ignored.
func (s *SQLite) UpdateLatestPending(ctx context.Context,
	ip string,
	since time.Time,
	update beaconlib.LocationUpdate) (*beaconlib.Visit, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot start a transaction: %w", err)
	}

	defer tx.Rollback() // nolint: errcheck

	var id int64

	err = tx.QueryRowContext(ctx,
		`SELECT id FROM visits
		WHERE ip = ? AND timestamp >= ? AND city IN ('', ?)
		ORDER BY timestamp DESC, id DESC
		LIMIT 1`,
		ip, since.UTC().UnixNano(), beaconlib.UnknownValue).Scan(&id)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, beaconlib.ErrVisitNotFound
	case err != nil:
		return nil, fmt.Errorf("cannot find a pending visit: %w", err)
	}

	assignments := []string{"lookup_source = ?"}
	args := []interface{}{update.LookupSource}

	for _, v := range []struct {
		column string
		value  string
	}{
		{"city", update.City},
		{"region", update.Region},
		{"country", update.Country},
		{"country_code", update.CountryCode},
		{"zip", update.Zip},
	} {
		if v.value != "" {
			assignments = append(assignments, v.column+" = ?")
			args = append(args, v.value)
		}
	}

	if update.Lat != nil {
		assignments = append(assignments, "lat = ?")
		args = append(args, *update.Lat)
	}

	if update.Lon != nil {
		assignments = append(assignments, "lon = ?")
		args = append(args, *update.Lon)
	}

	args = append(args, id)

	if _, err := tx.ExecContext(ctx,
		`UPDATE visits SET `+strings.Join(assignments, ", ")+` WHERE id = ?`,
		args...); err != nil {
		return nil, fmt.Errorf("cannot update a visit: %w", err)
	}

	visit, err := scanVisit(tx.QueryRowContext(ctx,
		`SELECT `+visitColumns+` FROM visits WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("cannot commit a transaction: %w", err)
	}

	return visit, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if stmt = strings.TrimSpace(stmt); stmt == "" {
			continue
		}

		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("cannot apply schema: %w", err)
		}
	}

	return nil
}

func scanVisit(row rowScanner) (*beaconlib.Visit, error) {
	visit := &beaconlib.Visit{}

	var (
		lat       sql.NullFloat64
		lon       sql.NullFloat64
		timestamp int64
	)

	err := row.Scan(
		&visit.ID,
		&visit.SessionID,
		&visit.IP,
		&visit.Country,
		&visit.CountryCode,
		&visit.Region,
		&visit.City,
		&visit.Zip,
		&lat,
		&lon,
		&visit.ISP,
		&visit.Org,
		&visit.Timezone,
		&visit.UserAgent,
		&visit.Referer,
		&visit.LookupSource,
		&timestamp)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, beaconlib.ErrVisitNotFound
	case err != nil:
		return nil, fmt.Errorf("cannot scan a visit: %w", err)
	}

	if lat.Valid {
		visit.Lat = &lat.Float64
	}

	if lon.Valid {
		visit.Lon = &lon.Float64
	}

	visit.Timestamp = time.Unix(0, timestamp).UTC()

	return visit, nil
}

func nullFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}

	return sql.NullFloat64{Float64: *value, Valid: true}
}

// DriverName detects a driver by database URL. Remote libSQL
// databases are accessed with libsql driver, everything else is
// treated as a path to local SQLite file.
func DriverName(databaseURL string) string {
	for _, prefix := range []string{"libsql://", "https://", "http://", "wss://", "ws://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return DriverLibSQL
		}
	}

	return DriverSQLite
}

// NewSQLite opens a database, checks a connection and applies a
// schema. A returned store has to be closed.
func NewSQLite(ctx context.Context, databaseURL string) (*SQLite, error) {
	driver := DriverName(databaseURL)
	dsn := databaseURL

	if driver == DriverSQLite {
		dsn = sqliteDSN(databaseURL)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open a database: %w", err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	rv := &SQLite{db: db}

	if err := rv.Ping(ctx); err != nil {
		db.Close()

		return nil, fmt.Errorf("cannot connect to a database: %w", err)
	}

	if err := rv.migrate(ctx); err != nil {
		db.Close()

		return nil, err
	}

	return rv, nil
}

func sqliteDSN(path string) string {
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}

	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		path, separator, sqliteBusyTimeout.Milliseconds())
}
