// Package catalog records persisted DEM tiles in a SQLite database so that
// mosaic input can be selected by acquisition time.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	_ "modernc.org/sqlite"

	"alsdem/pkg/tile"
)

// Record is the catalog entry of one tile file
type Record struct {
	Path string

	RefTime           time.Time
	TimeCoverageStart time.Time
	TimeCoverageEnd   time.Time

	Resolution      float64
	ProcessingLevel string
	DeviceName      string
	Proj4           string

	// Bound is the planar node extent in the tile projection
	Bound orb.Bound

	// NumValid is the number of cells with a finite elevation
	NumValid int
}

// RecordFromTile describes a tile that has been written to t.Path
func RecordFromTile(t *tile.Tile) Record {
	return Record{
		Path:              t.Path,
		RefTime:           t.RefTime,
		TimeCoverageStart: t.TimeCoverageStart,
		TimeCoverageEnd:   t.TimeCoverageEnd,
		Resolution:        t.Resolution,
		ProcessingLevel:   t.ProcessingLevel,
		DeviceName:        t.DeviceName,
		Proj4:             t.Proj4,
		Bound:             t.Bound(),
		NumValid:          t.NumValid(),
	}
}

// Catalog is an open tile catalog
type Catalog struct {
	db *sql.DB
}

// Open opens or creates the catalog database at path
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening catalog: %w", err)
	}
	// tiles are recorded from several workers, sqlite takes one writer
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS tiles (
			path              TEXT PRIMARY KEY,
			ref_time          BIGINT NOT NULL,
			tcs               BIGINT NOT NULL,
			tce               BIGINT NOT NULL,
			resolution        DOUBLE,
			level             TEXT,
			device            TEXT,
			proj4             TEXT,
			xmin              DOUBLE,
			xmax              DOUBLE,
			ymin              DOUBLE,
			ymax              DOUBLE,
			n_valid           BIGINT
		);
		CREATE INDEX IF NOT EXISTS tiles_ref_time ON tiles (ref_time);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close closes the database
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Add inserts a record. A record with the same path is replaced.
func (c *Catalog) Add(ctx context.Context, r Record) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO tiles
			(path, ref_time, tcs, tce, resolution, level, device, proj4, xmin, xmax, ymin, ymax, n_valid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Path,
		r.RefTime.UnixNano(), r.TimeCoverageStart.UnixNano(), r.TimeCoverageEnd.UnixNano(),
		r.Resolution, r.ProcessingLevel, r.DeviceName, r.Proj4,
		r.Bound.Min[0], r.Bound.Max[0], r.Bound.Min[1], r.Bound.Max[1],
		r.NumValid,
	)
	if err != nil {
		return fmt.Errorf("error adding %s to catalog: %w", r.Path, err)
	}
	return nil
}

// Len returns the number of records
func (c *Catalog) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tiles`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Query returns all records with a reference time in [start, end], ordered by
// reference time. A zero start or end leaves that side open.
func (c *Catalog) Query(ctx context.Context, start, end time.Time) ([]Record, error) {
	lo, hi := int64(-1<<63), int64(1<<63-1)
	if !start.IsZero() {
		lo = start.UnixNano()
	}
	if !end.IsZero() {
		hi = end.UnixNano()
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT path, ref_time, tcs, tce, resolution, level, device, proj4, xmin, xmax, ymin, ymax, n_valid
		FROM tiles
		WHERE ref_time >= ? AND ref_time <= ?
		ORDER BY ref_time, path`, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("error querying catalog: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r             Record
			ref, tcs, tce int64
		)
		err := rows.Scan(&r.Path, &ref, &tcs, &tce, &r.Resolution, &r.ProcessingLevel, &r.DeviceName, &r.Proj4,
			&r.Bound.Min[0], &r.Bound.Max[0], &r.Bound.Min[1], &r.Bound.Max[1], &r.NumValid)
		if err != nil {
			return nil, fmt.Errorf("error reading catalog row: %w", err)
		}
		r.RefTime = time.Unix(0, ref).UTC()
		r.TimeCoverageStart = time.Unix(0, tcs).UTC()
		r.TimeCoverageEnd = time.Unix(0, tce).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

// Paths returns the tile paths of Query
func (c *Catalog) Paths(ctx context.Context, start, end time.Time) ([]string, error) {
	records, err := c.Query(ctx, start, end)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(records))
	for i, r := range records {
		paths[i] = r.Path
	}
	return paths, nil
}
