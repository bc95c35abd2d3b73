package listing

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"

	"github.com/paulmach/orb/planar"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/joeblew999/plat-draw/internal/geo"
	"github.com/joeblew999/plat-draw/internal/metrics"
)

const schema = `
CREATE TABLE IF NOT EXISTS listings (
	id        VARCHAR PRIMARY KEY,
	title     VARCHAR,
	price     DOUBLE,
	currency  VARCHAR,
	bedrooms  INTEGER,
	bathrooms DOUBLE,
	lat       DOUBLE NOT NULL,
	lng       DOUBLE NOT NULL,
	address   VARCHAR,
	schema_version INTEGER
)`

// Match is a listing inside a boundary.
type Match struct {
	Record
	Distance float64 `json:"distance" doc:"Meters from the boundary center"`
}

// Store indexes listings in DuckDB.
type Store struct {
	db *sql.DB
}

// NewStore creates the listings table if needed.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create listings table: %w", err)
	}
	return &Store{db: db}, nil
}

// Upsert inserts or replaces records by ID in one transaction.
func (s *Store) Upsert(ctx context.Context, recs []Record) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO listings
		(id, title, price, currency, bedrooms, bathrooms, lat, lng, address, schema_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.Title, r.Price, r.Currency, r.Bedrooms, r.Bathrooms,
			r.Location.Lat, r.Location.Lng, r.Address, r.Schema,
		); err != nil {
			return 0, fmt.Errorf("upsert listing %q: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	for _, r := range recs {
		metrics.ListingsImported.WithLabelValues(strconv.Itoa(r.Schema)).Inc()
	}
	return len(recs), nil
}

// Count returns the number of indexed listings.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM listings").Scan(&n)
	return n, err
}

// Search returns listings inside b, nearest to its center first. The
// enclosing rectangle prefilters in SQL; the polygon test runs here.
func (s *Store) Search(ctx context.Context, b *geo.Boundary, limit int) ([]Match, error) {
	timer := prometheus.NewTimer(metrics.ListingSearchDuration)
	defer timer.ObserveDuration()

	r := b.Rect()
	recs, err := s.inRect(ctx, r.SouthWest, r.NorthEast)
	if err != nil {
		return nil, err
	}

	poly := b.Polygon()
	center := b.Center()
	var out []Match
	for _, rec := range recs {
		if !planar.PolygonContains(poly, rec.Location.Point()) {
			continue
		}
		out = append(out, Match{Record: rec, Distance: geo.Distance(center, rec.Location)})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// inRect loads the listings within the sw..ne rectangle, edges included.
func (s *Store) inRect(ctx context.Context, sw, ne geo.GeoPoint) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, price, currency, bedrooms, bathrooms, lat, lng, address, schema_version
		FROM listings
		WHERE lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?`,
		sw.Lat, ne.Lat, sw.Lng, ne.Lng)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec              Record
			title, cur, addr sql.NullString
			price, baths     sql.NullFloat64
			beds, schemaVer  sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &title, &price, &cur, &beds, &baths,
			&rec.Location.Lat, &rec.Location.Lng, &addr, &schemaVer); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		rec.Title, rec.Currency, rec.Address = title.String, cur.String, addr.String
		rec.Price, rec.Bathrooms = price.Float64, baths.Float64
		rec.Bedrooms, rec.Schema = int(beds.Int64), int(schemaVer.Int64)
		out = append(out, rec)
	}
	return out, rows.Err()
}
