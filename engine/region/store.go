package region

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists the region graph in Postgres. The table pair is the system
// of record; runtime lookups go through the Cache, never the database.
type Store struct {
	db *pgxpool.Pool
}

// NewStore creates a region store over a pgx pool.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const regionSchema = `
CREATE TABLE IF NOT EXISTS regions (
    id                TEXT PRIMARY KEY,
    name              TEXT NOT NULL,
    type              TEXT NOT NULL,
    state_id          TEXT,
    state_code        TEXT,
    fips_code         TEXT,
    census_place_code TEXT,
    latitude          DOUBLE PRECISION,
    longitude         DOUBLE PRECISION,
    bounds            TEXT
);

CREATE TABLE IF NOT EXISTS region_relationships (
    child_id            TEXT NOT NULL REFERENCES regions(id),
    parent_id           TEXT NOT NULL REFERENCES regions(id),
    relationship_type   TEXT NOT NULL DEFAULT 'part_of',
    is_primary          BOOLEAN NOT NULL DEFAULT FALSE,
    coverage_percentage DOUBLE PRECISION NOT NULL DEFAULT 100,
    PRIMARY KEY (child_id, parent_id)
);

CREATE INDEX IF NOT EXISTS idx_region_rel_child ON region_relationships(child_id);
`

// CreateSchema creates the regions and region_relationships tables.
func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, regionSchema); err != nil {
		return fmt.Errorf("region: create schema: %w", err)
	}
	return nil
}

// Load bulk-upserts a dataset. Referential integrity is checked up front so a
// bad reference file aborts before touching the database; within the database
// the load is one transaction, so a partial dataset is never visible.
func (s *Store) Load(ctx context.Context, ds Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("region: begin load: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range ds.Regions {
		if err := upsertRegion(ctx, tx, r); err != nil {
			return err
		}
	}
	for _, rel := range ds.Relationships {
		if err := upsertRelationship(ctx, tx, rel); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("region: commit load: %w", err)
	}
	return nil
}

func upsertRegion(ctx context.Context, tx pgx.Tx, r Region) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO regions (id, name, type, state_id, state_code, fips_code,
		                     census_place_code, latitude, longitude, bounds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			state_id = EXCLUDED.state_id,
			state_code = EXCLUDED.state_code,
			fips_code = EXCLUDED.fips_code,
			census_place_code = EXCLUDED.census_place_code,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			bounds = EXCLUDED.bounds`,
		r.ID, r.Name, string(r.Type), r.StateID, r.StateCode, r.FIPSCode,
		r.CensusPlaceCode, r.Latitude, r.Longitude, r.Bounds)
	if err != nil {
		return fmt.Errorf("region: upsert region %s: %w", r.ID, err)
	}
	return nil
}

func upsertRelationship(ctx context.Context, tx pgx.Tx, rel Relationship) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO region_relationships (child_id, parent_id, relationship_type,
		                                  is_primary, coverage_percentage)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (child_id, parent_id) DO UPDATE SET
			relationship_type = EXCLUDED.relationship_type,
			is_primary = EXCLUDED.is_primary,
			coverage_percentage = EXCLUDED.coverage_percentage`,
		rel.ChildID, rel.ParentID, rel.RelationshipType, rel.IsPrimary, rel.Coverage)
	if err != nil {
		return fmt.Errorf("region: upsert relationship %s->%s: %w",
			rel.ChildID, rel.ParentID, err)
	}
	return nil
}

// Snapshot reads the full graph for cache construction.
func (s *Store) Snapshot(ctx context.Context) (Dataset, error) {
	var ds Dataset

	rows, err := s.db.Query(ctx, `
		SELECT id, name, type,
		       COALESCE(state_id, ''), COALESCE(state_code, ''),
		       COALESCE(fips_code, ''), COALESCE(census_place_code, ''),
		       COALESCE(latitude, 0), COALESCE(longitude, 0), COALESCE(bounds, '')
		FROM regions`)
	if err != nil {
		return Dataset{}, fmt.Errorf("region: snapshot regions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r Region
		var typ string
		if err := rows.Scan(&r.ID, &r.Name, &typ, &r.StateID, &r.StateCode,
			&r.FIPSCode, &r.CensusPlaceCode, &r.Latitude, &r.Longitude, &r.Bounds); err != nil {
			return Dataset{}, fmt.Errorf("region: scan region: %w", err)
		}
		r.Type = Type(typ)
		ds.Regions = append(ds.Regions, r)
	}
	if err := rows.Err(); err != nil {
		return Dataset{}, fmt.Errorf("region: snapshot regions: %w", err)
	}

	relRows, err := s.db.Query(ctx, `
		SELECT child_id, parent_id, relationship_type, is_primary, coverage_percentage
		FROM region_relationships`)
	if err != nil {
		return Dataset{}, fmt.Errorf("region: snapshot relationships: %w", err)
	}
	defer relRows.Close()
	for relRows.Next() {
		var rel Relationship
		if err := relRows.Scan(&rel.ChildID, &rel.ParentID, &rel.RelationshipType,
			&rel.IsPrimary, &rel.Coverage); err != nil {
			return Dataset{}, fmt.Errorf("region: scan relationship: %w", err)
		}
		ds.Relationships = append(ds.Relationships, rel)
	}
	if err := relRows.Err(); err != nil {
		return Dataset{}, fmt.Errorf("region: snapshot relationships: %w", err)
	}

	return ds, nil
}
