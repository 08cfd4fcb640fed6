// Package entities persists the production location and project records that
// finalized imports materialize into, scoped to a tenant.
package entities

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/veridian-env/wastestream/internal/db"
)

const migrateSQL = `
CREATE TABLE IF NOT EXISTS locations (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	company_id TEXT NOT NULL,
	name TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	address TEXT NOT NULL DEFAULT '',
	city TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT '',
	postal_code TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_locations_tenant_norm ON locations (tenant_id, normalized_name);

CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	location_id TEXT NOT NULL REFERENCES locations(id),
	name TEXT NOT NULL,
	waste_category TEXT NOT NULL DEFAULT '',
	hauler_name TEXT NOT NULL DEFAULT '',
	container_count INTEGER NOT NULL DEFAULT 0,
	service_frequency TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_projects_tenant_location ON projects (tenant_id, location_id);
`

// Location is a production facility record.
type Location struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	CompanyID      string    `json:"company_id"`
	Name           string    `json:"name"`
	NormalizedName string    `json:"normalized_name"`
	Address        string    `json:"address,omitempty"`
	City           string    `json:"city,omitempty"`
	State          string    `json:"state,omitempty"`
	PostalCode     string    `json:"postal_code,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Project is a production waste-stream service record tied to a location.
type Project struct {
	ID               string    `json:"id"`
	TenantID         string    `json:"tenant_id"`
	LocationID       string    `json:"location_id"`
	Name             string    `json:"name"`
	WasteCategory    string    `json:"waste_category,omitempty"`
	HaulerName       string    `json:"hauler_name,omitempty"`
	ContainerCount   int       `json:"container_count,omitempty"`
	ServiceFrequency string    `json:"service_frequency,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Store reads and writes production entities through a pgx pool.
type Store struct {
	pool db.Pool
}

func NewStore(pool db.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the production tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, migrateSQL); err != nil {
		return eris.Wrap(err, "entities: migrate")
	}
	return nil
}

// ListLocations returns every location for a tenant, used by the duplicate
// reconciler to score candidates.
func (s *Store) ListLocations(ctx context.Context, tenantID string) ([]Location, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, company_id, name, normalized_name, address, city, state, postal_code, created_at
		FROM locations WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "entities: list locations")
	}
	defer rows.Close()

	var locs []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.TenantID, &l.CompanyID, &l.Name, &l.NormalizedName,
			&l.Address, &l.City, &l.State, &l.PostalCode, &l.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "entities: scan location")
		}
		locs = append(locs, l)
	}
	return locs, rows.Err()
}

// ListProjects returns every project for a tenant, used by the duplicate
// reconciler to score project candidates.
func (s *Store) ListProjects(ctx context.Context, tenantID string) ([]Project, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, location_id, name, waste_category, hauler_name, container_count, service_frequency, created_at
		FROM projects WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "entities: list projects")
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.TenantID, &p.LocationID, &p.Name, &p.WasteCategory,
			&p.HaulerName, &p.ContainerCount, &p.ServiceFrequency, &p.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "entities: scan project")
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetLocation fetches one tenant location by id. Returns (nil, nil) when the
// location does not exist for the tenant.
func (s *Store) GetLocation(ctx context.Context, tenantID, id string) (*Location, error) {
	return getLocation(ctx, s.pool, tenantID, id)
}

func getLocation(ctx context.Context, q db.Querier, tenantID, id string) (*Location, error) {
	var l Location
	err := q.QueryRow(ctx, `
		SELECT id, tenant_id, company_id, name, normalized_name, address, city, state, postal_code, created_at
		FROM locations WHERE tenant_id = $1 AND id = $2`, tenantID, id).
		Scan(&l.ID, &l.TenantID, &l.CompanyID, &l.Name, &l.NormalizedName,
			&l.Address, &l.City, &l.State, &l.PostalCode, &l.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "entities: get location")
	}
	return &l, nil
}

// LocationExists checks a tenant location inside the caller's transaction.
func LocationExists(ctx context.Context, q db.Querier, tenantID, id string) (bool, error) {
	loc, err := getLocation(ctx, q, tenantID, id)
	if err != nil {
		return false, err
	}
	return loc != nil, nil
}

// InsertLocation writes a new location inside the caller's transaction,
// assigning an id and normalized name when unset. The finalizer calls this so
// materialization commits atomically with run completion.
func InsertLocation(ctx context.Context, q db.Querier, loc *Location) error {
	if loc.ID == "" {
		loc.ID = uuid.New().String()
	}
	if loc.NormalizedName == "" {
		loc.NormalizedName = NormalizeName(loc.Name)
	}
	_, err := q.Exec(ctx, `
		INSERT INTO locations (id, tenant_id, company_id, name, normalized_name, address, city, state, postal_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		loc.ID, loc.TenantID, loc.CompanyID, loc.Name, loc.NormalizedName,
		loc.Address, loc.City, loc.State, loc.PostalCode)
	if err != nil {
		return eris.Wrap(err, "entities: insert location")
	}
	return nil
}

// InsertProject writes a new project inside the caller's transaction,
// assigning an id when unset.
func InsertProject(ctx context.Context, q db.Querier, p *Project) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO projects (id, tenant_id, location_id, name, waste_category, hauler_name, container_count, service_frequency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.TenantID, p.LocationID, p.Name, p.WasteCategory,
		p.HaulerName, p.ContainerCount, p.ServiceFrequency)
	if err != nil {
		return eris.Wrap(err, "entities: insert project")
	}
	return nil
}
