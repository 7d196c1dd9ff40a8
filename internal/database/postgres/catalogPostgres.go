package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ds124wfegd/civicportal/internal/database"
	"github.com/ds124wfegd/civicportal/internal/entity"
)

type catalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) database.CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) GetResource(ctx context.Context, id string) (*entity.Resource, error) {
	query := `SELECT id, kind, title, capacity, scheduled_at, closed FROM resources WHERE id = $1`

	var res entity.Resource
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&res.ID,
		&res.Kind,
		&res.Title,
		&res.Capacity,
		&res.ScheduledAt,
		&res.Closed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrInvalidResource
	}
	if err != nil {
		return nil, storeErr("get resource", err)
	}

	return &res, nil
}

func (r *catalogRepository) ListResources(ctx context.Context) ([]*entity.Resource, error) {
	query := `SELECT id, kind, title, capacity, scheduled_at, closed FROM resources ORDER BY scheduled_at, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storeErr("list resources", err)
	}
	defer rows.Close()

	var resources []*entity.Resource
	for rows.Next() {
		var res entity.Resource
		if err := rows.Scan(&res.ID, &res.Kind, &res.Title, &res.Capacity, &res.ScheduledAt, &res.Closed); err != nil {
			return nil, storeErr("scan resource", err)
		}
		resources = append(resources, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate resources", err)
	}

	return resources, nil
}

func (r *catalogRepository) UpsertResource(ctx context.Context, resource *entity.Resource) error {
	query := `
		INSERT INTO resources (id, kind, title, capacity, scheduled_at, closed)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind,
			title = EXCLUDED.title,
			capacity = EXCLUDED.capacity,
			scheduled_at = EXCLUDED.scheduled_at,
			closed = EXCLUDED.closed
	`

	_, err := r.db.ExecContext(ctx, query,
		resource.ID,
		resource.Kind,
		resource.Title,
		resource.Capacity,
		resource.ScheduledAt,
		resource.Closed,
	)
	if err != nil {
		return storeErr("upsert resource", err)
	}
	return nil
}

func (r *catalogRepository) GetVenue(ctx context.Context, name string) (*entity.Venue, error) {
	var v entity.Venue
	err := r.db.QueryRowContext(ctx, `SELECT name, description FROM venues WHERE name = $1`, name).
		Scan(&v.Name, &v.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrInvalidVenue
	}
	if err != nil {
		return nil, storeErr("get venue", err)
	}
	return &v, nil
}

func (r *catalogRepository) ListVenues(ctx context.Context) ([]*entity.Venue, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, description FROM venues ORDER BY name`)
	if err != nil {
		return nil, storeErr("list venues", err)
	}
	defer rows.Close()

	var venues []*entity.Venue
	for rows.Next() {
		var v entity.Venue
		if err := rows.Scan(&v.Name, &v.Description); err != nil {
			return nil, storeErr("scan venue", err)
		}
		venues = append(venues, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate venues", err)
	}

	return venues, nil
}

func (r *catalogRepository) UpsertVenue(ctx context.Context, venue *entity.Venue) error {
	query := `
		INSERT INTO venues (name, description) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
	`
	if _, err := r.db.ExecContext(ctx, query, venue.Name, venue.Description); err != nil {
		return storeErr("upsert venue", err)
	}
	return nil
}
