package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ds124wfegd/civicportal/internal/database"
	"github.com/ds124wfegd/civicportal/internal/entity"
)

type registrationRepository struct {
	db *sql.DB
}

func NewRegistrationRepository(db *sql.DB) database.RegistrationRepository {
	return &registrationRepository{db: db}
}

const registrationColumns = `
	id, resource_id, party_size, contact_name, contact_email, contact_phone,
	status, created_at, updated_at`

func (r *registrationRepository) AppendRegistration(ctx context.Context, registration *entity.Registration) error {
	query := `
		INSERT INTO registrations (
			id, resource_id, party_size, contact_name, contact_email, contact_phone,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		registration.ID,
		registration.ResourceID,
		registration.PartySize,
		registration.Contact.Name,
		registration.Contact.Email,
		registration.Contact.Phone,
		registration.Status,
		registration.CreatedAt,
		registration.UpdatedAt,
	)
	if err != nil {
		return storeErr("append registration", err)
	}
	return nil
}

// QueryByResource orders by the insert sequence, which is the FIFO order.
func (r *registrationRepository) QueryByResource(ctx context.Context, resourceID string) ([]*entity.Registration, error) {
	query := `SELECT ` + registrationColumns + `
		FROM registrations
		WHERE resource_id = $1
		ORDER BY seq
	`

	rows, err := r.db.QueryContext(ctx, query, resourceID)
	if err != nil {
		return nil, storeErr("query registrations", err)
	}
	defer rows.Close()

	var registrations []*entity.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, storeErr("scan registration", err)
		}
		registrations = append(registrations, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate registrations", err)
	}

	return registrations, nil
}

func (r *registrationRepository) RegistrationByID(ctx context.Context, id string) (*entity.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`

	reg, err := scanRegistration(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrInvalidRegistration
	}
	if err != nil {
		return nil, storeErr("get registration", err)
	}
	return reg, nil
}

func (r *registrationRepository) UpdateRegistrationStatus(ctx context.Context, id string, status entity.RegistrationStatus, updatedAt time.Time) error {
	query := `UPDATE registrations SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, status, updatedAt, id)
	if err != nil {
		return storeErr("update registration status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storeErr("update registration status", err)
	}
	if rowsAffected == 0 {
		return entity.ErrInvalidRegistration
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRegistration(row rowScanner) (*entity.Registration, error) {
	var reg entity.Registration
	err := row.Scan(
		&reg.ID,
		&reg.ResourceID,
		&reg.PartySize,
		&reg.Contact.Name,
		&reg.Contact.Email,
		&reg.Contact.Phone,
		&reg.Status,
		&reg.CreatedAt,
		&reg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}
