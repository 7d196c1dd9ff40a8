package repository

import (
	"database/sql"
	"fmt"

	"github.com/ds124wfegd/civicportal/internal/database"
	"github.com/ds124wfegd/civicportal/internal/entity"
)

// NewRepositories builds the PostgreSQL implementations over one pool.
func NewRepositories(db *sql.DB) database.Repositories {
	return database.Repositories{
		Registrations: NewRegistrationRepository(db),
		Bookings:      NewBookingRepository(db),
		Catalog:       NewCatalogRepository(db),
	}
}

// storeErr marks driver failures so callers can classify them.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, entity.ErrStoreUnavailable, err)
}
