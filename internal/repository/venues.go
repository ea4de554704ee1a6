package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"futsal/internal/database"
	"futsal/internal/models"
)

const venueColumns = `id, name, location, description, contact, is_active, created_at`

type VenueRepository struct {
	db *database.DB
}

func NewVenueRepository(db *database.DB) *VenueRepository {
	return &VenueRepository{db: db}
}

func (r *VenueRepository) GetByID(ctx context.Context, id int64) (*models.Venue, error) {
	venue := &models.Venue{}
	query := `SELECT ` + venueColumns + ` FROM venues WHERE id = $1`

	err := sqlx.GetContext(ctx, r.db.Conn(ctx), venue, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return venue, nil
}

// Search matches active venues by name or location
func (r *VenueRepository) Search(ctx context.Context, query string, limit int) ([]models.Venue, error) {
	venues := []models.Venue{}
	sqlQuery := `
		SELECT ` + venueColumns + `
		FROM venues
		WHERE is_active = TRUE AND ($1 = '' OR name ILIKE '%' || $1 || '%' OR location ILIKE '%' || $1 || '%')
		ORDER BY name, id
		LIMIT $2`

	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &venues, sqlQuery, query, limit); err != nil {
		return nil, err
	}
	return venues, nil
}

// ListActive is used to rebuild the search index
func (r *VenueRepository) ListActive(ctx context.Context) ([]models.Venue, error) {
	venues := []models.Venue{}
	query := `SELECT ` + venueColumns + ` FROM venues WHERE is_active = TRUE ORDER BY id`

	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &venues, query); err != nil {
		return nil, err
	}
	return venues, nil
}

type GroundRepository struct {
	db *database.DB
}

func NewGroundRepository(db *database.DB) *GroundRepository {
	return &GroundRepository{db: db}
}

func (r *GroundRepository) GetByID(ctx context.Context, id int64) (*models.Ground, error) {
	ground := &models.Ground{}
	query := `SELECT id, venue_id, name, price_per_hour, is_available FROM grounds WHERE id = $1`

	err := sqlx.GetContext(ctx, r.db.Conn(ctx), ground, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ground, nil
}

func (r *GroundRepository) ListByVenue(ctx context.Context, venueID int64) ([]models.Ground, error) {
	grounds := []models.Ground{}
	query := `SELECT id, venue_id, name, price_per_hour, is_available FROM grounds WHERE venue_id = $1 ORDER BY id`

	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &grounds, query, venueID); err != nil {
		return nil, err
	}
	return grounds, nil
}

// ListAvailable returns every ground open for booking, used by the slot generator
func (r *GroundRepository) ListAvailable(ctx context.Context) ([]models.Ground, error) {
	grounds := []models.Ground{}
	query := `SELECT id, venue_id, name, price_per_hour, is_available FROM grounds WHERE is_available = TRUE ORDER BY id`

	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &grounds, query); err != nil {
		return nil, err
	}
	return grounds, nil
}
