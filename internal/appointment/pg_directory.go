package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgDirectory reads the pet and veterinarian profile tables.
type PgDirectory struct {
	pool     *pgxpool.Pool
	location *time.Location
}

// NewPgDirectory uses loc for per-veterinarian working hours.
func NewPgDirectory(pool *pgxpool.Pool, loc *time.Location) *PgDirectory {
	if loc == nil {
		loc = time.UTC
	}
	return &PgDirectory{pool: pool, location: loc}
}

func (d *PgDirectory) PetOwner(ctx context.Context, petID uuid.UUID) (uuid.UUID, error) {
	var ownerID uuid.UUID
	err := d.pool.QueryRow(ctx, `SELECT owner_id FROM pets WHERE id = $1`, petID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrPetNotFound
		}
		return uuid.Nil, fmt.Errorf("get pet owner: %w", err)
	}
	return ownerID, nil
}

func (d *PgDirectory) Veterinarian(ctx context.Context, userID uuid.UUID) (*Veterinarian, error) {
	var (
		v                  Veterinarian
		status             string
		workStart, workEnd *string
	)
	err := d.pool.QueryRow(ctx, `
		SELECT u.id, u.name, v.status, v.work_start, v.work_end
		FROM veterinarians v
		JOIN users u ON u.id = v.user_id
		WHERE v.user_id = $1
	`, userID).Scan(&v.ID, &v.Name, &status, &workStart, &workEnd)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVeterinarianNotFound
		}
		return nil, fmt.Errorf("get veterinarian: %w", err)
	}

	v.Approved = status == "approved"
	if workStart != nil && workEnd != nil {
		hours, err := NewWorkingHours(*workStart, *workEnd, d.location)
		if err != nil {
			return nil, fmt.Errorf("veterinarian %s working hours: %w", userID, err)
		}
		v.WorkingHours = &hours
	}
	return &v, nil
}
