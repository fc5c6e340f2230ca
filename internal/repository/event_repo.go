package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stagepass/backend/internal/models"
)

type EventRepo struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// Create inserts the event within the caller's transaction so the mint of
// its supply commits or rolls back with it.
func (r *EventRepo) Create(ctx context.Context, tx pgx.Tx, ev *models.Event) error {
	return tx.QueryRow(ctx, `
		INSERT INTO events (organizer_address, name, symbol, event_date, wholesale_cents, max_resale_cents)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, ev.OrganizerAddress, ev.Name, ev.Symbol, ev.Date, ev.WholesaleCents, ev.MaxResaleCents).Scan(&ev.ID, &ev.CreatedAt)
}

func (r *EventRepo) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	var ev models.Event
	err := r.pool.QueryRow(ctx, `
		SELECT id, organizer_address, name, symbol, event_date, wholesale_cents, max_resale_cents, created_at
		FROM events WHERE id = $1
	`, id).Scan(&ev.ID, &ev.OrganizerAddress, &ev.Name, &ev.Symbol, &ev.Date, &ev.WholesaleCents, &ev.MaxResaleCents, &ev.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (r *EventRepo) ListByOrganizer(ctx context.Context, organizerAddress string) ([]*models.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, organizer_address, name, symbol, event_date, wholesale_cents, max_resale_cents, created_at
		FROM events WHERE organizer_address = $1 ORDER BY created_at DESC
	`, organizerAddress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Event
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.ID, &ev.OrganizerAddress, &ev.Name, &ev.Symbol, &ev.Date, &ev.WholesaleCents, &ev.MaxResaleCents, &ev.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &ev)
	}
	return list, rows.Err()
}
