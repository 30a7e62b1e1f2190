package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-reservation/internal/models"
)

var ErrNotFound = errors.New("catalog entity not found")

type DB struct {
	Bun *bun.DB
}

// ---------------- CORE READS ----------------

func (d *DB) GetTicketType(ctx context.Context, id string) (*models.TicketType, error) {
	var tt models.TicketType
	err := d.Bun.NewSelect().
		Model(&tt).
		Where("ticket_type_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tt, nil
}

func (d *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("event_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (d *DB) GetEventWithTypes(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Relation("TicketTypes").
		Where("event.event_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// CountSold returns the number of durably purchased tickets for a ticket type.
func (d *DB) CountSold(ctx context.Context, ticketTypeID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.ConfirmedTicket)(nil)).
		Where("ticket_type_id = ?", ticketTypeID).
		Where("status = ?", models.TicketStatusPurchased).
		Count(ctx)
}

// BaseAvailability is the ledger's hydration source: capacity minus sold
// count for an active ticket type of an active, future event, 0 otherwise.
func (d *DB) BaseAvailability(ctx context.Context, ticketTypeID string) (int, error) {
	tt, err := d.GetTicketType(ctx, ticketTypeID)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !tt.IsActive {
		return 0, nil
	}

	event, err := d.GetEvent(ctx, tt.EventID)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !event.IsActive || !event.EventDate.After(time.Now()) {
		return 0, nil
	}

	sold, err := d.CountSold(ctx, ticketTypeID)
	if err != nil {
		return 0, err
	}

	available := tt.Capacity - sold
	if available < 0 {
		available = 0
	}
	return available, nil
}

// ---------------- CONFIRMATION WRITE ----------------

// AppendConfirmedTickets inserts every ticket of a confirmed hold in one
// transaction. A half-written confirmation is never observable.
func (d *DB) AppendConfirmedTickets(ctx context.Context, tickets []models.ConfirmedTicket) error {
	if len(tickets) == 0 {
		return nil
	}
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&tickets).Exec(ctx)
		return err
	})
}

// ---------------- CATALOG MANAGEMENT ----------------

func (d *DB) CreateEvent(ctx context.Context, event *models.Event, types []*models.TicketType) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(event).Exec(ctx); err != nil {
			return err
		}
		if len(types) > 0 {
			if _, err := tx.NewInsert().Model(&types).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *DB) UpdateTicketType(ctx context.Context, tt *models.TicketType) error {
	_, err := d.Bun.NewUpdate().
		Model(tt).
		Column("name", "description", "price", "capacity", "is_active", "updated_at").
		Where("ticket_type_id = ?", tt.TicketTypeID).
		Exec(ctx)
	return err
}

func (d *DB) UpdateEvent(ctx context.Context, event *models.Event) error {
	_, err := d.Bun.NewUpdate().
		Model(event).
		Column("title", "description", "event_date", "venue", "venue_address", "is_active", "updated_at").
		Where("event_id = ?", event.EventID).
		Exec(ctx)
	return err
}

func (d *DB) ListEvents(ctx context.Context, includeInactive bool) ([]models.Event, error) {
	var events []models.Event
	q := d.Bun.NewSelect().
		Model(&events).
		Relation("TicketTypes").
		Order("event_date ASC")
	if !includeInactive {
		q = q.Where("event.is_active = ?", true)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

// HasSoldTickets reports whether any ticket of the event was ever purchased.
// It decides soft versus hard delete.
func (d *DB) HasSoldTickets(ctx context.Context, eventID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.ConfirmedTicket)(nil)).
		Where("event_id = ?", eventID).
		Where("status = ?", models.TicketStatusPurchased).
		Exists(ctx)
}

func (d *DB) DeactivateEvent(ctx context.Context, eventID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = ?", time.Now()).
		Where("event_id = ?", eventID).
		Exec(ctx)
	return err
}

func (d *DB) DeleteEvent(ctx context.Context, eventID string) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.TicketType)(nil)).
			Where("event_id = ?", eventID).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().
			Model((*models.Event)(nil)).
			Where("event_id = ?", eventID).
			Exec(ctx)
		return err
	})
}
