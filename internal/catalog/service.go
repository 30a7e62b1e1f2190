package catalog

import (
	"context"
	"fmt"
	"time"

	catalogdb "ms-reservation/internal/catalog/db"
	"ms-reservation/internal/models"
	"ms-reservation/internal/utils"
)

type DBLayer interface {
	CreateEvent(ctx context.Context, event *models.Event, types []*models.TicketType) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	GetEventWithTypes(ctx context.Context, id string) (*models.Event, error)
	ListEvents(ctx context.Context, includeInactive bool) ([]models.Event, error)
	UpdateEvent(ctx context.Context, event *models.Event) error
	GetTicketType(ctx context.Context, id string) (*models.TicketType, error)
	UpdateTicketType(ctx context.Context, tt *models.TicketType) error
	HasSoldTickets(ctx context.Context, eventID string) (bool, error)
	DeactivateEvent(ctx context.Context, eventID string) error
	DeleteEvent(ctx context.Context, eventID string) error
	CountSold(ctx context.Context, ticketTypeID string) (int, error)
}

// LedgerInvalidator lets catalog changes drop stale availability entries.
type LedgerInvalidator interface {
	Invalidate(ticketTypeID string)
}

// HeldSource reports live reserved counts for the availability breakdown.
type HeldSource interface {
	HeldQuantity(ctx context.Context, ticketTypeID string) (int, error)
}

type EventService struct {
	DB     DBLayer
	Ledger LedgerInvalidator
	Holds  HeldSource
}

func NewEventService(db DBLayer, ledger LedgerInvalidator, holds HeldSource) *EventService {
	return &EventService{DB: db, Ledger: ledger, Holds: holds}
}

func (s *EventService) CreateEvent(ctx context.Context, req models.CreateEventRequest) (*models.Event, error) {
	now := time.Now()
	event := &models.Event{
		EventID:      utils.GenerateID("evt"),
		Title:        req.Title,
		Description:  req.Description,
		EventDate:    req.EventDate,
		Venue:        req.Venue,
		VenueAddress: req.VenueAddress,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	types := make([]*models.TicketType, 0, len(req.TicketTypes))
	for _, ttReq := range req.TicketTypes {
		types = append(types, &models.TicketType{
			TicketTypeID: utils.GenerateID("tt"),
			EventID:      event.EventID,
			Name:         ttReq.Name,
			Description:  ttReq.Description,
			Price:        ttReq.Price,
			Capacity:     ttReq.Capacity,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	if err := s.DB.CreateEvent(ctx, event, types); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	return s.DB.GetEventWithTypes(ctx, event.EventID)
}

func (s *EventService) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	return s.DB.GetEventWithTypes(ctx, id)
}

func (s *EventService) ListEvents(ctx context.Context, includeInactive bool) ([]models.Event, error) {
	return s.DB.ListEvents(ctx, includeInactive)
}

func (s *EventService) UpdateEvent(ctx context.Context, id string, req models.UpdateEventRequest) (*models.Event, error) {
	event, err := s.DB.GetEventWithTypes(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", id, err)
	}

	if req.Title != nil {
		event.Title = *req.Title
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.EventDate != nil {
		event.EventDate = *req.EventDate
	}
	if req.Venue != nil {
		event.Venue = *req.Venue
	}
	if req.VenueAddress != nil {
		event.VenueAddress = *req.VenueAddress
	}
	if req.IsActive != nil {
		event.IsActive = *req.IsActive
	}
	event.UpdatedAt = time.Now()

	if err := s.DB.UpdateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("update event %s: %w", id, err)
	}

	// Activation state feeds availability; stale ledger entries must go.
	if req.IsActive != nil || req.EventDate != nil {
		for _, tt := range event.TicketTypes {
			s.Ledger.Invalidate(tt.TicketTypeID)
		}
	}

	return s.DB.GetEventWithTypes(ctx, id)
}

// UpdateTicketType applies a partial update to a ticket type. Capacity, price
// and activation changes all feed availability, so the ledger entry is dropped
// and re-derived on the next read.
func (s *EventService) UpdateTicketType(ctx context.Context, eventID, ticketTypeID string, req models.UpdateTicketTypeRequest) (*models.TicketType, error) {
	tt, err := s.DB.GetTicketType(ctx, ticketTypeID)
	if err != nil {
		return nil, fmt.Errorf("ticket type %s: %w", ticketTypeID, err)
	}
	if tt.EventID != eventID {
		return nil, fmt.Errorf("ticket type %s does not belong to event %s: %w", ticketTypeID, eventID, catalogdb.ErrNotFound)
	}

	if req.Name != nil {
		tt.Name = *req.Name
	}
	if req.Description != nil {
		tt.Description = *req.Description
	}
	if req.Price != nil {
		tt.Price = *req.Price
	}
	if req.Capacity != nil {
		tt.Capacity = *req.Capacity
	}
	if req.IsActive != nil {
		tt.IsActive = *req.IsActive
	}
	tt.UpdatedAt = time.Now()

	if err := s.DB.UpdateTicketType(ctx, tt); err != nil {
		return nil, fmt.Errorf("update ticket type %s: %w", ticketTypeID, err)
	}

	if req.Capacity != nil || req.Price != nil || req.IsActive != nil {
		s.Ledger.Invalidate(ticketTypeID)
	}
	return tt, nil
}

// DeleteEvent soft-deletes (deactivates) when purchased tickets exist so the
// sales history survives, and hard-deletes otherwise. Returns whether the
// delete was soft.
func (s *EventService) DeleteEvent(ctx context.Context, id string) (bool, error) {
	event, err := s.DB.GetEventWithTypes(ctx, id)
	if err != nil {
		return false, fmt.Errorf("event %s: %w", id, err)
	}

	sold, err := s.DB.HasSoldTickets(ctx, id)
	if err != nil {
		return false, fmt.Errorf("check sold tickets for %s: %w", id, err)
	}

	if sold {
		if err := s.DB.DeactivateEvent(ctx, id); err != nil {
			return false, fmt.Errorf("deactivate event %s: %w", id, err)
		}
	} else {
		if err := s.DB.DeleteEvent(ctx, id); err != nil {
			return false, fmt.Errorf("delete event %s: %w", id, err)
		}
	}

	for _, tt := range event.TicketTypes {
		s.Ledger.Invalidate(tt.TicketTypeID)
	}
	return sold, nil
}

// GetEventAvailability breaks down capacity, sold, reserved and sellable
// counts per ticket type.
func (s *EventService) GetEventAvailability(ctx context.Context, id string) (*models.EventAvailability, error) {
	event, err := s.DB.GetEventWithTypes(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", id, err)
	}

	resp := &models.EventAvailability{
		EventID:    event.EventID,
		EventTitle: event.Title,
		EventDate:  event.EventDate,
		Venue:      event.Venue,
	}

	for _, tt := range event.TicketTypes {
		if !tt.IsActive {
			continue
		}
		sold, err := s.DB.CountSold(ctx, tt.TicketTypeID)
		if err != nil {
			return nil, fmt.Errorf("sold count for %s: %w", tt.TicketTypeID, err)
		}
		reserved, err := s.Holds.HeldQuantity(ctx, tt.TicketTypeID)
		if err != nil {
			return nil, fmt.Errorf("reserved count for %s: %w", tt.TicketTypeID, err)
		}

		available := tt.Capacity - sold - reserved
		if available < 0 {
			available = 0
		}
		resp.TicketTypes = append(resp.TicketTypes, models.TicketTypeAvailability{
			TicketTypeID:   tt.TicketTypeID,
			Name:           tt.Name,
			Price:          tt.Price,
			Capacity:       tt.Capacity,
			AvailableCount: available,
			ReservedCount:  reserved,
			SoldCount:      sold,
		})
	}

	return resp, nil
}
