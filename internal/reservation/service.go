package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"ms-reservation/internal/config"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
	"ms-reservation/internal/reservation/holdstore"
	"ms-reservation/internal/utils"
)

// CatalogStore is the durable side of the system: catalog reads for
// validation and hydration, and the write-through of confirmed sales.
type CatalogStore interface {
	GetTicketType(ctx context.Context, id string) (*models.TicketType, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	CountSold(ctx context.Context, ticketTypeID string) (int, error)
	AppendConfirmedTickets(ctx context.Context, tickets []models.ConfirmedTicket) error
}

// Ledger is the fast-path availability counter. TryConsume is the only way to
// take units, so the check-then-act race cannot be reintroduced by callers.
type Ledger interface {
	Get(ctx context.Context, ticketTypeID string) (int, error)
	TryConsume(ctx context.Context, ticketTypeID string, quantity int) (bool, error)
	Restore(ctx context.Context, ticketTypeID string, quantity int) error
	Invalidate(ticketTypeID string)
}

type Publisher interface {
	Publish(topic string, key string, value []byte) error
}

type QRGenerator interface {
	GenerateEncryptedQR(ticket models.ConfirmedTicket) ([]byte, error)
}

// Service orchestrates the hold lifecycle: reserve, read, confirm, cancel and
// the automatic expiry reaction wired from the hold store.
type Service struct {
	Catalog CatalogStore
	Ledger  Ledger
	Holds   holdstore.Store
	Kafka   Publisher
	QR      QRGenerator
	Logger  *logger.Logger

	holdTTL     time.Duration
	maxQuantity int
	topics      config.TopicConfig
}

func NewService(catalog CatalogStore, ledger Ledger, holds holdstore.Store, kafka Publisher, qr QRGenerator, log *logger.Logger, cfg config.ReservationConfig, topics config.TopicConfig) *Service {
	s := &Service{
		Catalog:     catalog,
		Ledger:      ledger,
		Holds:       holds,
		Kafka:       kafka,
		QR:          qr,
		Logger:      log,
		holdTTL:     cfg.HoldTTL,
		maxQuantity: cfg.MaxQuantity,
		topics:      topics,
	}
	holds.OnEviction(s.handleExpiry)
	return s
}

// Reserve creates a 15-minute hold on quantity units of a ticket type. The
// ledger decrement and the hold insertion either both happen or neither does:
// a failed insertion rolls the decrement back.
func (s *Service) Reserve(ctx context.Context, req models.ReserveRequest) (*models.ReserveResponse, error) {
	if err := s.validateReserve(req); err != nil {
		return nil, err
	}

	tt, err := s.Catalog.GetTicketType(ctx, req.TicketTypeID)
	if err != nil {
		return nil, mapCatalogErr(err, "ticket type %s", req.TicketTypeID)
	}
	if !tt.IsActive {
		return nil, fmt.Errorf("ticket type %s is inactive: %w", req.TicketTypeID, ErrNotFound)
	}
	if req.EventID != "" && req.EventID != tt.EventID {
		return nil, fmt.Errorf("ticket type %s does not belong to event %s: %w", req.TicketTypeID, req.EventID, ErrNotFound)
	}

	event, err := s.Catalog.GetEvent(ctx, tt.EventID)
	if err != nil {
		return nil, mapCatalogErr(err, "event %s", tt.EventID)
	}
	if !event.IsActive {
		return nil, fmt.Errorf("event %s is inactive: %w", event.EventID, ErrNotFound)
	}
	if !event.EventDate.After(time.Now()) {
		return nil, fmt.Errorf("event %s already took place: %w", event.EventID, ErrInvalidState)
	}

	ok, err := s.Ledger.TryConsume(ctx, tt.TicketTypeID, req.Quantity)
	if err != nil {
		return nil, fmt.Errorf("availability check for %s: %w", tt.TicketTypeID, err)
	}
	if !ok {
		return nil, fmt.Errorf("requested %d of %s: %w", req.Quantity, tt.TicketTypeID, ErrInsufficientAvailability)
	}

	now := time.Now()
	serials := make([]string, req.Quantity)
	for i := range serials {
		serials[i] = utils.GenerateTicketSerial()
	}

	hold := &models.Hold{
		HoldID:        utils.GenerateHoldID(),
		EventID:       tt.EventID,
		TicketTypeID:  tt.TicketTypeID,
		Quantity:      req.Quantity,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		PricePerUnit:  tt.Price,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.holdTTL),
		TicketSerials: serials,
		Notes:         req.Notes,
	}

	if err := s.Holds.Put(ctx, hold, s.holdTTL); err != nil {
		// No orphaned decrement: give the units back before failing.
		if rbErr := s.Ledger.Restore(ctx, tt.TicketTypeID, req.Quantity); rbErr != nil {
			s.Logger.Error("RESERVE", fmt.Sprintf("Rollback after failed hold insert for %s also failed: %v", tt.TicketTypeID, rbErr))
		}
		return nil, fmt.Errorf("store hold %s: %w", hold.HoldID, err)
	}

	s.Logger.LogHold("CREATED", hold.HoldID, fmt.Sprintf("%d x %s expires %s", hold.Quantity, hold.TicketTypeID, hold.ExpiresAt.Format(time.RFC3339)))
	s.publish(s.topics.HoldCreated, hold)

	return &models.ReserveResponse{
		HoldID:        hold.HoldID,
		TicketSerials: serials,
		ExpiresAt:     hold.ExpiresAt,
		TotalPrice:    hold.TotalPrice(),
	}, nil
}

// GetHold returns the hold if present and not past its expiry. A hold whose
// TTL elapsed but whose eviction has not fired yet reads as expired, never as
// present.
func (s *Service) GetHold(ctx context.Context, holdID string) (*models.HoldView, error) {
	hold, err := s.Holds.Get(ctx, holdID)
	if errors.Is(err, holdstore.ErrNotFound) {
		return nil, fmt.Errorf("hold %s: %w", holdID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get hold %s: %w", holdID, err)
	}

	now := time.Now()
	if hold.IsExpired(now) {
		return nil, fmt.Errorf("hold %s: %w", holdID, ErrExpired)
	}

	return &models.HoldView{
		Hold:          *hold,
		TotalPrice:    hold.TotalPrice(),
		TimeRemaining: hold.TimeRemaining(now),
	}, nil
}

// Cancel removes the hold and restores its units. Safe to race against the
// expiry timer: the store's atomic remove decides the single winner, and only
// the winner restores.
func (s *Service) Cancel(ctx context.Context, holdID string) error {
	hold, removed, err := s.Holds.Remove(ctx, holdID)
	if err != nil {
		return fmt.Errorf("cancel hold %s: %w", holdID, err)
	}
	if !removed {
		return fmt.Errorf("hold %s: %w", holdID, ErrNotFound)
	}

	if err := s.Ledger.Restore(ctx, hold.TicketTypeID, hold.Quantity); err != nil {
		s.Logger.Error("CANCEL", fmt.Sprintf("Failed to restore %d units of %s: %v", hold.Quantity, hold.TicketTypeID, err))
	}

	s.Logger.LogHold("CANCELLED", holdID, fmt.Sprintf("%d x %s restored", hold.Quantity, hold.TicketTypeID))
	s.publish(s.topics.HoldCancelled, hold)
	return nil
}

// Confirm converts a hold into durable tickets exactly once. The catalog
// write is all-or-nothing; on failure the hold stays active so the caller can
// retry or let it expire.
func (s *Service) Confirm(ctx context.Context, holdID, paymentRef, notes string) error {
	hold, err := s.Holds.Get(ctx, holdID)
	if errors.Is(err, holdstore.ErrNotFound) {
		return fmt.Errorf("hold %s: %w", holdID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("confirm hold %s: %w", holdID, err)
	}

	if hold.IsExpired(time.Now()) {
		// Evict eagerly; if the timer already won, it did the restoration.
		if _, removed, rmErr := s.Holds.Remove(ctx, holdID); rmErr == nil && removed {
			if err := s.Ledger.Restore(ctx, hold.TicketTypeID, hold.Quantity); err != nil {
				s.Logger.Error("CONFIRM", fmt.Sprintf("Failed to restore expired hold %s: %v", holdID, err))
			}
		}
		return fmt.Errorf("hold %s: %w", holdID, ErrExpired)
	}

	// Defensive re-check: the catalog may have deactivated the ticket type or
	// event since the hold was created. The ledger count is not re-checked;
	// the hold already owns its units.
	tt, err := s.Catalog.GetTicketType(ctx, hold.TicketTypeID)
	if err != nil {
		return mapCatalogErr(err, "ticket type %s", hold.TicketTypeID)
	}
	if !tt.IsActive {
		return fmt.Errorf("ticket type %s is inactive: %w", hold.TicketTypeID, ErrInvalidState)
	}
	event, err := s.Catalog.GetEvent(ctx, hold.EventID)
	if err != nil {
		return mapCatalogErr(err, "event %s", hold.EventID)
	}
	if !event.IsActive {
		return fmt.Errorf("event %s is inactive: %w", hold.EventID, ErrInvalidState)
	}

	purchasedAt := time.Now()
	tickets := make([]models.ConfirmedTicket, hold.Quantity)
	for i, serial := range hold.TicketSerials {
		tickets[i] = models.ConfirmedTicket{
			TicketSerial:  serial,
			EventID:       hold.EventID,
			TicketTypeID:  hold.TicketTypeID,
			CustomerName:  hold.CustomerName,
			CustomerEmail: hold.CustomerEmail,
			CustomerPhone: hold.CustomerPhone,
			Status:        models.TicketStatusPurchased,
			Price:         hold.PricePerUnit,
			ReservedAt:    hold.CreatedAt,
			PurchasedAt:   purchasedAt,
			PaymentRef:    paymentRef,
			Notes:         mergeNotes(hold.Notes, notes),
		}
		if s.QR != nil {
			qrBytes, qrErr := s.QR.GenerateEncryptedQR(tickets[i])
			if qrErr != nil {
				s.Logger.Warn("CONFIRM", fmt.Sprintf("QR generation failed for %s: %v", serial, qrErr))
			} else {
				tickets[i].QRCode = qrBytes
			}
		}
	}

	if err := s.Catalog.AppendConfirmedTickets(ctx, tickets); err != nil {
		return fmt.Errorf("write %d tickets for hold %s: %v: %w", len(tickets), holdID, err, ErrWriteFailure)
	}

	// The units stay consumed: no ledger adjustment on the success path.
	_, removed, err := s.Holds.Remove(ctx, holdID)
	if err != nil {
		s.Logger.Error("CONFIRM", fmt.Sprintf("Failed to remove confirmed hold %s: %v", holdID, err))
	}
	if !removed {
		// The expiry timer fired during the catalog write and restored units
		// that are now sold. Force the next read to re-derive from the sold
		// count instead of trusting the inflated counter.
		s.Logger.Warn("CONFIRM", fmt.Sprintf("Hold %s expired during confirmation write; invalidating ledger for %s", holdID, hold.TicketTypeID))
		s.Ledger.Invalidate(hold.TicketTypeID)
	}

	s.Logger.LogHold("CONFIRMED", holdID, fmt.Sprintf("%d tickets written, payment %s", len(tickets), paymentRef))
	s.publish(s.topics.HoldConfirmed, hold)
	return nil
}

// CheckAvailability reports whether a hold of the given size could be created
// now. Advisory only; Reserve re-checks atomically.
func (s *Service) CheckAvailability(ctx context.Context, ticketTypeID string, quantity int) (bool, error) {
	if quantity < 1 {
		return false, fmt.Errorf("quantity must be positive: %w", ErrValidation)
	}
	available, err := s.Ledger.Get(ctx, ticketTypeID)
	if err != nil {
		return false, err
	}
	return available >= quantity, nil
}

// handleExpiry is the automatic expiry reaction. It runs on the store's
// notification path and must never fail hard: a restore error degrades to
// logging, and the ledger itself falls back to re-hydration when its key is
// missing.
func (s *Service) handleExpiry(hold *models.Hold) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Ledger.Restore(ctx, hold.TicketTypeID, hold.Quantity); err != nil {
		s.Logger.Error("EXPIRY", fmt.Sprintf("Failed to restore %d units of %s for hold %s: %v", hold.Quantity, hold.TicketTypeID, hold.HoldID, err))
	}

	s.Logger.LogHold("EXPIRED", hold.HoldID, fmt.Sprintf("%d x %s restored", hold.Quantity, hold.TicketTypeID))
	s.publish(s.topics.HoldExpired, hold)
}

func (s *Service) validateReserve(req models.ReserveRequest) error {
	if req.TicketTypeID == "" {
		return fmt.Errorf("ticket_type_id is required: %w", ErrValidation)
	}
	if req.Quantity < 1 || req.Quantity > s.maxQuantity {
		return fmt.Errorf("quantity must be between 1 and %d: %w", s.maxQuantity, ErrValidation)
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		return fmt.Errorf("customer_name is required: %w", ErrValidation)
	}
	if _, err := mail.ParseAddress(req.CustomerEmail); err != nil {
		return fmt.Errorf("customer_email %q is not a valid address: %w", req.CustomerEmail, ErrValidation)
	}
	return nil
}

func (s *Service) publish(topic string, hold *models.Hold) {
	if s.Kafka == nil || topic == "" {
		return
	}
	value, err := json.Marshal(hold)
	if err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to marshal hold %s: %v", hold.HoldID, err))
		return
	}
	if err := s.Kafka.Publish(topic, hold.HoldID, value); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Publish to %s failed for hold %s: %v", topic, hold.HoldID, err))
	}
}

func mergeNotes(holdNotes, confirmNotes string) string {
	switch {
	case confirmNotes == "":
		return holdNotes
	case holdNotes == "":
		return confirmNotes
	default:
		return holdNotes + "; " + confirmNotes
	}
}

func mapCatalogErr(err error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if isCatalogNotFound(err) {
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
