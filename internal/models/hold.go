package models

import "time"

// Hold is a time-bounded claim on inventory. It lives only in the hold store
// and is immutable once created; it leaves the store through exactly one of
// cancel, confirm or expiry.
type Hold struct {
	HoldID        string    `json:"hold_id"`
	EventID       string    `json:"event_id"`
	TicketTypeID  string    `json:"ticket_type_id"`
	Quantity      int       `json:"quantity"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	CustomerPhone string    `json:"customer_phone,omitempty"`
	PricePerUnit  float64   `json:"price_per_unit"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	TicketSerials []string  `json:"ticket_serials"`
	Notes         string    `json:"notes,omitempty"`
}

func (h *Hold) TotalPrice() float64 {
	return h.PricePerUnit * float64(h.Quantity)
}

func (h *Hold) IsExpired(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}

func (h *Hold) TimeRemaining(now time.Time) time.Duration {
	return h.ExpiresAt.Sub(now)
}
