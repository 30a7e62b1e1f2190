package models

import "time"

type ReserveRequest struct {
	EventID       string `json:"event_id"`
	TicketTypeID  string `json:"ticket_type_id"`
	Quantity      int    `json:"quantity"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

type ReserveResponse struct {
	HoldID        string    `json:"hold_id"`
	TicketSerials []string  `json:"ticket_serials"`
	ExpiresAt     time.Time `json:"expires_at"`
	TotalPrice    float64   `json:"total_price"`
}

type ConfirmRequest struct {
	PaymentReference string `json:"payment_reference"`
	Notes            string `json:"notes,omitempty"`
}

// HoldView is what GetHold returns to callers: the hold plus derived fields.
type HoldView struct {
	Hold          Hold          `json:"hold"`
	TotalPrice    float64       `json:"total_price"`
	TimeRemaining time.Duration `json:"time_remaining"`
}

type CreateEventRequest struct {
	Title        string                    `json:"title"`
	Description  string                    `json:"description,omitempty"`
	EventDate    time.Time                 `json:"event_date"`
	Venue        string                    `json:"venue,omitempty"`
	VenueAddress string                    `json:"venue_address,omitempty"`
	TicketTypes  []CreateTicketTypeRequest `json:"ticket_types"`
}

type CreateTicketTypeRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Capacity    int     `json:"capacity"`
}

type UpdateEventRequest struct {
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	EventDate    *time.Time `json:"event_date,omitempty"`
	Venue        *string    `json:"venue,omitempty"`
	VenueAddress *string    `json:"venue_address,omitempty"`
	IsActive     *bool      `json:"is_active,omitempty"`
}

type UpdateTicketTypeRequest struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Capacity    *int     `json:"capacity,omitempty"`
	IsActive    *bool    `json:"is_active,omitempty"`
}
