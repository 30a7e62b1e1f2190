package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	EventID      string    `bun:"event_id,pk" json:"event_id"`
	Title        string    `bun:"title,notnull" json:"title"`
	Description  string    `bun:"description,nullzero" json:"description,omitempty"`
	EventDate    time.Time `bun:"event_date,notnull" json:"event_date"`
	Venue        string    `bun:"venue" json:"venue,omitempty"`
	VenueAddress string    `bun:"venue_address" json:"venue_address,omitempty"`
	IsActive     bool      `bun:"is_active,notnull" json:"is_active"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`

	TicketTypes []*TicketType `bun:"rel:has-many,join:event_id=event_id" json:"ticket_types,omitempty"`
}

type TicketType struct {
	bun.BaseModel `bun:"table:ticket_types"`

	TicketTypeID string    `bun:"ticket_type_id,pk" json:"ticket_type_id"`
	EventID      string    `bun:"event_id,notnull" json:"event_id"`
	Name         string    `bun:"name,notnull" json:"name"`
	Description  string    `bun:"description,nullzero" json:"description,omitempty"`
	Price        float64   `bun:"price,notnull" json:"price"`
	Capacity     int       `bun:"capacity,notnull" json:"capacity"`
	IsActive     bool      `bun:"is_active,notnull" json:"is_active"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`

	Event *Event `bun:"rel:belongs-to,join:event_id=event_id" json:"-"`
}

// TicketTypeAvailability is the per-type breakdown returned by the event
// availability endpoint. ReservedCount comes from the hold store, not the DB.
type TicketTypeAvailability struct {
	TicketTypeID   string  `json:"ticket_type_id"`
	Name           string  `json:"name"`
	Price          float64 `json:"price"`
	Capacity       int     `json:"capacity"`
	AvailableCount int     `json:"available_count"`
	ReservedCount  int     `json:"reserved_count"`
	SoldCount      int     `json:"sold_count"`
}

type EventAvailability struct {
	EventID     string                   `json:"event_id"`
	EventTitle  string                   `json:"event_title"`
	EventDate   time.Time                `json:"event_date"`
	Venue       string                   `json:"venue,omitempty"`
	TicketTypes []TicketTypeAvailability `json:"ticket_types"`
}
