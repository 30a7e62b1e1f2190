package models

import (
	"time"

	"github.com/uptrace/bun"
)

const TicketStatusPurchased = "purchased"

// ConfirmedTicket is the durable record written once per unit when a hold is
// confirmed. ReservedAt is copied from the hold's CreatedAt; there is no expiry.
type ConfirmedTicket struct {
	bun.BaseModel `bun:"table:tickets"`

	TicketSerial  string    `bun:"ticket_serial,pk" json:"ticket_serial"`
	EventID       string    `bun:"event_id,notnull" json:"event_id"`
	TicketTypeID  string    `bun:"ticket_type_id,notnull" json:"ticket_type_id"`
	CustomerName  string    `bun:"customer_name,notnull" json:"customer_name"`
	CustomerEmail string    `bun:"customer_email,notnull" json:"customer_email"`
	CustomerPhone string    `bun:"customer_phone" json:"customer_phone,omitempty"`
	Status        string    `bun:"status,notnull" json:"status"`
	Price         float64   `bun:"price,notnull" json:"price"`
	ReservedAt    time.Time `bun:"reserved_at,notnull" json:"reserved_at"`
	PurchasedAt   time.Time `bun:"purchased_at,notnull" json:"purchased_at"`
	PaymentRef    string    `bun:"payment_ref" json:"payment_ref,omitempty"`
	Notes         string    `bun:"notes,nullzero" json:"notes,omitempty"`
	QRCode        []byte    `bun:"qr_code" json:"-"`
}
