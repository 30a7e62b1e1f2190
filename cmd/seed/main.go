// Seed tool: drops, recreates and seeds the catalog schema with a sample
// event. Development only; the service itself applies SQL migrations.
package main

import (
	"context"
	"database/sql"
	"log"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-reservation/internal/config"
	"ms-reservation/internal/models"
	"ms-reservation/internal/utils"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqldb.Close()

	if err := sqldb.PingContext(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())

	log.Println("Dropping tables...")
	dropTables(ctx, db)

	log.Println("Creating tables...")
	createTables(ctx, db)

	log.Println("Seeding sample data...")
	seedData(ctx, db)

	log.Println("Done.")
}

func dropTables(ctx context.Context, db *bun.DB) {
	tables := []interface{}{(*models.ConfirmedTicket)(nil), (*models.TicketType)(nil), (*models.Event)(nil)}
	for _, m := range tables {
		_, _ = db.NewDropTable().Model(m).IfExists().Cascade().Exec(ctx)
	}
}

func createTables(ctx context.Context, db *bun.DB) {
	tables := []interface{}{(*models.Event)(nil), (*models.TicketType)(nil), (*models.ConfirmedTicket)(nil)}
	for _, m := range tables {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			log.Fatalf("Failed to create table for %T: %v", m, err)
		}
	}
}

func seedData(ctx context.Context, db *bun.DB) {
	now := time.Now()

	event := models.Event{
		EventID:      "event001",
		Title:        "Summer Fest 2026",
		Description:  "Annual summer music festival.",
		EventDate:    now.AddDate(0, 1, 0),
		Venue:        "Riverside Arena",
		VenueAddress: "1 Riverside Way",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := db.NewInsert().Model(&event).Exec(ctx); err != nil {
		log.Fatalf("Failed to seed event: %v", err)
	}

	types := []models.TicketType{
		{
			TicketTypeID: "tt-general",
			EventID:      event.EventID,
			Name:         "General Admission",
			Price:        49.50,
			Capacity:     500,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			TicketTypeID: "tt-vip",
			EventID:      event.EventID,
			Name:         "VIP",
			Description:  "Front section plus lounge access",
			Price:        180.00,
			Capacity:     50,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
	if _, err := db.NewInsert().Model(&types).Exec(ctx); err != nil {
		log.Fatalf("Failed to seed ticket types: %v", err)
	}

	// A couple of already-sold tickets so availability starts below capacity.
	sold := []models.ConfirmedTicket{
		{
			TicketSerial:  utils.GenerateTicketSerial(),
			EventID:       event.EventID,
			TicketTypeID:  "tt-general",
			CustomerName:  "Alice Wonderland",
			CustomerEmail: "alice@example.com",
			Status:        models.TicketStatusPurchased,
			Price:         49.50,
			ReservedAt:    now.Add(-time.Hour),
			PurchasedAt:   now.Add(-50 * time.Minute),
			PaymentRef:    "seed-payment-1",
		},
		{
			TicketSerial:  utils.GenerateTicketSerial(),
			EventID:       event.EventID,
			TicketTypeID:  "tt-general",
			CustomerName:  "Bob Builder",
			CustomerEmail: "bob@example.com",
			Status:        models.TicketStatusPurchased,
			Price:         49.50,
			ReservedAt:    now.Add(-time.Hour),
			PurchasedAt:   now.Add(-45 * time.Minute),
			PaymentRef:    "seed-payment-2",
		},
	}
	if _, err := db.NewInsert().Model(&sold).Exec(ctx); err != nil {
		log.Fatalf("Failed to seed tickets: %v", err)
	}
}
