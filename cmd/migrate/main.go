package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

const usage = "Usage: go run ./cmd/migrate [up|drop|status]"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	command := os.Args[1]

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	switch command {
	case "up":
		if err := createTables(ctx, conn); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		fmt.Println("✅ All tables created successfully")

	case "drop":
		if err := dropTables(ctx, conn); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		fmt.Println("✅ All tables dropped successfully")

	case "status":
		if err := printStatus(ctx, conn); err != nil {
			log.Fatalf("Failed to read status: %v", err)
		}

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println(usage)
		os.Exit(1)
	}
}

func createTables(ctx context.Context, conn *pgx.Conn) error {
	queries := []string{
		// One row per unit; the engine snapshot lives in state
		`CREATE TABLE IF NOT EXISTS event_units (
			id UUID PRIMARY KEY,
			admin VARCHAR(42) NOT NULL,
			name VARCHAR(255) NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			state JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Append-only ledger of payouts and refunds
		`CREATE TABLE IF NOT EXISTS transfer_receipts (
			id UUID PRIMARY KEY,
			unit_id UUID NOT NULL REFERENCES event_units(id) ON DELETE CASCADE,
			kind VARCHAR(20) NOT NULL CHECK (kind IN ('distribution', 'refund')),
			recipient VARCHAR(42) NOT NULL,
			amount BIGINT NOT NULL CHECK (amount > 0),
			issued_at TIMESTAMPTZ NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_event_units_created_at ON event_units(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_event_units_admin ON event_units(admin)`,
		`CREATE INDEX IF NOT EXISTS idx_transfer_receipts_unit_id ON transfer_receipts(unit_id, issued_at)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_transfer_receipts_one_distribution
			ON transfer_receipts(unit_id) WHERE kind = 'distribution'`,
	}

	for _, query := range queries {
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w\nQuery: %s", err, query)
		}
		fmt.Printf("  Created: %s\n", getTableName(query))
	}

	return nil
}

func dropTables(ctx context.Context, conn *pgx.Conn) error {
	queries := []string{
		`DROP TABLE IF EXISTS transfer_receipts CASCADE`,
		`DROP TABLE IF EXISTS event_units CASCADE`,
	}

	for _, query := range queries {
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
		fmt.Printf("  Dropped: %s\n", query)
	}

	return nil
}

func printStatus(ctx context.Context, conn *pgx.Conn) error {
	var units, receipts int64
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM event_units`).Scan(&units); err != nil {
		return fmt.Errorf("failed to count units: %w", err)
	}
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM transfer_receipts`).Scan(&receipts); err != nil {
		return fmt.Errorf("failed to count receipts: %w", err)
	}
	fmt.Printf("event_units:       %d\n", units)
	fmt.Printf("transfer_receipts: %d\n", receipts)
	return nil
}

func getTableName(query string) string {
	if len(query) > 50 {
		return query[:50] + "..."
	}
	return query
}
