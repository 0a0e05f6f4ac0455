package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/staywell/booking-funnel/internal/config"
	"github.com/staywell/booking-funnel/internal/database"
)

func main() {
	var (
		dbURLFlag string
		migrate   bool
		truncate  bool
	)
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.BoolVar(&migrate, "migrate", false, "create the funnel tables if they do not exist")
	flag.BoolVar(&truncate, "truncate", false, "delete every row from the funnel tables")
	flag.Parse()

	if !migrate && !truncate {
		log.Fatal("nothing to do: pass -migrate and/or -truncate")
	}

	// Try loading .env from current working directory (optional)
	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}
	if truncate && os.Getenv("ENVIRONMENT") == "production" {
		log.Fatal("refusing to truncate with ENVIRONMENT=production")
	}

	// Build minimal database config without loading full app config
	dbCfg := config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     2,
		MaxIdleConnections: 1,
	}

	db, err := database.NewConnection(dbCfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if migrate {
		if err := database.ApplySchema(ctx, db.DB); err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Println("Schema applied.")
	}

	if truncate {
		query := fmt.Sprintf("TRUNCATE TABLE %s", strings.Join(database.FunnelTables, ", "))
		if _, err := db.ExecContext(ctx, query); err != nil {
			log.Fatalf("failed to truncate tables: %v", err)
		}
		fmt.Println("Funnel tables truncated. Bookings in the reservation backend are untouched.")
	}

	fmt.Println("Row counts:")
	for _, t := range database.FunnelTables {
		var count int
		if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", t)).Scan(&count); err != nil {
			fmt.Printf("  %s: error: %v\n", t, err)
			continue
		}
		fmt.Printf("  %s: %d\n", t, count)
	}
}
