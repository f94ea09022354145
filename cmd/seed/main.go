package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"fintrack/internal/config"
	"fintrack/internal/repository/postgres"
	"fintrack/internal/seed"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Parse command-line flags
	userID := flag.String("user", "", "User ID (UUID) to install the default categories for")
	dropTables := flag.Bool("drop-tables", false, "Drop the categories table before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed categories")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && *dropTables {
		log.Fatalf("BLOCKED: cannot run --drop-tables in production environment")
	}

	if !*schemaOnly {
		if *userID == "" {
			log.Fatalf("--user is required unless --schema-only is set")
		}
		if _, err := uuid.Parse(*userID); err != nil {
			log.Fatalf("--user must be a valid UUID: %v", err)
		}
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	log.Printf("Seeding database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)

	// Create database connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	// Drop tables if requested
	if *dropTables {
		log.Println("Dropping categories table...")
		if _, err := pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s CASCADE`, tables.Categories)); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Println("Tables dropped")
	}

	// Run schema to ensure tables exist
	log.Println("Ensuring database schema is up to date...")
	if err := runSchema(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	log.Println("Schema ready")

	if *schemaOnly {
		log.Println("Schema setup complete (schema-only mode)")
		return
	}

	// Install the default system categories for the given user
	categoryRepo := postgres.NewCategoryRepository(&postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	})
	txManager := postgres.NewTransactionManager(pool)
	seeder := seed.NewCategorySeeder(categoryRepo, txManager, logger)

	created, err := seeder.SeedDefaults(ctx, *userID)
	if err != nil {
		log.Fatalf("Failed to seed default categories: %v", err)
	}

	log.Printf("Done: %d default categories created for user %s", created, *userID)
}

// runSchema creates the categories table and its indexes if they do not
// exist. Sibling-name uniqueness needs two partial unique indexes because
// NULL parent_id values never compare equal in a plain unique index.
func runSchema(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				user_id UUID NOT NULL,
				parent_id UUID REFERENCES %s(id),
				name VARCHAR(100) NOT NULL,
				description VARCHAR(500) NOT NULL DEFAULT '',
				type VARCHAR(10) NOT NULL DEFAULT 'expense',
				icon TEXT NOT NULL DEFAULT '',
				color TEXT NOT NULL DEFAULT '',
				level INTEGER NOT NULL DEFAULT 0,
				path TEXT[] NOT NULL DEFAULT '{}',
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				is_system BOOLEAN NOT NULL DEFAULT FALSE,
				deleted_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)
		`, tables.Categories, tables.Categories),
		fmt.Sprintf(`
			CREATE UNIQUE INDEX IF NOT EXISTS %s_user_parent_name_key
			ON %s (user_id, parent_id, name) WHERE parent_id IS NOT NULL
		`, tables.Categories, tables.Categories),
		fmt.Sprintf(`
			CREATE UNIQUE INDEX IF NOT EXISTS %s_user_root_name_key
			ON %s (user_id, name) WHERE parent_id IS NULL
		`, tables.Categories, tables.Categories),
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_user_level_idx
			ON %s (user_id, level)
		`, tables.Categories, tables.Categories),
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_user_parent_idx
			ON %s (user_id, parent_id)
		`, tables.Categories, tables.Categories),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return nil
}
