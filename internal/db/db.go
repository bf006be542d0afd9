package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	_ "github.com/lib/pq"

	"momo-intent-backend/internal/logger"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// New creates a new database connection from the provided connection string
func New(ctx context.Context, connectionString string) (*DB, error) {
	if connectionString == "" {
		return nil, fmt.Errorf("database connection string is required")
	}

	sqlDB, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		// Local Postgres usually runs without TLS
		if !strings.Contains(strings.ToLower(connectionString), "sslmode") {
			logger.Warnf("retrying database connection with SSL disabled")
			sqlDB.Close()
			sqlDB, err = sql.Open("postgres", withSSLDisabled(connectionString))
			if err != nil {
				return nil, fmt.Errorf("failed to open database: %w", err)
			}
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return &DB{DB: sqlDB}, nil
}

func withSSLDisabled(conn string) string {
	if strings.HasPrefix(conn, "postgres://") || strings.HasPrefix(conn, "postgresql://") {
		if strings.Contains(conn, "?") {
			return conn + "&sslmode=disable"
		}
		return conn + "?sslmode=disable"
	}
	// key=value DSN
	return conn + " sslmode=disable"
}

// HealthCheck verifies the database connection is healthy
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// Migrate applies the migrations bundled with the binary.
func (db *DB) Migrate(ctx context.Context) error {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		return err
	}
	return db.RunMigrations(ctx, sub)
}

// RunMigrations executes every NNN_name.sql file in fsys that has not been
// applied yet, in numeric order, each in its own transaction.
func (db *DB) RunMigrations(ctx context.Context, fsys fs.FS) error {
	migrations, err := ReadMigrations(fsys)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	if len(migrations) == 0 {
		logger.Infof("no migrations found")
		return nil
	}

	if err := db.createMigrationTable(ctx); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	for _, migration := range migrations {
		applied, err := db.isMigrationApplied(ctx, migration.Number)
		if err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if applied {
			logger.Debugf("migration %d already applied, skipping", migration.Number)
			continue
		}

		logger.Infof("applying migration %d: %s", migration.Number, migration.Name)

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Number, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)",
			migration.Number,
			migration.Name,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration: %w", err)
		}
	}

	return nil
}

// Migration represents a single migration file
type Migration struct {
	Number int
	Name   string
	SQL    string
}

// ReadMigrations lists the migrations in fsys sorted by number. Files that
// do not follow the NNN_name.sql pattern are ignored.
func ReadMigrations(fsys fs.FS) ([]Migration, error) {
	var migrations []Migration
	seen := make(map[int]string)

	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}

		filename := d.Name()
		// "001_interactions.sql" -> 1, "interactions"
		parts := strings.Split(filename, "_")
		if len(parts) < 2 {
			return nil
		}
		number, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil
		}
		if prev, dup := seen[number]; dup {
			return fmt.Errorf("duplicate migration number %d: %s and %s", number, prev, filename)
		}
		seen[number] = filename

		sqlBytes, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		migrations = append(migrations, Migration{
			Number: number,
			Name:   strings.TrimSuffix(strings.Join(parts[1:], "_"), ".sql"),
			SQL:    string(sqlBytes),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Number < migrations[j].Number
	})
	return migrations, nil
}

func (db *DB) createMigrationTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT NOW()
		)
	`)
	return err
}

func (db *DB) isMigrationApplied(ctx context.Context, number int) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations WHERE version = $1",
		number,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
