package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sony/gobreaker"

	"github.com/obmin-service/obmin_service/internal/infrastructure/config"
)

var circuitBreaker *gobreaker.CircuitBreaker

func init() {
	settings := gobreaker.Settings{
		Name:        "database",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}
	circuitBreaker = gobreaker.NewCircuitBreaker(settings)
}

// NewConnection creates a new database connection with pool settings applied
func NewConnection(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	var db *sqlx.DB

	_, cbErr := circuitBreaker.Execute(func() (interface{}, error) {
		var err error
		db, err = sqlx.Open("postgres", cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database connection: %w", err)
		}

		maxOpen := cfg.MaxOpenConns
		if maxOpen == 0 {
			maxOpen = 25
		}
		maxIdle := cfg.MaxIdleConns
		if maxIdle == 0 {
			maxIdle = 5
		}
		connLifetime := cfg.ConnMaxLifetime
		if connLifetime == 0 {
			connLifetime = 300
		}
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxIdle)
		db.SetConnMaxLifetime(time.Duration(connLifetime) * time.Second)
		db.SetConnMaxIdleTime(5 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err = db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}

		return db, nil
	})

	if cbErr != nil {
		return nil, fmt.Errorf("circuit breaker: %w", cbErr)
	}

	return db, nil
}

// HealthCheck checks if database is accessible
func HealthCheck(db *sqlx.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}
