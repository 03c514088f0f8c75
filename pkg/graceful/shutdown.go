package graceful

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/obmin-service/obmin_service/pkg/logger"
)

// Stopper is implemented by long-lived components (workers) that stop
// synchronously.
type Stopper interface {
	Stop()
}

// ShutdownManager coordinates an orderly shutdown: workers first, then the
// HTTP server, then clients and the database pool.
type ShutdownManager struct {
	server   *http.Server
	db       *sqlx.DB
	stoppers []Stopper
	closers  []io.Closer
	logger   *logger.Logger
}

func NewShutdownManager(server *http.Server, db *sqlx.DB, logger *logger.Logger) *ShutdownManager {
	return &ShutdownManager{
		server: server,
		db:     db,
		logger: logger,
	}
}

// RegisterStopper adds a worker to stop before connections are torn down
func (sm *ShutdownManager) RegisterStopper(s Stopper) {
	sm.stoppers = append(sm.stoppers, s)
}

// RegisterCloser adds a client to close after the server drains
func (sm *ShutdownManager) RegisterCloser(c io.Closer) {
	sm.closers = append(sm.closers, c)
}

// WaitForShutdown blocks until SIGINT/SIGTERM, then shuts everything down
func (sm *ShutdownManager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sm.logger.Info("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, s := range sm.stoppers {
		s.Stop()
	}

	if sm.server != nil {
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.Error("Server forced shutdown", "error", err)
		}
	}

	for _, c := range sm.closers {
		if err := c.Close(); err != nil {
			sm.logger.Warn("Component close error", "error", err)
		}
	}

	if sm.db != nil {
		if err := sm.db.Close(); err != nil {
			sm.logger.Warn("Database close error", "error", err)
		}
	}

	sm.logger.Info("Shutdown complete")
}
