package web

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/domain"
	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/usecase"
)

type Server struct {
	router     *http.ServeMux
	server     *http.Server
	sync       *usecase.SyncService
	stats      *usecase.StatsService
	strategies domain.StrategyStore
	accounts   domain.AccountStore
	logger     *zap.Logger
}

func NewServer(
	port int,
	syncService *usecase.SyncService,
	statsService *usecase.StatsService,
	strategies domain.StrategyStore,
	accounts domain.AccountStore,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:     http.NewServeMux(),
		sync:       syncService,
		stats:      statsService,
		strategies: strategies,
		accounts:   accounts,
		logger:     logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /health", s.handleHealth)

	// Accounts
	s.router.HandleFunc("GET /api/accounts", s.handleListAccounts)
	s.router.HandleFunc("POST /api/accounts/{id}/label", s.handleAccountLabel)
	s.router.HandleFunc("POST /api/accounts/{id}/history-start", s.handleHistoryStart)

	// Sync
	s.router.HandleFunc("POST /api/sync/history", s.handleSyncHistory)
	s.router.HandleFunc("POST /api/sync/open", s.handleSyncOpen)

	// Read side
	s.router.HandleFunc("GET /api/positions", s.handlePositions)
	s.router.HandleFunc("GET /api/open-positions", s.handleOpenPositions)
	s.router.HandleFunc("GET /api/aggregates", s.handleAggregates)
	s.router.HandleFunc("GET /api/compare", s.handleCompare)

	// Magics & groups
	s.router.HandleFunc("GET /api/magics", s.handleListMagics)
	s.router.HandleFunc("POST /api/magics/labels", s.handleMagicLabels)
	s.router.HandleFunc("GET /api/groups", s.handleListGroups)
	s.router.HandleFunc("POST /api/groups", s.handleCreateGroup)
	s.router.HandleFunc("PUT /api/groups/{id}", s.handleUpdateGroup)
	s.router.HandleFunc("DELETE /api/groups/{id}", s.handleDeleteGroup)
	s.router.HandleFunc("POST /api/groups/{id}/assignments", s.handleGroupAssignments)
}

// Handler exposes the route table for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
