package ws

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"hammerdrop-auction-service/internal/adapters/rest"
	"hammerdrop-auction-service/internal/config"
	"hammerdrop-auction-service/internal/ports/inbound"
	"hammerdrop-auction-service/internal/ports/outbound"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Server serves the WebSocket endpoint next to the REST API
type Server struct {
	handler    *WsHandler
	httpServer *http.Server
	logger     zerolog.Logger
}

type ServerParams struct {
	Config         *config.Config
	ListingService inbound.ListingService
	BidService     inbound.BidService
	CatalogService inbound.CatalogService
	Broadcaster    outbound.Broadcaster
	Logger         zerolog.Logger
}

func NewServer(params ServerParams) *Server {
	logger := params.Logger.With().Str("component", "server").Logger()

	handler := NewHandler(WsHandlerParams{
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  params.Config.WebSocket.ReadBufferSize,
			WriteBufferSize: params.Config.WebSocket.WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		ListingService: params.ListingService,
		BidService:     params.BidService,
		CatalogService: params.CatalogService,
		Broadcaster:    params.Broadcaster,
		Logger:         params.Logger,
	})

	api := rest.NewHandler(rest.HandlerParams{
		ListingService: params.ListingService,
		BidService:     params.BidService,
		CatalogService: params.CatalogService,
		Logger:         params.Logger,
	})

	router := NewRouter(handler, api)

	httpServer := &http.Server{
		Addr:         params.Config.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Minute,
	}

	return &Server{
		handler:    handler,
		httpServer: httpServer,
		logger:     logger,
	}
}

// NewRouter mounts /ws, /health and the REST API on one router
func NewRouter(handler *WsHandler, api *rest.Handler) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/ws", handler.HandleWebSocket)
	router.HandleFunc("/health", handler.handleHealth).Methods(http.MethodGet)
	api.Register(router)
	return router
}

// Start blocks serving HTTP until the server is stopped
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Starting server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Int("clients", s.handler.GetConnectedClients()).Msg("Stopping server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Server stopped")
	return nil
}

func (handler *WsHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status": "ok", "service": "auction-service", "clients": %d}`, handler.GetConnectedClients())
}
