package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"salvage-auction-service/internal/config"
	"salvage-auction-service/internal/ports/inbound"
	"salvage-auction-service/internal/ports/outbound"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Server hosts the REST API
type Server struct {
	httpServer *http.Server
	config     *config.Config
	logger     zerolog.Logger
}

type ServerParams struct {
	Config         *config.Config
	AuctionService inbound.AuctionService
	BidService     inbound.BidService
	WalletService  inbound.WalletService
	PaymentService inbound.PaymentService
	WalletRepo     outbound.WalletRepository
	OTPStore       outbound.OTPStore
	VendorRepo     outbound.VendorRepository
	Notifier       outbound.Notifier
	Logger         zerolog.Logger
}

func NewServer(params ServerParams) *Server {
	logger := params.Logger.With().Str("component", "http_api").Logger()

	h := &Handler{
		auctions:   params.AuctionService,
		bids:       params.BidService,
		wallets:    params.WalletService,
		payments:   params.PaymentService,
		walletRepo: params.WalletRepo,
		otpStore:   params.OTPStore,
		vendors:    params.VendorRepo,
		notifier:   params.Notifier,
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.Health)

	r.Route("/auctions", func(r chi.Router) {
		r.Post("/", h.CreateAuction)
		r.Get("/", h.ListAuctions)
		r.Route("/{auctionID}", func(r chi.Router) {
			r.Get("/", h.GetAuction)
			r.Post("/close", h.CloseAuction)
			r.Get("/bids", h.ListBids)
			r.Post("/bids", h.PlaceBid)
		})
	})

	r.Route("/wallets", func(r chi.Router) {
		r.Post("/fund", h.FundWallet)
		r.Get("/{walletID}/balance", h.WalletBalance)
		r.Get("/{walletID}/transactions", h.WalletTransactions)
	})

	r.Route("/payments", func(r chi.Router) {
		r.Get("/{paymentID}", h.GetPayment)
		r.Post("/{paymentID}/verify", h.DecidePayment)
	})

	r.Post("/webhooks/payments", h.PaymentWebhook)
	r.Post("/otp/request", h.RequestOTP)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", params.Config.Server.APIPort),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		config:     params.Config,
		logger:     logger,
	}
}

// Start starts the REST API server
func (s *Server) Start() error {
	s.logger.Info().Str("port", s.config.Server.APIPort).Msg("Starting REST API server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start REST API server: %w", err)
	}

	return nil
}

// Stop gracefully stops the REST API server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping REST API server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown REST API server: %w", err)
	}

	s.logger.Info().Msg("REST API server stopped")
	return nil
}
