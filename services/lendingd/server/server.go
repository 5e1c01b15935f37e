package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lendcore/lending"
	"lendcore/oracle"
	"lendcore/services/lendingd/config"
)

// Server exposes a lending ledger over JSON HTTP. Mutating routes require a
// configured API token; read routes are open.
type Server struct {
	ledger *lending.Ledger
	feed   *oracle.Feed
	logger *slog.Logger

	tokens  map[string]struct{}
	limiter *clientLimiter
}

// New wires a server around the given ledger and price feed.
func New(ledger *lending.Ledger, feed *oracle.Feed, cfg config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	tokens := make(map[string]struct{}, len(cfg.Auth.APITokens))
	for _, token := range cfg.Auth.APITokens {
		tokens[token] = struct{}{}
	}
	var limiter *clientLimiter
	if cfg.RateLimit.Enabled() {
		limiter = newClientLimiter(cfg.RateLimit)
	}
	return &Server{
		ledger:  ledger,
		feed:    feed,
		logger:  logger,
		tokens:  tokens,
		limiter: limiter,
	}
}

// Handler builds the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/markets", s.instrument("markets", s.handleMarkets))
		v1.Get("/markets/{asset}", s.instrument("market", s.handleMarket))
		v1.Get("/positions/{user}", s.instrument("positions", s.handlePositions))
		v1.Get("/positions/{user}/health", s.instrument("health", s.handleHealth))

		v1.Group(func(mutating chi.Router) {
			mutating.Use(s.authenticate)
			if s.limiter != nil {
				mutating.Use(s.rateLimit)
			}
			mutating.Post("/supply", s.instrument("supply", s.handleSupply))
			mutating.Post("/withdraw", s.instrument("withdraw", s.handleWithdraw))
			mutating.Post("/borrow", s.instrument("borrow", s.handleBorrow))
			mutating.Post("/repay", s.instrument("repay", s.handleRepay))
			mutating.Post("/collateral/enable", s.instrument("collateral_enable", s.handleEnableCollateral))
			mutating.Post("/collateral/disable", s.instrument("collateral_disable", s.handleDisableCollateral))
			mutating.Post("/liquidate", s.instrument("liquidate", s.handleLiquidate))
			mutating.Post("/admin/markets/config", s.instrument("admin_config", s.handleUpdateConfiguration))
			mutating.Post("/admin/markets/model", s.instrument("admin_model", s.handleSetRateModel))
			mutating.Post("/admin/oracle/price", s.instrument("admin_price", s.handleSetPrice))
		})
	})
	return r
}
