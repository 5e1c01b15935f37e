package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"lendcore/config"
	"lendcore/custody"
	"lendcore/lending"
	"lendcore/observability/logging"
	telemetry "lendcore/observability/otel"
	"lendcore/oracle"
	srvconfig "lendcore/services/lendingd/config"
	"lendcore/services/lendingd/server"
)

const secondsPerYear = 31_536_000

// adminSet authorizes the configured admin identities and nobody else.
type adminSet map[common.Address]struct{}

func (s adminSet) Authorize(caller common.Address) bool {
	_, ok := s[caller]
	return ok
}

// wallClock drives accrual in whole seconds.
type wallClock struct{}

func (wallClock) Now() uint64 {
	return uint64(time.Now().Unix())
}

// vaultAddress derives a stable custody identity for a market's vault.
func vaultAddress(asset common.Address) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte("lendcore/vault"), asset.Bytes())[12:])
}

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/lendingd/config.yaml", "path to lendingd config")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("LENDCORE_ENV"))
	logging.Setup("lendingd", env)

	telemetryCfg := telemetry.FromEnv("lendingd", env)
	if telemetryCfg.Metrics || telemetryCfg.Traces {
		shutdownTelemetry, err := telemetry.Init(context.Background(), telemetryCfg)
		if err != nil {
			log.Fatalf("init telemetry: %v", err)
		}
		defer func() {
			_ = shutdownTelemetry(context.Background())
		}()
	}

	cfg, err := srvconfig.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	markets, err := config.Load(cfg.MarketsPath)
	if err != nil {
		log.Fatalf("load markets: %v", err)
	}

	ledger, feed, err := buildLedger(markets)
	if err != nil {
		log.Fatalf("build ledger: %v", err)
	}

	srv := server.New(ledger, feed, cfg, nil)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           otelhttp.NewHandler(srv.Handler(), "lendingd"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("lendingd listening on %s", cfg.ListenAddress)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Println("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}
}

// buildLedger wires the configured markets into a ledger backed by in-process
// custody tokens and vaults.
func buildLedger(cfg *config.Config) (*lending.Ledger, *oracle.Feed, error) {
	ledgerAddr, err := cfg.LedgerAddr()
	if err != nil {
		return nil, nil, err
	}
	admins, err := cfg.AdminAddresses()
	if err != nil {
		return nil, nil, err
	}
	if len(admins) == 0 {
		return nil, nil, errors.New("at least one admin address must be configured")
	}
	bonus, err := cfg.LiquidationBonus()
	if err != nil {
		return nil, nil, err
	}
	markets, err := cfg.ParseMarkets()
	if err != nil {
		return nil, nil, err
	}

	auth := make(adminSet, len(admins))
	for _, admin := range admins {
		auth[admin] = struct{}{}
	}

	feed := oracle.NewFeed()
	ledger := lending.NewLedger(ledgerAddr, feed, auth, wallClock{}, lending.RiskParameters{
		LiquidationBonus: bonus,
	})

	operator := admins[0]
	for _, market := range markets {
		token := custody.NewToken(market.Decimals)
		vault := custody.NewVault(vaultAddress(market.Asset), token)
		err := ledger.Configure(operator, market.Asset, token, vault, lending.Configuration{
			LendFactor:   market.LendFactor,
			BorrowFactor: market.BorrowFactor,
		})
		if err != nil {
			return nil, nil, err
		}
		model := lending.NewKinkedRateModel(market.BaseRate, market.Slope1, market.Slope2, market.Kink, secondsPerYear)
		if err := ledger.SetInterestRateModel(operator, market.Asset, model); err != nil {
			return nil, nil, err
		}
		if market.InitialPrice != nil {
			feed.SetUnderlyingPrice(market.Asset, market.InitialPrice)
		}
		log.Printf("market configured symbol=%s asset=%s", market.Symbol, market.Asset.Hex())
	}
	return ledger, feed, nil
}
