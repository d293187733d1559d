package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rauletepaz/account-verifactu/internal/aeat"
	"github.com/rauletepaz/account-verifactu/internal/audit"
	"github.com/rauletepaz/account-verifactu/internal/jwttoken"
	"github.com/rauletepaz/account-verifactu/internal/platform/config"
	"github.com/rauletepaz/account-verifactu/internal/platform/httpserver"
	"github.com/rauletepaz/account-verifactu/internal/platform/logger"
	"github.com/rauletepaz/account-verifactu/internal/platform/metrics"
	"github.com/rauletepaz/account-verifactu/internal/record"
	"github.com/rauletepaz/account-verifactu/internal/signing"
	httptransport "github.com/rauletepaz/account-verifactu/internal/transport/http"
	"github.com/rauletepaz/account-verifactu/internal/verifactu"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	var store record.Store
	if cfg.DatabaseDSN != "" {
		db, err := sql.Open("postgres", cfg.DatabaseDSN)
		if err != nil {
			log.Error("open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pg := record.NewPostgresStore(db)
		if err := pg.Migrate(context.Background()); err != nil {
			log.Error("migrate ledger schema", "error", err)
			os.Exit(1)
		}
		store = pg
	} else {
		log.Warn("no database DSN configured, using in-memory ledger")
		store = record.NewInMemoryStore()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	client := aeat.NewClient(cfg.Endpoints, cfg.SOAPAction, cfg.TLSVerify, log)
	creds := signing.FileSource{Path: cfg.CredentialPath, Password: cfg.CredentialPassword}
	trail := audit.NewTrail(audit.NewInMemoryStore(), log)

	service := verifactu.NewService(verifactu.Config{
		Environment:    cfg.Environment,
		Mode:           cfg.Mode,
		Endpoints:      cfg.Endpoints,
		System:         cfg.System,
		QRBaseOverride: cfg.QRBase,
	}, store, client, creds, trail, m, log)

	tokens := jwttoken.NewService(cfg.JWTSigningKey, "account-verifactu", "fiscal-api")
	handler := httptransport.NewLedgerHandler(service)
	router := httptransport.NewRouter(handler, tokens,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), log)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting account-verifactu",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"mode", cfg.Mode)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
