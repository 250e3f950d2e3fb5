package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betshop/settlement/internal/api"
	"github.com/betshop/settlement/internal/handoff"
	"github.com/betshop/settlement/internal/ledger"
	"github.com/betshop/settlement/internal/ocr"
	"github.com/betshop/settlement/internal/rates"
	"github.com/betshop/settlement/internal/report"
	"github.com/betshop/settlement/internal/repository"
	"github.com/betshop/settlement/internal/settlement"
)

func main() {
	port := envDefault("PORT", "8080")
	dbPath := envDefault("DB_PATH", "settlement.db")

	log.Printf("Initializing database at %s", dbPath)
	db, err := repository.InitDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to init DB: %v", err)
	}
	defer db.Close()

	// Repositories.
	reportRepo := repository.NewReportRepo(db)
	settlementRepo := repository.NewSettlementRepo(db)

	// External collaborators.
	rateProvider := rates.NewStaticProvider(
		envDecimal("RATE_EUR_SRD", "38.50"),
		envDecimal("RATE_USD_SRD", "35.75"),
	)
	parser := ocr.NewHTTPParser(
		envDefault("OCR_URL", "http://localhost:9090/parse"),
		envDuration("OCR_TIMEOUT_SECONDS", 120)*time.Second,
	)

	// Services.
	sessions := handoff.NewStore(parser, envDuration("HANDOFF_TTL_MINUTES", 10)*time.Minute)
	reportSvc := report.NewService(
		reportRepo, rateProvider, sessions,
		envDecimal("DEFAULT_OPERATOR_CUT_PCT", "80"),
		envDuration("RATE_MAX_AGE_MINUTES", 60)*time.Minute,
	)
	settlementSvc := settlement.NewService(reportRepo, settlementRepo, ledger.LogLedger{})

	router := api.NewRouter(reportSvc, settlementSvc, sessions)

	log.Printf("Retail Terminal Settlement Engine")
	log.Printf("Listening on http://localhost:%s", port)
	log.Printf("API base: http://localhost:%s/api/v1", port)
	log.Printf("")
	log.Printf("Endpoints:")
	log.Printf("  POST   /api/v1/reports")
	log.Printf("  GET    /api/v1/reports/unpaid")
	log.Printf("  GET    /api/v1/reports/{id}")
	log.Printf("  DELETE /api/v1/reports/{id}")
	log.Printf("  POST   /api/v1/batches")
	log.Printf("  GET    /api/v1/batches")
	log.Printf("  GET    /api/v1/batches/{id}")
	log.Printf("  POST   /api/v1/withdrawals")
	log.Printf("  GET    /api/v1/withdrawals")
	log.Printf("  GET    /api/v1/totals")
	log.Printf("  POST   /api/v1/handoff/sessions")
	log.Printf("  POST   /api/v1/handoff/sessions/{id}/upload")
	log.Printf("  GET    /api/v1/handoff/sessions/{id}")
	log.Printf("  POST   /api/v1/handoff/sessions/{id}/complete")

	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDecimal(key, def string) decimal.Decimal {
	s := envDefault(key, def)
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Fatalf("Invalid %s=%q: %v", key, s, err)
	}
	return d
}

func envDuration(key string, def int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n)
		}
	}
	return time.Duration(def)
}
