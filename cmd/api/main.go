package main

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"installment-subledger/internal/adapter/custody"
	httpadp "installment-subledger/internal/adapter/http"
	mw "installment-subledger/internal/adapter/middleware"
	"installment-subledger/internal/adapter/repository/mysql"
	"installment-subledger/internal/config"
	"installment-subledger/internal/domain/subloan"
	"installment-subledger/internal/infrastructure/cache"
	"installment-subledger/internal/infrastructure/db"
	"installment-subledger/internal/infrastructure/scheduler"
	"installment-subledger/internal/ledger"
	"installment-subledger/internal/usecase/subledger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	gdb, err := db.OpenGorm(cfg.MySQLDSN())
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	if err := gdb.AutoMigrate(&subloan.SubLoan{}, &subloan.Operation{}, &subloan.ChangeRecord{}); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	funds := custody.NewLogFundMover()
	policy := custody.NewLogCreditPolicy()
	engine := ledger.NewEngine(ledger.Config{
		Accuracy:        cfg.LedgerAccuracy,
		DayOffset:       cfg.LedgerDayOffset,
		MaxDurationDays: cfg.LedgerMaxDurationDays,
		MaxBatch:        cfg.LedgerMaxBatch,
	}, funds)
	uc := subledger.NewUsecase(mysql.NewGormUoW(gdb), engine, policy, funds)

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(middleware.Logger(), middleware.Recover())

	// Idempotency needs redis; the API still serves without it.
	if rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB); err != nil {
		log.Printf("redis unavailable, idempotency disabled: %v", err)
	} else {
		e.Use(mw.IdempotencyMiddleware(rdb, time.Duration(cfg.IdempTTLSecs)*time.Second))
	}

	// routes
	e.GET("/health", httpadp.NewHandler().Health)
	httpadp.NewLedgerHandler(uc, cfg.AmountScale).RegisterRoutes(e)

	if cfg.SweepCron != "" {
		sched := scheduler.New(uc)
		if err := sched.Start(cfg.SweepCron); err != nil {
			log.Fatalf("scheduler: %v", err)
		}
		defer sched.Stop()
	}

	addr := ":" + cfg.AppPort
	log.Printf("listening on %s", addr)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
