package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/service"
	sqlitestore "github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/store/sqlite"
	"github.com/creativerezz/cofk-lunch-card-app/internal/config"
	"github.com/creativerezz/cofk-lunch-card-app/internal/db"
	"github.com/creativerezz/cofk-lunch-card-app/internal/httpapi"
	"github.com/creativerezz/cofk-lunch-card-app/internal/reader"
)

func main() {
	cfg := config.FromEnv()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.Env == "prod" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Ledger database plus its single write worker.
	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath})
	if err != nil {
		logger.WithError(err).Fatal("open ledger db")
	}
	defer conn.Close()

	writer := db.NewWorker(conn)
	defer writer.Close()

	if cfg.Env == "dev" {
		hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
		if err != nil {
			logger.WithError(err).Fatal("hash dev admin password")
		}
		if err := db.SeedDev(ctx, conn, string(hash)); err != nil {
			logger.WithError(err).Fatal("seed dev data")
		}
	}

	// Terminal-local mirror.
	offline, err := sqlitestore.OpenOffline(cfg.OfflineDBPath)
	if err != nil {
		logger.WithError(err).Fatal("open offline db")
	}
	defer offline.Close()

	// Reader session. cardDevice() returns the PC/SC device on builds with a
	// driver; the default build reports no reader and the terminal runs in
	// offline-only mode.
	session := reader.NewSession(cardDevice(),
		reader.WithKey(cfg.CardKey()),
		reader.WithPollInterval(time.Duration(cfg.PollIntervalMs)*time.Millisecond),
	)
	if err := session.ConnectReader(); err != nil {
		logger.WithError(err).Warn("no card reader found, running offline-only")
	}
	defer session.Disconnect()

	ledgerStore := sqlitestore.NewLedgerStore(conn, writer)
	txStore := sqlitestore.NewTransactionStore(conn)
	menuStore := sqlitestore.NewMenuStore(conn)
	studentStore := sqlitestore.NewStudentStore(conn)
	operatorStore := sqlitestore.NewOperatorStore(conn)
	auditStore := sqlitestore.NewAuditStore(conn)

	processor := service.NewProcessor(service.Dependencies{
		Ledger:       ledgerStore,
		Transactions: txStore,
		Menu:         menuStore,
		Students:     studentStore,
		Offline:      offline,
		Audit:        auditStore,
		Card:         session,
		Log:          logger,
	})
	syncEngine := service.NewSyncEngine(ledgerStore, offline, logger)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:       logger,
		Addr:         cfg.HTTPAddr,
		Processor:    processor,
		Sync:         syncEngine,
		Transactions: txStore,
		Students:     studentStore,
		Menu:         menuStore,
		Offline:      offline,
		Operators:    operatorStore,
		ScanTimeout:  time.Duration(cfg.ScanTimeoutSeconds) * time.Second,
	})

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("listening")
		if err := srv.Start(); err != nil {
			logger.WithError(err).Error("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
