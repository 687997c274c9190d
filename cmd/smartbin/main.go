package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recycle-rewards/internal/config"
	"recycle-rewards/internal/handlers"
	"recycle-rewards/internal/logging"
	"recycle-rewards/internal/store"
)

func main() {
	var cfg config.Config
	if err := cfg.ParseFlags(":3001"); err != nil {
		logging.Logg.Error("Server configuration error", "error", err)
		os.Exit(1)
	}
	logging.Logg = logging.NewLogger(cfg.LogLevel)

	var binStore store.BinStore
	if cfg.DBDsn == "" {
		// Demo default: everything lives in process memory and is lost
		// on restart.
		binStore = store.NewBinMemory()
	} else {
		db, err := store.Open(cfg.DBDsn)
		if err != nil {
			logging.Logg.Error("Failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		binStore, err = store.NewBinPostgres(db)
		if err != nil {
			logging.Logg.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
	}

	server := handlers.NewBinServer(binStore)

	serv := &http.Server{
		Addr:         cfg.Address,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logging.Logg.Info("Smart bin server running", "address", cfg.Address)
		if err := serv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Logg.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logging.Logg.Info("Shutting down server gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := serv.Shutdown(ctx); err != nil {
		logging.Logg.Error("Server shutdown error", "error", err)
		os.Exit(1)
	}
	logging.Logg.Info("Server stopped")
}
