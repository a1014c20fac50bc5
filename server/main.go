// server/main.go
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rexlx/palaver/forum"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = "user=palaver password=palaver host=localhost dbname=palaver" // Default for local development
	}
	port := os.Getenv("PALAVER_PORT")
	if port == "" {
		port = "8080"
	}

	ctx := context.Background()
	forumDB, err := forum.NewDatabase(ctx, dbURL)
	if err != nil {
		logger.Error("could not initialize database", "error", err)
		os.Exit(1)
	}
	defer forumDB.Close()
	logger.Info("successfully connected to the database")

	if err := forumDB.CreateTables(ctx); err != nil {
		logger.Error("could not create tables", "error", err)
		os.Exit(1)
	}

	handlers := forum.NewHandlers(forumDB, logger)
	svr := &http.Server{
		Addr:    ":" + port,
		Handler: handlers.Routes(),
	}

	go func() {
		logger.Info("starting forum server", "port", port)
		if err := svr.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := svr.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}
