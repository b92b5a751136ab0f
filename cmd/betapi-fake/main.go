// Command betapi-fake serves an in-memory fake of both betting backends on
// one port: the "/api" upstream under /api and the root upstream at /. It
// is meant for local development against betctl or a storefront build.
//
// Environment:
//
//	PORT              listen port (default 8080)
//	CORS_ORIGINS      comma-separated allowed origins (default any)
//	FAKE_DEMO_PHONE   seed an account with this phone (PIN FAKE_DEMO_PIN, default 1234)
//	FAKE_DEMO_BALANCE opening balance of the seeded account (default 10000)
//	LOG_LEVEL, LOG_FORMAT
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ugandavote/betclient/internal/fakeapi"
	"github.com/ugandavote/betclient/internal/logging"
	"github.com/ugandavote/betclient/internal/version"
)

func main() {
	_ = godotenv.Load()
	logging.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	log := logging.Logger

	fake := fakeapi.New()
	seedDemo(fake)

	var origins []string
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		origins = strings.Split(v, ",")
	}

	addr := ":8080"
	if p := os.Getenv("PORT"); p != "" {
		addr = ":" + p
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(fake, origins),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown failed", "error", err.Error())
		}
	}()

	log.Info("fake backend listening", "addr", addr, "version", version.Short())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		stop()
		log.Error("server error", "error", err.Error())
		os.Exit(1) //nolint:gocritic
	}
	log.Info("server stopped")
}

// newRouter wraps the fake backend with health, metrics and CORS.
func newRouter(fake *fakeapi.Server, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware(corsOrigins))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/", fake.Handler())
	return r
}

func seedDemo(fake *fakeapi.Server) {
	phone := os.Getenv("FAKE_DEMO_PHONE")
	if phone == "" {
		return
	}
	pin := os.Getenv("FAKE_DEMO_PIN")
	if pin == "" {
		pin = "1234"
	}
	balance := 10000.0
	if v, err := strconv.ParseFloat(os.Getenv("FAKE_DEMO_BALANCE"), 64); err == nil {
		balance = v
	}
	id, _ := fake.SeedUser(phone, pin, balance)
	fake.SeedElection("Presidential Election 2026", "presidential", map[string]float64{
		"Candidate A": 1.45,
		"Candidate B": 2.80,
		"Candidate C": 9.50,
	})
	logging.Logger.Info("seeded demo account", "phone", phone, "user_id", id)
}
