package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/dimitarkovachev/partyplanner/internal/admin"
	"github.com/dimitarkovachev/partyplanner/internal/api"
	"github.com/dimitarkovachev/partyplanner/internal/config"
	"github.com/dimitarkovachev/partyplanner/internal/identity"
	"github.com/dimitarkovachev/partyplanner/internal/middleware"
	"github.com/dimitarkovachev/partyplanner/internal/party"
	"github.com/dimitarkovachev/partyplanner/internal/seed"
	"github.com/dimitarkovachev/partyplanner/internal/store"
)

const shutdownTimeout = 10 * time.Second

// backend is what the server needs from a document store driver.
type backend interface {
	store.Store
	store.Dumper
	Close() error
}

func openStore(cfg *config.Config) (backend, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, err
	}
	if cfg.StoreDriver == config.DriverSQLite {
		return store.NewSQLiteStore(cfg.DBPath)
	}
	return store.NewBBoltStore(cfg.DBPath)
}

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	log.SetLevel(cfg.Level())
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openStore(cfg)
	if err != nil {
		log.WithError(err).WithField("driver", cfg.StoreDriver).Fatal("failed to open store")
	}
	defer db.Close()

	if err := seed.LoadFromFile(ctx, cfg.SeedFile, db); err != nil {
		log.WithError(err).Fatal("failed to seed data")
	}

	tokens, err := identity.NewTokens(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		log.WithError(err).Fatal("failed to create token verifier")
	}

	swagger, err := api.GetSwagger()
	if err != nil {
		log.WithError(err).Fatal("failed to load embedded swagger spec")
	}

	validator, err := middleware.NewOpenAPIValidator(swagger)
	if err != nil {
		log.WithError(err).Fatal("failed to create openapi validator")
	}

	svc := party.NewService(db)

	r := gin.New()
	r.Use(gin.Recovery())
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.CORSOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowHeaders:  []string{"Authorization", "Content-Type"},
			ExposeHeaders: []string{"WWW-Authenticate"},
			MaxAge:        12 * time.Hour,
		}))
	}
	r.Use(validator)

	handler := api.NewHandler(svc, identity.ContextProvider{})
	api.RegisterHandlers(r, handler,
		middleware.NewBearerAuth(tokens),
		middleware.NewRateLimiter(ctx, rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, middleware.IdentityKey),
	)

	// Reason: request contexts derive from ctx so open SSE streams end on shutdown
	baseContext := func(net.Listener) context.Context { return ctx }

	srv := &http.Server{
		Handler:     r,
		Addr:        net.JoinHostPort("0.0.0.0", cfg.Port),
		BaseContext: baseContext,
	}

	adminRouter := gin.New()
	adminRouter.Use(gin.Recovery())

	adminHandler := admin.NewHandler(db, svc, tokens)
	admin.RegisterHandlers(adminRouter, adminHandler)

	adminSrv := &http.Server{
		Handler:     adminRouter,
		Addr:        net.JoinHostPort("0.0.0.0", cfg.AdminPort),
		BaseContext: baseContext,
	}

	go func() {
		log.WithFields(log.Fields{"addr": srv.Addr, "driver": cfg.StoreDriver}).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	go func() {
		log.WithField("addr", adminSrv.Addr).Info("starting admin server")
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("admin server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down servers")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown error")
	}
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("admin server shutdown error")
	}
}
