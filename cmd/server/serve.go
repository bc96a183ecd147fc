package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"identity-service/internal/auth"
	"identity-service/internal/config"
	apphttp "identity-service/internal/http"
	"identity-service/internal/janitor"
	"identity-service/internal/logging"
	"identity-service/internal/metrics"
	"identity-service/internal/notify"
	"identity-service/internal/service"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API. Migrations are applied on startup and expired
reset tickets are swept in the background until the process is interrupted.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		logger.WithField("error", err).Error("server stopped with error")
		return err
	}
	return nil
}

func serve(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	db, store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	codec, err := auth.NewTokenCodec(cfg.Auth.JWTSecret,
		auth.WithTTLs(cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL))
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)

	avatars, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		return oops.Code("STORAGE_SETUP_FAILED").Wrap(err)
	}

	m := metrics.New()
	opts := []service.Option{
		service.WithEventRecorder(m),
		service.WithLogger(logger),
	}
	authService := service.NewAuthService(store, hasher, codec, opts...)
	resetService := service.NewResetService(store, hasher, notify.NewLogSender(logger), cfg.Reset.TTL, opts...)
	userService := service.NewUserService(store, avatars, cfg.Storage.KeyPrefix, opts...)

	sweeper := janitor.New(janitor.Config{
		Interval: cfg.Reset.SweepInterval,
		Logger:   logger,
	}, resetService)
	if err := sweeper.Start(ctx); err != nil {
		return oops.Code("JANITOR_START_FAILED").Wrap(err)
	}
	defer sweeper.Shutdown()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(apphttp.Deps{
		Auth:    authService,
		Reset:   resetService,
		Users:   userService,
		Tokens:  codec,
		Health:  store,
		Metrics: m,
		Logger:  logger,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return oops.Code("HTTP_SERVER_FAILED").With("addr", cfg.Server.Addr).Wrap(err)
		}
	}
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
	return nil
}
