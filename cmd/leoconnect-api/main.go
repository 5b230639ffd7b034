package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leoconnect/backend/internal/auth"
	"github.com/leoconnect/backend/internal/clubs"
	"github.com/leoconnect/backend/internal/config"
	"github.com/leoconnect/backend/internal/database"
	"github.com/leoconnect/backend/internal/feed"
	"github.com/leoconnect/backend/internal/graph"
	"github.com/leoconnect/backend/internal/logging"
	"github.com/leoconnect/backend/internal/media"
	"github.com/leoconnect/backend/internal/messaging"
	"github.com/leoconnect/backend/internal/notify"
	"github.com/leoconnect/backend/internal/server"
	"github.com/leoconnect/backend/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "leoconnect-api",
		Short: "LeoConnect community backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("google-audience", defaults.GetString("google.audience"), "Google OAuth client ID accepted as token audience")
	cmd.PersistentFlags().String("google-jwks-url", defaults.GetString("google.jwks_url"), "Google JWKS URL")
	cmd.PersistentFlags().String("media-webhook-url", defaults.GetString("media.webhook_url"), "Image relay webhook URL")
	cmd.PersistentFlags().Int("notify-queue-size", defaults.GetInt("notify.queue_size"), "Notification queue capacity")
	cmd.PersistentFlags().Int("notify-workers", defaults.GetInt("notify.workers"), "Notification worker count")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "google.audience", "google-audience")
	bindFlag(cmd, "google.jwks_url", "google-jwks-url")
	bindFlag(cmd, "media.webhook_url", "media-webhook-url")
	bindFlag(cmd, "notify.queue_size", "notify-queue-size")
	bindFlag(cmd, "notify.workers", "notify-workers")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokenManager, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.TokenSigningSecret),
		Issuer:        appConfig.TokenIssuer,
		Audience:      appConfig.TokenAudience,
		TokenTTL:      time.Duration(appConfig.TokenTTLMinutes) * time.Minute,
	})
	if err != nil {
		return err
	}
	adminIssuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.AdminSigningSecret),
		Issuer:        appConfig.TokenIssuer,
		Audience:      appConfig.AdminAudience,
		TokenTTL:      time.Duration(appConfig.AdminTTLMinutes) * time.Minute,
	})
	if err != nil {
		return err
	}
	adminAuth, err := auth.NewAdminAuthenticator(auth.AdminAuthenticatorConfig{
		Database: db,
		Issuer:   adminIssuer,
	})
	if err != nil {
		return err
	}

	if appConfig.AdminBootstrapEmail != "" {
		err = adminAuth.EnsureAccount(ctx, appConfig.AdminBootstrapEmail, appConfig.AdminBootstrapPassword, appConfig.AdminBootstrapName)
		if err != nil {
			return err
		}
	}

	googleVerifier, err := auth.NewGoogleVerifier(auth.GoogleVerifierConfig{
		Audience: appConfig.GoogleAudience,
		JWKSURL:  appConfig.GoogleJWKSURL,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	graphService, err := graph.NewService(graph.ServiceConfig{Database: db})
	if err != nil {
		return err
	}
	userService, err := users.NewService(users.ServiceConfig{Database: db, Graph: graphService})
	if err != nil {
		return err
	}
	clubService, err := clubs.NewService(clubs.ServiceConfig{Database: db, Graph: graphService})
	if err != nil {
		return err
	}

	realtime := server.NewRealtimeDispatcher()
	dispatcher := notify.NewDispatcher(notify.DispatcherConfig{
		QueueSize: appConfig.NotifyQueueSize,
		Workers:   appConfig.NotifyWorkers,
		Logger:    logger,
	})
	notifyService, err := notify.NewService(notify.ServiceConfig{
		Database:   db,
		Graph:      graphService,
		Dispatcher: dispatcher,
		Push:       notify.NewLogPushDispatcher(logger),
		Sink:       server.RealtimeSink{Dispatcher: realtime},
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	dispatcher.Start()
	defer dispatcher.Stop()

	mediaRelay := media.NewWebhookRelay(media.RelayConfig{
		WebhookURL: appConfig.MediaWebhookURL,
		Logger:     logger,
	})

	feedService, err := feed.NewService(feed.ServiceConfig{
		Database: db,
		Graph:    graphService,
		Media:    mediaRelay,
		Notifier: notifyService,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	messagingService, err := messaging.NewService(messaging.ServiceConfig{
		Database:  db,
		Notifier:  notifyService,
		Directory: userService,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		GoogleVerifier: googleVerifier,
		TokenManager:   tokenManager,
		AdminAuth:      adminAuth,
		Users:          userService,
		Clubs:          clubService,
		Graph:          graphService,
		Feed:           feedService,
		Messaging:      messagingService,
		Notify:         notifyService,
		Realtime:       realtime,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
