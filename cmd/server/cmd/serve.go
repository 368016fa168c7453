package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gatherly/server/internal/api"
	"github.com/gatherly/server/internal/auth"
	"github.com/gatherly/server/internal/blob"
	"github.com/gatherly/server/internal/config"
	"github.com/gatherly/server/internal/domain/events"
	"github.com/gatherly/server/internal/domain/notifications"
	"github.com/gatherly/server/internal/domain/organizations"
	"github.com/gatherly/server/internal/domain/registrations"
	"github.com/gatherly/server/internal/domain/users"
	"github.com/gatherly/server/internal/email"
	"github.com/gatherly/server/internal/storage/postgres"
	"github.com/gatherly/server/internal/verify"
)

const verificationCodeTTL = 10 * time.Minute

var (
	serverHost string
	serverPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server and begin accepting API requests.

Configuration comes from environment variables (and a .env file in
development). The server shuts down gracefully on SIGINT/SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("environment", cfg.Environment).Msg("starting gatherly server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := postgres.Connect(ctx, cfg.Database.URL)
	cancel()
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()

	store, err := postgres.NewStore(pool)
	if err != nil {
		return err
	}

	mailer, err := email.New(cfg.Email, logger)
	if err != nil {
		return fmt.Errorf("email: %w", err)
	}

	var blobs blob.Store
	if cfg.Storage.Endpoint != "" {
		blobs, err = blob.NewHTTPStore(cfg.Storage, logger)
		if err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	} else {
		logger.Warn().Msg("STORAGE_ENDPOINT not set; uploads go to in-memory storage")
		blobs = blob.NewMemStore()
	}

	codes := verify.NewStore(verificationCodeTTL)
	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.Issuer)

	userService := users.NewService(store.Users(), store.Favorites(), store.OrganizerRequests(), store.Events(), codes, mailer, logger)
	orgService := organizations.NewService(store.Organizations(), store.Users(), store.Events(), logger)
	notifService := notifications.NewService(store.Notifications(), orgService, store.Users(), mailer, logger)
	eventService := events.NewService(store.Events(), orgService, notifService, userService, logger)
	workflow := registrations.NewWorkflow(postgres.NewRegistrationStore(store), notifService, logger)

	router := api.NewRouter(api.Deps{
		Users:         userService,
		Events:        eventService,
		Registrations: workflow,
		Organizations: orgService,
		Notifications: notifService,
		Blobs:         blobs,
		Tokens:        tokens,
		Pool:          pool,
		Config:        cfg,
		Logger:        logger,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-stop:
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
