package main

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atinyakov/commlog/internal/auth"
	"github.com/atinyakov/commlog/internal/config"
	"github.com/atinyakov/commlog/internal/db"
	"github.com/atinyakov/commlog/internal/policy"
	"github.com/atinyakov/commlog/internal/repository"
	"github.com/atinyakov/commlog/internal/server/handler/http"
	"github.com/atinyakov/commlog/internal/service"
)

func newServeCmd(gf *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := loadOptions(cmd, gf)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("address") {
				opts.Server.Address = addr
			}
			if err := opts.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			log, err := newLogger(opts)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			return serve(cmd.Context(), opts, log)
		},
	}
	cmd.Flags().StringVarP(&addr, "address", "a", "", "listen address host:port")
	return cmd
}

// serve wires the components together and blocks until ctx is cancelled or
// the listener fails.
func serve(ctx context.Context, opts *config.Options, log *zap.Logger) error {
	conn, err := db.InitPostgres(ctx, opts.Database.DSN)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := db.RunMigrations(ctx, conn); err != nil {
		return err
	}

	pol, err := policy.New(opts.Policy.DeleteRule)
	if err != nil {
		return err
	}
	hasher, err := auth.NewHasher(opts.Auth.BcryptCost)
	if err != nil {
		return err
	}
	signer := auth.NewSigner(opts.Auth.Secret, opts.Auth.TokenTTL)

	userRepo := repository.NewPostgresUserRepository(conn)
	logRepo := repository.NewPostgresLogRepository(conn)
	auditRepo := repository.NewPostgresAuditRepository(conn)

	authService := service.NewAuthService(userRepo, signer, hasher, opts.Auth.Scheme)
	logService := service.NewLogService(logRepo, pol, service.NewAuditTrail(auditRepo, log))

	db.StartAuditRetentionCleaner(ctx, conn, opts.Audit.CleanupInterval, opts.Audit.Retention, log)

	router := http.NewRouter(
		&http.AuthHandler{AuthService: authService, Log: log},
		&http.LogHandler{LogService: logService, Log: log},
		authService,
		http.RouterOptions{
			AllowedOrigins: opts.CORS.AllowedOrigins,
			CORSMaxAge:     opts.CORS.MaxAge,
			LoginRequests:  opts.RateLimit.LoginRequests,
			LoginWindow:    opts.RateLimit.Window,
		},
		log,
	)

	server := &nethttp.Server{
		Addr:              opts.Server.Address,
		Handler:           router,
		ReadTimeout:       opts.Server.ReadTimeout,
		ReadHeaderTimeout: opts.Server.ReadTimeout,
		WriteTimeout:      opts.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		tlsEnabled := opts.Server.TLSCert != ""
		log.Info("starting HTTP server",
			zap.String("addr", opts.Server.Address),
			zap.Bool("tls", tlsEnabled),
			zap.String("token_scheme", opts.Auth.Scheme),
			zap.String("delete_rule", pol.DeleteRule()),
		)
		if tlsEnabled {
			errCh <- server.ListenAndServeTLS(opts.Server.TLSCert, opts.Server.TLSKey)
			return
		}
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
