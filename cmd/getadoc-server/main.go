package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/getadoc/getadoc/internal/config"
	"github.com/getadoc/getadoc/internal/domain/account"
	"github.com/getadoc/getadoc/internal/domain/admin"
	"github.com/getadoc/getadoc/internal/domain/appointment"
	"github.com/getadoc/getadoc/internal/domain/authz"
	"github.com/getadoc/getadoc/internal/domain/doctor"
	"github.com/getadoc/getadoc/internal/platform/auth"
	"github.com/getadoc/getadoc/internal/platform/db"
	"github.com/getadoc/getadoc/internal/platform/httpx"
	"github.com/getadoc/getadoc/internal/platform/middleware"
	"github.com/getadoc/getadoc/internal/platform/telemetry"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "getadoc-server",
		Short: "Getadoc appointment booking API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(accountCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				count, err := db.NewMigrator(pool, migrationsDir(dir, cfg)).Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				statuses, err := db.NewMigrator(pool, migrationsDir(dir, cfg)).Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}

				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Println("---------- ---------------------------------------- ---------- --------------------")
				for _, s := range statuses {
					status := "pending"
					appliedAt := ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func migrationsDir(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}
	return cfg.MigrationsDir
}

// accountCmd provisions accounts. Sign-up and credentials belong to the
// identity provider; this only records the role and contact details the API
// needs.
func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			rawRole, _ := cmd.Flags().GetString("role")
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")

			role, err := auth.ParseRole(rawRole)
			if err != nil {
				return fmt.Errorf("--role: %w", err)
			}
			return withPool(func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
				svc := account.NewService(account.NewRepoPG(pool), newLogger(false))
				a, err := svc.Create(ctx, role, name, email)
				if err != nil {
					return err
				}
				fmt.Printf("Created %s account %s (%s)\n", a.Role, a.ID, a.Email)
				return nil
			})
		},
	}
	createCmd.Flags().String("role", "patient", "Account role: patient, doctor or admin")
	createCmd.Flags().String("name", "", "Display name")
	createCmd.Flags().String("email", "", "Email address")
	cmd.AddCommand(createCmd)

	return cmd
}

// tokenCmd mints an HS256 token for an existing account. It only works when
// the server verifies tokens with AUTH_SIGNING_KEY.
func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue access tokens",
	}

	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a token for an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			rawID, _ := cmd.Flags().GetString("account")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			id, err := uuid.Parse(rawID)
			if err != nil {
				return fmt.Errorf("--account must be an account id: %w", err)
			}
			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				if cfg.AuthMode() != "hmac" {
					return fmt.Errorf("AUTH_SIGNING_KEY is not set; tokens come from the identity provider")
				}
				a, err := account.NewService(account.NewRepoPG(pool), newLogger(false)).Get(ctx, id)
				if err != nil {
					return err
				}
				token, err := auth.IssueToken([]byte(cfg.AuthSigningKey), auth.Actor{ID: a.ID, Role: a.Role},
					cfg.AuthIssuer, cfg.AuthAudience, ttl)
				if err != nil {
					return err
				}
				fmt.Println(token)
				return nil
			})
		},
	}
	issueCmd.Flags().String("account", "", "Account id")
	issueCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	cmd.AddCommand(issueCmd)

	return cmd
}

func withPool(fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}

func newLogger(dev bool) zerolog.Logger {
	if dev {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// newEcho builds the server with its global middleware and public routes.
// The returned group is /api, behind token verification and rate limiting.
func newEcho(cfg *config.Config, logger zerolog.Logger, metrics *telemetry.Metrics) (*echo.Echo, *echo.Group) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpx.ErrorHandler(logger)
	e.Validator = httpx.NewValidator()

	e.Use(middleware.Recovery(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	e.GET("/", func(c echo.Context) error {
		return httpx.OK(c, http.StatusOK, "Welcome to Getadoc", nil)
	})
	e.GET("/health", func(c echo.Context) error {
		return httpx.OK(c, http.StatusOK, "", echo.Map{"status": "ok"})
	})
	e.GET("/metrics", metrics.Handler())

	rateCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateCfg.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rateCfg.BurstSize = cfg.RateLimitBurst
	}

	api := e.Group("/api",
		auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}),
		middleware.RateLimit(rateCfg),
	)
	return e, api
}

// registerDomains wires repositories, services and handlers onto api.
func registerDomains(api *echo.Group, pool *pgxpool.Pool, logger zerolog.Logger) {
	accountRepo := account.NewRepoPG(pool)
	doctorRepo := doctor.NewRepoPG(pool)
	appointmentRepo := appointment.NewRepoPG(pool)

	guard := authz.NewGuard(doctor.NewProfileFinder(doctorRepo))

	accountSvc := account.NewService(accountRepo, logger)
	doctorSvc := doctor.NewService(doctorRepo, accountSvc, guard, logger)
	appointmentSvc := appointment.NewService(appointmentRepo, doctorSvc, accountSvc, guard, logger)
	adminSvc := admin.NewService(accountRepo, doctorRepo, appointmentRepo, appointmentSvc,
		db.NewTransactor(pool), guard, logger)

	doctor.NewHandler(doctorSvc).RegisterRoutes(api)
	appointment.NewHandler(appointmentSvc).RegisterRoutes(api)
	admin.NewHandler(adminSvc).RegisterRoutes(api)
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.IsDev())

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	metrics := telemetry.NewMetrics().WithPoolStats(func() db.PoolStats { return db.Stats(pool) })
	e, api := newEcho(cfg, logger, metrics)
	e.GET("/health/db", db.HealthHandler(pool))
	registerDomains(api, pool, logger)

	logger.Info().Str("auth_mode", cfg.AuthMode()).Str("env", cfg.Env).Msg("routes registered")

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
