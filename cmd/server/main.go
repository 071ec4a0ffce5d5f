package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tripmate-io/tripmate/internal/api"
	"github.com/tripmate-io/tripmate/internal/auth"
	"github.com/tripmate-io/tripmate/internal/chat"
	"github.com/tripmate-io/tripmate/internal/db"
	"github.com/tripmate-io/tripmate/internal/notification"
	"github.com/tripmate-io/tripmate/internal/repositories"
	"github.com/tripmate-io/tripmate/internal/scheduler"
	"github.com/tripmate-io/tripmate/internal/social"
	"github.com/tripmate-io/tripmate/internal/websocket"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// shutdownTimeout bounds how long in-flight REST requests may run after a
// termination signal.
const shutdownTimeout = 10 * time.Second

type config struct {
	HTTPAddr             string `validate:"required,hostname_port"`
	DBDriver             string `validate:"oneof=sqlite postgres"`
	DBDSN                string `validate:"required"`
	LogLevel             string `validate:"oneof=debug info warn error"`
	DataDir              string `validate:"required"`
	JWTIssuer            string `validate:"required"`
	NATSURL              string `validate:"omitempty,url"`
	CORSOrigins          string
	HousekeepingInterval time.Duration `validate:"gte=1s"`
}

func (c *config) corsOrigins() []string {
	origins := lo.Map(strings.Split(c.CORSOrigins, ","), func(s string, _ int) string { return strings.TrimSpace(s) })
	return lo.Compact(origins)
}

func main() {
	// A missing .env file is not an error; real environment variables win.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config{}

	root := &cobra.Command{
		Use:   "tripmate-server",
		Short: "Tripmate realtime server: chat rooms and live notifications",
		Long: `Tripmate server hosts the realtime surface of the Tripmate travel platform.
It serves WebSocket chat rooms per conversation, a personal notification
channel per user, and the small REST API those features need.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := validator.New().Struct(cfg); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	root.AddCommand(newServeCmd(cfg))
	root.AddCommand(newMigrateCmd(cfg))
	root.AddCommand(newTokenCmd(cfg))
	root.AddCommand(newVersionCmd())

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.HTTPAddr, "http-addr", envOrDefault("TRIPMATE_HTTP_ADDR", ":8080"), "HTTP and WebSocket listen address")
	flags.StringVar(&cfg.DBDriver, "db-driver", envOrDefault("TRIPMATE_DB_DRIVER", "sqlite"), "Database driver (sqlite or postgres)")
	flags.StringVar(&cfg.DBDSN, "db-dsn", envOrDefault("TRIPMATE_DB_DSN", "./tripmate.db"), "Database DSN or file path for SQLite")
	flags.StringVar(&cfg.LogLevel, "log-level", envOrDefault("TRIPMATE_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	flags.StringVar(&cfg.DataDir, "data-dir", envOrDefault("TRIPMATE_DATA_DIR", "./data"), "Directory for server data (RSA keys)")
	flags.StringVar(&cfg.JWTIssuer, "jwt-issuer", envOrDefault("TRIPMATE_JWT_ISSUER", "tripmate"), "Issuer claim of access tokens")
	flags.StringVar(&cfg.NATSURL, "nats-url", envOrDefault("TRIPMATE_NATS_URL", ""), "NATS URL for cross-instance fan-out (empty runs a single instance)")
	flags.StringVar(&cfg.CORSOrigins, "cors-origins", envOrDefault("TRIPMATE_CORS_ORIGINS", ""), "Comma-separated browser origins allowed to call the API")
	flags.DurationVar(&cfg.HousekeepingInterval, "housekeeping-interval", envDuration("TRIPMATE_HOUSEKEEPING_INTERVAL", scheduler.DefaultInterval), "Interval of the hub stats and database ping jobs")

	return root
}

func newServeCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// Version must work without a valid configuration.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tripmate-server %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func newMigrateCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := buildLogger(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			database, err := openDatabase(cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close(database) //nolint:errcheck

			logger.Info("database is up to date", zap.String("db_driver", cfg.DBDriver))
			return nil
		},
	}
}

func newTokenCmd(cfg *config) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a user (development helper)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return errors.New("--email is required")
			}

			logger, err := buildLogger(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			database, err := openDatabase(cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close(database) //nolint:errcheck

			jwtManager, err := auth.NewJWTManagerFromDir(cfg.DataDir, cfg.JWTIssuer)
			if err != nil {
				return fmt.Errorf("failed to load signing keys: %w", err)
			}

			users := repositories.NewUserRepository(database)
			user, err := users.GetByEmail(cmd.Context(), email)
			if err != nil {
				return fmt.Errorf("looking up %q: %w", email, err)
			}

			token, err := auth.NewAuthService(users, jwtManager).IssueToken(user)
			if err != nil {
				return err
			}
			fmt.Println(token.AccessToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email of the user to issue the token for")
	return cmd
}

func run(ctx context.Context, cfg *config) error {
	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting tripmate server",
		zap.String("version", version),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("db_driver", cfg.DBDriver),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("clustered", cfg.NATSURL != ""),
	)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// --- Storage and auth ---
	database, err := openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close(database) //nolint:errcheck

	jwtManager, err := auth.NewJWTManagerFromDir(cfg.DataDir, cfg.JWTIssuer)
	if err != nil {
		return fmt.Errorf("failed to load signing keys: %w", err)
	}

	users := repositories.NewUserRepository(database)
	conversations := repositories.NewConversationRepository(database)
	messages := repositories.NewMessageRepository(database)
	friendRequests := repositories.NewFriendRequestRepository(database)
	tripShares := repositories.NewTripShareRepository(database)
	authService := auth.NewAuthService(users, jwtManager)

	// --- Fan-out ---
	hub := websocket.NewHub(logger)
	var fanout websocket.Fanout = hub

	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL,
			nats.Name("tripmate-server"),
			nats.MaxReconnects(-1),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("nats disconnected", zap.Error(err))
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
			}),
		)
		if err != nil {
			return fmt.Errorf("failed to connect to nats: %w", err)
		}
		defer nc.Close()

		cluster, err := websocket.NewClusterHub(hub, nc, websocket.ClusterConfig{}, logger)
		if err != nil {
			return err
		}
		defer cluster.Close() //nolint:errcheck
		fanout = cluster
	}

	// --- Domain services ---
	pending := notification.NewPendingCounter(friendRequests, tripShares)
	socialService := social.NewService(social.Config{
		Users:          users,
		Trips:          repositories.NewTripRepository(database),
		FriendRequests: friendRequests,
		TripShares:     tripShares,
		Dispatcher:     notification.NewDispatcher(fanout, logger),
		Logger:         logger,
	})

	ping := func(ctx context.Context) error { return db.Ping(ctx, database) }

	sched, err := scheduler.New(scheduler.Config{
		Hub:      hub,
		Ping:     ping,
		Interval: cfg.HousekeepingInterval,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}

	router := api.NewRouter(api.RouterConfig{
		AuthService: authService,
		Handshake:   chat.NewHandshake(authService, conversations, logger),
		Social:      socialService,
		Pending:     pending,
		Chat: chat.Deps{
			Fanout:        fanout,
			Conversations: conversations,
			Messages:      messages,
			Presence:      chat.NewPresence(fanout, logger),
			Logger:        logger,
		},
		Users:         users,
		Conversations: conversations,
		Messages:      messages,
		Ping:          ping,
		CORSOrigins:   cfg.corsOrigins(),
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Run closes every WebSocket connection once the group context ends.
	// Hijacked connections are not tracked by http.Server.Shutdown.
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down tripmate server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if stopErr := sched.Stop(); stopErr != nil {
		logger.Warn("stopping scheduler", zap.Error(stopErr))
	}
	return err
}

func openDatabase(cfg *config, logger *zap.Logger) (*gorm.DB, error) {
	logLevel := gormlogger.Warn
	if cfg.LogLevel == "debug" {
		logLevel = gormlogger.Info
	}

	database, err := db.New(db.Config{
		Driver:   cfg.DBDriver,
		DSN:      cfg.DBDSN,
		Logger:   logger,
		LogLevel: logLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

func buildLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch level {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
