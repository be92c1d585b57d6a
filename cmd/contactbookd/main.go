// contactbookd is the ContactBook API server: Clerk-authenticated
// access to a user's Google contacts with per-user caching.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/contactbook/contactbook-api/auth"
	"github.com/contactbook/contactbook-api/config"
	"github.com/contactbook/contactbook-api/contacts"
	ristrettocache "github.com/contactbook/contactbook-api/contacts/cache/ristretto"
	sqlitecache "github.com/contactbook/contactbook-api/contacts/cache/sqlite"
	"github.com/contactbook/contactbook-api/people"
	"github.com/contactbook/contactbook-api/server"
	synchub "github.com/contactbook/contactbook-api/sync"
)

var (
	configPath string
	verbose    bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "contactbookd",
	Short: "ContactBook API server",
	Long: `contactbookd serves the ContactBook mobile app: it verifies
Clerk bearer tokens, fetches the caller's Google contacts through the
People API, and caches the normalized result per user for one hour.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// --verbose wins over the configured level.
		if !verbose && cfg.Log.Level != "" {
			var level zapcore.Level
			if err := level.Set(cfg.Log.Level); err != nil {
				return fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
			}
			zcfg := zap.NewProductionConfig()
			zcfg.Level = zap.NewAtomicLevelAt(level)
			if logger, err = zcfg.Build(); err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return run(ctx, cfg)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("%s already exists", configPath)
		}
		if err := config.DefaultConfig().Save(configPath); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", configPath)
		return nil
	},
}

func run(ctx context.Context, cfg *config.Config) error {
	memTier, err := ristrettocache.New(cfg.Cache.MaxEntries, cfg.Cache.TTLDuration())
	if err != nil {
		return fmt.Errorf("create memory cache: %w", err)
	}

	var durable contacts.Cache
	if cfg.Cache.SQLitePath != "" {
		dur, err := sqlitecache.Open(cfg.Cache.SQLitePath, cfg.Cache.TTLDuration())
		if err != nil {
			// The cache store is optional: log and keep serving from
			// memory only, as the original did when Redis was down.
			logger.Warn("durable cache unavailable",
				zap.String("path", cfg.Cache.SQLitePath), zap.Error(err))
		} else {
			durable = dur
		}
	}
	cache := contacts.NewTiered(memTier, durable, logger)
	defer cache.Close()

	verifierOpts := []auth.VerifierOption{auth.WithVerifierLogger(logger)}
	if cfg.Clerk.InsecureSkipVerify {
		logger.Warn("token signature verification disabled")
		verifierOpts = append(verifierOpts, auth.WithInsecureSkipVerify())
	}
	verifier := auth.NewClerkVerifier(cfg.Clerk.APIBase, cfg.Clerk.SecretKey, verifierOpts...)
	clerk := auth.NewClerkClient(cfg.Clerk.APIBase, cfg.Clerk.SecretKey, logger)

	fetcher := people.NewClient(people.WithLogger(logger))

	svcOpts := []contacts.Option{contacts.WithLogger(logger)}
	if cfg.Google.ClientID != "" {
		svcOpts = append(svcOpts, contacts.WithLinker(people.NewOAuthFlow(
			cfg.Google.ClientID, cfg.Google.ClientSecret,
			cfg.Google.RedirectURL, cfg.Google.Scopes)))
	}

	var hub *synchub.Hub
	if cfg.Sync.Enabled {
		hub = synchub.NewHub(logger)
		svcOpts = append(svcOpts, contacts.WithPublisher(hub))
	}

	svc := contacts.NewService(clerk, fetcher, cache, svcOpts...)

	srvOpts := []server.ServerOption{server.WithServerLogger(logger)}
	if hub != nil {
		srvOpts = append(srvOpts, server.WithHub(hub))
	}
	srv := server.New(cfg.Server, verifier, svc, srvOpts...)

	logger.Info("starting contactbook api",
		zap.String("addr", cfg.Server.Addr()),
		zap.Strings("cors_origins", cfg.Server.CORSOrigins))
	return srv.Run(ctx)
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "contactbook.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(serveCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
