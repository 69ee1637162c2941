package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mcpguard/mcpguard/internal/api"
	"github.com/mcpguard/mcpguard/internal/data/db"
	"github.com/mcpguard/mcpguard/internal/log"
	"github.com/mcpguard/mcpguard/internal/metrics"
	"github.com/mcpguard/mcpguard/internal/pprof"
	"github.com/mcpguard/mcpguard/internal/sql"
	"github.com/mcpguard/mcpguard/pkg/insights"
	"github.com/mcpguard/mcpguard/pkg/normalize"
)

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scan ingestion and analytics server",
		RunE:  runServe,
	}

	flags := serveCmd.Flags()
	flags.String("config", "", "Path to YAML config file")
	flags.String("addr", "", "Listen address, e.g. :8080")
	flags.Float64("rate-limit", 0, "Sustained requests per second (0 disables)")
	flags.String("pprof-addr", "", "pprof listen address (empty disables)")
	flags.String("db-type", "", "Database type: sqlite, postgres, or cloudsql")
	flags.String("db-path", "", "SQLite database path")
	flags.String("db-host", "", "Database host")
	flags.String("db-port", "", "Database port")
	flags.String("db-user", "", "Database user")
	flags.String("db-password", "", "Database password")
	flags.String("db-name", "", "Database name")
	flags.String("db-instance-connection-name", "", "Cloud SQL instance connection name")
	flags.Bool("disable-insights", false, "Disable the ML insight endpoints")

	return serveCmd
}

// configFromFlags loads the config file and applies flag overrides.
func configFromFlags(cmd *cobra.Command) (Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return Config{}, fmt.Errorf("error getting flag: config: %w", err)
	}
	config, err := loadConfig(path)
	if err != nil {
		return Config{}, err
	}

	stringOverrides := []struct {
		flag string
		dst  *string
	}{
		{"addr", &config.Server.Addr},
		{"pprof-addr", &config.PprofAddr},
		{"db-type", &config.Database.Type},
		{"db-path", &config.Database.Path},
		{"db-host", &config.Database.Host},
		{"db-port", &config.Database.Port},
		{"db-user", &config.Database.User},
		{"db-password", &config.Database.Password},
		{"db-name", &config.Database.Name},
		{"db-instance-connection-name", &config.Database.InstanceConnectionName},
	}
	for _, o := range stringOverrides {
		value, err := cmd.Flags().GetString(o.flag)
		if err != nil {
			return Config{}, fmt.Errorf("error getting flag: %s: %w", o.flag, err)
		}
		if value != "" {
			*o.dst = value
		}
	}

	if rateLimit, err := cmd.Flags().GetFloat64("rate-limit"); err == nil && rateLimit > 0 {
		config.Server.RateLimit = rateLimit
	}
	if disabled, err := cmd.Flags().GetBool("disable-insights"); err == nil && disabled {
		config.Insights = insights.Config{DisabledReason: "ml insights disabled by configuration"}
	}
	return config, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	config, err := configFromFlags(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = metrics.WithMetrics(ctx, "mcpguard")
	logger := log.NewLogger(ctx)

	connector, err := sql.CreateDBConnector(config.Database.connectorConfig())
	if err != nil {
		return fmt.Errorf("error creating database connector: %w", err)
	}
	dbConn, err := connector.Connect(ctx)
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		return fmt.Errorf("error migrating database: %w", err)
	}
	store, err := db.NewGormStore(dbConn)
	if err != nil {
		return fmt.Errorf("error initializing store: %w", err)
	}

	server, err := api.NewServer(ctx, config.Server, store, normalize.New(), insights.NewService(config.Insights))
	if err != nil {
		return fmt.Errorf("error creating server: %w", err)
	}

	if config.PprofAddr != "" {
		go func() {
			if err := pprof.StartPprofServer(ctx, config.PprofAddr); err != nil {
				logger.Error("pprof server failed", zap.Error(err))
			}
		}()
	}

	return server.Run(ctx)
}
