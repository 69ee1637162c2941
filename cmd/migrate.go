package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcpguard/mcpguard/internal/data/db"
	"github.com/mcpguard/mcpguard/internal/sql"
)

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE:  runMigrate,
	}

	flags := migrateCmd.Flags()
	flags.String("config", "", "Path to YAML config file")
	flags.String("db-type", "", "Database type: sqlite, postgres, or cloudsql")
	flags.String("db-path", "", "SQLite database path")
	flags.String("db-host", "", "Database host")
	flags.String("db-port", "", "Database port")
	flags.String("db-user", "", "Database user")
	flags.String("db-password", "", "Database password")
	flags.String("db-name", "", "Database name")
	flags.String("db-instance-connection-name", "", "Cloud SQL instance connection name")

	return migrateCmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("error getting flag: config: %w", err)
	}
	config, err := loadConfig(path)
	if err != nil {
		return err
	}
	for flag, dst := range map[string]*string{
		"db-type":                     &config.Database.Type,
		"db-path":                     &config.Database.Path,
		"db-host":                     &config.Database.Host,
		"db-port":                     &config.Database.Port,
		"db-user":                     &config.Database.User,
		"db-password":                 &config.Database.Password,
		"db-name":                     &config.Database.Name,
		"db-instance-connection-name": &config.Database.InstanceConnectionName,
	} {
		value, err := cmd.Flags().GetString(flag)
		if err != nil {
			return fmt.Errorf("error getting flag: %s: %w", flag, err)
		}
		if value != "" {
			*dst = value
		}
	}

	connector, err := sql.CreateDBConnector(config.Database.connectorConfig())
	if err != nil {
		return fmt.Errorf("error creating database connector: %w", err)
	}
	dbConn, err := connector.Connect(cmd.Context())
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		return fmt.Errorf("error migrating database: %w", err)
	}
	cmd.Println("migration complete")
	return nil
}
