package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pactsquad/pact-api/internal/platform/config"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:           "pact-api",
		Short:         "Trip pact API: sign-in, trip creation and membership",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newMigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to configuration file")
	flags.String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	flags.String("public-base-url", defaults.GetString("public.base_url"), "Public origin used in sign-in callbacks")
	flags.String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	flags.String("storage-backend", defaults.GetString("storage.backend"), "Storage backend (memory, postgres, sqlite)")
	flags.String("database-url", "", "Postgres connection string")
	flags.String("database-path", defaults.GetString("database.path"), "SQLite database path")
	flags.String("idempotency-backend", defaults.GetString("idempotency.backend"), "Idempotency backend (memory, postgres, redis)")
	flags.String("auth-mode", defaults.GetString("auth.mode"), "Auth mode (supabase, dev)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "public.base_url", "public-base-url")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "storage.backend", "storage-backend")
	bindFlag(cmd, "database.url", "database-url")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "idempotency.backend", "idempotency-backend")
	bindFlag(cmd, "auth.mode", "auth-mode")
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
		if cfgFile != "" || !errors.As(err, &configNotFound) {
			return err
		}
	}
	return nil
}
