package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/guess2/dailytrivia/internal/app"
	"github.com/guess2/dailytrivia/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	configPath string
	logCloser  io.Closer
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	errRun := rootCmd.ExecuteContext(ctx)
	stop()
	if logCloser != nil {
		_ = logCloser.Close()
	}
	if errRun != nil {
		log.WithError(errRun).Error("command failed")
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "trivia",
	Short: "Daily trivia backend",
	Long: `Serves the daily trivia API: accounts, timed challenge attempts,
cached leaderboards, premium subscriptions and the admin console.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if errEnv := config.LoadDotEnv(); errEnv != nil {
			return errEnv
		}
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"trivia version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (or env CONFIG_PATH)")

	serveCmd.Flags().Int("port", 0, "listen port, overrides the config file and PORT")
	seedCmd.Flags().String("admin-email", "", "create or promote this account to admin")
	seedCmd.Flags().String("admin-username", "", "username for a newly created admin (defaults to the email local part)")
	seedCmd.Flags().String("admin-password", "", "password for a newly created admin")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Read(configPath)
		if err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			if port < 0 || port > 65535 {
				return fmt.Errorf("invalid port: %d", port)
			}
			cfg.Server.Port = port
		}
		if errValidate := cfg.Validate(); errValidate != nil {
			return errValidate
		}
		if errLog := setupLogging(cfg); errLog != nil {
			return errLog
		}
		return app.RunServer(cmd.Context(), cfg)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Read(configPath)
		if err != nil {
			return err
		}
		if errLog := setupLogging(cfg); errLog != nil {
			return errLog
		}
		return app.Migrate(cmd.Context(), cfg)
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the bundled achievements and sample challenges",
	Long: `Migrates the schema, then inserts the bundled achievements and sample
challenges. Challenges already present by title are skipped.

With --admin-email the account is promoted to admin, or created with
--admin-password when it does not exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Read(configPath)
		if err != nil {
			return err
		}
		if errLog := setupLogging(cfg); errLog != nil {
			return errLog
		}
		email, _ := cmd.Flags().GetString("admin-email")
		username, _ := cmd.Flags().GetString("admin-username")
		password, _ := cmd.Flags().GetString("admin-password")

		summary, errSeed := app.Seed(cmd.Context(), cfg, app.SeedOptions{
			AdminEmail:    email,
			AdminUsername: username,
			AdminPassword: password,
		})
		if errSeed != nil {
			return errSeed
		}
		log.WithFields(log.Fields{
			"achievements":       summary.Achievements,
			"challenges_created": summary.ChallengesCreated,
			"challenges_skipped": summary.ChallengesSkipped,
		}).Info("seed complete")
		return nil
	},
}

func setupLogging(cfg config.Config) error {
	closer, errLog := app.ConfigureLogging(cfg.Logging)
	if errLog != nil {
		return errLog
	}
	logCloser = closer
	return nil
}
