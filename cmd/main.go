package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"propertyhub/internal/config"
	"propertyhub/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCommand(context.Background(), viper.New()).Execute(); err != nil {
		os.Exit(1)
	}
}

// cli carries what every sub command needs once flags are parsed.
type cli struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
	log        *zap.Logger
}

func newRootCommand(ctx context.Context, v *viper.Viper) *cobra.Command {
	c := &cli{v: v}

	cmd := &cobra.Command{
		Use:          "propertyhub",
		Short:        "Multi-tenant property management service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "path to a config file (yaml, json or toml)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("db-path", "", "sqlite store file (desktop mode)")
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("database.path", flags.Lookup("db-path"))

	cmd.AddCommand(
		newServeCommand(ctx, c),
		newBackupCommand(ctx, c),
		newVersionCommand(),
	)
	return cmd
}

func (c *cli) load() error {
	cfg, err := config.Load(c.v, c.configFile)
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: "propertyhub",
	})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	c.cfg = cfg
	c.log = log
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		// config is not needed to print the version
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "propertyhub %s\n", version)
		},
	}
}
