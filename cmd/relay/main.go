// Command relay runs the search-augmented chat relay.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oswaldbot/relay-go/pkg/core"
	"github.com/oswaldbot/relay-go/pkg/logging"
)

var (
	envFile    string
	configFile string
	logLevel   string

	config      *core.Config
	logger      *slog.Logger
	closeLogger func() error
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Search-augmented chat relay for a local language model",
	Long: `relay answers chat mentions with a local language model.

Each prompt goes through a query planner that decides whether a web search
is needed, a search step against SearXNG, and a prompt composer that adds
the asker's profile before the model answers. Every exchange is stored with
its embeddings and folded into a per-user profile in the background.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		switch {
		case configFile != "":
			config, err = core.LoadConfigFromJSON(configFile)
		case envFile != "":
			config, err = core.LoadConfigFromEnvFile(envFile)
		default:
			config, err = core.LoadConfigFromEnv()
		}
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		level := config.Log.Level
		if logLevel != "" {
			level = logLevel
		}
		logger, closeLogger = logging.Setup(config.Log.File, logging.ParseLevel(level))
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLogger != nil {
			_ = closeLogger()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment from this .env file")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "load configuration from this JSON file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd, botCmd, askCmd, profileCmd)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// newRelay builds the relay client from the loaded configuration.
func newRelay() (*core.Client, error) {
	client, err := core.NewClient(config, core.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create relay: %w", err)
	}
	return client, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
