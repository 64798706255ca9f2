package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/oswaldbot/relay-go/pkg/server"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP relay service and the profile scheduler",
	Long: `Starts the HTTP relay service (POST /generate, GET /health) and, when
profiles are enabled, the scheduler that periodically rebuilds every known
user's profile from their chat history.

On SIGINT or SIGTERM the server stops accepting requests and pending
background persistence is drained before exit.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "listen address (overrides RELAY_LISTEN_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	relay, err := newRelay()
	if err != nil {
		return err
	}
	defer func() {
		logger.Info("draining background work")
		if err := relay.Close(); err != nil {
			logger.Error("failed to close relay", "error", err)
		}
	}()

	scheduler, err := relay.NewProfileScheduler()
	if err != nil {
		return err
	}
	if scheduler != nil {
		scheduler.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			scheduler.Stop(stopCtx)
		}()
	}

	addr := config.Server.ListenAddr
	if listenAddr != "" {
		addr = listenAddr
	}
	srv := server.New(relay, &server.Config{
		AllowedOrigins: config.Server.AllowedOrigins,
		Logger:         logger,
	})
	return srv.ListenAndServe(ctx, addr)
}
