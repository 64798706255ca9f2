package main

import (
	"github.com/spf13/cobra"

	"github.com/oswaldbot/relay-go/pkg/bot"
	"github.com/oswaldbot/relay-go/pkg/server"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Slack adapter against a running relay service",
	Long: `Connects to Slack over Socket Mode and answers app mentions by calling
the relay service at RELAY_URL. Requires SLACK_BOT_TOKEN and SLACK_APP_TOKEN.

Before answering, the bot polls the relay's health endpoint for up to a
minute.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		relay := server.NewClient(config.Bot.RelayURL, nil)
		return bot.Run(ctx, relay, &bot.Config{
			BotToken: config.Bot.SlackBotToken,
			AppToken: config.Bot.SlackAppToken,
			Model:    config.Bot.Model,
			Logger:   logger,
		})
	},
}
