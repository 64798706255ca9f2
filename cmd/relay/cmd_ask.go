package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oswaldbot/relay-go/pkg/core"
)

var (
	askUser    string
	askModel   string
	askTargets []string
)

var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Answer one prompt through the full pipeline",
	Long: `Runs a single prompt through planning, search, composition and
generation, prints the planned queries and the search context state, then
the answer.

Example:
  relay ask --user alice "what is the capital of Canada?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		relay, err := newRelay()
		if err != nil {
			return err
		}
		defer func() { _ = relay.Close() }()

		answer, err := relay.Answer(ctx, core.Request{
			Prompt:         strings.Join(args, " "),
			Username:       askUser,
			Model:          askModel,
			TargetSubjects: askTargets,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "context: %s\n", answer.ContextState)
		for _, q := range answer.Queries {
			fmt.Fprintf(out, "query:   %s\n", q)
		}
		fmt.Fprintf(out, "\n%s\n", answer.Response)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVarP(&askUser, "user", "u", "", "ask as this user (records the exchange)")
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "model to use instead of LLM_MODEL")
	askCmd.Flags().StringSliceVarP(&askTargets, "about", "a", nil, "users the prompt is about")
}
