package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect and rebuild user profiles",
}

var profileShowCmd = &cobra.Command{
	Use:   "show [username]",
	Short: "Print a user's stored profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		relay, err := newRelay()
		if err != nil {
			return err
		}
		defer func() { _ = relay.Close() }()

		content, err := relay.Profile(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), content)
		return nil
	},
}

var profileRefreshCmd = &cobra.Command{
	Use:   "refresh [username]",
	Short: "Rebuild a user's profile from their chat history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		relay, err := newRelay()
		if err != nil {
			return err
		}
		defer func() { _ = relay.Close() }()

		updated, err := relay.RefreshProfile(ctx, args[0])
		if err != nil {
			return err
		}
		if !updated {
			fmt.Fprintf(cmd.OutOrStdout(), "no chat history for %s, profile unchanged\n", args[0])
			return nil
		}
		content, err := relay.Profile(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), content)
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileShowCmd, profileRefreshCmd)
}
