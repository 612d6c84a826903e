package cli

import (
	"context"
	"os"

	messaging "github.com/slush-dev/fcm-admin"
	"github.com/spf13/cobra"
)

type topicFunc func(c *messaging.InstanceIDClient, ctx context.Context, topic string, tokens []string) (*messaging.TopicManagementResponse, error)

func newTopicCmd(use, short, action string, fn topicFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " TOPIC",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, _ := cmd.Flags().GetStringSlice("token")

			ctx := cmd.Context()
			client, err := newInstanceIDClient(ctx)
			if err != nil {
				return err
			}

			tmr, err := fn(client, ctx, args[0], tokens)
			if err != nil {
				return err
			}
			printTopicResult(os.Stdout, action, args[0], tokens, tmr, useYAML)
			return nil
		},
	}
	cmd.Flags().StringSliceP("token", "t", nil, "Registration tokens (repeatable or comma-separated, up to 1000)")
	cmd.MarkFlagRequired("token")
	return cmd
}

var (
	subscribeCmd = newTopicCmd("subscribe", "Subscribe registration tokens to a topic",
		"Subscribed", (*messaging.InstanceIDClient).SubscribeToTopic)
	unsubscribeCmd = newTopicCmd("unsubscribe", "Unsubscribe registration tokens from a topic",
		"Unsubscribed", (*messaging.InstanceIDClient).UnsubscribeFromTopic)
)

func init() {
	rootCmd.AddCommand(subscribeCmd, unsubscribeCmd)
}
