package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/ecodeclub/ekit/slice"
	messaging "github.com/slush-dev/fcm-admin"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// loadMessages reads a YAML list of messages:
//
//	- token: abc
//	  title: Hello
//	- topic: news
//	  data: {k: v}
func loadMessages(r io.Reader) ([]*messaging.Message, error) {
	var specs []*messageSpec
	if err := yaml.NewDecoder(r).Decode(&specs); err != nil {
		return nil, fmt.Errorf("decoding messages: %w", err)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("no messages in file")
	}
	return slice.Map(specs, func(_ int, s *messageSpec) *messaging.Message {
		return s.toMessage()
	}), nil
}

var sendAllCmd = &cobra.Command{
	Use:   "send-all",
	Short: "Send up to 500 messages from a YAML file in one batch request",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening messages file: %w", err)
		}
		defer f.Close()

		messages, err := loadMessages(f)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		client, err := newMessagingClient(ctx)
		if err != nil {
			return err
		}

		sendAll := client.SendAll
		if dryRun {
			sendAll = client.SendAllDryRun
		}
		br, err := sendAll(ctx, messages)
		if err != nil {
			return err
		}

		printBatch(os.Stdout, br, useYAML)
		return nil
	},
}

var multicastCmd = &cobra.Command{
	Use:   "multicast",
	Short: "Send the same message to up to 500 registration tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		tokens, _ := cmd.Flags().GetStringSlice("token")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		spec := &messageSpec{}
		addPayloadFromFlags(cmd, spec)
		mm := &messaging.MulticastMessage{
			Tokens:       tokens,
			Notification: spec.notification(),
		}
		if len(spec.Data) > 0 {
			mm.Data = spec.Data
		}

		ctx := cmd.Context()
		client, err := newMessagingClient(ctx)
		if err != nil {
			return err
		}

		multicast := client.SendMulticast
		if dryRun {
			multicast = client.SendMulticastDryRun
		}
		br, err := multicast(ctx, mm)
		if err != nil {
			return err
		}

		printBatch(os.Stdout, br, useYAML)
		return nil
	},
}

func init() {
	sendAllCmd.Flags().StringP("file", "f", "", "YAML file with a list of messages")
	sendAllCmd.Flags().Bool("dry-run", false, "Validate with FCM without delivering")
	sendAllCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(sendAllCmd)

	multicastCmd.Flags().StringSliceP("token", "t", nil, "Registration tokens (repeatable or comma-separated)")
	addPayloadFlags(multicastCmd)
	multicastCmd.MarkFlagRequired("token")
	rootCmd.AddCommand(multicastCmd)
}
