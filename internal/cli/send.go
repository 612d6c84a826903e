package cli

import (
	"fmt"
	"os"

	messaging "github.com/slush-dev/fcm-admin"
	"github.com/spf13/cobra"
)

// messageSpec is the command-line and YAML form of a single message.
type messageSpec struct {
	Token     string            `yaml:"token"`
	Topic     string            `yaml:"topic"`
	Condition string            `yaml:"condition"`
	Title     string            `yaml:"title"`
	Body      string            `yaml:"body"`
	Image     string            `yaml:"image"`
	Data      map[string]string `yaml:"data"`
}

func (s *messageSpec) notification() *messaging.Notification {
	if s.Title == "" && s.Body == "" && s.Image == "" {
		return nil
	}
	return &messaging.Notification{Title: s.Title, Body: s.Body, ImageURL: s.Image}
}

func (s *messageSpec) toMessage() *messaging.Message {
	m := &messaging.Message{
		Token:        s.Token,
		Topic:        s.Topic,
		Condition:    s.Condition,
		Notification: s.notification(),
	}
	if len(s.Data) > 0 {
		m.Data = s.Data
	}
	return m
}

func specFromFlags(cmd *cobra.Command) *messageSpec {
	s := &messageSpec{}
	s.Token, _ = cmd.Flags().GetString("token")
	s.Topic, _ = cmd.Flags().GetString("topic")
	s.Condition, _ = cmd.Flags().GetString("condition")
	addPayloadFromFlags(cmd, s)
	return s
}

func addPayloadFromFlags(cmd *cobra.Command, s *messageSpec) {
	s.Title, _ = cmd.Flags().GetString("title")
	s.Body, _ = cmd.Flags().GetString("body")
	s.Image, _ = cmd.Flags().GetString("image")
	s.Data, _ = cmd.Flags().GetStringToString("data")
}

func addPayloadFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", "Notification title")
	cmd.Flags().String("body", "", "Notification body")
	cmd.Flags().String("image", "", "Notification image URL")
	cmd.Flags().StringToString("data", nil, "Data payload entries (key=value,...)")
	cmd.Flags().Bool("dry-run", false, "Validate with FCM without delivering")
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a message to a token, topic or condition",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		msg := specFromFlags(cmd).toMessage()

		ctx := cmd.Context()
		client, err := newMessagingClient(ctx)
		if err != nil {
			return err
		}

		send := client.Send
		if dryRun {
			send = client.SendDryRun
		}
		id, err := send(ctx, msg)
		if err != nil {
			return err
		}

		if useYAML {
			yamlOut(os.Stdout, map[string]any{
				"message_id": id,
				"dry_run":    dryRun,
			})
		} else {
			fmt.Printf("Sent! messageId=%s\n", id)
		}
		return nil
	},
}

func init() {
	sendCmd.Flags().StringP("token", "t", "", "Registration token of the target device")
	sendCmd.Flags().String("topic", "", "Target topic")
	sendCmd.Flags().String("condition", "", "Target topic condition, e.g. \"'a' in topics && 'b' in topics\"")
	addPayloadFlags(sendCmd)
	sendCmd.MarkFlagsMutuallyExclusive("token", "topic", "condition")
	sendCmd.MarkFlagsOneRequired("token", "topic", "condition")
	rootCmd.AddCommand(sendCmd)
}
