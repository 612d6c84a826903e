// Package cli implements the fcmctl command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	messaging "github.com/slush-dev/fcm-admin"
	"github.com/spf13/cobra"
)

var (
	credentialsFile string
	projectID       string
	verbose         bool
	useYAML         bool
)

var rootCmd = &cobra.Command{
	Use:   "fcmctl",
	Short: "Send Firebase Cloud Messaging messages and manage topic subscriptions",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&credentialsFile, "credentials", "", "Service account JSON file (default: application default credentials)")
	rootCmd.PersistentFlags().StringVar(&projectID, "project", "", "Firebase project ID (default: taken from the credentials)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&useYAML, "yaml", false, "Print output in YAML format instead of text")

	// Allow env override
	if env := os.Getenv("FCMCTL_CREDENTIALS"); env != "" {
		credentialsFile = env
	}
}

// SetVersion sets the version string shown by --version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the root command. An interrupt cancels the request in
// flight.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func clientOptions() []messaging.Option {
	opts := []messaging.Option{messaging.WithLogger(slog.Default())}
	if credentialsFile != "" {
		opts = append(opts, messaging.WithCredentialsFile(credentialsFile))
	}
	if projectID != "" {
		opts = append(opts, messaging.WithProjectID(projectID))
	}
	return opts
}

// newMessagingClient and newInstanceIDClient are vars so tests can swap
// the transport.
var newMessagingClient = func(ctx context.Context) (*messaging.Client, error) {
	client, err := messaging.NewClient(ctx, clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("creating messaging client: %w", err)
	}
	return client, nil
}

var newInstanceIDClient = func(ctx context.Context) (*messaging.InstanceIDClient, error) {
	client, err := messaging.NewInstanceIDClient(ctx, clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("creating instance ID client: %w", err)
	}
	return client, nil
}
