package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	messaging "github.com/slush-dev/fcm-admin"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRootPersistentFlags(t *testing.T) {
	for _, name := range []string{"credentials", "project", "verbose", "yaml"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "missing --%s", name)
	}
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"send", "send-all", "multicast", "subscribe", "unsubscribe"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestSendFlags(t *testing.T) {
	for _, cmd := range []*cobra.Command{sendCmd, multicastCmd} {
		for _, name := range []string{"token", "title", "body", "image", "data", "dry-run"} {
			assert.NotNil(t, cmd.Flags().Lookup(name), "%s: missing --%s", cmd.Name(), name)
		}
		dryRun, err := cmd.Flags().GetBool("dry-run")
		require.NoError(t, err)
		assert.False(t, dryRun)
	}
	assert.NotNil(t, sendAllCmd.Flags().Lookup("dry-run"))
	assert.NotNil(t, sendAllCmd.Flags().Lookup("file"))
}

func TestSpecFromFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("token", "", "")
	cmd.Flags().String("topic", "", "")
	cmd.Flags().String("condition", "", "")
	addPayloadFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--topic", "news", "--title", "Hi", "--data", "a=1,b=2"}))

	m := specFromFlags(cmd).toMessage()
	assert.Equal(t, "news", m.Topic)
	assert.Empty(t, m.Token)
	assert.Equal(t, &messaging.Notification{Title: "Hi"}, m.Notification)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, m.Data)
}

func TestMessageSpec_DataOnly(t *testing.T) {
	m := (&messageSpec{Token: "t"}).toMessage()
	assert.Nil(t, m.Notification)
	assert.Nil(t, m.Data)
}

func TestLoadMessages(t *testing.T) {
	in := `
- token: abc
  title: Hello
  body: World
- topic: news
  data:
    k: v
- condition: "'a' in topics"
`
	msgs, err := loadMessages(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, "abc", msgs[0].Token)
	assert.Equal(t, "Hello", msgs[0].Notification.Title)
	assert.Equal(t, "World", msgs[0].Notification.Body)
	assert.Equal(t, "news", msgs[1].Topic)
	assert.Equal(t, map[string]string{"k": "v"}, msgs[1].Data)
	assert.Equal(t, "'a' in topics", msgs[2].Condition)
}

func TestLoadMessages_Invalid(t *testing.T) {
	_, err := loadMessages(strings.NewReader("token: not-a-list"))
	assert.Error(t, err)

	_, err = loadMessages(strings.NewReader("[]"))
	assert.Error(t, err)
}

func testBatch() *messaging.BatchResponse {
	return &messaging.BatchResponse{
		SuccessCount: 1,
		FailureCount: 1,
		Responses: []*messaging.SendResponse{
			{Success: true, MessageID: "projects/p/messages/1"},
			{Error: &messaging.Error{MessagingCode: messaging.MessagingErrorCodeUnregistered, Message: "gone"}},
		},
	}
}

func TestPrintBatch_Text(t *testing.T) {
	var out bytes.Buffer
	printBatch(&out, testBatch(), false)

	s := out.String()
	assert.Contains(t, s, "projects/p/messages/1")
	assert.Contains(t, s, "[UNREGISTERED] gone")
	assert.Contains(t, s, "1 sent, 1 failed.")
}

func TestPrintBatch_YAML(t *testing.T) {
	var out bytes.Buffer
	printBatch(&out, testBatch(), true)

	var got batchOut
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 1, got.SuccessCount)
	require.Len(t, got.Responses, 2)
	assert.Equal(t, "projects/p/messages/1", got.Responses[0].MessageID)
	assert.Equal(t, "UNREGISTERED", got.Responses[1].Code)
}

func TestNewSendResultOut_PlainError(t *testing.T) {
	out := newSendResultOut(3, &messaging.SendResponse{Error: errors.New("boom")})
	assert.Equal(t, 3, out.Index)
	assert.Equal(t, "boom", out.Error)
	assert.Empty(t, out.Code)
}

func TestPrintTopicResult(t *testing.T) {
	tmr := &messaging.TopicManagementResponse{
		SuccessCount: 1,
		FailureCount: 1,
		Errors:       []*messaging.ErrorInfo{{Index: 1, Reason: "registration-token-not-registered"}},
	}

	var out bytes.Buffer
	printTopicResult(&out, "Subscribed", "news", []string{"a", "b"}, tmr, false)
	assert.Contains(t, out.String(), "Subscribed 1 of 2 tokens (topic news).")
	assert.Contains(t, out.String(), "b: registration-token-not-registered")

	out.Reset()
	printTopicResult(&out, "Subscribed", "news", []string{"a", "b"}, tmr, true)
	var got topicOut
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "news", got.Topic)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, "b", got.Errors[0].Token)
}

func TestTopicCommandsRequireArg(t *testing.T) {
	assert.Error(t, subscribeCmd.Args(subscribeCmd, nil))
	assert.NoError(t, unsubscribeCmd.Args(unsubscribeCmd, []string{"news"}))
	assert.NotNil(t, subscribeCmd.Flags().Lookup("token"))
}

func TestCommandsUseCommandContext(t *testing.T) {
	origMessaging, origIID := newMessagingClient, newInstanceIDClient
	defer func() { newMessagingClient, newInstanceIDClient = origMessaging, origIID }()

	newMessagingClient = func(ctx context.Context) (*messaging.Client, error) {
		return messaging.NewClient(ctx, messaging.WithHTTPClient(&http.Client{}), messaging.WithProjectID("p"))
	}
	newInstanceIDClient = func(ctx context.Context) (*messaging.InstanceIDClient, error) {
		return messaging.NewInstanceIDClient(ctx, messaging.WithHTTPClient(&http.Client{}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, args := range [][]string{
		{"send", "--token", "t", "--title", "hi"},
		{"multicast", "--token", "a,b"},
		{"subscribe", "news", "--token", "a"},
	} {
		t.Run(args[0], func(t *testing.T) {
			rootCmd.SetArgs(args)
			rootCmd.SetOut(io.Discard)
			rootCmd.SetErr(io.Discard)

			err := rootCmd.ExecuteContext(ctx)

			var fe *messaging.Error
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, messaging.ErrorCodeCancelled, fe.Code)
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}
