package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	messaging "github.com/slush-dev/fcm-admin"
	"gopkg.in/yaml.v3"
)

// yamlOut prints data as a YAML document to w.
func yamlOut(w io.Writer, data any) {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	enc.Encode(data)
	enc.Close()
}

// printTable prints a simple formatted table header with separator.
func printTable(w io.Writer, format string, width int, columns ...any) {
	fmt.Fprintf(w, format+"\n", columns...)
	fmt.Fprintln(w, strings.Repeat("-", width))
}

type sendResultOut struct {
	Index     int    `yaml:"index"`
	Success   bool   `yaml:"success"`
	MessageID string `yaml:"message_id,omitempty"`
	Code      string `yaml:"code,omitempty"`
	Error     string `yaml:"error,omitempty"`
}

type batchOut struct {
	SuccessCount int             `yaml:"success_count"`
	FailureCount int             `yaml:"failure_count"`
	Responses    []sendResultOut `yaml:"responses"`
}

func newSendResultOut(i int, r *messaging.SendResponse) sendResultOut {
	out := sendResultOut{Index: i, Success: r.Success, MessageID: r.MessageID}
	if r.Error != nil {
		out.Error = r.Error.Error()
		var fe *messaging.Error
		if errors.As(r.Error, &fe) {
			out.Code = string(fe.MessagingCode)
		}
	}
	return out
}

// printBatch prints one line per message of br.
func printBatch(w io.Writer, br *messaging.BatchResponse, asYAML bool) {
	out := batchOut{SuccessCount: br.SuccessCount, FailureCount: br.FailureCount}
	for i, r := range br.Responses {
		out.Responses = append(out.Responses, newSendResultOut(i, r))
	}
	if asYAML {
		yamlOut(w, out)
		return
	}

	printTable(w, "%-6s %-8s %s", 60, "INDEX", "STATUS", "RESULT")
	for _, r := range out.Responses {
		if r.Success {
			fmt.Fprintf(w, "%-6d %-8s %s\n", r.Index, "ok", r.MessageID)
		} else {
			fmt.Fprintf(w, "%-6d %-8s [%s] %s\n", r.Index, "failed", r.Code, r.Error)
		}
	}
	fmt.Fprintf(w, "\n%d sent, %d failed.\n", out.SuccessCount, out.FailureCount)
}

type topicOut struct {
	Topic        string          `yaml:"topic"`
	SuccessCount int             `yaml:"success_count"`
	FailureCount int             `yaml:"failure_count"`
	Errors       []topicErrorOut `yaml:"errors,omitempty"`
}

type topicErrorOut struct {
	Index  int    `yaml:"index"`
	Token  string `yaml:"token"`
	Reason string `yaml:"reason"`
}

// printTopicResult prints the outcome of a topic (un)subscription of tokens.
func printTopicResult(w io.Writer, action, topic string, tokens []string, tmr *messaging.TopicManagementResponse, asYAML bool) {
	out := topicOut{Topic: topic, SuccessCount: tmr.SuccessCount, FailureCount: tmr.FailureCount}
	for _, e := range tmr.Errors {
		te := topicErrorOut{Index: e.Index, Reason: e.Reason}
		if e.Index < len(tokens) {
			te.Token = tokens[e.Index]
		}
		out.Errors = append(out.Errors, te)
	}
	if asYAML {
		yamlOut(w, out)
		return
	}

	fmt.Fprintf(w, "%s %d of %d tokens (topic %s).\n", action, out.SuccessCount, len(tokens), topic)
	for _, e := range out.Errors {
		fmt.Fprintf(w, "  %d  %s: %s\n", e.Index, e.Token, e.Reason)
	}
}
