package messaging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/slush-dev/fcm-admin/internal/apiclient"
)

// SendResponse is the outcome of one message in a batch: either a message
// ID or an error.
type SendResponse struct {
	Success   bool
	MessageID string
	Error     error
}

// BatchResponse holds one SendResponse per message of a batch, in the order
// the messages were given.
type BatchResponse struct {
	SuccessCount int
	FailureCount int
	Responses    []*SendResponse
}

func newBatchResponse(responses []*SendResponse) *BatchResponse {
	br := &BatchResponse{Responses: responses}
	for _, r := range responses {
		if r.Success {
			br.SuccessCount++
		} else {
			br.FailureCount++
		}
	}
	return br
}

// Err returns the failed messages' errors, each prefixed with its index, or
// nil when every message was accepted.
func (br *BatchResponse) Err() error {
	var result *multierror.Error
	for i, r := range br.Responses {
		if !r.Success {
			result = multierror.Append(result, fmt.Errorf("message %d: %w", i, r.Error))
		}
	}
	return result.ErrorOrNil()
}

// batchEnvelope is a multipart/mixed request carrying one HTTP sub-request
// per message. Parts are tagged with a Content-ID so that responses can be
// matched back to their messages.
type batchEnvelope struct {
	sendURL  string
	idPrefix string
	count    int
	boundary string
	body     []byte
}

func newBatchEnvelope(sendURL string, messages []*Message, dryRun bool, header http.Header) (*batchEnvelope, error) {
	env := &batchEnvelope{
		sendURL:  sendURL,
		idPrefix: uuid.NewString(),
		count:    len(messages),
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary("__END_OF_PART__" + uuid.NewString()); err != nil {
		return nil, fmt.Errorf("setting batch boundary: %w", err)
	}
	env.boundary = w.Boundary()

	for i, m := range messages {
		body, err := json.Marshal(&sendRequest{Message: m, ValidateOnly: dryRun})
		if err != nil {
			return nil, fmt.Errorf("marshaling message %d: %w", i, err)
		}

		part, err := w.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {"application/http"},
			"Content-Transfer-Encoding": {"binary"},
			"Content-Id":                {env.contentID(i)},
		})
		if err != nil {
			return nil, fmt.Errorf("creating batch part %d: %w", i, err)
		}
		if err := writeSubRequest(part, sendURL, header, body); err != nil {
			return nil, fmt.Errorf("writing batch part %d: %w", i, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing batch envelope: %w", err)
	}

	env.body = buf.Bytes()
	return env, nil
}

// writeSubRequest writes one embedded HTTP request. Sub-requests carry no
// Authorization header; the envelope is authorized as a whole.
func writeSubRequest(w io.Writer, url string, header http.Header, body []byte) error {
	h := header.Clone()
	h.Set("Content-Type", "application/json; charset=UTF-8")
	h.Set("Content-Length", strconv.Itoa(len(body)))

	if _, err := fmt.Fprintf(w, "POST %s HTTP/1.1\r\n", url); err != nil {
		return err
	}
	if err := h.Write(w); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\r\n"); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

func (env *batchEnvelope) contentID(i int) string {
	return fmt.Sprintf("<%s+%d>", env.idPrefix, i)
}

// indexOf resolves a response Content-ID ("<response-prefix+N>") to its
// message index.
func (env *batchEnvelope) indexOf(contentID string) (int, bool) {
	id := strings.Trim(contentID, "<>")
	id = strings.TrimPrefix(id, "response-")
	rest, ok := strings.CutPrefix(id, env.idPrefix+"+")
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return i, true
}

func (env *batchEnvelope) request(batchURL string) *apiclient.Request {
	return &apiclient.Request{
		Method:      http.MethodPost,
		URL:         batchURL,
		Header:      http.Header{},
		Body:        env.body,
		ContentType: "multipart/mixed; boundary=" + env.boundary,
	}
}

// parse demultiplexes a batch response into one SendResponse per message.
// Parts without a recognizable Content-ID are matched by position. A part
// whose embedded response cannot be read fails only its own message.
func (env *batchEnvelope) parse(resp *apiclient.Response) ([]*SendResponse, error) {
	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("batch content type: %w", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		return nil, fmt.Errorf("batch content type: expected multipart, got %q", mediaType)
	}

	results := make([]*SendResponse, env.count)
	reader := multipart.NewReader(bytes.NewReader(resp.Body), params["boundary"])
	seen := 0
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading batch part %d: %w", seen, err)
		}

		idx, ok := env.indexOf(part.Header.Get("Content-Id"))
		if !ok {
			idx = seen
		}
		if idx < 0 || idx >= env.count || results[idx] != nil {
			return nil, fmt.Errorf("unexpected batch part for message %d", idx)
		}

		sub, err := readSubResponse(part, env.sendURL)
		if err != nil {
			results[idx] = &SendResponse{Error: parseError("FCM service", fmt.Errorf("reading batch part %d: %w", seen, err), nil)}
		} else {
			results[idx] = newSendResponse(sub)
		}
		seen++
	}

	if seen != env.count {
		return nil, fmt.Errorf("expected %d batch responses, got %d", env.count, seen)
	}
	return results, nil
}

func readSubResponse(r io.Reader, url string) (*apiclient.Response, error) {
	resp, err := http.ReadResponse(bufio.NewReader(r), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &apiclient.Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       body,
		Method:     http.MethodPost,
		URL:        url,
	}, nil
}

// newSendResponse converts one sub-response; failures stay local to the
// message.
func newSendResponse(sub *apiclient.Response) *SendResponse {
	if !sub.Success() {
		return &SendResponse{Error: platformError(sub)}
	}
	var result sendResponse
	if err := json.Unmarshal(sub.Body, &result); err != nil {
		return &SendResponse{Error: parseError("FCM service", err, sub)}
	}
	return &SendResponse{Success: true, MessageID: result.Name}
}
