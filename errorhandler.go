package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/slush-dev/fcm-admin/internal/apiclient"
)

const fcmErrorType = "type.googleapis.com/google.firebase.fcm.v1.FcmError"

// platformErrorResponse is the google.rpc.Status envelope returned by FCM.
type platformErrorResponse struct {
	Error struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Details []struct {
			Type      string `json:"@type"`
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

func (r *platformErrorResponse) fcmErrorCode() string {
	for _, d := range r.Error.Details {
		if d.Type == fcmErrorType {
			return d.ErrorCode
		}
	}
	return ""
}

// fcmErrorHandler translates send API failures.
type fcmErrorHandler struct{}

func (fcmErrorHandler) HandleIOError(err error) error {
	return transportError(err)
}

func (fcmErrorHandler) HandleHTTPError(resp *apiclient.Response) error {
	return platformError(resp)
}

func (fcmErrorHandler) HandleParseError(err error, resp *apiclient.Response) error {
	return parseError("FCM service", err, resp)
}

// platformError builds an Error from a non-2xx FCM response. Bodies that are
// not JSON fall back to the HTTP status.
func platformError(resp *apiclient.Response) *Error {
	var parsed platformErrorResponse
	_ = json.Unmarshal(resp.Body, &parsed)

	code, ok := platformErrorCodes[parsed.Error.Status]
	if !ok {
		code = errorCodeFromHTTPStatus(resp.StatusCode)
	}

	msg := parsed.Error.Message
	if msg == "" {
		msg = defaultHTTPErrorMessage(resp)
	}

	return &Error{
		Code:          code,
		MessagingCode: messagingErrorCodeFor(parsed.fcmErrorCode()),
		Message:       msg,
		Response:      toHTTPResponse(resp),
	}
}

// iidErrorHandler translates topic management failures.
type iidErrorHandler struct{}

func (iidErrorHandler) HandleIOError(err error) error {
	return transportError(err)
}

func (iidErrorHandler) HandleHTTPError(resp *apiclient.Response) error {
	var parsed struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(resp.Body, &parsed)

	msg := parsed.Error
	if msg == "" {
		msg = defaultHTTPErrorMessage(resp)
	}

	return &Error{
		Code:          errorCodeFromHTTPStatus(resp.StatusCode),
		MessagingCode: MessagingErrorCodeUnknown,
		Message:       msg,
		Response:      toHTTPResponse(resp),
	}
}

func (iidErrorHandler) HandleParseError(err error, resp *apiclient.Response) error {
	return parseError("topic management service", err, resp)
}

func parseError(service string, err error, resp *apiclient.Response) *Error {
	return &Error{
		Code:          ErrorCodeUnknown,
		MessagingCode: MessagingErrorCodeUnknown,
		Message:       fmt.Sprintf("Error parsing response from the %s: %v", service, err),
		Response:      toHTTPResponse(resp),
		cause:         err,
	}
}

// transportError classifies a failure that produced no HTTP response.
func transportError(err error) *Error {
	code := ErrorCodeUnknown
	prefix := "Unknown error while making a remote service call"

	var netErr net.Error
	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, context.Canceled):
		code, prefix = ErrorCodeCancelled, "Request cancelled"
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		code, prefix = ErrorCodeDeadlineExceeded, "Timed out while making an API call"
	case errors.As(err, &opErr), errors.As(err, &dnsErr):
		code, prefix = ErrorCodeUnavailable, "Failed to establish a connection"
	}

	return &Error{
		Code:          code,
		MessagingCode: MessagingErrorCodeUnknown,
		Message:       fmt.Sprintf("%s: %v", prefix, err),
		cause:         err,
		transport:     true,
	}
}

func defaultHTTPErrorMessage(resp *apiclient.Response) string {
	return fmt.Sprintf("Unexpected HTTP response with status: %d\n%s", resp.StatusCode, string(resp.Body))
}

func toHTTPResponse(resp *apiclient.Response) *HTTPResponse {
	if resp == nil {
		return nil
	}
	return &HTTPResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
		Method:     resp.Method,
		URL:        resp.URL,
	}
}
