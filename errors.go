package messaging

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidArgument is wrapped by errors returned for arguments rejected
// before any request is sent.
var ErrInvalidArgument = errors.New("invalid argument")

// invalidArgument returns an error wrapping ErrInvalidArgument.
func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// ErrorCode is a platform-wide error code shared by all Google APIs.
type ErrorCode string

const (
	ErrorCodeInvalidArgument    ErrorCode = "INVALID_ARGUMENT"
	ErrorCodeFailedPrecondition ErrorCode = "FAILED_PRECONDITION"
	ErrorCodeOutOfRange         ErrorCode = "OUT_OF_RANGE"
	ErrorCodeUnauthenticated    ErrorCode = "UNAUTHENTICATED"
	ErrorCodePermissionDenied   ErrorCode = "PERMISSION_DENIED"
	ErrorCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrorCodeConflict           ErrorCode = "CONFLICT"
	ErrorCodeAborted            ErrorCode = "ABORTED"
	ErrorCodeAlreadyExists      ErrorCode = "ALREADY_EXISTS"
	ErrorCodeResourceExhausted  ErrorCode = "RESOURCE_EXHAUSTED"
	ErrorCodeCancelled          ErrorCode = "CANCELLED"
	ErrorCodeDataLoss           ErrorCode = "DATA_LOSS"
	ErrorCodeUnknown            ErrorCode = "UNKNOWN"
	ErrorCodeInternal           ErrorCode = "INTERNAL"
	ErrorCodeUnavailable        ErrorCode = "UNAVAILABLE"
	ErrorCodeDeadlineExceeded   ErrorCode = "DEADLINE_EXCEEDED"
)

var platformErrorCodes = map[string]ErrorCode{
	"INVALID_ARGUMENT":    ErrorCodeInvalidArgument,
	"FAILED_PRECONDITION": ErrorCodeFailedPrecondition,
	"OUT_OF_RANGE":        ErrorCodeOutOfRange,
	"UNAUTHENTICATED":     ErrorCodeUnauthenticated,
	"PERMISSION_DENIED":   ErrorCodePermissionDenied,
	"NOT_FOUND":           ErrorCodeNotFound,
	"CONFLICT":            ErrorCodeConflict,
	"ABORTED":             ErrorCodeAborted,
	"ALREADY_EXISTS":      ErrorCodeAlreadyExists,
	"RESOURCE_EXHAUSTED":  ErrorCodeResourceExhausted,
	"CANCELLED":           ErrorCodeCancelled,
	"DATA_LOSS":           ErrorCodeDataLoss,
	"UNKNOWN":             ErrorCodeUnknown,
	"INTERNAL":            ErrorCodeInternal,
	"UNAVAILABLE":         ErrorCodeUnavailable,
	"DEADLINE_EXCEEDED":   ErrorCodeDeadlineExceeded,
}

var httpStatusErrorCodes = map[int]ErrorCode{
	http.StatusBadRequest:                   ErrorCodeInvalidArgument,
	http.StatusUnauthorized:                 ErrorCodeUnauthenticated,
	http.StatusForbidden:                    ErrorCodePermissionDenied,
	http.StatusNotFound:                     ErrorCodeNotFound,
	http.StatusConflict:                     ErrorCodeConflict,
	http.StatusPreconditionFailed:           ErrorCodeFailedPrecondition,
	http.StatusRequestedRangeNotSatisfiable: ErrorCodeOutOfRange,
	http.StatusTooManyRequests:              ErrorCodeResourceExhausted,
	http.StatusInternalServerError:          ErrorCodeInternal,
	http.StatusServiceUnavailable:           ErrorCodeUnavailable,
	http.StatusGatewayTimeout:               ErrorCodeDeadlineExceeded,
}

// errorCodeFromHTTPStatus maps an HTTP status to a platform code, UNKNOWN for
// anything unlisted.
func errorCodeFromHTTPStatus(status int) ErrorCode {
	if code, ok := httpStatusErrorCodes[status]; ok {
		return code
	}
	return ErrorCodeUnknown
}

// MessagingErrorCode is the FCM-specific error kind reported by the send API.
type MessagingErrorCode string

const (
	MessagingErrorCodeThirdPartyAuthError MessagingErrorCode = "THIRD_PARTY_AUTH_ERROR"
	MessagingErrorCodeInvalidArgument     MessagingErrorCode = "INVALID_ARGUMENT"
	MessagingErrorCodeInternal            MessagingErrorCode = "INTERNAL"
	MessagingErrorCodeQuotaExceeded       MessagingErrorCode = "QUOTA_EXCEEDED"
	MessagingErrorCodeSenderIDMismatch    MessagingErrorCode = "SENDER_ID_MISMATCH"
	MessagingErrorCodeUnavailable         MessagingErrorCode = "UNAVAILABLE"
	MessagingErrorCodeUnregistered        MessagingErrorCode = "UNREGISTERED"
	MessagingErrorCodeUnknown             MessagingErrorCode = "UNKNOWN"
)

var messagingErrorCodes = map[string]MessagingErrorCode{
	"APNS_AUTH_ERROR":        MessagingErrorCodeThirdPartyAuthError,
	"INTERNAL":               MessagingErrorCodeInternal,
	"INVALID_ARGUMENT":       MessagingErrorCodeInvalidArgument,
	"QUOTA_EXCEEDED":         MessagingErrorCodeQuotaExceeded,
	"SENDER_ID_MISMATCH":     MessagingErrorCodeSenderIDMismatch,
	"THIRD_PARTY_AUTH_ERROR": MessagingErrorCodeThirdPartyAuthError,
	"UNAVAILABLE":            MessagingErrorCodeUnavailable,
	"UNREGISTERED":           MessagingErrorCodeUnregistered,
}

// messagingErrorCodeFor looks up a service error code; empty and unlisted
// codes are UNKNOWN.
func messagingErrorCodeFor(code string) MessagingErrorCode {
	if mc, ok := messagingErrorCodes[code]; ok {
		return mc
	}
	return MessagingErrorCodeUnknown
}

// HTTPResponse is the raw response that produced an Error.
type HTTPResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Method     string
	URL        string
}

// Error is returned for every failed call against FCM or the Instance ID
// service. It wraps the underlying transport or parse error when there is
// one.
type Error struct {
	// Code is the platform error code.
	Code ErrorCode

	// MessagingCode is the FCM-specific error kind. It is UNKNOWN for
	// failures that carry no FCM error detail, including all topic
	// management failures.
	MessagingCode MessagingErrorCode

	// Message describes the failure, taken from the response body when the
	// service supplied one.
	Message string

	// Response is nil for transport failures.
	Response *HTTPResponse

	cause     error
	transport bool
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// StatusCode returns the HTTP status of the failed response, or 0 when no
// response was received.
func (e *Error) StatusCode() int {
	if e.Response == nil {
		return 0
	}
	return e.Response.StatusCode
}

// IsTransport reports whether the failure happened before any HTTP response
// was received.
func (e *Error) IsTransport() bool {
	return e.transport
}

func hasMessagingCode(err error, code MessagingErrorCode) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.MessagingCode == code
}

// IsInternal reports whether err is an FCM INTERNAL error.
func IsInternal(err error) bool {
	return hasMessagingCode(err, MessagingErrorCodeInternal)
}

// IsInvalidArgument reports whether err is an FCM INVALID_ARGUMENT error.
func IsInvalidArgument(err error) bool {
	return hasMessagingCode(err, MessagingErrorCodeInvalidArgument)
}

// IsQuotaExceeded reports whether the sending limit was exceeded.
func IsQuotaExceeded(err error) bool {
	return hasMessagingCode(err, MessagingErrorCodeQuotaExceeded)
}

// IsSenderIDMismatch reports whether the token belongs to another sender.
func IsSenderIDMismatch(err error) bool {
	return hasMessagingCode(err, MessagingErrorCodeSenderIDMismatch)
}

// IsThirdPartyAuthError reports whether APNs or web push rejected the
// project's credentials.
func IsThirdPartyAuthError(err error) bool {
	return hasMessagingCode(err, MessagingErrorCodeThirdPartyAuthError)
}

// IsUnavailable reports whether FCM was temporarily unavailable.
func IsUnavailable(err error) bool {
	return hasMessagingCode(err, MessagingErrorCodeUnavailable)
}

// IsUnregistered reports whether the registration token is no longer valid.
func IsUnregistered(err error) bool {
	return hasMessagingCode(err, MessagingErrorCodeUnregistered)
}

// IsUnknown reports whether err is an *Error with no recognized FCM error
// kind.
func IsUnknown(err error) bool {
	return hasMessagingCode(err, MessagingErrorCodeUnknown)
}
