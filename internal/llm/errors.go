package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	gemini "github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// TransientError is a failure worth retrying: timeouts, rate limits, outages
type TransientError struct {
	Message string
	Cause   error
}

func (e *TransientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transient generation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("transient generation error: %s", e.Message)
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// TerminalError is a failure that will not go away on retry: bad credentials,
// an invalid request, a blocked prompt or a malformed response
type TerminalError struct {
	Message string
	Cause   error
}

func (e *TerminalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("generation failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("generation failed: %s", e.Message)
}

func (e *TerminalError) Unwrap() error {
	return e.Cause
}

// IsTransient reports whether err, once classified, is worth retrying
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(Classify(err, ""), &te)
}

// Classify wraps an SDK or network error as *TransientError or *TerminalError.
// Errors that are already classified are returned unchanged.
func Classify(err error, message string) error {
	if err == nil {
		return nil
	}
	var transient *TransientError
	var terminal *TerminalError
	if errors.As(err, &transient) || errors.As(err, &terminal) {
		return err
	}
	if message == "" {
		message = "model call failed"
	}
	if isTransient(err) {
		return &TransientError{Message: message, Cause: err}
	}
	return &TerminalError{Message: message, Cause: err}
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var blocked *gemini.BlockedError
	if errors.As(err, &blocked) {
		return false
	}

	var gapiErr *googleapi.Error
	if errors.As(err, &gapiErr) {
		return isTransientStatus(gapiErr.Code)
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if code := apiErr.HTTPCode(); code > 0 {
			return isTransientStatus(code)
		}
		if st := apiErr.GRPCStatus(); st != nil {
			return isTransientCode(st.Code())
		}
	}

	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return isTransientStatus(genaiErr.Code)
	}
	var genaiErrPtr *genai.APIError
	if errors.As(err, &genaiErrPtr) {
		return isTransientStatus(genaiErrPtr.Code)
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return isTransientCode(st.Code())
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func isTransientStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}

func isTransientCode(code codes.Code) bool {
	switch code {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted, codes.Internal:
		return true
	default:
		return false
	}
}
