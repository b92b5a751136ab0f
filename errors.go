package betclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ugandavote/betclient/upstream"
)

// Kind classifies a failed call.
type Kind int

// Kind constants.
const (
	// KindTransport covers failures without a usable HTTP response: dial
	// errors, timeouts, an open circuit.
	KindTransport Kind = iota
	// KindUnauthenticated is a 401 from either upstream. The credential and
	// the cache have already been cleared when the caller sees it.
	KindUnauthenticated
	// KindValidation is any other 4xx: the backend rejected caller data.
	KindValidation
	// KindServer is a 5xx or an undecodable success body.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Sentinel errors matched by errors.Is against an *Error.
var (
	ErrTransport       = errors.New("betclient: transport failure")
	ErrUnauthenticated = errors.New("betclient: unauthenticated")
	ErrValidation      = errors.New("betclient: request rejected")
	ErrServer          = errors.New("betclient: server error")
)

// Error is returned by every Client method that reaches an upstream. All
// callers attached to one de-duplicated call receive the same *Error.
type Error struct {
	Kind Kind
	// Op is the client method that failed, e.g. "GetBalance".
	Op string
	// Status is the HTTP status, or 0 for transport failures.
	Status int
	// Message is human readable: the upstream "error" or "message" field
	// when present, otherwise a generic fallback.
	Message string
	// Balance is the "balance" field of a rejection payload, if any, so the
	// caller can resync a displayed balance.
	Balance *float64
	// Body is the raw response body of a non-2xx response.
	Body []byte
	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the Kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrUnauthenticated:
		return e.Kind == KindUnauthenticated
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrServer:
		return e.Kind == KindServer
	}
	return false
}

// Fallback messages when the upstream payload carries none.
const (
	msgTransport       = "Network error. Please check your connection and try again."
	msgUnauthenticated = "Your session has expired. Please log in again."
	msgValidation      = "Request failed. Please check your input and try again."
	msgServer          = "Something went wrong. Please try again."
)

type errorPayload struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Balance *float64 `json:"balance"`
}

// classify turns an upstream failure into an *Error. Non-upstream errors
// are treated as transport failures.
func classify(op string, err error) *Error {
	var be *Error
	if errors.As(err, &be) {
		return be
	}

	var se *upstream.StatusError
	if !errors.As(err, &se) {
		return &Error{Kind: KindTransport, Op: op, Message: msgTransport, Err: err}
	}

	e := &Error{Op: op, Status: se.StatusCode, Body: se.Body, Err: err}
	switch {
	case se.StatusCode == http.StatusUnauthorized:
		e.Kind, e.Message = KindUnauthenticated, msgUnauthenticated
	case se.StatusCode >= 500:
		e.Kind, e.Message = KindServer, msgServer
	default:
		e.Kind, e.Message = KindValidation, msgValidation
	}

	var p errorPayload
	if json.Unmarshal(se.Body, &p) == nil {
		switch {
		case strings.TrimSpace(p.Error) != "":
			e.Message = p.Error
		case strings.TrimSpace(p.Message) != "":
			e.Message = p.Message
		}
		e.Balance = p.Balance
	}
	return e
}

func decodeError(op string, err error) *Error {
	return &Error{Kind: KindServer, Op: op, Message: "unexpected response from server", Err: err}
}
