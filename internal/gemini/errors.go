package gemini

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoAPIKey is returned when an API call is attempted without a key.
	ErrNoAPIKey = errors.New("APIキーが設定されていません")
	// ErrEmptyText is returned when there is nothing to send.
	ErrEmptyText = errors.New("要約するテキストがありません")
)

// StatusNetworkError marks failures that never reached the API.
const StatusNetworkError = "NETWORK_ERROR"

// APIError is the normalized form of every failed call.
type APIError struct {
	Code    int    // HTTP status, 0 when the request did not complete
	Status  string // API status such as RESOURCE_EXHAUSTED
	Message string
	Err     error // underlying transport error, if any
}

func (e *APIError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("API Error: %s - %s", e.Status, e.Message)
	}
	return fmt.Sprintf("API Error: %d %s - %s", e.Code, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Transient reports whether the call may succeed if repeated: the server
// was overloaded, rate limited, or failed internally.
func (e *APIError) Transient() bool {
	switch e.Code {
	case http.StatusServiceUnavailable, http.StatusTooManyRequests, http.StatusInternalServerError:
		return true
	}
	return false
}

// Describe returns a message suitable for the status line.
func Describe(err error) string {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		if err == nil {
			return ""
		}
		return err.Error()
	}
	switch {
	case apiErr.Code == 0:
		return "Could not reach the Gemini API: " + apiErr.Message
	case apiErr.Code == http.StatusBadRequest:
		return "The request was rejected (400): " + apiErr.Message
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
		return "The API key is invalid or lacks permission"
	case apiErr.Code == http.StatusTooManyRequests:
		return "Rate limit reached, wait a moment and retry"
	case apiErr.Code == http.StatusServiceUnavailable:
		return "The model is overloaded, retry later"
	case apiErr.Code == http.StatusInternalServerError:
		return "The API reported an internal error"
	default:
		return apiErr.Error()
	}
}
