package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrNoSession is returned by operations that need a signed-in user when none exists
	ErrNoSession = errors.New("no active session")
	// ErrNotConfigured is returned when the backend URL or key still hold placeholders
	ErrNotConfigured = errors.New("backend URL or anon key not configured")
)

// APIError is an error response from the auth or data API. Message is shown to
// the user verbatim.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsClientError reports whether the backend rejected the request itself
// (as opposed to a transient server failure)
func (e *APIError) IsClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

// errorBody covers the error shapes GoTrue and PostgREST return
type errorBody struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

// DecodeError builds an *APIError from a non-2xx response
func DecodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	apiErr := &APIError{Status: resp.StatusCode}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Code = body.ErrorCode
		if apiErr.Code == "" && body.Error != "" && body.ErrorDescription != "" {
			apiErr.Code = body.Error
		}
		if apiErr.Code == "" && len(body.Code) > 0 {
			apiErr.Code = strings.Trim(string(body.Code), `"`)
		}
		for _, m := range []string{body.Msg, body.ErrorDescription, body.Message, body.Error} {
			if m != "" {
				apiErr.Message = m
				break
			}
		}
	}
	if apiErr.Message == "" {
		text := strings.TrimSpace(string(raw))
		if text == "" {
			text = http.StatusText(resp.StatusCode)
		}
		apiErr.Message = fmt.Sprintf("request failed (%d): %s", resp.StatusCode, text)
	}
	return apiErr
}
