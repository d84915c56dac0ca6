package moodle

import (
	"fmt"
)

// Result is the outcome of a single web-service call.
// It is one of Success, *MoodleError or *TransportError.
type Result interface {
	result()
}

// Success carries the decoded payload untouched: a map, a list, a scalar or nil
type Success struct {
	Payload interface{}
}

// MoodleError is an error reported by Moodle itself, usually inside a 200 response
type MoodleError struct {
	Exception  string `json:"exception,omitempty"`
	ErrorCode  string `json:"errorcode,omitempty"`
	Message    string `json:"message"`
	DebugInfo  string `json:"debuginfo,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

// TransportError is a failure to obtain a decodable response.
// Protocol is set when a body arrived but was not valid JSON.
type TransportError struct {
	Message    string
	StatusCode int
	Protocol   bool
	Err        error
}

func (Success) result() {}

func (*MoodleError) result() {}

func (*TransportError) result() {}

func (e *MoodleError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("moodle error [%s]: %s", e.ErrorCode, e.Message)
	}
	return "moodle error: " + e.Message
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return "transport error: " + e.Message
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Err returns the failure carried by r, or nil when r is a Success
func Err(r Result) error {
	switch v := r.(type) {
	case *MoodleError:
		return v
	case *TransportError:
		return v
	case Success:
		return nil
	default:
		return fmt.Errorf("unknown moodle result %T", r)
	}
}

// Payload returns the payload of a Success or the error of a failed call
func Payload(r Result) (interface{}, error) {
	if s, ok := r.(Success); ok {
		return s.Payload, nil
	}
	return nil, Err(r)
}

// Classify inspects a decoded body and the HTTP status it arrived with.
// Known error envelopes take precedence over the status code so the
// richer upstream message is kept.
func Classify(status int, payload interface{}) Result {
	if m, ok := payload.(map[string]interface{}); ok {
		if _, found := m["exception"]; found {
			return &MoodleError{
				Exception:  String(m["exception"]),
				ErrorCode:  String(m["errorcode"]),
				Message:    messageOr(String(m["message"]), "Unknown error"),
				DebugInfo:  String(m["debuginfo"]),
				StatusCode: status,
			}
		}

		if code, found := m["errorcode"]; found && code != nil {
			return &MoodleError{
				ErrorCode:  String(code),
				Message:    messageOr(String(m["message"]), "Unknown error"),
				DebugInfo:  String(m["debuginfo"]),
				StatusCode: status,
			}
		}

		if e, found := m["error"]; found {
			if merr := errorField(e, status); merr != nil {
				return merr
			}
		}
	}

	if status < 200 || status >= 300 {
		return &MoodleError{
			ErrorCode:  fmt.Sprintf("http_%d", status),
			Message:    fmt.Sprintf("upstream returned HTTP %d", status),
			StatusCode: status,
		}
	}

	return Success{Payload: payload}
}

// errorField converts an "error" member into a MoodleError.
// Empty or false values do not signal an error.
func errorField(v interface{}, status int) *MoodleError {
	switch e := v.(type) {
	case nil, bool:
		if b, ok := e.(bool); ok && b {
			return &MoodleError{Message: "Unknown error", StatusCode: status}
		}
		return nil
	case string:
		if e == "" {
			return nil
		}
		return &MoodleError{Message: e, StatusCode: status}
	case map[string]interface{}:
		return &MoodleError{
			ErrorCode:  firstNonEmpty(String(e["errorcode"]), String(e["code"])),
			Message:    messageOr(firstNonEmpty(String(e["message"]), String(e["error"])), "Unknown error"),
			DebugInfo:  String(e["debuginfo"]),
			StatusCode: status,
		}
	default:
		return &MoodleError{Message: String(e), StatusCode: status}
	}
}

func messageOr(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
