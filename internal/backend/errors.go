package backend

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	ErrNetwork      = errors.New("order service unreachable")
	ErrUnauthorized = errors.New("session expired or missing")
	ErrNotFound     = errors.New("order not found")

	// ErrDocumentNotReady is expected: the document is not generated for the
	// order's current stage yet.
	ErrDocumentNotReady = errors.New("document is not available yet for this order")
	// ErrDocumentGeneration is returned when the failure could not be decoded.
	ErrDocumentGeneration = errors.New("document could not be generated, please retry")
)

// ValidationError is a domain rejection from the backend, for example an
// address that is too short.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// DocumentError carries the backend's message for a failed document request.
type DocumentError struct {
	Status  int
	Message string
}

func (e *DocumentError) Error() string {
	return e.Message
}

func (e *DocumentError) Unwrap() error {
	return ErrDocumentGeneration
}

// StatusError is any other non-2xx answer.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return "order service error"
	}
	return e.Message
}

type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func (a apiError) text() string {
	if a.Message != "" {
		return a.Message
	}
	return a.Error
}

// decodeAPIError reads a JSON error body. ok is false when body is not a JSON
// object with a message.
func decodeAPIError(body []byte) (apiError, bool) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(string(body), "\ufeff"))
	if !strings.HasPrefix(trimmed, "{") {
		return apiError{}, false
	}
	var ae apiError
	if err := json.Unmarshal([]byte(trimmed), &ae); err != nil {
		return apiError{}, false
	}
	if ae.text() == "" && ae.Code == "" {
		return apiError{}, false
	}
	return ae, true
}

var notReadyCodes = map[string]bool{
	"DOCUMENT_NOT_READY":     true,
	"DOCUMENT_NOT_GENERATED": true,
	"NOT_AVAILABLE":          true,
}

var notReadyMessage = regexp.MustCompile(`(?i)not (yet )?(been )?(generated|available|ready)`)

func (a apiError) notReady() bool {
	return notReadyCodes[strings.ToUpper(a.Code)] || notReadyMessage.MatchString(a.text())
}
