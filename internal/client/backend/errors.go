package backend

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/common"
)

var ErrInvalidCredentials = errors.New("invalid login credentials")

// HTTPError is a non-2xx response. It unwraps to the common sentinel for its
// status class so callers can match with errors.Is.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("backend: %d %s", e.StatusCode, e.Message)
}

func (e *HTTPError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return common.ErrUnauthorized
	case e.StatusCode == http.StatusNotFound:
		return common.ErrNotFound
	case e.StatusCode >= 500:
		return common.ErrUnavailable
	}
	return nil
}

// errorBody covers the error shapes of both the auth and the storage API.
type errorBody struct {
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (b errorBody) text() string {
	for _, s := range []string{b.ErrorDescription, b.Msg, b.Message, b.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}
