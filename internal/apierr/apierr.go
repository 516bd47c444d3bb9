package apierr

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// Error is the JSON body of every failed response.
type Error struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message" doc:"Human readable error"`
	StatusCode int                 `json:"statusCode" doc:"HTTP status code"`
	Timestamp  time.Time           `json:"timestamp" doc:"When the error was produced"`
	Detail     string              `json:"error,omitempty" doc:"Upstream error detail"`
	Errors     []*huma.ErrorDetail `json:"errors,omitempty" doc:"Validation failures"`
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) GetStatus() int {
	return e.StatusCode
}

// New builds an Error. Wrapped errors that carry validation details are listed in Errors.
func New(status int, message string, errs ...error) huma.StatusError {
	e := &Error{
		Message:    message,
		StatusCode: status,
		Timestamp:  time.Now().UTC(),
	}

	for _, err := range errs {
		if err == nil {
			continue
		}

		var detailer huma.ErrorDetailer
		if errors.As(err, &detailer) {
			e.Errors = append(e.Errors, detailer.ErrorDetail())

			continue
		}

		e.Errors = append(e.Errors, &huma.ErrorDetail{Message: err.Error()})
	}

	return e
}

// WithDetail builds an Error that carries an upstream message.
func WithDetail(status int, message, detail string) huma.StatusError {
	e := New(status, message).(*Error)
	e.Detail = detail

	return e
}

var installOnce sync.Once

// Install makes huma produce Error bodies for all of its own failures.
func Install() {
	installOnce.Do(func() {
		huma.NewError = New
	})
}

func BadRequest(message string) huma.StatusError {
	return New(http.StatusBadRequest, message)
}

func Unauthorized(message string) huma.StatusError {
	return New(http.StatusUnauthorized, message)
}

func NotFound(message string) huma.StatusError {
	return New(http.StatusNotFound, message)
}

func Internal(message string) huma.StatusError {
	return New(http.StatusInternalServerError, message)
}
