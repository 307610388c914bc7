// Package problemdetails renders RFC 7807 error bodies.
package problemdetails

import (
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	TypeInvalidDestination = "invalid-destination"
	TypeNotFound           = "not-found"
	TypeLinkExpired        = "link-expired"
	TypeLinkPaused         = "link-paused"
	TypeRateLimitExceeded  = "rate-limit-exceeded"
	TypeUnauthorized       = "unauthorized"
	TypeInternalError      = "internal-error"
	TypeValidationError    = "validation-error"
)

// ContentType is the media type of a problem document.
const ContentType = "application/problem+json"

var baseURI = "https://shortlink.dev/problems/"

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ProblemDetail struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail"`
	Instance string       `json:"instance,omitempty"`
	Errors   []FieldError `json:"errors,omitempty"`
}

func New(status int, problemType, title, detail string) *ProblemDetail {
	return &ProblemDetail{
		Type:   fmt.Sprintf("%s%s", baseURI, problemType),
		Title:  title,
		Status: status,
		Detail: detail,
	}
}

func NewValidation(errors []FieldError) *ProblemDetail {
	return &ProblemDetail{
		Type:   fmt.Sprintf("%s%s", baseURI, TypeValidationError),
		Title:  "Validation Failed",
		Status: http.StatusBadRequest,
		Detail: "Request validation failed",
		Errors: errors,
	}
}

// WithInstance sets the request path the problem occurred on.
func (p *ProblemDetail) WithInstance(instance string) *ProblemDetail {
	p.Instance = instance
	return p
}

// Write encodes p as the response body with its status code.
func Write(w http.ResponseWriter, p *ProblemDetail) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
