package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go-shortlink/internal/redirect/cache"
	"go-shortlink/internal/webhook"
	"go-shortlink/pkg/problemdetails"

	"go.uber.org/zap"
)

const (
	maxInternalBody   = 64 << 10
	maxInvalidateKeys = 1000

	// HeaderUserID and HeaderOrgID are set by the gateway in front of the
	// operator API and key the per-user and per-org budgets.
	HeaderUserID = "X-User-ID"
	HeaderOrgID  = "X-Org-ID"
)

// EndpointRegistry persists webhook endpoints.
type EndpointRegistry interface {
	Create(ctx context.Context, ep webhook.Endpoint) (webhook.Endpoint, error)
}

// InternalHandler serves the operator-only API used by the link CRUD service.
type InternalHandler struct {
	cache     cache.LinkCache
	emitter   webhook.Emitter
	endpoints EndpointRegistry
	logger    *zap.Logger
}

func NewInternalHandler(linkCache cache.LinkCache, emitter webhook.Emitter, endpoints EndpointRegistry, logger *zap.Logger) *InternalHandler {
	return &InternalHandler{cache: linkCache, emitter: emitter, endpoints: endpoints, logger: logger}
}

// BearerAuth guards a route group with a static token. An empty token
// disables the group entirely.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" || !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="internal"`)
				writeProblem(w, r, problemdetails.New(
					http.StatusUnauthorized,
					problemdetails.TypeUnauthorized,
					"Unauthorized",
					"A valid operator token is required",
				))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxInternalBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeProblem(w, r, problemdetails.New(
			http.StatusBadRequest,
			problemdetails.TypeValidationError,
			"Invalid Request",
			"Request body must be valid JSON",
		))
		return false
	}
	return true
}

type invalidateRequest struct {
	Codes []string `json:"codes"`
}

// InvalidateCache handles POST /internal/v1/cache/invalidate
func (h *InternalHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Codes) == 0 || len(req.Codes) > maxInvalidateKeys {
		writeProblem(w, r, problemdetails.NewValidation([]problemdetails.FieldError{
			{Field: "codes", Message: "must contain between 1 and 1000 short codes"},
		}))
		return
	}

	h.cache.Invalidate(r.Context(), req.Codes...)
	h.logger.Debug("link cache invalidated", zap.Int("codes", len(req.Codes)))
	w.WriteHeader(http.StatusNoContent)
}

type emitRequest struct {
	Type  string         `json:"type"`
	OrgID string         `json:"org_id"`
	Data  map[string]any `json:"data"`
}

// EmitEvent handles POST /internal/v1/events
func (h *InternalHandler) EmitEvent(w http.ResponseWriter, r *http.Request) {
	var req emitRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var fieldErrs []problemdetails.FieldError
	eventType, err := webhook.ParseEventType(req.Type)
	switch {
	case err != nil:
		fieldErrs = append(fieldErrs, problemdetails.FieldError{Field: "type", Message: "unknown event type"})
	case eventType == webhook.EventClickRecorded:
		fieldErrs = append(fieldErrs, problemdetails.FieldError{Field: "type", Message: "click.recorded is emitted by the click pipeline only"})
	}
	if req.OrgID == "" {
		fieldErrs = append(fieldErrs, problemdetails.FieldError{Field: "org_id", Message: "is required"})
	}
	if len(fieldErrs) > 0 {
		writeProblem(w, r, problemdetails.NewValidation(fieldErrs))
		return
	}

	h.emitter.Emit(req.OrgID, eventType, req.Data)
	w.WriteHeader(http.StatusAccepted)
}

type registerEndpointRequest struct {
	OrgID  string   `json:"org_id"`
	URL    string   `json:"url"`
	Secret string   `json:"secret"`
	Events []string `json:"events"`
}

type endpointResponse struct {
	ID     string   `json:"id"`
	OrgID  string   `json:"org_id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

// RegisterEndpoint handles POST /internal/v1/webhooks
func (h *InternalHandler) RegisterEndpoint(w http.ResponseWriter, r *http.Request) {
	var req registerEndpointRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var fieldErrs []problemdetails.FieldError
	if req.OrgID == "" {
		fieldErrs = append(fieldErrs, problemdetails.FieldError{Field: "org_id", Message: "is required"})
	}
	if u, err := url.Parse(req.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		fieldErrs = append(fieldErrs, problemdetails.FieldError{Field: "url", Message: "must be an absolute http(s) URL"})
	}
	for _, e := range req.Events {
		if e == "*" {
			continue
		}
		if _, err := webhook.ParseEventType(e); err != nil {
			fieldErrs = append(fieldErrs, problemdetails.FieldError{Field: "events", Message: "unknown event type " + e})
		}
	}
	if len(fieldErrs) > 0 {
		writeProblem(w, r, problemdetails.NewValidation(fieldErrs))
		return
	}

	ep, err := h.endpoints.Create(r.Context(), webhook.Endpoint{
		OrgID:   req.OrgID,
		URL:     req.URL,
		Secret:  req.Secret,
		Events:  req.Events,
		Enabled: true,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		h.logger.Error("webhook endpoint registration failed", zap.String("org_id", req.OrgID), zap.Error(err))
		internalError(w, r)
		return
	}

	writeJSON(w, http.StatusCreated, endpointResponse{ID: ep.ID, OrgID: ep.OrgID, URL: ep.URL, Events: ep.Events})
}
