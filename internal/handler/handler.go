// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/klbk90/creative-optimizer-sub001/internal/handler/dto"
	"github.com/klbk90/creative-optimizer-sub001/internal/middleware"
	"github.com/klbk90/creative-optimizer-sub001/internal/service"
)

var errBadQuery = errors.New("bad query parameter")

// apiError is the HTTP form of a service error.
type apiError struct {
	status  int
	code    string
	message string
}

// serviceErrors maps service sentinels to responses. Order does not
// matter: each service error wraps at most one sentinel.
var serviceErrors = map[error]apiError{
	// 404
	service.ErrSourceNotFound:     {http.StatusNotFound, "SOURCE_NOT_FOUND", "traffic source not found"},
	service.ErrLandingNotFound:    {http.StatusNotFound, "LANDING_NOT_FOUND", "landing page not found"},
	service.ErrCreativeNotFound:   {http.StatusNotFound, "CREATIVE_NOT_FOUND", "creative not found"},
	service.ErrInfluencerNotFound: {http.StatusNotFound, "INFLUENCER_NOT_FOUND", "influencer not found"},
	service.ErrNoRedirectTarget:   {http.StatusNotFound, "NO_REDIRECT_TARGET", "link has no redirect target"},

	// 409
	service.ErrSlugExists:       {http.StatusConflict, "SLUG_TAKEN", "slug already exists"},
	service.ErrInfluencerExists: {http.StatusConflict, "INFLUENCER_EXISTS", "influencer already exists"},
	service.ErrUTMIDCollision:   {http.StatusConflict, "UTM_ID_COLLISION", "could not allocate a unique utm_id, retry"},

	// 400
	service.ErrInvalidLinkType:      {http.StatusBadRequest, "INVALID_LINK_TYPE", "link_type must be landing or direct"},
	service.ErrMissingSource:        {http.StatusBadRequest, "MISSING_SOURCE", "source is required"},
	service.ErrMissingMedium:        {http.StatusBadRequest, "MISSING_MEDIUM", "medium is required"},
	service.ErrMissingBaseURL:       {http.StatusBadRequest, "MISSING_BASE_URL", "base_url is required for direct links"},
	service.ErrMissingUTMID:         {http.StatusBadRequest, "MISSING_UTM_ID", "utm_id is required"},
	service.ErrMissingReference:     {http.StatusBadRequest, "MISSING_REFERENCE", "traffic_source_id or utm_id is required"},
	service.ErrMissingConvType:      {http.StatusBadRequest, "MISSING_CONVERSION_TYPE", "conversion_type is required"},
	service.ErrInvalidAmount:        {http.StatusBadRequest, "INVALID_AMOUNT", "amount must not be negative"},
	service.ErrInvalidCurrency:      {http.StatusBadRequest, "INVALID_CURRENCY", "currency must be a 3-letter ISO 4217 code"},
	service.ErrInvalidFunnelStatus:  {http.StatusBadRequest, "INVALID_FUNNEL_STATUS", "invalid funnel status"},
	service.ErrInvalidTemplate:      {http.StatusBadRequest, "INVALID_TEMPLATE", "invalid template"},
	service.ErrInvalidStatus:        {http.StatusBadRequest, "INVALID_STATUS", "invalid status"},
	service.ErrMissingName:          {http.StatusBadRequest, "MISSING_NAME", "name is required"},
	service.ErrMissingDomain:        {http.StatusBadRequest, "MISSING_DOMAIN", "custom_domain is required"},
	service.ErrInvalidRedirectDelay: {http.StatusBadRequest, "INVALID_REDIRECT_DELAY", "redirect_delay must be between 0 and 60 seconds"},
	service.ErrInvalidCreativeType:  {http.StatusBadRequest, "INVALID_CREATIVE_TYPE", "invalid creative type"},
	service.ErrMissingHandle:        {http.StatusBadRequest, "MISSING_HANDLE", "handle is required"},
	service.ErrMissingPlatform:      {http.StatusBadRequest, "MISSING_PLATFORM", "platform is required"},
	service.ErrInvalidEngagement:    {http.StatusBadRequest, "INVALID_ENGAGEMENT_RATE", "engagement_rate must be between 0 and 100"},
	service.ErrInvalidFollowerCount: {http.StatusBadRequest, "INVALID_FOLLOWERS", "followers must not be negative"},
	service.ErrInvalidCursor:        {http.StatusBadRequest, "INVALID_CURSOR", "invalid pagination cursor"},
	service.ErrInvalidURL:           {http.StatusBadRequest, "INVALID_URL", "URL must be an absolute http(s) URL"},
	service.ErrURLTooLong:           {http.StatusBadRequest, "URL_TOO_LONG", "URL exceeds maximum length"},
}

// NotFound handles unmatched routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
}

// MethodNotAllowed handles 405 responses.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

// handleServiceError maps a service error to a response. Unknown errors
// are logged with the request ID and surface as INTERNAL_ERROR.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	for sentinel, e := range serviceErrors {
		if errors.Is(err, sentinel) {
			writeError(w, e.status, e.code, e.message)
			return
		}
	}

	logger.Error("internal_error",
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetRequestID(r.Context()),
	)
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes the error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message, Code: code})
}

// decodeJSON decodes the request body into v and answers 400/413 itself
// when it cannot. It reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "INVALID_JSON", "request body is empty")
		default:
			writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		}
		return false
	}
	return true
}

// listQuery holds the pagination and date-range parameters shared by
// listing endpoints.
type listQuery struct {
	Cursor        string
	Limit         int
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// parseListQuery reads cursor, limit, created_after and created_before.
// Limits outside 1..100 fall back to the service default; malformed
// timestamps are rejected.
func parseListQuery(r *http.Request) (listQuery, error) {
	q := r.URL.Query()
	out := listQuery{Cursor: q.Get("cursor")}

	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil {
			return out, fmt.Errorf("%w: limit", errBadQuery)
		}
		out.Limit = n
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"created_after", &out.CreatedAfter},
		{"created_before", &out.CreatedBefore},
	} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return out, fmt.Errorf("%w: %s must be RFC 3339", errBadQuery, p.name)
		}
		*p.dst = &t
	}
	return out, nil
}

func writeQueryError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error())
}

// requestMeta captures the visitor context of a public request.
func requestMeta(r *http.Request, referrer string) service.RequestMeta {
	if referrer == "" {
		referrer = r.Referer()
	}
	return service.RequestMeta{
		IP:        middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
		Referrer:  referrer,
	}
}
