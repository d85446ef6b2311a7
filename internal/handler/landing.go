package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/klbk90/creative-optimizer-sub001/internal/auth"
	"github.com/klbk90/creative-optimizer-sub001/internal/handler/dto"
	"github.com/klbk90/creative-optimizer-sub001/internal/middleware"
	"github.com/klbk90/creative-optimizer-sub001/internal/model"
	"github.com/klbk90/creative-optimizer-sub001/internal/service"
)

// LandingService is the landing page API the handlers need.
type LandingService interface {
	Create(ctx context.Context, in service.CreateLandingInput) (*model.LandingPage, error)
	Get(ctx context.Context, id, userID string) (*model.LandingPage, error)
	Update(ctx context.Context, in service.UpdateLandingInput) (*model.LandingPage, error)
	List(ctx context.Context, in service.ListLandingsInput) (*service.Page[*model.LandingPage], error)
	Delete(ctx context.Context, id, userID string) error
	Deploy(ctx context.Context, id, userID, domain string) (*model.LandingPage, error)
	SetStatus(ctx context.Context, id, userID, status string) (*model.LandingPage, error)
	Render(ctx context.Context, slugOrID string, meta service.RequestMeta) (*service.RenderedPage, error)
	Preview(ctx context.Context, id, userID string) (*service.RenderedPage, error)
}

// LandingHandler handles landing page management and public rendering.
type LandingHandler struct {
	svc    LandingService
	logger *slog.Logger
}

// NewLandingHandler creates a new LandingHandler.
func NewLandingHandler(svc LandingService, logger *slog.Logger) *LandingHandler {
	return &LandingHandler{svc: svc, logger: logger}
}

// Create handles POST /landings/create.
func (h *LandingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLandingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	page, err := h.svc.Create(r.Context(), service.CreateLandingInput{
		UserID:        auth.UserID(r.Context()),
		Name:          req.Name,
		Template:      req.Template,
		Config:        req.Config,
		UTMSource:     req.UTMSource,
		UTMMedium:     req.UTMMedium,
		UTMCampaign:   req.UTMCampaign,
		RedirectURL:   req.RedirectURL,
		RedirectDelay: req.RedirectDelay,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, page)
}

// Update handles PUT /landings/{id}.
func (h *LandingHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateLandingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	page, err := h.svc.Update(r.Context(), service.UpdateLandingInput{
		ID:            chi.URLParam(r, "id"),
		UserID:        auth.UserID(r.Context()),
		Name:          req.Name,
		Template:      req.Template,
		Config:        req.Config,
		UTMSource:     req.UTMSource,
		UTMMedium:     req.UTMMedium,
		UTMCampaign:   req.UTMCampaign,
		RedirectURL:   req.RedirectURL,
		RedirectDelay: req.RedirectDelay,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// List handles GET /landings/.
func (h *LandingHandler) List(w http.ResponseWriter, r *http.Request) {
	lq, err := parseListQuery(r)
	if err != nil {
		writeQueryError(w, err)
		return
	}

	page, err := h.svc.List(r.Context(), service.ListLandingsInput{
		UserID: auth.UserID(r.Context()),
		Status: r.URL.Query().Get("status"),
		Cursor: lq.Cursor,
		Limit:  lq.Limit,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewListResponse(page.Items, page.NextCursor, page.HasMore))
}

// Delete handles DELETE /landings/{id}.
func (h *LandingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id, auth.UserID(r.Context())); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Deploy handles POST /landings/deploy.
func (h *LandingHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	var req dto.DeployLandingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.LandingPageID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "landing_page_id is required")
		return
	}

	page, err := h.svc.Deploy(r.Context(), req.LandingPageID, auth.UserID(r.Context()), req.CustomDomain)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// SetStatus handles POST /landings/{id}/status.
func (h *LandingHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.SetStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	page, err := h.svc.SetStatus(r.Context(), chi.URLParam(r, "id"), auth.UserID(r.Context()), req.Status)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// Preview handles GET /landings/preview/{id}: the owner's view of a page
// in any status, with nothing recorded.
func (h *LandingHandler) Preview(w http.ResponseWriter, r *http.Request) {
	rendered, err := h.svc.Preview(r.Context(), chi.URLParam(r, "id"), auth.UserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeHTML(w, rendered.HTML)
}

// Render handles GET /landings/{slug_or_id}, the public, tracked view.
// Each render mints a new utm_id, exposed in X-UTM-ID.
func (h *LandingHandler) Render(w http.ResponseWriter, r *http.Request) {
	rendered, err := h.svc.Render(r.Context(), chi.URLParam(r, "slug_or_id"), requestMeta(r, ""))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("X-UTM-ID", rendered.UTMID)
	writeHTML(w, rendered.HTML)
}

func writeHTML(w http.ResponseWriter, html []byte) {
	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Content-Security-Policy", middleware.PageContentSecurityPolicy)
	h.Set("Content-Length", strconv.Itoa(len(html)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(html)
}
