package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/klbk90/creative-optimizer-sub001/internal/auth"
	"github.com/klbk90/creative-optimizer-sub001/internal/handler/dto"
	"github.com/klbk90/creative-optimizer-sub001/internal/model"
	"github.com/klbk90/creative-optimizer-sub001/internal/service"
)

// CatalogService is the creative and influencer API the handlers need.
type CatalogService interface {
	CreateCreative(ctx context.Context, in service.CreateCreativeInput) (*model.Creative, error)
	GetCreative(ctx context.Context, id, userID string) (*model.Creative, error)
	ListCreatives(ctx context.Context, in service.ListCreativesInput) (*service.Page[*model.Creative], error)
	ArchiveCreative(ctx context.Context, id, userID string) error
	CreateInfluencer(ctx context.Context, in service.CreateInfluencerInput) (*model.Influencer, error)
	ListInfluencers(ctx context.Context, in service.ListInfluencersInput) (*service.Page[*model.Influencer], error)
	UpdateInfluencerStatus(ctx context.Context, id, userID, status string) (*model.Influencer, error)
}

// CatalogHandler handles creatives and influencers.
type CatalogHandler struct {
	svc    CatalogService
	logger *slog.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(svc CatalogService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{svc: svc, logger: logger}
}

// CreateCreative handles POST /creatives.
func (h *CatalogHandler) CreateCreative(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateCreativeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.svc.CreateCreative(r.Context(), service.CreateCreativeInput{
		UserID:       auth.UserID(r.Context()),
		Name:         req.Name,
		CreativeType: req.CreativeType,
		MediaURL:     req.MediaURL,
		Hook:         req.Hook,
		Angle:        req.Angle,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

// GetCreative handles GET /creatives/{id}.
func (h *CatalogHandler) GetCreative(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetCreative(r.Context(), chi.URLParam(r, "id"), auth.UserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// ListCreatives handles GET /creatives.
func (h *CatalogHandler) ListCreatives(w http.ResponseWriter, r *http.Request) {
	lq, err := parseListQuery(r)
	if err != nil {
		writeQueryError(w, err)
		return
	}

	q := r.URL.Query()
	page, err := h.svc.ListCreatives(r.Context(), service.ListCreativesInput{
		UserID:       auth.UserID(r.Context()),
		CreativeType: q.Get("creative_type"),
		Status:       q.Get("status"),
		Cursor:       lq.Cursor,
		Limit:        lq.Limit,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewListResponse(page.Items, page.NextCursor, page.HasMore))
}

// ArchiveCreative handles DELETE /creatives/{id}. Creatives are archived,
// not removed, so traffic sources keep their reference.
func (h *CatalogHandler) ArchiveCreative(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ArchiveCreative(r.Context(), chi.URLParam(r, "id"), auth.UserID(r.Context())); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreateInfluencer handles POST /influencers.
func (h *CatalogHandler) CreateInfluencer(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateInfluencerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inf, err := h.svc.CreateInfluencer(r.Context(), service.CreateInfluencerInput{
		UserID:         auth.UserID(r.Context()),
		Handle:         req.Handle,
		Platform:       req.Platform,
		Email:          req.Email,
		Followers:      req.Followers,
		EngagementRate: req.EngagementRate,
		FunnelStatus:   req.FunnelStatus,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToInfluencerResponse(inf))
}

// ListInfluencers handles GET /influencers.
func (h *CatalogHandler) ListInfluencers(w http.ResponseWriter, r *http.Request) {
	lq, err := parseListQuery(r)
	if err != nil {
		writeQueryError(w, err)
		return
	}

	q := r.URL.Query()
	page, err := h.svc.ListInfluencers(r.Context(), service.ListInfluencersInput{
		UserID:       auth.UserID(r.Context()),
		Platform:     q.Get("platform"),
		FunnelStatus: q.Get("funnel_status"),
		Cursor:       lq.Cursor,
		Limit:        lq.Limit,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewListResponse(dto.ToInfluencerResponses(page.Items), page.NextCursor, page.HasMore))
}

// UpdateInfluencerStatus handles PATCH /influencers/{id}/status.
func (h *CatalogHandler) UpdateInfluencerStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateFunnelStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inf, err := h.svc.UpdateInfluencerStatus(r.Context(), chi.URLParam(r, "id"), auth.UserID(r.Context()), req.FunnelStatus)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToInfluencerResponse(inf))
}
