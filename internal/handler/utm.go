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

// AttributionService is the attribution API the UTM handlers need.
type AttributionService interface {
	GenerateLink(ctx context.Context, in service.GenerateLinkInput) (*service.GeneratedLink, error)
	TrackClick(ctx context.Context, in service.TrackClickInput) (*model.TrafficSource, error)
	ResolveRedirect(ctx context.Context, in service.TrackClickInput) (string, error)
	RecordConversion(ctx context.Context, ref service.ConversionRef, in service.ConversionInput) (*model.Conversion, error)
	ListSources(ctx context.Context, in service.ListSourcesInput) (*service.Page[*model.TrafficSource], error)
	GetSource(ctx context.Context, userID, utmID string) (*service.SourceDetail, error)
	ListConversions(ctx context.Context, in service.ListConversionsInput) (*service.Page[*model.Conversion], error)
}

// UTMHandler handles link generation, tracking and reporting.
type UTMHandler struct {
	svc    AttributionService
	logger *slog.Logger
}

// NewUTMHandler creates a new UTMHandler.
func NewUTMHandler(svc AttributionService, logger *slog.Logger) *UTMHandler {
	return &UTMHandler{svc: svc, logger: logger}
}

// Generate handles POST /utm/generate.
func (h *UTMHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req dto.GenerateLinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	link, err := h.svc.GenerateLink(r.Context(), service.GenerateLinkInput{
		UserID:     auth.UserID(r.Context()),
		Source:     req.Source,
		Medium:     req.Medium,
		Campaign:   req.Campaign,
		Content:    req.Content,
		Term:       req.Term,
		BaseURL:    req.BaseURL,
		LinkType:   req.LinkType,
		CreativeID: req.CreativeID,
		Influencer: req.Influencer.ToModel(),
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.GenerateLinkResponse{
		Success:         true,
		UTMLink:         link.URL,
		UTMID:           link.Source.UTMID,
		LinkType:        string(link.Source.LinkType),
		TrafficSourceID: link.Source.ID,
	})
}

// TrackClick handles POST /utm/track/click. Unauthenticated.
func (h *UTMHandler) TrackClick(w http.ResponseWriter, r *http.Request) {
	var req dto.TrackClickRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	src, err := h.svc.TrackClick(r.Context(), service.TrackClickInput{
		UTMID:       req.UTMID,
		LandingPage: req.LandingPage,
		RequestMeta: requestMeta(r, req.Referrer),
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TrackClickResponse{
		Success:    true,
		TrackingID: src.ID,
		Message:    "click tracked",
	})
}

// TrackConversion handles POST /utm/track/conversion. The source is
// referenced by traffic_source_id or utm_id, both within the caller's
// account.
func (h *UTMHandler) TrackConversion(w http.ResponseWriter, r *http.Request) {
	var req dto.ConversionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := auth.UserID(r.Context())
	ref := service.ByTrafficSource(req.TrafficSourceID, userID)
	if req.TrafficSourceID == "" && req.UTMID != "" {
		ref = service.ByOwnedUTMID(req.UTMID, userID)
	}

	conv, err := h.svc.RecordConversion(r.Context(), ref, conversionInput(req))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, conv)
}

// ListSources handles GET /utm/sources.
func (h *UTMHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	lq, err := parseListQuery(r)
	if err != nil {
		writeQueryError(w, err)
		return
	}

	q := r.URL.Query()
	page, err := h.svc.ListSources(r.Context(), service.ListSourcesInput{
		UserID:        auth.UserID(r.Context()),
		UTMSource:     q.Get("utm_source"),
		UTMCampaign:   q.Get("utm_campaign"),
		CreatedAfter:  lq.CreatedAfter,
		CreatedBefore: lq.CreatedBefore,
		Cursor:        lq.Cursor,
		Limit:         lq.Limit,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewListResponse(dto.ToSourceResponses(page.Items), page.NextCursor, page.HasMore))
}

// GetSource handles GET /utm/sources/{utm_id}.
func (h *UTMHandler) GetSource(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.GetSource(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "utm_id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	recent := detail.RecentConversions
	if recent == nil {
		recent = []*model.Conversion{}
	}
	writeJSON(w, http.StatusOK, dto.SourceDetailResponse{
		Source:            dto.ToSourceResponse(detail.Source),
		Summary:           detail.Summary,
		RecentConversions: recent,
	})
}

// ListConversions handles GET /utm/conversions.
func (h *UTMHandler) ListConversions(w http.ResponseWriter, r *http.Request) {
	lq, err := parseListQuery(r)
	if err != nil {
		writeQueryError(w, err)
		return
	}

	q := r.URL.Query()
	page, err := h.svc.ListConversions(r.Context(), service.ListConversionsInput{
		UserID:          auth.UserID(r.Context()),
		TrafficSourceID: q.Get("traffic_source_id"),
		UTMID:           q.Get("utm_id"),
		UTMSource:       q.Get("utm_source"),
		UTMCampaign:     q.Get("utm_campaign"),
		ConversionType:  q.Get("conversion_type"),
		CreatedAfter:    lq.CreatedAfter,
		CreatedBefore:   lq.CreatedBefore,
		Cursor:          lq.Cursor,
		Limit:           lq.Limit,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewListResponse(page.Items, page.NextCursor, page.HasMore))
}

// Redirect handles GET /r/{utm_id}: the click is tracked and the visitor
// sent on to the link's destination.
func (h *UTMHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	target, err := h.svc.ResolveRedirect(r.Context(), service.TrackClickInput{
		UTMID:       chi.URLParam(r, "utm_id"),
		RequestMeta: requestMeta(r, ""),
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=0")
	http.Redirect(w, r, target, http.StatusFound)
}

func conversionInput(req dto.ConversionRequest) service.ConversionInput {
	return service.ConversionInput{
		ConversionType: req.ConversionType,
		CustomerID:     req.CustomerID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		ProductID:      req.ProductID,
		ProductName:    req.ProductName,
		Metadata:       req.Metadata,
	}
}
