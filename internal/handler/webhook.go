package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/klbk90/creative-optimizer-sub001/internal/handler/dto"
	"github.com/klbk90/creative-optimizer-sub001/internal/middleware"
	"github.com/klbk90/creative-optimizer-sub001/internal/service"
	"github.com/klbk90/creative-optimizer-sub001/internal/webhook"
)

// WebhookHandler accepts conversion callbacks from external systems such
// as the Telegram bot backend.
type WebhookHandler struct {
	svc      AttributionService
	verifier *webhook.Verifier
	logger   *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler. A nil or secretless verifier
// accepts unsigned callbacks.
func NewWebhookHandler(svc AttributionService, verifier *webhook.Verifier, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{svc: svc, verifier: verifier, logger: logger}
}

// Conversion handles POST /utm/webhook/conversion. The source is
// referenced by utm_id.
func (h *WebhookHandler) Conversion(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "could not read request body")
		return
	}

	if err := h.verifier.Verify(r.Header, body); err != nil {
		h.logger.Warn("webhook_signature_rejected",
			"reason", err.Error(),
			"ip", middleware.ClientIP(r),
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "invalid webhook signature")
		return
	}

	var req dto.ConversionRequest
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	if req.UTMID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_UTM_ID", "utm_id is required")
		return
	}

	conv, err := h.svc.RecordConversion(r.Context(), service.ByUTMID(req.UTMID), conversionInput(req))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, conv)
}
