package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/visitor-desk/internal/application"
	"github.com/example/visitor-desk/internal/metrics"
)

// CheckInService is the part of the visitor lifecycle the kiosk drives.
type CheckInService interface {
	CheckInWithToken(ctx context.Context, code string) (application.Visitor, error)
	CheckOut(ctx context.Context, id string) (application.Visitor, error)
	ResetScans()
}

// KioskHandler serves scan, check-in and check-out requests.
type KioskHandler struct {
	visitors  CheckInService
	metrics   *metrics.Registry
	logger    *slog.Logger
	responder responder
}

// NewKioskHandler constructs a KioskHandler.
func NewKioskHandler(visitors CheckInService, registry *metrics.Registry, logger *slog.Logger) *KioskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &KioskHandler{
		visitors:  visitors,
		metrics:   registry,
		logger:    logger,
		responder: newResponder(logger),
	}
}

type scanRequest struct {
	Code string `json:"code"`
}

type visitorDTO struct {
	ID           string     `json:"id"`
	FullName     string     `json:"full_name"`
	Company      string     `json:"company,omitempty"`
	HostID       string     `json:"host_id,omitempty"`
	BadgeID      string     `json:"badge_id,omitempty"`
	Status       string     `json:"status"`
	CheckInTime  *time.Time `json:"check_in_time,omitempty"`
	CheckOutTime *time.Time `json:"check_out_time,omitempty"`
}

type visitorResponse struct {
	Message string     `json:"message"`
	Visitor visitorDTO `json:"visitor"`
}

func toVisitorDTO(v application.Visitor) visitorDTO {
	return visitorDTO{
		ID:           v.ID,
		FullName:     v.FullName,
		Company:      v.Company,
		HostID:       v.HostID,
		BadgeID:      v.BadgeID,
		Status:       string(v.Status),
		CheckInTime:  v.CheckInTime,
		CheckOutTime: v.CheckOutTime,
	}
}

// Scan checks in the visitor embedded in the posted code.
func (h *KioskHandler) Scan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req scanRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16*1024)).Decode(&req); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errMissingCode)
		return
	}
	h.checkIn(w, r, "Scan", code)
}

// CheckIn serves the URL carried by the code itself.
func (h *KioskHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	id, ok := VisitorIDFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidVisitor)
		return
	}
	h.checkIn(w, r, "CheckIn", "/visitors/"+url.PathEscape(id)+"/check-in")
}

func (h *KioskHandler) checkIn(w http.ResponseWriter, r *http.Request, operation, code string) {
	ctx := r.Context()
	visitor, err := h.visitors.CheckInWithToken(ctx, code)
	if err != nil {
		h.metrics.ObserveScan(application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.metrics.ObserveScan("checked_in")
	handlerLogger(ctx, h.logger, "KioskHandler", operation, "visitor_id", visitor.ID).InfoContext(ctx, "visitor checked in at kiosk")
	h.responder.writeJSON(ctx, w, http.StatusOK, visitorResponse{
		Message: "Check-in successful",
		Visitor: toVisitorDTO(visitor),
	})
}

// CheckOut records the visitor in the path leaving the premises.
func (h *KioskHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := VisitorIDFromContext(ctx)
	if !ok {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errInvalidVisitor)
		return
	}
	visitor, err := h.visitors.CheckOut(ctx, id)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	handlerLogger(ctx, h.logger, "KioskHandler", "CheckOut", "visitor_id", visitor.ID).InfoContext(ctx, "visitor checked out at kiosk")
	h.responder.writeJSON(ctx, w, http.StatusOK, visitorResponse{
		Message: "Check-out successful",
		Visitor: toVisitorDTO(visitor),
	})
}

// ResetScans starts a new scanning session.
func (h *KioskHandler) ResetScans(w http.ResponseWriter, r *http.Request) {
	h.visitors.ResetScans()
	handlerLogger(r.Context(), h.logger, "KioskHandler", "ResetScans").InfoContext(r.Context(), "scan session reset")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Health answers liveness probes.
func (h *KioskHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}
