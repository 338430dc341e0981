package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/resolveit/escalation-monitor/internal/access"
	"github.com/resolveit/escalation-monitor/internal/domain"
	"github.com/resolveit/escalation-monitor/internal/tracker"
)

type complaintView struct {
	Complaint    *domain.Complaint   `json:"complaint"`
	Capabilities access.Capabilities `json:"capabilities"`
}

func (h *Handler) complaintView(c *domain.Complaint) complaintView {
	actor := h.tracker.Actor()
	return complaintView{
		Complaint:    c,
		Capabilities: access.Evaluate(actor.Role, actor.UserID, c),
	}
}

// actionMessage 优先使用后端返回的提示
func (h *Handler) actionMessage(fallback string) string {
	if msg := h.tracker.LastMessage(); msg.Text != "" && !msg.IsError {
		return msg.Text
	}
	return fallback
}

// actionDone 操作被后端确认但重新拉取失败时仍然返回成功，此时 complaint 为空
func (h *Handler) actionDone(w http.ResponseWriter, r *http.Request, updated *domain.Complaint, err error, fallback string) {
	switch {
	case err == nil:
		h.successResponse(w, r, h.actionMessage(fallback), h.complaintView(updated))
	case errors.Is(err, tracker.ErrRefetchFailed):
		slog.Warn("操作成功但无法重新拉取投诉", "path", r.URL.Path, "error", err)
		h.successResponse(w, r, h.actionMessage(fallback), h.complaintView(nil))
	default:
		h.upstreamError(w, r, err)
	}
}

func (h *Handler) GetComplaint(w http.ResponseWriter, r *http.Request) {
	complaint := r.Context().Value(ComplaintCtx).(*domain.Complaint)
	h.successResponse(w, r, "Complaint", h.complaintView(complaint))
}

func (h *Handler) EscalateComplaint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SeniorEmployeeID domain.ID `json:"seniorEmployeeId" validate:"required"`
		Reason           string    `json:"reason" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.errorResponse(w, r, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	complaint := r.Context().Value(ComplaintCtx).(*domain.Complaint)
	if denied := access.CanEscalate(h.tracker.Actor(), complaint); !denied.Allowed {
		h.errorResponse(w, r, denied.Reason)
		return
	}

	updated, err := h.tracker.Escalate(r.Context(), complaint.ID, req.SeniorEmployeeID, req.Reason)
	h.actionDone(w, r, updated, err, "Complaint escalated")
}

func (h *Handler) DeescalateComplaint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.errorResponse(w, r, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	complaint := r.Context().Value(ComplaintCtx).(*domain.Complaint)
	updated, err := h.tracker.Deescalate(r.Context(), complaint, req.Reason)
	h.actionDone(w, r, updated, err, "Complaint de-escalated")
}

func (h *Handler) UpdateComplaintStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status       string `json:"status" validate:"required"`
		Comment      string `json:"comment"`
		InternalNote bool   `json:"internalNote"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.errorResponse(w, r, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	complaint := r.Context().Value(ComplaintCtx).(*domain.Complaint)
	updated, err := h.tracker.UpdateStatus(r.Context(), complaint, req.Status, req.Comment, req.InternalNote)
	h.actionDone(w, r, updated, err, "Complaint status updated")
}
