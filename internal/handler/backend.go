package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/resolveit/escalation-monitor/internal/domain"
	"github.com/resolveit/escalation-monitor/internal/tracker"
)

const maxUploadSize = 10 << 20

type healthView struct {
	Status      string    `json:"status"`
	Backend     string    `json:"backend"`
	BackendNote string    `json:"backendNote,omitempty"`
	LastRefresh time.Time `json:"lastRefresh"`
	Detached    bool      `json:"detached"`
}

// Health 后端不可用时本地服务仍然返回成功，只在 backend 字段中体现
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	v := healthView{
		Status:      "UP",
		LastRefresh: h.tracker.Snapshot().FetchedAt,
		Detached:    h.tracker.Detached(),
	}

	status, err := h.backend.Health(r.Context())
	switch {
	case err != nil:
		v.Backend = "UNREACHABLE"
		v.BackendNote = tracker.UserMessage(err)
	case status.Status == "":
		v.Backend = "UNKNOWN"
	default:
		v.Backend = status.Status
	}

	h.successResponse(w, r, "OK", v)
}

func (h *Handler) GetLoadDistribution(w http.ResponseWriter, r *http.Request) {
	dist, err := h.backend.LoadDistribution(r.Context())
	if err != nil {
		h.upstreamError(w, r, err)
		return
	}

	h.successResponse(w, r, "Load distribution", dist)
}

func (h *Handler) GetSeniorEmployees(w http.ResponseWriter, r *http.Request) {
	users, err := h.backend.SeniorEmployees(r.Context())
	if err != nil {
		h.upstreamError(w, r, err)
		return
	}

	h.successResponse(w, r, "Senior employees", users)
}

func (h *Handler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		h.errorResponse(w, r, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorResponse(w, r, "file is a required field")
		return
	}
	defer file.Close()

	complaint := r.Context().Value(ComplaintCtx).(*domain.Complaint)
	res, err := h.backend.UploadAttachment(r.Context(), complaint.ID, header.Filename, file)
	if err != nil {
		h.upstreamError(w, r, err)
		return
	}

	msg := res.Message
	if msg == "" {
		msg = "Attachment uploaded"
	}
	h.successResponse(w, r, msg, nil)
}

func (h *Handler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	attachmentID := strings.TrimSpace(chi.URLParam(r, "attachmentId"))
	if attachmentID == "" {
		h.errorResponse(w, r, "Invalid attachment ID")
		return
	}

	complaint := r.Context().Value(ComplaintCtx).(*domain.Complaint)
	data, contentType, err := h.backend.DownloadAttachment(r.Context(), complaint.ID, domain.ID(attachmentID))
	if err != nil {
		h.upstreamError(w, r, err)
		return
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logInternalServerError(r, err)
	}
}
