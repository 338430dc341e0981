package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/resolveit/escalation-monitor/internal/access"
	"github.com/resolveit/escalation-monitor/internal/domain"
	"github.com/resolveit/escalation-monitor/internal/tracker"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

type escalationsView struct {
	Seq          uint64                       `json:"seq"`
	FetchedAt    time.Time                    `json:"fetchedAt"`
	Candidates   []domain.EscalationCandidate `json:"candidates"`
	Stats        domain.EscalationStats       `json:"stats"`
	OverdueDays  int                          `json:"overdueDays"`
	LastMessage  *tracker.Message             `json:"lastMessage"`
	Capabilities access.Capabilities          `json:"capabilities"`
}

// view 按当前用户角色筛选列表；不能查看全部时统计也只针对筛选后的列表
func (h *Handler) view(snapshot domain.Snapshot) escalationsView {
	actor := h.tracker.Actor()
	caps := access.Evaluate(actor.Role, actor.UserID, nil)

	v := escalationsView{
		Seq:          snapshot.Seq,
		FetchedAt:    snapshot.FetchedAt,
		Candidates:   access.FilterCandidates(actor.Role, actor.UserID, snapshot.Candidates),
		Stats:        snapshot.Stats,
		OverdueDays:  h.tracker.OverdueDays(),
		Capabilities: caps,
	}
	if !caps.CanSeeAllEscalations {
		v.Stats = domain.ComputeStats(v.Candidates, v.OverdueDays)
	}
	if msg := h.tracker.LastMessage(); msg.Text != "" {
		v.LastMessage = &msg
	}
	return v
}

func (h *Handler) GetEscalations(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, "Escalation candidates", h.view(h.tracker.Snapshot()))
}

func (h *Handler) GetEscalationStats(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, "Escalation stats", h.view(h.tracker.Snapshot()).Stats)
}

func (h *Handler) GetEscalatedComplaints(w http.ResponseWriter, r *http.Request) {
	actor := h.tracker.Actor()
	caps := access.Evaluate(actor.Role, actor.UserID, nil)

	if !access.CanViewEscalated(actor).Allowed {
		h.successResponse(w, r, "Escalated complaints", []domain.Complaint{})
		return
	}

	complaints, err := h.backend.EscalatedComplaints(r.Context(), caps.CanSeeAllEscalations)
	if err != nil {
		h.upstreamError(w, r, err)
		return
	}

	h.successResponse(w, r, "Escalated complaints", access.FilterVisible(actor.Role, actor.UserID, complaints))
}

func (h *Handler) RefreshEscalations(w http.ResponseWriter, r *http.Request) {
	snapshot, applied, err := h.refresher.RefreshNow(r.Context())
	if err != nil {
		h.upstreamError(w, r, err)
		return
	}

	msg := "Escalation list refreshed"
	if !applied {
		// 被更新的请求覆盖，返回当前持有的快照
		msg = "A newer refresh is already applied"
	}
	h.successResponse(w, r, msg, h.view(snapshot))
}

func (h *Handler) TriggerAutoEscalation(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.tracker.TriggerAutoEscalation(r.Context())
	if err != nil {
		h.upstreamError(w, r, err)
		return
	}

	msg := h.tracker.LastMessage().Text
	if msg == "" {
		msg = "Auto-escalation triggered"
	}
	h.successResponse(w, r, msg, h.view(snapshot))
}

func (h *Handler) historyLimit(r *http.Request) (int, bool) {
	param := r.URL.Query().Get("limit")
	if param == "" {
		return defaultHistoryLimit, true
	}

	limit, err := strconv.Atoi(param)
	if err != nil || limit <= 0 {
		return 0, false
	}
	return min(limit, maxHistoryLimit), true
}

func (h *Handler) GetSnapshotHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.errorResponse(w, r, "History is not enabled")
		return
	}
	limit, ok := h.historyLimit(r)
	if !ok {
		h.errorResponse(w, r, "limit must be a positive integer")
		return
	}

	records, err := h.history.GetRecentSnapshots(limit)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "Snapshot history", records)
}

func (h *Handler) GetActionHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.errorResponse(w, r, "History is not enabled")
		return
	}
	limit, ok := h.historyLimit(r)
	if !ok {
		h.errorResponse(w, r, "limit must be a positive integer")
		return
	}

	actions, err := h.history.GetRecentActions(limit)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "Action history", actions)
}
