package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/resolveit/escalation-monitor/internal/access"
	"github.com/resolveit/escalation-monitor/internal/apiclient"
	"github.com/resolveit/escalation-monitor/internal/config"
	"github.com/resolveit/escalation-monitor/internal/domain"
	"github.com/resolveit/escalation-monitor/internal/tracker"
	"github.com/resolveit/escalation-monitor/internal/utils"
)

// Backend 直接转发给后端的只读请求和附件操作，*apiclient.Client 实现了这个接口
type Backend interface {
	GetComplaint(ctx context.Context, id domain.ID) (*domain.Complaint, error)
	EscalatedComplaints(ctx context.Context, all bool) ([]domain.Complaint, error)
	LoadDistribution(ctx context.Context) (*domain.LoadDistribution, error)
	SeniorEmployees(ctx context.Context) ([]domain.User, error)
	Health(ctx context.Context) (apiclient.HealthStatus, error)
	UploadAttachment(ctx context.Context, id domain.ID, filename string, content io.Reader) (apiclient.ActionResult, error)
	DownloadAttachment(ctx context.Context, id, attachmentID domain.ID) ([]byte, string, error)
}

// Refresher 手动刷新入口，*poller.Handle 实现了这个接口
type Refresher interface {
	RefreshNow(ctx context.Context) (domain.Snapshot, bool, error)
}

// History 快照和操作记录，没有配置数据库时为 nil
type History interface {
	GetRecentSnapshots(limit int) ([]*domain.SnapshotRecord, error)
	GetRecentActions(limit int) ([]*domain.EscalationAction, error)
}

type Handler struct {
	validate   *validator.Validate
	config     *config.Config
	translator ut.Translator
	tracker    *tracker.Tracker
	backend    Backend
	refresher  Refresher
	history    History
	metrics    http.Handler

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, tr *tracker.Tracker, backend Backend, refresher Refresher, history History, metrics http.Handler) (*Handler, error) {
	validate, trans, err := utils.NewValidator()
	if err != nil {
		return nil, err
	}

	return &Handler{
		validate:   validate,
		config:     cfg,
		translator: trans,
		tracker:    tr,
		backend:    backend,
		refresher:  refresher,
		history:    history,
		metrics:    metrics,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	h.Mux.Get("/health", h.Health)
	if h.metrics != nil {
		h.Mux.Method(http.MethodGet, "/metrics", h.metrics)
	}

	// 以下 API 需要携带 X-API-Key；没有配置密钥时只开放只读接口
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.apiKey)

		r.Route("/escalations", func(r chi.Router) {
			r.Get("/", h.GetEscalations)
			r.Get("/stats", h.GetEscalationStats)
			r.Get("/escalated", h.GetEscalatedComplaints)
			r.Post("/refresh", h.RefreshEscalations)
			r.With(h.RequiredCapability(access.CanTriggerAutoEscalation)).Post("/trigger", h.TriggerAutoEscalation)
			r.Get("/history", h.GetSnapshotHistory)
			r.Get("/actions", h.GetActionHistory)
		})

		r.Route("/complaints/{id}", func(r chi.Router) {
			r.Use(h.complaint)
			r.Get("/", h.GetComplaint)
			r.Post("/escalate", h.EscalateComplaint)
			r.Post("/deescalate", h.DeescalateComplaint)
			r.Put("/status", h.UpdateComplaintStatus)
			r.Post("/attachments", h.UploadAttachment)
			r.Get("/attachments/{attachmentId}", h.DownloadAttachment)
		})

		r.With(h.RequiredCapability(access.CanViewLoadDistribution)).Get("/load-distribution", h.GetLoadDistribution)
		r.Get("/senior-employees", h.GetSeniorEmployees)
	})
}
