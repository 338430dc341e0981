package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/resolveit/escalation-monitor/internal/domain"
	"github.com/resolveit/escalation-monitor/internal/poller"
)

type Metrics struct {
	Candidates      *prometheus.GaugeVec
	Refreshes       *prometheus.CounterVec
	RefreshDuration *prometheus.HistogramVec
	Actions         *prometheus.CounterVec
	NoticesSent     prometheus.Counter
	LastRefresh     prometheus.Gauge

	gatherer prometheus.Gatherer
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// New 注册所有指标，已经注册过的指标直接复用
func New(reg *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{gatherer: reg}
	var err error

	if m.Candidates, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "resolveit_escalation_candidates",
		Help: "Complaints requiring escalation in the latest applied snapshot",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if m.Refreshes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "resolveit_escalation_refreshes_total",
		Help: "Refreshes of the escalation list",
	}, []string{"trigger", "result"})); err != nil {
		return nil, err
	}
	if m.RefreshDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "resolveit_escalation_refresh_duration_seconds",
		Help:    "Duration of escalation list refreshes",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"trigger"})); err != nil {
		return nil, err
	}
	if m.Actions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "resolveit_escalation_actions_total",
		Help: "Escalation actions issued against the backend",
	}, []string{"type", "result"})); err != nil {
		return nil, err
	}
	if m.NoticesSent, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "resolveit_escalation_notices_sent_total",
		Help: "Escalation notices published to the mail queue",
	})); err != nil {
		return nil, err
	}
	if m.LastRefresh, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "resolveit_escalation_last_refresh_timestamp_seconds",
		Help: "Unix time of the latest applied snapshot",
	})); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) ObserveSnapshot(_, next domain.Snapshot) {
	m.Candidates.WithLabelValues("total").Set(float64(next.Stats.Total))
	m.Candidates.WithLabelValues("unassigned").Set(float64(next.Stats.Unassigned))
	m.Candidates.WithLabelValues("assigned").Set(float64(next.Stats.Assigned))
	m.Candidates.WithLabelValues("overdue").Set(float64(next.Stats.Overdue))
	m.LastRefresh.Set(float64(next.FetchedAt.Unix()))
}

func (m *Metrics) ObserveRefresh(res poller.Result) {
	trigger := "scheduled"
	if res.Manual {
		trigger = "manual"
	}

	result := "applied"
	switch {
	case res.Err != nil:
		result = "error"
	case !res.Applied:
		result = "stale"
	}

	m.Refreshes.WithLabelValues(trigger, result).Inc()
	m.RefreshDuration.WithLabelValues(trigger).Observe(res.Duration.Seconds())
}

func (m *Metrics) ObserveAction(action domain.EscalationAction) {
	result := "success"
	if !action.Succeeded {
		result = "failure"
	}
	m.Actions.WithLabelValues(string(action.Type), result).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
