package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/resolveit/escalation-monitor/internal/domain"
)

// Channel *amqp.Channel 满足这个接口
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Publisher struct {
	ch           Channel
	queue        string
	recipients   []string
	timeout      time.Duration
	dashboardURL string
	logger       *slog.Logger
	sent         prometheus.Counter
}

type Option func(*Publisher)

func WithDashboardURL(url string) Option {
	return func(p *Publisher) {
		p.dashboardURL = url
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithSentCounter 每成功投递一封邮件计数一次
func WithSentCounter(c prometheus.Counter) Option {
	return func(p *Publisher) {
		p.sent = c
	}
}

func NewPublisher(ch Channel, queue string, recipients []string, timeout time.Duration, opts ...Option) *Publisher {
	p := &Publisher{
		ch:         ch,
		queue:      queue,
		recipients: recipients,
		timeout:    timeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Notify 可以直接注册为 tracker 的 OnApply 回调，投递失败只记录日志
func (p *Publisher) Notify(prev, next domain.Snapshot) {
	mailType, data, ok := BuildNotice(prev, next)
	if !ok {
		return
	}
	data.DashboardURL = p.dashboardURL

	if err := p.Publish(context.Background(), mailType, data); err != nil {
		p.logger.Error("无法发送升级通知", "type", mailType, "error", err)
	}
}

func (p *Publisher) Publish(ctx context.Context, mailType string, data *domain.EscalationNoticeMailData) error {
	for _, to := range p.recipients {
		mailMessage := domain.MailMessage{
			Type: mailType,
			To:   to,
			Data: data,
		}

		body, err := json.Marshal(mailMessage)
		if err != nil {
			return err
		}

		publishCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err = p.ch.PublishWithContext(
			publishCtx,
			"",
			p.queue,
			true,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Timestamp:    data.FetchedAt,
				Body:         body,
			},
		)
		cancel()
		if err != nil {
			return fmt.Errorf("publish to %s: %w", to, err)
		}

		if p.sent != nil {
			p.sent.Inc()
		}
		p.logger.Info("已发送升级通知", "type", mailType, "to", to, "new", len(data.NewCandidates), "overdue", data.Stats.Overdue)
	}
	return nil
}
