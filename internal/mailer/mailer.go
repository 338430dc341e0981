// Package mailer turns queued mail messages into go-mail messages.
package mailer

import (
	"encoding/json"
	"fmt"
	"html/template"
	"path/filepath"

	"github.com/resolveit/escalation-monitor/internal/domain"
	"github.com/wneessen/go-mail"
)

type Composer struct {
	from        string
	templateDir string
}

func NewComposer(from, templateDir string) *Composer {
	return &Composer{from: from, templateDir: templateDir}
}

// Compose 解析队列中的消息并生成邮件，返回错误时消息不应重新入队
func (c *Composer) Compose(body []byte) (*mail.Msg, error) {
	var message struct {
		Type string          `json:"type"`
		To   string          `json:"to"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &message); err != nil {
		return nil, fmt.Errorf("decode mail message: %w", err)
	}

	msg := mail.NewMsg()
	if err := msg.From(c.from); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(message.To); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}

	// 根据邮件类型解析数据
	switch message.Type {
	case domain.MailTypeNewCandidates, domain.MailTypeOverdueRising:
		data := domain.EscalationNoticeMailData{}
		if err := json.Unmarshal(message.Data, &data); err != nil {
			return nil, fmt.Errorf("decode notice data: %w", err)
		}

		tmpl, err := template.ParseFiles(filepath.Join(c.templateDir, "escalation_notice.html"))
		if err != nil {
			return nil, err
		}
		if err := msg.SetBodyHTMLTemplate(tmpl, data); err != nil {
			return nil, err
		}
		msg.Subject(subject(message.Type, data))
	default:
		return nil, fmt.Errorf("unsupported mail type %q", message.Type)
	}

	return msg, nil
}

func subject(mailType string, data domain.EscalationNoticeMailData) string {
	if mailType == domain.MailTypeNewCandidates {
		return fmt.Sprintf("ResolveIt - %d new complaint(s) require escalation", len(data.NewCandidates))
	}
	return fmt.Sprintf("ResolveIt - overdue complaints: %d", data.Stats.Overdue)
}
