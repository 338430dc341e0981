// Package notify publishes escalation notices to the mail queue when a
// refresh brings in new candidates or more overdue complaints.
package notify

import (
	"github.com/resolveit/escalation-monitor/internal/domain"
)

// BuildNotice 比较前后两次快照，返回需要发送的邮件类型和内容。
// 第一次拉取（之前没有任何数据）不发送通知
func BuildNotice(prev, next domain.Snapshot) (string, *domain.EscalationNoticeMailData, bool) {
	if prev.Seq == 0 && len(prev.Candidates) == 0 {
		return "", nil, false
	}

	known := make(map[domain.ID]struct{}, len(prev.Candidates))
	for _, c := range prev.Candidates {
		known[c.ID] = struct{}{}
	}

	added := make([]domain.EscalationCandidate, 0)
	for _, c := range next.Candidates {
		if _, ok := known[c.ID]; !ok {
			added = append(added, c)
		}
	}

	data := &domain.EscalationNoticeMailData{
		Stats:         next.Stats,
		PreviousStats: prev.Stats,
		NewCandidates: added,
		FetchedAt:     next.FetchedAt,
	}

	switch {
	case len(added) > 0:
		return domain.MailTypeNewCandidates, data, true
	case next.Stats.Overdue > prev.Stats.Overdue:
		return domain.MailTypeOverdueRising, data, true
	default:
		return "", nil, false
	}
}
