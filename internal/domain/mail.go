package domain

import "time"

const (
	MailTypeNewCandidates = "new_candidates"
	MailTypeOverdueRising = "overdue_rising"
)

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

// EscalationNoticeMailData 新出现需要升级的投诉或逾期数量上升时发送
type EscalationNoticeMailData struct {
	Stats         EscalationStats       `json:"stats"`
	PreviousStats EscalationStats       `json:"previousStats"`
	NewCandidates []EscalationCandidate `json:"newCandidates"`
	FetchedAt     time.Time             `json:"fetchedAt"`
	DashboardURL  string                `json:"dashboardUrl"`
}
