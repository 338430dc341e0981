package domain

import (
	"errors"
	"fmt"
	"strings"
)

type ComplaintStatus string

const (
	StatusNew         ComplaintStatus = "NEW"
	StatusUnderReview ComplaintStatus = "UNDER_REVIEW"
	StatusResolved    ComplaintStatus = "RESOLVED"
)

// ParseComplaintStatus 和后端一致：去掉空白并转为大写后再匹配
func ParseComplaintStatus(s string) (ComplaintStatus, error) {
	status := ComplaintStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case StatusNew, StatusUnderReview, StatusResolved:
		return status, nil
	}
	return "", fmt.Errorf("invalid status %q: valid statuses are NEW, UNDER_REVIEW, RESOLVED", s)
}

type Urgency string

const (
	UrgencyHigh   Urgency = "HIGH"
	UrgencyMedium Urgency = "MEDIUM"
	UrgencyNormal Urgency = "NORMAL"
	UrgencyLow    Urgency = "LOW"
)

var ErrEscalationDateMissing = errors.New("escalationDate must be set when escalatedTo is set")

type Complaint struct {
	ID          ID              `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Urgency     Urgency         `json:"urgency"`
	Status      ComplaintStatus `json:"status"`
	Anonymous   bool            `json:"anonymous"`
	IsPublic    bool            `json:"isPublic"`
	CreatedAt   *Timestamp      `json:"createdAt,omitempty"`
	UpdatedAt   *Timestamp      `json:"updatedAt,omitempty"`

	// 匿名投诉时为空
	UserID       *ID    `json:"userId,omitempty"`
	UserFullName string `json:"userFullName,omitempty"`

	AssignedEmployeeID   *ID    `json:"assignedEmployeeId,omitempty"`
	AssignedEmployeeName string `json:"assignedEmployeeName,omitempty"`

	EscalatedToID    *ID        `json:"escalatedToId,omitempty"`
	EscalatedToName  string     `json:"escalatedToName,omitempty"`
	EscalationReason *string    `json:"escalationReason,omitempty"`
	EscalationDate   *Timestamp `json:"escalationDate,omitempty"`

	LikeCount       int64 `json:"likeCount"`
	CommentCount    int64 `json:"commentCount"`
	AttachmentCount int64 `json:"attachmentCount"`

	DaysSinceCreation  int  `json:"daysSinceCreation"`
	RequiresEscalation bool `json:"requiresEscalation"`
}

func (c *Complaint) IsEscalated() bool {
	return c.EscalatedToID != nil && *c.EscalatedToID != ""
}

func (c *Complaint) ValidateEscalationFields() error {
	if c.IsEscalated() && (c.EscalationDate == nil || c.EscalationDate.IsZero()) {
		return ErrEscalationDateMissing
	}
	return nil
}

func (c *Complaint) EscalatedTo(userID ID) bool {
	return c.IsEscalated() && *c.EscalatedToID == userID
}

func (c *Complaint) AssignedTo(userID ID) bool {
	return c.AssignedEmployeeID != nil && *c.AssignedEmployeeID == userID
}

func (c *Complaint) SubmittedBy(userID ID) bool {
	return c.UserID != nil && *c.UserID == userID
}
