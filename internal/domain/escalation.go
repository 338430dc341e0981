package domain

import (
	"encoding/json"
	"time"
)

// UnassignedSentinel 后端在 assignedTo 字段上用这个字面量表示未分配
const UnassignedSentinel = "Unassigned"

type EscalationCandidate struct {
	ID                 ID              `json:"id"`
	Title              string          `json:"title"`
	Category           string          `json:"category"`
	Urgency            Urgency         `json:"urgency"`
	Status             ComplaintStatus `json:"status"`
	AssignedTo         *string         `json:"assignedTo"`
	AssignedEmployeeID *ID             `json:"assignedEmployeeId,omitempty"`
	EscalatedToID      *ID             `json:"escalatedToId,omitempty"`
	DaysOpen           int             `json:"daysOpen"`
	CreatedAt          *Timestamp      `json:"createdAt,omitempty"`
}

// UnmarshalJSON 部分后端版本用 daysSinceCreation 表示同一个概念，这里合并到 DaysOpen
func (c *EscalationCandidate) UnmarshalJSON(data []byte) error {
	type alias EscalationCandidate
	aux := struct {
		*alias
		DaysSinceCreation *int    `json:"daysSinceCreation"`
		AssignedEmployee  *string `json:"assignedEmployeeName"`
		// 直接返回实体时，负责人和升级对象是嵌套的用户对象
		AssignedEmployeeObj *User `json:"assignedEmployee"`
		EscalatedToObj      *User `json:"escalatedTo"`
	}{alias: (*alias)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.DaysSinceCreation != nil && *aux.DaysSinceCreation > c.DaysOpen {
		c.DaysOpen = *aux.DaysSinceCreation
	}
	if c.AssignedTo == nil && aux.AssignedEmployee != nil {
		c.AssignedTo = aux.AssignedEmployee
	}
	if obj := aux.AssignedEmployeeObj; obj != nil {
		if c.AssignedTo == nil {
			c.AssignedTo = &obj.FullName
		}
		if c.AssignedEmployeeID == nil && obj.ID != "" {
			c.AssignedEmployeeID = &obj.ID
		}
	}
	if obj := aux.EscalatedToObj; obj != nil && c.EscalatedToID == nil && obj.ID != "" {
		c.EscalatedToID = &obj.ID
	}
	return nil
}

func (c *EscalationCandidate) IsUnassigned() bool {
	return c.AssignedTo == nil || *c.AssignedTo == "" || *c.AssignedTo == UnassignedSentinel
}

type EscalationStats struct {
	Total      int `json:"total"`
	Unassigned int `json:"unassigned"`
	Assigned   int `json:"assigned"`
	Overdue    int `json:"overdue"`
}

func ComputeStats(candidates []EscalationCandidate, overdueDays int) EscalationStats {
	stats := EscalationStats{Total: len(candidates)}
	for i := range candidates {
		if candidates[i].IsUnassigned() {
			stats.Unassigned++
		} else {
			stats.Assigned++
		}
		if candidates[i].DaysOpen >= overdueDays {
			stats.Overdue++
		}
	}
	return stats
}

type Snapshot struct {
	Seq        uint64                `json:"seq"`
	FetchedAt  time.Time             `json:"fetchedAt"`
	Candidates []EscalationCandidate `json:"candidates"`
	Stats      EscalationStats       `json:"stats"`
}

type SeniorLoad struct {
	ID             ID      `json:"id"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	EscalatedCount int     `json:"escalatedCount"`
	AssignedCount  int     `json:"assignedCount"`
	TotalLoad      int     `json:"totalLoad"`
	ResolutionRate float64 `json:"resolutionRate"`
	TotalHandled   int     `json:"totalHandled"`
	ResolvedCount  int     `json:"resolvedCount"`
}

type LoadDistribution struct {
	SeniorEmployees            []SeniorLoad `json:"seniorEmployees"`
	TotalSeniorEmployees       int          `json:"totalSeniorEmployees"`
	TotalEscalatedComplaints   int          `json:"totalEscalatedComplaints"`
	EscalationThresholdMinutes int          `json:"escalationThresholdMinutes"`
	Timestamp                  string       `json:"timestamp"`
}

type ActionType string

const (
	ActionTriggerAuto  ActionType = "trigger_auto"
	ActionEscalate     ActionType = "escalate"
	ActionDeescalate   ActionType = "deescalate"
	ActionUpdateStatus ActionType = "update_status"
)

// EscalationAction 通过本工具发起的一次操作，用于审计
type EscalationAction struct {
	ID          int64      `json:"id"`
	Type        ActionType `json:"type"`
	ComplaintID ID         `json:"complaintId,omitempty"`
	ActorID     ID         `json:"actorId"`
	Detail      string     `json:"detail"`
	Succeeded   bool       `json:"succeeded"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// SnapshotRecord 保存到数据库的快照历史，投诉只保留 ID
type SnapshotRecord struct {
	ID           int64           `json:"id"`
	Seq          uint64          `json:"seq"`
	Stats        EscalationStats `json:"stats"`
	CandidateIDs []ID            `json:"candidateIds"`
	FetchedAt    time.Time       `json:"fetchedAt"`
	CreatedAt    time.Time       `json:"createdAt"`
}
