package access

import (
	"testing"
	"time"

	"github.com/resolveit/escalation-monitor/internal/domain"
	"github.com/stretchr/testify/assert"
)

var fixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func idPtr(id domain.ID) *domain.ID { return &id }

func escalatedTo(id domain.ID) *domain.Complaint {
	return &domain.Complaint{
		ID:             "7",
		Status:         domain.StatusUnderReview,
		EscalatedToID:  idPtr(id),
		EscalationDate: domain.NewTimestamp(fixedTime),
	}
}

func TestCanDeescalate_Matrix(t *testing.T) {
	tests := []struct {
		name        string
		role        domain.Role
		owner       bool
		wantAllowed bool
	}{
		{"admin owner", domain.RoleAdmin, true, true},
		{"admin not owner", domain.RoleAdmin, false, true},
		{"senior owner", domain.RoleSeniorEmployee, true, true},
		{"senior not owner", domain.RoleSeniorEmployee, false, false},
		{"employee owner", domain.RoleEmployee, true, false},
		{"employee not owner", domain.RoleEmployee, false, false},
		{"user owner", domain.RoleUser, true, false},
		{"user not owner", domain.RoleUser, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := domain.ID("sen-42")
			if !tt.owner {
				target = "sen-1"
			}

			result := CanDeescalate(Actor{Role: tt.role, UserID: "sen-42"}, escalatedTo(target))
			assert.Equal(t, tt.wantAllowed, result.Allowed)
			if !tt.wantAllowed {
				assert.NotEmpty(t, result.Reason)
				assert.Error(t, result.Error())
			}

			caps := Evaluate(tt.role, "sen-42", escalatedTo(target))
			assert.Equal(t, tt.wantAllowed, caps.CanDeescalate)
		})
	}
}

func TestCanDeescalate_NotEscalated(t *testing.T) {
	result := CanDeescalate(Actor{Role: domain.RoleAdmin, UserID: "1"}, &domain.Complaint{ID: "7"})
	assert.False(t, result.Allowed)
	assert.Equal(t, "Complaint is not escalated", result.Reason)
}

func TestCanEscalate(t *testing.T) {
	open := &domain.Complaint{ID: "7", Status: domain.StatusNew}
	resolved := &domain.Complaint{ID: "8", Status: domain.StatusResolved}

	tests := []struct {
		name        string
		role        domain.Role
		complaint   *domain.Complaint
		wantAllowed bool
		wantReason  string
	}{
		{"admin open", domain.RoleAdmin, open, true, ""},
		{"senior open", domain.RoleSeniorEmployee, open, true, ""},
		{"employee open", domain.RoleEmployee, open, false, "Only admins and senior employees can escalate complaints"},
		{"user open", domain.RoleUser, open, false, "Only admins and senior employees can escalate complaints"},
		{"admin resolved", domain.RoleAdmin, resolved, false, "Complaint 8 is already resolved"},
		{"admin escalated", domain.RoleAdmin, escalatedTo("sen-42"), false, "Complaint 7 is already escalated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanEscalate(Actor{Role: tt.role, UserID: "1"}, tt.complaint)
			assert.Equal(t, tt.wantAllowed, result.Allowed)
			assert.Equal(t, tt.wantReason, result.Reason)
		})
	}
}

func TestCanUpdateStatus(t *testing.T) {
	me := domain.ID("5")
	other := domain.ID("6")

	tests := []struct {
		name        string
		role        domain.Role
		complaint   domain.Complaint
		wantAllowed bool
	}{
		{"admin any", domain.RoleAdmin, domain.Complaint{}, true},
		{"senior escalated to me", domain.RoleSeniorEmployee, domain.Complaint{EscalatedToID: &me}, true},
		{"senior assigned to me", domain.RoleSeniorEmployee, domain.Complaint{AssignedEmployeeID: &me}, true},
		{"senior unrelated", domain.RoleSeniorEmployee, domain.Complaint{EscalatedToID: &other, AssignedEmployeeID: &other}, false},
		{"employee assigned to me", domain.RoleEmployee, domain.Complaint{AssignedEmployeeID: &me}, true},
		{"employee escalated to me", domain.RoleEmployee, domain.Complaint{EscalatedToID: &me}, false},
		{"user own", domain.RoleUser, domain.Complaint{UserID: &me}, true},
		{"user own anonymous", domain.RoleUser, domain.Complaint{UserID: &me, Anonymous: true}, false},
		{"user other", domain.RoleUser, domain.Complaint{UserID: &other}, false},
		{"unknown role", domain.Role("GUEST"), domain.Complaint{UserID: &me}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanUpdateStatus(Actor{Role: tt.role, UserID: me}, &tt.complaint)
			assert.Equal(t, tt.wantAllowed, result.Allowed)
		})
	}
}

func TestEvaluate_UnknownRoleDeniesEverything(t *testing.T) {
	for _, role := range []domain.Role{"", "GUEST", "admin"} {
		assert.Equal(t, Capabilities{}, Evaluate(role, "1", escalatedTo("1")))
	}
}

func TestEvaluate_NilComplaint(t *testing.T) {
	assert.Equal(t, Capabilities{CanSeeAllEscalations: true}, Evaluate(domain.RoleAdmin, "1", nil))
	assert.Equal(t, Capabilities{}, Evaluate(domain.RoleSeniorEmployee, "1", nil))
}

func TestEvaluate_View(t *testing.T) {
	me := domain.ID("5")
	private := &domain.Complaint{ID: "1"}
	public := &domain.Complaint{ID: "2", IsPublic: true}
	mine := &domain.Complaint{ID: "3", UserID: &me}

	assert.True(t, Evaluate(domain.RoleAdmin, me, private).CanView)
	assert.False(t, Evaluate(domain.RoleEmployee, me, private).CanView)
	assert.True(t, Evaluate(domain.RoleEmployee, me, public).CanView)
	assert.True(t, Evaluate(domain.RoleUser, me, mine).CanView)
	assert.True(t, Evaluate(domain.RoleSeniorEmployee, me, escalatedTo(me)).CanView)
}

func TestCanTriggerAutoEscalation(t *testing.T) {
	assert.True(t, CanTriggerAutoEscalation(Actor{Role: domain.RoleAdmin}).Allowed)
	for _, role := range []domain.Role{domain.RoleSeniorEmployee, domain.RoleEmployee, domain.RoleUser, ""} {
		assert.False(t, CanTriggerAutoEscalation(Actor{Role: role}).Allowed)
	}
}

func TestCanViewEscalated(t *testing.T) {
	for _, role := range []domain.Role{domain.RoleAdmin, domain.RoleSeniorEmployee} {
		assert.True(t, CanViewEscalated(Actor{Role: role}).Allowed)
	}
	for _, role := range []domain.Role{domain.RoleEmployee, domain.RoleUser, ""} {
		res := CanViewEscalated(Actor{Role: role})
		assert.False(t, res.Allowed)
		assert.Equal(t, "Only senior employees and admins can view escalated complaints", res.Reason)
	}
}

func TestFilterVisible(t *testing.T) {
	list := []domain.Complaint{*escalatedTo("sen-42"), *escalatedTo("sen-1")}

	assert.Len(t, FilterVisible(domain.RoleAdmin, "1", list), 2)

	mine := FilterVisible(domain.RoleSeniorEmployee, "sen-42", list)
	if assert.Len(t, mine, 1) {
		assert.True(t, mine[0].EscalatedTo("sen-42"))
	}

	assert.Empty(t, FilterVisible(domain.RoleEmployee, "sen-42", list))
	assert.Empty(t, FilterVisible(domain.RoleUser, "sen-42", list))
}

func TestFilterCandidates(t *testing.T) {
	sen := domain.ID("sen-42")
	list := []domain.EscalationCandidate{{ID: "1", EscalatedToID: &sen}, {ID: "2"}}

	assert.Len(t, FilterCandidates(domain.RoleAdmin, "1", list), 2)

	mine := FilterCandidates(domain.RoleSeniorEmployee, "sen-42", list)
	if assert.Len(t, mine, 1) {
		assert.Equal(t, domain.ID("1"), mine[0].ID)
	}

	assert.Empty(t, FilterCandidates(domain.RoleEmployee, "sen-42", list))
	assert.Empty(t, FilterCandidates("", "sen-42", list))
}
