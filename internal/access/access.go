// Package access decides which escalation controls a user may see and use.
// Everything here is a pure function of (role, user id, complaint); views only
// ask for capabilities and never compare roles themselves.
package access

import (
	"fmt"

	"github.com/resolveit/escalation-monitor/internal/domain"
)

// Actor is the logged-in user a decision is made for.
type Actor struct {
	Role   domain.Role
	UserID domain.ID
}

// Capabilities lists the controls a view may render for one complaint.
type Capabilities struct {
	CanView              bool `json:"canView"`
	CanEscalate          bool `json:"canEscalate"`
	CanDeescalate        bool `json:"canDeescalate"`
	CanUpdateStatus      bool `json:"canUpdateStatus"`
	CanSeeAllEscalations bool `json:"canSeeAllEscalations"`
}

// Evaluate returns the capabilities of role/userID on complaint.
// Unknown or empty roles get nothing. A nil complaint only yields the
// role-level CanSeeAllEscalations.
func Evaluate(role domain.Role, userID domain.ID, complaint *domain.Complaint) Capabilities {
	if !role.Valid() {
		return Capabilities{}
	}

	caps := Capabilities{CanSeeAllEscalations: role == domain.RoleAdmin}
	if complaint == nil {
		return caps
	}

	actor := Actor{Role: role, UserID: userID}
	caps.CanView = canView(actor, complaint)
	caps.CanEscalate = CanEscalate(actor, complaint).Allowed
	caps.CanDeescalate = CanDeescalate(actor, complaint).Allowed
	caps.CanUpdateStatus = CanUpdateStatus(actor, complaint).Allowed
	return caps
}

func canView(a Actor, c *domain.Complaint) bool {
	switch a.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleSeniorEmployee:
		return c.IsPublic || c.EscalatedTo(a.UserID) || c.AssignedTo(a.UserID)
	case domain.RoleEmployee:
		return c.IsPublic || c.AssignedTo(a.UserID)
	case domain.RoleUser:
		return c.IsPublic || c.SubmittedBy(a.UserID)
	}
	return false
}

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return &DeniedError{Reason: r.Reason}
}

// DeniedError is returned by GuardResult.Error so callers can tell a
// permission denial apart from other failures.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return e.Reason
}

func deny(format string, args ...any) GuardResult {
	return GuardResult{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

var allow = GuardResult{Allowed: true}

// CanEscalate evaluates whether a can escalate c to a senior employee.
// Rules:
// - Only ADMIN and SENIOR_EMPLOYEE may escalate
// - Complaint must not already be escalated
// - Complaint must not be resolved
func CanEscalate(a Actor, c *domain.Complaint) GuardResult {
	if a.Role != domain.RoleAdmin && a.Role != domain.RoleSeniorEmployee {
		return deny("Only admins and senior employees can escalate complaints")
	}
	if c == nil {
		return deny("Complaint not found")
	}
	if c.IsEscalated() {
		return deny("Complaint %s is already escalated", c.ID)
	}
	if c.Status == domain.StatusResolved {
		return deny("Complaint %s is already resolved", c.ID)
	}
	return allow
}

// CanDeescalate evaluates whether a can remove the escalation of c.
// Rules:
// - Complaint must be escalated
// - ADMIN may de-escalate any escalated complaint
// - SENIOR_EMPLOYEE only when the complaint is escalated to them
// - Everyone else is denied
func CanDeescalate(a Actor, c *domain.Complaint) GuardResult {
	if a.Role != domain.RoleAdmin && a.Role != domain.RoleSeniorEmployee {
		return deny("Only senior employees and admins can de-escalate complaints")
	}
	if c == nil || !c.IsEscalated() {
		return deny("Complaint is not escalated")
	}
	if a.Role == domain.RoleSeniorEmployee && !c.EscalatedTo(a.UserID) {
		return deny("You can only de-escalate complaints escalated to you")
	}
	return allow
}

// CanUpdateStatus evaluates whether a can change the status of c.
// Rules:
// - ADMIN always
// - SENIOR_EMPLOYEE when escalated to or assigned to them
// - EMPLOYEE when assigned to them
// - USER for their own non-anonymous complaints
func CanUpdateStatus(a Actor, c *domain.Complaint) GuardResult {
	if c == nil {
		return deny("Complaint not found")
	}

	switch a.Role {
	case domain.RoleAdmin:
		return allow
	case domain.RoleSeniorEmployee:
		if c.EscalatedTo(a.UserID) || c.AssignedTo(a.UserID) {
			return allow
		}
	case domain.RoleEmployee:
		if c.AssignedTo(a.UserID) {
			return allow
		}
	case domain.RoleUser:
		if !c.Anonymous && c.SubmittedBy(a.UserID) {
			return allow
		}
	}
	return deny("You are not authorized to update this complaint")
}

// CanTriggerAutoEscalation evaluates whether a may run the auto-escalation job
// and read the requiring-escalation list.
// Rules:
// - ADMIN only
func CanTriggerAutoEscalation(a Actor) GuardResult {
	if a.Role != domain.RoleAdmin {
		return deny("Only admins can trigger auto-escalation")
	}
	return allow
}

// CanViewLoadDistribution mirrors the backend: seniors and admins only.
func CanViewLoadDistribution(a Actor) GuardResult {
	if a.Role != domain.RoleAdmin && a.Role != domain.RoleSeniorEmployee {
		return deny("Only senior employees and admins can view load distribution")
	}
	return allow
}

// CanViewEscalated evaluates whether a has an escalated-complaints list at all.
// Rules:
// - ADMIN sees every escalation
// - SENIOR_EMPLOYEE sees the ones escalated to them
func CanViewEscalated(a Actor) GuardResult {
	if a.Role != domain.RoleAdmin && a.Role != domain.RoleSeniorEmployee {
		return deny("Only senior employees and admins can view escalated complaints")
	}
	return allow
}

// FilterVisible selects the escalated complaints a role's escalation list
// shows: admins see all, seniors only those escalated to them, everyone else
// nothing.
func FilterVisible(role domain.Role, userID domain.ID, complaints []domain.Complaint) []domain.Complaint {
	out := []domain.Complaint{}
	switch role {
	case domain.RoleAdmin:
		out = append(out, complaints...)
	case domain.RoleSeniorEmployee:
		for _, c := range complaints {
			if c.EscalatedTo(userID) {
				out = append(out, c)
			}
		}
	}
	return out
}

// FilterCandidates applies the same selection to the requiring-escalation
// list.
func FilterCandidates(role domain.Role, userID domain.ID, candidates []domain.EscalationCandidate) []domain.EscalationCandidate {
	out := []domain.EscalationCandidate{}
	switch role {
	case domain.RoleAdmin:
		out = append(out, candidates...)
	case domain.RoleSeniorEmployee:
		for _, c := range candidates {
			if c.EscalatedToID != nil && *c.EscalatedToID == userID {
				out = append(out, c)
			}
		}
	}
	return out
}
