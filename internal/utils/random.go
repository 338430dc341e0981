package utils

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/resolveit/escalation-monitor/internal/domain"
)

var firstNames = []string{
	"Ava", "Ben", "Chloe", "Daniel", "Ella", "Finn", "Grace", "Henry", "Isla", "Jack",
	"Kai", "Lily", "Mason", "Nora", "Oscar", "Priya", "Quinn", "Ravi", "Sofia", "Theo",
}
var lastNames = []string{
	"Smith", "Patel", "Nguyen", "Garcia", "Kim", "Müller", "Rossi", "Okafor", "Silva", "Chen",
}

var categories = []string{"Billing", "Service", "Product", "Delivery", "Technical", "Other"}

var urgencies = []domain.Urgency{domain.UrgencyHigh, domain.UrgencyMedium, domain.UrgencyNormal, domain.UrgencyLow}

func GenerateRandomFullName() string {
	return firstNames[rand.Intn(len(firstNames))] + " " + lastNames[rand.Intn(len(lastNames))]
}

func GenerateRandomUser(role domain.Role) domain.User {
	fullName := GenerateRandomFullName()
	id := strconv.Itoa(rand.Intn(100000) + 1)
	return domain.User{
		ID:       domain.ID(id),
		FullName: fullName,
		Email:    fmt.Sprintf("user%s@resolveit.test", id),
		Role:     role,
	}
}

var letters = []rune("abcdefghijklmnopqrstuvwxyz")
var digits = "0123456789"

func GenerateRandomID(letterLength int, digitLength int) string {
	randomID := make([]rune, letterLength+digitLength)
	for i := range randomID {
		if i < letterLength {
			randomID[i] = letters[rand.Intn(len(letters))]
		} else {
			randomID[i] = rune(digits[rand.Intn(len(digits))])
		}
	}
	return string(randomID)
}

// GenerateRandomCandidate 生成一个待升级投诉，assigned 为 false 时 assignedTo 随机取 nil 或 "Unassigned"
func GenerateRandomCandidate(daysOpen int, assigned bool) domain.EscalationCandidate {
	created := time.Now().Add(-time.Duration(daysOpen) * 24 * time.Hour).UTC()
	c := domain.EscalationCandidate{
		ID:        domain.ID(strconv.Itoa(rand.Intn(100000) + 1)),
		Title:     "Complaint " + GenerateRandomID(3, 3),
		Category:  categories[rand.Intn(len(categories))],
		Urgency:   urgencies[rand.Intn(len(urgencies))],
		Status:    domain.StatusNew,
		DaysOpen:  daysOpen,
		CreatedAt: domain.NewTimestamp(created),
	}

	if assigned {
		employee := GenerateRandomUser(domain.RoleEmployee)
		c.AssignedTo = &employee.FullName
		c.AssignedEmployeeID = &employee.ID
		c.Status = domain.StatusUnderReview
	} else if rand.Intn(2) == 0 {
		sentinel := domain.UnassignedSentinel
		c.AssignedTo = &sentinel
	}
	return c
}

// GenerateRandomCandidates 生成 n 个 ID 互不相同的待升级投诉
func GenerateRandomCandidates(n int, overdueDays int) []domain.EscalationCandidate {
	out := make([]domain.EscalationCandidate, n)
	for i := range out {
		out[i] = GenerateRandomCandidate(rand.Intn(overdueDays*2+1), rand.Intn(2) == 0)
		out[i].ID = domain.ID(strconv.Itoa(i + 1))
	}
	return out
}

func GenerateRandomComplaint(status domain.ComplaintStatus) *domain.Complaint {
	submitter := GenerateRandomUser(domain.RoleUser)
	created := domain.NewTimestamp(time.Now().Add(-time.Duration(rand.Intn(14)) * 24 * time.Hour).UTC())
	return &domain.Complaint{
		ID:           domain.ID(strconv.Itoa(rand.Intn(100000) + 1)),
		Title:        "Complaint " + GenerateRandomID(3, 3),
		Description:  "Description " + GenerateRandomID(20, 10),
		Category:     categories[rand.Intn(len(categories))],
		Urgency:      urgencies[rand.Intn(len(urgencies))],
		Status:       status,
		IsPublic:     rand.Intn(2) == 0,
		CreatedAt:    created,
		UpdatedAt:    created,
		UserID:       &submitter.ID,
		UserFullName: submitter.FullName,
	}
}
