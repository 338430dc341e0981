package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/resolveit/escalation-monitor/internal/domain"
)

func printStats(out io.Writer, stats domain.EscalationStats) {
	overdue := fmt.Sprintf("%d", stats.Overdue)
	if stats.Overdue > 0 {
		overdue = color.New(color.FgRed).Sprint(overdue)
	}
	fmt.Fprintf(out, "Total: %d  Unassigned: %d  Assigned: %d  Overdue: %s\n", stats.Total, stats.Unassigned, stats.Assigned, overdue)
}

func printComplaint(out io.Writer, c *domain.Complaint) {
	if c == nil {
		return
	}
	fmt.Fprintf(out, "Complaint: %s\n", c.ID)
	fmt.Fprintf(out, "Title: %s\n", c.Title)
	fmt.Fprintf(out, "Status: %s\n", c.Status)
	if c.AssignedEmployeeName != "" {
		fmt.Fprintf(out, "Assigned: %s\n", c.AssignedEmployeeName)
	}
	if c.IsEscalated() {
		fmt.Fprintf(out, "Escalated To: %s\n", escalatedTo(c))
		fmt.Fprintf(out, "Escalated: %s\n", formatTimestamp(c.EscalationDate))
	}
	if c.EscalationReason != nil && *c.EscalationReason != "" {
		fmt.Fprintf(out, "Reason: %s\n", *c.EscalationReason)
	}
}

func escalatedTo(c *domain.Complaint) string {
	switch {
	case c.EscalatedToName != "":
		return c.EscalatedToName
	case c.EscalatedToID != nil:
		return c.EscalatedToID.String()
	default:
		return "-"
	}
}

func formatTimestamp(ts *domain.Timestamp) string {
	if ts == nil || ts.IsZero() {
		return "-"
	}
	return ts.Format("2006-01-02 15:04")
}

func mark(allowed bool) string {
	if allowed {
		return color.New(color.FgGreen).Sprint("✓")
	}
	return color.New(color.FgRed).Sprint("✗")
}
