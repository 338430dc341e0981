package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/resolveit/escalation-monitor/internal/access"
	"github.com/resolveit/escalation-monitor/internal/domain"
	"github.com/resolveit/escalation-monitor/internal/tracker"
	"github.com/spf13/cobra"
)

func failure(action string, err error) error {
	return fmt.Errorf("failed to %s: %s", action, tracker.UserMessage(err))
}

// actionFailed 重新拉取投诉失败不算操作失败
func actionFailed(err error) bool {
	return err != nil && !errors.Is(err, tracker.ErrRefetchFailed)
}

func warnRefetch(out io.Writer, err error) {
	if err != nil {
		fmt.Fprintln(out, color.New(color.FgYellow).Sprint("! "+tracker.UserMessage(err)))
	}
}

func (a *app) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check the configured credentials",
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			user := a.session.User()
			fmt.Fprintf(out, "✓ Logged in as %s <%s>\n", user.FullName, user.Email)
			fmt.Fprintf(out, "  Role: %s\n", user.Role)
			if expiry := a.session.Expiry(); !expiry.IsZero() {
				fmt.Fprintf(out, "  Token expires: %s\n", expiry.Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		}),
	}
}

func (a *app) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := a.connect(ctx, cmd, false); err != nil {
				return err
			}

			status, err := a.client.Health(ctx)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.New(color.FgRed).Sprint("DOWN"), tracker.UserMessage(err))
				return failure("reach backend", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.New(color.FgGreen).Sprint("UP"), a.baseURL)
			if status.Status != "" && status.Status != "UP" {
				fmt.Fprintf(cmd.OutOrStdout(), "  Backend status: %s\n", status.Status)
			}
			return nil
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List complaints requiring escalation",
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			snapshot, _, err := a.tracker.Refresh(ctx)
			if err != nil {
				return failure("list complaints requiring escalation", err)
			}

			out := cmd.OutOrStdout()
			candidates := access.FilterCandidates(a.session.Role(), a.session.UserID(), snapshot.Candidates)
			if len(candidates) == 0 {
				fmt.Fprintln(out, "No complaints require escalation.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tURGENCY\tSTATUS\tASSIGNED\tDAYS OPEN")
			fmt.Fprintln(w, "--\t-----\t-------\t------\t--------\t---------")
			for _, c := range candidates {
				assigned := domain.UnassignedSentinel
				if !c.IsUnassigned() {
					assigned = *c.AssignedTo
				}
				days := fmt.Sprintf("%d", c.DaysOpen)
				if c.DaysOpen >= a.tracker.OverdueDays() {
					days = color.New(color.FgRed).Sprint(days)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", c.ID, c.Title, orDash(string(c.Urgency)), orDash(string(c.Status)), assigned, days)
			}
			w.Flush()

			fmt.Fprintln(out)
			printStats(out, domain.ComputeStats(candidates, a.tracker.OverdueDays()))
			return nil
		}),
	}
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show escalation stats",
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			snapshot, _, err := a.tracker.Refresh(ctx)
			if err != nil {
				return failure("load escalation stats", err)
			}
			printStats(cmd.OutOrStdout(), snapshot.Stats)
			return nil
		}),
	}
}

func (a *app) triggerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger",
		Short: "Run the backend's auto-escalation job (admins only)",
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			snapshot, err := a.tracker.TriggerAutoEscalation(ctx)
			if err != nil {
				return failure("trigger auto-escalation", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ %s\n", orDefault(a.tracker.LastMessage().Text, "Auto-escalation triggered"))
			printStats(out, snapshot.Stats)
			return nil
		}),
	}
}

func (a *app) escalateCmd() *cobra.Command {
	var senior, reason string

	cmd := &cobra.Command{
		Use:   "escalate [complaint-id]",
		Short: "Escalate a complaint to a senior employee",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			complaint, err := a.tracker.Escalate(ctx, domain.ID(args[0]), domain.ID(senior), reason)
			if actionFailed(err) {
				return failure("escalate complaint", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ %s\n", orDefault(a.tracker.LastMessage().Text, "Complaint escalated"))
			printComplaint(out, complaint)
			warnRefetch(out, err)
			return nil
		}),
	}
	cmd.Flags().StringVar(&senior, "senior", "", "senior employee ID")
	cmd.Flags().StringVar(&reason, "reason", "", "escalation reason")
	return cmd
}

func (a *app) deescalateCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "deescalate [complaint-id]",
		Short: "Return an escalated complaint to normal handling",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			complaint, err := a.client.GetComplaint(ctx, domain.ID(args[0]))
			if err != nil {
				return failure("load complaint", err)
			}

			updated, err := a.tracker.Deescalate(ctx, complaint, reason)
			if actionFailed(err) {
				return failure("de-escalate complaint", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ %s\n", orDefault(a.tracker.LastMessage().Text, "Complaint de-escalated"))
			printComplaint(out, updated)
			warnRefetch(out, err)
			return nil
		}),
	}
	cmd.Flags().StringVar(&reason, "reason", "", "de-escalation reason")
	return cmd
}

func (a *app) statusCmd() *cobra.Command {
	var (
		comment  string
		internal bool
	)

	cmd := &cobra.Command{
		Use:   "status [complaint-id] [NEW|UNDER_REVIEW|RESOLVED]",
		Short: "Update a complaint's status",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			complaint, err := a.client.GetComplaint(ctx, domain.ID(args[0]))
			if err != nil {
				return failure("load complaint", err)
			}

			updated, err := a.tracker.UpdateStatus(ctx, complaint, args[1], comment, internal)
			if actionFailed(err) {
				return failure("update status", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ %s\n", a.tracker.LastMessage().Text)
			printComplaint(out, updated)
			warnRefetch(out, err)
			return nil
		}),
	}
	cmd.Flags().StringVar(&comment, "comment", "", "comment to attach to the status change")
	cmd.Flags().BoolVar(&internal, "internal", false, "mark the comment as a staff-only note")
	return cmd
}

func (a *app) escalatedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "escalated",
		Short: "List escalated complaints visible to you",
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			role, userID := a.session.Role(), a.session.UserID()
			caps := access.Evaluate(role, userID, nil)

			complaints, err := a.client.EscalatedComplaints(ctx, caps.CanSeeAllEscalations)
			if err != nil {
				return failure("list escalated complaints", err)
			}
			complaints = access.FilterVisible(role, userID, complaints)

			out := cmd.OutOrStdout()
			if len(complaints) == 0 {
				fmt.Fprintln(out, "No escalated complaints.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tESCALATED TO\tSINCE\tREASON")
			fmt.Fprintln(w, "--\t-----\t------\t------------\t-----\t------")
			for i := range complaints {
				c := &complaints[i]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", c.ID, c.Title, c.Status, escalatedTo(c), formatTimestamp(c.EscalationDate), orDash(deref(c.EscalationReason)))
			}
			w.Flush()
			return nil
		}),
	}
}

func (a *app) loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Show senior employee load distribution",
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if guard := access.CanViewLoadDistribution(a.tracker.Actor()); !guard.Allowed {
				return guard.Error()
			}

			dist, err := a.client.LoadDistribution(ctx)
			if err != nil {
				return failure("load distribution", err)
			}

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tESCALATED\tASSIGNED\tTOTAL\tRESOLUTION RATE")
			fmt.Fprintln(w, "--\t----\t---------\t--------\t-----\t---------------")
			for _, s := range dist.SeniorEmployees {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%.1f%%\n", s.ID, s.Name, s.EscalatedCount, s.AssignedCount, s.TotalLoad, s.ResolutionRate)
			}
			w.Flush()

			fmt.Fprintf(out, "\nSenior employees: %d  Escalated complaints: %d\n", dist.TotalSeniorEmployees, dist.TotalEscalatedComplaints)
			return nil
		}),
	}
}

func (a *app) seniorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seniors",
		Short: "List senior employees available for escalation",
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			users, err := a.client.SeniorEmployees(ctx)
			if err != nil {
				return failure("list senior employees", err)
			}

			out := cmd.OutOrStdout()
			if len(users) == 0 {
				fmt.Fprintln(out, "No senior employees found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tEMAIL")
			fmt.Fprintln(w, "--\t----\t-----")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\n", u.ID, u.FullName, orDash(u.Email))
			}
			w.Flush()
			return nil
		}),
	}
}

func (a *app) capsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "caps [complaint-id]",
		Short: "Show what you may do with a complaint",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			complaint, err := a.client.GetComplaint(ctx, domain.ID(args[0]))
			if err != nil {
				return failure("load complaint", err)
			}

			caps := access.Evaluate(a.session.Role(), a.session.UserID(), complaint)
			out := cmd.OutOrStdout()
			printComplaint(out, complaint)
			fmt.Fprintln(out)
			for _, row := range []struct {
				name    string
				allowed bool
			}{
				{"view", caps.CanView},
				{"escalate", caps.CanEscalate},
				{"de-escalate", caps.CanDeescalate},
				{"update status", caps.CanUpdateStatus},
				{"see all escalations", caps.CanSeeAllEscalations},
			} {
				fmt.Fprintf(out, "  %s %s\n", mark(row.allowed), row.name)
			}
			return nil
		}),
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
