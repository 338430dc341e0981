// Package cli implements resolvectl, the operator command line for one-shot
// escalation actions against the ResolveIt backend.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/resolveit/escalation-monitor/internal/apiclient"
	"github.com/resolveit/escalation-monitor/internal/config"
	"github.com/resolveit/escalation-monitor/internal/session"
	"github.com/resolveit/escalation-monitor/internal/tracker"
	"github.com/spf13/cobra"
)

type app struct {
	baseURL     string
	email       string
	password    string
	overdueDays int
	timeout     time.Duration
	verbose     bool

	client  *apiclient.Client
	session *session.Session
	tracker *tracker.Tracker
}

// NewRootCmd 命令行参数优先，未指定时使用环境变量中的配置
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "resolvectl",
		Short:         "Operate ResolveIt complaint escalations",
		Long:          "resolvectl lists complaints requiring escalation, escalates and de-escalates them, and inspects senior employee load.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "ResolveIt backend URL (default BACKEND_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&a.email, "email", "", "login email (default BACKEND_EMAIL)")
	rootCmd.PersistentFlags().StringVar(&a.password, "password", "", "login password (default BACKEND_PASSWORD)")
	rootCmd.PersistentFlags().IntVar(&a.overdueDays, "overdue-days", 0, "days open before a complaint counts as overdue (default ESCALATION_OVERDUE_DAYS)")
	rootCmd.PersistentFlags().DurationVar(&a.timeout, "timeout", 0, "request timeout (default BACKEND_REQUEST_TIMEOUT)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log requests to stderr")

	rootCmd.AddCommand(
		a.loginCmd(),
		a.healthCmd(),
		a.listCmd(),
		a.statsCmd(),
		a.triggerCmd(),
		a.escalateCmd(),
		a.deescalateCmd(),
		a.statusCmd(),
		a.escalatedCmd(),
		a.loadCmd(),
		a.seniorsCmd(),
		a.capsCmd(),
	)

	return rootCmd
}

func (a *app) applyConfig(cfg *config.Config) {
	if a.baseURL == "" {
		a.baseURL = cfg.Backend.BaseURL
	}
	if a.email == "" {
		a.email = cfg.Backend.Email
	}
	if a.password == "" {
		a.password = cfg.Backend.Password
	}
	if a.overdueDays <= 0 {
		a.overdueDays = cfg.Escalation.OverdueDays
	}
	if a.timeout <= 0 {
		a.timeout = time.Duration(cfg.Backend.RequestTimeout) * time.Second
	}
}

// connect 创建客户端；login 为 true 时先用配置的账号登录
func (a *app) connect(ctx context.Context, cmd *cobra.Command, login bool) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.applyConfig(cfg)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if a.verbose {
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	a.session = session.New(session.NewMemoryStore(), a.email)
	a.client = apiclient.New(a.baseURL, a.timeout, a.session, apiclient.WithLogger(logger))

	if !login {
		return nil
	}
	if a.email == "" || a.password == "" {
		return fmt.Errorf("--email and --password (or BACKEND_EMAIL and BACKEND_PASSWORD) are required")
	}
	if err := a.session.Login(ctx, a.client, a.password); err != nil {
		return fmt.Errorf("login failed: %s", tracker.UserMessage(err))
	}

	a.tracker, err = tracker.New(a.client, a.session, tracker.WithOverdueDays(a.overdueDays), tracker.WithLogger(logger))
	return err
}

// run 包装需要登录的子命令
func (a *app) run(fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := a.connect(ctx, cmd, true); err != nil {
			return err
		}
		return fn(ctx, cmd, args)
	}
}
