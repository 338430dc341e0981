// Package tracker holds the escalation candidate list and its stats, and
// runs escalation actions against the backend. The backend stays the only
// source of truth: every successful mutation is followed by a re-fetch.
package tracker

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/resolveit/escalation-monitor/internal/access"
	"github.com/resolveit/escalation-monitor/internal/apiclient"
	"github.com/resolveit/escalation-monitor/internal/domain"
	"github.com/resolveit/escalation-monitor/internal/utils"
)

const DefaultOverdueDays = 7

type API interface {
	RequiringEscalation(ctx context.Context) ([]domain.EscalationCandidate, error)
	TriggerAutoEscalation(ctx context.Context) (apiclient.ActionResult, error)
	EscalateComplaint(ctx context.Context, id domain.ID, req apiclient.EscalateRequest) (apiclient.ActionResult, error)
	DeescalateComplaint(ctx context.Context, id domain.ID, reason string) (apiclient.ActionResult, error)
	UpdateComplaintStatus(ctx context.Context, id domain.ID, status domain.ComplaintStatus, update apiclient.StatusUpdate) error
	GetComplaint(ctx context.Context, id domain.ID) (*domain.Complaint, error)
}

// Identity 当前登录用户，session.Session 实现了这个接口
type Identity interface {
	Role() domain.Role
	UserID() domain.ID
}

type Message struct {
	Text    string    `json:"text"`
	IsError bool      `json:"isError"`
	At      time.Time `json:"at"`
}

type ApplyHook func(prev, next domain.Snapshot)

type ActionHook func(action domain.EscalationAction)

type Tracker struct {
	api         API
	identity    Identity
	overdueDays int
	logger      *slog.Logger
	now         func() time.Time
	validate    *validator.Validate
	translator  ut.Translator

	issued atomic.Uint64

	// applyMu 保证快照替换和回调按顺序执行
	applyMu sync.Mutex

	mu          sync.RWMutex
	snapshot    domain.Snapshot
	detached    bool
	lastMessage Message
	applyHooks  []ApplyHook
	actionHooks []ActionHook
}

type Option func(*Tracker)

func WithOverdueDays(days int) Option {
	return func(t *Tracker) {
		if days > 0 {
			t.overdueDays = days
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

func New(api API, identity Identity, opts ...Option) (*Tracker, error) {
	validate, trans, err := utils.NewValidator()
	if err != nil {
		return nil, err
	}

	t := &Tracker{
		api:         api,
		identity:    identity,
		overdueDays: DefaultOverdueDays,
		logger:      slog.Default(),
		now:         time.Now,
		validate:    validate,
		translator:  trans,
		snapshot:    domain.Snapshot{Candidates: []domain.EscalationCandidate{}},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Tracker) OnApply(hook ApplyHook) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyHooks = append(t.applyHooks, hook)
}

func (t *Tracker) OnAction(hook ActionHook) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.actionHooks = append(t.actionHooks, hook)
}

func (t *Tracker) Snapshot() domain.Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot
}

func (t *Tracker) Stats() domain.EscalationStats {
	return t.Snapshot().Stats
}

func (t *Tracker) OverdueDays() int {
	return t.overdueDays
}

func (t *Tracker) LastMessage() Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastMessage
}

func (t *Tracker) Actor() access.Actor {
	return access.Actor{Role: t.identity.Role(), UserID: t.identity.UserID()}
}

// Detach 之后完成的请求都会被丢弃，不再修改状态
func (t *Tracker) Detach() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.detached = true
}

func (t *Tracker) Detached() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.detached
}

// Restore 用缓存的快照填充初始状态。恢复的快照序号为 0，任何一次刷新都会覆盖它，
// 已经应用过刷新结果时不做任何事
func (t *Tracker) Restore(snapshot domain.Snapshot) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.detached || t.snapshot.Seq != 0 {
		return false
	}
	snapshot.Seq = 0
	if snapshot.Candidates == nil {
		snapshot.Candidates = []domain.EscalationCandidate{}
	}
	// 阈值可能和缓存时不同，统计重新计算
	snapshot.Stats = domain.ComputeStats(snapshot.Candidates, t.overdueDays)
	t.snapshot = snapshot
	return true
}

// Refresh 拉取待升级投诉列表并整体替换。序号在发出请求时分配，
// 只有序号大于当前快照的响应才会被应用，较早发出的慢请求直接丢弃。
func (t *Tracker) Refresh(ctx context.Context) (domain.Snapshot, bool, error) {
	seq := t.issued.Add(1)

	candidates, err := t.api.RequiringEscalation(ctx)
	if err != nil {
		t.logger.Warn("拉取待升级投诉失败", "seq", seq, "error", err)
		t.recordFailure(seq, err)
		return t.Snapshot(), false, err
	}

	next := domain.Snapshot{
		Seq:        seq,
		FetchedAt:  t.now(),
		Candidates: candidates,
		Stats:      domain.ComputeStats(candidates, t.overdueDays),
	}
	return t.apply(next)
}

func (t *Tracker) apply(next domain.Snapshot) (domain.Snapshot, bool, error) {
	t.applyMu.Lock()
	defer t.applyMu.Unlock()

	t.mu.Lock()
	if t.detached {
		current := t.snapshot
		t.mu.Unlock()
		t.logger.Debug("已停止跟踪，丢弃响应", "seq", next.Seq)
		return current, false, nil
	}
	if next.Seq <= t.snapshot.Seq {
		current := t.snapshot
		t.mu.Unlock()
		t.logger.Debug("丢弃过期的响应", "seq", next.Seq, "current", current.Seq)
		return current, false, nil
	}
	prev := t.snapshot
	t.snapshot = next
	if t.lastMessage.IsError {
		t.lastMessage = Message{}
	}
	hooks := append([]ApplyHook(nil), t.applyHooks...)
	t.mu.Unlock()

	t.logger.Debug("已更新待升级投诉", "seq", next.Seq, "total", next.Stats.Total, "overdue", next.Stats.Overdue)
	for _, hook := range hooks {
		hook(prev, next)
	}
	return next, true, nil
}

// recordFailure seq 为 0 表示不是列表刷新；被更新的结果覆盖的旧请求不再提示错误
func (t *Tracker) recordFailure(seq uint64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.detached || (seq != 0 && seq <= t.snapshot.Seq) {
		return
	}
	t.lastMessage = Message{Text: UserMessage(err), IsError: true, At: t.now()}
}

func (t *Tracker) recordSuccess(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.detached || text == "" {
		return
	}
	t.lastMessage = Message{Text: text, At: t.now()}
}

func (t *Tracker) recordAction(actionType domain.ActionType, complaintID domain.ID, detail string, err error) {
	action := domain.EscalationAction{
		Type:        actionType,
		ComplaintID: complaintID,
		ActorID:     t.identity.UserID(),
		Detail:      detail,
		Succeeded:   err == nil,
		CreatedAt:   t.now(),
	}
	if err != nil {
		action.Error = UserMessage(err)
	}

	t.mu.RLock()
	hooks := append([]ActionHook(nil), t.actionHooks...)
	t.mu.RUnlock()

	for _, hook := range hooks {
		hook(action)
	}
}

// fail 记录错误信息后原样返回，本地状态不做任何修改
func (t *Tracker) fail(err error) error {
	t.recordFailure(0, err)
	return err
}

func (t *Tracker) validateInput(v any) error {
	err := t.validate.Struct(v)
	if err == nil {
		return nil
	}

	field, message, ok := utils.FirstValidationError(err, t.translator)
	if !ok {
		return err
	}

	validationErr := &ValidationError{Field: field, Message: message}
	switch field {
	case "seniorEmployeeId":
		validationErr.err = ErrSeniorRequired
	case "reason":
		validationErr.err = ErrReasonRequired
	case "status":
		validationErr.err = ErrInvalidStatus
	}
	return validationErr
}

// refreshAfter 操作成功后刷新列表，刷新失败只记日志，不影响操作结果
func (t *Tracker) refreshAfter(ctx context.Context, action domain.ActionType) {
	if _, _, err := t.Refresh(ctx); err != nil {
		t.logger.Warn("操作成功但刷新列表失败", "action", action, "error", err)
	}
}

// refetch 在操作成功后重新拉取投诉并刷新列表。拉取失败时操作仍算成功，
// 返回的错误满足 errors.Is(err, ErrRefetchFailed)
func (t *Tracker) refetch(ctx context.Context, id domain.ID, action domain.ActionType, message string) (*domain.Complaint, error) {
	complaint, err := t.api.GetComplaint(ctx, id)
	t.refreshAfter(ctx, action)
	t.recordSuccess(message)
	if err != nil {
		t.logger.Warn("操作成功但重新拉取投诉失败", "action", action, "complaint_id", id, "error", err)
		return nil, &refetchError{err: err}
	}
	return complaint, nil
}

func messageOr(msg, fallback string) string {
	if strings.TrimSpace(msg) == "" {
		return fallback
	}
	return msg
}

func (t *Tracker) TriggerAutoEscalation(ctx context.Context) (domain.Snapshot, error) {
	if err := forbidden(access.CanTriggerAutoEscalation(t.Actor())); err != nil {
		return t.Snapshot(), t.fail(err)
	}

	res, err := t.api.TriggerAutoEscalation(ctx)
	t.recordAction(domain.ActionTriggerAuto, "", res.Message, err)
	if err != nil {
		t.logger.Warn("触发自动升级失败", "error", err)
		return t.Snapshot(), t.fail(err)
	}

	snapshot, _, err := t.Refresh(ctx)
	if err != nil {
		return snapshot, err
	}
	t.recordSuccess(res.Message)
	return snapshot, nil
}

type escalateInput struct {
	ComplaintID      string `json:"complaintId" validate:"required"`
	SeniorEmployeeID string `json:"seniorEmployeeId" validate:"required"`
	Reason           string `json:"reason" validate:"required"`
}

// Escalate 本地校验失败时不发请求；成功后返回重新拉取的投诉
func (t *Tracker) Escalate(ctx context.Context, complaintID, seniorEmployeeID domain.ID, reason string) (*domain.Complaint, error) {
	input := escalateInput{
		ComplaintID:      strings.TrimSpace(complaintID.String()),
		SeniorEmployeeID: strings.TrimSpace(seniorEmployeeID.String()),
		Reason:           strings.TrimSpace(reason),
	}
	if err := t.validateInput(input); err != nil {
		return nil, t.fail(err)
	}

	// 这里只检查角色，投诉本身是否可以升级由后端判断
	target := &domain.Complaint{ID: complaintID}
	if err := forbidden(access.CanEscalate(t.Actor(), target)); err != nil {
		return nil, t.fail(err)
	}

	id := domain.ID(input.ComplaintID)
	res, err := t.api.EscalateComplaint(ctx, id, apiclient.EscalateRequest{
		SeniorEmployeeID: domain.ID(input.SeniorEmployeeID),
		Reason:           input.Reason,
	})
	t.recordAction(domain.ActionEscalate, id, "to "+input.SeniorEmployeeID+": "+input.Reason, err)
	if err != nil {
		t.logger.Warn("升级投诉失败", "complaint_id", id, "error", err)
		return nil, t.fail(err)
	}

	complaint, err := t.refetch(ctx, id, domain.ActionEscalate, messageOr(res.Message, "Complaint escalated"))
	if err != nil {
		return nil, err
	}
	if err := complaint.ValidateEscalationFields(); err != nil {
		t.logger.Warn("后端返回的投诉缺少升级时间", "complaint_id", id)
	}
	return complaint, nil
}

type deescalateInput struct {
	Reason string `json:"reason" validate:"required"`
}

func (t *Tracker) Deescalate(ctx context.Context, complaint *domain.Complaint, reason string) (*domain.Complaint, error) {
	if complaint == nil {
		return nil, t.fail(errComplaintRequired)
	}
	input := deescalateInput{Reason: strings.TrimSpace(reason)}
	if err := t.validateInput(input); err != nil {
		return nil, t.fail(err)
	}
	if err := forbidden(access.CanDeescalate(t.Actor(), complaint)); err != nil {
		return nil, t.fail(err)
	}

	res, err := t.api.DeescalateComplaint(ctx, complaint.ID, input.Reason)
	t.recordAction(domain.ActionDeescalate, complaint.ID, input.Reason, err)
	if err != nil {
		t.logger.Warn("取消升级失败", "complaint_id", complaint.ID, "error", err)
		return nil, t.fail(err)
	}

	// 取消升级后的原因文字由后端生成，这里不自行拼接
	return t.refetch(ctx, complaint.ID, domain.ActionDeescalate, messageOr(res.Message, "Complaint de-escalated"))
}

type updateStatusInput struct {
	Status string `json:"status" validate:"required,oneof=NEW UNDER_REVIEW RESOLVED"`
}

// UpdateStatus 新状态和当前状态相同时直接返回 ErrStatusUnchanged，不发请求
func (t *Tracker) UpdateStatus(ctx context.Context, complaint *domain.Complaint, newStatus, comment string, internalNote bool) (*domain.Complaint, error) {
	if complaint == nil {
		return nil, t.fail(errComplaintRequired)
	}
	input := updateStatusInput{Status: strings.ToUpper(strings.TrimSpace(newStatus))}
	if err := t.validateInput(input); err != nil {
		return nil, t.fail(err)
	}
	status := domain.ComplaintStatus(input.Status)

	if complaint.Status == status {
		return nil, t.fail(&statusUnchangedError{status: string(status)})
	}
	if err := forbidden(access.CanUpdateStatus(t.Actor(), complaint)); err != nil {
		return nil, t.fail(err)
	}

	update := apiclient.StatusUpdate{Comment: strings.TrimSpace(comment), InternalNote: internalNote}
	err := t.api.UpdateComplaintStatus(ctx, complaint.ID, status, update)
	t.recordAction(domain.ActionUpdateStatus, complaint.ID, string(complaint.Status)+" -> "+string(status), err)
	if err != nil {
		t.logger.Warn("更新投诉状态失败", "complaint_id", complaint.ID, "status", status, "error", err)
		return nil, t.fail(err)
	}

	return t.refetch(ctx, complaint.ID, domain.ActionUpdateStatus, "Complaint status updated to "+string(status))
}
