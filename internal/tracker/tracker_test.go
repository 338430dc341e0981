package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/resolveit/escalation-monitor/internal/apiclient"
	"github.com/resolveit/escalation-monitor/internal/domain"
	"github.com/resolveit/escalation-monitor/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type identity struct {
	role domain.Role
	id   domain.ID
}

func (i identity) Role() domain.Role { return i.role }
func (i identity) UserID() domain.ID { return i.id }

var admin = identity{role: domain.RoleAdmin, id: "1"}

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) RequiringEscalation(ctx context.Context) ([]domain.EscalationCandidate, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]domain.EscalationCandidate)
	return out, args.Error(1)
}

func (m *mockAPI) TriggerAutoEscalation(ctx context.Context) (apiclient.ActionResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(apiclient.ActionResult), args.Error(1)
}

func (m *mockAPI) EscalateComplaint(ctx context.Context, id domain.ID, req apiclient.EscalateRequest) (apiclient.ActionResult, error) {
	args := m.Called(ctx, id, req)
	return args.Get(0).(apiclient.ActionResult), args.Error(1)
}

func (m *mockAPI) DeescalateComplaint(ctx context.Context, id domain.ID, reason string) (apiclient.ActionResult, error) {
	args := m.Called(ctx, id, reason)
	return args.Get(0).(apiclient.ActionResult), args.Error(1)
}

func (m *mockAPI) UpdateComplaintStatus(ctx context.Context, id domain.ID, status domain.ComplaintStatus, update apiclient.StatusUpdate) error {
	args := m.Called(ctx, id, status, update)
	return args.Error(0)
}

func (m *mockAPI) GetComplaint(ctx context.Context, id domain.ID) (*domain.Complaint, error) {
	args := m.Called(ctx, id)
	out, _ := args.Get(0).(*domain.Complaint)
	return out, args.Error(1)
}

func newTracker(t *testing.T, api API, who Identity) *Tracker {
	t.Helper()
	tr, err := New(api, who)
	require.NoError(t, err)
	return tr
}

func strPtr(s string) *string { return &s }

func TestRefresh_Stats(t *testing.T) {
	api := &mockAPI{}
	api.On("RequiringEscalation", mock.Anything).Return([]domain.EscalationCandidate{
		{ID: "1", AssignedTo: nil, DaysOpen: 9},
		{ID: "2", AssignedTo: strPtr("Bob"), DaysOpen: 7},
		{ID: "3", AssignedTo: strPtr(domain.UnassignedSentinel), DaysOpen: 6},
	}, nil)

	tr := newTracker(t, api, admin)
	snapshot, applied, err := tr.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, domain.EscalationStats{Total: 3, Unassigned: 2, Assigned: 1, Overdue: 2}, snapshot.Stats)
	assert.Equal(t, snapshot, tr.Snapshot())
}

func TestRefresh_RandomStatsInvariant(t *testing.T) {
	candidates := utils.GenerateRandomCandidates(25, DefaultOverdueDays)
	api := &mockAPI{}
	api.On("RequiringEscalation", mock.Anything).Return(candidates, nil)

	tr := newTracker(t, api, admin)
	snapshot, _, err := tr.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(candidates), snapshot.Stats.Total)
	assert.Equal(t, snapshot.Stats.Total, snapshot.Stats.Assigned+snapshot.Stats.Unassigned)
	assert.LessOrEqual(t, snapshot.Stats.Overdue, snapshot.Stats.Total)
}

func TestRefresh_FailureKeepsState(t *testing.T) {
	api := &mockAPI{}
	api.On("RequiringEscalation", mock.Anything).Return([]domain.EscalationCandidate{{ID: "1"}}, nil).Once()
	api.On("RequiringEscalation", mock.Anything).Return(nil, &apiclient.APIError{Status: 0, Message: apiclient.NetworkMessage}).Once()

	tr := newTracker(t, api, admin)
	first, _, err := tr.Refresh(context.Background())
	require.NoError(t, err)

	_, applied, err := tr.Refresh(context.Background())
	require.Error(t, err)
	assert.False(t, applied)
	assert.Equal(t, first, tr.Snapshot())
	assert.Equal(t, Message{Text: connectionMessage, IsError: true, At: tr.LastMessage().At}, tr.LastMessage())
}

// blockingAPI 每次调用 RequiringEscalation 都等待测试放行
type blockingAPI struct {
	mockAPI
	mu      sync.Mutex
	pending []chan []domain.EscalationCandidate
	started chan struct{}
}

func (b *blockingAPI) RequiringEscalation(ctx context.Context) ([]domain.EscalationCandidate, error) {
	ch := make(chan []domain.EscalationCandidate, 1)
	b.mu.Lock()
	b.pending = append(b.pending, ch)
	b.mu.Unlock()
	b.started <- struct{}{}

	select {
	case out := <-ch:
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *blockingAPI) release(i int, out []domain.EscalationCandidate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[i] <- out
}

func TestRefresh_OutOfOrderLastIssuedWins(t *testing.T) {
	api := &blockingAPI{started: make(chan struct{}, 2)}
	tr := newTracker(t, api, admin)
	ctx := context.Background()

	type result struct {
		snapshot domain.Snapshot
		applied  bool
	}
	resA := make(chan result, 1)
	resB := make(chan result, 1)

	go func() {
		s, applied, _ := tr.Refresh(ctx)
		resA <- result{s, applied}
	}()
	<-api.started
	go func() {
		s, applied, _ := tr.Refresh(ctx)
		resB <- result{s, applied}
	}()
	<-api.started

	// B 先返回，A 后返回
	api.release(1, []domain.EscalationCandidate{{ID: "b1"}, {ID: "b2"}})
	b := <-resB
	assert.True(t, b.applied)

	api.release(0, []domain.EscalationCandidate{{ID: "a1"}})
	a := <-resA
	assert.False(t, a.applied)

	final := tr.Snapshot()
	assert.Equal(t, uint64(2), final.Seq)
	require.Len(t, final.Candidates, 2)
	assert.Equal(t, domain.ID("b1"), final.Candidates[0].ID)
}

func TestDetach_DiscardsInFlight(t *testing.T) {
	api := &blockingAPI{started: make(chan struct{}, 1)}
	tr := newTracker(t, api, admin)

	var hookCalls int
	tr.OnApply(func(prev, next domain.Snapshot) { hookCalls++ })

	done := make(chan bool, 1)
	go func() {
		_, applied, _ := tr.Refresh(context.Background())
		done <- applied
	}()
	<-api.started

	tr.Detach()
	api.release(0, []domain.EscalationCandidate{{ID: "1"}})

	assert.False(t, <-done)
	assert.Empty(t, tr.Snapshot().Candidates)
	assert.Zero(t, hookCalls)
	assert.True(t, tr.Detached())
}

func TestOnApply_ReceivesPrevAndNext(t *testing.T) {
	api := &mockAPI{}
	api.On("RequiringEscalation", mock.Anything).Return([]domain.EscalationCandidate{{ID: "1", DaysOpen: 1}}, nil).Once()
	api.On("RequiringEscalation", mock.Anything).Return([]domain.EscalationCandidate{{ID: "1", DaysOpen: 8}, {ID: "2"}}, nil).Once()

	tr := newTracker(t, api, admin)
	var pairs [][2]domain.Snapshot
	tr.OnApply(func(prev, next domain.Snapshot) { pairs = append(pairs, [2]domain.Snapshot{prev, next}) })

	ctx := context.Background()
	_, _, err := tr.Refresh(ctx)
	require.NoError(t, err)
	_, _, err = tr.Refresh(ctx)
	require.NoError(t, err)

	require.Len(t, pairs, 2)
	assert.Equal(t, uint64(0), pairs[0][0].Seq)
	assert.Equal(t, 1, pairs[1][0].Stats.Total)
	assert.Equal(t, 2, pairs[1][1].Stats.Total)
	assert.Equal(t, 1, pairs[1][1].Stats.Overdue)
}

func TestRestore(t *testing.T) {
	api := &mockAPI{}
	api.On("RequiringEscalation", mock.Anything).Return([]domain.EscalationCandidate{{ID: "9", DaysOpen: 2}}, nil)

	tr := newTracker(t, api, admin)
	cached := domain.Snapshot{
		Seq:        41,
		Candidates: []domain.EscalationCandidate{{ID: "1", DaysOpen: 10}, {ID: "2", DaysOpen: 1, AssignedTo: strPtr("Bob")}},
	}
	require.True(t, tr.Restore(cached))

	restored := tr.Snapshot()
	assert.Equal(t, uint64(0), restored.Seq)
	assert.Equal(t, domain.EscalationStats{Total: 2, Unassigned: 1, Assigned: 1, Overdue: 1}, restored.Stats)

	_, applied, err := tr.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 1, tr.Stats().Total)

	assert.False(t, tr.Restore(cached), "a refreshed tracker must not be overwritten")
	assert.Equal(t, 1, tr.Stats().Total)
}

func TestEscalate_FastFail(t *testing.T) {
	tests := []struct {
		name     string
		senior   domain.ID
		reason   string
		wantErr  error
		wantText string
	}{
		{"missing senior", "", "needs senior review", ErrSeniorRequired, "seniorEmployeeId is a required field"},
		{"blank senior", "   ", "needs senior review", ErrSeniorRequired, "seniorEmployeeId is a required field"},
		{"blank reason", "sen-42", " \t ", ErrReasonRequired, "reason is a required field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockAPI{}
			tr := newTracker(t, api, admin)
			before := tr.Snapshot()

			_, err := tr.Escalate(context.Background(), "7", tt.senior, tt.reason)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantText, tr.LastMessage().Text)
			assert.True(t, tr.LastMessage().IsError)
			assert.Equal(t, before, tr.Snapshot())
			api.AssertNotCalled(t, "EscalateComplaint", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestEscalate_ForbiddenRole(t *testing.T) {
	api := &mockAPI{}
	tr := newTracker(t, api, identity{role: domain.RoleEmployee, id: "5"})

	_, err := tr.Escalate(context.Background(), "7", "sen-42", "needs senior review")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, "Only admins and senior employees can escalate complaints", tr.LastMessage().Text)
	api.AssertNotCalled(t, "EscalateComplaint", mock.Anything, mock.Anything, mock.Anything)
}

func TestEscalate_ServerErrorRelayed(t *testing.T) {
	api := &mockAPI{}
	api.On("EscalateComplaint", mock.Anything, domain.ID("7"), apiclient.EscalateRequest{SeniorEmployeeID: "sen-42", Reason: "why"}).
		Return(apiclient.ActionResult{}, &apiclient.APIError{Status: 409, Message: "Complaint is already escalated"})

	tr := newTracker(t, api, admin)
	var actions []domain.EscalationAction
	tr.OnAction(func(a domain.EscalationAction) { actions = append(actions, a) })

	_, err := tr.Escalate(context.Background(), "7", "sen-42", "  why  ")
	require.Error(t, err)
	assert.Equal(t, 409, apiclient.StatusOf(err))
	assert.Equal(t, "Complaint is already escalated", tr.LastMessage().Text)
	api.AssertNotCalled(t, "GetComplaint", mock.Anything, mock.Anything)

	require.Len(t, actions, 1)
	assert.False(t, actions[0].Succeeded)
	assert.Equal(t, domain.ActionEscalate, actions[0].Type)
	assert.Equal(t, domain.ID("1"), actions[0].ActorID)
}

func TestUpdateStatus_Idempotent(t *testing.T) {
	api := &mockAPI{}
	tr := newTracker(t, api, admin)
	complaint := &domain.Complaint{ID: "7", Status: domain.StatusUnderReview}

	_, err := tr.UpdateStatus(context.Background(), complaint, "under_review", "", false)
	assert.ErrorIs(t, err, ErrStatusUnchanged)
	assert.Equal(t, "Complaint is already UNDER_REVIEW", tr.LastMessage().Text)
	api.AssertNotCalled(t, "UpdateComplaintStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	api := &mockAPI{}
	tr := newTracker(t, api, admin)

	_, err := tr.UpdateStatus(context.Background(), &domain.Complaint{ID: "7", Status: domain.StatusNew}, "CLOSED", "", false)
	assert.ErrorIs(t, err, ErrInvalidStatus)
	api.AssertNotCalled(t, "UpdateComplaintStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatus_RefetchesAfterSuccess(t *testing.T) {
	me := domain.ID("5")
	complaint := &domain.Complaint{ID: "7", Status: domain.StatusNew, AssignedEmployeeID: &me}
	resolved := &domain.Complaint{ID: "7", Status: domain.StatusResolved, AssignedEmployeeID: &me}

	api := &mockAPI{}
	api.On("UpdateComplaintStatus", mock.Anything, domain.ID("7"), domain.StatusResolved, apiclient.StatusUpdate{Comment: "done", InternalNote: true}).
		Return(nil)
	api.On("GetComplaint", mock.Anything, domain.ID("7")).Return(resolved, nil)
	api.On("RequiringEscalation", mock.Anything).Return(nil, &apiclient.APIError{Status: 403, Message: "Only admins can view complaints requiring escalation"})

	tr := newTracker(t, api, identity{role: domain.RoleEmployee, id: me})
	got, err := tr.UpdateStatus(context.Background(), complaint, "resolved", "  done ", true)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, got.Status)
	assert.Equal(t, domain.StatusNew, complaint.Status)
	assert.Equal(t, "Complaint status updated to RESOLVED", tr.LastMessage().Text)
	api.AssertExpectations(t)
}

func TestActions_RefetchFailureStillSucceeds(t *testing.T) {
	offline := &apiclient.APIError{Status: 0, StatusText: apiclient.NetworkStatusText, Message: apiclient.NetworkMessage}
	owner := domain.ID("1")

	cases := []struct {
		name    string
		setup   func(api *mockAPI)
		run     func(tr *Tracker) (*domain.Complaint, error)
		action  domain.ActionType
		message string
	}{
		{
			name: "escalate",
			setup: func(api *mockAPI) {
				api.On("EscalateComplaint", mock.Anything, domain.ID("7"), apiclient.EscalateRequest{SeniorEmployeeID: "sen-42", Reason: "why"}).
					Return(apiclient.ActionResult{Message: "Complaint escalated successfully"}, nil)
			},
			run: func(tr *Tracker) (*domain.Complaint, error) {
				return tr.Escalate(context.Background(), "7", "sen-42", "why")
			},
			action:  domain.ActionEscalate,
			message: "Complaint escalated successfully",
		},
		{
			name: "deescalate",
			setup: func(api *mockAPI) {
				api.On("DeescalateComplaint", mock.Anything, domain.ID("7"), "handled").
					Return(apiclient.ActionResult{}, nil)
			},
			run: func(tr *Tracker) (*domain.Complaint, error) {
				return tr.Deescalate(context.Background(), &domain.Complaint{ID: "7", EscalatedToID: &owner}, "handled")
			},
			action:  domain.ActionDeescalate,
			message: "Complaint de-escalated",
		},
		{
			name: "update status",
			setup: func(api *mockAPI) {
				api.On("UpdateComplaintStatus", mock.Anything, domain.ID("7"), domain.StatusResolved, apiclient.StatusUpdate{}).
					Return(nil)
			},
			run: func(tr *Tracker) (*domain.Complaint, error) {
				return tr.UpdateStatus(context.Background(), &domain.Complaint{ID: "7", Status: domain.StatusNew}, "RESOLVED", "", false)
			},
			action:  domain.ActionUpdateStatus,
			message: "Complaint status updated to RESOLVED",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := &mockAPI{}
			tc.setup(api)
			api.On("GetComplaint", mock.Anything, domain.ID("7")).Return(nil, offline)
			api.On("RequiringEscalation", mock.Anything).Return([]domain.EscalationCandidate{{ID: "3"}}, nil).Once()

			tr := newTracker(t, api, admin)
			var actions []domain.EscalationAction
			tr.OnAction(func(a domain.EscalationAction) { actions = append(actions, a) })

			got, err := tc.run(tr)
			assert.Nil(t, got)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrRefetchFailed)
			assert.Equal(t, 0, apiclient.StatusOf(err))
			assert.Equal(t, "Action completed, but the complaint could not be reloaded: Unable to reach the server. Please check your connection.", UserMessage(err))

			// 列表已刷新，提示的是操作成功
			assert.Equal(t, uint64(1), tr.Snapshot().Seq)
			assert.Equal(t, Message{Text: tc.message, At: tr.LastMessage().At}, tr.LastMessage())

			require.Len(t, actions, 1)
			assert.Equal(t, tc.action, actions[0].Type)
			assert.True(t, actions[0].Succeeded)
			api.AssertExpectations(t)
		})
	}
}

func TestDeescalate(t *testing.T) {
	owner := domain.ID("sen-42")
	escalated := func() *domain.Complaint {
		return &domain.Complaint{ID: "7", Status: domain.StatusUnderReview, EscalatedToID: &owner, EscalationDate: domain.NewTimestamp(time.Now())}
	}

	t.Run("reason required", func(t *testing.T) {
		api := &mockAPI{}
		tr := newTracker(t, api, identity{role: domain.RoleSeniorEmployee, id: owner})
		_, err := tr.Deescalate(context.Background(), escalated(), "  ")
		assert.ErrorIs(t, err, ErrReasonRequired)
		api.AssertNotCalled(t, "DeescalateComplaint", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("other senior forbidden", func(t *testing.T) {
		api := &mockAPI{}
		tr := newTracker(t, api, identity{role: domain.RoleSeniorEmployee, id: "sen-1"})
		_, err := tr.Deescalate(context.Background(), escalated(), "resolved offline")
		assert.ErrorIs(t, err, ErrForbidden)
		assert.Equal(t, "You can only de-escalate complaints escalated to you", tr.LastMessage().Text)
		api.AssertNotCalled(t, "DeescalateComplaint", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("owner refetches", func(t *testing.T) {
		reason := "De-escalated by Sam Senior: resolved offline"
		after := &domain.Complaint{ID: "7", Status: domain.StatusUnderReview, EscalationReason: &reason}

		api := &mockAPI{}
		api.On("DeescalateComplaint", mock.Anything, domain.ID("7"), "resolved offline").
			Return(apiclient.ActionResult{Message: "Complaint de-escalated successfully"}, nil)
		api.On("GetComplaint", mock.Anything, domain.ID("7")).Return(after, nil)
		api.On("RequiringEscalation", mock.Anything).Return([]domain.EscalationCandidate{}, nil)

		tr := newTracker(t, api, identity{role: domain.RoleSeniorEmployee, id: owner})
		got, err := tr.Deescalate(context.Background(), escalated(), " resolved offline ")
		require.NoError(t, err)
		assert.False(t, got.IsEscalated())
		assert.Equal(t, reason, *got.EscalationReason)
		assert.Equal(t, Message{Text: "Complaint de-escalated successfully", At: tr.LastMessage().At}, tr.LastMessage())
	})
}

func TestTriggerAutoEscalation(t *testing.T) {
	t.Run("admin", func(t *testing.T) {
		api := &mockAPI{}
		api.On("TriggerAutoEscalation", mock.Anything).Return(apiclient.ActionResult{Message: "Auto-escalation triggered successfully"}, nil)
		api.On("RequiringEscalation", mock.Anything).Return([]domain.EscalationCandidate{{ID: "1"}}, nil)

		tr := newTracker(t, api, admin)
		snapshot, err := tr.TriggerAutoEscalation(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, snapshot.Stats.Total)
		api.AssertExpectations(t)
	})

	t.Run("not admin", func(t *testing.T) {
		api := &mockAPI{}
		tr := newTracker(t, api, identity{role: domain.RoleSeniorEmployee, id: "2"})
		_, err := tr.TriggerAutoEscalation(context.Background())
		assert.ErrorIs(t, err, ErrForbidden)
		api.AssertNotCalled(t, "TriggerAutoEscalation", mock.Anything)
	})
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, connectionMessage, UserMessage(&apiclient.APIError{Status: 0}))
	assert.Equal(t, "Access denied", UserMessage(&apiclient.APIError{Status: 403, Message: "Access denied"}))
	assert.Equal(t, "boom", UserMessage(errors.New("boom")))
	assert.Empty(t, UserMessage(nil))
}

// fakeBackend 模拟 ResolveIt 后端中与升级相关的几个接口
type fakeBackend struct {
	mu         sync.Mutex
	complaints map[string]map[string]any
}

func (f *fakeBackend) router() http.Handler {
	r := chi.NewRouter()
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	r.Get("/api/complaints/requiring-escalation", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"success": true, "data": []map[string]any{
			{"id": 1, "title": "Water leak", "assignedTo": nil, "daysOpen": 10},
			{"id": 2, "title": "Late refund", "assignedTo": "Bob", "daysOpen": 2},
		}, "count": 2})
	})
	r.Post("/api/complaints/{id}/escalate", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		c := f.complaints[chi.URLParam(r, "id")]
		c["escalatedToId"] = req["seniorEmployeeId"]
		c["escalationReason"] = req["reason"]
		c["escalationDate"] = "2024-05-01T12:00:00"
		f.mu.Unlock()

		writeJSON(w, map[string]any{"success": true, "message": "Complaint escalated successfully"})
	})
	r.Get("/complaints/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, f.complaints[chi.URLParam(r, "id")])
	})
	return r
}

func TestEndToEnd_StatsAndEscalate(t *testing.T) {
	backend := &fakeBackend{complaints: map[string]map[string]any{
		"7": {"id": 7, "title": "Broken lift", "status": "UNDER_REVIEW"},
	}}
	srv := httptest.NewServer(backend.router())
	defer srv.Close()

	client := apiclient.New(srv.URL, time.Second, apiclient.TokenSourceFunc(func(context.Context) (string, error) {
		return "token", nil
	}))
	tr := newTracker(t, client, admin)
	ctx := context.Background()

	snapshot, _, err := tr.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.EscalationStats{Total: 2, Unassigned: 1, Assigned: 1, Overdue: 1}, snapshot.Stats)

	complaint, err := tr.Escalate(ctx, "7", "sen-42", "needs senior review")
	require.NoError(t, err)
	assert.True(t, complaint.EscalatedTo("sen-42"))
	require.NotNil(t, complaint.EscalationDate)
	assert.NoError(t, complaint.ValidateEscalationFields())
	assert.Equal(t, "needs senior review", *complaint.EscalationReason)
	assert.Equal(t, "Complaint escalated successfully", tr.LastMessage().Text)
	assert.Equal(t, uint64(2), tr.Snapshot().Seq)
}
