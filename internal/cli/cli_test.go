package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

type backend struct {
	mu         sync.Mutex
	role       string
	calls      []string
	complaints map[string]map[string]any
	readsDown  bool
}

func newBackend(role string) *backend {
	return &backend{role: role, complaints: map[string]map[string]any{
		"7": {"id": 7, "title": "Broken lift", "status": "UNDER_REVIEW"},
		"8": {"id": 8, "title": "Noisy pipes", "status": "UNDER_REVIEW", "escalatedToId": 42, "escalatedToName": "Sam Senior", "escalationDate": "2024-05-01T12:00:00", "escalationReason": "needs senior review"},
	}}
}

func (b *backend) server(t *testing.T) *httptest.Server {
	t.Helper()

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			b.calls = append(b.calls, r.Method+" "+r.URL.Path)
			b.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["password"] != "pw" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Invalid email or password"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": "opaque-token", "user": map[string]any{
			"id": 1, "fullName": "Ada Admin", "email": req["email"], "role": b.role,
		}})
	})
	r.Get("/actuator/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "UP"})
	})
	r.Get("/api/complaints/requiring-escalation", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []map[string]any{
			{"id": 1, "title": "Water leak", "urgency": "HIGH", "status": "NEW", "assignedTo": nil, "daysOpen": 10},
			{"id": 2, "title": "Late refund", "urgency": "LOW", "status": "UNDER_REVIEW", "assignedTo": "Bob", "daysOpen": 2},
		}})
	})
	r.Get("/complaints/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.readsDown {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "Service unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, b.complaints[chi.URLParam(r, "id")])
	})
	r.Post("/api/complaints/{id}/escalate", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)

		b.mu.Lock()
		c := b.complaints[chi.URLParam(r, "id")]
		c["escalatedToId"] = req["seniorEmployeeId"]
		c["escalationReason"] = req["reason"]
		c["escalationDate"] = "2024-05-02T09:30:00"
		b.mu.Unlock()

		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Complaint escalated successfully"})
	})
	r.Get("/api/senior/escalated/all", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{b.complaints["8"]}})
	})
	r.Get("/api/senior/load-distribution", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
			"seniorEmployees":          []map[string]any{{"id": 42, "name": "Sam Senior", "escalatedCount": 1, "assignedCount": 2, "totalLoad": 3, "resolutionRate": 50}},
			"totalSeniorEmployees":     1,
			"totalEscalatedComplaints": 1,
		}})
	})
	r.Get("/api/users/senior-employees", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{{"id": 42, "fullName": "Sam Senior", "email": "sam@example.com", "role": "SENIOR_EMPLOYEE"}})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func (b *backend) called(call string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.calls {
		if c == call {
			return true
		}
	}
	return false
}

func execute(t *testing.T, url string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"--base-url", url, "--email", "ada@example.com", "--password", "pw"}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func TestList(t *testing.T) {
	b := newBackend("ADMIN")
	srv := b.server(t)

	out, err := execute(t, srv.URL, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Water leak")
	assert.Contains(t, out, "Unassigned")
	assert.Contains(t, out, "Total: 2  Unassigned: 1  Assigned: 1  Overdue: 1")
}

func TestList_OverdueDaysFlag(t *testing.T) {
	b := newBackend("ADMIN")
	srv := b.server(t)

	out, err := execute(t, srv.URL, "--overdue-days", "2", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Overdue: 2")
}

func TestLogin(t *testing.T) {
	b := newBackend("ADMIN")
	srv := b.server(t)

	out, err := execute(t, srv.URL, "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Ada Admin <ada@example.com>")
	assert.Contains(t, out, "Role: ADMIN")

	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--base-url", srv.URL, "--email", "ada@example.com", "--password", "wrong", "login"})
	err = cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, "login failed: Invalid email or password", err.Error())
}

func TestEscalate(t *testing.T) {
	t.Run("missing reason never reaches the backend", func(t *testing.T) {
		b := newBackend("ADMIN")
		srv := b.server(t)

		_, err := execute(t, srv.URL, "escalate", "7", "--senior", "42")
		require.Error(t, err)
		assert.Equal(t, "failed to escalate complaint: reason is a required field", err.Error())
		assert.False(t, b.called("POST /api/complaints/7/escalate"))
	})

	t.Run("success", func(t *testing.T) {
		b := newBackend("ADMIN")
		srv := b.server(t)

		out, err := execute(t, srv.URL, "escalate", "7", "--senior", "sen-42", "--reason", "needs senior review")
		require.NoError(t, err)
		assert.Contains(t, out, "✓ Complaint escalated successfully")
		assert.Contains(t, out, "Escalated To: sen-42")
		assert.Contains(t, out, "Escalated: 2024-05-02 09:30")
	})

	t.Run("reload failure after success", func(t *testing.T) {
		b := newBackend("ADMIN")
		b.readsDown = true
		srv := b.server(t)

		out, err := execute(t, srv.URL, "escalate", "7", "--senior", "sen-42", "--reason", "needs senior review")
		require.NoError(t, err)
		assert.Contains(t, out, "✓ Complaint escalated successfully")
		assert.Contains(t, out, "! Action completed, but the complaint could not be reloaded: Service unavailable")
		assert.True(t, b.called("GET /api/complaints/requiring-escalation"))
	})

	t.Run("employees cannot escalate", func(t *testing.T) {
		b := newBackend("EMPLOYEE")
		srv := b.server(t)

		_, err := execute(t, srv.URL, "escalate", "7", "--senior", "sen-42", "--reason", "help")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Only admins and senior employees can escalate complaints")
		assert.False(t, b.called("POST /api/complaints/7/escalate"))
	})
}

func TestStatus_Unchanged(t *testing.T) {
	b := newBackend("ADMIN")
	srv := b.server(t)

	_, err := execute(t, srv.URL, "status", "7", "under_review")
	require.Error(t, err)
	assert.Equal(t, "failed to update status: Complaint is already UNDER_REVIEW", err.Error())
}

func TestCaps(t *testing.T) {
	b := newBackend("SENIOR_EMPLOYEE")
	srv := b.server(t)

	out, err := execute(t, srv.URL, "caps", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "Escalated To: Sam Senior")
	// 登录用户 ID 为 1，投诉升级给了 42
	assert.Contains(t, out, "✗ de-escalate")
	assert.Contains(t, out, "✗ see all escalations")
}

func TestEscalatedAndLoad(t *testing.T) {
	b := newBackend("ADMIN")
	srv := b.server(t)

	out, err := execute(t, srv.URL, "escalated")
	require.NoError(t, err)
	assert.Contains(t, out, "Noisy pipes")
	assert.Contains(t, out, "needs senior review")

	out, err = execute(t, srv.URL, "load")
	require.NoError(t, err)
	assert.Contains(t, out, "Sam Senior")
	assert.Contains(t, out, "50.0%")

	out, err = execute(t, srv.URL, "seniors")
	require.NoError(t, err)
	assert.Contains(t, out, "sam@example.com")
}

func TestLoad_RequiresSenior(t *testing.T) {
	b := newBackend("USER")
	srv := b.server(t)

	_, err := execute(t, srv.URL, "load")
	require.Error(t, err)
	assert.False(t, b.called("GET /api/senior/load-distribution"))
}

func TestHealth(t *testing.T) {
	b := newBackend("ADMIN")
	srv := b.server(t)

	out, err := execute(t, srv.URL, "health")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "UP"))
	assert.False(t, b.called("POST /auth/login"))
}
