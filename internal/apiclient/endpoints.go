package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/resolveit/escalation-monitor/internal/domain"
)

func complaintPath(format string, id domain.ID, rest ...any) string {
	args := append([]any{url.PathEscape(id.String())}, rest...)
	return fmt.Sprintf(format, args...)
}

type ActionResult struct {
	Message string `json:"message"`
}

func actionResult(res *Result) ActionResult {
	out := ActionResult{}
	if len(bytes.TrimSpace(res.Raw)) > 0 {
		_ = json.Unmarshal(res.Raw, &out)
	}
	if out.Message == "" {
		out.Message = res.Data
	}
	return out
}

func (c *Client) RequiringEscalation(ctx context.Context) ([]domain.EscalationCandidate, error) {
	res, err := c.do(ctx, Request{Method: http.MethodGet, Path: "/api/complaints/requiring-escalation", Auth: true})
	if err != nil {
		return nil, err
	}
	return NormalizeList[domain.EscalationCandidate](res)
}

func (c *Client) TriggerAutoEscalation(ctx context.Context) (ActionResult, error) {
	res, err := c.do(ctx, Request{Method: http.MethodPost, Path: "/api/escalation/trigger-auto", Auth: true})
	if err != nil {
		return ActionResult{}, err
	}
	return actionResult(res), nil
}

type EscalateRequest struct {
	SeniorEmployeeID domain.ID `json:"seniorEmployeeId"`
	Reason           string    `json:"reason"`
}

func (c *Client) EscalateComplaint(ctx context.Context, id domain.ID, req EscalateRequest) (ActionResult, error) {
	res, err := c.do(ctx, Request{
		Method: http.MethodPost,
		Path:   complaintPath("/api/complaints/%s/escalate", id),
		Body:   req,
		Auth:   true,
	})
	if err != nil {
		return ActionResult{}, err
	}
	return actionResult(res), nil
}

// DeescalateComplaint 没有原因时发送空对象
func (c *Client) DeescalateComplaint(ctx context.Context, id domain.ID, reason string) (ActionResult, error) {
	body := map[string]string{}
	if reason = strings.TrimSpace(reason); reason != "" {
		body["reason"] = reason
	}

	res, err := c.do(ctx, Request{
		Method: http.MethodPost,
		Path:   complaintPath("/api/senior/complaints/%s/deescalate", id),
		Body:   body,
		Auth:   true,
	})
	if err != nil {
		return ActionResult{}, err
	}
	return actionResult(res), nil
}

type StatusUpdate struct {
	Comment      string `json:"comment,omitempty"`
	InternalNote bool   `json:"internalNote"`
}

// UpdateComplaintStatus 后端响应里的投诉不使用，调用方需要重新拉取
func (c *Client) UpdateComplaintStatus(ctx context.Context, id domain.ID, status domain.ComplaintStatus, update StatusUpdate) error {
	update.Comment = strings.TrimSpace(update.Comment)

	_, err := c.do(ctx, Request{
		Method: http.MethodPut,
		Path:   complaintPath("/complaints/%s/status", id),
		Query:  url.Values{"status": []string{string(status)}},
		Body:   update,
		Auth:   true,
	})
	return err
}

func (c *Client) GetComplaint(ctx context.Context, id domain.ID) (*domain.Complaint, error) {
	res, err := c.do(ctx, Request{Method: http.MethodGet, Path: complaintPath("/complaints/%s", id), Auth: true})
	if err != nil {
		return nil, err
	}

	complaint, err := NormalizeObject[domain.Complaint](res, "complaint")
	if err != nil {
		return nil, err
	}
	return &complaint, nil
}

// EscalatedComplaints all 为 true 时返回全部已升级投诉（管理员视图），否则只返回升级给自己的
func (c *Client) EscalatedComplaints(ctx context.Context, all bool) ([]domain.Complaint, error) {
	path := "/api/senior/escalated/my"
	if all {
		path = "/api/senior/escalated/all"
	}

	res, err := c.do(ctx, Request{Method: http.MethodGet, Path: path, Auth: true})
	if err != nil {
		return nil, err
	}
	return NormalizeList[domain.Complaint](res)
}

func (c *Client) LoadDistribution(ctx context.Context) (*domain.LoadDistribution, error) {
	return c.loadStats(ctx, "/api/senior/load-distribution")
}

// EscalationStats 后端这个接口返回的也是高级员工的负载统计
func (c *Client) EscalationStats(ctx context.Context) (*domain.LoadDistribution, error) {
	return c.loadStats(ctx, "/api/escalation/stats")
}

func (c *Client) loadStats(ctx context.Context, path string) (*domain.LoadDistribution, error) {
	res, err := c.do(ctx, Request{Method: http.MethodGet, Path: path, Auth: true})
	if err != nil {
		return nil, err
	}

	ld, err := NormalizeObject[domain.LoadDistribution](res)
	if err != nil {
		return nil, err
	}
	if ld.SeniorEmployees == nil {
		ld.SeniorEmployees = []domain.SeniorLoad{}
	}
	return &ld, nil
}

func (c *Client) SeniorEmployees(ctx context.Context) ([]domain.User, error) {
	res, err := c.do(ctx, Request{Method: http.MethodGet, Path: "/api/users/senior-employees", Auth: true})
	if err != nil {
		return nil, err
	}
	return NormalizeList[domain.User](res, "users")
}

type LoginResponse struct {
	Token string
	User  domain.User
}

// Login 兼容 {token, user} 和 {success, token, data} 两种返回格式
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	res, err := c.do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   map[string]string{"email": email, "password": password},
	})
	if err != nil {
		return nil, err
	}

	var body struct {
		Token string `json:"token"`
		Data  *struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(res.Raw, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	token := body.Token
	if token == "" && body.Data != nil {
		token = body.Data.Token
	}
	if token == "" {
		return nil, fmt.Errorf("%w: login response without token", ErrUnexpectedShape)
	}

	user, err := NormalizeObject[domain.User](res, "user")
	if err != nil {
		return nil, err
	}
	return &LoginResponse{Token: token, User: user}, nil
}

func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	res, err := c.do(ctx, Request{Method: http.MethodGet, Path: "/auth/me", Auth: true})
	if err != nil {
		return nil, err
	}

	user, err := NormalizeObject[domain.User](res, "user")
	if err != nil {
		return nil, err
	}
	return &user, nil
}

type HealthStatus struct {
	Status string `json:"status"`
}

func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	res, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/actuator/health"})
	if err != nil {
		return HealthStatus{}, err
	}

	out := HealthStatus{Status: strings.TrimSpace(res.Data)}
	if len(res.Raw) > 0 {
		if err := json.Unmarshal(res.Raw, &out); err != nil {
			return HealthStatus{}, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
		}
	}
	return out, nil
}

func (c *Client) UploadAttachment(ctx context.Context, id domain.ID, filename string, content io.Reader) (ActionResult, error) {
	res, err := c.do(ctx, Request{
		Method: http.MethodPost,
		Path:   complaintPath("/complaints/%s/attachments", id),
		Form: &MultipartForm{
			Files: []FormFile{{Field: "file", Filename: filename, Content: content}},
		},
		Auth: true,
	})
	if err != nil {
		return ActionResult{}, err
	}
	return actionResult(res), nil
}

func (c *Client) DownloadAttachment(ctx context.Context, id, attachmentID domain.ID) ([]byte, string, error) {
	res, err := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   complaintPath("/complaints/%s/attachments/%s", id, url.PathEscape(attachmentID.String())),
		Auth:   true,
		Blob:   true,
	})
	if err != nil {
		return nil, "", err
	}
	return res.Blob, res.ContentType, nil
}
