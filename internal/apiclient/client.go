// Package apiclient talks to the ResolveIt backend over REST/JSON and turns
// every response into either a Result or an *APIError.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultTimeout = 30 * time.Second

// TokenSource 每次请求时都会调用，客户端自身不缓存 token
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(baseURL string, timeout time.Duration, tokens TokenSource, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type FormFile struct {
	Field    string
	Filename string
	Content  io.Reader
}

type MultipartForm struct {
	Fields map[string]string
	Files  []FormFile
}

type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Form   *MultipartForm
	Auth   bool
	Blob   bool
}

type Result struct {
	Status      int
	Success     bool
	ContentType string
	// JSON 响应体原样保留，由 Normalize 系列函数统一解析
	Raw  json.RawMessage
	Data string
	Blob []byte
}

func (c *Client) Do(ctx context.Context, req Request) (*Result, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("X-Request-ID", requestID)
	logger := c.logger.With("method", req.Method, "path", req.Path, "request_id", requestID)
	logger.Debug("发送请求")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logger.Warn("请求失败", "error", err, "duration", time.Since(start))
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Warn("读取响应失败", "error", err)
		return nil, networkError(err)
	}
	logger.Debug("收到响应", "status", resp.StatusCode, "duration", time.Since(start))

	return parseResponse(resp, body, req.Blob)
}

func (c *Client) newHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.Form != nil:
		buf, ct, err := encodeMultipart(req.Form)
		if err != nil {
			return nil, err
		}
		body, contentType = buf, ct
	case req.Body != nil && req.Method != http.MethodGet:
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body, contentType = bytes.NewReader(data), "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")

	if req.Auth && c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("read token: %w", err)
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	return httpReq, nil
}

func encodeMultipart(form *MultipartForm) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	for k, v := range form.Fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	for _, f := range form.Files {
		part, err := w.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, "", fmt.Errorf("copy %s: %w", f.Filename, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return buf, w.FormDataContentType(), nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "application/json")
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func parseResponse(resp *http.Response, body []byte, blob bool) (*Result, error) {
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	contentType := resp.Header.Get("Content-Type")

	if blob {
		if !ok {
			apiErr := httpError(resp, body, true)
			if apiErr.Message == defaultMessage(resp.StatusCode) {
				apiErr.Message = fmt.Sprintf("Download failed: %d", resp.StatusCode)
			}
			return nil, apiErr
		}
		return &Result{Status: resp.StatusCode, Success: true, ContentType: contentType, Blob: body}, nil
	}

	if resp.StatusCode == http.StatusNoContent {
		return &Result{Status: resp.StatusCode, Success: true}, nil
	}

	if !ok {
		return nil, httpError(resp, body, isJSON(contentType))
	}

	if !isJSON(contentType) {
		return &Result{Status: resp.StatusCode, Success: true, ContentType: contentType, Data: string(body)}, nil
	}

	res := &Result{Status: resp.StatusCode, Success: true, ContentType: contentType, Raw: json.RawMessage(body)}

	var envelope struct {
		Success *bool `json:"success"`
	}
	// 响应体可能是数组，解析失败时保持 Success 为 true
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Success != nil {
		res.Success = *envelope.Success
	}

	return res, nil
}

// Err 把 2xx 但 success=false 的响应转换成错误
func (r *Result) Err() error {
	if r.Success {
		return nil
	}

	data, _ := decodeErrorBody(r.Raw, true)
	return &APIError{
		Status:     r.Status,
		StatusText: http.StatusText(r.Status),
		Data:       data,
		Message:    messageFrom(data, "Request was not successful"),
	}
}

func (c *Client) do(ctx context.Context, req Request) (*Result, error) {
	res, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return res, nil
}
