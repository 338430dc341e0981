package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/resolveit/escalation-monitor/internal/access"
	"github.com/resolveit/escalation-monitor/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
}

func (rw *ResponseWriter) WriteHeader(statusCode int) {
	rw.StatusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (h *Handler) logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		duration := time.Since(start)
		slog.Info("已处理请求", "status", rw.StatusCode, "ip", r.RemoteAddr, "method", r.Method, "path", r.URL.Path, "duration", duration)
	})
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.internalServerError(w, r, fmt.Errorf("panic: %v", err))
				stackTrace := string(debug.Stack())
				fmt.Print(stackTrace) // 这里如果用 slog 的话会很乱
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// apiKey 没有配置 SERVER_API_KEY_HASH 时只允许只读请求
func (h *Handler) apiKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hash := h.config.Server.APIKeyHash
		if hash == "" {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			h.errorResponse(w, r, "API key is not configured; write operations are disabled")
			return
		}

		key := r.Header.Get("X-API-Key")
		if key == "" {
			h.errorResponse(w, r, "Missing API key")
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
			h.errorResponse(w, r, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequiredCapability 用监控进程登录用户的身份检查权限
func (h *Handler) RequiredCapability(guard func(access.Actor) access.GuardResult) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if res := guard(h.tracker.Actor()); !res.Allowed {
				h.errorResponse(w, r, res.Reason)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) complaint(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if id == "" {
			h.errorResponse(w, r, "Invalid complaint ID")
			return
		}

		complaint, err := h.backend.GetComplaint(r.Context(), domain.ID(id))
		if err != nil {
			h.upstreamError(w, r, err)
			return
		}

		actor := h.tracker.Actor()
		if !access.Evaluate(actor.Role, actor.UserID, complaint).CanView {
			h.errorResponse(w, r, "You are not authorized to view this complaint")
			return
		}

		ctx := context.WithValue(r.Context(), ComplaintCtx, complaint)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
