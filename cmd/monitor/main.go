package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/resolveit/escalation-monitor/internal/access"
	"github.com/resolveit/escalation-monitor/internal/apiclient"
	"github.com/resolveit/escalation-monitor/internal/cache"
	"github.com/resolveit/escalation-monitor/internal/config"
	"github.com/resolveit/escalation-monitor/internal/domain"
	"github.com/resolveit/escalation-monitor/internal/handler"
	"github.com/resolveit/escalation-monitor/internal/metrics"
	"github.com/resolveit/escalation-monitor/internal/notify"
	"github.com/resolveit/escalation-monitor/internal/poller"
	"github.com/resolveit/escalation-monitor/internal/repository"
	"github.com/resolveit/escalation-monitor/internal/session"
	"github.com/resolveit/escalation-monitor/internal/tracker"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadMonitorConfig()
	if err != nil {
		slog.Error("无法加载配置文件", "error", err)
		return
	}

	/**********************************************
	 * 创建 logger
	 **********************************************/
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	/**********************************************
	 * 连接数据库（可选，用于保存快照历史和操作记录）
	 **********************************************/
	var repo *repository.Repository
	if cfg.Database.DSN != "" {
		dbpool, err := sql.Open("pgx", cfg.Database.DSN)
		if err != nil {
			logger.Error("无法创建数据库连接池", "error", err)
			return
		}
		defer dbpool.Close()

		dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
		defer cancel()

		// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
		if err := dbpool.PingContext(ctx); err != nil {
			logger.Error("无法连接到数据库", "error", err)
			return
		}

		repo = repository.NewRepository(cfg, dbpool)
		if err := repo.Migrate(); err != nil {
			logger.Error("无法初始化数据表", "error", err)
			return
		}
	} else {
		logger.Warn("未配置数据库，不保存快照历史")
	}

	/**********************************************
	 * 连接 redis
	 **********************************************/
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Redis.ConnectTimeout)*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Error("无法连接到 redis", "error", err)
		return
	}
	redisTimeout := time.Duration(cfg.Redis.OperationTimeout) * time.Second

	/**********************************************
	 * 连接 rabbitmq（可选，用于发送升级通知邮件）
	 **********************************************/
	var publisher *notify.Publisher
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m, err := metrics.New(reg)
	if err != nil {
		logger.Error("无法注册监控指标", "error", err)
		return
	}

	if cfg.RabbitMQ.DSN != "" {
		conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
		if err != nil {
			logger.Error("无法连接到 rabbitmq", "error", err)
			return
		}
		defer conn.Close()

		// 建立通道
		ch, err := conn.Channel()
		if err != nil {
			logger.Error("无法建立通道", "error", err)
			return
		}
		defer ch.Close()

		// 声明队列
		_, err = ch.QueueDeclare(
			cfg.RabbitMQ.Queue,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			logger.Error("无法声明队列", "error", err)
			return
		}

		publisher = notify.NewPublisher(ch, cfg.RabbitMQ.Queue, cfg.Email.Recipients,
			time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second,
			notify.WithDashboardURL(cfg.Email.DashboardURL),
			notify.WithLogger(logger),
			notify.WithSentCounter(m.NoticesSent),
		)
	} else {
		logger.Warn("未配置 rabbitmq，不发送升级通知")
	}

	/**********************************************
	 * 登录后端
	 **********************************************/
	sess := session.New(session.NewRedisStore(rdb, redisTimeout), cfg.Backend.Email)
	client := apiclient.New(cfg.Backend.BaseURL, time.Duration(cfg.Backend.RequestTimeout)*time.Second, sess, apiclient.WithLogger(logger))

	loginCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Backend.RequestTimeout)*time.Second)
	defer cancel()

	// 优先复用 redis 中保存的 token，失效时重新登录
	if err := sess.Resume(loginCtx, client); err != nil {
		if !errors.Is(err, session.ErrNotLoggedIn) {
			logger.Warn("无法恢复会话，重新登录", "error", err)
		}
		if err := sess.Login(loginCtx, client, cfg.Backend.Password); err != nil {
			logger.Error("无法登录后端", "email", cfg.Backend.Email, "error", tracker.UserMessage(err))
			return
		}
	}
	logger.Info("已登录后端", "user_id", sess.UserID(), "role", sess.Role())

	/**********************************************
	 * 创建 tracker 并注册回调
	 **********************************************/
	tr, err := tracker.New(client, sess, tracker.WithOverdueDays(cfg.Escalation.OverdueDays), tracker.WithLogger(logger))
	if err != nil {
		logger.Error("无法创建 tracker", "error", err)
		return
	}
	if guard := access.CanTriggerAutoEscalation(tr.Actor()); !guard.Allowed {
		logger.Warn("当前用户无法拉取待升级投诉列表", "role", sess.Role(), "reason", guard.Reason)
	}

	snapshotCache := cache.NewSnapshotCache(rdb, time.Duration(cfg.Redis.SnapshotTTL)*time.Second, redisTimeout)
	if cached, err := snapshotCache.Load(context.Background()); err == nil {
		if tr.Restore(*cached) {
			logger.Info("已从缓存恢复快照", "total", cached.Stats.Total, "fetched_at", cached.FetchedAt)
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Warn("无法读取缓存的快照", "error", err)
	}

	tr.OnApply(m.ObserveSnapshot)
	tr.OnAction(m.ObserveAction)
	tr.OnApply(func(_, next domain.Snapshot) {
		if err := snapshotCache.Save(context.Background(), next); err != nil {
			logger.Warn("无法缓存快照", "seq", next.Seq, "error", err)
		}
	})
	if repo != nil {
		tr.OnApply(func(_, next domain.Snapshot) {
			if _, err := repo.InsertSnapshot(next); err != nil {
				logger.Warn("无法保存快照历史", "seq", next.Seq, "error", err)
			}
		})
		tr.OnAction(func(action domain.EscalationAction) {
			if err := repo.InsertAction(&action); err != nil {
				logger.Warn("无法保存操作记录", "type", action.Type, "error", err)
			}
		})
	}
	if publisher != nil {
		tr.OnApply(publisher.Notify)
	}

	/**********************************************
	 * 启动轮询
	 **********************************************/
	p := poller.New(tr, time.Duration(cfg.Poll.Interval)*time.Second, poller.RealClock, logger,
		poller.WithBeforeRefresh(func(ctx context.Context) error {
			return sess.Ensure(ctx, client, cfg.Backend.Password, time.Now())
		}),
		poller.WithObserver(m.ObserveRefresh),
	)
	handle := p.Start(context.Background())

	/**********************************************
	 * 创建 handler
	 **********************************************/
	var history handler.History
	if repo != nil {
		history = repo
	}

	h, err := handler.NewHandler(cfg, tr, client, handle, history, m.Handler())
	if err != nil {
		logger.Error("无法创建 handler", "error", err)
		handle.Stop()
		return
	}
	h.RegisterRoutes()
	if cfg.Server.APIKeyHash == "" {
		logger.Warn("未配置 SERVER_API_KEY_HASH，本地 API 只开放只读接口")
	}

	/**********************************************
	 * 启动 HTTP 服务器
	 **********************************************/
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      h.Mux,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("正在启动服务器...", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("无法启动服务器", slog.String("error", err.Error()))
			return
		}
	}()

	<-quit
	logger.Info("正在关闭服务器...")

	// 先停止轮询，再丢弃之后返回的响应
	handle.Stop()
	tr.Detach()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("关闭服务器失败", slog.String("error", err.Error()))
	}
	logger.Info("服务器已成功关闭")
}
