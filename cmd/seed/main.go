package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/resolveit/escalation-monitor/internal/config"
	"github.com/resolveit/escalation-monitor/internal/domain"
	"github.com/resolveit/escalation-monitor/internal/repository"
	"github.com/resolveit/escalation-monitor/internal/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var actionTypes = []domain.ActionType{
	domain.ActionTriggerAuto,
	domain.ActionEscalate,
	domain.ActionDeescalate,
	domain.ActionUpdateStatus,
}

func main() {
	var op int
	var n int

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机快照历史, 2: 插入随机操作记录)")
	flag.IntVar(&n, "n", 5, "要插入的记录数量")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.Database.DSN == "" {
		logger.Error("未配置 DATABASE_DSN")
		os.Exit(1)
	}

	// 创建数据库连接池
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

	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)
	if err := repo.Migrate(); err != nil {
		logger.Error("无法初始化数据表", "error", err)
		return
	}

	if n <= 0 {
		logger.Error("请输入合法的记录数量")
		return
	}

	switch op {
	case 0:
		logger.Error("未指定操作")
	case 1:
		// 快照按时间顺序插入，间隔为一个轮询周期
		interval := time.Duration(cfg.Poll.Interval) * time.Second
		start := time.Now().Add(-time.Duration(n) * interval).UTC()

		cnt := 0
		for i := 0; i < n; i++ {
			candidates := utils.GenerateRandomCandidates(rand.Intn(30), cfg.Escalation.OverdueDays)
			snapshot := domain.Snapshot{
				Seq:        uint64(i + 1),
				FetchedAt:  start.Add(time.Duration(i) * interval),
				Candidates: candidates,
				Stats:      domain.ComputeStats(candidates, cfg.Escalation.OverdueDays),
			}
			if _, err := repo.InsertSnapshot(snapshot); err != nil {
				logger.Error("无法插入快照", "error", err)
				continue
			}
			cnt++
		}

		logger.Info("插入快照成功", slog.Int("count", cnt))
	case 2:
		cnt := 0
		for i := 0; i < n; i++ {
			actor := utils.GenerateRandomUser(domain.RoleAdmin)
			action := &domain.EscalationAction{
				Type:      actionTypes[rand.Intn(len(actionTypes))],
				ActorID:   actor.ID,
				Succeeded: rand.Intn(4) != 0,
			}
			if action.Type != domain.ActionTriggerAuto {
				action.ComplaintID = domain.ID(fmt.Sprint(rand.Intn(1000) + 1))
			}
			action.Detail = string(action.Type) + " " + utils.GenerateRandomID(4, 2)
			if !action.Succeeded {
				action.Error = "Request failed with status 500"
			}

			if err := repo.InsertAction(action); err != nil {
				logger.Error("无法插入操作记录", "error", err)
				continue
			}
			cnt++
		}

		logger.Info("插入操作记录成功", slog.Int("count", cnt))
	default:
		logger.Error("指定的操作非法")
	}
}
