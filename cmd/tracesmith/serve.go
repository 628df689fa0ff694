package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ashwinyue/tracesmith/internal/database"
	"github.com/ashwinyue/tracesmith/internal/handler"
	"github.com/ashwinyue/tracesmith/internal/model"
	"github.com/ashwinyue/tracesmith/internal/repository"
	"github.com/ashwinyue/tracesmith/internal/router"
	"github.com/ashwinyue/tracesmith/internal/service/dataset"
	"github.com/ashwinyue/tracesmith/internal/service/ingest"
	"github.com/ashwinyue/tracesmith/internal/service/job"
	"github.com/ashwinyue/tracesmith/internal/service/llm"
	"github.com/ashwinyue/tracesmith/internal/service/pipeline"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// 设置 Gin 模式
	gin.SetMode(cfg.Server.Mode)

	// 数据集存储：启用数据库时落库，否则保存在内存
	var store dataset.Store
	db, err := database.New(cfg)
	switch {
	case errors.Is(err, database.ErrDisabled):
		log.Println("Database disabled, datasets are kept in memory")
		store = dataset.NewMemoryStore()
	case err != nil:
		return fmt.Errorf("failed to init database: %w", err)
	default:
		defer db.Close()
		log.Printf("Database connected: %s", cfg.Database.DBName)
		store = repository.NewRepositories(db.DB).Dataset
	}

	// 任务状态：启用 Redis 时同步一份，便于重启后查询
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		pingCtx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
	}

	// 模型在启动时构建一次，缺少 API Key 时直接失败
	genSvc, gradeSvc, _, err := newCompleters(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	workers := cfg.Generation.Workers
	if workers == 0 {
		workers = llm.AutoWorkers(cfg.AI.Model, cfg.AI.RequestsPerMinute)
	}
	resolver := ingest.NewResolver(ingest.WithMinWords(cfg.Generation.MinPolicyWords))

	build := func(req *job.Request, reporter pipeline.Reporter) (job.Generator, error) {
		if req.MaxIterations == 0 {
			req.MaxIterations = cfg.Generation.MaxIterations
		}
		pcfg := pipelineConfig(cfg, model.DatasetType(req.DatasetType), workers)
		pcfg.MaxIterations = req.MaxIterations
		return pipeline.New(genSvc, gradeSvc, pcfg, pipeline.WithReporter(reporter), pipeline.WithResolver(resolver))
	}

	manager := job.NewManager(redisClient)
	datasets := dataset.NewService(store)
	jobs := job.NewService(manager, datasets, build, cfg.AI.Model)

	r := router.SetupRouter(handler.NewHandlers(jobs, datasets), &cfg.Server)
	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	log.Println("Shutting down server...")
	return shutdown(srv, manager)
}

// shutdown 先停止接收请求，再取消并等待运行中的任务
func shutdown(srv *http.Server, manager *job.Manager) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	manager.Shutdown(ctx)

	log.Println("Server exited")
	return nil
}
