// Package pipeline 把修正循环扇出到全部 trace 并汇总为数据集
package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ashwinyue/tracesmith/internal/model"
	"github.com/ashwinyue/tracesmith/internal/service/dataset"
	"github.com/ashwinyue/tracesmith/internal/service/generation"
	"github.com/ashwinyue/tracesmith/internal/service/grading"
	"github.com/ashwinyue/tracesmith/internal/service/ingest"
	"github.com/ashwinyue/tracesmith/internal/service/refine"
	"github.com/ashwinyue/tracesmith/internal/service/types"
)

// DefaultWorkers 未指定并发数时的默认值
const DefaultWorkers = 5

// Config 流水线配置，构造后不可变
type Config struct {
	DatasetType   model.DatasetType
	MaxIterations int
	MaxRetries    int
	RetryInterval time.Duration
	Workers       int
	Plan          bool
	SectionSize   int
	PassThreshold float64
}

// Progress 单条 trace 完成时的进度
type Progress struct {
	Completed int
	Passed    int
	Total     int
	Trace     *model.Trace
}

// Reporter 进度回调，调用被串行化
type Reporter func(p Progress)

// Pipeline 生成流水线
type Pipeline struct {
	cfg      Config
	planner  *generation.Planner
	loop     *refine.Loop
	resolver *ingest.Resolver
	reporter Reporter
	observer func(index int, from, to refine.State)
}

// Option 流水线选项
type Option func(*Pipeline)

// WithReporter 设置进度回调
func WithReporter(r Reporter) Option {
	return func(p *Pipeline) {
		p.reporter = r
	}
}

// WithResolver 设置文档解析器
func WithResolver(r *ingest.Resolver) Option {
	return func(p *Pipeline) {
		p.resolver = r
	}
}

// WithObserver 设置状态转移观察者
func WithObserver(fn func(index int, from, to refine.State)) Option {
	return func(p *Pipeline) {
		p.observer = fn
	}
}

// New 创建流水线，配置非法时返回 ConfigurationError
func New(generationSvc, gradingSvc types.Completer, cfg Config, opts ...Option) (*Pipeline, error) {
	if cfg.DatasetType == "" {
		cfg.DatasetType = model.DatasetTypeSFT
	}
	if !cfg.DatasetType.Valid() {
		return nil, &types.ConfigurationError{Field: "dataset_type", Reason: "must be sft or qa, got " + string(cfg.DatasetType)}
	}
	if cfg.Workers < 0 {
		return nil, &types.ConfigurationError{Field: "workers", Reason: "must not be negative"}
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}

	p := &Pipeline{
		cfg:      cfg,
		planner:  generation.NewPlanner(generationSvc),
		resolver: ingest.NewResolver(),
	}
	for _, opt := range opts {
		opt(p)
	}

	var gradeOpts []grading.Option
	if cfg.PassThreshold > 0 {
		gradeOpts = append(gradeOpts, grading.WithThreshold(cfg.PassThreshold))
	}

	loop, err := refine.NewLoop(
		generation.NewGenerator(generationSvc),
		grading.NewGrader(gradingSvc, gradeOpts...),
		refine.Config{
			MaxIterations: cfg.MaxIterations,
			MaxRetries:    cfg.MaxRetries,
			RetryInterval: cfg.RetryInterval,
			Observer:      p.observer,
		},
	)
	if err != nil {
		return nil, err
	}
	p.loop = loop
	return p, nil
}

// Config 返回流水线配置
func (p *Pipeline) Config() Config {
	return p.cfg
}

// GenerateFromSource 先解析文本、文件路径或 URL，再生成
func (p *Pipeline) GenerateFromSource(ctx context.Context, source string, traces int) (*dataset.Dataset, error) {
	if err := checkTraces(traces); err != nil {
		return nil, err
	}
	policy, err := p.resolver.Resolve(ctx, source)
	if err != nil {
		return nil, err
	}
	return p.Generate(ctx, policy, traces)
}

// Generate 并发运行 traces 个修正循环，结果按序号排列
// ctx 取消时返回已完成的部分数据集和 ctx.Err()
func (p *Pipeline) Generate(ctx context.Context, policy *model.Policy, traces int) (*dataset.Dataset, error) {
	if err := checkTraces(traces); err != nil {
		return nil, err
	}
	if policy == nil || policy.Text == "" {
		return nil, &types.ConfigurationError{Field: "policy", Reason: "must not be empty"}
	}

	plan := generation.DefaultPlan(traces)
	if p.cfg.Plan {
		planned, err := p.planner.Plan(ctx, policy, traces)
		if err != nil {
			return dataset.New(p.cfg.DatasetType, nil), err
		}
		plan = planned
	}
	log.Printf("[Pipeline] %d traces, %d categories, %d workers", traces, len(plan.Categories), p.cfg.Workers)

	sections, err := ingest.Sections(ctx, policy, p.cfg.SectionSize)
	if err != nil {
		log.Printf("Warning: failed to split policy into sections, using full text: %v", err)
		sections = []string{policy.Text}
	}

	categories := plan.Assign(traces)
	results := make([]*model.Trace, traces)
	progress := &tracker{reporter: p.reporter, total: traces}

	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for i := 0; i < traces; i++ {
		if ctx.Err() != nil {
			break
		}
		task := &refine.Task{
			Policy:   policy,
			Type:     p.cfg.DatasetType,
			Index:    i,
			Total:    traces,
			Category: categories[i],
			Focus:    sections[i%len(sections)],
		}
		g.Go(func() error {
			trace, err := p.loop.Run(ctx, task)
			if err != nil {
				// 已取消的 trace 没有终态，直接丢弃
				return nil
			}
			results[task.Index] = trace
			progress.done(trace)
			return nil
		})
	}
	_ = g.Wait()

	ds := dataset.New(p.cfg.DatasetType, results)
	if err := ctx.Err(); err != nil {
		log.Printf("Warning: generation canceled, %d/%d traces completed", ds.Len(), traces)
		return ds, err
	}
	return ds, nil
}

func checkTraces(traces int) error {
	if traces < 1 {
		return &types.ConfigurationError{Field: "traces", Reason: "must be at least 1"}
	}
	return nil
}

// tracker 串行化进度回调
type tracker struct {
	mu        sync.Mutex
	reporter  Reporter
	total     int
	completed int
	passed    int
}

func (t *tracker) done(trace *model.Trace) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed++
	if trace.Passed {
		t.passed++
	}
	if t.reporter != nil {
		t.reporter(Progress{Completed: t.completed, Passed: t.passed, Total: t.total, Trace: trace})
	}
}
