package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashwinyue/tracesmith/internal/config"
	"github.com/ashwinyue/tracesmith/internal/model"
	"github.com/ashwinyue/tracesmith/internal/service/callback"
	"github.com/ashwinyue/tracesmith/internal/service/dataset"
	"github.com/ashwinyue/tracesmith/internal/service/demo"
	"github.com/ashwinyue/tracesmith/internal/service/ingest"
	"github.com/ashwinyue/tracesmith/internal/service/llm"
	"github.com/ashwinyue/tracesmith/internal/service/pipeline"
	"github.com/ashwinyue/tracesmith/internal/service/types"
)

const (
	demoTraces = 5
	demoOutput = "demo_output.jsonl"
)

// generateOptions generate 命令的覆盖参数
// 数值参数只在显式传入时覆盖配置，显式的 0 交给 Validate 拒绝
type generateOptions struct {
	traces          int
	format          string
	output          string
	model           string
	gradingModel    string
	workers         int
	maxIterations   int
	noPlan          bool
	includeMetadata bool
}

// apply 把命令行参数覆盖到配置上，changed 判断参数是否在命令行中出现
func (o generateOptions) apply(cfg *config.Config, changed func(name string) bool) {
	if changed("traces") {
		cfg.Generation.Traces = o.traces
	}
	if o.format != "" {
		cfg.Generation.DatasetType = o.format
	}
	if o.model != "" {
		cfg.AI.Model = o.model
	}
	if o.gradingModel != "" {
		cfg.AI.GradingModel = o.gradingModel
	}
	if changed("workers") {
		cfg.Generation.Workers = o.workers
	}
	if changed("max-iterations") {
		cfg.Generation.MaxIterations = o.maxIterations
	}
	if o.noPlan {
		cfg.Generation.Plan = false
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	genOpts.apply(cfg, cmd.Flags().Changed)
	if err := cfg.Validate(); err != nil {
		return err
	}
	return generateAndSave(cmd, cfg, args[0], genOpts.output, dataset.SaveOptions{IncludeMetadata: genOpts.includeMetadata})
}

func runDemo(cmd *cobra.Command, args []string) error {
	policy, err := demo.Get(demoPolicy)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Generation.Traces = demoTraces
	cfg.Generation.DatasetType = string(model.DatasetTypeSFT)
	if err := cfg.Validate(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Running demo with the built-in %q policy (%d SFT traces)\n", demoPolicy, demoTraces)
	return generateAndSave(cmd, cfg, policy, demoOutput, dataset.SaveOptions{})
}

// generateAndSave 生成并写出数据集，被中断时仍保存已完成的部分
func generateAndSave(cmd *cobra.Command, cfg *config.Config, source, output string, opts dataset.SaveOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	typ, err := model.ParseDatasetType(cfg.Generation.DatasetType)
	if err != nil {
		return err
	}

	genSvc, gradeSvc, usage, err := newCompleters(ctx, cfg)
	if err != nil {
		return err
	}

	workers := cfg.Generation.Workers
	if workers == 0 {
		workers = llm.AutoWorkers(cfg.AI.Model, cfg.AI.RequestsPerMinute)
	}

	p, err := pipeline.New(genSvc, gradeSvc, pipelineConfig(cfg, typ, workers),
		pipeline.WithReporter(logProgress),
		pipeline.WithResolver(ingest.NewResolver(ingest.WithMinWords(cfg.Generation.MinPolicyWords))),
	)
	if err != nil {
		return err
	}

	log.Printf("[Generate] traces=%d type=%s model=%s grading=%s workers=%d",
		cfg.Generation.Traces, typ, cfg.AI.Model, cfg.AI.GetGradingModel(), workers)
	start := time.Now()

	ds, genErr := p.GenerateFromSource(ctx, source, cfg.Generation.Traces)
	if ds == nil || ds.Len() == 0 {
		if genErr == nil {
			genErr = errors.New("no traces were generated")
		}
		return genErr
	}

	if output == "" {
		output = filepath.Join(cfg.Generation.OutputDir, dataset.DefaultFilename(typ, time.Now()))
	}
	path, written, err := ds.Save(output, typ, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nSaved %d traces to %s in %s\n", written, path, time.Since(start).Round(time.Second))
	if skipped := ds.Len() - written; skipped > 0 {
		fmt.Fprintf(out, "%d trace(s) without content were not written\n", skipped)
	}
	fmt.Fprintln(out, ds.Summary().String())
	u := usage.Usage()
	fmt.Fprintf(out, "Model calls: %d (errors: %d), tokens: %d prompt + %d completion = %d\n",
		u.Calls, u.Errors, u.PromptTokens, u.CompletionTokens, u.TotalTokens())

	if genErr != nil {
		fmt.Fprintln(out, "Generation was interrupted; the file contains the completed traces only.")
	}
	return genErr
}

// newCompleters 构建生成与评分服务，两者共享同一个限流器和日志回调
func newCompleters(ctx context.Context, cfg *config.Config) (types.Completer, types.Completer, *callback.Logger, error) {
	genModel, err := llm.NewChatModel(ctx, &cfg.AI, cfg.AI.Model)
	if err != nil {
		return nil, nil, nil, err
	}
	gradeModel, err := llm.NewChatModel(ctx, &cfg.AI, cfg.AI.GetGradingModel())
	if err != nil {
		return nil, nil, nil, err
	}

	limiter := llm.NewLimiter(cfg.AI.RequestsPerMinute)
	logger := callback.NewLogger(cfg.App.Debug)

	genSvc := llm.NewChatCompleter("generation", genModel, llm.WithLimiter(limiter), llm.WithHandlers(logger))
	gradeSvc := llm.NewChatCompleter("grading", gradeModel, llm.WithLimiter(limiter), llm.WithHandlers(logger))
	return genSvc, gradeSvc, logger, nil
}

func pipelineConfig(cfg *config.Config, typ model.DatasetType, workers int) pipeline.Config {
	return pipeline.Config{
		DatasetType:   typ,
		MaxIterations: cfg.Generation.MaxIterations,
		MaxRetries:    cfg.AI.MaxRetries,
		Workers:       workers,
		Plan:          cfg.Generation.Plan,
		SectionSize:   cfg.Generation.SectionSize,
		PassThreshold: cfg.Generation.PassThreshold,
	}
}

func logProgress(p pipeline.Progress) {
	status := "failed"
	if p.Trace != nil && p.Trace.Passed {
		status = "passed"
	}
	iterations := 0
	if p.Trace != nil {
		iterations = p.Trace.IterationsUsed
	}
	log.Printf("[Progress] %d/%d traces done (%d passed), last: %s after %d iteration(s)",
		p.Completed, p.Total, p.Passed, status, iterations)
}

// suggestionFor 常见失败的修复建议
func suggestionFor(err error) string {
	var keyErr *llm.MissingAPIKeyError
	switch {
	case errors.As(err, &keyErr):
		return keyErr.Suggestion()
	case llm.IsRateLimitError(err):
		return "the provider is rate limiting requests; retry with fewer --workers or lower ai.requestsPerMinute"
	case types.IsIngestion(err):
		return "check that the source path or URL exists and contains enough text"
	case types.IsConfiguration(err):
		return "check the command flags and the config file"
	}
	return ""
}
