package refine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/ashwinyue/tracesmith/internal/model"
	"github.com/ashwinyue/tracesmith/internal/service/generation"
	"github.com/ashwinyue/tracesmith/internal/service/types"
)

const (
	// DefaultMaxIterations 默认最大迭代次数
	DefaultMaxIterations = 3
	// DefaultMaxRetries 可重试错误的默认重试次数，不消耗迭代
	DefaultMaxRetries = 3
	// DefaultRetryInterval 首次重试等待时间
	DefaultRetryInterval = 500 * time.Millisecond
)

// CandidateGenerator 候选生成
type CandidateGenerator interface {
	Generate(ctx context.Context, req *generation.Request) (model.Content, error)
}

// CandidateGrader 候选评分
type CandidateGrader interface {
	Grade(ctx context.Context, policy *model.Policy, datasetType model.DatasetType, candidate model.Content) (*model.Verdict, error)
}

// Config 循环配置
type Config struct {
	MaxIterations int
	MaxRetries    int
	RetryInterval time.Duration
	// Observer 每次状态转移时回调，可为空
	Observer func(index int, from, to State)
}

// Task 单条 trace 的输入
type Task struct {
	Policy   *model.Policy
	Type     model.DatasetType
	Index    int
	Total    int
	Category generation.Category
	Focus    string
}

// Loop 修正循环，本身无状态，可被多个 trace 并发使用
type Loop struct {
	generator CandidateGenerator
	grader    CandidateGrader
	cfg       Config
}

// NewLoop 创建修正循环
func NewLoop(generator CandidateGenerator, grader CandidateGrader, cfg Config) (*Loop, error) {
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MaxIterations < 1 {
		return nil, &types.ConfigurationError{Field: "max_iterations", Reason: "must be at least 1"}
	}
	if cfg.MaxRetries < 0 {
		return nil, &types.ConfigurationError{Field: "max_retries", Reason: "must not be negative"}
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	return &Loop{generator: generator, grader: grader, cfg: cfg}, nil
}

// run 单条 trace 的运行状态
type run struct {
	task      *Task
	state     State
	iteration int
	feedback  string
	candidate *model.Content
	verdict   *model.Verdict
}

// Run 执行状态机直到 PASSED 或 EXHAUSTED
// 只有 ctx 取消时返回错误，此时 trace 应被丢弃
func (l *Loop) Run(ctx context.Context, task *Task) (*model.Trace, error) {
	r := &run{task: task, state: StateGenerating, iteration: 1}

	for !r.state.Terminal() {
		switch r.state {
		case StateGenerating:
			content, err := l.generate(ctx, r)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				log.Printf("Warning: trace %d generation failed on iteration %d: %v", task.Index, r.iteration, err)
				r.verdict = generationFailed(r.verdict, err)
				l.transition(r, StateExhausted)
				continue
			}
			r.candidate = &content
			l.transition(r, Next(r.state, false, r.iteration, l.cfg.MaxIterations))

		case StateGrading:
			verdict, err := l.grade(ctx, r)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				log.Printf("Warning: trace %d grading failed on iteration %d: %v", task.Index, r.iteration, err)
				verdict = &model.Verdict{
					Scores:   map[string]float64{},
					Feedback: fmt.Sprintf("grading service unavailable: %v", err),
				}
			}
			r.verdict = verdict
			l.transition(r, Next(r.state, verdict.Passed, r.iteration, l.cfg.MaxIterations))

		case StateRefining:
			r.feedback = r.verdict.Feedback
			r.iteration++
			l.transition(r, Next(r.state, false, r.iteration, l.cfg.MaxIterations))
		}
	}

	trace := &model.Trace{
		Index:           task.Index,
		DatasetType:     task.Type,
		Category:        task.Category.Name,
		Focus:           task.Focus,
		Passed:          r.state == StatePassed,
		IterationsUsed:  r.iteration,
		GradingFeedback: r.verdict,
	}
	if r.candidate != nil {
		trace.Content = *r.candidate
	}
	return trace, nil
}

func (l *Loop) transition(r *run, to State) {
	if l.cfg.Observer != nil {
		l.cfg.Observer(r.task.Index, r.state, to)
	}
	r.state = to
}

func (l *Loop) generate(ctx context.Context, r *run) (model.Content, error) {
	req := &generation.Request{
		Policy:        r.task.Policy,
		Type:          r.task.Type,
		Index:         r.task.Index,
		Total:         r.task.Total,
		Category:      r.task.Category,
		Focus:         r.task.Focus,
		PriorFeedback: r.feedback,
		Previous:      r.candidate,
	}
	return retry(ctx, l, r.task.Index, func() (model.Content, error) {
		return l.generator.Generate(ctx, req)
	})
}

func (l *Loop) grade(ctx context.Context, r *run) (*model.Verdict, error) {
	return retry(ctx, l, r.task.Index, func() (*model.Verdict, error) {
		return l.grader.Grade(ctx, r.task.Policy, r.task.Type, *r.candidate)
	})
}

// retry 可重试错误按指数退避重试，其他错误立即返回
func retry[T any](ctx context.Context, l *Loop, index int, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.cfg.RetryInterval
	b.MaxInterval = 30 * l.cfg.RetryInterval

	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		res, err := op()
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil || !types.IsTransient(err) {
			return res, backoff.Permanent(err)
		}
		if attempt <= l.cfg.MaxRetries {
			log.Printf("[Refine] trace %d transient error (attempt %d), retrying: %v", index, attempt, err)
		}
		return res, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(l.cfg.MaxRetries+1)))
}

// generationFailed 生成失败时的终态反馈，保留上一次评分的分数
func generationFailed(last *model.Verdict, err error) *model.Verdict {
	v := &model.Verdict{
		Scores:   map[string]float64{},
		Feedback: fmt.Sprintf("generation failed: %v", err),
	}
	if last != nil {
		v.Scores = last.Scores
		v.Issues = last.Issues
	}
	return v
}
