package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	ecomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/ashwinyue/tracesmith/internal/service/types"
)

// ErrEmptyResponse 模型返回空内容
var ErrEmptyResponse = errors.New("empty response from model")

// ChatCompleter 把 ChatModel 适配为 types.Completer
type ChatCompleter struct {
	name     string
	chat     ecomodel.BaseChatModel
	system   string
	limiter  *rate.Limiter
	handlers []callbacks.Handler
}

// Option ChatCompleter 选项
type Option func(*ChatCompleter)

// WithSystemPrompt 每次调用附带的系统提示词
func WithSystemPrompt(system string) Option {
	return func(c *ChatCompleter) { c.system = system }
}

// WithLimiter 共享的限流器，多个 Completer 可共用同一个
func WithLimiter(l *rate.Limiter) Option {
	return func(c *ChatCompleter) { c.limiter = l }
}

// WithHandlers 调用级回调处理器
func WithHandlers(handlers ...callbacks.Handler) Option {
	return func(c *ChatCompleter) { c.handlers = append(c.handlers, handlers...) }
}

// NewChatCompleter 创建 Completer，name 用于日志和错误信息
func NewChatCompleter(name string, chat ecomodel.BaseChatModel, opts ...Option) *ChatCompleter {
	c := &ChatCompleter{name: name, chat: chat}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewLimiter 按每分钟请求数创建限流器，rpm <= 0 时不限流
func NewLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), burst)
}

// Complete 实现 types.Completer
func (c *ChatCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", &types.ServiceError{Service: c.name, Transient: true, Err: err}
		}
	}

	messages := make([]*schema.Message, 0, 2)
	if c.system != "" {
		messages = append(messages, schema.SystemMessage(c.system))
	}
	messages = append(messages, schema.UserMessage(prompt))

	ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      c.name,
		Type:      "ChatModel",
		Component: components.ComponentOfChatModel,
	}, c.handlers...)

	resp, err := c.chat.Generate(ctx, messages)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &types.ServiceError{Service: c.name, Transient: IsTransientError(err), Err: err}
	}

	content := ""
	if resp != nil {
		content = strings.TrimSpace(resp.Content)
	}
	if content == "" {
		return "", &types.ServiceError{Service: c.name, Transient: true, Err: ErrEmptyResponse}
	}
	return content, nil
}
