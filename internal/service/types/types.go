// Package types 定义共享的类型和接口
package types

import (
	"context"
)

// Completer 文本补全能力，生成服务与评分服务共用同一形态
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc 便于用函数实现 Completer
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete 实现 Completer
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
