package llm

import (
	"context"
	"errors"
	"net"
	"strings"
)

// 可重试错误的特征文本，覆盖限流、超时和服务端临时故障
var transientMarkers = []string{
	"429",
	"rate limit",
	"rate_limit",
	"too many requests",
	"timeout",
	"timed out",
	"deadline exceeded",
	"temporarily",
	"overloaded",
	"502",
	"503",
	"504",
	"connection reset",
	"connection refused",
	"unexpected eof",
}

// IsTransientError 判断服务错误是否值得重试
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// IsRateLimitError 判断是否为限流错误
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") || strings.Contains(msg, "too many requests")
}
