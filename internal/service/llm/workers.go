package llm

import "strings"

// 各服务商默认每分钟请求数
var providerRPM = map[string]int{
	"openai":    60,
	"anthropic": 60,
	"google":    60,
	"deepseek":  60,
	"alibaba":   60,
}

const (
	utilizationTarget = 0.8
	callsPerTrace     = 3 // 生成、评分、可能的修正
	minWorkers        = 5
	maxWorkers        = 100
)

// ProviderOf 从模型名推断服务商，支持 "provider/model" 显式前缀
func ProviderOf(modelName string) string {
	name := strings.ToLower(modelName)
	if i := strings.Index(name, "/"); i > 0 {
		return name[:i]
	}
	switch {
	case strings.HasPrefix(name, "gpt"), strings.HasPrefix(name, "o1"), strings.HasPrefix(name, "o3"):
		return "openai"
	case strings.HasPrefix(name, "claude"):
		return "anthropic"
	case strings.HasPrefix(name, "gemini"):
		return "google"
	case strings.HasPrefix(name, "deepseek"):
		return "deepseek"
	case strings.HasPrefix(name, "qwen"):
		return "alibaba"
	}
	return "openai"
}

// AutoWorkers 按服务商限流估算并发 trace 数，rpm <= 0 时使用服务商默认值
func AutoWorkers(modelName string, rpm int) int {
	if rpm <= 0 {
		rpm = providerRPM[ProviderOf(modelName)]
		if rpm == 0 {
			rpm = 60
		}
	}
	workers := int(float64(rpm) * utilizationTarget / callsPerTrace)
	if workers < minWorkers {
		return minWorkers
	}
	if workers > maxWorkers {
		return maxWorkers
	}
	return workers
}
