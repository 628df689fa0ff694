// Package llm 构建生成服务与评分服务使用的 ChatModel 及其文本补全适配
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	ecomodel "github.com/cloudwego/eino/components/model"

	"github.com/ashwinyue/tracesmith/internal/config"
)

// MissingAPIKeyError 服务商缺少 API Key
type MissingAPIKeyError struct {
	Provider string
	EnvVar   string
}

func (e *MissingAPIKeyError) Error() string {
	return fmt.Sprintf("api_key is required for provider: %s", e.Provider)
}

// Suggestion 给用户的修复建议
func (e *MissingAPIKeyError) Suggestion() string {
	return fmt.Sprintf("export %s=<your key> or set ai.%s.apiKey in the config file", e.EnvVar, providerConfigKey(e.Provider))
}

// endpoint 服务商连接参数
type endpoint struct {
	apiKey  string
	baseURL string
	envVar  string
}

// resolveEndpoint 按服务商选择 API Key 和 BaseURL
func resolveEndpoint(aiCfg *config.AIConfig) (*endpoint, error) {
	var ep endpoint
	switch strings.ToLower(aiCfg.Provider) {
	case "openai", "":
		ep = endpoint{apiKey: aiCfg.OpenAI.APIKey, baseURL: aiCfg.OpenAI.BaseURL, envVar: "OPENAI_API_KEY"}
	case "alibaba", "qwen", "dashscope":
		ep = endpoint{apiKey: aiCfg.Alibaba.APIKey, baseURL: aiCfg.Alibaba.BaseURL, envVar: "DASHSCOPE_API_KEY"}
		if ep.baseURL == "" {
			ep.baseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
		}
	case "deepseek":
		ep = endpoint{apiKey: aiCfg.DeepSeek.APIKey, baseURL: aiCfg.DeepSeek.BaseURL, envVar: "DEEPSEEK_API_KEY"}
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", aiCfg.Provider)
	}

	if ep.apiKey == "" {
		ep.apiKey = os.Getenv(ep.envVar)
	}
	if ep.apiKey == "" {
		return nil, &MissingAPIKeyError{Provider: aiCfg.Provider, EnvVar: ep.envVar}
	}
	return &ep, nil
}

// NewChatModel 创建 ChatModel，modelName 为空时使用 ai.model
func NewChatModel(ctx context.Context, aiCfg *config.AIConfig, modelName string) (ecomodel.BaseChatModel, error) {
	ep, err := resolveEndpoint(aiCfg)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = aiCfg.Model
	}
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}

	chatCfg := &openai.ChatModelConfig{
		APIKey:  ep.apiKey,
		BaseURL: ep.baseURL,
		Model:   modelName,
		Timeout: aiCfg.GetTimeout(),
	}
	if aiCfg.Temperature > 0 {
		temperature := aiCfg.Temperature
		chatCfg.Temperature = &temperature
	}
	return openai.NewChatModel(ctx, chatCfg)
}

func providerConfigKey(provider string) string {
	switch strings.ToLower(provider) {
	case "alibaba", "qwen", "dashscope":
		return "alibaba"
	case "deepseek":
		return "deepseek"
	}
	return "openai"
}
