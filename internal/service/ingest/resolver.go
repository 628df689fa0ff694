// Package ingest 把字面文本、本地文件或 URL 解析为 Policy
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ashwinyue/tracesmith/internal/model"
	"github.com/ashwinyue/tracesmith/internal/service/types"
)

const (
	// DefaultMinWords 最少词数
	DefaultMinWords = 10
	maxTitleRunes   = 80
	maxFetchBytes   = 20 << 20
)

var (
	// ErrEmptyPolicy 解析结果为空
	ErrEmptyPolicy = errors.New("policy text is empty")
	// ErrPolicyTooShort 词数不足
	ErrPolicyTooShort = errors.New("policy too short")

	blankLines = regexp.MustCompile(`\n{3,}`)
)

// Resolver 文档解析器
type Resolver struct {
	client   *http.Client
	minWords int
}

// Option Resolver 选项
type Option func(*Resolver)

// WithHTTPClient 自定义抓取 URL 的 HTTP 客户端
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) { r.client = client }
}

// WithMinWords 最少词数，<= 0 时不检查
func WithMinWords(n int) Option {
	return func(r *Resolver) { r.minWords = n }
}

// NewResolver 创建解析器
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		client:   &http.Client{Timeout: 30 * time.Second},
		minWords: DefaultMinWords,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve 解析 source：URL、已存在的文件路径，否则视为字面文本
func (r *Resolver) Resolve(ctx context.Context, source string) (*model.Policy, error) {
	var (
		text   string
		format string
		err    error
	)

	switch {
	case isURL(source):
		text, format, err = r.fetch(ctx, source)
	case isFile(source):
		text, format, err = r.readFile(ctx, source)
	default:
		text, format = source, FormatText
	}
	if err != nil {
		return nil, &types.IngestionError{Source: source, Err: err}
	}

	return r.build(text, source, format)
}

// FromText 从字面文本构建 Policy，执行同样的规范化和校验
func (r *Resolver) FromText(text, source string) (*model.Policy, error) {
	return r.build(text, source, FormatText)
}

func (r *Resolver) build(text, source, format string) (*model.Policy, error) {
	text = Normalize(text)
	if text == "" {
		return nil, &types.IngestionError{Source: source, Err: ErrEmptyPolicy}
	}

	policy := model.NewPolicy(text, source)
	words := policy.WordCount()
	if r.minWords > 0 && words < r.minWords {
		return nil, &types.IngestionError{
			Source: source,
			Err:    fmt.Errorf("%w: %d words, need at least %d", ErrPolicyTooShort, words, r.minWords),
		}
	}

	policy.Metadata[model.MetaTitle] = titleOf(text)
	policy.Metadata[model.MetaWords] = strconv.Itoa(words)
	policy.Metadata[model.MetaChars] = strconv.Itoa(policy.CharCount())
	policy.Metadata[model.MetaFormat] = format
	return policy, nil
}

func (r *Resolver) readFile(ctx context.Context, path string) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	format := formatOf(path)
	text, err := parse(ctx, format, f)
	if err != nil {
		return "", "", err
	}
	return text, format, nil
}

func (r *Resolver) fetch(ctx context.Context, url string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "tracesmith/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("fetch url: unexpected status %d", resp.StatusCode)
	}

	format := FormatText
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	switch {
	case strings.Contains(contentType, "html"):
		format = FormatHTML
	case strings.Contains(contentType, "pdf"):
		format = FormatPDF
	case contentType == "" || strings.Contains(contentType, "octet-stream"):
		format = formatOf(req.URL.Path)
	}

	text, err := parse(ctx, format, io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", "", err
	}
	return text, format, nil
}

// Normalize 统一换行、压缩多余空行并去除首尾空白
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// titleOf 取第一行非空文本作为标题
func titleOf(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "#*- "))
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) > maxTitleRunes {
			return string([]rune(line)[:maxTitleRunes])
		}
		return line
	}
	return ""
}

func isURL(source string) bool {
	s := strings.ToLower(strings.TrimSpace(source))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func isFile(source string) bool {
	if source == "" || len(source) > 4096 || strings.ContainsAny(source, "\n\r") {
		return false
	}
	info, err := os.Stat(source)
	return err == nil && !info.IsDir()
}
