package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/schema"

	"github.com/ashwinyue/tracesmith/internal/model"
)

// DefaultSectionSize 默认章节长度
const DefaultSectionSize = 1200

// Sections 把 Policy 切分为若干章节，trace 按序号轮流聚焦其中一节
func Sections(ctx context.Context, policy *model.Policy, size int) ([]string, error) {
	if size <= 0 {
		size = DefaultSectionSize
	}
	if policy.CharCount() <= size {
		return []string{policy.Text}, nil
	}

	splitter, err := recursive.NewSplitter(ctx, &recursive.Config{
		ChunkSize:   size,
		OverlapSize: size / 10,
		Separators:  []string{"\n\n", "\n", ". ", "。", "? ", "？", "! ", "！", "; ", " ", ""},
		KeepType:    recursive.KeepTypeNone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create splitter: %w", err)
	}

	docs, err := splitter.Transform(ctx, []*schema.Document{{Content: policy.Text}})
	if err != nil {
		return nil, fmt.Errorf("splitter failed: %w", err)
	}

	sections := make([]string, 0, len(docs))
	for _, d := range docs {
		if c := strings.TrimSpace(d.Content); c != "" {
			sections = append(sections, c)
		}
	}
	if len(sections) == 0 {
		return []string{policy.Text}, nil
	}
	return sections, nil
}
