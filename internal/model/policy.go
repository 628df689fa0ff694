package model

import (
	"strings"
	"unicode/utf8"
)

// Policy 规范化后的源文档，创建后不可变
type Policy struct {
	Text     string            `json:"text"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// 元数据键
const (
	MetaTitle  = "title"
	MetaWords  = "words"
	MetaChars  = "chars"
	MetaFormat = "format"
)

// NewPolicy 从纯文本创建 Policy
func NewPolicy(text, source string) *Policy {
	return &Policy{Text: text, Source: source, Metadata: map[string]string{}}
}

// WordCount 词数
func (p *Policy) WordCount() int {
	return len(strings.Fields(p.Text))
}

// CharCount 字符数
func (p *Policy) CharCount() int {
	return utf8.RuneCountInString(p.Text)
}

// Title 标题，没有时返回来源
func (p *Policy) Title() string {
	if t := p.Metadata[MetaTitle]; t != "" {
		return t
	}
	return p.Source
}
