// Package jsonx 解析模型输出中的 JSON 对象，容忍代码块、前后缀说明和轻微语法错误
package jsonx

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ErrNoObject 输出中找不到 JSON 对象
var ErrNoObject = errors.New("no json object in output")

// Repair 尽力把模型输出修复为 JSON 对象文本
func Repair(input string) string {
	s := strings.TrimSpace(input)

	// 快速路径：已经是有效的 JSON 对象
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") && json.Valid([]byte(s)) {
		return s
	}

	// 从第一个 { 开始解码第一个完整对象，忽略其后的说明文字
	i := strings.IndexByte(s, '{')
	if obj, ok := firstObject(s, i); ok {
		return obj
	}

	// 尝试提取 JSON 对象区域
	j := strings.LastIndexByte(s, '}')
	if i >= 0 && j >= i {
		sub := s[i : j+1]
		if json.Valid([]byte(sub)) {
			return sub
		}
		s = sub
	} else if i >= 0 {
		s = s[i:]
	}

	// 移除代码块标记
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	if json.Valid([]byte(s)) {
		return s
	}

	// 启发式：补全缺失的大括号
	if !strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		s = "{" + s
	} else if strings.HasPrefix(s, "{") && !strings.HasSuffix(s, "}") {
		s = s + "}"
	}

	out, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return s
	}
	return out
}

// firstObject 解码 s[i:] 开头的第一个完整 JSON 对象
func firstObject(s string, i int) (string, bool) {
	if i < 0 {
		return "", false
	}
	var raw json.RawMessage
	if err := json.NewDecoder(strings.NewReader(s[i:])).Decode(&raw); err != nil {
		return "", false
	}
	return string(raw), true
}

// Decode 修复并解析为 v，v 必须是对象
func Decode(input string, v any) error {
	if !strings.Contains(input, "{") {
		return ErrNoObject
	}
	repaired := Repair(input)
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}
