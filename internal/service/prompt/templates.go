// Package prompt 生成、评分与规划使用的提示词模板
package prompt

import (
	"sort"
	"strings"
)

// 占位符
const (
	VarPolicy      = "{policy}"
	VarFocus       = "{focus}"
	VarCategory    = "{category}"
	VarCategoryDoc = "{category_description}"
	VarNumber      = "{number}"
	VarTotal       = "{total}"
	VarPrevious    = "{previous}"
	VarFeedback    = "{feedback}"
	VarResponse    = "{response}"
	VarTraces      = "{traces}"
)

// Render 单遍替换占位符，替换进来的内容不会被再次展开
func Render(tmpl string, vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(vars)*2)
	for _, k := range keys {
		pairs = append(pairs, k, vars[k])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// ========== 系统提示词 ==========

// SFTSystemPrompt SFT 样本中的系统消息
const SFTSystemPrompt = `You are a policy expert. Answer questions about the policy accurately, cite the specific sections that apply, show your reasoning step by step, and give concrete, actionable recommendations.`

// QASystemPrompt QA 样本转为对话格式时使用的系统消息
const QASystemPrompt = `You answer questions using only the provided document. Keep answers concise, factual and grounded in the source text.`

// ========== 生成 ==========

// SFTGeneratePrompt 生成一条对话样本
const SFTGeneratePrompt = `You are a domain expert generating training example {number} of {total} for a policy expert assistant.

Create a realistic user scenario about the policy and the expert answer to it.
Scenario category: {category}
Category focus: {category_description}

Base the scenario primarily on this section of the policy:
"""
{focus}
"""

The assistant response must:
- Start with <reasoning> tags showing the thought process
- Cite the specific policy sections that apply
- Give specific, actionable recommendations
- Address every aspect of the scenario
- Acknowledge edge cases and complications

FULL POLICY:
"""
{policy}
"""

Respond with ONLY a JSON object with exactly 3 messages:
{
  "messages": [
    {"role": "system", "content": "<system prompt defining the expert role>"},
    {"role": "user", "content": "<the scenario as a user question>"},
    {"role": "assistant", "content": "<the expert response>"}
  ]
}`

// QAGeneratePrompt 生成一条问答样本
const QAGeneratePrompt = `You are creating question-answer pair {number} of {total} from a document.

Question category: {category}
Category focus: {category_description}

Ask a specific, unambiguous question that can be answered from this section of the document:
"""
{focus}
"""

Rules:
1. Answer ONLY using facts stated in the document
2. Keep the answer concise but complete
3. The context must be a verbatim passage from the document that supports the answer

DOCUMENT:
"""
{policy}
"""

Respond with ONLY a JSON object:
{
  "question": "<the question>",
  "answer": "<the answer using document facts>",
  "context": "<the supporting passage from the document>"
}`

// RefineSection 修正时追加到生成提示词后
const RefineSection = `

Your previous attempt was rejected by the grader.

PREVIOUS ATTEMPT:
{previous}

ISSUES TO FIX:
{feedback}

Fix every issue listed above while keeping what was already correct. Output the improved example in the same JSON format.`

// ========== 评分 ==========

// SFTGradePrompt 评分对话样本
const SFTGradePrompt = `You are a strict policy compliance evaluator. Grade the training example below.

Score each criterion from 0.0 to 1.0:
- "compliance": every recommendation follows the policy exactly, with no violations and nothing made up
- "citation": every claim is backed by an explicitly referenced policy section
- "reasoning": the chain of thought is complete with no gaps, and recommendations are concrete

POLICY:
"""
{policy}
"""

EXAMPLE TO GRADE:
{response}

Respond with ONLY a JSON object:
{
  "scores": {"compliance": <0.0-1.0>, "citation": <0.0-1.0>, "reasoning": <0.0-1.0>},
  "policy_violations": ["<violation>", ...],
  "missing_citations": ["<missing citation>", ...],
  "incomplete_reasoning": ["<gap>", ...],
  "vague_recommendations": ["<vague item>", ...],
  "feedback": "<summary of what must be fixed, or 'Correct'>"
}`

// QAGradePrompt 评分问答样本
const QAGradePrompt = `You are grading a question-answer pair generated from a document.

Score each criterion from 0.0 to 1.0:
- "compliance": the answer is factually correct and grounded in the document, with nothing made up
- "citation": the context is a passage from the document that supports the answer
- "reasoning": the answer fully and concisely addresses the question

DOCUMENT:
"""
{policy}
"""

QA PAIR TO GRADE:
{response}

Respond with ONLY a JSON object:
{
  "scores": {"compliance": <0.0-1.0>, "citation": <0.0-1.0>, "reasoning": <0.0-1.0>},
  "policy_violations": ["<factual error>", ...],
  "missing_citations": ["<source issue>", ...],
  "incomplete_reasoning": ["<missing information>", ...],
  "vague_recommendations": [],
  "feedback": "<summary of what must be fixed, or 'Correct'>"
}`

// ========== 规划 ==========

// PlanPrompt 规划场景类别
const PlanPrompt = `You are planning a training dataset of {traces} examples about the policy below.

Identify 2 to 5 distinct scenario categories that together cover the policy: clear violations, edge cases, happy paths and domain-specific challenges. Distribute the {traces} examples across the categories by importance.

POLICY:
"""
{policy}
"""

Respond with ONLY a JSON object:
{
  "categories": [
    {"name": "<short name>", "description": "<what this category tests>", "traces": <count>}
  ],
  "reasoning": "<why these categories>"
}`
