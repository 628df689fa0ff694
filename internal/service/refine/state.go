// Package refine 单条 trace 的生成、评分、修正状态机
package refine

// State 状态
type State string

const (
	StateGenerating State = "GENERATING"
	StateGrading    State = "GRADING"
	StateRefining   State = "REFINING"
	StatePassed     State = "PASSED"
	StateExhausted  State = "EXHAUSTED"
)

// Terminal 是否为终态
func (s State) Terminal() bool {
	return s == StatePassed || s == StateExhausted
}

// Next 状态转移，passed 只在 GRADING 状态下有意义
func Next(state State, passed bool, iteration, maxIterations int) State {
	switch state {
	case StateGenerating:
		return StateGrading
	case StateGrading:
		if passed {
			return StatePassed
		}
		if iteration < maxIterations {
			return StateRefining
		}
		return StateExhausted
	case StateRefining:
		return StateGenerating
	}
	return state
}
