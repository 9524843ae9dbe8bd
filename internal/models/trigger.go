package models

import "fmt"

// Trigger 定义意图可以被哪种输入触发（自然语言、选项点选、结构化输入）
type Trigger interface {
	// MatchesInput 判断触发器是否能处理该输入
	MatchesInput(input UserInput) bool
}

// NLTrigger 自然语言触发器的封闭变体集合: PhraseNLTrigger / AnyNLTrigger / FallbackNLTrigger
type NLTrigger interface {
	Trigger
	isNLTrigger()
}

// PhraseNLTrigger 当话语匹配绑定表达式的短语/模式时触发
type PhraseNLTrigger struct {
	Expression *NLExpression
}

func (t *PhraseNLTrigger) MatchesInput(input UserInput) bool {
	_, ok := input.(NLInput)
	return ok
}

func (t *PhraseNLTrigger) isNLTrigger() {}

func (t *PhraseNLTrigger) String() string {
	return fmt.Sprintf("(PhraseNLTrigger: %v)", t.Expression)
}

// AnyNLTrigger 任意自然语言话语都会触发
type AnyNLTrigger struct{}

func (t *AnyNLTrigger) MatchesInput(input UserInput) bool {
	_, ok := input.(NLInput)
	return ok
}

func (t *AnyNLTrigger) isNLTrigger() {}

// FallbackNLTrigger 收到自然语言话语但无法确定任何意图时触发
type FallbackNLTrigger struct{}

func (t *FallbackNLTrigger) MatchesInput(input UserInput) bool {
	_, ok := input.(NLInput)
	return ok
}

func (t *FallbackNLTrigger) isNLTrigger() {}

// SelectionTrigger 选项触发器的封闭变体集合: SingleSelectionTrigger / AnySelectionTrigger
type SelectionTrigger interface {
	Trigger
	isSelectionTrigger()
}

// SingleSelectionTrigger 用户点选某个特定选项时触发
type SingleSelectionTrigger struct {
	SelectionKey string
	SelectionIdx int
}

func (t *SingleSelectionTrigger) MatchesInput(input UserInput) bool {
	sel, ok := input.(SelectionInput)
	return ok && sel.SelectionKey == t.SelectionKey && sel.SelectionIdx == t.SelectionIdx
}

func (t *SingleSelectionTrigger) isSelectionTrigger() {}

// AnySelectionTrigger 用户点选任意选项时触发
type AnySelectionTrigger struct{}

func (t *AnySelectionTrigger) MatchesInput(input UserInput) bool {
	_, ok := input.(SelectionInput)
	return ok
}

func (t *AnySelectionTrigger) isSelectionTrigger() {}

// KeyedTrigger 收到指定key的KeyedInput时触发
type KeyedTrigger struct {
	Key string
}

func (t *KeyedTrigger) MatchesInput(input UserInput) bool {
	keyed, ok := input.(KeyedInput)
	return ok && keyed.Key == t.Key
}
