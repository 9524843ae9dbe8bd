package models

import "fmt"

// NLExpression 一组用于匹配用户话语的短语和模式
// NLU识别的对象是表达式而不是意图：多个意图可能共享相同的触发话语
// （例如 "are_you_ok.yes" 和 "should_we_continue.yes" 都可以被 "yes"/"sure"/"yep" 触发），
// 让这些意图共享同一个表达式实例可以消除NLU层面的歧义
type NLExpression struct {
	ID                   string           `json:"id"`
	RegexPatterns        []string         `json:"regex_patterns,omitempty"`
	ExcludeRegexPatterns []string         `json:"exclude_regex_patterns,omitempty"`
	PhrasePatterns       []*PhrasePattern `json:"phrase_patterns,omitempty"`
}

// NewNLExpression 创建表达式
func NewNLExpression(id string) *NLExpression {
	return &NLExpression{ID: id}
}

// AddPhrasePattern 追加一个短语模式，按(表达式ID, 模式串)去重
func (e *NLExpression) AddPhrasePattern(pattern string) *NLExpression {
	p := NewPhrasePattern(e.ID, pattern)
	for _, existing := range e.PhrasePatterns {
		if existing.Key() == p.Key() {
			return e
		}
	}
	e.PhrasePatterns = append(e.PhrasePatterns, p)
	return e
}

// AddRegexPattern 追加一个包含正则模式
func (e *NLExpression) AddRegexPattern(pattern string) *NLExpression {
	for _, existing := range e.RegexPatterns {
		if existing == pattern {
			return e
		}
	}
	e.RegexPatterns = append(e.RegexPatterns, pattern)
	return e
}

// AddExcludeRegexPattern 追加一个排除正则模式
func (e *NLExpression) AddExcludeRegexPattern(pattern string) *NLExpression {
	for _, existing := range e.ExcludeRegexPatterns {
		if existing == pattern {
			return e
		}
	}
	e.ExcludeRegexPatterns = append(e.ExcludeRegexPatterns, pattern)
	return e
}

func (e *NLExpression) String() string {
	example := ""
	if len(e.PhrasePatterns) > 0 {
		example = e.PhrasePatterns[0].Pattern
	}
	return fmt.Sprintf("(NLExpression: %q, %q [%d])", e.ID, example, len(e.PhrasePatterns))
}
