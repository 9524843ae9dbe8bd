package models

import (
	"fmt"
	"regexp"
)

// ValueRegexPattern 值的正则模式
// 模式按 regexp.FindAllString 的方式使用，因此不应包含 ^ 和 $ 等字符串边界
type ValueRegexPattern struct {
	Value         string `json:"value"`
	Pattern       string `json:"pattern"`
	EntityContext string `json:"entity_context,omitempty"` // 非空时表示该模式只在实体上下文已知的情况下生效
}

func (p ValueRegexPattern) String() string {
	return fmt.Sprintf("(%q)", p.Pattern)
}

// ValueSynonym 值的同义词表述，例如值"DE"的同义词"Germany"
type ValueSynonym struct {
	Value         string `json:"value"`
	Text          string `json:"text"`
	CaseSensitive bool   `json:"case_sensitive"`
	EntityContext string `json:"entity_context,omitempty"` // 非空时表示该同义词只在实体上下文已知的情况下生效
}

// ToRegexPattern 把同义词转换为词边界正则模式，大小写不敏感时使用(?i:)分组
func (s ValueSynonym) ToRegexPattern() ValueRegexPattern {
	var pattern string
	if s.CaseSensitive {
		pattern = `\b(?:` + regexp.QuoteMeta(s.Text) + `)\b`
	} else {
		pattern = `\b(?i:` + regexp.QuoteMeta(s.Text) + `)\b`
	}
	return ValueRegexPattern{Value: s.Value, Pattern: pattern, EntityContext: s.EntityContext}
}

func (s ValueSynonym) String() string {
	return fmt.Sprintf("(%q)", s.Text)
}

// Value 自然语言中出现的离散取值，例如值"DE"可以被表述为"Germany"、"Deutschland"、"BRD"
// 值独立于实体存在，通过实体的ValueRefs建立关联
// 多个值之间应尽量避免共享同义词或正则模式，否则会在识别时产生歧义
type Value struct {
	ID            string              `json:"id"`
	Synonyms      []ValueSynonym      `json:"synonyms,omitempty"`
	RegexPatterns []ValueRegexPattern `json:"regex_patterns,omitempty"`
}

// NewValue 创建值对象
func NewValue(id string) *Value {
	return &Value{ID: id}
}

// AddSynonym 追加一个大小写不敏感的同义词
func (v *Value) AddSynonym(text string) *Value {
	v.Synonyms = append(v.Synonyms, ValueSynonym{Value: v.ID, Text: text})
	return v
}

// AddSynonymFull 追加一个带大小写敏感和实体上下文限制的同义词
func (v *Value) AddSynonymFull(text string, caseSensitive bool, entityContext string) *Value {
	v.Synonyms = append(v.Synonyms, ValueSynonym{
		Value:         v.ID,
		Text:          text,
		CaseSensitive: caseSensitive,
		EntityContext: entityContext,
	})
	return v
}

// AddRegexPattern 追加一个显式正则模式
func (v *Value) AddRegexPattern(pattern string) *Value {
	v.RegexPatterns = append(v.RegexPatterns, ValueRegexPattern{Value: v.ID, Pattern: pattern})
	return v
}

// AddRegexPatternFull 追加一个带实体上下文限制的正则模式
func (v *Value) AddRegexPatternFull(pattern string, entityContext string) *Value {
	v.RegexPatterns = append(v.RegexPatterns, ValueRegexPattern{
		Value:         v.ID,
		Pattern:       pattern,
		EntityContext: entityContext,
	})
	return v
}

// AllRegexPatterns 返回显式正则模式与同义词派生模式的合并集合，按加入顺序去重
func (v *Value) AllRegexPatterns() []ValueRegexPattern {
	res := make([]ValueRegexPattern, 0, len(v.RegexPatterns)+len(v.Synonyms))
	seen := make(map[ValueRegexPattern]bool)
	for _, p := range v.RegexPatterns {
		if !seen[p] {
			res = append(res, p)
			seen[p] = true
		}
	}
	for _, s := range v.Synonyms {
		p := s.ToRegexPattern()
		if !seen[p] {
			res = append(res, p)
			seen[p] = true
		}
	}
	return res
}

func (v *Value) String() string {
	texts := make([]string, 0, len(v.Synonyms))
	for _, s := range v.Synonyms {
		texts = append(texts, s.Text)
	}
	return fmt.Sprintf("(Value: %q, synonyms=%v)", v.ID, texts)
}
