package models

import (
	"fmt"
	"strings"
)

// PhraseEntity 训练短语中的实体标注
// 区间为半开区间 [Start, End)，指向短语文本中的字符位置
type PhraseEntity struct {
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Entity string `json:"entity"`
	Value  string `json:"value"`
}

// NewPhraseEntity 创建实体标注，end必须大于start
func NewPhraseEntity(start, end int, entity, value string) (PhraseEntity, error) {
	if end <= start {
		return PhraseEntity{}, fmt.Errorf("标注区间无效: end(%d)不能小于等于start(%d)", end, start)
	}
	return PhraseEntity{Start: start, End: end, Entity: entity, Value: value}, nil
}

func (e PhraseEntity) String() string {
	return fmt.Sprintf("(%s=%s)", e.Entity, e.Value)
}

// Phrase 一条训练短语，归属于某个表达式，可携带若干有序且互不重叠的实体标注
type Phrase struct {
	ExpressionID string         `json:"expression_id"`
	Text         string         `json:"text"`
	Entities     []PhraseEntity `json:"entities,omitempty"`
}

// NewPhrase 创建训练短语，逐个插入标注并保证有序、不重叠
func NewPhrase(expressionID, text string, entities []PhraseEntity) *Phrase {
	p := &Phrase{ExpressionID: expressionID, Text: text}
	for _, e := range entities {
		p.Annotate(e)
	}
	return p
}

// Annotate 插入一个实体标注，与现有标注重叠时静默丢弃
func (p *Phrase) Annotate(entity PhraseEntity) {
	var before, after []PhraseEntity
	for _, e := range p.Entities {
		if e.End <= entity.Start {
			before = append(before, e)
		} else if e.Start >= entity.End {
			after = append(after, e)
		}
	}

	// 只有不与任何已有标注重叠时才可插入
	if len(before)+len(after) == len(p.Entities) {
		merged := make([]PhraseEntity, 0, len(p.Entities)+1)
		merged = append(merged, before...)
		merged = append(merged, entity)
		merged = append(merged, after...)
		p.Entities = merged
	}
}

// Key 短语的唯一标识，由(表达式ID, 文本)组成
func (p *Phrase) Key() string {
	return p.ExpressionID + "\x00" + p.Text
}

func (p *Phrase) String() string {
	parts := make([]string, 0, len(p.Entities))
	for _, e := range p.Entities {
		parts = append(parts, fmt.Sprintf("(%s=%s:%q)", e.Entity, e.Value, p.Text[e.Start:e.End]))
	}
	return fmt.Sprintf("(%q | %s)", p.Text, strings.Join(parts, " | "))
}
