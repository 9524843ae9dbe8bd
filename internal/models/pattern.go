package models

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
)

// 短语模式中的两类标记：
//   - 占位符 "((entity))"：展开时会被替换为该实体所有值/同义词的标注形式
//   - 标注   "[surface][value](entity)"：表面文本及其实体/值标签
var (
	entityPlaceholderRegex = regexp.MustCompile(`\(\(([^\[\]]*?)\)\)`)
	entityAnnotationRegex  = regexp.MustCompile(`\[([^\[\]]*?)\]\[([^\[\]]*?)\]\(([^()]*?)\)`)
)

// PhrasePattern 短语模式，是带实体/值标注的短语的字符串表示，用于生成NLU训练短语
//
// 示例:
//
//	"Hello"
//	"I live in ((country))"
//	"I live in [Germany][DE](country)"
type PhrasePattern struct {
	ExpressionID string `json:"expression_id"`
	Pattern      string `json:"pattern"`
}

// NewPhrasePattern 创建短语模式
func NewPhrasePattern(expressionID, pattern string) *PhrasePattern {
	return &PhrasePattern{ExpressionID: expressionID, Pattern: pattern}
}

// Key 模式的唯一标识，由(表达式ID, 模式串)组成
func (p *PhrasePattern) Key() string {
	return p.ExpressionID + "\x00" + p.Pattern
}

func (p *PhrasePattern) String() string {
	return fmt.Sprintf("(%q)", p.Pattern)
}

// GenerateOptions 短语生成参数
type GenerateOptions struct {
	MaxPhrases       int        // 生成短语数量上限，<=0 表示不限制
	MaxEntityValues  int        // 每个实体占位符展开的值数量上限，<=0 表示不限制
	MaxValueSynonyms int        // 每个值展开的同义词数量上限，<=0 表示不限制
	Rand             *rand.Rand // 非nil时在截断前打乱生成顺序
}

// GeneratePhrases 把短语模式展开为具体的训练短语
//
// 展开分两步:
//  1. 把所有 "((entity))" 占位符替换为 "[surface][value](entity)" 标注，
//     对各占位符的候选做笛卡尔积
//  2. 解析标注串，生成带PhraseEntity标注的Phrase
func (p *PhrasePattern) GeneratePhrases(catalog EntityCatalog, opts GenerateOptions) ([]*Phrase, error) {
	expanded, err := p.expandEntityPlaceholders(catalog, opts)
	if err != nil {
		return nil, err
	}

	res := make([]*Phrase, 0, len(expanded))
	for _, pattern := range expanded {
		res = append(res, p.phraseFromPattern(pattern))
	}
	return res, nil
}

// expandEntityPlaceholders 展开所有实体占位符，返回标注串的笛卡尔积
func (p *PhrasePattern) expandEntityPlaceholders(catalog EntityCatalog, opts GenerateOptions) ([]string, error) {
	matches := entityPlaceholderRegex.FindAllStringSubmatchIndex(p.Pattern, -1)
	if len(matches) == 0 {
		return []string{p.Pattern}, nil
	}

	// 把模式串切成字面片段和候选槽位的交替序列
	segments := make([]string, 0, len(matches)+1)
	slots := make([][]string, 0, len(matches))
	prevEnd := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		entityID := p.Pattern[m[2]:m[3]]

		entity, err := catalog.Entity(entityID)
		if err != nil {
			return nil, fmt.Errorf("展开短语模式%q失败: %w", p.Pattern, err)
		}

		options, err := annotationOptions(catalog, entity, opts)
		if err != nil {
			return nil, fmt.Errorf("展开短语模式%q失败: %w", p.Pattern, err)
		}
		if len(options) == 0 {
			// 没有可替换的值，该模式不产生任何短语
			return nil, nil
		}

		segments = append(segments, p.Pattern[prevEnd:start])
		slots = append(slots, options)
		prevEnd = end
	}
	segments = append(segments, p.Pattern[prevEnd:])

	// 笛卡尔积
	res := []string{}
	idxs := make([]int, len(slots))
	for {
		var b strings.Builder
		for i, options := range slots {
			b.WriteString(segments[i])
			b.WriteString(options[idxs[i]])
		}
		b.WriteString(segments[len(segments)-1])
		res = append(res, b.String())

		// 进位
		carry := len(slots) - 1
		for carry >= 0 {
			idxs[carry]++
			if idxs[carry] < len(slots[carry]) {
				break
			}
			idxs[carry] = 0
			carry--
		}
		if carry < 0 {
			break
		}

		// 确定性枚举时可以提前截断
		if opts.Rand == nil && opts.MaxPhrases > 0 && len(res) >= opts.MaxPhrases {
			break
		}
	}

	if opts.Rand != nil {
		opts.Rand.Shuffle(len(res), func(i, j int) {
			res[i], res[j] = res[j], res[i]
		})
	}
	if opts.MaxPhrases > 0 && len(res) > opts.MaxPhrases {
		res = res[:opts.MaxPhrases]
	}
	return res, nil
}

// annotationOptions 为一个实体占位符收集所有可用的标注候选
func annotationOptions(catalog EntityCatalog, entity *Entity, opts GenerateOptions) ([]string, error) {
	var res []string
	nrValues := 0
	for _, valueRef := range entity.ValueRefs {
		if opts.MaxEntityValues > 0 && nrValues >= opts.MaxEntityValues {
			break
		}

		value, err := catalog.Value(valueRef)
		if err != nil {
			return nil, err
		}

		nrSynonyms := 0
		for _, synonym := range value.Synonyms {
			if opts.MaxValueSynonyms > 0 && nrSynonyms >= opts.MaxValueSynonyms {
				break
			}
			res = append(res, fmt.Sprintf("[%s][%s](%s)", synonym.Text, synonym.Value, entity.ID))
			nrSynonyms++
		}
		nrValues++
	}
	return res, nil
}

// phraseFromPattern 解析标注串，生成带实体标注的短语
//
//	"I live in [Germany][DE](country)" => ("I live in Germany" | (country=DE:"Germany"))
func (p *PhrasePattern) phraseFromPattern(pattern string) *Phrase {
	matches := entityAnnotationRegex.FindAllStringSubmatchIndex(pattern, -1)

	var b strings.Builder
	var entities []PhraseEntity
	prevEnd := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		surface := pattern[m[2]:m[3]]
		value := pattern[m[4]:m[5]]
		entityID := pattern[m[6]:m[7]]

		b.WriteString(pattern[prevEnd:start])
		entityStart := b.Len()
		b.WriteString(surface)
		if pe, err := NewPhraseEntity(entityStart, b.Len(), entityID, value); err == nil {
			entities = append(entities, pe)
		}
		prevEnd = end
	}
	b.WriteString(pattern[prevEnd:])

	return NewPhrase(p.ExpressionID, b.String(), entities)
}
