package nlu

import (
	"fmt"
	"regexp"
)

// valuePattern 一条"表面文本 -> (实体, 取值)"的映射规则
type valuePattern struct {
	entity       string
	value        string
	pattern      *regexp.Regexp
	needsContext bool // 规则来自带实体上下文的模式，只有实体已知且一致时才可用
}

// EntityValueMapper 把表面文本映射为(实体, 取值)
// 规则来自取值的显式正则模式和同义词派生模式，要求文本整体匹配。
// 映射可能有歧义，歧义在映射时处理：候选不唯一时不给出结果
type EntityValueMapper struct {
	env      Env
	patterns []valuePattern
}

// NewEntityValueMapper 创建实体取值映射器
func NewEntityValueMapper(env Env) *EntityValueMapper {
	return &EntityValueMapper{env: env}
}

func (m *EntityValueMapper) Init(retrain bool, trainingData *TrainingData) error {
	if trainingData == nil {
		trainingData = CreateTrainingData(m.env, nil)
	}

	patterns, err := collectValuePatterns(m.env, trainingData.IntentFilter, true)
	if err != nil {
		return err
	}
	m.patterns = patterns
	return nil
}

// Run 把表面文本映射为(实体, 取值)
// entityContext为已知的实体ID，未知时传空串；候选唯一时返回映射结果
func (m *EntityValueMapper) Run(entityContext, text string, intentFilter []string) (entityID, valueID string, ok bool) {
	allowed := allowedEntities(m.env, entityContext, intentFilter)

	type pair struct{ entity, value string }
	var candidates []pair
	seen := make(map[pair]bool)
	for _, vp := range m.patterns {
		if !allowed[vp.entity] {
			continue
		}
		if vp.needsContext && (entityContext == "" || entityContext != vp.entity) {
			continue
		}
		if vp.pattern.MatchString(text) {
			p := pair{vp.entity, vp.value}
			if !seen[p] {
				seen[p] = true
				candidates = append(candidates, p)
			}
		}
	}

	// 只接受无歧义的映射
	if len(candidates) == 1 {
		return candidates[0].entity, candidates[0].value, true
	}
	return "", "", false
}

// collectValuePatterns 收集被过滤意图使用的所有(实体, 取值)模式规则
// fullMatch为true时模式要求整体匹配，否则用于子串查找
func collectValuePatterns(env Env, intentFilter []string, fullMatch bool) ([]valuePattern, error) {
	var patterns []valuePattern
	seen := make(map[string]bool)

	for _, entity := range env.Entities(nil, intentFilter) {
		for _, valueRef := range entity.ValueRefs {
			value, err := env.Value(valueRef)
			if err != nil {
				return nil, fmt.Errorf("实体 %q 引用的取值无效: %w", entity.ID, err)
			}
			for _, rp := range value.AllRegexPatterns() {
				// 实体上下文不匹配的模式不属于该实体
				if rp.EntityContext != "" && rp.EntityContext != entity.ID {
					continue
				}

				key := entity.ID + "\x00" + value.ID + "\x00" + rp.Pattern
				if seen[key] {
					continue
				}
				seen[key] = true

				src := rp.Pattern
				if fullMatch {
					src = `^(?:` + src + `)$`
				}
				re, err := regexp.Compile(src)
				if err != nil {
					return nil, fmt.Errorf("取值 %q 的正则 %q 无效: %w", value.ID, rp.Pattern, err)
				}
				patterns = append(patterns, valuePattern{
					entity:       entity.ID,
					value:        value.ID,
					pattern:      re,
					needsContext: rp.EntityContext != "",
				})
			}
		}
	}
	return patterns, nil
}

// allowedEntities 返回被过滤意图使用的实体集合，已知实体上下文额外放行
func allowedEntities(env Env, entityContext string, intentFilter []string) map[string]bool {
	allowed := make(map[string]bool)
	for _, entity := range env.Entities(nil, intentFilter) {
		allowed[entity.ID] = true
	}
	if entityContext != "" {
		allowed[entityContext] = true
	}
	return allowed
}
