// Package registry 管理机器人注册的意图、实体、取值和表达式
package registry

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dialoguekeeper/service/internal/models"
)

// Registry 意图/实体/取值的注册表
// 所有遍历都按注册顺序进行，保证训练和匹配结果的确定性
type Registry struct {
	intents     map[string]*models.Intent
	intentOrder []string
	entities    map[string]*models.Entity
	entityOrder []string
	values      map[string]*models.Value
	valueOrder  []string
}

// New 创建空注册表
func New() *Registry {
	return &Registry{
		intents:  make(map[string]*models.Intent),
		entities: make(map[string]*models.Entity),
		values:   make(map[string]*models.Value),
	}
}

// RegisterIntent 注册意图，同ID重复注册会覆盖
func (r *Registry) RegisterIntent(intent *models.Intent) {
	if _, exists := r.intents[intent.ID]; !exists {
		r.intentOrder = append(r.intentOrder, intent.ID)
	}
	r.intents[intent.ID] = intent
	logrus.WithField("intent", intent.ID).Info("[注册表] 注册意图")
}

// RegisterEntity 注册实体，同ID重复注册会覆盖
func (r *Registry) RegisterEntity(entity *models.Entity) {
	if _, exists := r.entities[entity.ID]; !exists {
		r.entityOrder = append(r.entityOrder, entity.ID)
	}
	r.entities[entity.ID] = entity
	logrus.WithField("entity", entity.ID).Info("[注册表] 注册实体")
}

// RegisterValue 注册取值，同ID重复注册会覆盖
func (r *Registry) RegisterValue(value *models.Value) {
	if _, exists := r.values[value.ID]; !exists {
		r.valueOrder = append(r.valueOrder, value.ID)
	}
	r.values[value.ID] = value
	logrus.WithField("value", value.ID).Info("[注册表] 注册取值")
}

// EnsureNLTrigger 确保意图拥有短语触发器，缺失时创建以"<意图ID>-expression"命名的表达式
func (r *Registry) EnsureNLTrigger(intent *models.Intent) *models.PhraseNLTrigger {
	if trigger, ok := intent.NLTrigger.(*models.PhraseNLTrigger); ok {
		return trigger
	}
	trigger := &models.PhraseNLTrigger{
		Expression: models.NewNLExpression(intent.ID + "-expression"),
	}
	intent.NLTrigger = trigger
	return trigger
}

// RegisterIntentPhrasePatterns 为已注册意图追加短语模式
func (r *Registry) RegisterIntentPhrasePatterns(intentID string, patterns ...string) error {
	intent, err := r.Intent(intentID)
	if err != nil {
		return err
	}
	trigger := r.EnsureNLTrigger(intent)
	for _, p := range patterns {
		trigger.Expression.AddPhrasePattern(p)
	}
	return nil
}

// RegisterIntentRegexPatterns 为已注册意图追加包含正则模式
func (r *Registry) RegisterIntentRegexPatterns(intentID string, patterns ...string) error {
	intent, err := r.Intent(intentID)
	if err != nil {
		return err
	}
	trigger := r.EnsureNLTrigger(intent)
	for _, p := range patterns {
		trigger.Expression.AddRegexPattern(p)
	}
	return nil
}

// RegisterIntentExcludeRegexPatterns 为已注册意图追加排除正则模式
func (r *Registry) RegisterIntentExcludeRegexPatterns(intentID string, patterns ...string) error {
	intent, err := r.Intent(intentID)
	if err != nil {
		return err
	}
	trigger := r.EnsureNLTrigger(intent)
	for _, p := range patterns {
		trigger.Expression.AddExcludeRegexPattern(p)
	}
	return nil
}

// Intent 按ID查询意图，未注册时报错
func (r *Registry) Intent(intentID string) (*models.Intent, error) {
	intent, exists := r.intents[intentID]
	if !exists {
		return nil, fmt.Errorf("意图 %q 尚未注册，请先注册", intentID)
	}
	return intent, nil
}

// Intents 按注册顺序返回满足过滤条件的意图
// intentFilter/domainFilter/nlExpressionFilter为nil时表示不过滤
func (r *Registry) Intents(intentFilter, domainFilter, nlExpressionFilter []string) []*models.Intent {
	var res []*models.Intent
	for _, id := range r.intentOrder {
		intent := r.intents[id]
		if intentFilter != nil && !contains(intentFilter, intent.ID) {
			continue
		}
		if domainFilter != nil && !intent.InDomain(domainFilter) {
			continue
		}
		if nlExpressionFilter != nil {
			expr := intent.NLExpression()
			if expr == nil || !contains(nlExpressionFilter, expr.ID) {
				continue
			}
		}
		res = append(res, intent)
	}
	return res
}

// Entity 按ID查询实体，未注册时报错
func (r *Registry) Entity(entityID string) (*models.Entity, error) {
	entity, exists := r.entities[entityID]
	if !exists {
		return nil, fmt.Errorf("实体 %q 尚未注册，请先注册", entityID)
	}
	return entity, nil
}

// Entities 按注册顺序返回满足过滤条件的实体
// entityFilter限定实体ID；intentFilter限定实体必须被其中某个意图使用
func (r *Registry) Entities(entityFilter, intentFilter []string) []*models.Entity {
	var res []*models.Entity
	for _, id := range r.entityOrder {
		entity := r.entities[id]
		if entityFilter != nil && !contains(entityFilter, entity.ID) {
			continue
		}
		if intentFilter != nil {
			used := false
			for _, intent := range r.Intents(intentFilter, nil, nil) {
				if intent.AllowsEntity(entity.ID) {
					used = true
					break
				}
			}
			if !used {
				continue
			}
		}
		res = append(res, entity)
	}
	return res
}

// Value 按ID查询取值，未注册时报错
func (r *Registry) Value(valueID string) (*models.Value, error) {
	value, exists := r.values[valueID]
	if !exists {
		return nil, fmt.Errorf("取值 %q 尚未注册，请先注册", valueID)
	}
	return value, nil
}

// Values 按注册顺序返回满足过滤条件的取值
// valueFilter限定取值ID；entityFilter限定取值必须被其中某个实体引用
func (r *Registry) Values(valueFilter, entityFilter []string) []*models.Value {
	var res []*models.Value
	for _, id := range r.valueOrder {
		value := r.values[id]
		if valueFilter != nil && !contains(valueFilter, value.ID) {
			continue
		}
		if entityFilter != nil {
			used := false
			for _, entity := range r.Entities(entityFilter, nil) {
				if contains(entity.ValueRefs, value.ID) {
					used = true
					break
				}
			}
			if !used {
				continue
			}
		}
		res = append(res, value)
	}
	return res
}

// NLExpressions 按意图注册顺序返回被过滤意图使用的表达式，去重
func (r *Registry) NLExpressions(intentFilter []string) []*models.NLExpression {
	var res []*models.NLExpression
	seen := make(map[string]bool)
	for _, intent := range r.Intents(intentFilter, nil, nil) {
		expr := intent.NLExpression()
		if expr == nil || seen[expr.ID] {
			continue
		}
		seen[expr.ID] = true
		res = append(res, expr)
	}
	return res
}

func contains(list []string, item string) bool {
	for _, x := range list {
		if x == item {
			return true
		}
	}
	return false
}
