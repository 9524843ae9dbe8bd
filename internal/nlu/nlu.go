// Package nlu 提供自然语言理解单元：对用户话语做表达式排序和实体抽取
package nlu

import (
	"github.com/sirupsen/logrus"

	"github.com/dialoguekeeper/service/internal/index"
	"github.com/dialoguekeeper/service/internal/models"
	"github.com/dialoguekeeper/service/internal/store"
)

// Env NLU运行所需的环境能力，由机器人实现
type Env interface {
	models.EntityCatalog

	// Intents 按注册顺序返回满足过滤条件的意图
	Intents(intentFilter, domainFilter, nlExpressionFilter []string) []*models.Intent
	// Entities 按注册顺序返回满足过滤条件的实体
	Entities(entityFilter, intentFilter []string) []*models.Entity
	// Values 按注册顺序返回满足过滤条件的取值
	Values(valueFilter, entityFilter []string) []*models.Value
	// NLExpressions 返回被过滤意图使用的表达式
	NLExpressions(intentFilter []string) []*models.NLExpression
	// DocStore 文档存储
	DocStore() *store.DocStore
	// Index 索引管理器
	Index() *index.Handler
}

// NLU 自然语言理解单元
// 输入一条用户话语，输出表达式排序和抽取出的实体。
// 注意NLU识别的是表达式而不是意图，表达式到意图的解析由IU完成
type NLU interface {
	// ID NLU标识
	ID() string
	// Init 使用前必须调用：retrain为true时重新训练所有模型，否则加载已有模型
	Init(retrain bool, trainingData *TrainingData) error
	// Run 对话语做理解，intentFilter限定候选意图，nil表示全部
	Run(utterance string, intentFilter []string) (*Result, error)
}

// Result 自然语言理解结果
type Result struct {
	Utterance           string                   `json:"utterance"`
	ExpressionRanking   []models.RankingScore    `json:"expression_ranking"`
	ConfidenceThreshold float64                  `json:"confidence_threshold"`
	Entities            []models.ExtractedEntity `json:"entities"`
}

// ConfExpression 返回置信的首位表达式，首位得分低于置信阈值时返回nil
func (r *Result) ConfExpression() *models.RankingScore {
	if len(r.ExpressionRanking) > 0 && r.ExpressionRanking[0].Score >= r.ConfidenceThreshold {
		return &r.ExpressionRanking[0]
	}
	return nil
}

// Log 输出理解结果概要，用于调试
func (r *Result) Log() {
	for i, s := range r.ExpressionRanking {
		if i >= 15 {
			break
		}
		mark := "-"
		if s.Score >= r.ConfidenceThreshold {
			mark = "+"
		}
		logrus.Debugf("[NLU] %s %v", mark, s)
	}
	for _, e := range r.Entities {
		logrus.Debugf("[NLU] 实体 %v", &e)
	}
}

// Snapshot 导出用于记录/传输的结果表示
func (r *Result) Snapshot() map[string]any {
	ranking := make([]map[string]any, 0, len(r.ExpressionRanking))
	for i, s := range r.ExpressionRanking {
		if i >= 15 {
			break
		}
		ranking = append(ranking, map[string]any{"ref_id": s.RefID, "score": s.Score})
	}
	entities := make([]map[string]any, 0, len(r.Entities))
	for _, e := range r.Entities {
		entities = append(entities, map[string]any{
			"entity": e.Entity,
			"value":  e.Value,
			"text":   e.Text,
		})
	}
	return map[string]any{
		"expression_ranking":   ranking,
		"confidence_threshold": r.ConfidenceThreshold,
		"entities":             entities,
	}
}

// allIntentIDs 返回所有注册意图的ID，用于把nil过滤器展开为显式列表
func allIntentIDs(env Env) []string {
	intents := env.Intents(nil, nil, nil)
	ids := make([]string, len(intents))
	for i, intent := range intents {
		ids[i] = intent.ID
	}
	return ids
}

// expressionFilter 返回被过滤意图使用的表达式ID列表
func expressionFilter(env Env, intentFilter []string) []string {
	expressions := env.NLExpressions(intentFilter)
	ids := make([]string, len(expressions))
	for i, expr := range expressions {
		ids[i] = expr.ID
	}
	return ids
}
