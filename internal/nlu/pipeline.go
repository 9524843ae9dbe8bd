package nlu

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dialoguekeeper/service/internal/models"
)

// ExpressionUsage 流水线元素对表达式排序结果的使用方式
type ExpressionUsage int

const (
	// AddScores 把得分累加进总排序
	AddScores ExpressionUsage = iota + 1
	// PerfectMatch 首位得分达到1时视为完美匹配，后续元素的表达式排序被短路
	PerfectMatch
	// FilterTopK 用前K个表达式可达的意图收窄后续元素的意图过滤
	FilterTopK
)

func (u ExpressionUsage) String() string {
	switch u {
	case AddScores:
		return "ADD_SCORES"
	case PerfectMatch:
		return "PERFECT_MATCH"
	case FilterTopK:
		return "FILTER_TOPK"
	default:
		return fmt.Sprintf("ExpressionUsage(%d)", int(u))
	}
}

// PipelineElement 流水线中的一个NLU及其结果的使用方式
type PipelineElement struct {
	NLU             NLU
	UseExpressions  bool
	UseEntities     bool
	ExpressionUsage ExpressionUsage
	ExpressionTopK  int // 仅FilterTopK使用
}

func (e *PipelineElement) String() string {
	return fmt.Sprintf("(PipelineElement: %q, use_expressions=%v, use_entities=%v, usage=%v)",
		e.NLU.ID(), e.UseExpressions, e.UseEntities, e.ExpressionUsage)
}

// PipelineNLU 按顺序组合多个NLU
// 表达式得分按各元素结果的均值归并，置信阈值取各元素阈值的均值；
// 出现完美匹配时直接以该表达式作为唯一结果。实体取各元素结果的并集
type PipelineNLU struct {
	NLUID    string
	Elements []*PipelineElement
	env      Env
}

// NewPipelineNLU 创建流水线NLU
func NewPipelineNLU(env Env, id string, elements ...*PipelineElement) *PipelineNLU {
	return &PipelineNLU{NLUID: id, Elements: elements, env: env}
}

func (n *PipelineNLU) ID() string { return n.NLUID }

func (n *PipelineNLU) Init(retrain bool, trainingData *TrainingData) error {
	logrus.WithFields(logrus.Fields{"nlu": n.NLUID, "retrain": retrain}).Info("[NLU] 初始化流水线")

	for _, element := range n.Elements {
		logrus.WithField("nlu", element.NLU.ID()).Info("[NLU] 初始化流水线元素")
		if err := element.NLU.Init(retrain, trainingData); err != nil {
			return fmt.Errorf("初始化流水线元素 %q 失败: %w", element.NLU.ID(), err)
		}
	}
	return nil
}

func (n *PipelineNLU) Run(utterance string, intentFilter []string) (*Result, error) {
	if intentFilter == nil {
		intentFilter = allIntentIDs(n.env)
	}
	exprFilter := expressionFilter(n.env, intentFilter)

	perfectExpression := ""
	hasPerfect := false
	expressionScores := make(map[string][]float64)
	var scoreOrder []string
	var confidenceThresholds []float64
	var entities []models.ExtractedEntity

	currIntentFilter := make([]string, len(intentFilter))
	copy(currIntentFilter, intentFilter)

	for _, element := range n.Elements {
		// 不需要运行的元素直接跳过
		if !element.UseExpressions && !element.UseEntities {
			logrus.Debugf("[NLU] 跳过 %v", element)
			continue
		}
		if hasPerfect && !element.UseEntities {
			logrus.Debugf("[NLU] 跳过 %v", element)
			continue
		}

		logrus.Debugf("[NLU] 运行 %v", element)
		res, err := element.NLU.Run(utterance, currIntentFilter)
		if err != nil {
			return nil, fmt.Errorf("运行流水线元素 %q 失败: %w", element.NLU.ID(), err)
		}
		res.Log()

		if element.UseExpressions && !hasPerfect {
			switch element.ExpressionUsage {
			case AddScores:
				for _, s := range res.ExpressionRanking {
					if _, exists := expressionScores[s.RefID]; !exists {
						scoreOrder = append(scoreOrder, s.RefID)
					}
					expressionScores[s.RefID] = append(expressionScores[s.RefID], s.Score)
				}
				confidenceThresholds = append(confidenceThresholds, res.ConfidenceThreshold)

			case PerfectMatch:
				if len(res.ExpressionRanking) > 0 && res.ExpressionRanking[0].Score >= 1 {
					perfectExpression = res.ExpressionRanking[0].RefID
					hasPerfect = true
				}

			case FilterTopK:
				var expressionIDs []string
				for i, s := range res.ExpressionRanking {
					if element.ExpressionTopK > 0 && i >= element.ExpressionTopK {
						break
					}
					expressionIDs = append(expressionIDs, s.RefID)
				}
				var narrowed []string
				for _, intent := range n.env.Intents(nil, nil, expressionIDs) {
					narrowed = append(narrowed, intent.ID)
				}
				currIntentFilter = narrowed

			default:
				return nil, fmt.Errorf("未知的表达式使用方式: %v", element.ExpressionUsage)
			}
		}

		if element.UseEntities {
			entities = models.MergeEntities(entities, res.Entities)
		}
	}

	var confidenceThreshold float64
	var ranking []models.RankingScore
	if hasPerfect {
		confidenceThreshold = 1.0
		ranking = []models.RankingScore{{RefID: perfectExpression, Score: 1.0}}
	} else {
		confidenceThreshold = models.Mean(confidenceThresholds)
		ranking = make([]models.RankingScore, 0, len(scoreOrder))
		for _, expressionID := range scoreOrder {
			ranking = append(ranking, models.RankingScore{
				RefID: expressionID,
				Score: models.Mean(expressionScores[expressionID]),
			})
		}
		models.SortRanking(ranking)
	}
	ranking = models.CompleteRanking(ranking, exprFilter, 0)

	return &Result{
		Utterance:           utterance,
		ExpressionRanking:   ranking,
		ConfidenceThreshold: confidenceThreshold,
		Entities:            entities,
	}, nil
}
