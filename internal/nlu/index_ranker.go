package nlu

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"github.com/dialoguekeeper/service/internal/models"
)

// 每个短语模式用于训练的生成短语数量上限
const maxTrainPhrasesPerPattern = 50

// IndexExpressionRanker 基于倒排索引的表达式排序器，不做实体抽取
// 训练时把短语模式生成的短语写入索引；运行时用相似文本检索为每个表达式收集
// 命中短语的得分，按聚合函数归并。置信阈值固定为0
//
// 索引偏重关键词匹配：如果只生成了部分短语，某些实体取值可能没有进入索引，
// 对应表达式可能不会被召回
type IndexExpressionRanker struct {
	NLUID       string
	Aggregation string
	env         Env

	indexName string
}

// NewIndexExpressionRanker 创建索引表达式排序器，默认用max聚合
func NewIndexExpressionRanker(env Env, id string) *IndexExpressionRanker {
	return &IndexExpressionRanker{
		NLUID:       id,
		Aggregation: "max",
		env:         env,
		indexName:   "IndexExpressionRanker." + id,
	}
}

func (n *IndexExpressionRanker) ID() string { return n.NLUID }

func (n *IndexExpressionRanker) Init(retrain bool, trainingData *TrainingData) error {
	logrus.WithFields(logrus.Fields{"nlu": n.NLUID, "retrain": retrain}).Info("[NLU] 初始化索引排序器")

	// 索引不存在时必须重新训练
	if !n.env.Index().ExistsIndex(n.indexName) {
		retrain = true
	}

	if !retrain {
		if err := n.env.Index().EnsureIndex(n.indexName); err != nil {
			return err
		}
		logrus.WithField("nlu", n.NLUID).Info("[NLU] 已加载索引排序器")
		return nil
	}

	logrus.WithField("nlu", n.NLUID).Info("[NLU] 训练索引排序器")
	if n.env.Index().ExistsIndex(n.indexName) {
		if err := n.env.Index().DeleteIndex(n.indexName); err != nil {
			return err
		}
	}
	if err := n.env.Index().EnsureIndex(n.indexName); err != nil {
		return err
	}

	if trainingData == nil {
		trainingData = CreateTrainingData(n.env, nil)
	}

	bar := progressbar.Default(int64(len(trainingData.PhrasePatterns)), "索引训练短语")
	for _, pattern := range trainingData.PhrasePatterns {
		phrases, err := pattern.GeneratePhrases(n.env, models.GenerateOptions{MaxPhrases: maxTrainPhrasesPerPattern})
		if err != nil {
			return fmt.Errorf("生成训练短语失败: %w", err)
		}
		for _, phrase := range phrases {
			if err := n.env.Index().IndexObject(n.indexName, map[string]string{
				"expression": phrase.ExpressionID,
				"text":       phrase.Text,
			}); err != nil {
				return err
			}
		}
		_ = bar.Add(1)
	}
	return n.env.Index().Commit(n.indexName)
}

func (n *IndexExpressionRanker) Run(utterance string, intentFilter []string) (*Result, error) {
	if intentFilter == nil {
		intentFilter = allIntentIDs(n.env)
	}
	exprFilter := expressionFilter(n.env, intentFilter)

	hits, err := n.env.Index().SearchMoreLikeThis(n.indexName, "expression", exprFilter, "text", utterance, 0)
	if err != nil {
		return nil, err
	}

	// 按表达式归并命中短语的得分
	scores := make(map[string][]float64)
	var order []string
	for _, hit := range hits {
		expressionID := hit.Doc["expression"]
		if _, exists := scores[expressionID]; !exists {
			order = append(order, expressionID)
		}
		scores[expressionID] = append(scores[expressionID], hit.Score)
	}

	aggregate, err := models.ListAggregateFunc(n.Aggregation)
	if err != nil {
		return nil, err
	}
	ranking := make([]models.RankingScore, 0, len(order))
	for _, expressionID := range order {
		ranking = append(ranking, models.RankingScore{
			RefID: expressionID,
			Score: aggregate(scores[expressionID]),
		})
	}

	models.SortRanking(ranking)
	ranking = models.CompleteRanking(ranking, exprFilter, 0)

	return &Result{
		Utterance:           utterance,
		ExpressionRanking:   ranking,
		ConfidenceThreshold: 0,
	}, nil
}
