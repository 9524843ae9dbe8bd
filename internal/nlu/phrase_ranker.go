package nlu

import (
	"encoding/json"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"github.com/dialoguekeeper/service/internal/models"
	"github.com/dialoguekeeper/service/internal/nlp"
	"github.com/dialoguekeeper/service/internal/store"
)

// PhraseExpressionRanker 基于文本相似度的表达式排序器，不做实体抽取
// 训练时把短语模式生成的短语用TextScorer预处理并连同预处理结果存入文档存储，
// 避免运行时重复计算；运行时计算话语与各短语的相似度，按表达式聚合：
//
//	score(expression) = aggregate([similarity(utterance, phrase1), similarity(utterance, phrase2), ...])
type PhraseExpressionRanker struct {
	NLUID               string
	Scorer              nlp.TextScorer
	ConfidenceThreshold float64
	Aggregation         string
	env                 Env

	collection string
}

// NewPhraseExpressionRanker 创建短语相似度排序器，默认阈值0.75、max聚合
func NewPhraseExpressionRanker(env Env, id string, scorer nlp.TextScorer) *PhraseExpressionRanker {
	return &PhraseExpressionRanker{
		NLUID:               id,
		Scorer:              scorer,
		ConfidenceThreshold: 0.75,
		Aggregation:         "max",
		env:                 env,
		collection:          "PhraseExpressionRanker" + id,
	}
}

func (n *PhraseExpressionRanker) ID() string { return n.NLUID }

func (n *PhraseExpressionRanker) Init(retrain bool, trainingData *TrainingData) error {
	logrus.WithFields(logrus.Fields{"nlu": n.NLUID, "retrain": retrain}).Info("[NLU] 初始化短语排序器")

	// 集合不存在时必须重新训练
	if !n.env.DocStore().ExistsCollection(n.collection) {
		retrain = true
	}

	if !retrain {
		if err := n.env.DocStore().EnsureCollection(n.collection); err != nil {
			return err
		}
		logrus.WithField("nlu", n.NLUID).Info("[NLU] 已加载短语排序器")
		return nil
	}

	logrus.WithField("nlu", n.NLUID).Info("[NLU] 训练短语排序器")
	if n.env.DocStore().ExistsCollection(n.collection) {
		if err := n.env.DocStore().DeleteCollection(n.collection); err != nil {
			return err
		}
	}
	if err := n.env.DocStore().EnsureCollection(n.collection); err != nil {
		return err
	}

	if trainingData == nil {
		trainingData = CreateTrainingData(n.env, nil)
	}

	bar := progressbar.Default(int64(len(trainingData.PhrasePatterns)), "标注训练短语")
	for _, pattern := range trainingData.PhrasePatterns {
		phrases, err := pattern.GeneratePhrases(n.env, models.GenerateOptions{MaxPhrases: maxTrainPhrasesPerPattern})
		if err != nil {
			return fmt.Errorf("生成训练短语失败: %w", err)
		}
		for _, phrase := range phrases {
			annotation, err := n.Scorer.Annotate(phrase.Text)
			if err != nil {
				return fmt.Errorf("标注短语 %q 失败: %w", phrase.Text, err)
			}
			serialized, err := json.Marshal(annotation)
			if err != nil {
				return fmt.Errorf("序列化标注失败: %w", err)
			}
			if err := n.env.DocStore().IndexObject(n.collection, map[string]any{
				"expression_id": phrase.ExpressionID,
				"text":          phrase.Text,
				"annotation":    string(serialized),
			}, []string{"expression_id", "text"}); err != nil {
				return err
			}
		}
		_ = bar.Add(1)
	}
	return n.env.DocStore().Commit(n.collection)
}

func (n *PhraseExpressionRanker) Run(utterance string, intentFilter []string) (*Result, error) {
	if intentFilter == nil {
		intentFilter = allIntentIDs(n.env)
	}
	exprFilter := expressionFilter(n.env, intentFilter)

	utteranceAnnotation, err := n.Scorer.Annotate(utterance)
	if err != nil {
		return nil, fmt.Errorf("标注话语失败: %w", err)
	}

	docs, err := n.env.DocStore().Find(n.collection, store.AttrIn("expression_id", exprFilter), 0)
	if err != nil {
		return nil, err
	}

	scores := make(map[string][]float64)
	var order []string
	for _, doc := range docs {
		expressionID, _ := doc["expression_id"].(string)
		serialized, _ := doc["annotation"].(string)
		var annotation nlp.Annotation
		if err := json.Unmarshal([]byte(serialized), &annotation); err != nil {
			return nil, fmt.Errorf("解析短语标注失败: %w", err)
		}
		if _, exists := scores[expressionID]; !exists {
			order = append(order, expressionID)
		}
		scores[expressionID] = append(scores[expressionID], n.Scorer.Similarity(utteranceAnnotation, &annotation))
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
		ConfidenceThreshold: n.ConfidenceThreshold,
	}, nil
}
