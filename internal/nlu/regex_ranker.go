package nlu

import (
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/dialoguekeeper/service/internal/models"
)

// RegexExpressionRanker 基于正则模式的表达式排序器，不做实体抽取
// 使用表达式的包含/排除正则模式识别话语：话语从头匹配任一包含模式
// 且不匹配任何排除模式的表达式为候选；只有候选唯一时才给出得分1，
// 其余情况返回空排序。置信阈值固定为1
type RegexExpressionRanker struct {
	NLUID string
	env   Env

	includePatterns map[string][]*regexp.Regexp // 表达式ID -> 包含模式
	excludePatterns map[string][]*regexp.Regexp // 表达式ID -> 排除模式
}

// NewRegexExpressionRanker 创建正则表达式排序器
func NewRegexExpressionRanker(env Env, id string) *RegexExpressionRanker {
	return &RegexExpressionRanker{NLUID: id, env: env}
}

func (n *RegexExpressionRanker) ID() string { return n.NLUID }

func (n *RegexExpressionRanker) Init(retrain bool, trainingData *TrainingData) error {
	logrus.WithFields(logrus.Fields{"nlu": n.NLUID, "retrain": retrain}).Info("[NLU] 初始化正则排序器")

	if trainingData == nil {
		trainingData = CreateTrainingData(n.env, nil)
	}

	n.includePatterns = make(map[string][]*regexp.Regexp)
	n.excludePatterns = make(map[string][]*regexp.Regexp)
	for _, expression := range n.env.NLExpressions(trainingData.IntentFilter) {
		include, err := compilePrefixPatterns(expression.RegexPatterns)
		if err != nil {
			return fmt.Errorf("表达式 %q 的包含模式无效: %w", expression.ID, err)
		}
		exclude, err := compilePrefixPatterns(expression.ExcludeRegexPatterns)
		if err != nil {
			return fmt.Errorf("表达式 %q 的排除模式无效: %w", expression.ID, err)
		}
		n.includePatterns[expression.ID] = include
		n.excludePatterns[expression.ID] = exclude
	}
	return nil
}

func (n *RegexExpressionRanker) Run(utterance string, intentFilter []string) (*Result, error) {
	if intentFilter == nil {
		intentFilter = allIntentIDs(n.env)
	}
	exprFilter := expressionFilter(n.env, intentFilter)

	var candidates []string
	for _, expressionID := range exprFilter {
		if matchesAny(n.includePatterns[expressionID], utterance) &&
			!matchesAny(n.excludePatterns[expressionID], utterance) {
			candidates = append(candidates, expressionID)
		}
	}

	// 只接受无歧义的结果
	var ranking []models.RankingScore
	if len(candidates) == 1 {
		ranking = []models.RankingScore{{RefID: candidates[0], Score: 1.0}}
	}
	ranking = models.CompleteRanking(ranking, exprFilter, 0)

	return &Result{
		Utterance:           utterance,
		ExpressionRanking:   ranking,
		ConfidenceThreshold: 1.0,
	}, nil
}

// compilePrefixPatterns 编译从话语开头匹配的正则模式
func compilePrefixPatterns(patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(`^(?:` + p + `)`)
		if err != nil {
			return nil, fmt.Errorf("编译正则 %q 失败: %w", p, err)
		}
		res = append(res, re)
	}
	return res, nil
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
