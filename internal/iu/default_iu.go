package iu

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/dialoguekeeper/service/internal/models"
	"github.com/dialoguekeeper/service/internal/nlp"
	"github.com/dialoguekeeper/service/internal/nlu"
)

// 内置NLU流水线的标识
const (
	NLUSentTran = "senttran"
	NLURasa     = "rasa"
)

// Options DefaultIU的可选配置
type Options struct {
	// DefaultNLU 默认使用的NLU标识，必须在ActiveNLUs中
	DefaultNLU string
	// ActiveNLUs 实际启用的NLU标识。训练代价较高，只训练被启用的NLU
	ActiveNLUs []string
	// Scorer 短语排序器使用的文本打分器，nil时使用本地哈希向量打分器
	Scorer nlp.TextScorer
	// RasaServerURL 外部Rasa服务地址，rasa流水线启用时必填
	RasaServerURL string
}

// DefaultIU 默认意图理解实现
//
// 对自然语言输入运行所选NLU流水线得到表达式排序，再把表达式得分解析回意图；
// 非自然语言输入（点选/结构化）按触发器直接给出完美分数。
type DefaultIU struct {
	env        Env
	defaultNLU string
	activeNLUs []string
	nlus       map[string]nlu.NLU
}

// NewDefaultIU 创建默认意图理解单元，内置rasa和senttran两条流水线
func NewDefaultIU(env Env, opts Options) *DefaultIU {
	if opts.DefaultNLU == "" {
		opts.DefaultNLU = NLUSentTran
	}
	if opts.ActiveNLUs == nil {
		opts.ActiveNLUs = []string{NLUSentTran}
	}
	scorer := opts.Scorer
	if scorer == nil {
		scorer = nlp.NewVectorTextScorer("senttran.scorer",
			nlp.NewHashingVectorizer("senttran.hashing", 512), false)
	}

	u := &DefaultIU{
		env:        env,
		defaultNLU: opts.DefaultNLU,
		activeNLUs: opts.ActiveNLUs,
		nlus:       make(map[string]nlu.NLU),
	}

	u.AddNLU(nlu.NewPipelineNLU(env, NLURasa,
		&nlu.PipelineElement{
			NLU:             nlu.NewRegexExpressionRanker(env, "rasa.regex"),
			UseExpressions:  true,
			ExpressionUsage: nlu.PerfectMatch,
		},
		&nlu.PipelineElement{
			NLU:             nlu.NewRasaNLU(env, "rasa.rasa", opts.RasaServerURL),
			UseExpressions:  true,
			UseEntities:     true,
			ExpressionUsage: nlu.AddScores,
		},
	))

	phraseRanker := nlu.NewPhraseExpressionRanker(env, "senttran.phrase", scorer)
	phraseRanker.ConfidenceThreshold = 0.7

	u.AddNLU(nlu.NewPipelineNLU(env, NLUSentTran,
		&nlu.PipelineElement{
			NLU:             nlu.NewRegexExpressionRanker(env, "senttran.expression-regex"),
			UseExpressions:  true,
			ExpressionUsage: nlu.PerfectMatch,
		},
		&nlu.PipelineElement{
			NLU:             nlu.NewIndexExpressionRanker(env, "senttran.index"),
			UseExpressions:  true,
			ExpressionUsage: nlu.FilterTopK,
			ExpressionTopK:  50,
		},
		&nlu.PipelineElement{
			NLU:             phraseRanker,
			UseExpressions:  true,
			ExpressionUsage: nlu.AddScores,
		},
		&nlu.PipelineElement{
			NLU:         nlu.NewRegexEntityExtractor(env, "senttran.entity-regex"),
			UseEntities: true,
		},
	))

	return u
}

// AddNLU 注册一个NLU，同ID会被替换
func (u *DefaultIU) AddNLU(n nlu.NLU) {
	u.nlus[n.ID()] = n
}

func (u *DefaultIU) activeNLUSet() map[string]nlu.NLU {
	res := make(map[string]nlu.NLU)
	for _, id := range u.activeNLUs {
		if n, ok := u.nlus[id]; ok {
			res[id] = n
		}
	}
	return res
}

// determineNLU 可以在这里按话语选择最合适的NLU，目前固定使用默认NLU
func (u *DefaultIU) determineNLU(input models.NLInput, state *models.DialogueState) string {
	return u.defaultNLU
}

func (u *DefaultIU) Init(retrain bool) error {
	logrus.WithField("retrain", retrain).Info("[IU] 初始化意图理解单元")

	for _, id := range u.activeNLUs {
		n, ok := u.nlus[id]
		if !ok {
			return fmt.Errorf("未知的NLU %q", id)
		}
		if err := n.Init(retrain, nil); err != nil {
			return fmt.Errorf("初始化NLU %q 失败: %w", id, err)
		}
	}
	return nil
}

// matchableIntents 返回输入上下文满足且触发器匹配该输入的意图ID（注册顺序）
func (u *DefaultIU) matchableIntents(input models.UserInput, state *models.DialogueState) []string {
	var res []string
	for _, intent := range u.env.Intents(nil, nil, nil) {
		if intent.HasContexts(state) && intent.HasTrigger(input) {
			res = append(res, intent.ID)
		}
	}
	return res
}

// expressionToIntentRanking 把表达式排序解析回意图排序
// 只有短语触发的意图才有对应表达式得分，其余意图不出现在结果中
func (u *DefaultIU) expressionToIntentRanking(state *models.DialogueState, intentFilter []string,
	expressionRanking []models.RankingScore) []models.RankingScore {

	expressionScores := make(map[string]float64, len(expressionRanking))
	for _, s := range expressionRanking {
		expressionScores[s.RefID] = s.Score
	}

	var ranking []models.RankingScore
	for _, intentID := range intentFilter {
		intent, err := u.env.Intent(intentID)
		if err != nil {
			continue
		}
		if expr := intent.NLExpression(); expr != nil {
			if score, ok := expressionScores[expr.ID]; ok {
				ranking = append(ranking, models.RankingScore{RefID: intentID, Score: score})
			}
		}
	}
	return SortIntentRanking(u.env, state, ranking)
}

// nlFallbackIntent 返回回退意图：匹配范围内第一个带回退触发器的意图
// 存在多个回退意图时按ID字典序取最小的，保证结果确定
func (u *DefaultIU) nlFallbackIntent(matchable []string) string {
	var candidates []string
	for _, intentID := range matchable {
		intent, err := u.env.Intent(intentID)
		if err != nil {
			continue
		}
		if _, ok := intent.NLTrigger.(*models.FallbackNLTrigger); ok {
			candidates = append(candidates, intentID)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Strings(candidates)
	return candidates[0]
}

// runNLU 运行NLU并把表达式排序解析为意图排序
func (u *DefaultIU) runNLU(input models.NLInput, state *models.DialogueState,
	intentFilter []string) (intentRanking []models.RankingScore, nluResult *nlu.Result, err error) {

	nluName := u.determineNLU(input, state)
	n, ok := u.activeNLUSet()[nluName]
	if !ok {
		return nil, nil, fmt.Errorf("NLU %q 未启用", nluName)
	}
	logrus.WithField("nlu", nluName).Info("[IU] 运行NLU")

	res, err := n.Run(input.Text, intentFilter)
	if err != nil {
		return nil, nil, fmt.Errorf("运行NLU %q 失败: %w", nluName, err)
	}
	res.Log()

	return u.expressionToIntentRanking(state, intentFilter, res.ExpressionRanking), res, nil
}

// scoreMatchableIntent 给单个匹配意图打分
// 自然语言输入：任意话语触发器得完美分，其余按NLU意图得分（缺省0）；
// 非自然语言输入能走到这里说明触发器已匹配，直接完美分。
// 意图的自定义评分钩子可以覆盖上述结果
func (u *DefaultIU) scoreMatchableIntent(input models.UserInput, state *models.DialogueState,
	intent *models.Intent, nluScore float64) models.CustomScore {

	var score models.CustomScore
	if _, isNL := input.(models.NLInput); isNL {
		if _, any := intent.NLTrigger.(*models.AnyNLTrigger); any {
			score = models.PerfectScore{}
		} else {
			score = models.FloatScore{Value: nluScore}
		}
	} else {
		score = models.PerfectScore{}
	}

	if intent.CustomScore != nil {
		score = intent.CustomScore(input, state, score)
	}
	return score
}

// scoreMatchableIntents 给所有匹配意图打分并排序
// 只要出现完美分数，排序退化为完美意图得1分、其余得0分，且置信阈值提升为1
func (u *DefaultIU) scoreMatchableIntents(input models.UserInput, state *models.DialogueState,
	nluRanking []models.RankingScore, nluThreshold float64,
	matchable []string) ([]models.RankingScore, float64, error) {

	nluScores := make(map[string]float64, len(nluRanking))
	for _, s := range nluRanking {
		nluScores[s.RefID] = s.Score
	}

	scores := make(map[string]models.CustomScore, len(matchable))
	hasPerfect := false
	for _, intentID := range matchable {
		intent, err := u.env.Intent(intentID)
		if err != nil {
			return nil, 0, err
		}
		score := u.scoreMatchableIntent(input, state, intent, nluScores[intentID])
		scores[intentID] = score
		if _, ok := score.(models.PerfectScore); ok {
			hasPerfect = true
		}
	}

	confidenceThreshold := nluThreshold
	ranking := make([]models.RankingScore, 0, len(matchable))
	for _, intentID := range matchable {
		switch s := scores[intentID].(type) {
		case models.PerfectScore:
			ranking = append(ranking, models.RankingScore{RefID: intentID, Score: 1.0})
		case models.FloatScore:
			value := s.Value
			if hasPerfect {
				value = 0
			}
			ranking = append(ranking, models.RankingScore{RefID: intentID, Score: value})
		}
	}
	if hasPerfect {
		confidenceThreshold = 1.0
	}

	return SortIntentRanking(u.env, state, ranking), confidenceThreshold, nil
}

// extractEntities 汇总实体：NLU抽取的实体加上首位意图的自定义抽取钩子
func (u *DefaultIU) extractEntities(intentID string, nluResult *nlu.Result,
	input models.UserInput, state *models.DialogueState) []models.ExtractedEntity {

	var entities []models.ExtractedEntity
	if nluResult != nil {
		entities = models.MergeEntities(nil, nluResult.Entities)
	}

	if intentID != "" {
		if intent, err := u.env.Intent(intentID); err == nil && intent.CustomExtract != nil {
			entities = intent.CustomExtract(input, state, entities)
		}
	}
	return entities
}

func (u *DefaultIU) Run(input models.UserInput, state *models.DialogueState) (*Result, error) {
	logrus.Infof("[IU] 处理输入 %v", input)

	matchable := u.matchableIntents(input, state)
	logrus.Infof("[IU] 待考虑意图 %d / %d", len(matchable), len(u.env.Intents(nil, nil, nil)))

	var nluIntentRanking []models.RankingScore
	var nluResult *nlu.Result
	nluThreshold := 0.0
	if nlInput, ok := input.(models.NLInput); ok {
		var err error
		nluIntentRanking, nluResult, err = u.runNLU(nlInput, state, matchable)
		if err != nil {
			return nil, err
		}
		nluThreshold = nluResult.ConfidenceThreshold
	}

	intentRanking, confidenceThreshold, err := u.scoreMatchableIntents(
		input, state, nluIntentRanking, nluThreshold, matchable)
	if err != nil {
		return nil, err
	}

	topIntentID := ""
	if len(intentRanking) > 0 {
		topIntentID = intentRanking[0].RefID
		logrus.Infof("[IU] 首位意图 %q", topIntentID)
	} else {
		logrus.Info("[IU] 未找到首位意图")
	}

	fallbackIntentID := ""
	if _, ok := input.(models.NLInput); ok {
		fallbackIntentID = u.nlFallbackIntent(matchable)
		if fallbackIntentID != "" {
			logrus.Infof("[IU] 回退意图 %q", fallbackIntentID)
		}
	}

	entities := u.extractEntities(topIntentID, nluResult, input, state)

	return &Result{
		UserInput:           input,
		IntentRanking:       intentRanking,
		ConfidenceThreshold: confidenceThreshold,
		Entities:            entities,
		NLUResult:           nluResult,
		FallbackIntentID:    fallbackIntentID,
	}, nil
}

func (u *DefaultIU) UpdateEntities(intentID string, result *Result, state *models.DialogueState) ([]models.ExtractedEntity, error) {
	return u.extractEntities(intentID, result.NLUResult, result.UserInput, state), nil
}
