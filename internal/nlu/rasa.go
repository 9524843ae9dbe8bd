package nlu

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dialoguekeeper/service/internal/models"
)

// ConvertedValuePrefix 区分离散取值和表面文本的前缀
// Rasa不区分我们定义的离散取值集合和表面文本，加前缀保证两者不会冲突
const ConvertedValuePrefix = "CONVERTED_VALUE_"

// 每个短语模式用于Rasa训练的生成短语数量上限
const maxRasaPhrasesPerPattern = 15

// RasaNLU 通过HTTP调用Rasa服务的NLU，同时做表达式排序和实体抽取
//
// Rasa无法把识别限制在意图子集上，所以运行时用完整的intent_ranking
// 按表达式过滤，并假设抽取出的实体对过滤后的表达式仍然有效
type RasaNLU struct {
	NLUID               string
	ServerURL           string
	ConfidenceThreshold float64
	Timeout             time.Duration

	env    Env
	mapper *EntityValueMapper
}

// NewRasaNLU 创建Rasa适配NLU，默认置信阈值0.48
func NewRasaNLU(env Env, id, serverURL string) *RasaNLU {
	return &RasaNLU{
		NLUID:               id,
		ServerURL:           serverURL,
		ConfidenceThreshold: 0.48,
		Timeout:             120 * time.Second,
		env:                 env,
		mapper:              NewEntityValueMapper(env),
	}
}

func (n *RasaNLU) ID() string { return n.NLUID }

type rasaEntityAnnotation struct {
	Entity string `json:"entity"`
	Value  string `json:"value"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
}

type rasaTrainingExample struct {
	Text     string                 `json:"text"`
	Intent   string                 `json:"intent"`
	Entities []rasaEntityAnnotation `json:"entities"`
}

type rasaRegexFeature struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
}

type rasaTrainingPayload struct {
	TrainingExamples []rasaTrainingExample `json:"training_examples"`
	EntitySynonyms   map[string]string     `json:"entity_synonyms"`
	RegexFeatures    []rasaRegexFeature    `json:"regex_features"`
}

func (n *RasaNLU) Init(retrain bool, trainingData *TrainingData) error {
	logrus.WithFields(logrus.Fields{"nlu": n.NLUID, "retrain": retrain}).Info("[NLU] 初始化Rasa适配器")

	if err := n.mapper.Init(retrain, trainingData); err != nil {
		return err
	}

	// 服务端没有可用模型时必须重新训练
	if !retrain && !n.hasModel() {
		retrain = true
	}
	if !retrain {
		logrus.WithField("nlu", n.NLUID).Info("[NLU] 已加载Rasa模型")
		return nil
	}

	if trainingData == nil {
		trainingData = CreateTrainingData(n.env, nil)
	}

	logrus.WithField("nlu", n.NLUID).Info("[NLU] 训练Rasa模型")
	payload, err := n.buildTrainingPayload(trainingData)
	if err != nil {
		return err
	}
	return n.postJSON("/model/train", payload, nil)
}

func (n *RasaNLU) buildTrainingPayload(trainingData *TrainingData) (*rasaTrainingPayload, error) {
	examples, err := n.trainingExamples(trainingData)
	if err != nil {
		return nil, err
	}
	features, err := n.regexFeatures(trainingData)
	if err != nil {
		return nil, err
	}
	return &rasaTrainingPayload{
		TrainingExamples: examples,
		EntitySynonyms:   n.entitySynonyms(trainingData),
		RegexFeatures:    features,
	}, nil
}

func (n *RasaNLU) trainingExamples(trainingData *TrainingData) ([]rasaTrainingExample, error) {
	var examples []rasaTrainingExample
	seen := make(map[string]bool)
	for _, pattern := range trainingData.PhrasePatterns {
		phrases, err := pattern.GeneratePhrases(n.env, models.GenerateOptions{MaxPhrases: maxRasaPhrasesPerPattern})
		if err != nil {
			return nil, fmt.Errorf("生成训练短语失败: %w", err)
		}
		for _, phrase := range phrases {
			if seen[phrase.Key()] {
				continue
			}
			seen[phrase.Key()] = true

			entities := make([]rasaEntityAnnotation, 0, len(phrase.Entities))
			for _, e := range phrase.Entities {
				entities = append(entities, rasaEntityAnnotation{
					Entity: e.Entity,
					Value:  ConvertedValuePrefix + e.Value,
					Start:  e.Start,
					End:    e.End,
				})
			}
			examples = append(examples, rasaTrainingExample{
				Text:     phrase.Text,
				Intent:   phrase.ExpressionID,
				Entities: entities,
			})
		}
	}
	return examples, nil
}

// entitySynonyms 构造表面文本到取值的映射，只收录实际要抽取的取值
// 实体上下文、大小写敏感和有歧义的同义词在Rasa侧不支持，跳过并告警
func (n *RasaNLU) entitySynonyms(trainingData *TrainingData) map[string]string {
	entities := n.env.Entities(nil, trainingData.IntentFilter)
	entityIDs := make([]string, len(entities))
	for i, e := range entities {
		entityIDs[i] = e.ID
	}

	synonymValues := make(map[string][]string)
	var order []string
	for _, value := range n.env.Values(nil, entityIDs) {
		for _, synonym := range value.Synonyms {
			if synonym.EntityContext != "" {
				logrus.Warnf("[NLU] Rasa不支持带实体上下文的同义词: %q", synonym.Text)
				continue
			}
			if synonym.CaseSensitive {
				logrus.Warnf("[NLU] Rasa不支持大小写敏感的同义词: %q", synonym.Text)
				continue
			}
			if _, exists := synonymValues[synonym.Text]; !exists {
				order = append(order, synonym.Text)
			}
			if !containsString(synonymValues[synonym.Text], value.ID) {
				synonymValues[synonym.Text] = append(synonymValues[synonym.Text], value.ID)
			}
		}
	}

	res := make(map[string]string)
	for _, text := range order {
		values := synonymValues[text]
		if len(values) > 1 {
			logrus.Warnf("[NLU] Rasa不支持有歧义的同义词映射: %q => %v", text, values)
			continue
		}
		res[text] = ConvertedValuePrefix + values[0]
	}
	return res
}

// regexFeatures 为Rasa构造正则特征
// 取值特征覆盖全部取值（用于特征抽取），实体特征只覆盖被过滤意图使用的实体
func (n *RasaNLU) regexFeatures(trainingData *TrainingData) ([]rasaRegexFeature, error) {
	valuePatterns := make(map[string][]string)
	var valueOrder []string
	for _, value := range n.env.Values(nil, nil) {
		for _, rp := range value.AllRegexPatterns() {
			if rp.EntityContext != "" {
				logrus.Warnf("[NLU] Rasa不支持带实体上下文的正则模式: %q", rp.Pattern)
				continue
			}
			if _, exists := valuePatterns[value.ID]; !exists {
				valueOrder = append(valueOrder, value.ID)
			}
			if !containsString(valuePatterns[value.ID], rp.Pattern) {
				valuePatterns[value.ID] = append(valuePatterns[value.ID], rp.Pattern)
			}
		}
	}

	var res []rasaRegexFeature
	for _, valueID := range valueOrder {
		for _, chunk := range chunkStrings(valuePatterns[valueID], 10) {
			res = append(res, rasaRegexFeature{
				Name:    "value-" + ConvertedValuePrefix + valueID,
				Pattern: "(?:" + joinAlternatives(chunk) + ")",
			})
		}
	}

	for _, entity := range n.env.Entities(nil, trainingData.IntentFilter) {
		for _, valueRef := range entity.ValueRefs {
			for _, chunk := range chunkStrings(valuePatterns[valueRef], 10) {
				res = append(res, rasaRegexFeature{
					Name:    entity.ID,
					Pattern: "(?:" + joinAlternatives(chunk) + ")",
				})
			}
		}
	}
	return res, nil
}

type rasaParseResult struct {
	IntentRanking []struct {
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
	} `json:"intent_ranking"`
	Entities []struct {
		Start      int      `json:"start"`
		End        int      `json:"end"`
		Entity     string   `json:"entity"`
		Value      string   `json:"value"`
		Confidence *float64 `json:"confidence"`
		Extractor  string   `json:"extractor"`
	} `json:"entities"`
}

func (n *RasaNLU) Run(utterance string, intentFilter []string) (*Result, error) {
	if intentFilter == nil {
		intentFilter = allIntentIDs(n.env)
	}
	exprFilter := expressionFilter(n.env, intentFilter)

	var parsed rasaParseResult
	if err := n.postJSON("/model/parse", map[string]any{"text": utterance}, &parsed); err != nil {
		return nil, err
	}

	allowed := make(map[string]bool, len(exprFilter))
	for _, id := range exprFilter {
		allowed[id] = true
	}
	var ranking []models.RankingScore
	for _, entry := range parsed.IntentRanking {
		if allowed[entry.Name] {
			ranking = append(ranking, models.RankingScore{RefID: entry.Name, Score: entry.Confidence})
		}
	}
	ranking = models.CompleteRanking(ranking, exprFilter, 0)

	// Rasa按字符计数区间，转成字节偏移后再切片；区间越界的实体跳过
	runes := []rune(utterance)
	var entities []models.ExtractedEntity
	for _, entry := range parsed.Entities {
		if entry.Start < 0 || entry.End < entry.Start || entry.End > len(runes) {
			logrus.Warnf("[NLU] Rasa返回的实体区间越界，跳过: [%d, %d)", entry.Start, entry.End)
			continue
		}
		start := len(string(runes[:entry.Start]))
		end := start + len(string(runes[entry.Start:entry.End]))

		value := n.resolveValue(entry.Entity, entry.Value, intentFilter)
		confidence := 1.0
		if entry.Confidence != nil {
			confidence = *entry.Confidence
		}
		entity, err := models.NewExtractedEntity(
			start, end, entry.Entity, value,
			utterance[start:end], confidence, n.NLUID)
		if err != nil {
			continue
		}
		entities = append(entities, entity)
	}

	return &Result{
		Utterance:           utterance,
		ExpressionRanking:   ranking,
		ConfidenceThreshold: n.ConfidenceThreshold,
		Entities:            models.MergeEntities(nil, entities),
	}, nil
}

// resolveValue 把Rasa返回的取值解析为我们定义的离散取值
// Rasa返回的可能是加前缀的取值，也可能是表面文本，后者交给映射器解析
func (n *RasaNLU) resolveValue(rasaEntity, rasaValue string, intentFilter []string) string {
	if len(rasaValue) > len(ConvertedValuePrefix) && rasaValue[:len(ConvertedValuePrefix)] == ConvertedValuePrefix {
		return rasaValue[len(ConvertedValuePrefix):]
	}
	if _, valueID, ok := n.mapper.Run(rasaEntity, rasaValue, intentFilter); ok {
		return valueID
	}
	return ""
}

// hasModel 询问Rasa服务是否已有可用模型
func (n *RasaNLU) hasModel() bool {
	client := &http.Client{Timeout: n.Timeout}
	resp, err := client.Get(n.ServerURL + "/status")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var status struct {
		HasModel bool `json:"has_model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false
	}
	return status.HasModel
}

func (n *RasaNLU) postJSON(path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化Rasa请求失败: %w", err)
	}

	client := &http.Client{Timeout: n.Timeout}
	resp, err := client.Post(n.ServerURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("Rasa请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取Rasa响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Rasa返回错误状态码: %d, 响应: %s", resp.StatusCode, string(respBody))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("解析Rasa响应失败: %w", err)
		}
	}
	return nil
}

func containsString(list []string, item string) bool {
	for _, x := range list {
		if x == item {
			return true
		}
	}
	return false
}

func chunkStrings(list []string, maxElems int) [][]string {
	var res [][]string
	for start := 0; start < len(list); start += maxElems {
		end := start + maxElems
		if end > len(list) {
			end = len(list)
		}
		res = append(res, list[start:end])
	}
	return res
}

func joinAlternatives(patterns []string) string {
	sorted := make([]string, len(patterns))
	copy(sorted, patterns)
	sort.Strings(sorted)
	joined := ""
	for i, p := range sorted {
		if i > 0 {
			joined += "|"
		}
		joined += p
	}
	return joined
}
