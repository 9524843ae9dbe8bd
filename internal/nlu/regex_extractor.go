package nlu

import (
	"github.com/sirupsen/logrus"

	"github.com/dialoguekeeper/service/internal/models"
)

// EntityValueExtractor 从文本中抽取实体
// 用取值的正则模式在文本中查找所有出现位置，歧义的抽取结果在收尾时清理
type EntityValueExtractor struct {
	env      Env
	patterns []valuePattern
}

// NewEntityValueExtractor 创建实体抽取器
func NewEntityValueExtractor(env Env) *EntityValueExtractor {
	return &EntityValueExtractor{env: env}
}

func (x *EntityValueExtractor) Init(retrain bool, trainingData *TrainingData) error {
	if trainingData == nil {
		trainingData = CreateTrainingData(x.env, nil)
	}

	patterns, err := collectValuePatterns(x.env, trainingData.IntentFilter, false)
	if err != nil {
		return err
	}
	x.patterns = patterns
	return nil
}

// Run 从文本中抽取所有实体
// entityContext为已知的实体ID，未知时传空串
func (x *EntityValueExtractor) Run(entityContext, text string, intentFilter []string) ([]models.ExtractedEntity, error) {
	allowed := allowedEntities(x.env, entityContext, intentFilter)

	var candidates []models.ExtractedEntity
	for _, vp := range x.patterns {
		if !allowed[vp.entity] {
			continue
		}
		if vp.needsContext && (entityContext == "" || entityContext != vp.entity) {
			continue
		}
		for _, loc := range vp.pattern.FindAllStringIndex(text, -1) {
			if loc[1] <= loc[0] {
				continue
			}
			entity, err := models.NewExtractedEntity(
				loc[0], loc[1], vp.entity, vp.value, text[loc[0]:loc[1]], 1.0, "")
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, entity)
		}
	}

	return models.RemoveAmbiguousEntities(candidates), nil
}

// RegexEntityExtractor 只做实体抽取的NLU，不做表达式排序
type RegexEntityExtractor struct {
	NLUID     string
	env       Env
	extractor *EntityValueExtractor
}

// NewRegexEntityExtractor 创建正则实体抽取NLU
func NewRegexEntityExtractor(env Env, id string) *RegexEntityExtractor {
	return &RegexEntityExtractor{
		NLUID:     id,
		env:       env,
		extractor: NewEntityValueExtractor(env),
	}
}

func (n *RegexEntityExtractor) ID() string { return n.NLUID }

func (n *RegexEntityExtractor) Init(retrain bool, trainingData *TrainingData) error {
	logrus.WithFields(logrus.Fields{"nlu": n.NLUID, "retrain": retrain}).Info("[NLU] 初始化正则实体抽取器")
	return n.extractor.Init(retrain, trainingData)
}

func (n *RegexEntityExtractor) Run(utterance string, intentFilter []string) (*Result, error) {
	entities, err := n.extractor.Run("", utterance, intentFilter)
	if err != nil {
		return nil, err
	}
	return &Result{
		Utterance:           utterance,
		ConfidenceThreshold: 1.0,
		Entities:            entities,
	}, nil
}
