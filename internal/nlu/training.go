package nlu

import (
	"fmt"

	"github.com/dialoguekeeper/service/internal/models"
)

// TrainingData NLU训练数据：限定的意图集合及其表达式携带的所有短语模式
type TrainingData struct {
	IntentFilter   []string
	PhrasePatterns []*models.PhrasePattern
}

// CreateTrainingData 从环境中收集训练数据
// intentFilter为nil时使用所有注册意图；短语模式按(表达式ID, 模式串)去重
func CreateTrainingData(env Env, intentFilter []string) *TrainingData {
	if intentFilter == nil {
		intentFilter = allIntentIDs(env)
	}

	var patterns []*models.PhrasePattern
	seen := make(map[string]bool)
	for _, expression := range env.NLExpressions(intentFilter) {
		for _, pattern := range expression.PhrasePatterns {
			if seen[pattern.Key()] {
				continue
			}
			seen[pattern.Key()] = true
			patterns = append(patterns, pattern)
		}
	}

	return &TrainingData{
		IntentFilter:   intentFilter,
		PhrasePatterns: patterns,
	}
}

func (d *TrainingData) String() string {
	return fmt.Sprintf("(TrainingData: #intents=%d, #phrase_patterns=%d)",
		len(d.IntentFilter), len(d.PhrasePatterns))
}
