// Package iu 提供意图理解单元：对用户输入做意图排序和实体抽取
package iu

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/dialoguekeeper/service/internal/models"
	"github.com/dialoguekeeper/service/internal/nlu"
)

// Env IU运行所需的环境能力，在NLU环境之上增加按ID查询意图
type Env interface {
	nlu.Env

	// Intent 按ID查询意图，未注册时报错
	Intent(intentID string) (*models.Intent, error)
}

// IU 意图理解单元
// 输入一条用户输入和当前对话状态，输出意图排序和抽取出的实体
type IU interface {
	// Init 使用前必须调用：retrain为true时重新训练所有模型，否则加载已有模型
	Init(retrain bool) error
	// Run 对用户输入做理解
	Run(input models.UserInput, state *models.DialogueState) (*Result, error)
	// UpdateEntities 对话处理有时不使用排序首位的意图（例如置信不足经用户确认后），
	// 此时需要按最终选定的意图重新抽取实体
	UpdateEntities(intentID string, result *Result, state *models.DialogueState) ([]models.ExtractedEntity, error)
}

// Result 意图理解结果
type Result struct {
	UserInput           models.UserInput         `json:"user_input"`
	IntentRanking       []models.RankingScore    `json:"intent_ranking"`
	ConfidenceThreshold float64                  `json:"confidence_threshold"`
	Entities            []models.ExtractedEntity `json:"entities"`
	NLUResult           *nlu.Result              `json:"nlu_result,omitempty"`
	FallbackIntentID    string                   `json:"fallback_intent_id,omitempty"` // 空表示由机器人决定回退行为
}

// ConfIntent 返回置信的首位意图，首位得分低于置信阈值时返回nil
func (r *Result) ConfIntent() *models.RankingScore {
	if len(r.IntentRanking) > 0 && r.IntentRanking[0].Score >= r.ConfidenceThreshold {
		return &r.IntentRanking[0]
	}
	return nil
}

// Log 输出理解结果概要，用于调试
func (r *Result) Log() {
	for i, s := range r.IntentRanking {
		if i >= 15 {
			break
		}
		mark := "-"
		if s.Score >= r.ConfidenceThreshold {
			mark = "+"
		}
		logrus.Debugf("[IU] %s %v", mark, s)
	}
	for _, e := range r.Entities {
		logrus.Debugf("[IU] 实体 %v", &e)
	}
	logrus.Debugf("[IU] 回退意图: %q", r.FallbackIntentID)
}

// Snapshot 导出用于记录/传输的结果表示
func (r *Result) Snapshot() map[string]any {
	ranking := make([]map[string]any, 0, len(r.IntentRanking))
	for i, s := range r.IntentRanking {
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
	res := map[string]any{
		"intent_ranking":       ranking,
		"confidence_threshold": r.ConfidenceThreshold,
		"entities":             entities,
		"fallback_intent_id":   r.FallbackIntentID,
	}
	if r.NLUResult != nil {
		res["nlu_result"] = r.NLUResult.Snapshot()
	}
	return res
}

// SortIntentRanking 对意图排序做稳定排序
// 首先按得分降序；得分相同时优先最近被设置的输入上下文（lived更小），
// 再相同时输入上下文更少的意图优先（上下文要求宽松的意图适用面更广）
func SortIntentRanking(env Env, state *models.DialogueState, ranking []models.RankingScore) []models.RankingScore {
	maxContextLived := 0
	for _, c := range state.Contexts() {
		if c.Lived > maxContextLived {
			maxContextLived = c.Lived
		}
	}

	// 值越小表示意图的输入上下文越新，没有输入上下文的意图取哨兵值
	recency := func(intent *models.Intent) int {
		res := maxContextLived + 1
		found := false
		for _, name := range intent.InputContexts {
			if c := state.Context(name); c != nil {
				if !found || c.Lived < res {
					res = c.Lived
					found = true
				}
			}
		}
		return res
	}

	sorted := make([]models.RankingScore, len(ranking))
	copy(sorted, ranking)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		intentI, errI := env.Intent(sorted[i].RefID)
		intentJ, errJ := env.Intent(sorted[j].RefID)
		if errI != nil || errJ != nil {
			return false
		}
		ri, rj := recency(intentI), recency(intentJ)
		if ri != rj {
			return ri < rj
		}
		return len(intentI.InputContexts) < len(intentJ.InputContexts)
	})
	return sorted
}
