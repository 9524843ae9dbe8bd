package dialogue

import (
	"sort"

	"github.com/dialoguekeeper/service/internal/models"
)

// TopSimilarScores 从一组得分中取出头部相近的一簇
//
// 把得分降序排列后按最大间隔一分为二，返回属于高分簇的原始元素。
// minScore作为人工下界参与聚类但不出现在结果中，用来防止所有得分
// 都离下界很近时仍被拆成两簇。元素不足两个时原样返回
func TopSimilarScores(scores []models.RankingScore, minScore float64) []models.RankingScore {
	if len(scores) <= 1 {
		return scores
	}

	type entry struct {
		score float64
		idx   int // 原始下标，-1表示人工下界
	}
	entries := make([]entry, 0, len(scores)+1)
	for i, s := range scores {
		entries = append(entries, entry{score: s.Score, idx: i})
	}
	entries = append(entries, entry{score: minScore, idx: -1})

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].score > entries[j].score
	})

	// 最大相邻间隔处切分
	split := len(entries) - 1
	maxGap := -1.0
	for i := 0; i < len(entries)-1; i++ {
		gap := entries[i].score - entries[i+1].score
		if gap > maxGap {
			maxGap = gap
			split = i + 1
		}
	}

	var res []models.RankingScore
	for _, e := range entries[:split] {
		if e.idx >= 0 {
			res = append(res, scores[e.idx])
		}
	}
	return res
}
