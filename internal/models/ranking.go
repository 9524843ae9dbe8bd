package models

import (
	"fmt"
	"sort"
)

// RankingScore 排序得分，关联一个引用ID（意图/表达式）和它的置信度分数
type RankingScore struct {
	RefID string  `json:"ref_id"`
	Score float64 `json:"score"`
}

func (s RankingScore) String() string {
	return fmt.Sprintf("(%q: %.3f)", s.RefID, s.Score)
}

// CompleteRanking 补全排序结果：只保留ids中存在的条目，缺失的条目以addedConf分数补齐
func CompleteRanking(ranking []RankingScore, ids []string, addedConf float64) []RankingScore {
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	res := make([]RankingScore, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, s := range ranking {
		if !idSet[s.RefID] {
			continue
		}
		if seen[s.RefID] {
			continue
		}
		res = append(res, s)
		seen[s.RefID] = true
	}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		res = append(res, RankingScore{RefID: id, Score: addedConf})
		seen[id] = true
	}
	return res
}

// AggregateFunc 列表聚合函数，用于把一组相似度分数压缩成单个分数
type AggregateFunc func(values []float64) float64

// ListAggregateFunc 根据名称解析聚合函数，支持 max/min/mean/median/sum，未知名称返回错误
func ListAggregateFunc(name string) (AggregateFunc, error) {
	switch name {
	case "max":
		return func(values []float64) float64 {
			res := values[0]
			for _, v := range values[1:] {
				if v > res {
					res = v
				}
			}
			return res
		}, nil
	case "min":
		return func(values []float64) float64 {
			res := values[0]
			for _, v := range values[1:] {
				if v < res {
					res = v
				}
			}
			return res
		}, nil
	case "mean":
		return Mean, nil
	case "sum":
		return func(values []float64) float64 {
			var res float64
			for _, v := range values {
				res += v
			}
			return res
		}, nil
	case "median":
		return func(values []float64) float64 {
			sorted := make([]float64, len(values))
			copy(sorted, values)
			sort.Float64s(sorted)
			n := len(sorted)
			if n%2 == 1 {
				return sorted[n/2]
			}
			return (sorted[n/2-1] + sorted[n/2]) / 2
		}, nil
	default:
		return nil, fmt.Errorf("无效的聚合函数: %q", name)
	}
}

// Mean 算术平均值，空列表返回0
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SortRanking 按分数降序稳定排序
func SortRanking(ranking []RankingScore) {
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Score > ranking[j].Score
	})
}
