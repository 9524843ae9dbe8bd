package models

import "fmt"

// ExtractedEntity 从用户话语中抽取出的实体片段
// 区间为半开区间 [Start, End)，指向原始话语中的字符位置
type ExtractedEntity struct {
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Entity     string  `json:"entity"`
	Value      string  `json:"value"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Extractor  string  `json:"extractor,omitempty"`
}

// NewExtractedEntity 创建实体抽取结果，end必须大于start
func NewExtractedEntity(start, end int, entity, value, text string, confidence float64, extractor string) (ExtractedEntity, error) {
	if end <= start {
		return ExtractedEntity{}, fmt.Errorf("实体区间无效: end(%d)不能小于等于start(%d)", end, start)
	}
	return ExtractedEntity{
		Start:      start,
		End:        end,
		Entity:     entity,
		Value:      value,
		Text:       text,
		Confidence: confidence,
		Extractor:  extractor,
	}, nil
}

// Same 判断两个抽取结果是否等价，只比较(entity, value, text)三元组
func (e ExtractedEntity) Same(other ExtractedEntity) bool {
	return e.Entity == other.Entity && e.Value == other.Value && e.Text == other.Text
}

func (e ExtractedEntity) String() string {
	return fmt.Sprintf("(%s: %s %q [%d:%d])", e.Entity, e.Value, e.Text, e.Start, e.End)
}

// EntitiesOverlap 判断两个实体的半开区间是否相交
func EntitiesOverlap(e1, e2 ExtractedEntity) bool {
	if e2.Start <= e1.Start && e1.Start < e2.End {
		return true
	}
	if e1.Start <= e2.Start && e2.Start < e1.End {
		return true
	}
	return false
}

// RemoveAmbiguousEntities 消除抽取歧义
// 对于(entity, value)相同且区间重叠的实体，保留文本最长的一个；长度相同时保留下标靠前的一个
// 注意：不同(entity, value)的重叠实体不做去重，由下游自行处理多种解释
func RemoveAmbiguousEntities(entities []ExtractedEntity) []ExtractedEntity {
	removeIdxs := make(map[int]bool)
	for i, e1 := range entities {
		for j, e2 := range entities {
			if i == j {
				continue
			}
			if !EntitiesOverlap(e1, e2) {
				continue
			}
			if e1.Entity != e2.Entity || e1.Value != e2.Value {
				continue
			}
			switch {
			case len(e1.Text) == len(e2.Text):
				if i <= j {
					removeIdxs[j] = true
				} else {
					removeIdxs[i] = true
				}
			case len(e1.Text) > len(e2.Text):
				removeIdxs[j] = true
			default:
				removeIdxs[i] = true
			}
		}
	}

	res := make([]ExtractedEntity, 0, len(entities))
	for i, e := range entities {
		if removeIdxs[i] {
			continue
		}
		res = append(res, e)
	}
	return res
}

// MergeEntities 合并两组实体并按(entity, value, text)去重
func MergeEntities(base, extra []ExtractedEntity) []ExtractedEntity {
	res := make([]ExtractedEntity, 0, len(base)+len(extra))
	res = append(res, base...)
	for _, e := range extra {
		dup := false
		for _, b := range res {
			if b.Same(e) {
				dup = true
				break
			}
		}
		if !dup {
			res = append(res, e)
		}
	}
	return res
}
