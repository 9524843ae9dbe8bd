package nlp

import (
	"fmt"
	"strings"
)

// Annotation 文本的预处理表示，可序列化后存储，避免重复计算
type Annotation struct {
	Text   string    `json:"text,omitempty"`
	Vector []float64 `json:"vector,omitempty"`
}

// TextScorer 计算两段文本的相似度
// 文本先经过Annotate预处理，相似度在预处理结果之间计算，
// 这样已知文本的预处理结果可以离线算好并持久化
type TextScorer interface {
	// ID 评分器标识，参与模型存储的键
	ID() string
	// Annotate 预处理文本
	Annotate(text string) (*Annotation, error)
	// Similarity 计算两个预处理结果的相似度
	Similarity(a1, a2 *Annotation) float64
}

// VectorTextScorer 基于文本向量余弦相似度的评分器
type VectorTextScorer struct {
	ScorerID   string
	Vectorizer TextVectorizer
	IgnoreCase bool
}

// NewVectorTextScorer 创建向量相似度评分器
func NewVectorTextScorer(id string, vectorizer TextVectorizer, ignoreCase bool) *VectorTextScorer {
	return &VectorTextScorer{ScorerID: id, Vectorizer: vectorizer, IgnoreCase: ignoreCase}
}

func (s *VectorTextScorer) ID() string { return s.ScorerID }

func (s *VectorTextScorer) Annotate(text string) (*Annotation, error) {
	if s.IgnoreCase {
		text = strings.ToLower(text)
	}
	vector, err := s.Vectorizer.Vectorize(text)
	if err != nil {
		return nil, fmt.Errorf("向量化文本失败: %w", err)
	}
	return &Annotation{Vector: vector}, nil
}

func (s *VectorTextScorer) Similarity(a1, a2 *Annotation) float64 {
	return CosineSimilarity(a1.Vector, a2.Vector)
}

// SequenceMatcherTextScorer 基于最长公共块匹配率的评分器
// 相似度为 2*M/T，M是两段文本所有公共匹配块的总长度，T是两段文本的总长度
type SequenceMatcherTextScorer struct {
	ScorerID string
}

// NewSequenceMatcherTextScorer 创建字符匹配率评分器
func NewSequenceMatcherTextScorer(id string) *SequenceMatcherTextScorer {
	return &SequenceMatcherTextScorer{ScorerID: id}
}

func (s *SequenceMatcherTextScorer) ID() string { return s.ScorerID }

func (s *SequenceMatcherTextScorer) Annotate(text string) (*Annotation, error) {
	return &Annotation{Text: text}, nil
}

func (s *SequenceMatcherTextScorer) Similarity(a1, a2 *Annotation) float64 {
	t1 := []rune(strings.ToLower(a1.Text))
	t2 := []rune(strings.ToLower(a2.Text))
	total := len(t1) + len(t2)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingTotal(t1, t2)) / float64(total)
}

// matchingTotal 递归地找最长公共块，再分别匹配其左右两侧的剩余部分
func matchingTotal(a, b []rune) int {
	aStart, bStart, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchingTotal(a[:aStart], b[:bStart])
	total += matchingTotal(a[aStart+size:], b[bStart+size:])
	return total
}

func longestMatch(a, b []rune) (aStart, bStart, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}
	// lengths[j] 表示以 a[i-1] 和 b[j-1] 结尾的公共后缀长度
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > size {
					size = curr[j]
					aStart = i - size
					bStart = j - size
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return aStart, bStart, size
}
