// Package index 提供进程内的倒排索引，支持相似文本检索和关键词抽取
package index

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"github.com/dialoguekeeper/service/internal/nlp"
)

var indexNameRegex = regexp.MustCompile(`[^0-9a-zA-Z.-]`)

// Document 索引中的一条文档，字段名到字段文本的映射
type Document map[string]string

// Hit 检索命中结果
type Hit struct {
	Score float64
	Doc   Document
}

// Keyword 从文本中抽取出的关键词及其权重
type Keyword struct {
	Term   string
	Weight float64
}

// textIndex 单个索引的内存结构
// postings: 字段 -> 词项 -> 文档号 -> 词频，从文档全量重建，不单独持久化
type textIndex struct {
	docs     []Document
	postings map[string]map[string]map[int]int
	dirty    bool
}

func newTextIndex() *textIndex {
	return &textIndex{postings: make(map[string]map[string]map[int]int)}
}

func (idx *textIndex) add(doc Document) {
	docID := len(idx.docs)
	idx.docs = append(idx.docs, doc)
	for field, text := range doc {
		fieldPostings, exists := idx.postings[field]
		if !exists {
			fieldPostings = make(map[string]map[int]int)
			idx.postings[field] = fieldPostings
		}
		for _, term := range nlp.Terms(text) {
			termPostings, exists := fieldPostings[term]
			if !exists {
				termPostings = make(map[int]int)
				fieldPostings[term] = termPostings
			}
			termPostings[docID]++
		}
	}
}

// idf 词项的逆文档频率，词项未出现时为0
func (idx *textIndex) idf(field, term string) float64 {
	fieldPostings := idx.postings[field]
	if fieldPostings == nil {
		return 0
	}
	df := len(fieldPostings[term])
	if df == 0 {
		return 0
	}
	return math.Log(1 + float64(len(idx.docs))/float64(1+df))
}

// Handler 索引管理器，每个索引持久化为根目录下的一个JSON文件
type Handler struct {
	rootPath string
	indexes  map[string]*textIndex
	mu       sync.RWMutex
}

// NewHandler 创建索引管理器
func NewHandler(rootPath string) (*Handler, error) {
	log.Printf("[索引] 初始化索引管理器, 路径: %s", rootPath)
	if err := os.MkdirAll(rootPath, 0755); err != nil {
		log.Printf("[索引] 错误: 创建索引目录失败: %v", err)
		return nil, fmt.Errorf("创建索引目录失败: %w", err)
	}
	return &Handler{
		rootPath: rootPath,
		indexes:  make(map[string]*textIndex),
	}, nil
}

func (h *Handler) indexFile(name string) string {
	return filepath.Join(h.rootPath, indexNameRegex.ReplaceAllString(name, "-")+".json")
}

// ExistsIndex 判断索引是否存在
func (h *Handler) ExistsIndex(name string) bool {
	h.mu.RLock()
	_, loaded := h.indexes[name]
	h.mu.RUnlock()
	if loaded {
		return true
	}
	_, err := os.Stat(h.indexFile(name))
	return err == nil
}

// DeleteIndex 删除索引及其持久化文件
func (h *Handler) DeleteIndex(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.indexes, name)
	if err := os.Remove(h.indexFile(name)); err != nil && !os.IsNotExist(err) {
		log.Printf("[索引] 错误: 删除索引文件失败: %v", err)
		return fmt.Errorf("删除索引文件失败: %w", err)
	}
	log.Printf("[索引] 已删除索引: %s", name)
	return nil
}

// EnsureIndex 确保索引存在并加载到内存
func (h *Handler) EnsureIndex(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, loaded := h.indexes[name]; loaded {
		return nil
	}

	idx := newTextIndex()
	data, err := os.ReadFile(h.indexFile(name))
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("读取索引文件失败: %w", err)
		}
		log.Printf("[索引] 创建索引: %s", name)
	} else {
		var docs []Document
		if err := json.Unmarshal(data, &docs); err != nil {
			return fmt.Errorf("解析索引JSON失败: %w", err)
		}
		for _, doc := range docs {
			idx.add(doc)
		}
		idx.dirty = false
		log.Printf("[索引] 加载索引: %s, 文档数=%d", name, len(docs))
	}
	h.indexes[name] = idx
	return nil
}

// IndexObject 向索引写入一条文档，Commit后才落盘
func (h *Handler) IndexObject(name string, doc Document) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	idx, loaded := h.indexes[name]
	if !loaded {
		return fmt.Errorf("索引 %q 尚未加载，请先调用EnsureIndex", name)
	}
	idx.add(doc)
	idx.dirty = true
	return nil
}

// Commit 把索引的变更落盘
func (h *Handler) Commit(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	idx, loaded := h.indexes[name]
	if !loaded {
		return fmt.Errorf("索引 %q 尚未加载，请先调用EnsureIndex", name)
	}
	if !idx.dirty {
		return nil
	}

	docs := idx.docs
	if docs == nil {
		docs = []Document{}
	}
	data, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("序列化索引失败: %w", err)
	}
	if err := os.WriteFile(h.indexFile(name), data, 0644); err != nil {
		log.Printf("[索引] 错误: 写入索引文件失败: %v", err)
		return fmt.Errorf("写入索引文件失败: %w", err)
	}
	idx.dirty = false
	log.Printf("[索引] 已提交索引: %s, 文档数=%d", name, len(docs))
	return nil
}

// ExtractKeywords 从文本中抽取关键词，权重为词项在索引中的逆文档频率
// 所有词项都不在索引中时退化为朴素分词，每个词权重为1
func (h *Handler) ExtractKeywords(name, field, text string) ([]Keyword, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	idx, loaded := h.indexes[name]
	if !loaded {
		return nil, fmt.Errorf("索引 %q 尚未加载，请先调用EnsureIndex", name)
	}

	var keywords []Keyword
	seen := make(map[string]bool)
	for _, term := range nlp.Terms(text) {
		if seen[term] {
			continue
		}
		seen[term] = true
		if weight := idx.idf(field, term); weight > 0 {
			keywords = append(keywords, Keyword{Term: term, Weight: weight})
		}
	}

	if len(keywords) == 0 {
		log.Printf("[索引] 文本 %q 未能从索引抽取关键词，使用朴素分词", text)
		for term := range seen {
			keywords = append(keywords, Keyword{Term: term, Weight: 1.0})
		}
		sort.Slice(keywords, func(i, j int) bool { return keywords[i].Term < keywords[j].Term })
	}
	return keywords, nil
}

// SearchMoreLikeThis 检索与给定文本相似的文档
// 只返回filterField字段值在filterValues中的文档，按TF-IDF得分降序；limit<=0时不限制数量
func (h *Handler) SearchMoreLikeThis(name, filterField string, filterValues []string, textField, text string, limit int) ([]Hit, error) {
	keywords, err := h.ExtractKeywords(name, textField, text)
	if err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	idx := h.indexes[name]
	allowed := make(map[string]bool, len(filterValues))
	for _, v := range filterValues {
		allowed[v] = true
	}

	scores := make(map[int]float64)
	fieldPostings := idx.postings[textField]
	for _, kw := range keywords {
		termPostings := fieldPostings[kw.Term]
		if termPostings == nil {
			continue
		}
		idf := idx.idf(textField, kw.Term)
		for docID, tf := range termPostings {
			scores[docID] += kw.Weight * idf * (1 + math.Log(float64(tf)))
		}
	}

	var hits []Hit
	for docID, score := range scores {
		doc := idx.docs[docID]
		if !allowed[doc[filterField]] {
			continue
		}
		hits = append(hits, Hit{Score: score, Doc: doc})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
