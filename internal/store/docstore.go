package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

var collectionNameRegex = regexp.MustCompile(`[^0-9a-zA-Z-]`)

// Query 文档查询条件
// 值为字符串切片时表示"属性值在列表中"，其它值表示相等比较；nil查询匹配所有文档
type Query map[string]any

// AttrIn 构造"属性值在给定列表中"的查询条件
func AttrIn(attr string, values []string) Query {
	return Query{attr: values}
}

// Matches 判断文档是否满足查询条件
func (q Query) Matches(doc map[string]any) bool {
	for attr, want := range q {
		got, exists := doc[attr]
		if !exists {
			return false
		}
		switch want := want.(type) {
		case []string:
			found := false
			for _, v := range want {
				if got == v {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case []any:
			found := false
			for _, v := range want {
				if got == v {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			if got != want {
				return false
			}
		}
	}
	return true
}

// DocStore 文档存储
// 每个集合持久化为一个JSON文件，文档在内存中操作，Commit时落盘
type DocStore struct {
	storePath   string
	collections map[string][]map[string]any
	dirty       map[string]bool
	mu          sync.RWMutex
}

// NewDocStore 创建文档存储
func NewDocStore(storePath string) (*DocStore, error) {
	log.Printf("[文档存储] 初始化文档存储, 路径: %s", storePath)

	if err := os.MkdirAll(storePath, 0755); err != nil {
		log.Printf("[文档存储] 错误: 创建存储目录失败: %v", err)
		return nil, fmt.Errorf("创建文档存储目录失败: %w", err)
	}

	return &DocStore{
		storePath:   storePath,
		collections: make(map[string][]map[string]any),
		dirty:       make(map[string]bool),
	}, nil
}

// StorePath 返回存储根目录
func (s *DocStore) StorePath() string {
	return s.storePath
}

func (s *DocStore) collectionFile(collection string) string {
	name := collectionNameRegex.ReplaceAllString(collection, "-")
	return filepath.Join(s.storePath, name+".json")
}

// ExistsCollection 判断集合是否存在
func (s *DocStore) ExistsCollection(collection string) bool {
	s.mu.RLock()
	_, loaded := s.collections[collection]
	s.mu.RUnlock()
	if loaded {
		return true
	}
	_, err := os.Stat(s.collectionFile(collection))
	return err == nil
}

// EnsureCollection 确保集合存在并加载到内存
func (s *DocStore) EnsureCollection(collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, loaded := s.collections[collection]; loaded {
		return nil
	}
	docs, err := s.loadCollection(collection)
	if err != nil {
		return err
	}
	s.collections[collection] = docs
	log.Printf("[文档存储] 集合就绪: %s, 文档数=%d", collection, len(docs))
	return nil
}

// DeleteCollection 删除集合及其持久化文件
func (s *DocStore) DeleteCollection(collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections, collection)
	delete(s.dirty, collection)

	filePath := s.collectionFile(collection)
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		log.Printf("[文档存储] 错误: 删除集合文件失败: %v", err)
		return fmt.Errorf("删除集合文件失败: %w", err)
	}
	log.Printf("[文档存储] 已删除集合: %s", collection)
	return nil
}

// IndexObject 写入文档
// keyAttrs为空时直接追加（允许重复）；非空时按键属性查找已有文档并覆盖，不存在则追加
func (s *DocStore) IndexObject(collection string, obj map[string]any, keyAttrs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, loaded := s.collections[collection]
	if !loaded {
		var err error
		docs, err = s.loadCollection(collection)
		if err != nil {
			return err
		}
	}

	if len(keyAttrs) == 0 {
		s.collections[collection] = append(docs, obj)
		s.dirty[collection] = true
		return nil
	}

	query := make(Query, len(keyAttrs))
	for _, attr := range keyAttrs {
		query[attr] = obj[attr]
	}
	for i, doc := range docs {
		if query.Matches(doc) {
			docs[i] = obj
			s.collections[collection] = docs
			s.dirty[collection] = true
			return nil
		}
	}
	s.collections[collection] = append(docs, obj)
	s.dirty[collection] = true
	return nil
}

// Commit 把集合的变更落盘，写入完一批文档后调用
func (s *DocStore) Commit(collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty[collection] {
		return nil
	}
	docs := s.collections[collection]
	if docs == nil {
		docs = []map[string]any{}
	}

	data, err := json.Marshal(docs)
	if err != nil {
		log.Printf("[文档存储] 错误: 序列化集合失败: %v", err)
		return fmt.Errorf("序列化集合失败: %w", err)
	}

	filePath := s.collectionFile(collection)
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		log.Printf("[文档存储] 错误: 写入集合文件失败: %v", err)
		return fmt.Errorf("写入集合文件失败: %w", err)
	}

	s.dirty[collection] = false
	log.Printf("[文档存储] 已提交集合: %s, 文档数=%d", collection, len(docs))
	return nil
}

// Find 返回集合中满足查询条件的文档
// query为nil时返回所有文档；limit<=0时不限制数量
func (s *DocStore) Find(collection string, query Query, limit int) ([]map[string]any, error) {
	s.mu.Lock()
	docs, loaded := s.collections[collection]
	if !loaded {
		var err error
		docs, err = s.loadCollection(collection)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		s.collections[collection] = docs
	}
	s.mu.Unlock()

	var res []map[string]any
	for _, doc := range docs {
		if query != nil && !query.Matches(doc) {
			continue
		}
		res = append(res, doc)
		if limit > 0 && len(res) >= limit {
			break
		}
	}
	return res, nil
}

// FindOne 返回满足查询条件的第一个文档，不存在时返回nil
func (s *DocStore) FindOne(collection string, query Query) (map[string]any, error) {
	docs, err := s.Find(collection, query, 1)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

// loadCollection 从文件加载集合，文件不存在时返回空集合。调用方需持有写锁
func (s *DocStore) loadCollection(collection string) ([]map[string]any, error) {
	filePath := s.collectionFile(collection)
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []map[string]any{}, nil
		}
		return nil, fmt.Errorf("读取集合文件失败: %w", err)
	}

	var docs []map[string]any
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("解析集合JSON失败: %w", err)
	}
	return docs, nil
}
