package index

import (
	"testing"
)

func seedIndex(t *testing.T, h *Handler, name string) {
	t.Helper()
	if err := h.EnsureIndex(name); err != nil {
		t.Fatalf("创建索引失败: %v", err)
	}
	docs := []Document{
		{"expression": "living-expression", "phrase": "I live in Germany"},
		{"expression": "living-expression", "phrase": "I moved to France"},
		{"expression": "hello-expression", "phrase": "good morning"},
		{"expression": "bye-expression", "phrase": "see you later"},
	}
	for _, doc := range docs {
		if err := h.IndexObject(name, doc); err != nil {
			t.Fatalf("写入索引失败: %v", err)
		}
	}
}

// TestIndexLifecycle 测试索引的创建、提交和重新加载
func TestIndexLifecycle(t *testing.T) {
	dir := t.TempDir()
	h, err := NewHandler(dir)
	if err != nil {
		t.Fatalf("创建索引管理器失败: %v", err)
	}

	if h.ExistsIndex("phrases") {
		t.Errorf("期望索引尚不存在")
	}
	seedIndex(t, h, "phrases")
	if err := h.Commit("phrases"); err != nil {
		t.Fatalf("提交索引失败: %v", err)
	}

	// 重新加载后检索结果一致
	reloaded, err := NewHandler(dir)
	if err != nil {
		t.Fatalf("重新打开索引管理器失败: %v", err)
	}
	if !reloaded.ExistsIndex("phrases") {
		t.Fatalf("期望持久化的索引存在")
	}
	if err := reloaded.EnsureIndex("phrases"); err != nil {
		t.Fatalf("加载索引失败: %v", err)
	}
	hits, err := reloaded.SearchMoreLikeThis("phrases",
		"expression", []string{"living-expression", "hello-expression", "bye-expression"},
		"phrase", "where do you live", 0)
	if err != nil {
		t.Fatalf("检索失败: %v", err)
	}
	if len(hits) == 0 {
		t.Errorf("期望重新加载后能检索到文档")
	}

	if err := h.DeleteIndex("phrases"); err != nil {
		t.Fatalf("删除索引失败: %v", err)
	}
	if h.ExistsIndex("phrases") {
		t.Errorf("期望索引已被删除")
	}
}

// TestIndexRequiresEnsure 测试未加载索引的操作报错
func TestIndexRequiresEnsure(t *testing.T) {
	h, err := NewHandler(t.TempDir())
	if err != nil {
		t.Fatalf("创建索引管理器失败: %v", err)
	}
	if err := h.IndexObject("missing", Document{"phrase": "hi"}); err == nil {
		t.Errorf("期望向未加载的索引写入报错，但成功了")
	}
	if err := h.Commit("missing"); err == nil {
		t.Errorf("期望提交未加载的索引报错，但成功了")
	}
	if _, err := h.ExtractKeywords("missing", "phrase", "hi"); err == nil {
		t.Errorf("期望从未加载的索引抽取关键词报错，但成功了")
	}
}

// TestExtractKeywords 测试关键词抽取
func TestExtractKeywords(t *testing.T) {
	h, err := NewHandler(t.TempDir())
	if err != nil {
		t.Fatalf("创建索引管理器失败: %v", err)
	}
	seedIndex(t, h, "phrases")

	t.Run("索引内词项按逆文档频率加权", func(t *testing.T) {
		keywords, err := h.ExtractKeywords("phrases", "phrase", "I live in France")
		if err != nil {
			t.Fatalf("抽取关键词失败: %v", err)
		}
		weights := make(map[string]float64)
		for _, kw := range keywords {
			weights[kw.Term] = kw.Weight
		}
		// "live"出现在1个文档，"i"出现在2个文档，前者更稀有权重应更高
		if weights["live"] <= weights["i"] {
			t.Errorf("期望稀有词项的权重更高，但得到 live=%v, i=%v", weights["live"], weights["i"])
		}
	})

	t.Run("全部词项未知时退化为朴素分词", func(t *testing.T) {
		keywords, err := h.ExtractKeywords("phrases", "phrase", "quantum entanglement")
		if err != nil {
			t.Fatalf("抽取关键词失败: %v", err)
		}
		if len(keywords) != 2 {
			t.Fatalf("期望退化为2个朴素词项，但得到 %d", len(keywords))
		}
		for _, kw := range keywords {
			if kw.Weight != 1.0 {
				t.Errorf("期望朴素词项权重为 1，但得到 %v", kw.Weight)
			}
		}
	})
}

// TestSearchMoreLikeThis 测试相似文本检索
func TestSearchMoreLikeThis(t *testing.T) {
	h, err := NewHandler(t.TempDir())
	if err != nil {
		t.Fatalf("创建索引管理器失败: %v", err)
	}
	seedIndex(t, h, "phrases")

	allExpressions := []string{"living-expression", "hello-expression", "bye-expression"}

	t.Run("相似短语排在前面", func(t *testing.T) {
		hits, err := h.SearchMoreLikeThis("phrases",
			"expression", allExpressions, "phrase", "I live in France", 0)
		if err != nil {
			t.Fatalf("检索失败: %v", err)
		}
		if len(hits) == 0 {
			t.Fatalf("期望检索到文档")
		}
		if hits[0].Doc["expression"] != "living-expression" {
			t.Errorf("期望首位命中living-expression，但得到 %v", hits[0].Doc)
		}
		for i := 1; i < len(hits); i++ {
			if hits[i].Score > hits[i-1].Score {
				t.Errorf("期望命中按得分降序")
			}
		}
	})

	t.Run("过滤字段生效", func(t *testing.T) {
		hits, err := h.SearchMoreLikeThis("phrases",
			"expression", []string{"hello-expression"}, "phrase", "I live in France", 0)
		if err != nil {
			t.Fatalf("检索失败: %v", err)
		}
		for _, hit := range hits {
			if hit.Doc["expression"] != "hello-expression" {
				t.Errorf("期望只返回hello-expression的文档，但得到 %v", hit.Doc)
			}
		}
	})

	t.Run("limit截断", func(t *testing.T) {
		hits, err := h.SearchMoreLikeThis("phrases",
			"expression", allExpressions, "phrase", "I live in France", 1)
		if err != nil {
			t.Fatalf("检索失败: %v", err)
		}
		if len(hits) > 1 {
			t.Errorf("期望最多返回1个命中，但得到 %d", len(hits))
		}
	})
}
