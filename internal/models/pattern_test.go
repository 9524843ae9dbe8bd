package models

import (
	"fmt"
	"testing"
)

// testCatalog 测试用的实体/取值目录
type testCatalog struct {
	entities map[string]*Entity
	values   map[string]*Value
}

func (c *testCatalog) Entity(id string) (*Entity, error) {
	e, ok := c.entities[id]
	if !ok {
		return nil, fmt.Errorf("实体 %q 尚未注册，请先注册", id)
	}
	return e, nil
}

func (c *testCatalog) Value(id string) (*Value, error) {
	v, ok := c.values[id]
	if !ok {
		return nil, fmt.Errorf("取值 %q 尚未注册，请先注册", id)
	}
	return v, nil
}

// countryCatalog 三个国家取值，同义词数分别为4、3、1，共8个
func countryCatalog() *testCatalog {
	return &testCatalog{
		entities: map[string]*Entity{
			"country": NewEntity("country", "C1", "C2", "C3"),
		},
		values: map[string]*Value{
			"C1": NewValue("C1").AddSynonym("Germany").AddSynonym("Deutschland").
				AddSynonym("BRD").AddSynonym("Allemagne"),
			"C2": NewValue("C2").AddSynonym("France").AddSynonym("Frankreich").AddSynonym("Francia"),
			"C3": NewValue("C3").AddSynonym("Italy"),
		},
	}
}

// TestGeneratePhrases 测试短语模式展开
func TestGeneratePhrases(t *testing.T) {
	pattern := NewPhrasePattern("living-expression", "I live in ((country))")
	catalog := countryCatalog()

	t.Run("不限制时全量展开", func(t *testing.T) {
		phrases, err := pattern.GeneratePhrases(catalog, GenerateOptions{})
		if err != nil {
			t.Fatalf("展开短语模式失败: %v", err)
		}
		if len(phrases) != 8 {
			t.Errorf("期望展开出8条短语，但得到 %d", len(phrases))
		}
	})

	t.Run("MaxPhrases截断", func(t *testing.T) {
		phrases, err := pattern.GeneratePhrases(catalog, GenerateOptions{MaxPhrases: 5})
		if err != nil {
			t.Fatalf("展开短语模式失败: %v", err)
		}
		if len(phrases) != 5 {
			t.Errorf("期望截断为5条短语，但得到 %d", len(phrases))
		}
	})

	t.Run("MaxEntityValues限制取值数", func(t *testing.T) {
		phrases, err := pattern.GeneratePhrases(catalog, GenerateOptions{MaxEntityValues: 2})
		if err != nil {
			t.Fatalf("展开短语模式失败: %v", err)
		}

		values := make(map[string]bool)
		for _, p := range phrases {
			for _, e := range p.Entities {
				values[e.Value] = true
			}
		}
		if len(values) != 2 {
			t.Errorf("期望展开结果中只出现2个取值，但得到 %d 个: %v", len(values), values)
		}
	})

	t.Run("MaxValueSynonyms限制同义词数", func(t *testing.T) {
		phrases, err := pattern.GeneratePhrases(catalog, GenerateOptions{MaxValueSynonyms: 1})
		if err != nil {
			t.Fatalf("展开短语模式失败: %v", err)
		}
		if len(phrases) != 3 {
			t.Errorf("期望每个取值只展开1个同义词共3条短语，但得到 %d", len(phrases))
		}
	})
}

// TestGeneratePhrasesAnnotations 测试展开后的实体标注位置
func TestGeneratePhrasesAnnotations(t *testing.T) {
	catalog := countryCatalog()

	t.Run("占位符展开携带标注", func(t *testing.T) {
		pattern := NewPhrasePattern("living-expression", "I live in ((country))")
		phrases, err := pattern.GeneratePhrases(catalog, GenerateOptions{
			MaxEntityValues:  1,
			MaxValueSynonyms: 1,
		})
		if err != nil {
			t.Fatalf("展开短语模式失败: %v", err)
		}
		if len(phrases) != 1 {
			t.Fatalf("期望展开出1条短语，但得到 %d", len(phrases))
		}

		p := phrases[0]
		if p.Text != "I live in Germany" {
			t.Errorf("期望短语文本为 %q，但得到 %q", "I live in Germany", p.Text)
		}
		if len(p.Entities) != 1 {
			t.Fatalf("期望短语携带1个标注，但得到 %d", len(p.Entities))
		}
		e := p.Entities[0]
		if e.Entity != "country" || e.Value != "C1" {
			t.Errorf("期望标注为 (country=C1)，但得到 %v", e)
		}
		if p.Text[e.Start:e.End] != "Germany" {
			t.Errorf("期望标注区间覆盖 Germany，但得到 %q", p.Text[e.Start:e.End])
		}
	})

	t.Run("显式标注解析", func(t *testing.T) {
		pattern := NewPhrasePattern("living-expression", "I live in [Berlin][C1](country)")
		phrases, err := pattern.GeneratePhrases(catalog, GenerateOptions{})
		if err != nil {
			t.Fatalf("展开短语模式失败: %v", err)
		}
		if len(phrases) != 1 {
			t.Fatalf("期望展开出1条短语，但得到 %d", len(phrases))
		}
		p := phrases[0]
		if p.Text != "I live in Berlin" {
			t.Errorf("期望短语文本为 %q，但得到 %q", "I live in Berlin", p.Text)
		}
		if len(p.Entities) != 1 || p.Text[p.Entities[0].Start:p.Entities[0].End] != "Berlin" {
			t.Errorf("期望标注区间覆盖 Berlin，但得到 %v", p.Entities)
		}
	})

	t.Run("未注册实体报错", func(t *testing.T) {
		pattern := NewPhrasePattern("bad-expression", "I like ((color))")
		if _, err := pattern.GeneratePhrases(catalog, GenerateOptions{}); err == nil {
			t.Errorf("期望未注册实体报错，但成功了")
		}
	})

	t.Run("无可用取值时不产生短语", func(t *testing.T) {
		catalog.entities["empty"] = NewEntity("empty")
		pattern := NewPhrasePattern("empty-expression", "I like ((empty))")
		phrases, err := pattern.GeneratePhrases(catalog, GenerateOptions{})
		if err != nil {
			t.Fatalf("展开短语模式失败: %v", err)
		}
		if len(phrases) != 0 {
			t.Errorf("期望不产生任何短语，但得到 %d", len(phrases))
		}
	})
}

// TestPhraseAnnotate 测试短语标注的有序插入和重叠丢弃
func TestPhraseAnnotate(t *testing.T) {
	p := NewPhrase("expr", "Germany and France", nil)

	e2, _ := NewPhraseEntity(12, 18, "country", "FR")
	e1, _ := NewPhraseEntity(0, 7, "country", "DE")
	overlap, _ := NewPhraseEntity(5, 14, "country", "IT")

	p.Annotate(e2)
	p.Annotate(e1)
	p.Annotate(overlap)

	if len(p.Entities) != 2 {
		t.Fatalf("期望重叠标注被丢弃后剩2个，但得到 %d", len(p.Entities))
	}
	if p.Entities[0].Value != "DE" || p.Entities[1].Value != "FR" {
		t.Errorf("期望标注按区间有序为 DE, FR，但得到 %v", p.Entities)
	}
}
