package nlu

import (
	"testing"

	"github.com/dialoguekeeper/service/internal/models"
)

// countryEnv 按取值识别的典型配置：同义词、大小写敏感同义词和正则模式
func countryEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)

	env.RegisterValue(models.NewValue("COUNTRY_DE").
		AddSynonym("Deutschland").
		AddSynonymFull("BRD", true, "").
		AddRegexPattern(`(?i:Germa\w+)`))
	env.RegisterValue(models.NewValue("COUNTRY_FR").AddSynonym("France"))
	env.RegisterEntity(models.NewEntity("living-country", "COUNTRY_DE", "COUNTRY_FR"))

	env.registerIntentWithPhrases(t, "living", "I live in ((living-country))")
	return env
}

// TestEntityValueMapper 测试表面文本到(实体, 取值)的映射
func TestEntityValueMapper(t *testing.T) {
	env := countryEnv(t)

	mapper := NewEntityValueMapper(env)
	if err := mapper.Init(true, nil); err != nil {
		t.Fatalf("初始化映射器失败: %v", err)
	}

	cases := []struct {
		text      string
		wantOK    bool
		wantValue string
	}{
		{"deutschland", true, "COUNTRY_DE"}, // 同义词大小写不敏感
		{"BRD", true, "COUNTRY_DE"},
		{"brd", false, ""}, // 大小写敏感同义词
		{"germany", true, "COUNTRY_DE"}, // 正则模式
		{"germmany", false, ""},
		{"France", true, "COUNTRY_FR"},
		{"Mars", false, ""},
	}
	for _, c := range cases {
		entityID, valueID, ok := mapper.Run("", c.text, nil)
		if ok != c.wantOK {
			t.Errorf("%q: 期望ok=%v，但得到 %v", c.text, c.wantOK, ok)
			continue
		}
		if !ok {
			continue
		}
		if entityID != "living-country" || valueID != c.wantValue {
			t.Errorf("%q: 期望映射为 (living-country, %s)，但得到 (%s, %s)",
				c.text, c.wantValue, entityID, valueID)
		}
	}
}

// TestEntityValueMapperContext 测试带实体上下文限制的同义词
func TestEntityValueMapperContext(t *testing.T) {
	env := newTestEnv(t)
	// "it"只有在已知指向living-country时才代表意大利
	env.RegisterValue(models.NewValue("COUNTRY_IT").
		AddSynonym("Italy").
		AddSynonymFull("it", false, "living-country"))
	env.RegisterEntity(models.NewEntity("living-country", "COUNTRY_IT"))
	env.registerIntentWithPhrases(t, "living", "I live in ((living-country))")

	mapper := NewEntityValueMapper(env)
	if err := mapper.Init(true, nil); err != nil {
		t.Fatalf("初始化映射器失败: %v", err)
	}

	if _, _, ok := mapper.Run("", "it", nil); ok {
		t.Errorf("期望无实体上下文时 it 不被映射")
	}

	entityID, valueID, ok := mapper.Run("living-country", "it", nil)
	if !ok || entityID != "living-country" || valueID != "COUNTRY_IT" {
		t.Errorf("期望有实体上下文时映射为 (living-country, COUNTRY_IT)，但得到 (%s, %s, %v)",
			entityID, valueID, ok)
	}

	// 普通同义词不受上下文影响
	if _, _, ok := mapper.Run("", "Italy", nil); !ok {
		t.Errorf("期望 Italy 在无上下文时也能映射")
	}
}

// TestEntityValueMapperAmbiguity 测试歧义映射不给出结果
func TestEntityValueMapperAmbiguity(t *testing.T) {
	env := newTestEnv(t)
	env.RegisterValue(models.NewValue("COUNTRY_GE").AddSynonym("Georgia"))
	env.RegisterValue(models.NewValue("STATE_GA").AddSynonym("Georgia"))
	env.RegisterEntity(models.NewEntity("living-country", "COUNTRY_GE", "STATE_GA"))
	env.registerIntentWithPhrases(t, "living", "I live in ((living-country))")

	mapper := NewEntityValueMapper(env)
	if err := mapper.Init(true, nil); err != nil {
		t.Fatalf("初始化映射器失败: %v", err)
	}

	if _, _, ok := mapper.Run("", "Georgia", nil); ok {
		t.Errorf("期望两个取值共享同义词时不给出映射结果")
	}
}

// TestEntityValueExtractor 测试文本中的实体抽取
func TestEntityValueExtractor(t *testing.T) {
	env := countryEnv(t)

	extractor := NewEntityValueExtractor(env)
	if err := extractor.Init(true, nil); err != nil {
		t.Fatalf("初始化抽取器失败: %v", err)
	}

	t.Run("抽取多个实体", func(t *testing.T) {
		entities, err := extractor.Run("", "I lived in Deutschland before moving to France", nil)
		if err != nil {
			t.Fatalf("抽取失败: %v", err)
		}
		if len(entities) != 2 {
			t.Fatalf("期望抽取出2个实体，但得到 %d: %v", len(entities), entities)
		}
		values := map[string]bool{}
		for _, e := range entities {
			values[e.Value] = true
			if e.Entity != "living-country" {
				t.Errorf("期望实体为 living-country，但得到 %q", e.Entity)
			}
		}
		if !values["COUNTRY_DE"] || !values["COUNTRY_FR"] {
			t.Errorf("期望抽取出 COUNTRY_DE 和 COUNTRY_FR，但得到 %v", values)
		}
	})

	t.Run("抽取区间指向原文", func(t *testing.T) {
		text := "I live in Germany"
		entities, err := extractor.Run("", text, nil)
		if err != nil {
			t.Fatalf("抽取失败: %v", err)
		}
		if len(entities) != 1 {
			t.Fatalf("期望抽取出1个实体，但得到 %d", len(entities))
		}
		e := entities[0]
		if text[e.Start:e.End] != "Germany" || e.Text != "Germany" {
			t.Errorf("期望区间覆盖 Germany，但得到 %v", e)
		}
	})

	t.Run("无匹配时返回空", func(t *testing.T) {
		entities, err := extractor.Run("", "tell me a joke", nil)
		if err != nil {
			t.Fatalf("抽取失败: %v", err)
		}
		if len(entities) != 0 {
			t.Errorf("期望没有实体，但得到 %v", entities)
		}
	})
}

// TestRegexEntityExtractorNLU 测试正则实体抽取NLU的结果形态
func TestRegexEntityExtractorNLU(t *testing.T) {
	env := countryEnv(t)

	n := NewRegexEntityExtractor(env, "test.entity-regex")
	if err := n.Init(true, nil); err != nil {
		t.Fatalf("初始化失败: %v", err)
	}

	res, err := n.Run("I live in Germany", nil)
	if err != nil {
		t.Fatalf("运行失败: %v", err)
	}
	if len(res.ExpressionRanking) != 0 {
		t.Errorf("期望实体抽取NLU不给出表达式排序，但得到 %v", res.ExpressionRanking)
	}
	if len(res.Entities) != 1 {
		t.Errorf("期望抽取出1个实体，但得到 %d", len(res.Entities))
	}
}
