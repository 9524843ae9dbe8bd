package nlu

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dialoguekeeper/service/internal/models"
)

// rasaTestServer 模拟Rasa服务：已有模型、记录训练调用、按固定结果应答解析
type rasaTestServer struct {
	*httptest.Server
	trainCalls int
	parse      map[string]rasaParseResult
}

func newRasaTestServer(t *testing.T) *rasaTestServer {
	t.Helper()
	srv := &rasaTestServer{parse: make(map[string]rasaParseResult)}
	srv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/status":
			json.NewEncoder(w).Encode(map[string]any{"has_model": true})
		case "/model/train":
			srv.trainCalls++
			w.WriteHeader(http.StatusOK)
		case "/model/parse":
			var req struct {
				Text string `json:"text"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(srv.parse[req.Text])
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func rasaEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	env.RegisterValue(models.NewValue("COUNTRY_DE").AddSynonym("Germany"))
	env.RegisterEntity(models.NewEntity("living-country", "COUNTRY_DE"))
	env.registerIntentWithPhrases(t, "living", "I live in ((living-country))")
	return env
}

// TestRasaNLURun 测试Rasa解析结果到NLU结果的转换
func TestRasaNLURun(t *testing.T) {
	env := rasaEnv(t)
	srv := newRasaTestServer(t)

	n := NewRasaNLU(env, "test.rasa", srv.URL)
	if err := n.Init(false, nil); err != nil {
		t.Fatalf("初始化Rasa适配器失败: %v", err)
	}
	if srv.trainCalls != 0 {
		t.Errorf("期望服务端已有模型时不触发训练，但训练了 %d 次", srv.trainCalls)
	}

	t.Run("排序过滤和带前缀取值", func(t *testing.T) {
		utterance := "I live in Germany"
		srv.parse[utterance] = rasaParseResult{
			IntentRanking: []struct {
				Name       string  `json:"name"`
				Confidence float64 `json:"confidence"`
			}{
				{Name: "living-expression", Confidence: 0.9},
				{Name: "unknown-expression", Confidence: 0.8},
			},
			Entities: []struct {
				Start      int      `json:"start"`
				End        int      `json:"end"`
				Entity     string   `json:"entity"`
				Value      string   `json:"value"`
				Confidence *float64 `json:"confidence"`
				Extractor  string   `json:"extractor"`
			}{
				{Start: 10, End: 17, Entity: "living-country", Value: ConvertedValuePrefix + "COUNTRY_DE"},
			},
		}

		res, err := n.Run(utterance, nil)
		if err != nil {
			t.Fatalf("运行Rasa适配器失败: %v", err)
		}
		// 未知表达式被过滤掉
		if len(res.ExpressionRanking) != 1 || res.ExpressionRanking[0].RefID != "living-expression" {
			t.Errorf("期望排序只包含living-expression，但得到 %v", res.ExpressionRanking)
		}
		if res.ExpressionRanking[0].Score != 0.9 {
			t.Errorf("期望得分为 0.9，但得到 %v", res.ExpressionRanking[0].Score)
		}
		if res.ConfidenceThreshold != 0.48 {
			t.Errorf("期望默认置信阈值为 0.48，但得到 %v", res.ConfidenceThreshold)
		}
		if len(res.Entities) != 1 || res.Entities[0].Value != "COUNTRY_DE" || res.Entities[0].Text != "Germany" {
			t.Errorf("期望抽取出 (COUNTRY_DE, Germany)，但得到 %v", res.Entities)
		}
	})

	t.Run("表面文本经映射器解析", func(t *testing.T) {
		utterance := "my home is Germany"
		srv.parse[utterance] = rasaParseResult{
			Entities: []struct {
				Start      int      `json:"start"`
				End        int      `json:"end"`
				Entity     string   `json:"entity"`
				Value      string   `json:"value"`
				Confidence *float64 `json:"confidence"`
				Extractor  string   `json:"extractor"`
			}{
				{Start: 11, End: 18, Entity: "living-country", Value: "Germany"},
			},
		}

		res, err := n.Run(utterance, nil)
		if err != nil {
			t.Fatalf("运行Rasa适配器失败: %v", err)
		}
		if len(res.Entities) != 1 || res.Entities[0].Value != "COUNTRY_DE" {
			t.Errorf("期望表面文本被解析为 COUNTRY_DE，但得到 %v", res.Entities)
		}
	})
}

// TestRasaNLUEntitySpans 测试字符区间到字节区间的转换和越界区间的处理
func TestRasaNLUEntitySpans(t *testing.T) {
	env := rasaEnv(t)
	srv := newRasaTestServer(t)

	n := NewRasaNLU(env, "test.rasa", srv.URL)
	if err := n.Init(false, nil); err != nil {
		t.Fatalf("初始化Rasa适配器失败: %v", err)
	}

	// "ü"占两个字节，Germany的字符区间[16,23)对应字节区间[17,24)
	utterance := "Müller lives in Germany"
	srv.parse[utterance] = rasaParseResult{
		Entities: []struct {
			Start      int      `json:"start"`
			End        int      `json:"end"`
			Entity     string   `json:"entity"`
			Value      string   `json:"value"`
			Confidence *float64 `json:"confidence"`
			Extractor  string   `json:"extractor"`
		}{
			{Start: 16, End: 23, Entity: "living-country", Value: ConvertedValuePrefix + "COUNTRY_DE"},
			{Start: 40, End: 50, Entity: "living-country", Value: ConvertedValuePrefix + "COUNTRY_DE"},
			{Start: 5, End: 3, Entity: "living-country", Value: ConvertedValuePrefix + "COUNTRY_DE"},
		},
	}

	res, err := n.Run(utterance, nil)
	if err != nil {
		t.Fatalf("运行Rasa适配器失败: %v", err)
	}
	if len(res.Entities) != 1 {
		t.Fatalf("期望越界区间被跳过、只剩1个实体，但得到 %v", res.Entities)
	}
	e := res.Entities[0]
	if e.Text != "Germany" {
		t.Errorf("期望实体文本为 Germany，但得到 %q", e.Text)
	}
	if utterance[e.Start:e.End] != "Germany" {
		t.Errorf("期望字节区间指向 Germany，但得到 %q", utterance[e.Start:e.End])
	}
}

// TestRasaNLURetrain 测试重新训练时向服务端提交训练数据
func TestRasaNLURetrain(t *testing.T) {
	env := rasaEnv(t)
	srv := newRasaTestServer(t)

	n := NewRasaNLU(env, "test.rasa", srv.URL)
	if err := n.Init(true, nil); err != nil {
		t.Fatalf("初始化Rasa适配器失败: %v", err)
	}
	if srv.trainCalls != 1 {
		t.Errorf("期望触发1次训练，但训练了 %d 次", srv.trainCalls)
	}
}
