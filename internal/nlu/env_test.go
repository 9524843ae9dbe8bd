package nlu

import (
	"path/filepath"
	"testing"

	"github.com/dialoguekeeper/service/internal/index"
	"github.com/dialoguekeeper/service/internal/models"
	"github.com/dialoguekeeper/service/internal/registry"
	"github.com/dialoguekeeper/service/internal/store"
)

// testEnv 测试用的NLU环境：注册表加临时目录上的存储和索引
type testEnv struct {
	*registry.Registry
	docStore *store.DocStore
	idx      *index.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	docStore, err := store.NewDocStore(dir)
	if err != nil {
		t.Fatalf("创建文档存储失败: %v", err)
	}
	idx, err := index.NewHandler(filepath.Join(dir, "index"))
	if err != nil {
		t.Fatalf("创建索引管理器失败: %v", err)
	}
	return &testEnv{Registry: registry.New(), docStore: docStore, idx: idx}
}

func (e *testEnv) DocStore() *store.DocStore { return e.docStore }
func (e *testEnv) Index() *index.Handler     { return e.idx }

// registerIntentWithPhrases 注册一个带短语触发器的意图
func (e *testEnv) registerIntentWithPhrases(t *testing.T, intentID string, patterns ...string) {
	t.Helper()
	e.RegisterIntent(models.NewIntent(intentID))
	if err := e.RegisterIntentPhrasePatterns(intentID, patterns...); err != nil {
		t.Fatalf("注册短语模式失败: %v", err)
	}
}

// registerIntentWithRegex 注册一个带正则触发器的意图
func (e *testEnv) registerIntentWithRegex(t *testing.T, intentID string, patterns ...string) {
	t.Helper()
	e.RegisterIntent(models.NewIntent(intentID))
	if err := e.RegisterIntentRegexPatterns(intentID, patterns...); err != nil {
		t.Fatalf("注册正则模式失败: %v", err)
	}
}

// topScore 返回排序中指定表达式的得分
func topScore(t *testing.T, ranking []models.RankingScore, refID string) float64 {
	t.Helper()
	for _, s := range ranking {
		if s.RefID == refID {
			return s.Score
		}
	}
	t.Fatalf("排序中没有 %q: %v", refID, ranking)
	return 0
}
