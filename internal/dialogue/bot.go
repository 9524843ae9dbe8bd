// Package dialogue 实现规则驱动的对话管理器
//
// 机器人由注册的意图/实体/取值驱动：每个用户回合先由意图理解单元给出
// 意图排序和实体，再按置信度决定直接执行意图、触发回退还是让用户消歧
package dialogue

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dialoguekeeper/service/internal/index"
	"github.com/dialoguekeeper/service/internal/iu"
	"github.com/dialoguekeeper/service/internal/models"
	"github.com/dialoguekeeper/service/internal/registry"
	"github.com/dialoguekeeper/service/internal/store"
)

// 机器人使用的文档存储集合
const (
	// LoggingCollection 逐回合的对话日志
	LoggingCollection = "logging"
	// LearnedInputsCollection 用户消歧确认产生的学习样本
	LearnedInputsCollection = "learned-inputs"
)

// DefaultMaxVerifyNr 消歧时展示给用户的候选意图数量上限
const DefaultMaxVerifyNr = 15

// Options 机器人的可选配置
type Options struct {
	// MaxVerifyNr 消歧候选上限，0表示使用默认值
	MaxVerifyNr int
	// StartContexts 新对话开始时激活的上下文
	StartContexts []*models.TTLContext
	// StartSlots 新对话开始时设置的槽位
	StartSlots map[string]any
	// DisableConversationLog 关闭逐回合的对话落库
	DisableConversationLog bool
	// StorageDir 机器人数据的根目录，空时使用"data"
	StorageDir string
	// IU 意图理解单元的配置
	IU iu.Options
}

// Bot 机器人本体
//
// 持有回应用户输入所需的一切：注册表、意图理解单元、文档存储和索引。
// 注册完成后必须调用Start，之后即可通过Respond处理各个会话的输入
type Bot struct {
	*registry.Registry

	ID              string
	Language        string
	MaxVerifyNr     int
	StartContexts   []*models.TTLContext
	StartSlots      map[string]any
	LogConversation bool

	storageDir   string
	docStore     *store.DocStore
	indexHandler *index.Handler
	iu           iu.IU
}

// NewBot 创建机器人，id需要全局唯一，language目前主要支持"en"
func NewBot(id, language string, opts Options) (*Bot, error) {
	if opts.MaxVerifyNr <= 0 {
		opts.MaxVerifyNr = DefaultMaxVerifyNr
	}
	rootDir := opts.StorageDir
	if rootDir == "" {
		rootDir = "data"
	}
	storageDir := filepath.Join(rootDir, id)

	docStore, err := store.NewDocStore(storageDir)
	if err != nil {
		return nil, fmt.Errorf("创建文档存储失败: %w", err)
	}
	indexHandler, err := index.NewHandler(filepath.Join(storageDir, "index"))
	if err != nil {
		return nil, fmt.Errorf("创建索引管理器失败: %w", err)
	}

	b := &Bot{
		Registry:        registry.New(),
		ID:              id,
		Language:        language,
		MaxVerifyNr:     opts.MaxVerifyNr,
		StartContexts:   opts.StartContexts,
		StartSlots:      opts.StartSlots,
		LogConversation: !opts.DisableConversationLog,
		storageDir:      storageDir,
		docStore:        docStore,
		indexHandler:    indexHandler,
	}
	b.iu = iu.NewDefaultIU(b, opts.IU)

	if err := docStore.EnsureCollection(LoggingCollection); err != nil {
		return nil, err
	}
	if err := docStore.EnsureCollection(LearnedInputsCollection); err != nil {
		return nil, err
	}
	return b, nil
}

// StorageDir 机器人数据的存放目录
func (b *Bot) StorageDir() string { return b.storageDir }

// DocStore 文档存储
func (b *Bot) DocStore() *store.DocStore { return b.docStore }

// Index 索引管理器
func (b *Bot) Index() *index.Handler { return b.indexHandler }

// IU 意图理解单元
func (b *Bot) IU() iu.IU { return b.iu }

// SetIU 替换意图理解单元，必须在Start之前调用
func (b *Bot) SetIU(u iu.IU) { b.iu = u }

// CreateDialogueState 为新对话创建对话状态
func (b *Bot) CreateDialogueState() *models.DialogueState {
	return models.NewDialogueState(b.StartContexts, b.StartSlots)
}

// Start 注册收尾并初始化意图理解单元，注册完成后、使用前必须调用
// reset为true时重新训练所有模型
func (b *Bot) Start(reset bool) error {
	logrus.WithFields(logrus.Fields{"bot": b.ID, "reset": reset}).Info("[对话] 启动机器人")

	b.RegisterIntent(newVerifyIntentIntent(b))

	if err := b.iu.Init(reset); err != nil {
		return fmt.Errorf("初始化意图理解单元失败: %w", err)
	}

	logrus.WithField("bot", b.ID).Info("[对话] 机器人就绪")
	return nil
}

// Respond 处理一次用户输入
//
// 流程：忽略空输入；无效输入回复提示；有效输入走意图理解，
// 置信时执行意图或让用户消歧，不置信时走回退。回合结束后按需落库
func (b *Bot) Respond(session *BotSession, input models.UserInput) error {
	logrus.Infof("[对话] 收到输入 %v", input)

	orig := session.Dispatcher()
	acc := &models.AccumulateDispatcher{}
	session.SetDispatcher(models.NewMultiDispatcher(orig, acc))

	initialState := session.State().Clone()

	var err error
	switch {
	case input.Ignore():
		logrus.Info("[对话] 忽略输入")
	case !input.IsValid():
		logrus.Debug("[对话] 输入无效")
		err = models.RunAction(session, utterInvalidInput(b.Language))
	default:
		err = b.respondValidInput(session, input)
	}

	session.SetDispatcher(orig)

	if b.LogConversation {
		if logErr := b.logTurn(session, initialState, acc, input); logErr != nil {
			logrus.WithError(logErr).Warn("[对话] 记录对话失败")
			if err == nil {
				err = logErr
			}
		}
	}
	return err
}

func (b *Bot) respondValidInput(session *BotSession, input models.UserInput) error {
	result, err := b.iu.Run(input, session.State())
	if err != nil {
		return err
	}
	result.Log()
	session.IUResult = result

	// 实体槽位只在意图置信或被用户确认后写入

	confident := false
	for _, s := range result.IntentRanking {
		if s.Score >= result.ConfidenceThreshold {
			confident = true
			break
		}
	}

	consumeState := true
	if !confident {
		consumeState, err = b.respondNoIntentFound(session, input, result)
		if err != nil {
			return err
		}
	} else {
		var confidentScores []models.RankingScore
		for _, s := range result.IntentRanking {
			if s.Score >= result.ConfidenceThreshold {
				confidentScores = append(confidentScores, s)
			}
		}

		// 置信意图中得分接近的一簇才进入消歧候选
		topConfident := TopSimilarScores(confidentScores, result.ConfidenceThreshold)
		logrus.Infof("[对话] 头部置信意图 %v", topConfident)

		var verifiable []models.RankingScore
		for _, s := range topConfident {
			if intent, err := b.Intent(s.RefID); err == nil && intent.Verify {
				verifiable = append(verifiable, s)
			}
		}
		if len(verifiable) > b.MaxVerifyNr {
			verifiable = verifiable[:b.MaxVerifyNr]
		}

		if len(verifiable) <= 1 {
			logrus.Debug("[对话] 写入实体槽位")
			session.UpdateEntitySlots(result.Entities)

			topIntentID := result.IntentRanking[0].RefID
			if err := session.ExecuteIntent(topIntentID); err != nil {
				return err
			}
		} else {
			logrus.Info("[对话] 让用户确认意图")
			// 槽位里保存的是提问时刻的状态副本，保存活状态会让状态引用自身
			action := b.verifyIntentAction(verifiable, result, session.State().Clone(), input)
			if err := models.RunAction(session, action); err != nil {
				return err
			}
		}
	}

	if consumeState {
		logrus.Debug("[对话] 消耗对话状态")
		session.State().Live()
	}
	return nil
}

// respondNoIntentFound 没有置信意图时的处理，返回是否消耗对话状态
// 回退意图存在则执行它（不重新抽取实体也不写槽位）；
// 自然语言输入在没有回退意图时回复"没听懂"；其余输入不响应也不消耗状态
func (b *Bot) respondNoIntentFound(session *BotSession, input models.UserInput, result *iu.Result) (bool, error) {
	if result.FallbackIntentID != "" {
		logrus.Debugf("[对话] 未找到置信意图，执行回退意图 %q", result.FallbackIntentID)
		return true, session.ExecuteIntent(result.FallbackIntentID)
	}
	if _, ok := input.(models.NLInput); ok {
		logrus.Debug("[对话] 未找到置信意图，回复没有理解")
		return true, models.RunAction(session, utterIntentNotUnderstand(b.Language))
	}
	logrus.Debug("[对话] 未找到置信意图，不响应")
	return false, nil
}

// logTurn 把一个完整回合写入对话日志集合
func (b *Bot) logTurn(session *BotSession, initialState *models.DialogueState,
	acc *models.AccumulateDispatcher, input models.UserInput) error {

	obj := map[string]any{
		"time":          time.Now().Format(time.RFC3339Nano),
		"pid":           os.Getpid(),
		"bot":           b.ID,
		"user_input":    inputSnapshot(input),
		"bot_responses": acc.Responses,
		"initial_ds":    initialState.Snapshot(),
		"final_ds":      session.State().Snapshot(),
	}
	if session.IUResult != nil {
		obj["iu_result"] = session.IUResult.Snapshot()
	}

	if err := b.docStore.IndexObject(LoggingCollection, obj, nil); err != nil {
		return err
	}
	return b.docStore.Commit(LoggingCollection)
}

// inputSnapshot 导出用户输入的可序列化表示
func inputSnapshot(input models.UserInput) map[string]any {
	switch in := input.(type) {
	case models.NLInput:
		return map[string]any{"type": "nl", "text": in.Text}
	case models.SelectionInput:
		return map[string]any{"type": "selection", "selection_key": in.SelectionKey, "selection_idx": in.SelectionIdx}
	case models.KeyedInput:
		return map[string]any{"type": "keyed", "key": in.Key, "args": in.Args}
	default:
		return map[string]any{"type": fmt.Sprintf("%T", input)}
	}
}
