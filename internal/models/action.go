package models

import (
	"fmt"
	"math/rand"
	"sort"
)

// ActionSession 动作执行时可见的会话能力
type ActionSession interface {
	// State 当前对话状态
	State() *DialogueState
	// Dispatcher 响应分发器
	Dispatcher() Dispatcher
	// ExecuteIntent 执行另一个意图的动作
	ExecuteIntent(intentID string) error
}

// Action 意图识别成功后执行的动作
type Action interface {
	// Name 动作名称，用于日志和追踪
	Name() string
	// Execute 执行动作
	Execute(session ActionSession) error
}

// RunAction 执行动作并通知分发器的前后置钩子
func RunAction(session ActionSession, action Action) error {
	session.Dispatcher().BeforeAction(session, action)
	if err := action.Execute(session); err != nil {
		return fmt.Errorf("执行动作 %q 失败: %w", action.Name(), err)
	}
	session.Dispatcher().AfterAction(session, action)
	return nil
}

// NoneAction 什么都不做的动作
type NoneAction struct{}

func (a *NoneAction) Name() string                        { return "none_action" }
func (a *NoneAction) Execute(session ActionSession) error { return nil }

// FuncAction 执行任意函数的动作
type FuncAction struct {
	ActionName string
	Fn         func(session ActionSession) error
}

func (a *FuncAction) Name() string { return a.ActionName }

func (a *FuncAction) Execute(session ActionSession) error {
	return a.Fn(session)
}

// ExecuteIntentAction 执行另一个意图的动作，用于意图间的动作复用
type ExecuteIntentAction struct {
	IntentID string
}

func (a *ExecuteIntentAction) Name() string { return "execute_intent:" + a.IntentID }

func (a *ExecuteIntentAction) Execute(session ActionSession) error {
	return session.ExecuteIntent(a.IntentID)
}

// CustomAction 交由分发器自行解释的动作，用于纯文本之外的前端能力
type CustomAction struct {
	ActionName string
	Args       map[string]any
}

func (a *CustomAction) Name() string { return a.ActionName }

func (a *CustomAction) Execute(session ActionSession) error {
	return session.Dispatcher().Custom(session, a.ActionName, a.Args)
}

// NLAction 从候选话术中挑一条回复用户
// 随机打乱后按缺失槽位数稳定排序，选信息最完整的一条，让回复既多样又不丢信息
type NLAction struct {
	Phrases []*UtterPhrase
	Rand    *rand.Rand // 为nil时使用全局随机源
}

// NewNLAction 从话术文本创建自然语言回复动作
func NewNLAction(texts ...string) *NLAction {
	phrases := make([]*UtterPhrase, len(texts))
	for i, text := range texts {
		phrases[i] = NewUtterPhrase(text)
	}
	return &NLAction{Phrases: phrases}
}

func (a *NLAction) Name() string { return "nl_action" }

func (a *NLAction) Execute(session ActionSession) error {
	if len(a.Phrases) == 0 {
		return nil
	}
	candidates := make([]*UtterPhrase, len(a.Phrases))
	copy(candidates, a.Phrases)
	if a.Rand != nil {
		a.Rand.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
	} else {
		rand.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
	}
	state := session.State()
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].RenderMissing(state) < candidates[j].RenderMissing(state)
	})
	return session.Dispatcher().Utter(session, candidates[0].Render(state))
}

// Choice 展示给用户的一个可点选选项
type Choice struct {
	Key   string  `json:"key"`
	Idx   int     `json:"idx"`
	Text  string  `json:"text"`
	Score float64 `json:"score,omitempty"`
}

func (c Choice) String() string {
	return fmt.Sprintf("(Choice: %q:%d, %q)", c.Key, c.Idx, c.Text)
}

// ChoiceAction 向用户展示一组可点选的选项
type ChoiceAction struct {
	Text    string
	Choices []Choice
}

func (a *ChoiceAction) Name() string { return "choice_action" }

func (a *ChoiceAction) Execute(session ActionSession) error {
	return session.Dispatcher().Choice(session, a.Choices, a.Text)
}

// Media 多媒体响应内容
type Media struct {
	URL         string `json:"url"`
	MediaType   string `json:"media_type"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// MediaAction 向用户发送多媒体内容
type MediaAction struct {
	Media Media
}

func (a *MediaAction) Name() string { return "media_action" }

func (a *MediaAction) Execute(session ActionSession) error {
	return session.Dispatcher().Media(session, a.Media)
}

// SlotSetAction 设置对话状态中的槽位
type SlotSetAction struct {
	Slot  string
	Value any
}

func (a *SlotSetAction) Name() string { return "slot_set:" + a.Slot }

func (a *SlotSetAction) Execute(session ActionSession) error {
	session.State().SetSlot(a.Slot, a.Value)
	return nil
}

// SlotClearAction 清除对话状态中的槽位
type SlotClearAction struct {
	Slot string
}

func (a *SlotClearAction) Name() string { return "slot_clear:" + a.Slot }

func (a *SlotClearAction) Execute(session ActionSession) error {
	session.State().ClearSlot(a.Slot)
	return nil
}

// ContextSetAction 设置对话上下文
type ContextSetAction struct {
	Context *TTLContext
}

func (a *ContextSetAction) Name() string { return "context_set:" + a.Context.Name }

func (a *ContextSetAction) Execute(session ActionSession) error {
	session.State().SetContext(a.Context)
	return nil
}

// ContextClearAction 清除对话上下文
type ContextClearAction struct {
	ContextName string
}

func (a *ContextClearAction) Name() string { return "context_clear:" + a.ContextName }

func (a *ContextClearAction) Execute(session ActionSession) error {
	session.State().ClearContext(a.ContextName)
	return nil
}

// JoinedAction 按顺序执行一组动作
type JoinedAction struct {
	Actions []Action
}

// NewJoinedAction 创建顺序组合动作
func NewJoinedAction(actions ...Action) *JoinedAction {
	return &JoinedAction{Actions: actions}
}

func (a *JoinedAction) Name() string { return "joined_action" }

func (a *JoinedAction) Execute(session ActionSession) error {
	for _, action := range a.Actions {
		if err := RunAction(session, action); err != nil {
			return err
		}
	}
	return nil
}
