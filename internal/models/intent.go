package models

import "fmt"

// DefaultDomain 未显式指定领域的意图归属的默认领域
const DefaultDomain = "default"

// CustomScore 意图自定义分数的封闭变体集合: PerfectScore / FloatScore
type CustomScore interface {
	isCustomScore()
}

// PerfectScore 完美分数，排在所有FloatScore之前
type PerfectScore struct{}

func (PerfectScore) isCustomScore() {}

// FloatScore 浮点分数
type FloatScore struct {
	Value float64
}

func (FloatScore) isCustomScore() {}

// ScoreFunc 意图的自定义评分钩子，可以覆盖IU计算出的分数
type ScoreFunc func(input UserInput, state *DialogueState, score CustomScore) CustomScore

// ExtractFunc 意图的自定义实体抽取钩子，可以重写IU抽取出的实体
type ExtractFunc func(input UserInput, state *DialogueState, entities []ExtractedEntity) []ExtractedEntity

// Intent 捕捉用户的一种意图
//
// 意图描述了三件事:
//   - 何时可以被触发（InputContexts：对话状态中必须存在的输入上下文）
//   - 如何被触发（自然语言、选项点选、结构化输入三类触发器）
//   - 识别后做什么（Action）
//
// 意图识别和实体抽取主要由IU完成，但每个意图可以通过CustomScore/CustomExtract
// 钩子覆盖IU的结果，用于那些自己知道如何被识别的特殊意图。
type Intent struct {
	ID                string
	Domains           []string
	InputContexts     []string
	NLTrigger         NLTrigger
	SelectionTrigger  SelectionTrigger
	KeyedTrigger      *KeyedTrigger
	Action            Action
	Verify            bool   // 是否允许在消歧时向用户确认该意图
	VerifyDescription string // 消歧时展示给用户的描述
	EntityFilter      []string
	CustomScore       ScoreFunc
	CustomExtract     ExtractFunc
}

// NewIntent 创建意图，默认归属default领域且允许消歧确认
func NewIntent(id string) *Intent {
	return &Intent{
		ID:      id,
		Domains: []string{DefaultDomain},
		Verify:  true,
	}
}

// HasContexts 判断意图必需的输入上下文是否都存在于对话状态中
func (i *Intent) HasContexts(state *DialogueState) bool {
	for _, c := range i.InputContexts {
		if !state.HasContext(c) {
			return false
		}
	}
	return true
}

// HasTrigger 判断意图是否有能处理该输入的触发器
func (i *Intent) HasTrigger(input UserInput) bool {
	if i.NLTrigger != nil && i.NLTrigger.MatchesInput(input) {
		return true
	}
	if i.SelectionTrigger != nil && i.SelectionTrigger.MatchesInput(input) {
		return true
	}
	if i.KeyedTrigger != nil && i.KeyedTrigger.MatchesInput(input) {
		return true
	}
	return false
}

// InDomain 判断意图是否归属于给定领域之一
func (i *Intent) InDomain(domains []string) bool {
	for _, d := range domains {
		for _, own := range i.Domains {
			if d == own {
				return true
			}
		}
	}
	return false
}

// NLExpression 返回短语触发器绑定的表达式，无短语触发器时返回nil
func (i *Intent) NLExpression() *NLExpression {
	if trigger, ok := i.NLTrigger.(*PhraseNLTrigger); ok {
		return trigger.Expression
	}
	return nil
}

// AllowsEntity 判断实体是否在该意图的实体过滤范围内，未设置过滤时全部允许
func (i *Intent) AllowsEntity(entityID string) bool {
	if i.EntityFilter == nil {
		return true
	}
	for _, e := range i.EntityFilter {
		if e == entityID {
			return true
		}
	}
	return false
}

// VerifyText 返回消歧确认时展示的文案
// 优先使用显式描述，其次使用表达式的第一个短语模式，最后退化为意图ID
func (i *Intent) VerifyText() string {
	if i.VerifyDescription != "" {
		return i.VerifyDescription
	}
	if expr := i.NLExpression(); expr != nil && len(expr.PhrasePatterns) > 0 {
		return fmt.Sprintf("%q", expr.PhrasePatterns[0].Pattern)
	}
	return fmt.Sprintf("[Intent %s]", i.ID)
}

func (i *Intent) String() string {
	return fmt.Sprintf("(Intent: %q, domains=%v, input_contexts=%v)", i.ID, i.Domains, i.InputContexts)
}
