package dialogue

import (
	"github.com/dialoguekeeper/service/internal/iu"
	"github.com/dialoguekeeper/service/internal/models"
)

// BotSession 一次人机会话
//
// 每个用户持有自己的会话，对话状态互不干扰，机器人本体可以被多个会话共享。
// 会话记录当前对话状态、响应分发器以及最近一次意图理解结果
type BotSession struct {
	bot        *Bot
	state      *models.DialogueState
	dispatcher models.Dispatcher

	// IUResult 最近一次意图理解结果，供意图动作读取
	IUResult *iu.Result
}

// NewSession 创建会话
// state为nil时创建全新对话状态，dispatcher为nil时使用日志分发器
func NewSession(bot *Bot, state *models.DialogueState, dispatcher models.Dispatcher) *BotSession {
	if state == nil {
		state = bot.CreateDialogueState()
	}
	if dispatcher == nil {
		dispatcher = &models.LoggingDispatcher{}
	}
	return &BotSession{bot: bot, state: state, dispatcher: dispatcher}
}

// Bot 会话归属的机器人
func (s *BotSession) Bot() *Bot { return s.bot }

// State 当前对话状态
func (s *BotSession) State() *models.DialogueState { return s.state }

// Dispatcher 响应分发器
func (s *BotSession) Dispatcher() models.Dispatcher { return s.dispatcher }

// SetDispatcher 替换响应分发器
func (s *BotSession) SetDispatcher(dispatcher models.Dispatcher) {
	s.dispatcher = dispatcher
}

// ExecuteIntent 执行指定意图的动作
func (s *BotSession) ExecuteIntent(intentID string) error {
	intent, err := s.bot.Intent(intentID)
	if err != nil {
		return err
	}
	if intent.Action == nil {
		return nil
	}
	return models.RunAction(s, intent.Action)
}

// ResetDialogue 把对话重置回起点
func (s *BotSession) ResetDialogue() {
	s.state = s.bot.CreateDialogueState()
}

// UpdateEntitySlots 写入实体槽位
// 先为声明了默认值的实体写入默认值，再按实体分组写入抽取结果，抽取结果覆盖默认值
func (s *BotSession) UpdateEntitySlots(entities []models.ExtractedEntity) {
	for _, entity := range s.bot.Entities(nil, nil) {
		if entity.DefaultValues != nil {
			s.state.SetSlot(entity.ID, entity.DefaultValues)
		}
	}

	grouped := make(map[string][]models.ExtractedEntity)
	var order []string
	for _, e := range entities {
		if _, exists := grouped[e.Entity]; !exists {
			order = append(order, e.Entity)
		}
		grouped[e.Entity] = append(grouped[e.Entity], e)
	}
	for _, entityID := range order {
		s.state.SetSlot(entityID, grouped[entityID])
	}
}
