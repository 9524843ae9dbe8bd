package dialogue

import (
	"github.com/dialoguekeeper/service/internal/iu"
	"github.com/dialoguekeeper/service/internal/models"
)

// 消歧流程使用的上下文和槽位
const (
	VerifyContextName = "verify_intent"

	verifyIntentsSlot       = "verify_intent#intents"
	verifyInputSlot         = "verify_intent#input"
	verifyIUResultSlot      = "verify_intent#iu_result"
	verifyDialogueStateSlot = "verify_intent#dialogue_state"
	verifySlotsSlot         = "verify_intent#slots"
)

// utterInvalidInput 输入无效时的回复
func utterInvalidInput(language string) models.Action {
	return models.NewJoinedAction(
		models.NewNLAction(texts("invalid_input.1", language)...),
		models.NewNLAction(texts("invalid_input.2", language)...),
	)
}

// utterIntentNotUnderstand 无法确定意图时的回复
func utterIntentNotUnderstand(language string) models.Action {
	return models.NewJoinedAction(
		models.NewNLAction(texts("intent_not_understand", language)...),
	)
}

// utterVerifyIntentNone 用户表示候选意图都不对时的回复
func utterVerifyIntentNone(language string) models.Action {
	return models.NewJoinedAction(
		models.NewNLAction(texts("verify_intent_none.1", language)...),
		models.NewNLAction(texts("verify_intent_none.2", language)...),
	)
}

// utterVerifyIntentThanks 用户帮助确认意图后的致谢
func utterVerifyIntentThanks(language string) models.Action {
	return models.NewJoinedAction(
		models.NewNLAction(texts("verify_intent_thanks", language)...),
	)
}

// verifyIntentAction 构造消歧动作
//
// 把候选意图、原始输入、理解结果和当时的对话状态都存进槽位，
// 设置verify_intent上下文激活消歧意图，再把候选列表作为选项展示给用户。
// 用户点选后由消歧意图读取这些槽位完成后续处理
func (b *Bot) verifyIntentAction(intentScores []models.RankingScore, iuResult *iu.Result,
	state *models.DialogueState, input models.UserInput) models.Action {

	intentIDs := make([]string, len(intentScores))
	for i, s := range intentScores {
		intentIDs[i] = s.RefID
	}

	choices := make([]models.Choice, 0, len(intentScores)+1)
	for i, s := range intentScores {
		text := s.RefID
		if intent, err := b.Intent(s.RefID); err == nil {
			text = intent.VerifyText()
		}
		choices = append(choices, models.Choice{Key: "intent", Idx: i, Text: text, Score: s.Score})
	}
	choices = append(choices, models.Choice{Key: "none", Idx: -1, Text: "None of these"})

	return models.NewJoinedAction(
		&models.ContextSetAction{Context: models.NewContext(VerifyContextName)},
		&models.SlotSetAction{Slot: verifyIntentsSlot, Value: intentIDs},
		&models.SlotSetAction{Slot: verifyInputSlot, Value: input},
		&models.SlotSetAction{Slot: verifyIUResultSlot, Value: iuResult},
		&models.SlotSetAction{Slot: verifyDialogueStateSlot, Value: state},
		&models.SlotSetAction{Slot: verifySlotsSlot, Value: []string{
			verifyIntentsSlot,
			verifyInputSlot,
			verifyIUResultSlot,
			verifyDialogueStateSlot,
			verifySlotsSlot,
		}},
		models.NewNLAction(texts("verify_intent_not_understand", b.Language)...),
		&models.ChoiceAction{Choices: choices},
	)
}
