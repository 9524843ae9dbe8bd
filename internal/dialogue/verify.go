package dialogue

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dialoguekeeper/service/internal/iu"
	"github.com/dialoguekeeper/service/internal/models"
)

// VerifyIntentID 消歧意图的ID，机器人启动时自动注册
const VerifyIntentID = "verify-intent"

// newVerifyIntentIntent 创建消歧意图
//
// 机器人无法确定用户意图时会给出候选列表，该意图捕捉用户对候选的点选：
// 点选某个候选则记录学习样本、按该意图重新抽取实体并执行其动作；
// 点选"都不是"则只记录负样本。处理完毕后清理消歧用到的全部槽位
func newVerifyIntentIntent(b *Bot) *models.Intent {
	intent := models.NewIntent(VerifyIntentID)
	intent.InputContexts = []string{VerifyContextName}
	intent.SelectionTrigger = &models.AnySelectionTrigger{}
	intent.Action = &models.FuncAction{
		ActionName: "verify_intent_selection",
		Fn: func(session models.ActionSession) error {
			s, ok := session.(*BotSession)
			if !ok {
				return fmt.Errorf("消歧意图需要在机器人会话中执行")
			}
			return b.handleVerifySelection(s)
		},
	}
	return intent
}

func (b *Bot) handleVerifySelection(session *BotSession) error {
	if session.IUResult == nil {
		return fmt.Errorf("缺少意图理解结果")
	}
	selection, ok := session.IUResult.UserInput.(models.SelectionInput)
	if !ok {
		return fmt.Errorf("消歧意图只能由选项输入触发，实际输入 %v", session.IUResult.UserInput)
	}

	state := session.State()
	intentIDs, _ := state.Slot(verifyIntentsSlot).([]string)
	prevInput, _ := state.Slot(verifyInputSlot).(models.UserInput)

	switch selection.SelectionKey {
	case "intent":
		if selection.SelectionIdx < 0 || selection.SelectionIdx >= len(intentIDs) {
			return fmt.Errorf("选项下标 %d 越界", selection.SelectionIdx)
		}
		trueIntentID := intentIDs[selection.SelectionIdx]
		falseIntentIDs := make([]string, 0, len(intentIDs)-1)
		for _, id := range intentIDs {
			if id != trueIntentID {
				falseIntentIDs = append(falseIntentIDs, id)
			}
		}

		if err := models.RunAction(session, utterVerifyIntentThanks(b.Language)); err != nil {
			return err
		}

		if err := b.storeLearnedInput(prevInput, trueIntentID, falseIntentIDs); err != nil {
			return err
		}

		// 用户确认了真实意图，需要按该意图重新抽取实体并写入槽位
		lastResult, _ := state.Slot(verifyIUResultSlot).(*iu.Result)
		lastState, _ := state.Slot(verifyDialogueStateSlot).(*models.DialogueState)
		if lastResult != nil && lastState != nil {
			entities, err := b.iu.UpdateEntities(trueIntentID, lastResult, lastState)
			if err != nil {
				return err
			}
			logrus.Debug("[对话] 写入实体槽位")
			session.UpdateEntitySlots(entities)
		}

		if err := session.ExecuteIntent(trueIntentID); err != nil {
			return err
		}

	case "none":
		if err := b.storeLearnedInput(prevInput, "", intentIDs); err != nil {
			return err
		}
		if err := models.RunAction(session, utterVerifyIntentNone(b.Language)); err != nil {
			return err
		}

	default:
		return fmt.Errorf("未知的选项key: %q", selection.SelectionKey)
	}

	// 清理消歧槽位
	clearSlots, _ := state.Slot(verifySlotsSlot).([]string)
	for _, slot := range clearSlots {
		state.ClearSlot(slot)
	}
	return nil
}

// storeLearnedInput 记录一条学习样本，trueIntentID为空表示所有候选都被否定
func (b *Bot) storeLearnedInput(input models.UserInput, trueIntentID string, falseIntentIDs []string) error {
	obj := map[string]any{
		"user_input":    inputSnapshot(input),
		"true_intent":   nil,
		"false_intents": falseIntentIDs,
	}
	if trueIntentID != "" {
		obj["true_intent"] = trueIntentID
	}
	if err := b.docStore.IndexObject(LearnedInputsCollection, obj, nil); err != nil {
		return err
	}
	return b.docStore.Commit(LearnedInputsCollection)
}
