package dialogue

import (
	"strings"
	"testing"

	"github.com/dialoguekeeper/service/internal/models"
)

func newTestBot(t *testing.T) *Bot {
	t.Helper()
	bot, err := NewBot("test-bot", "en", Options{StorageDir: t.TempDir()})
	if err != nil {
		t.Fatalf("创建机器人失败: %v", err)
	}
	return bot
}

// recordAction 记录意图被执行并回复固定文本
func recordAction(executed *[]string, intentID, reply string) models.Action {
	return models.NewJoinedAction(
		&models.FuncAction{
			ActionName: "record",
			Fn: func(session models.ActionSession) error {
				*executed = append(*executed, intentID)
				return nil
			},
		},
		models.NewNLAction(reply),
	)
}

// respond 处理一次输入并返回本回合累积的响应
func respond(t *testing.T, session *BotSession, input models.UserInput) []map[string]any {
	t.Helper()
	acc := &models.AccumulateDispatcher{}
	session.SetDispatcher(acc)
	if err := session.Bot().Respond(session, input); err != nil {
		t.Fatalf("处理输入失败: %v", err)
	}
	return acc.Responses
}

// hasUtterIn 判断响应中是否包含候选话术之一
func hasUtterIn(responses []map[string]any, candidates []string) bool {
	for _, r := range responses {
		if r["type"] != "utter" {
			continue
		}
		text, _ := r["text"].(string)
		for _, c := range candidates {
			if text == c {
				return true
			}
		}
	}
	return false
}

// TestBotRespondConfidentIntent 测试置信意图被直接执行
func TestBotRespondConfidentIntent(t *testing.T) {
	bot := newTestBot(t)

	var executed []string
	hello := models.NewIntent("hello")
	hello.Action = recordAction(&executed, "hello", "Hi there!")
	bot.RegisterIntent(hello)
	if err := bot.RegisterIntentRegexPatterns("hello", `Hel\w+`); err != nil {
		t.Fatalf("注册正则模式失败: %v", err)
	}
	if err := bot.Start(true); err != nil {
		t.Fatalf("启动机器人失败: %v", err)
	}

	session := NewSession(bot, nil, nil)
	responses := respond(t, session, models.NewNLInput("Hello"))

	if len(executed) != 1 || executed[0] != "hello" {
		t.Errorf("期望hello意图被执行，但执行记录为 %v", executed)
	}
	if !hasUtterIn(responses, []string{"Hi there!"}) {
		t.Errorf("期望回复 Hi there!，但得到 %v", responses)
	}

	// 对话回合落库
	docs, err := bot.DocStore().Find(LoggingCollection, nil, 0)
	if err != nil {
		t.Fatalf("查询对话日志失败: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("期望1条对话日志，但得到 %d", len(docs))
	}
	if docs[0]["bot"] != "test-bot" {
		t.Errorf("期望日志归属 test-bot，但得到 %v", docs[0]["bot"])
	}
}

// TestBotIgnoreAndInvalidInput 测试空输入被忽略、超长输入被拒绝
func TestBotIgnoreAndInvalidInput(t *testing.T) {
	bot := newTestBot(t)
	if err := bot.Start(true); err != nil {
		t.Fatalf("启动机器人失败: %v", err)
	}
	session := NewSession(bot, nil, nil)

	t.Run("空输入不产生响应", func(t *testing.T) {
		responses := respond(t, session, models.NewNLInput("   "))
		if len(responses) != 0 {
			t.Errorf("期望空输入没有响应，但得到 %v", responses)
		}
	})

	t.Run("超长输入回复无效提示", func(t *testing.T) {
		responses := respond(t, session, models.NewNLInput(strings.Repeat("a", models.NLInputMaxLength+1)))
		if !hasUtterIn(responses, texts("invalid_input.1", "en")) {
			t.Errorf("期望回复输入无效提示，但得到 %v", responses)
		}
	})
}

// TestBotIntentNotUnderstood 测试没有置信意图且无回退时的回复
func TestBotIntentNotUnderstood(t *testing.T) {
	bot := newTestBot(t)

	var executed []string
	hello := models.NewIntent("hello")
	hello.Action = recordAction(&executed, "hello", "Hi there!")
	bot.RegisterIntent(hello)
	if err := bot.RegisterIntentPhrasePatterns("hello", "Hi"); err != nil {
		t.Fatalf("注册短语模式失败: %v", err)
	}
	if err := bot.Start(true); err != nil {
		t.Fatalf("启动机器人失败: %v", err)
	}

	session := NewSession(bot, nil, nil)
	responses := respond(t, session, models.NewNLInput("complete gibberish"))

	if len(executed) != 0 {
		t.Errorf("期望没有意图被执行，但执行记录为 %v", executed)
	}
	if !hasUtterIn(responses, texts("intent_not_understand", "en")) {
		t.Errorf("期望回复没有理解，但得到 %v", responses)
	}
}

// TestBotFallbackIntent 测试没有置信意图时执行回退意图
func TestBotFallbackIntent(t *testing.T) {
	bot := newTestBot(t)

	var executed []string
	hello := models.NewIntent("hello")
	hello.Action = recordAction(&executed, "hello", "Hi there!")
	bot.RegisterIntent(hello)
	if err := bot.RegisterIntentPhrasePatterns("hello", "Hi"); err != nil {
		t.Fatalf("注册短语模式失败: %v", err)
	}

	fallback := models.NewIntent("fallback")
	fallback.NLTrigger = &models.FallbackNLTrigger{}
	fallback.Action = recordAction(&executed, "fallback", "I only handle greetings")
	bot.RegisterIntent(fallback)

	if err := bot.Start(true); err != nil {
		t.Fatalf("启动机器人失败: %v", err)
	}

	session := NewSession(bot, nil, nil)
	responses := respond(t, session, models.NewNLInput("complete gibberish"))

	if len(executed) != 1 || executed[0] != "fallback" {
		t.Errorf("期望回退意图被执行，但执行记录为 %v", executed)
	}
	if !hasUtterIn(responses, []string{"I only handle greetings"}) {
		t.Errorf("期望回退回复，但得到 %v", responses)
	}
}

// verifyFlowBot 两个意图共享同一短语，迫使机器人让用户消歧
func verifyFlowBot(t *testing.T) (*Bot, *[]string) {
	t.Helper()
	bot := newTestBot(t)

	var executed []string
	for _, id := range []string{"play-music", "play-movie"} {
		intent := models.NewIntent(id)
		intent.Action = recordAction(&executed, id, "Playing "+id)
		bot.RegisterIntent(intent)
		if err := bot.RegisterIntentPhrasePatterns(id, "play something for me"); err != nil {
			t.Fatalf("注册短语模式失败: %v", err)
		}
	}
	if err := bot.Start(true); err != nil {
		t.Fatalf("启动机器人失败: %v", err)
	}
	return bot, &executed
}

// TestBotVerifyIntentFlow 测试消歧流程：提示候选、用户点选、执行确认的意图
func TestBotVerifyIntentFlow(t *testing.T) {
	bot, executed := verifyFlowBot(t)
	session := NewSession(bot, nil, nil)

	responses := respond(t, session, models.NewNLInput("play something for me"))

	if len(*executed) != 0 {
		t.Fatalf("期望消歧前没有意图被执行，但执行记录为 %v", *executed)
	}
	if len(responses) == 0 {
		t.Fatalf("期望有消歧响应，但没有任何响应")
	}
	last := responses[len(responses)-1]
	if last["type"] != "choice" {
		t.Fatalf("期望最后一条响应为选项，但得到 %v", last)
	}
	choices, _ := last["choices"].([]map[string]any)
	if len(choices) != 3 {
		t.Fatalf("期望2个候选加上都不是共3个选项，但得到 %v", choices)
	}
	if choices[2]["key"] != "none" || choices[2]["idx"] != -1 {
		t.Errorf("期望末位选项为都不是(idx=-1)，但得到 %v", choices[2])
	}
	if !session.State().HasContext(VerifyContextName) {
		t.Errorf("期望消歧上下文被激活")
	}
	intentIDs, _ := session.State().Slot(verifyIntentsSlot).([]string)
	if len(intentIDs) != 2 || intentIDs[0] != "play-music" {
		t.Errorf("期望候选意图槽位为 [play-music play-movie]，但得到 %v", intentIDs)
	}

	// 槽位里保存的是提问前的状态副本而不是活状态，否则状态会引用自身
	stored, _ := session.State().Slot(verifyDialogueStateSlot).(*models.DialogueState)
	if stored == nil || stored == session.State() {
		t.Fatalf("期望槽位中保存对话状态的副本，但得到 %v", stored)
	}
	if stored.HasContext(VerifyContextName) {
		t.Errorf("期望保存的是消歧提问前的对话状态")
	}
	if snapshot := session.State().Snapshot(); snapshot == nil {
		t.Errorf("期望消歧后的状态可以生成快照")
	}

	// 用户点选第一个候选
	responses = respond(t, session, models.SelectionInput{SelectionKey: "intent", SelectionIdx: 0})

	if len(*executed) != 1 || (*executed)[0] != "play-music" {
		t.Errorf("期望确认后执行 play-music，但执行记录为 %v", *executed)
	}
	if !hasUtterIn(responses, texts("verify_intent_thanks", "en")) {
		t.Errorf("期望致谢回复，但得到 %v", responses)
	}

	// 学习样本落库
	docs, err := bot.DocStore().Find(LearnedInputsCollection, nil, 0)
	if err != nil {
		t.Fatalf("查询学习样本失败: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("期望1条学习样本，但得到 %d", len(docs))
	}
	if docs[0]["true_intent"] != "play-music" {
		t.Errorf("期望真实意图为 play-music，但得到 %v", docs[0]["true_intent"])
	}
	falseIntents, _ := docs[0]["false_intents"].([]string)
	if len(falseIntents) != 1 || falseIntents[0] != "play-movie" {
		t.Errorf("期望否定意图为 [play-movie]，但得到 %v", docs[0]["false_intents"])
	}

	// 消歧槽位被清理
	if session.State().Slot(verifyIntentsSlot) != nil {
		t.Errorf("期望消歧槽位被清理，但仍为 %v", session.State().Slot(verifyIntentsSlot))
	}
}

// TestBotVerifyIntentNone 测试用户表示候选都不对时只记录负样本
func TestBotVerifyIntentNone(t *testing.T) {
	bot, executed := verifyFlowBot(t)
	session := NewSession(bot, nil, nil)

	respond(t, session, models.NewNLInput("play something for me"))
	responses := respond(t, session, models.SelectionInput{SelectionKey: "none", SelectionIdx: -1})

	if len(*executed) != 0 {
		t.Errorf("期望没有意图被执行，但执行记录为 %v", *executed)
	}
	if !hasUtterIn(responses, texts("verify_intent_none.1", "en")) {
		t.Errorf("期望回复抱歉话术，但得到 %v", responses)
	}

	docs, err := bot.DocStore().Find(LearnedInputsCollection, nil, 0)
	if err != nil {
		t.Fatalf("查询学习样本失败: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("期望1条学习样本，但得到 %d", len(docs))
	}
	if docs[0]["true_intent"] != nil {
		t.Errorf("期望真实意图为空，但得到 %v", docs[0]["true_intent"])
	}
	falseIntents, _ := docs[0]["false_intents"].([]string)
	if len(falseIntents) != 2 {
		t.Errorf("期望两个候选都被否定，但得到 %v", docs[0]["false_intents"])
	}
}

// TestBotEntitySlots 测试置信意图执行前实体被写入槽位
func TestBotEntitySlots(t *testing.T) {
	bot := newTestBot(t)

	bot.RegisterValue(models.NewValue("COUNTRY_DE").AddSynonym("Germany"))
	bot.RegisterEntity(models.NewEntity("living-country", "COUNTRY_DE"))

	living := models.NewIntent("living")
	bot.RegisterIntent(living)
	if err := bot.RegisterIntentRegexPatterns("living", `I live in \w+`); err != nil {
		t.Fatalf("注册正则模式失败: %v", err)
	}
	if err := bot.RegisterIntentPhrasePatterns("living", "I live in ((living-country))"); err != nil {
		t.Fatalf("注册短语模式失败: %v", err)
	}
	if err := bot.Start(true); err != nil {
		t.Fatalf("启动机器人失败: %v", err)
	}

	session := NewSession(bot, nil, nil)
	respond(t, session, models.NewNLInput("I live in Germany"))

	entities, ok := session.State().Slot("living-country").([]models.ExtractedEntity)
	if !ok || len(entities) != 1 {
		t.Fatalf("期望living-country槽位写入1个实体，但得到 %v", session.State().Slot("living-country"))
	}
	if entities[0].Value != "COUNTRY_DE" || entities[0].Text != "Germany" {
		t.Errorf("期望抽取到 (COUNTRY_DE, Germany)，但得到 %v", entities[0])
	}
}
