package models

import (
	"math/rand"
	"testing"
)

// testSession 测试用的动作会话
type testSession struct {
	state      *DialogueState
	dispatcher Dispatcher
	executed   []string
}

func newTestSession() *testSession {
	return &testSession{
		state:      NewDialogueState(nil, nil),
		dispatcher: &AccumulateDispatcher{},
	}
}

func (s *testSession) State() *DialogueState   { return s.state }
func (s *testSession) Dispatcher() Dispatcher  { return s.dispatcher }
func (s *testSession) ExecuteIntent(intentID string) error {
	s.executed = append(s.executed, intentID)
	return nil
}

func (s *testSession) responses() []map[string]any {
	return s.dispatcher.(*AccumulateDispatcher).Responses
}

// TestStateActions 测试槽位和上下文动作
func TestStateActions(t *testing.T) {
	session := newTestSession()

	actions := NewJoinedAction(
		&SlotSetAction{Slot: "name", Value: "Alice"},
		&ContextSetAction{Context: NewContext("greeted")},
	)
	if err := RunAction(session, actions); err != nil {
		t.Fatalf("执行动作失败: %v", err)
	}

	if session.state.Slot("name") != "Alice" {
		t.Errorf("期望槽位name为 Alice，但得到 %v", session.state.Slot("name"))
	}
	if !session.state.HasContext("greeted") {
		t.Errorf("期望上下文greeted被设置，但不存在")
	}

	cleanup := NewJoinedAction(
		&SlotClearAction{Slot: "name"},
		&ContextClearAction{ContextName: "greeted"},
	)
	if err := RunAction(session, cleanup); err != nil {
		t.Fatalf("执行清理动作失败: %v", err)
	}
	if session.state.Slot("name") != nil || session.state.HasContext("greeted") {
		t.Errorf("期望槽位和上下文都被清除")
	}
}

// TestNLAction 测试自然语言回复动作
func TestNLAction(t *testing.T) {
	t.Run("单条话术", func(t *testing.T) {
		session := newTestSession()
		action := NewNLAction("Hello!")
		if err := RunAction(session, action); err != nil {
			t.Fatalf("执行动作失败: %v", err)
		}

		responses := session.responses()
		if len(responses) != 1 {
			t.Fatalf("期望1条响应，但得到 %d", len(responses))
		}
		if responses[0]["type"] != "utter" || responses[0]["text"] != "Hello!" {
			t.Errorf("期望回复 Hello!，但得到 %v", responses[0])
		}
	})

	t.Run("优先选择缺失槽位最少的话术", func(t *testing.T) {
		session := newTestSession()
		session.state.SetSlot("name", "Alice")

		action := NewNLAction("Hello ((name))!", "Hello ((name)) from ((city))!")
		action.Rand = rand.New(rand.NewSource(7))

		for i := 0; i < 5; i++ {
			session.dispatcher.(*AccumulateDispatcher).Reset()
			if err := RunAction(session, action); err != nil {
				t.Fatalf("执行动作失败: %v", err)
			}
			got := session.responses()[0]["text"]
			if got != "Hello Alice!" {
				t.Fatalf("期望总是选择槽位完整的话术，但得到 %v", got)
			}
		}
	})

	t.Run("无话术时什么都不做", func(t *testing.T) {
		session := newTestSession()
		if err := RunAction(session, &NLAction{}); err != nil {
			t.Fatalf("执行动作失败: %v", err)
		}
		if len(session.responses()) != 0 {
			t.Errorf("期望没有响应，但得到 %d 条", len(session.responses()))
		}
	})
}

// TestChoiceAndCustomActions 测试选项、多媒体和自定义动作
func TestChoiceAndCustomActions(t *testing.T) {
	session := newTestSession()

	action := NewJoinedAction(
		&ChoiceAction{
			Text: "Did you mean:",
			Choices: []Choice{
				{Key: "intent", Idx: 0, Text: "hello", Score: 0.9},
				{Key: "none", Idx: -1, Text: "None of these"},
			},
		},
		&MediaAction{Media: Media{URL: "https://example.com/a.png", MediaType: "image"}},
		&CustomAction{ActionName: "typing", Args: map[string]any{"ms": 500}},
	)
	if err := RunAction(session, action); err != nil {
		t.Fatalf("执行动作失败: %v", err)
	}

	responses := session.responses()
	if len(responses) != 3 {
		t.Fatalf("期望3条响应，但得到 %d", len(responses))
	}
	if responses[0]["type"] != "choice" {
		t.Errorf("期望第一条为选项响应，但得到 %v", responses[0]["type"])
	}
	choices := responses[0]["choices"].([]map[string]any)
	if len(choices) != 2 || choices[1]["idx"] != -1 {
		t.Errorf("期望2个选项且末位为none选项，但得到 %v", choices)
	}
	if responses[1]["type"] != "media" || responses[1]["url"] != "https://example.com/a.png" {
		t.Errorf("期望第二条为多媒体响应，但得到 %v", responses[1])
	}
	if responses[2]["type"] != "custom" || responses[2]["name"] != "typing" {
		t.Errorf("期望第三条为自定义响应，但得到 %v", responses[2])
	}
}

// TestExecuteIntentAction 测试意图间动作复用
func TestExecuteIntentAction(t *testing.T) {
	session := newTestSession()
	action := &ExecuteIntentAction{IntentID: "hello"}
	if err := RunAction(session, action); err != nil {
		t.Fatalf("执行动作失败: %v", err)
	}
	if len(session.executed) != 1 || session.executed[0] != "hello" {
		t.Errorf("期望执行意图 hello，但得到 %v", session.executed)
	}
}

// TestMultiDispatcher 测试组合分发器
func TestMultiDispatcher(t *testing.T) {
	acc1 := &AccumulateDispatcher{}
	acc2 := &AccumulateDispatcher{}
	session := newTestSession()
	session.dispatcher = NewMultiDispatcher(acc1, acc2)

	if err := RunAction(session, NewNLAction("Hi")); err != nil {
		t.Fatalf("执行动作失败: %v", err)
	}
	if len(acc1.Responses) != 1 || len(acc2.Responses) != 1 {
		t.Errorf("期望两个分发器都收到响应，但得到 %d / %d", len(acc1.Responses), len(acc2.Responses))
	}
}
