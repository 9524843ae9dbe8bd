package api

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/dialoguekeeper/service/internal/models"
)

// responseFrame 构造带对话状态的响应帧，所有对外分发器共用此格式
func responseFrame(session models.ActionSession, frameType string) map[string]any {
	return map[string]any{
		"type":           frameType,
		"dialogue_state": session.State().Snapshot(),
	}
}

// ServerDispatcher 把机器人的响应累积成HTTP响应体
// 每条响应都附带当时的对话状态快照，方便前端展示和排查
type ServerDispatcher struct {
	models.NopDispatcher
	Responses []map[string]any
}

// Reset 清空已累积的响应
func (d *ServerDispatcher) Reset() {
	d.Responses = nil
}

func (d *ServerDispatcher) AfterAction(session models.ActionSession, action models.Action) {
	logrus.WithField("action", action.Name()).Debugf("[API] 对话状态 %v", session.State())
}

func (d *ServerDispatcher) Utter(session models.ActionSession, text string) error {
	frame := responseFrame(session, "text")
	frame["text"] = text
	d.Responses = append(d.Responses, frame)
	return nil
}

func (d *ServerDispatcher) Choice(session models.ActionSession, choices []models.Choice, text string) error {
	items := make([]map[string]any, len(choices))
	for i, c := range choices {
		items[i] = map[string]any{
			"key":   c.Key,
			"idx":   c.Idx,
			"text":  c.Text,
			"score": c.Score,
		}
	}
	frame := responseFrame(session, "choice")
	frame["text"] = text
	frame["choices"] = items
	d.Responses = append(d.Responses, frame)
	return nil
}

func (d *ServerDispatcher) Media(session models.ActionSession, media models.Media) error {
	frame := responseFrame(session, "media")
	frame["url"] = media.URL
	frame["media_type"] = media.MediaType
	frame["title"] = media.Title
	frame["description"] = media.Description
	d.Responses = append(d.Responses, frame)
	return nil
}

func (d *ServerDispatcher) Custom(session models.ActionSession, name string, args map[string]any) error {
	frame := responseFrame(session, "custom")
	frame["name"] = name
	frame["args"] = args
	d.Responses = append(d.Responses, frame)
	return nil
}

// WebSocketDispatcher 把机器人的响应实时推送到WebSocket连接
type WebSocketDispatcher struct {
	models.NopDispatcher
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewWebSocketDispatcher 创建WebSocket分发器
func NewWebSocketDispatcher(conn *websocket.Conn) *WebSocketDispatcher {
	return &WebSocketDispatcher{conn: conn}
}

// Send 线程安全地发送一帧
func (d *WebSocketDispatcher) Send(frame map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn.WriteJSON(frame)
}

func (d *WebSocketDispatcher) Utter(session models.ActionSession, text string) error {
	frame := responseFrame(session, "text")
	frame["text"] = text
	return d.Send(frame)
}

func (d *WebSocketDispatcher) Choice(session models.ActionSession, choices []models.Choice, text string) error {
	items := make([]map[string]any, len(choices))
	for i, c := range choices {
		items[i] = map[string]any{
			"key":   c.Key,
			"idx":   c.Idx,
			"text":  c.Text,
			"score": c.Score,
		}
	}
	frame := responseFrame(session, "choice")
	frame["text"] = text
	frame["choices"] = items
	return d.Send(frame)
}

func (d *WebSocketDispatcher) Media(session models.ActionSession, media models.Media) error {
	frame := responseFrame(session, "media")
	frame["url"] = media.URL
	frame["media_type"] = media.MediaType
	frame["title"] = media.Title
	frame["description"] = media.Description
	return d.Send(frame)
}

func (d *WebSocketDispatcher) Custom(session models.ActionSession, name string, args map[string]any) error {
	frame := responseFrame(session, "custom")
	frame["name"] = name
	frame["args"] = args
	return d.Send(frame)
}
