package api

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/dialoguekeeper/service/internal/dialogue"
)

// WebSocket升级器
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 允许所有来源的连接（生产环境中应该限制）
		return true
	},
}

// wsConnections 活跃的WebSocket连接: 会话ID → 连接统计
var (
	wsConnections = make(map[string]bool)
	wsMutex       sync.RWMutex
)

// wsInbound WebSocket入站消息
// type为reset时重置对话，其余按respondRequest解析为用户输入
type wsInbound struct {
	respondRequest
}

// HandleWebSocket 处理WebSocket连接
//
// 每个连接绑定一个会话：带session_id参数时复用已有会话，否则新建。
// 机器人的响应在回合内实时推送，回合结束后发送turn_end帧
func (h *Handler) HandleWebSocket(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		sessionID, _ = h.sessions.Create()
		logrus.WithField("session", sessionID).Info("[WebSocket] 为连接创建新会话")
	} else if err := h.sessions.WithSession(sessionID, func(*dialogue.BotSession) error { return nil }); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("[WebSocket] 升级连接失败")
		return
	}
	defer conn.Close()

	wsMutex.Lock()
	wsConnections[sessionID] = true
	wsMutex.Unlock()
	defer func() {
		wsMutex.Lock()
		delete(wsConnections, sessionID)
		wsMutex.Unlock()
	}()

	dispatcher := NewWebSocketDispatcher(conn)
	logrus.WithField("session", sessionID).Info("[WebSocket] 连接已建立")

	if err := dispatcher.Send(map[string]any{
		"type":       "connected",
		"session_id": sessionID,
	}); err != nil {
		logrus.WithError(err).Warn("[WebSocket] 发送欢迎帧失败")
		return
	}

	for {
		var msg wsInbound
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithError(err).Warn("[WebSocket] 连接异常断开")
			}
			return
		}

		if msg.Type == "reset" {
			err := h.sessions.WithSession(sessionID, func(session *dialogue.BotSession) error {
				session.ResetDialogue()
				return nil
			})
			if err != nil {
				_ = dispatcher.Send(map[string]any{"type": "error", "message": err.Error()})
				continue
			}
			_ = dispatcher.Send(map[string]any{"type": "reset_done"})
			continue
		}

		input, err := parseUserInput(&msg.respondRequest)
		if err != nil {
			_ = dispatcher.Send(map[string]any{"type": "error", "message": err.Error()})
			continue
		}

		err = h.sessions.WithSession(sessionID, func(session *dialogue.BotSession) error {
			session.SetDispatcher(dispatcher)
			return h.bot.Respond(session, input)
		})
		if err != nil {
			logrus.WithError(err).Error("[WebSocket] 处理输入失败")
			_ = dispatcher.Send(map[string]any{"type": "error", "message": err.Error()})
			continue
		}
		_ = dispatcher.Send(map[string]any{"type": "turn_end"})
	}
}

// GetWebSocketStatus 查询WebSocket连接状态
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	wsMutex.RLock()
	sessionIDs := make([]string, 0, len(wsConnections))
	for id := range wsConnections {
		sessionIDs = append(sessionIDs, id)
	}
	wsMutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":      "success",
		"connections": len(sessionIDs),
		"sessions":    sessionIDs,
	})
}
