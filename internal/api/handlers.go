// Package api 对外暴露机器人的HTTP和WebSocket接口
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dialoguekeeper/service/internal/config"
	"github.com/dialoguekeeper/service/internal/dialogue"
	"github.com/dialoguekeeper/service/internal/models"
)

// Handler API处理器
type Handler struct {
	bot       *dialogue.Bot
	cfg       *config.Config
	sessions  *SessionManager
	startTime time.Time
}

// NewHandler 创建API处理器
func NewHandler(bot *dialogue.Bot, cfg *config.Config) *Handler {
	return &Handler{
		bot:       bot,
		cfg:       cfg,
		sessions:  NewSessionManager(bot),
		startTime: time.Now(),
	}
}

// Sessions 会话管理器
func (h *Handler) Sessions() *SessionManager { return h.sessions }

// RegisterRoutes 注册所有HTTP路由
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.ServiceInfo)
	router.GET("/health", h.Health)

	api := router.Group("/api")
	{
		api.POST("/sessions", h.CreateSession)
		api.DELETE("/sessions/:id", h.DeleteSession)
		api.GET("/sessions/:id/state", h.GetSessionState)
		api.POST("/sessions/:id/reset", h.ResetSession)
		api.POST("/sessions/:id/respond", h.Respond)
	}

	router.GET("/ws", h.HandleWebSocket)
	router.GET("/ws/status", h.GetWebSocketStatus)
}

// ServiceInfo 服务信息
func (h *Handler) ServiceInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":   h.cfg.ServiceName,
		"version":   "1.0.0",
		"status":    "running",
		"bot":       h.bot.ID,
		"language":  h.bot.Language,
		"timestamp": time.Now().Format(time.RFC3339),
		"endpoints": gin.H{
			"sessions":  "/api/sessions",
			"websocket": "/ws",
			"status":    "/ws/status",
		},
	})
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"uptime":   time.Since(h.startTime).String(),
		"sessions": h.sessions.Count(),
	})
}

// CreateSession 创建新会话
func (h *Handler) CreateSession(c *gin.Context) {
	id, session := h.sessions.Create()
	c.JSON(http.StatusOK, gin.H{
		"status":         "success",
		"session_id":     id,
		"dialogue_state": session.State().Snapshot(),
	})
}

// DeleteSession 删除会话
func (h *Handler) DeleteSession(c *gin.Context) {
	h.sessions.Delete(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// GetSessionState 查询会话的对话状态
func (h *Handler) GetSessionState(c *gin.Context) {
	var snapshot map[string]any
	err := h.sessions.WithSession(c.Param("id"), func(session *dialogue.BotSession) error {
		snapshot = session.State().Snapshot()
		return nil
	})
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "dialogue_state": snapshot})
}

// ResetSession 把会话的对话重置回起点
func (h *Handler) ResetSession(c *gin.Context) {
	err := h.sessions.WithSession(c.Param("id"), func(session *dialogue.BotSession) error {
		session.ResetDialogue()
		return nil
	})
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// respondRequest 一次用户输入
type respondRequest struct {
	Type         string            `json:"type" binding:"required"` // nl / selection / keyed
	Text         string            `json:"text"`
	SelectionKey string            `json:"selection_key"`
	SelectionIdx *int              `json:"selection_idx"`
	Key          string            `json:"key"`
	Args         map[string]string `json:"args"`
}

// parseUserInput 把请求体解析为用户输入
func parseUserInput(req *respondRequest) (models.UserInput, error) {
	switch req.Type {
	case "nl":
		return models.NewNLInput(req.Text), nil
	case "selection":
		if req.SelectionKey == "" || req.SelectionIdx == nil {
			return nil, fmt.Errorf("选项输入需要selection_key和selection_idx")
		}
		return models.SelectionInput{
			SelectionKey: req.SelectionKey,
			SelectionIdx: *req.SelectionIdx,
		}, nil
	case "keyed":
		if req.Key == "" {
			return nil, fmt.Errorf("结构化输入需要key")
		}
		return models.KeyedInput{Key: req.Key, Args: req.Args}, nil
	default:
		return nil, fmt.Errorf("未知的输入类型: %q", req.Type)
	}
}

// Respond 处理一次用户输入并返回本回合的全部机器人响应
func (h *Handler) Respond(c *gin.Context) {
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "参数错误: " + err.Error()})
		return
	}

	input, err := parseUserInput(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	dispatcher := &ServerDispatcher{}
	var snapshot map[string]any
	err = h.sessions.WithSession(c.Param("id"), func(session *dialogue.BotSession) error {
		session.SetDispatcher(dispatcher)
		defer session.SetDispatcher(&models.LoggingDispatcher{})
		if err := h.bot.Respond(session, input); err != nil {
			return err
		}
		snapshot = session.State().Snapshot()
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}

	responses := dispatcher.Responses
	if responses == nil {
		responses = []map[string]any{}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "success",
		"responses":      responses,
		"dialogue_state": snapshot,
	})
}
