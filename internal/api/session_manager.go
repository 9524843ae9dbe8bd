package api

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dialoguekeeper/service/internal/dialogue"
)

// managedSession 带并发保护的会话
// 同一会话的回合串行执行，不同会话互不阻塞
type managedSession struct {
	mu         sync.Mutex
	session    *dialogue.BotSession
	createdAt  time.Time
	lastActive time.Time
}

// SessionManager 管理服务端的所有机器人会话
type SessionManager struct {
	bot      *dialogue.Bot
	mu       sync.RWMutex
	sessions map[string]*managedSession
}

// NewSessionManager 创建会话管理器
func NewSessionManager(bot *dialogue.Bot) *SessionManager {
	return &SessionManager{
		bot:      bot,
		sessions: make(map[string]*managedSession),
	}
}

// Create 创建新会话并返回会话ID
func (m *SessionManager) Create() (string, *dialogue.BotSession) {
	id := uuid.NewString()
	ms := &managedSession{
		session:    dialogue.NewSession(m.bot, nil, nil),
		createdAt:  time.Now(),
		lastActive: time.Now(),
	}
	m.mu.Lock()
	m.sessions[id] = ms
	m.mu.Unlock()
	return id, ms.session
}

// get 查询会话
func (m *SessionManager) get(id string) (*managedSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, exists := m.sessions[id]
	if !exists {
		return nil, fmt.Errorf("会话 %q 不存在", id)
	}
	return ms, nil
}

// Delete 删除会话
func (m *SessionManager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Count 当前会话数
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// WithSession 对指定会话串行执行fn
func (m *SessionManager) WithSession(id string, fn func(session *dialogue.BotSession) error) error {
	ms, err := m.get(id)
	if err != nil {
		return err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.lastActive = time.Now()
	return fn(ms.session)
}
