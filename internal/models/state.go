package models

import "fmt"

// DefaultContextLifetime 上下文默认存活回合数
const DefaultContextLifetime = 3

// TTLContext 带生命周期的对话上下文
// 每经过一个用户回合生命周期减一，耗尽后从对话状态中清除；Lifetime为nil表示永不过期
type TTLContext struct {
	Name      string `json:"name"`
	Lifetime  *int   `json:"lifetime"`
	Remaining int    `json:"remaining"`
	Lived     int    `json:"lived"`
}

// NewContext 创建默认生命周期的上下文
func NewContext(name string) *TTLContext {
	lifetime := DefaultContextLifetime
	return NewContextTTL(name, &lifetime)
}

// NewContextTTL 创建指定生命周期的上下文，lifetime为nil表示永不过期
func NewContextTTL(name string, lifetime *int) *TTLContext {
	c := &TTLContext{Name: name, Lifetime: lifetime}
	if lifetime != nil {
		c.Remaining = *lifetime
	}
	return c
}

// Live 消耗一个回合
func (c *TTLContext) Live() {
	c.Lived++
	if c.Lifetime != nil {
		c.Remaining--
		if c.Remaining < -1 {
			c.Remaining = -1
		}
	}
}

// IsDead 判断上下文是否已过期
func (c *TTLContext) IsDead() bool {
	if c.Lifetime == nil {
		return false
	}
	return c.Remaining < 0
}

func (c *TTLContext) clone() *TTLContext {
	cp := *c
	if c.Lifetime != nil {
		lifetime := *c.Lifetime
		cp.Lifetime = &lifetime
	}
	return &cp
}

func (c *TTLContext) String() string {
	return fmt.Sprintf("(%q: %d)", c.Name, c.Remaining)
}

// DialogueState 对话进度的存放处
//
// 上下文(Context)用来记录对话状态或里程碑：每个意图声明一组必需的输入上下文，
// 只有当这些上下文都存在时该意图才会被纳入匹配，因此上下文可以控制哪些意图处于激活态。
// 典型用法是追问意图：前一个意图设置上下文，后续意图以它为输入上下文。
//
// 槽位(Slot)用来以键值对的形式记录对话中收集到的信息，可被任何意图读写，
// 相当于机器人的"记忆"。
type DialogueState struct {
	contexts map[string]*TTLContext
	order    []string // 上下文插入顺序，保证遍历确定性
	slots    map[string]any
}

// NewDialogueState 创建对话状态
func NewDialogueState(contexts []*TTLContext, slots map[string]any) *DialogueState {
	s := &DialogueState{
		contexts: make(map[string]*TTLContext),
		slots:    make(map[string]any),
	}
	for _, c := range contexts {
		s.SetContext(c)
	}
	for k, v := range slots {
		s.SetSlot(k, v)
	}
	return s
}

// SetContext 设置上下文，同名上下文会被替换
func (s *DialogueState) SetContext(context *TTLContext) {
	if _, exists := s.contexts[context.Name]; !exists {
		s.order = append(s.order, context.Name)
	}
	s.contexts[context.Name] = context.clone()
}

// ClearContext 移除上下文
func (s *DialogueState) ClearContext(name string) {
	if _, exists := s.contexts[name]; !exists {
		return
	}
	delete(s.contexts, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Context 按名称查询上下文，不存在时返回nil
func (s *DialogueState) Context(name string) *TTLContext {
	return s.contexts[name]
}

// HasContext 判断上下文是否存在
func (s *DialogueState) HasContext(name string) bool {
	_, exists := s.contexts[name]
	return exists
}

// Contexts 按插入顺序返回所有上下文
func (s *DialogueState) Contexts() []*TTLContext {
	res := make([]*TTLContext, 0, len(s.order))
	for _, name := range s.order {
		res = append(res, s.contexts[name])
	}
	return res
}

// ContextNames 按插入顺序返回所有上下文名称
func (s *DialogueState) ContextNames() []string {
	res := make([]string, len(s.order))
	copy(res, s.order)
	return res
}

// SetSlot 设置槽位值，值也可以是一组值
func (s *DialogueState) SetSlot(slot string, value any) {
	s.slots[slot] = value
}

// ClearSlot 移除槽位
func (s *DialogueState) ClearSlot(slot string) {
	delete(s.slots, slot)
}

// Slot 查询槽位值，不存在时返回nil
func (s *DialogueState) Slot(slot string) any {
	return s.slots[slot]
}

// Slots 返回所有槽位
func (s *DialogueState) Slots() map[string]any {
	return s.slots
}

// Live 消耗一个用户回合：所有上下文生命周期减一，清除已过期的上下文
func (s *DialogueState) Live() {
	for _, c := range s.contexts {
		c.Live()
	}
	kept := s.order[:0]
	for _, name := range s.order {
		if s.contexts[name].IsDead() {
			delete(s.contexts, name)
			continue
		}
		kept = append(kept, name)
	}
	s.order = kept
}

// Clone 创建快照：上下文深拷贝，槽位值共享
func (s *DialogueState) Clone() *DialogueState {
	cp := &DialogueState{
		contexts: make(map[string]*TTLContext, len(s.contexts)),
		order:    make([]string, len(s.order)),
		slots:    make(map[string]any, len(s.slots)),
	}
	copy(cp.order, s.order)
	for name, c := range s.contexts {
		cp.contexts[name] = c.clone()
	}
	for k, v := range s.slots {
		cp.slots[k] = v
	}
	return cp
}

// Snapshot 导出用于记录/传输的状态表示
func (s *DialogueState) Snapshot() map[string]any {
	contexts := make([]map[string]any, 0, len(s.order))
	for _, name := range s.order {
		c := s.contexts[name]
		contexts = append(contexts, map[string]any{
			"name":      c.Name,
			"remaining": c.Remaining,
			"lived":     c.Lived,
		})
	}
	slots := make([]map[string]any, 0, len(s.slots))
	for k, v := range s.slots {
		slots = append(slots, map[string]any{
			"slot":  k,
			"value": fmt.Sprintf("%v", v),
		})
	}
	return map[string]any{
		"contexts": contexts,
		"slots":    slots,
	}
}

func (s *DialogueState) String() string {
	return fmt.Sprintf("(DialogueState: contexts=%v, slots=%v)", s.Contexts(), s.slots)
}
