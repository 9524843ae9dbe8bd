package models

import "fmt"

// Entity 自然语言中出现的概念类别，例如实体"country"的取值可以是"DE"、"CH"、"FR"
// 实体通过ValueRefs引用它的可选值
type Entity struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	ValueRefs     []string `json:"value_refs,omitempty"`
	DefaultValues []string `json:"default_values,omitempty"`
	Questions     []string `json:"questions,omitempty"` // 向用户追问实体值时可用的提问模板
}

// NewEntity 创建实体，name为空时使用id
func NewEntity(id string, valueRefs ...string) *Entity {
	return &Entity{ID: id, Name: id, ValueRefs: valueRefs}
}

func (e *Entity) String() string {
	return fmt.Sprintf("(Entity: %q, %v)", e.ID, e.ValueRefs)
}

// EntityCatalog 实体与值的查询接口，由注册中心实现
// 未注册的ID查询必须返回错误而不是空对象
type EntityCatalog interface {
	Entity(entityID string) (*Entity, error)
	Value(valueID string) (*Value, error)
}
