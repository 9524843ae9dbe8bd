package models

import (
	"fmt"
	"regexp"
	"strings"
)

// slotPlaceholderRegex 话术中的槽位占位符，形如 ((slot_name))
var slotPlaceholderRegex = regexp.MustCompile(`\(\((.+?)\)\)`)

// UtterPhrase 机器人回复话术
// 文本中可以包含 ((slot)) 形式的槽位占位符，渲染时用对话状态中的槽位值填充
type UtterPhrase struct {
	Text string `json:"text"`
}

// NewUtterPhrase 创建回复话术
func NewUtterPhrase(text string) *UtterPhrase {
	return &UtterPhrase{Text: text}
}

// Render 用对话状态中的槽位值填充占位符
// 缺失槽位的占位符保持原样输出
func (u *UtterPhrase) Render(state *DialogueState) string {
	return slotPlaceholderRegex.ReplaceAllStringFunc(u.Text, func(placeholder string) string {
		slot := slotPlaceholderRegex.FindStringSubmatch(placeholder)[1]
		value := state.Slot(slot)
		if value == nil {
			return placeholder
		}
		return RenderSlotValue(value)
	})
}

// RenderMissing 统计占位符中缺失槽位的数量，用于挑选信息最完整的话术
func (u *UtterPhrase) RenderMissing(state *DialogueState) int {
	missing := 0
	for _, match := range slotPlaceholderRegex.FindAllStringSubmatch(u.Text, -1) {
		if state.Slot(match[1]) == nil {
			missing++
		}
	}
	return missing
}

func (u *UtterPhrase) String() string {
	return fmt.Sprintf("(UtterPhrase: %q)", u.Text)
}

// RenderSlotValue 把槽位值渲染为自然语言文本
// 抽取实体渲染为其原文，列表值以逗号加"and"枚举
func RenderSlotValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case ExtractedEntity:
		return v.Text
	case *ExtractedEntity:
		return v.Text
	case []ExtractedEntity:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = e.Text
		}
		return enumerate(parts)
	case []*ExtractedEntity:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = e.Text
		}
		return enumerate(parts)
	case []string:
		return enumerate(v)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = RenderSlotValue(item)
		}
		return enumerate(parts)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func enumerate(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
	}
}
