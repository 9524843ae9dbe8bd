package models

import (
	"fmt"
	"strings"
)

// UserInput 用户输入，封闭变体集合: NLInput / SelectionInput / KeyedInput
type UserInput interface {
	// Ignore 返回true时机器人不处理也不响应该输入
	Ignore() bool
	// IsValid 返回false时机器人以"输入无效"响应
	IsValid() bool

	isUserInput()
}

// 自然语言输入的长度限制
const (
	NLInputMinLength = 0
	NLInputMaxLength = 400
)

// NLInput 自然语言输入
type NLInput struct {
	Text string `json:"text"`
}

// NewNLInput 创建自然语言输入，文本两端空白会被去除
func NewNLInput(text string) NLInput {
	return NLInput{Text: strings.TrimSpace(text)}
}

func (in NLInput) Ignore() bool {
	return len(in.Text) <= 0
}

func (in NLInput) IsValid() bool {
	return NLInputMinLength <= len(in.Text) && len(in.Text) <= NLInputMaxLength
}

func (in NLInput) isUserInput() {}

func (in NLInput) String() string {
	return fmt.Sprintf("(NLInput: %q)", in.Text)
}

// SelectionInput 用户点选某个选项产生的输入，由选项的key和下标唯一确定
type SelectionInput struct {
	SelectionKey string `json:"selection_key"`
	SelectionIdx int    `json:"selection_idx"`
}

func (in SelectionInput) Ignore() bool  { return false }
func (in SelectionInput) IsValid() bool { return true }
func (in SelectionInput) isUserInput()  {}

func (in SelectionInput) String() string {
	return fmt.Sprintf("(SelectionInput: %q:%d)", in.SelectionKey, in.SelectionIdx)
}

// KeyedInput 带key和任意参数的结构化输入
type KeyedInput struct {
	Key  string            `json:"key"`
	Args map[string]string `json:"args,omitempty"`
}

func (in KeyedInput) Ignore() bool  { return false }
func (in KeyedInput) IsValid() bool { return true }
func (in KeyedInput) isUserInput()  {}

func (in KeyedInput) String() string {
	return fmt.Sprintf("(KeyedInput: %q, %v)", in.Key, in.Args)
}
