package models

import (
	"github.com/sirupsen/logrus"
)

// Dispatcher 把机器人的响应分发到某个输出端（websocket、测试缓冲、日志等）
type Dispatcher interface {
	// BeforeAction 动作执行前的钩子
	BeforeAction(session ActionSession, action Action)
	// AfterAction 动作执行后的钩子
	AfterAction(session ActionSession, action Action)
	// Utter 发送一条文本回复
	Utter(session ActionSession, text string) error
	// Choice 发送一组可点选的选项
	Choice(session ActionSession, choices []Choice, text string) error
	// Media 发送多媒体内容
	Media(session ActionSession, media Media) error
	// Custom 发送自定义响应
	Custom(session ActionSession, name string, args map[string]any) error
}

// NopDispatcher 所有方法均为空实现，供具体分发器嵌入后按需覆盖
type NopDispatcher struct{}

func (d *NopDispatcher) BeforeAction(session ActionSession, action Action) {}
func (d *NopDispatcher) AfterAction(session ActionSession, action Action)  {}

func (d *NopDispatcher) Utter(session ActionSession, text string) error { return nil }

func (d *NopDispatcher) Choice(session ActionSession, choices []Choice, text string) error {
	return nil
}

func (d *NopDispatcher) Media(session ActionSession, media Media) error { return nil }

func (d *NopDispatcher) Custom(session ActionSession, name string, args map[string]any) error {
	return nil
}

// AccumulateDispatcher 把所有响应累积到内存，供回合结束后统一读取
type AccumulateDispatcher struct {
	NopDispatcher
	Responses []map[string]any
}

// Reset 清空已累积的响应
func (d *AccumulateDispatcher) Reset() {
	d.Responses = nil
}

func (d *AccumulateDispatcher) Utter(session ActionSession, text string) error {
	d.Responses = append(d.Responses, map[string]any{
		"type": "utter",
		"text": text,
	})
	return nil
}

func (d *AccumulateDispatcher) Choice(session ActionSession, choices []Choice, text string) error {
	items := make([]map[string]any, len(choices))
	for i, c := range choices {
		items[i] = map[string]any{
			"key":   c.Key,
			"idx":   c.Idx,
			"text":  c.Text,
			"score": c.Score,
		}
	}
	d.Responses = append(d.Responses, map[string]any{
		"type":    "choice",
		"text":    text,
		"choices": items,
	})
	return nil
}

func (d *AccumulateDispatcher) Media(session ActionSession, media Media) error {
	d.Responses = append(d.Responses, map[string]any{
		"type":        "media",
		"url":         media.URL,
		"media_type":  media.MediaType,
		"title":       media.Title,
		"description": media.Description,
	})
	return nil
}

func (d *AccumulateDispatcher) Custom(session ActionSession, name string, args map[string]any) error {
	d.Responses = append(d.Responses, map[string]any{
		"type": "custom",
		"name": name,
		"args": args,
	})
	return nil
}

// LoggingDispatcher 把所有响应和动作写入日志，主要用于调试
type LoggingDispatcher struct {
	NopDispatcher
}

func (d *LoggingDispatcher) BeforeAction(session ActionSession, action Action) {
	logrus.WithField("action", action.Name()).Debug("[分发器] 开始执行动作")
}

func (d *LoggingDispatcher) AfterAction(session ActionSession, action Action) {
	logrus.WithField("action", action.Name()).Debug("[分发器] 动作执行完成")
}

func (d *LoggingDispatcher) Utter(session ActionSession, text string) error {
	logrus.WithField("text", text).Info("[分发器] 文本回复")
	return nil
}

func (d *LoggingDispatcher) Choice(session ActionSession, choices []Choice, text string) error {
	logrus.WithFields(logrus.Fields{
		"text":    text,
		"choices": len(choices),
	}).Info("[分发器] 选项回复")
	return nil
}

func (d *LoggingDispatcher) Media(session ActionSession, media Media) error {
	logrus.WithField("url", media.URL).Info("[分发器] 多媒体回复")
	return nil
}

func (d *LoggingDispatcher) Custom(session ActionSession, name string, args map[string]any) error {
	logrus.WithField("name", name).Info("[分发器] 自定义回复")
	return nil
}

// MultiDispatcher 把响应同时分发到多个分发器
type MultiDispatcher struct {
	Dispatchers []Dispatcher
}

// NewMultiDispatcher 创建组合分发器
func NewMultiDispatcher(dispatchers ...Dispatcher) *MultiDispatcher {
	return &MultiDispatcher{Dispatchers: dispatchers}
}

func (d *MultiDispatcher) BeforeAction(session ActionSession, action Action) {
	for _, dispatcher := range d.Dispatchers {
		dispatcher.BeforeAction(session, action)
	}
}

func (d *MultiDispatcher) AfterAction(session ActionSession, action Action) {
	for _, dispatcher := range d.Dispatchers {
		dispatcher.AfterAction(session, action)
	}
}

func (d *MultiDispatcher) Utter(session ActionSession, text string) error {
	for _, dispatcher := range d.Dispatchers {
		if err := dispatcher.Utter(session, text); err != nil {
			return err
		}
	}
	return nil
}

func (d *MultiDispatcher) Choice(session ActionSession, choices []Choice, text string) error {
	for _, dispatcher := range d.Dispatchers {
		if err := dispatcher.Choice(session, choices, text); err != nil {
			return err
		}
	}
	return nil
}

func (d *MultiDispatcher) Media(session ActionSession, media Media) error {
	for _, dispatcher := range d.Dispatchers {
		if err := dispatcher.Media(session, media); err != nil {
			return err
		}
	}
	return nil
}

func (d *MultiDispatcher) Custom(session ActionSession, name string, args map[string]any) error {
	for _, dispatcher := range d.Dispatchers {
		if err := dispatcher.Custom(session, name, args); err != nil {
			return err
		}
	}
	return nil
}
