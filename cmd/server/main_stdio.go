//go:build stdio

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dialoguekeeper/service/internal/api"
	"github.com/dialoguekeeper/service/internal/config"
	"github.com/dialoguekeeper/service/internal/dialogue"
	"github.com/dialoguekeeper/service/internal/models"
)

func main() {
	log.Println("启动 Dialogue-Keeper STDIO MCP 服务器...")

	cfg := config.Load()

	// 日志写入文件和标准错误，避免干扰stdout上的MCP协议通信
	logDir := filepath.Join(cfg.StoragePath, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Printf("警告: 无法创建日志目录: %v", err)
	}
	logFilePath := filepath.Join(logDir, "dialogue-keeper-debug.log")
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Printf("警告: 无法打开日志文件: %v，日志将仅输出到标准错误", err)
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(io.MultiWriter(os.Stderr, logFile))
		log.Printf("日志将同时输出到文件(%s)和标准错误输出", logFilePath)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	setupLogging(cfg)

	bot, err := buildBot(cfg)
	if err != nil {
		log.Fatalf("启动机器人失败: %v", err)
	}
	sessions := api.NewSessionManager(bot)

	serverOptions := []server.ServerOption{}
	if cfg.Debug {
		serverOptions = append(serverOptions, server.WithLogging())
	}

	s := server.NewMCPServer(
		cfg.ServiceName,
		"1.0.0",
		serverOptions...,
	)

	registerMCPTools(s, bot, sessions)

	log.Println("Dialogue-Keeper STDIO MCP 服务器已启动，等待连接...")
	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("MCP服务器启动失败: %v", err)
	}
}

// registerMCPTools 注册所有MCP工具到服务器
func registerMCPTools(s *server.MCPServer, bot *dialogue.Bot, sessions *api.SessionManager) {
	// 工具：创建会话
	createSessionTool := mcp.NewTool("create_session",
		mcp.WithDescription("创建一个新的机器人会话，返回会话ID"),
	)
	s.AddTool(createSessionTool, createSessionHandler(sessions))

	// 工具：回应输入
	respondTool := mcp.NewTool("respond",
		mcp.WithDescription("向机器人发送一次用户输入，返回本回合的全部机器人响应"),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("会话ID，由create_session返回"),
		),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("输入类型: nl(自然语言) / selection(选项点选) / keyed(结构化)"),
		),
		mcp.WithString("text",
			mcp.Description("自然语言文本，type为nl时必填"),
		),
		mcp.WithString("selectionKey",
			mcp.Description("选项key，type为selection时必填"),
		),
		mcp.WithNumber("selectionIdx",
			mcp.Description("选项下标，type为selection时必填"),
		),
		mcp.WithString("key",
			mcp.Description("结构化输入key，type为keyed时必填"),
		),
	)
	s.AddTool(respondTool, respondHandler(bot, sessions))

	// 工具：重置会话
	resetSessionTool := mcp.NewTool("reset_session",
		mcp.WithDescription("把会话的对话重置回起点"),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("会话ID"),
		),
	)
	s.AddTool(resetSessionTool, resetSessionHandler(sessions))
}

func createSessionHandler(sessions *api.SessionManager) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, session := sessions.Create()
		result := map[string]any{
			"session_id":     id,
			"dialogue_state": session.State().Snapshot(),
		}
		payload, err := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultText(fmt.Sprintf("错误: 序列化结果失败: %v", err)), nil
		}
		log.Printf("创建会话: %s", id)
		return mcp.NewToolResultText(string(payload)), nil
	}
}

func respondHandler(bot *dialogue.Bot, sessions *api.SessionManager) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, ok := request.Params.Arguments["sessionId"].(string)
		if !ok || sessionID == "" {
			return mcp.NewToolResultText("错误: sessionId必须是非空字符串"), nil
		}

		input, errMsg := parseToolInput(request.Params.Arguments)
		if errMsg != "" {
			return mcp.NewToolResultText(errMsg), nil
		}

		dispatcher := &api.ServerDispatcher{}
		var snapshot map[string]any
		err := sessions.WithSession(sessionID, func(session *dialogue.BotSession) error {
			session.SetDispatcher(dispatcher)
			if err := bot.Respond(session, input); err != nil {
				return err
			}
			snapshot = session.State().Snapshot()
			return nil
		})
		if err != nil {
			return mcp.NewToolResultText(fmt.Sprintf("错误: 处理输入失败: %v", err)), nil
		}

		result := map[string]any{
			"responses":      dispatcher.Responses,
			"dialogue_state": snapshot,
		}
		payload, err := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultText(fmt.Sprintf("错误: 序列化结果失败: %v", err)), nil
		}
		return mcp.NewToolResultText(string(payload)), nil
	}
}

func resetSessionHandler(sessions *api.SessionManager) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, ok := request.Params.Arguments["sessionId"].(string)
		if !ok || sessionID == "" {
			return mcp.NewToolResultText("错误: sessionId必须是非空字符串"), nil
		}
		err := sessions.WithSession(sessionID, func(session *dialogue.BotSession) error {
			session.ResetDialogue()
			return nil
		})
		if err != nil {
			return mcp.NewToolResultText(fmt.Sprintf("错误: %v", err)), nil
		}
		return mcp.NewToolResultText("会话已重置"), nil
	}
}

// parseToolInput 把MCP工具参数解析为用户输入，失败时返回错误文案
func parseToolInput(args map[string]any) (models.UserInput, string) {
	inputType, _ := args["type"].(string)
	switch inputType {
	case "nl":
		text, _ := args["text"].(string)
		return models.NewNLInput(text), ""
	case "selection":
		selectionKey, _ := args["selectionKey"].(string)
		selectionIdx, ok := args["selectionIdx"].(float64)
		if selectionKey == "" || !ok {
			return nil, "错误: 选项输入需要selectionKey和selectionIdx"
		}
		return models.SelectionInput{SelectionKey: selectionKey, SelectionIdx: int(selectionIdx)}, ""
	case "keyed":
		key, _ := args["key"].(string)
		if key == "" {
			return nil, "错误: 结构化输入需要key"
		}
		return models.KeyedInput{Key: key}, ""
	default:
		return nil, fmt.Sprintf("错误: 未知的输入类型: %q", inputType)
	}
}
