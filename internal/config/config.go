package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config 应用配置
type Config struct {
	// 服务配置
	ServiceName string
	Host        string // 服务监听地址
	Port        int
	Debug       bool
	GinMode     string // Gin运行模式
	StoragePath string // 机器人数据根目录

	// 机器人配置
	BotID          string
	BotLanguage    string
	RetrainOnStart bool // 启动时重新训练所有模型
	MaxVerifyNr    int  // 消歧候选上限

	// NLU配置
	DefaultNLU    string // 默认NLU流水线: senttran, rasa
	RasaServerURL string // 外部Rasa服务地址，rasa流水线启用时必填

	// 向量化服务配置，留空时使用本地哈希向量化
	EmbeddingAPIURL    string
	EmbeddingAPIKey    string
	EmbeddingModel     string
	EmbeddingDimension int

	// HTTP客户端超时
	HTTPTimeout time.Duration
}

// Load 从环境变量加载配置
func Load() *Config {
	// 尝试加载.env文件，优先尝试config目录，然后兼容工作目录
	envPaths := []string{
		"config/.env",
		".env",
	}

	loaded := false
	for _, path := range envPaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				log.Printf("成功加载.env文件: %s", path)
				loaded = true
				break
			}
		}
	}

	if !loaded {
		log.Printf("警告: 未找到.env文件，尝试使用系统环境变量")
	}

	config := &Config{
		// 服务配置默认值
		ServiceName: getEnv("SERVICE_NAME", "dialogue-keeper"),
		Host:        getEnv("HOST", "0.0.0.0"),
		Port:        getEnvAsInt("PORT", 8088),
		Debug:       getEnvAsBool("DEBUG", false),
		GinMode:     getEnv("GIN_MODE", "release"),
		StoragePath: getEnv("STORAGE_PATH", getStoragePathDefault()),

		// 机器人配置
		BotID:          getEnv("BOT_ID", "example-bot"),
		BotLanguage:    getEnv("BOT_LANGUAGE", "en"),
		RetrainOnStart: getEnvAsBool("RETRAIN_ON_START", false),
		MaxVerifyNr:    getEnvAsInt("MAX_VERIFY_NR", 15),

		// NLU配置
		DefaultNLU:    getEnv("DEFAULT_NLU", "senttran"),
		RasaServerURL: getEnv("RASA_SERVER_URL", ""),

		// 向量化服务配置
		EmbeddingAPIURL:    getEnv("EMBEDDING_API_URL", ""),
		EmbeddingAPIKey:    getEnv("EMBEDDING_API_KEY", ""),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-v3"),
		EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 512),

		HTTPTimeout: getEnvAsDuration("HTTP_TIMEOUT", 10*time.Second),
	}

	// 确保存储路径存在
	if err := ensureDir(config.StoragePath); err != nil {
		log.Printf("警告: 创建存储目录失败: %v", err)
	}

	return config
}

// String 返回配置的字符串表示
func (c *Config) String() string {
	return fmt.Sprintf(
		"服务名称: %s, 端口: %d, 调试模式: %v, 存储路径: %s, 机器人: %s(%s), "+
			"默认NLU: %s, Rasa: %s, 嵌入API: %s",
		c.ServiceName, c.Port, c.Debug, c.StoragePath, c.BotID, c.BotLanguage,
		c.DefaultNLU, maskString(c.RasaServerURL), maskString(c.EmbeddingAPIURL),
	)
}

// 从环境变量获取字符串值
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// 从环境变量获取整数值
func getEnvAsInt(key string, defaultValue int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return defaultValue
}

// 从环境变量获取布尔值
func getEnvAsBool(key string, defaultValue bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return defaultValue
}

// 从环境变量获取时间值
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return defaultValue
}

// 确保目录存在
func ensureDir(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, 0755)
	}
	return nil
}

// 掩码字符串，用于日志输出安全
func maskString(input string) string {
	if input == "" {
		return "(未配置)"
	}
	if len(input) <= 8 {
		return "***"
	}
	return input[:4] + "..." + input[len(input)-4:]
}

// 获取存储路径的默认值（使用操作系统标准应用数据目录）
func getStoragePathDefault() string {
	appName := "dialogue-keeper"

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Printf("警告: 无法获取用户主目录: %v", err)
		return "./data"
	}

	var dataPath string

	switch runtime.GOOS {
	case "darwin":
		dataPath = filepath.Join(homeDir, "Library", "Application Support", appName)

	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			dataPath = filepath.Join(appData, appName)
		} else {
			dataPath = filepath.Join(homeDir, "AppData", "Roaming", appName)
		}

	default: // Linux和其他UNIX系统
		dataPath = filepath.Join(homeDir, ".local", "share", appName)
		xdgDataHome := os.Getenv("XDG_DATA_HOME")
		if xdgDataHome != "" {
			dataPath = filepath.Join(xdgDataHome, appName)
		}
	}

	log.Printf("使用系统标准应用数据目录: %s", dataPath)

	if err := os.MkdirAll(dataPath, 0755); err != nil {
		log.Printf("警告: 创建数据目录失败: %v", err)

		fallbackPath := filepath.Join(homeDir, "."+appName)
		log.Printf("尝试使用回退目录: %s", fallbackPath)

		if err := os.MkdirAll(fallbackPath, 0755); err != nil {
			log.Printf("警告: 创建回退目录也失败: %v", err)
			return "./data"
		}
		return fallbackPath
	}

	return dataPath
}
