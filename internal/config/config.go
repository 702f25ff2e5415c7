package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zhouzirui/research-desk/backend/internal/model/chat"
)

const (
	ProviderGroq = "groq"
	ProviderArk  = "ark"

	defaultGroqBaseURL = "https://api.groq.com/openai/v1"
	defaultGroqModel   = "gemma2-9b-it"
	defaultArkBaseURL  = "https://ark.cn-beijing.volces.com/api/v3"
	defaultArkRegion   = "cn-beijing"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	LLM      LLMConfig
	Tools    ToolsConfig
	Session  SessionConfig
	LogLevel string
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	llm, err := loadLLMConfig()
	if err != nil {
		return nil, err
	}

	tools, err := loadToolsConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		LLM:      llm,
		Tools:    tools,
		Session:  session,
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// LLMConfig 描述推理调用相关配置。凭证不在此处：它由用户每轮提供。
type LLMConfig struct {
	Provider          string
	Model             string
	BaseURL           string
	Region            string
	MaxTokens         *int
	DefaultCreativity float64
	MaxStep           int
}

func loadLLMConfig() (LLMConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ProviderGroq))

	var baseURL, model string
	switch provider {
	case ProviderGroq:
		baseURL = getEnvOrDefault("LLM_BASE_URL", defaultGroqBaseURL)
		model = getEnvOrDefault("LLM_MODEL", defaultGroqModel)
	case ProviderArk:
		baseURL = getEnvOrDefault("LLM_BASE_URL", defaultArkBaseURL)
		model = strings.TrimSpace(os.Getenv("LLM_MODEL"))
		if model == "" {
			return LLMConfig{}, fmt.Errorf("LLM_MODEL is required when LLM_PROVIDER=%s", ProviderArk)
		}
	default:
		return LLMConfig{}, fmt.Errorf("invalid LLM_PROVIDER value: %q", provider)
	}

	maxTokens, err := parseOptionalIntEnv("LLM_MAX_TOKENS")
	if err != nil {
		return LLMConfig{}, err
	}

	creativity := chat.DefaultCreativity
	if override, err := parseOptionalFloatEnv("DEFAULT_CREATIVITY"); err != nil {
		return LLMConfig{}, err
	} else if override != nil {
		if err := (chat.Settings{Creativity: *override}).Validate(); err != nil {
			return LLMConfig{}, fmt.Errorf("invalid DEFAULT_CREATIVITY value: %w", err)
		}
		creativity = *override
	}

	maxStep := 12
	if override, err := parseOptionalIntEnv("AGENT_MAX_STEP"); err != nil {
		return LLMConfig{}, err
	} else if override != nil {
		if *override < 1 {
			maxStep = 1
		} else {
			maxStep = *override
		}
	}

	return LLMConfig{
		Provider:          provider,
		Model:             model,
		BaseURL:           baseURL,
		Region:            getEnvOrDefault("ARK_REGION", defaultArkRegion),
		MaxTokens:         maxTokens,
		DefaultCreativity: creativity,
		MaxStep:           maxStep,
	}, nil
}

// ToolsConfig 描述三个检索工具的配置。
type ToolsConfig struct {
	HTTPTimeout      time.Duration
	UserAgent        string
	SearchMaxResults int
	ArxivTopK        int
	WikiTopK         int
	WikiLang         string
	DocCharsMax      int
}

func loadToolsConfig() (ToolsConfig, error) {
	timeout, err := parseDurationEnv("TOOL_HTTP_TIMEOUT", 20*time.Second)
	if err != nil {
		return ToolsConfig{}, err
	}

	searchMax, err := parsePositiveIntEnv("SEARCH_MAX_RESULTS", 5)
	if err != nil {
		return ToolsConfig{}, err
	}
	arxivTopK, err := parsePositiveIntEnv("ARXIV_TOP_K", 1)
	if err != nil {
		return ToolsConfig{}, err
	}
	wikiTopK, err := parsePositiveIntEnv("WIKI_TOP_K", 1)
	if err != nil {
		return ToolsConfig{}, err
	}
	docChars, err := parsePositiveIntEnv("DOC_CHARS_MAX", 200)
	if err != nil {
		return ToolsConfig{}, err
	}

	return ToolsConfig{
		HTTPTimeout:      timeout,
		UserAgent:        getEnvOrDefault("TOOL_USER_AGENT", "Mozilla/5.0 (compatible; research-desk/1.0)"),
		SearchMaxResults: searchMax,
		ArxivTopK:        arxivTopK,
		WikiTopK:         wikiTopK,
		WikiLang:         getEnvOrDefault("WIKI_LANG", "en"),
		DocCharsMax:      docChars,
	}, nil
}

// SessionConfig 描述会话生命周期配置。
type SessionConfig struct {
	IdleTimeout time.Duration
}

func loadSessionConfig() (SessionConfig, error) {
	idle, err := parseDurationEnv("SESSION_IDLE_TIMEOUT", 2*time.Hour)
	if err != nil {
		return SessionConfig{}, err
	}
	return SessionConfig{IdleTimeout: idle}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parsePositiveIntEnv(key string, defaultValue int) (int, error) {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	if *val < 1 {
		return 0, fmt.Errorf("invalid %s value %d: must be positive", key, *val)
	}
	return *val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}
