package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию сервиса генерации диалогов.
type Config struct {
	Env        string `envconfig:"ENV" default:"development"`
	ServerPort string `envconfig:"SERVER_PORT" default:"8000"`

	// Логирование
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"console"`

	// CORS (Streamlit-дашборд живет на 8501)
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost,http://localhost:8501"`

	// Настройки AI-клиента. Тип "openai" покрывает любой
	// OpenAI-совместимый сервер (LM Studio), тип "ollama" - нативный API.
	AIClientType string        `envconfig:"AI_CLIENT_TYPE" default:"openai"`
	AIBaseURL    string        `envconfig:"AI_BASE_URL" default:"http://localhost:1234/v1"`
	AIModel      string        `envconfig:"AI_MODEL" default:"eeve-korean-instruct-10.8b-v1.0"`
	AIAPIKey     string        `envconfig:"AI_API_KEY" default:"lm-studio"`
	AITimeout    time.Duration `envconfig:"AI_TIMEOUT" default:"900s"`
	AIStream     bool          `envconfig:"AI_STREAM" default:"true"`

	// Параметры генерации
	AITemperature        float64 `envconfig:"AI_TEMPERATURE" default:"0.7"`
	AITopP               float64 `envconfig:"AI_TOP_P" default:"0.9"`
	AITokensPerUtterance int     `envconfig:"AI_TOKENS_PER_UTTERANCE" default:"30"`

	// Профиль словаря эмоций ("five" или "six")
	EmotionProfile string `envconfig:"EMOTION_PROFILE" default:"six"`

	// Локальное сохранение артефактов
	OutputDir string `envconfig:"OUTPUT_DIR" default:"generated_dialogues"`

	// Выгрузка в объектное хранилище. Креденшелы берутся из стандартной
	// цепочки AWS SDK (переменные окружения, профиль и т.д.).
	S3Enabled   bool   `envconfig:"S3_ENABLED" default:"false"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:""`
	S3KeyPrefix string `envconfig:"S3_KEY_PREFIX" default:"project"`
	S3Region    string `envconfig:"AWS_REGION" default:"ap-northeast-2"`
}

// LoadConfig загружает конфигурацию из переменных окружения.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	switch strings.ToLower(cfg.AIClientType) {
	case "openai", "ollama":
	default:
		return nil, fmt.Errorf("неизвестный тип AI клиента: %q", cfg.AIClientType)
	}

	if cfg.S3Enabled && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_ENABLED=true, но S3_BUCKET не задан")
	}

	// Логируем загруженную конфигурацию (кроме ключей)
	log.Printf("Конфигурация загружена:")
	log.Printf("  Env: %s, Port: %s", cfg.Env, cfg.ServerPort)
	log.Printf("  AI Client: %s, Base URL: %s, Model: %s", cfg.AIClientType, cfg.AIBaseURL, cfg.AIModel)
	log.Printf("  AI Timeout: %v, Stream: %v", cfg.AITimeout, cfg.AIStream)
	log.Printf("  Emotion Profile: %s", cfg.EmotionProfile)
	log.Printf("  Output Dir: %s", cfg.OutputDir)
	if cfg.S3Enabled {
		log.Printf("  S3: bucket=%s prefix=%s region=%s", cfg.S3Bucket, cfg.S3KeyPrefix, cfg.S3Region)
	}
	if cfg.AIAPIKey != "" {
		log.Println("  AI API Key: [ЗАГРУЖЕН]")
	}

	return &cfg, nil
}

// GetAllowedOrigins возвращает список разрешенных CORS-источников.
func (c *Config) GetAllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
