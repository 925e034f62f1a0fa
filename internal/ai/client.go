package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dialogue-server/internal/config"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openaigo "github.com/sashabaranov/go-openai"
)

var log = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

// ErrGenerationFailed - ошибка при генерации текста AI.
var ErrGenerationFailed = errors.New("ошибка генерации текста AI")

// Params - параметры генерации. Указатели, чтобы отличить 0/0.0 от отсутствия.
type Params struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// Usage содержит информацию об использовании токенов.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogue_server_ai_requests_total",
			Help: "Total number of requests to the AI API.",
		},
		[]string{"model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dialogue_server_ai_request_duration_seconds",
			Help:    "Histogram of AI API request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dialogue_server_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"model"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dialogue_server_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20),
		},
		[]string{"model"},
	)
)

// Client - интерфейс для взаимодействия с AI API.
type Client interface {
	// GenerateText генерирует текст одним блокирующим вызовом.
	GenerateText(ctx context.Context, systemPrompt, userInput string, params Params) (string, Usage, error)
	// GenerateTextStream генерирует текст в потоковом режиме и вызывает
	// chunkHandler для каждого полученного фрагмента.
	GenerateTextStream(ctx context.Context, systemPrompt, userInput string, params Params, chunkHandler func(string) error) (Usage, error)
}

// NewClient создает клиента AI в зависимости от конфигурации.
func NewClient(cfg *config.Config) (Client, error) {
	switch strings.ToLower(cfg.AIClientType) {
	case "openai":
		openaiConfig := openaigo.DefaultConfig(cfg.AIAPIKey)
		openaiConfig.BaseURL = cfg.AIBaseURL
		openaiConfig.HTTPClient = &http.Client{Timeout: cfg.AITimeout}
		client := openaigo.NewClientWithConfig(openaiConfig)
		log.Info().Str("baseURL", cfg.AIBaseURL).Str("model", cfg.AIModel).Dur("timeout", cfg.AITimeout).Msg("OpenAI-совместимый клиент создан")
		return &openAIClient{client: client, model: cfg.AIModel, timeout: cfg.AITimeout}, nil
	case "ollama":
		return newOllamaClient(cfg)
	default:
		return nil, fmt.Errorf("неизвестный тип AI клиента: %q", cfg.AIClientType)
	}
}

func float32Val(f64 *float64) float32 {
	if f64 == nil {
		return 1.0
	}
	return float32(*f64)
}

func intVal(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}

// --- OpenAI-совместимая реализация (LM Studio, OpenRouter и т.п.) ---

type openAIClient struct {
	client  *openaigo.Client
	model   string
	timeout time.Duration
}

func (c *openAIClient) messages(systemPrompt, userInput string) []openaigo.ChatCompletionMessage {
	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{
			Role:    openaigo.ChatMessageRoleUser,
			Content: userInput,
		})
	}
	return messages
}

// GenerateText выполняет один блокирующий запрос к API.
func (c *openAIClient) GenerateText(ctx context.Context, systemPrompt, userInput string, params Params) (string, Usage, error) {
	usage := Usage{}
	if strings.TrimSpace(systemPrompt) == "" && strings.TrimSpace(userInput) == "" {
		return "", usage, fmt.Errorf("%w: пустой промт", ErrGenerationFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()
	log.Debug().Str("model", c.model).Int("promptBytes", len(systemPrompt)+len(userInput)).Msg("Отправка запроса к AI")

	resp, err := c.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model:       c.model,
		Messages:    c.messages(systemPrompt, userInput),
		Temperature: float32Val(params.Temperature),
		MaxTokens:   intVal(params.MaxTokens),
		TopP:        float32Val(params.TopP),
	})
	duration := time.Since(startTime)

	if err != nil {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			log.Error().Err(err).Dur("elapsed", duration).Msg("Таймаут запроса к AI API")
			return "", usage, fmt.Errorf("%w: таймаут после %v: %v", ErrGenerationFailed, c.timeout, err)
		}
		log.Error().Err(err).Dur("elapsed", duration).Msg("Ошибка от AI API")
		return "", usage, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
		return "", usage, fmt.Errorf("%w: получен пустой ответ", ErrGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())

	generatedText := resp.Choices[0].Message.Content
	log.Info().Dur("elapsed", duration).Int("length", len(generatedText)).Msg("Ответ от AI API получен")

	if resp.Usage.TotalTokens > 0 {
		usage.PromptTokens = resp.Usage.PromptTokens
		usage.CompletionTokens = resp.Usage.CompletionTokens
		usage.TotalTokens = resp.Usage.TotalTokens
		aiPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usage.PromptTokens))
		aiCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usage.CompletionTokens))
	}
	return generatedText, usage, nil
}

// GenerateTextStream читает поток фрагментов ответа. Фреймы 'data: {...}'
// и терминальный '[DONE]' разбираются внутри SDK; битые фреймы пропускаются.
func (c *openAIClient) GenerateTextStream(ctx context.Context, systemPrompt, userInput string, params Params, chunkHandler func(string) error) (Usage, error) {
	usage := Usage{}
	if strings.TrimSpace(systemPrompt) == "" && strings.TrimSpace(userInput) == "" {
		return usage, fmt.Errorf("%w: пустой промт для стриминга", ErrGenerationFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stream, err := c.client.CreateChatCompletionStream(ctx, openaigo.ChatCompletionRequest{
		Model:       c.model,
		Messages:    c.messages(systemPrompt, userInput),
		Stream:      true,
		Temperature: float32Val(params.Temperature),
		MaxTokens:   intVal(params.MaxTokens),
		TopP:        float32Val(params.TopP),
	})
	if err != nil {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_stream_init"}).Inc()
		return usage, fmt.Errorf("%w: ошибка создания стрима: %v", ErrGenerationFailed, err)
	}
	defer stream.Close()

	startTime := time.Now()
	completionTokens := 0
	var finalUsage openaigo.Usage

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_stream_read"}).Inc()
			if errors.Is(err, context.DeadlineExceeded) {
				return usage, fmt.Errorf("%w: таймаут чтения стрима после %v", ErrGenerationFailed, c.timeout)
			}
			return usage, fmt.Errorf("%w: ошибка чтения стрима: %v", ErrGenerationFailed, err)
		}

		// Usage иногда приходит финальным фреймом
		if response.Usage != nil && response.Usage.TotalTokens > 0 {
			finalUsage = *response.Usage
		}

		if len(response.Choices) > 0 {
			chunk := response.Choices[0].Delta.Content
			if chunk == "" {
				continue
			}
			if tke, err := tiktoken.EncodingForModel(c.model); err == nil {
				completionTokens += len(tke.Encode(chunk, nil, nil))
			}
			if chunkHandler != nil {
				if err := chunkHandler(chunk); err != nil {
					// Контракт единый с ollama-реализацией: ошибка
					// обработчика прерывает стрим
					aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_chunk_handler"}).Inc()
					return usage, fmt.Errorf("%w: ошибка обработчика чанка: %v", ErrGenerationFailed, err)
				}
			}
		}
	}

	duration := time.Since(startTime)
	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success_stream"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())

	if finalUsage.TotalTokens > 0 {
		usage.PromptTokens = finalUsage.PromptTokens
		usage.CompletionTokens = finalUsage.CompletionTokens
		usage.TotalTokens = finalUsage.TotalTokens
	} else {
		// Финальный Usage пришел не от всех серверов - оцениваем токены сами
		if tke, err := tiktoken.EncodingForModel(c.model); err == nil {
			usage.PromptTokens = len(tke.Encode(systemPrompt, nil, nil)) + len(tke.Encode(userInput, nil, nil))
		}
		usage.CompletionTokens = completionTokens
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		log.Debug().Int("promptTokens", usage.PromptTokens).Int("completionTokens", usage.CompletionTokens).Msg("Usage оценен токенизатором (финальный блок не получен)")
	}
	aiPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usage.PromptTokens))
	aiCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usage.CompletionTokens))

	log.Info().Dur("elapsed", duration).Int("totalTokens", usage.TotalTokens).Msg("Чтение стрима завершено")
	return usage, nil
}

// --- Ollama реализация ---

type ollamaClient struct {
	client  *api.Client
	model   string
	timeout time.Duration
}

func newOllamaClient(cfg *config.Config) (Client, error) {
	// api.NewClient требует URL без суффикса /v1
	baseURL := strings.TrimSuffix(strings.TrimSuffix(cfg.AIBaseURL, "/v1"), "/")
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга Ollama Base URL %q: %w", baseURL, err)
	}

	client := api.NewClient(parsedURL, &http.Client{Timeout: cfg.AITimeout})
	log.Info().Str("baseURL", baseURL).Str("model", cfg.AIModel).Dur("timeout", cfg.AITimeout).Msg("Ollama клиент создан")

	return &ollamaClient{client: client, model: cfg.AIModel, timeout: cfg.AITimeout}, nil
}

func (c *ollamaClient) request(systemPrompt, userInput string, params Params, stream bool) *api.ChatRequest {
	messages := []api.Message{{Role: "system", Content: systemPrompt}}
	if userInput != "" {
		messages = append(messages, api.Message{Role: "user", Content: userInput})
	}
	return &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": params.Temperature,
			"top_p":       params.TopP,
			"num_predict": intVal(params.MaxTokens),
		},
	}
}

// GenerateText генерирует текст с использованием Ollama.
func (c *ollamaClient) GenerateText(ctx context.Context, systemPrompt, userInput string, params Params) (string, Usage, error) {
	usage := Usage{}
	if strings.TrimSpace(systemPrompt) == "" && strings.TrimSpace(userInput) == "" {
		return "", usage, fmt.Errorf("%w: пустой промт", ErrGenerationFailed)
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(requestCtx, c.request(systemPrompt, userInput, params, false), func(r api.ChatResponse) error {
		resp = r // при stream=false приходит один полный ответ
		return nil
	})
	duration := time.Since(startTime)

	if err != nil {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			log.Error().Err(err).Dur("timeout", c.timeout).Msg("Таймаут запроса к Ollama")
			return "", usage, fmt.Errorf("%w: таймаут после %v: %v", ErrGenerationFailed, c.timeout, err)
		}
		log.Error().Err(err).Dur("elapsed", duration).Msg("Ошибка от Ollama API")
		return "", usage, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if resp.Message.Content == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
		return "", usage, fmt.Errorf("%w: получен пустой ответ", ErrGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())

	usage.PromptTokens = resp.PromptEvalCount
	usage.CompletionTokens = resp.EvalCount
	usage.TotalTokens = resp.PromptEvalCount + resp.EvalCount
	if usage.TotalTokens > 0 {
		aiPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usage.PromptTokens))
		aiCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usage.CompletionTokens))
	}

	log.Info().Dur("elapsed", duration).Int("length", len(resp.Message.Content)).Msg("Ответ от Ollama получен")
	return resp.Message.Content, usage, nil
}

// GenerateTextStream генерирует текст с использованием Ollama в потоковом режиме.
func (c *ollamaClient) GenerateTextStream(ctx context.Context, systemPrompt, userInput string, params Params, chunkHandler func(string) error) (Usage, error) {
	usage := Usage{}
	if strings.TrimSpace(systemPrompt) == "" && strings.TrimSpace(userInput) == "" {
		return usage, fmt.Errorf("%w: пустой промт для стриминга", ErrGenerationFailed)
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()
	var promptTokens, completionTokens int

	err := c.client.Chat(requestCtx, c.request(systemPrompt, userInput, params, true), func(resp api.ChatResponse) error {
		if resp.Message.Content != "" && chunkHandler != nil {
			if err := chunkHandler(resp.Message.Content); err != nil {
				return fmt.Errorf("ошибка обработчика стрима: %w", err)
			}
		}
		if resp.Done {
			promptTokens = resp.PromptEvalCount
			completionTokens = resp.EvalCount
			if resp.DoneReason != "" && resp.DoneReason != "stop" {
				log.Warn().Str("reason", resp.DoneReason).Msg("Стрим Ollama завершился не по причине 'stop'")
			}
		}
		return nil
	})
	duration := time.Since(startTime)

	if err != nil {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_stream"}).Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			return usage, fmt.Errorf("%w: таймаут стрима после %v", ErrGenerationFailed, c.timeout)
		}
		return usage, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success_stream"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())

	usage.PromptTokens = promptTokens
	usage.CompletionTokens = completionTokens
	usage.TotalTokens = promptTokens + completionTokens
	if usage.TotalTokens > 0 {
		aiPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(promptTokens))
		aiCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(completionTokens))
	}

	log.Info().Dur("elapsed", duration).Int("totalTokens", usage.TotalTokens).Msg("Обработка стрима Ollama завершена")
	return usage, nil
}
