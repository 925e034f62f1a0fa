package service

import (
	"context"
	"fmt"
	"strings"

	"dialogue-server/internal/ai"
	"dialogue-server/internal/config"
	"dialogue-server/internal/extract"
	"dialogue-server/internal/model"
	"dialogue-server/internal/prompt"

	"go.uber.org/zap"
)

// Emitter получает очередную строку NDJSON-потока (контрольную или запись
// диалога). Вызывается строго последовательно: строки одного диалога
// полностью отправляются до начала генерации следующего.
type Emitter func(v interface{}) error

// Generator - пайплайн генерации серии диалогов: промт -> модель ->
// экстракция -> обогащение -> выдача. Генерация строго последовательная,
// состояние не разделяется между запросами.
type Generator struct {
	client             ai.Client
	profile            prompt.Profile
	extractor          *extract.Extractor
	tokensPerUtterance int
	temperature        float64
	topP               float64
	stream             bool
	log                *zap.Logger
}

// NewGenerator создает генератор с настройками из конфигурации.
func NewGenerator(client ai.Client, profile prompt.Profile, cfg *config.Config, logger *zap.Logger) *Generator {
	return &Generator{
		client:             client,
		profile:            profile,
		extractor:          extract.New(profile),
		tokensPerUtterance: cfg.AITokensPerUtterance,
		temperature:        cfg.AITemperature,
		topP:               cfg.AITopP,
		stream:             cfg.AIStream,
		log:                logger,
	}
}

// Run генерирует num_conversations диалогов с шагом step_days от стартовой
// даты. Возвращает аккумулированные записи; при ошибке обращения к модели
// поток завершается контрольной строкой status=error, уже сгенерированные
// записи сохраняются в результате.
func (g *Generator) Run(ctx context.Context, req model.GenerationRequest, emit Emitter) ([]model.ConversationRecord, error) {
	startDate, err := req.StartDate()
	if err != nil {
		return nil, err
	}

	// Аккумулятор артефакта, живет в пределах одного запроса.
	records := make([]model.ConversationRecord, 0, req.NumConversations)

	if err := g.emit(emit, model.StatusLine{Status: model.StatusGenerating, Message: "대화 생성을 시작합니다..."}); err != nil {
		return records, err
	}

	for i := 0; i < req.NumConversations; i++ {
		currentDate := startDate.AddDate(0, 0, i*req.StepDays).Format(model.DateLayout)
		minutes, target := prompt.SampleLength()
		userPrompt := prompt.BuildConversationPrompt(req, g.profile, currentDate, minutes, target)

		g.log.Info("Генерация диалога",
			zap.String("person", req.PersonName),
			zap.String("date", currentDate),
			zap.Int("minutes", minutes),
			zap.Int("targetUtterances", target),
		)

		raw, err := g.callModel(ctx, userPrompt, target)
		if err != nil {
			g.log.Error("Ошибка генерации диалога", zap.String("date", currentDate), zap.Error(err))
			message := fmt.Sprintf("LLM 서버 호출 오류: %v. 추론 서버가 실행 중인지 확인해주세요.", err)
			if emitErr := g.emit(emit, model.StatusLine{Status: model.StatusError, Message: message}); emitErr != nil {
				g.log.Warn("Не удалось отправить строку ошибки клиенту", zap.Error(emitErr))
			}
			return records, err
		}

		utterances := g.extractor.Extract(raw, req.PersonName, target)
		record := EnrichConversation(req, currentDate, minutes, target, utterances)
		records = append(records, record)

		if err := g.emit(emit, record); err != nil {
			return records, err
		}
		progress := model.StatusLine{
			Status:  model.StatusProgress,
			Message: fmt.Sprintf("날짜 %s 대화 생성 완료.", currentDate),
		}
		if err := g.emit(emit, progress); err != nil {
			return records, err
		}
	}

	err = g.emit(emit, model.StatusLine{Status: model.StatusComplete, Message: "모든 대화 생성이 완료되었습니다."})
	return records, err
}

// callModel выполняет один вызов модели и возвращает собранный текст ответа.
// В потоковом режиме фрагменты конкатенируются в один блоб перед разбором.
func (g *Generator) callModel(ctx context.Context, userPrompt string, target int) (string, error) {
	maxTokens := target * g.tokensPerUtterance
	params := ai.Params{
		Temperature: &g.temperature,
		MaxTokens:   &maxTokens,
		TopP:        &g.topP,
	}

	if !g.stream {
		raw, _, err := g.client.GenerateText(ctx, prompt.SystemPrompt, userPrompt, params)
		return raw, err
	}

	var sb strings.Builder
	_, err := g.client.GenerateTextStream(ctx, prompt.SystemPrompt, userPrompt, params, func(chunk string) error {
		sb.WriteString(chunk)
		return nil
	})
	return sb.String(), err
}

func (g *Generator) emit(emit Emitter, v interface{}) error {
	if emit == nil {
		return nil
	}
	return emit(v)
}
