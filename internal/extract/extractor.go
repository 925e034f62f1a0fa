package extract

import (
	"encoding/json"
	"math/rand"
	"strings"

	"dialogue-server/internal/model"
	"dialogue-server/internal/prompt"

	"github.com/rs/zerolog"
)

var log = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

// ParseFailedMarker - текст ошибки в записи-маркере при полном провале парсинга.
const ParseFailedMarker = "parsing failed"

// Extractor извлекает структурированные реплики из свободного текста модели.
// Применяет уровни разбора по убыванию строгости: чистый JSON, построчный
// формат 'speaker: content | 감정: ...', затем запись-маркер ошибки.
type Extractor struct {
	profile prompt.Profile
}

// New создает экстрактор для заданного профиля эмоций.
func New(profile prompt.Profile) *Extractor {
	return &Extractor{profile: profile}
}

// StripCodeFence убирает обрамляющий markdown-блок кода, если он есть.
// Ответы локальных моделей часто завернуты в ```json ... ``` вопреки инструкции.
func StripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Язык после открывающей тройки ("json", "text") относится к разметке.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(s[:idx])
		if firstLine == "" || !strings.ContainsAny(firstLine, " \t") && len(firstLine) <= 10 {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Extract разбирает сырой ответ модели в список реплик.
// personName - имя собеседника, ожидаемое наряду с "사용자";
// expected - целевое число реплик из промта.
// Никогда не возвращает пустой список: при полном провале возвращается
// одна запись-маркер с исходным текстом.
func (e *Extractor) Extract(raw, personName string, expected int) []model.Utterance {
	// Уровень 1: ответ целиком - валидный JSON-массив реплик.
	// Структура сохраняется как есть, но эмоции проходят ту же словарную
	// валидацию, что и построчный формат: пустой список после обогащения
	// недопустим.
	cleaned := StripCodeFence(raw)
	var direct []model.Utterance
	if err := json.Unmarshal([]byte(cleaned), &direct); err == nil && len(direct) > 0 {
		for i := range direct {
			if direct[i].IsErrorRecord() {
				continue
			}
			direct[i].Emotions = e.finalizeEmotions(direct[i].Speaker, direct[i].Emotions)
		}
		log.Debug().Int("utterances", len(direct)).Msg("Ответ модели распарсен как чистый JSON")
		return direct
	}

	// Уровень 2: построчный формат с разделителями ':' и '|'.
	parsed := e.parseDelimitedLines(raw, personName)

	// Уровень 3: сверка фактического количества с ожидаемым.
	parsed = e.reconcile(parsed, expected)

	// Уровень 4: ничего не распарсилось - одна запись-маркер,
	// исходный текст сохраняется дословно.
	if len(parsed) == 0 {
		log.Warn().Str("person", personName).Msg("Не удалось распарсить ни одной реплики, возвращаем запись-маркер")
		return []model.Utterance{{Error: ParseFailedMarker, Raw: raw}}
	}
	return parsed
}

// parseDelimitedLines разбирает строки вида
// '참여자: 내용 | 감정: 기쁨, 슬픔'. Строки без обоих разделителей,
// с неизвестным говорящим или без двоеточия в левой части молча пропускаются.
func (e *Extractor) parseDelimitedLines(raw, personName string) []model.Utterance {
	var parsed []model.Utterance
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if !strings.Contains(line, ":") || !strings.Contains(line, "|") {
			continue
		}
		parts := strings.SplitN(line, "|", 2)
		speakerContent := strings.TrimSpace(parts[0])
		emotionContent := strings.TrimSpace(parts[1])

		sc := strings.SplitN(speakerContent, ":", 2)
		if len(sc) != 2 {
			continue
		}
		speaker := strings.TrimSpace(sc[0])
		content := strings.TrimSpace(sc[1])
		if speaker != model.UserSpeaker && speaker != personName {
			continue
		}

		parsed = append(parsed, model.Utterance{
			Speaker:  speaker,
			Content:  content,
			Emotions: e.finalizeEmotions(speaker, splitEmotionTokens(emotionContent)),
		})
	}
	return parsed
}

// splitEmotionTokens выделяет из правой части строки отдельные эмоции.
func splitEmotionTokens(emotionContent string) []string {
	s := strings.TrimSpace(strings.ReplaceAll(emotionContent, "감정:", ""))
	var tokens []string
	for _, token := range strings.Split(s, ",") {
		if token = strings.TrimSpace(token); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// finalizeEmotions фильтрует эмоции по словарю профиля, нейтрализует гнев
// чатбота и гарантирует непустой итоговый список.
func (e *Extractor) finalizeEmotions(speaker string, candidates []string) []string {
	var emotions []string
	for _, emotion := range candidates {
		if e.profile.Contains(emotion) {
			emotions = append(emotions, emotion)
		}
	}
	if e.profile.NeutralizeUserAnger && speaker == model.UserSpeaker && contains(emotions, "분노") {
		// Чатбот не должен злиться на собеседника.
		emotions = []string{"기쁨"}
	}
	if len(emotions) == 0 {
		// Пустой список эмоций ломает потребителей датасета,
		// поэтому заполняем случайной эмоцией из словаря.
		fallback := e.profile.Emotions[rand.Intn(len(e.profile.Emotions))]
		log.Warn().Str("speaker", speaker).Str("emotion", fallback).Msg("Эмоции не прошли валидацию, подставлена случайная")
		emotions = []string{fallback}
	}
	return emotions
}

// reconcile нормализует количество реплик к ожидаемому.
// Это стабилизация формы под болтливость/немногословность модели,
// а не гарантия корректности: при нехватке реплики дублируются
// случайной выборкой из уже распарсенных.
func (e *Extractor) reconcile(parsed []model.Utterance, expected int) []model.Utterance {
	if expected <= 0 || len(parsed) == 0 {
		return parsed
	}
	n := float64(len(parsed))
	target := float64(expected)

	switch {
	case n > target*1.5:
		limit := int(target * 1.2)
		log.Warn().Int("parsed", len(parsed)).Int("expected", expected).Int("kept", limit).Msg("Модель сгенерировала слишком много реплик, усечение")
		return parsed[:limit]
	case n < target*0.5:
		log.Warn().Int("parsed", len(parsed)).Int("expected", expected).Msg("Модель сгенерировала слишком мало реплик, дополнение выборкой")
		for float64(len(parsed)) < target*0.8 {
			k := len(parsed)
			if k > 5 {
				k = 5
			}
			for _, idx := range rand.Perm(len(parsed))[:k] {
				parsed = append(parsed, parsed[idx])
			}
		}
		return parsed
	default:
		return parsed
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
