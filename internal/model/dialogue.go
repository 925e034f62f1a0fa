package model

import (
	"errors"
	"fmt"
	"time"
)

// UserSpeaker - имя, под которым чатбот выступает в диалоге.
const UserSpeaker = "사용자"

// Возрастные группы. Границы диапазонов включительные.
const (
	AgeGroupTeenager    = "teenager"     // 13-19
	AgeGroupAdultYoung  = "adult_young"  // 20-39
	AgeGroupAdultMiddle = "adult_middle" // 40-65
	AgeGroupSenior      = "senior"       // 66+
	AgeGroupNotTarget   = "not_target"   // младше 13, не обслуживается
)

// MinAge - минимальный допустимый возраст участника.
const MinAge = 13

// SituationOptions - фиксированная таблица вариантов ситуаций по возрастным группам.
var SituationOptions = map[string][]string{
	AgeGroupTeenager:    {"학교 생활", "감정 변화", "취미 및 여가 활동 탐색", "일상 생활"},
	AgeGroupAdultYoung:  {"사회 초년생", "인간관계 및 독립", "자기개발", "일상 생활"},
	AgeGroupAdultMiddle: {"가정", "직장생활", "건강 관리", "일상 생활"},
	AgeGroupSenior:      {"은퇴 및 여가 생활", "건강 관리", "사회적 고립", "일상 생활"},
}

// AgeGroup возвращает возрастную группу для указанного возраста.
// Отображение тотальное и детерминированное.
func AgeGroup(age int) string {
	switch {
	case age >= 13 && age <= 19:
		return AgeGroupTeenager
	case age >= 20 && age <= 39:
		return AgeGroupAdultYoung
	case age >= 40 && age <= 65:
		return AgeGroupAdultMiddle
	case age >= 66:
		return AgeGroupSenior
	default:
		return AgeGroupNotTarget
	}
}

// SituationOptionsFor возвращает варианты ситуаций для возраста.
// Для возраста вне целевых групп возвращает пустой список.
func SituationOptionsFor(age int) []string {
	if options, ok := SituationOptions[AgeGroup(age)]; ok {
		return options
	}
	return []string{}
}

// DateLayout - формат дат, используемый во всех артефактах.
const DateLayout = "2006-01-02"

// DefaultStartDate - дата начала генерации по умолчанию (как в исходном сервисе).
var DefaultStartDate = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

// GenerationRequest - запрос на генерацию серии диалогов.
type GenerationRequest struct {
	PersonName       string `json:"person_name"`
	Age              int    `json:"age"`
	Gender           string `json:"gender"`
	Situation        string `json:"situation"`
	StartTimestamp   string `json:"start_timestamp"`
	StepDays         int    `json:"step_days"`
	NumConversations int    `json:"num_conversations"`
}

// ErrUnderage - возраст участника ниже допустимого порога.
var ErrUnderage = errors.New("age below the supported minimum of 13")

// Validate проверяет запрос до обращения к модели.
func (r *GenerationRequest) Validate() error {
	if r.PersonName == "" {
		return errors.New("person_name is required")
	}
	if r.Age < MinAge {
		return fmt.Errorf("%w: got %d", ErrUnderage, r.Age)
	}
	if r.Gender != "male" && r.Gender != "female" {
		return fmt.Errorf("gender must be 'male' or 'female', got %q", r.Gender)
	}
	if r.Situation == "" {
		return errors.New("situation is required")
	}
	if r.StepDays < 1 {
		return fmt.Errorf("step_days must be >= 1, got %d", r.StepDays)
	}
	if r.NumConversations < 1 {
		return fmt.Errorf("num_conversations must be >= 1, got %d", r.NumConversations)
	}
	if _, err := r.StartDate(); err != nil {
		return err
	}
	return nil
}

// StartDate парсит start_timestamp. Пустое значение заменяется датой по умолчанию.
func (r *GenerationRequest) StartDate() (time.Time, error) {
	if r.StartTimestamp == "" {
		return DefaultStartDate, nil
	}
	for _, layout := range []string{DateLayout, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, r.StartTimestamp); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("start_timestamp %q is not a valid date", r.StartTimestamp)
}

// AgeGroup возвращает возрастную группу участника запроса.
func (r *GenerationRequest) AgeGroup() string {
	return AgeGroup(r.Age)
}

// Utterance - одна реплика диалога. После обогащения список emotions
// непустой. Для полностью нераспарсенного ответа модели вместо реплик
// создается одна запись с заполненными Error и Raw.
type Utterance struct {
	Speaker  string   `json:"speaker,omitempty"`
	Content  string   `json:"content,omitempty"`
	Emotions []string `json:"emotions,omitempty"`
	Error    string   `json:"error,omitempty"`
	Raw      string   `json:"raw,omitempty"`
}

// IsErrorRecord сообщает, является ли реплика маркером ошибки парсинга.
func (u Utterance) IsErrorRecord() bool {
	return u.Error != ""
}

// ConversationRecord - один сгенерированный диалог. Неизменяем после создания.
type ConversationRecord struct {
	Timestamp                 string      `json:"timestamp"`
	PersonName                string      `json:"person_name"`
	Age                       int         `json:"age"`
	Gender                    string      `json:"gender"`
	Situation                 string      `json:"situation"`
	ConversationLengthMinutes int         `json:"conversation_length_minutes"`
	TotalUtterancesExpected   int         `json:"total_utterances_expected"`
	TotalUtterancesGenerated  int         `json:"total_utterances_generated"`
	Conversation              []Utterance `json:"conversation"`
}

// Статусы контрольных строк NDJSON-потока.
const (
	StatusGenerating = "generating"
	StatusProgress   = "progress"
	StatusError      = "error"
	StatusComplete   = "complete"
)

// StatusLine - контрольная строка NDJSON-потока генерации.
type StatusLine struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
