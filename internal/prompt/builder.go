package prompt

import (
	"fmt"
	"math/rand"
	"strings"

	"dialogue-server/internal/model"
)

// SystemPrompt - системный промт для диалоговой генерации.
const SystemPrompt = "You are a helpful AI assistant."

// BatchSystemPrompt - системный промт для пакетной JSON-генерации.
const BatchSystemPrompt = "You are a data generator for an empathetic chatbot. Always answer ONLY in Korean, in JSON format."

// Границы длины диалога в минутах.
const (
	MinConversationMinutes = 5
	MaxConversationMinutes = 10
)

// SampleLength выбирает длину диалога в минутах и целевое число реплик.
// Целевое число лежит в [minutes*10, minutes*11] - эвристика "слов в минуту"
// исходного сервиса.
func SampleLength() (minutes, target int) {
	minutes = MinConversationMinutes + rand.Intn(MaxConversationMinutes-MinConversationMinutes+1)
	target = minutes*10 + rand.Intn(minutes+1)
	return minutes, target
}

// BuildConversationPrompt собирает инструкцию для генерации одного диалога.
// Чистая функция: только форматирование строки.
func BuildConversationPrompt(req model.GenerationRequest, p Profile, currentDate string, minutes, target int) string {
	return fmt.Sprintf(`당신은 공감형 대화 생성 챗봇입니다. 아래 정보에 따라 사용자(챗봇)와 %[1]s 간의 자연스러운 대화를 생성해주세요.
대화의 각 발화에는 반드시 가장 적절한 감정을 포함하여 명시해야 합니다. 감정은 한국어로 표현해야 합니다.

---
**정보:**
- 참여자: 사용자(챗봇), %[1]s (%[2]d세, %[3]s, %[4]s 그룹)
- 상황: %[5]s
- 날짜: %[6]s
- 대화 길이: 약 %[7]d분 (%[8]d개 발화 내외, 이 길이에 맞춰 대화를 자연스럽게 종료해주세요.)
- **사용 가능한 감정 (이 목록 내에서만 선택):** %[9]s
- **대화 흐름에 따라 자연스럽게 감정 변화를 반영해주세요.**

---
**출력 형식 (반드시 이 형식을 따르세요):**
각 발화는 '참여자: [내용] | 감정: [감정1], [감정2]' 형식으로 작성합니다.
**예시:**
사용자: 안녕하세요! 오늘 하루는 어떠셨어요? | 감정: 기쁨
%[1]s: 아, 네. 그냥 그랬어요. 좀 피곤하네요. | 감정: 슬픔
사용자: 힘든 일이 있으셨군요. 제가 도와드릴 부분이 있을까요? | 감정: 놀람
%[1]s: 아니요, 괜찮아요. 그냥 좀 쉬고 싶어요. | 감정: 슬픔, 두려움
사용자: 그럼 잠시 쉬면서 편안한 시간을 보내세요. | 감정: 기쁨

---
**대화 시작:**
사용자: 안녕하세요, %[1]s님. 요즘 %[5]s 관련해서 어떠신지 궁금해서요.
%[1]s:`,
		req.PersonName, req.Age, req.Gender, req.AgeGroup(), req.Situation,
		currentDate, minutes, target, strings.Join(p.Emotions, ", "))
}

// Persona - персона пакетной генерации (cmd/batchgen).
type Persona struct {
	Name     string `json:"name"`
	AgeGroup string `json:"age_group"`
	Gender   string `json:"gender"`
	Role     string `json:"role"`
	Topic    string `json:"topic"`
}

// BuildBatchPrompt собирает инструкцию для генерации одной JSON-записи
// с закрепленной эмоцией (вариант без построчного формата).
func BuildBatchPrompt(p Persona, emotion string) string {
	return fmt.Sprintf(`다음 조건에 맞는 챗봇 대화 데이터를 한 개 생성하세요.
- 연령대: %[1]s
- 성별: %[2]s
- 상황: %[3]s
- 역할: %[4]s
- 감정: %[5]s
아래 JSON 포맷으로, 코드블록, 마크다운, 설명 없이 순수 JSON만 출력하세요.
반드시 emotion 필드는 위 감정(%[5]s)으로 출력하세요.
예시:
{"age_group":"%[1]s","gender":"%[2]s","role":"%[4]s","situation":"%[3]s","emotion":"%[5]s","content":"여기에 대화 내용을 작성하세요."}`,
		p.AgeGroup, p.Gender, p.Topic, p.Role, emotion)
}
