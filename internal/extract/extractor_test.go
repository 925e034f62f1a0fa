package extract

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"dialogue-server/internal/model"
	"dialogue-server/internal/prompt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence(`{"a":1}`))
	assert.Equal(t, "plain text", StripCodeFence("  plain text  "))
}

func TestExtractValidJSONPassthrough(t *testing.T) {
	e := New(prompt.SixEmotions)

	utterances := []model.Utterance{
		{Speaker: model.UserSpeaker, Content: "안녕하세요", Emotions: []string{"기쁨"}},
		{Speaker: "김수진", Content: "네, 안녕하세요", Emotions: []string{"슬픔", "두려움"}},
	}
	raw, err := json.Marshal(utterances)
	require.NoError(t, err)

	// Валидный JSON возвращается без какой-либо нормализации
	got := e.Extract(string(raw), "김수진", 100)
	assert.Equal(t, utterances, got)
}

func TestExtractValidJSONInCodeFence(t *testing.T) {
	e := New(prompt.SixEmotions)

	raw := "```json\n[{\"speaker\":\"사용자\",\"content\":\"hi\",\"emotions\":[\"기쁨\"]}]\n```"
	got := e.Extract(raw, "김수진", 1)
	require.Len(t, got, 1)
	assert.Equal(t, model.UserSpeaker, got[0].Speaker)
	assert.Equal(t, "hi", got[0].Content)
}

func TestExtractDelimitedLines(t *testing.T) {
	e := New(prompt.SixEmotions)

	raw := strings.Join([]string{
		"사용자: 안녕하세요! 오늘 하루는 어떠셨어요? | 감정: 기쁨",
		"김수진: 좀 피곤하네요. | 감정: 슬픔, 두려움",
		"해설: 이 줄은 알 수 없는 화자입니다 | 감정: 기쁨",
		"구분자가 없는 줄입니다",
		"사용자: 힘드셨군요. | 감정: 놀람",
	}, "\n")

	got := e.Extract(raw, "김수진", 3)
	require.Len(t, got, 3)

	assert.Equal(t, model.UserSpeaker, got[0].Speaker)
	assert.Equal(t, "안녕하세요! 오늘 하루는 어떠셨어요?", got[0].Content)
	assert.Equal(t, []string{"기쁨"}, got[0].Emotions)

	assert.Equal(t, "김수진", got[1].Speaker)
	assert.Equal(t, []string{"슬픔", "두려움"}, got[1].Emotions)

	// Все эмоции принадлежат словарю, пустых списков нет
	for _, u := range got {
		require.NotEmpty(t, u.Emotions)
		for _, emotion := range u.Emotions {
			assert.True(t, prompt.SixEmotions.Contains(emotion), "unexpected emotion %q", emotion)
		}
	}
}

func TestExtractJSONTierValidatesEmotions(t *testing.T) {
	e := New(prompt.SixEmotions)

	raw := `[
		{"speaker":"김수진","content":"감정이 빠진 발화","emotions":[]},
		{"speaker":"김수진","content":"사전에 없는 감정","emotions":["행복함"]},
		{"speaker":"사용자","content":"화가 나네요","emotions":["분노"]}
	]`

	got := e.Extract(raw, "김수진", 3)
	require.Len(t, got, 3)

	// Эмоции после обогащения непустые и принадлежат словарю,
	// независимо от уровня разбора
	for _, u := range got {
		require.NotEmpty(t, u.Emotions)
		for _, emotion := range u.Emotions {
			assert.True(t, prompt.SixEmotions.Contains(emotion), "unexpected emotion %q", emotion)
		}
	}

	// Нейтрализация гнева чатбота действует и для JSON-уровня
	assert.Equal(t, []string{"기쁨"}, got[2].Emotions)
}

func TestExtractInvalidEmotionFallsBackToRandom(t *testing.T) {
	e := New(prompt.SixEmotions)

	raw := "사용자: 테스트입니다. | 감정: 없는감정"
	got := e.Extract(raw, "김수진", 1)
	require.Len(t, got, 1)
	require.Len(t, got[0].Emotions, 1)
	assert.True(t, prompt.SixEmotions.Contains(got[0].Emotions[0]))
}

func TestExtractNeutralizesChatbotAnger(t *testing.T) {
	raw := strings.Join([]string{
		"사용자: 정말 화가 나네요! | 감정: 분노",
		"김수진: 저도 화가 나요. | 감정: 분노",
	}, "\n")

	t.Run("SixProfile", func(t *testing.T) {
		got := New(prompt.SixEmotions).Extract(raw, "김수진", 2)
		require.Len(t, got, 2)
		// Гнев чатбота заменяется, гнев собеседника остается
		assert.Equal(t, []string{"기쁨"}, got[0].Emotions)
		assert.Equal(t, []string{"분노"}, got[1].Emotions)
	})

	t.Run("FiveProfile", func(t *testing.T) {
		got := New(prompt.FiveEmotions).Extract(raw, "김수진", 2)
		require.Len(t, got, 2)
		assert.Equal(t, []string{"분노"}, got[0].Emotions)
		assert.Equal(t, []string{"분노"}, got[1].Emotions)
	})
}

func TestReconcileTruncatesExcess(t *testing.T) {
	e := New(prompt.SixEmotions)

	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, fmt.Sprintf("사용자: 반복 발화 %d | 감정: 기쁨", i))
	}

	// 20 реплик при ожидаемых 10: усечение до int(10*1.2)
	got := e.Extract(strings.Join(lines, "\n"), "김수진", 10)
	assert.Len(t, got, 12)
}

func TestReconcilePadsShortfall(t *testing.T) {
	e := New(prompt.SixEmotions)

	lines := []string{
		"사용자: 첫 번째 | 감정: 기쁨",
		"김수진: 두 번째 | 감정: 슬픔",
		"사용자: 세 번째 | 감정: 놀람",
		"김수진: 네 번째 | 감정: 두려움",
	}
	originals := map[string]bool{
		"첫 번째": true, "두 번째": true, "세 번째": true, "네 번째": true,
	}

	// 4 реплики при ожидаемых 20: дополнение до >= 0.8*20
	got := e.Extract(strings.Join(lines, "\n"), "김수진", 20)
	assert.GreaterOrEqual(t, len(got), 16)

	// Дополнение использует только уже распарсенные реплики
	for _, u := range got {
		assert.True(t, originals[u.Content], "unexpected content %q", u.Content)
	}
}

func TestExtractTotalFailureReturnsMarker(t *testing.T) {
	e := New(prompt.SixEmotions)

	raw := "모델이 형식을 완전히 무시한 자유 텍스트 응답입니다."
	got := e.Extract(raw, "김수진", 50)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsErrorRecord())
	assert.Equal(t, ParseFailedMarker, got[0].Error)
	// Исходный текст сохраняется дословно
	assert.Equal(t, raw, got[0].Raw)
	assert.Empty(t, got[0].Speaker)
	assert.Empty(t, got[0].Emotions)
}

func TestExtractRecord(t *testing.T) {
	t.Run("ValidObject", func(t *testing.T) {
		raw := `{"age_group":"청소년","emotion":"기쁨","content":"오늘 시험 잘 봤어요!"}`
		rec := ExtractRecord(raw)
		assert.Equal(t, "기쁨", rec["emotion"])
		assert.Equal(t, "청소년", rec["age_group"])
		assert.NotContains(t, rec, "error")
	})

	t.Run("FencedObject", func(t *testing.T) {
		rec := ExtractRecord("```json\n{\"emotion\":\"슬픔\"}\n```")
		assert.Equal(t, "슬픔", rec["emotion"])
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		rec := ExtractRecord("이것은 JSON이 아닙니다")
		errText, ok := rec["error"].(string)
		require.True(t, ok)
		assert.True(t, strings.HasPrefix(errText, ParseFailedMarker))
		assert.Equal(t, "이것은 JSON이 아닙니다", rec["raw"])
	})
}
