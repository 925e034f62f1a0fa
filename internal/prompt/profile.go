package prompt

// Profile задает словарь эмоций и особенности формата генерации.
// Скрипты-прародители отличались только этими параметрами, поэтому
// вместо копий пайплайна профиль передается как конфигурация.
type Profile struct {
	// Name - идентификатор профиля ("five", "six").
	Name string
	// Emotions - фиксированный словарь эмоций. Эмоции вне словаря
	// отбрасываются при валидации ответа модели.
	Emotions []string
	// NeutralizeUserAnger - заменять "분노" у реплик чатбота на "기쁨".
	// Включено только в шестиэмоциональном профиле.
	NeutralizeUserAnger bool
}

// Предопределенные профили.
var (
	// FiveEmotions - словарь из пяти эмоций (기쁨/분노/슬픔/두려움/놀람).
	FiveEmotions = Profile{
		Name:     "five",
		Emotions: []string{"기쁨", "분노", "슬픔", "두려움", "놀람"},
	}

	// SixEmotions добавляет 혐오 и нейтрализует гнев чатбота.
	SixEmotions = Profile{
		Name:                "six",
		Emotions:            []string{"기쁨", "분노", "슬픔", "두려움", "놀람", "혐오"},
		NeutralizeUserAnger: true,
	}
)

// ByName возвращает профиль по имени. Неизвестное имя дает профиль
// по умолчанию (шестиэмоциональный) и false.
func ByName(name string) (Profile, bool) {
	switch name {
	case "five":
		return FiveEmotions, true
	case "six":
		return SixEmotions, true
	default:
		return SixEmotions, false
	}
}

// Contains проверяет принадлежность эмоции словарю профиля.
func (p Profile) Contains(emotion string) bool {
	for _, e := range p.Emotions {
		if e == emotion {
			return true
		}
	}
	return false
}
