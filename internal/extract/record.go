package extract

import "encoding/json"

// ExtractRecord разбирает ответ одиночной JSON-генерации (пакетный режим).
// Валидный JSON-объект возвращается без изменений; иначе возвращается
// запись-маркер с текстом ошибки и очищенным исходным ответом.
func ExtractRecord(raw string) map[string]interface{} {
	cleaned := StripCodeFence(raw)
	var rec map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &rec); err != nil {
		return map[string]interface{}{
			"error": ParseFailedMarker + ": " + err.Error(),
			"raw":   cleaned,
		}
	}
	return rec
}
