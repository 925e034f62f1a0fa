package service

import "dialogue-server/internal/model"

// EnrichConversation аннотирует распарсенные реплики метаданными запроса
// и датой генерации. Чистая функция без режимов отказа; запись после
// создания не изменяется.
func EnrichConversation(req model.GenerationRequest, date string, minutes, expected int, utterances []model.Utterance) model.ConversationRecord {
	return model.ConversationRecord{
		Timestamp:                 date,
		PersonName:                req.PersonName,
		Age:                       req.Age,
		Gender:                    req.Gender,
		Situation:                 req.Situation,
		ConversationLengthMinutes: minutes,
		TotalUtterancesExpected:   expected,
		TotalUtterancesGenerated:  len(utterances),
		Conversation:              utterances,
	}
}
