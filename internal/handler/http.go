package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"dialogue-server/internal/model"
	"dialogue-server/internal/service"
	"dialogue-server/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler - HTTP обработчики сервиса генерации диалогов.
type Handler struct {
	generator *service.Generator
	store     *storage.FileStore
	uploader  storage.Uploader // nil, если выгрузка в S3 выключена
	log       *zap.Logger
}

// New создает обработчик.
func New(generator *service.Generator, store *storage.FileStore, uploader storage.Uploader, logger *zap.Logger) *Handler {
	return &Handler{
		generator: generator,
		store:     store,
		uploader:  uploader,
		log:       logger,
	}
}

// RegisterRoutes регистрирует маршруты API.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.Root)
	router.POST("/generate-stream/", h.GenerateStream)
	router.POST("/save-conversations/", h.SaveConversations)
	router.GET("/situation-options/", h.SituationOptions)
	// Старое имя маршрута, которым пользуется дашборд
	router.GET("/get_situation_options/", h.SituationOptions)
}

// Root возвращает приветственное сообщение.
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to the Empathy Conversation Generator API!"})
}

// GenerateStream генерирует серию диалогов и отдает их чанками NDJSON:
// записи диалогов вперемешку с контрольными строками status/message.
// Ошибки валидации отклоняются до какого-либо обращения к модели.
func (h *Handler) GenerateStream(c *gin.Context) {
	var req model.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("неверный формат запроса: %v", err)})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)

	writer := c.Writer
	emit := func(v interface{}) error {
		line, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("ошибка сериализации строки потока: %w", err)
		}
		if _, err := writer.Write(append(line, '\n')); err != nil {
			return err
		}
		writer.Flush()
		return nil
	}

	// Отключение клиента не прерывает генерацию: цикл дорабатывает
	// до конца на стороне сервера, как и в исходном сервисе.
	ctx := context.WithoutCancel(c.Request.Context())
	if _, err := h.generator.Run(ctx, req, emit); err != nil {
		// Строка status=error уже отправлена в поток
		h.log.Error("Генерация завершилась с ошибкой", zap.String("person", req.PersonName), zap.Error(err))
	}
}

type saveRequest struct {
	Data []map[string]interface{} `json:"data"`
}

// SaveConversations сохраняет присланные клиентом записи диалогов в JSON-файл;
// при ?upload=s3 артефакт дополнительно выгружается в объектное хранилище.
func (h *Handler) SaveConversations(c *gin.Context) {
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("неверный формат запроса: %v", err)})
		return
	}
	if len(req.Data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "저장할 데이터가 없습니다."})
		return
	}

	// Имя файла строится по первой записи
	first := req.Data[0]
	personName, _ := first["person_name"].(string)
	timestamp, _ := first["timestamp"].(string)
	if timestamp == "" {
		timestamp = time.Now().Format("20060102")
	}
	filename := storage.ReportFilename(personName, timestamp)

	path, err := h.store.Save(filename, req.Data)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("파일 저장 중 오류 발생: %v", err)})
		return
	}

	response := gin.H{
		"message":   fmt.Sprintf("대화 데이터가 '%s'에 성공적으로 저장되었습니다.", path),
		"file_path": path,
	}

	if c.Query("upload") == "s3" {
		if h.uploader == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "S3 업로드가 비활성화되어 있습니다.", "file_path": path})
			return
		}
		body, err := json.MarshalIndent(req.Data, "", "  ")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "file_path": path})
			return
		}
		uri, err := h.uploader.Upload(c.Request.Context(), filename, body)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("S3 업로드 중 오류 발생: %v", err), "file_path": path})
			return
		}
		response["s3_uri"] = uri
	}

	c.JSON(http.StatusOK, response)
}

// SituationOptions возвращает варианты ситуаций для указанного возраста.
// Для возраста вне целевых групп список пуст.
func (h *Handler) SituationOptions(c *gin.Context) {
	age, err := strconv.Atoi(c.Query("age"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "параметр age обязателен и должен быть числом"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"situation_options": model.SituationOptionsFor(age)})
}
