package handler

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"dialogue-server/internal/config"
	"dialogue-server/internal/mocks"
	"dialogue-server/internal/model"
	"dialogue-server/internal/prompt"
	"dialogue-server/internal/service"
	"dialogue-server/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRouter(t *testing.T, mockClient *mocks.MockAIClient, uploader storage.Uploader) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		AITokensPerUtterance: 30,
		AITemperature:        0.7,
		AITopP:               0.9,
		AIStream:             false,
	}

	outDir := t.TempDir()
	generator := service.NewGenerator(mockClient, prompt.SixEmotions, cfg, zap.NewNop())
	store := storage.NewFileStore(outDir, zap.NewNop())

	router := gin.New()
	New(generator, store, uploader, zap.NewNop()).RegisterRoutes(router)
	return router, outDir
}

func performJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRoot(t *testing.T) {
	router, _ := setupRouter(t, mocks.NewMockAIClient(t), nil)

	w := performJSON(router, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Welcome")
}

func TestSituationOptions(t *testing.T) {
	router, _ := setupRouter(t, mocks.NewMockAIClient(t), nil)

	t.Run("Teenager", func(t *testing.T) {
		w := performJSON(router, http.MethodGet, "/situation-options/?age=17", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string][]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Contains(t, resp["situation_options"], "학교 생활")
	})

	t.Run("LegacyRoute", func(t *testing.T) {
		w := performJSON(router, http.MethodGet, "/get_situation_options/?age=70", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "은퇴 및 여가 생활")
	})

	t.Run("OutOfTarget", func(t *testing.T) {
		w := performJSON(router, http.MethodGet, "/situation-options/?age=5", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string][]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Empty(t, resp["situation_options"])
	})

	t.Run("MissingAge", func(t *testing.T) {
		w := performJSON(router, http.MethodGet, "/situation-options/", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGenerateStreamValidation(t *testing.T) {
	mockClient := mocks.NewMockAIClient(t)
	router, _ := setupRouter(t, mockClient, nil)

	t.Run("Underage", func(t *testing.T) {
		body := model.GenerationRequest{
			PersonName:       "김수진",
			Age:              12,
			Gender:           "female",
			Situation:        "학교 생활",
			StepDays:         1,
			NumConversations: 1,
		}
		w := performJSON(router, http.MethodPost, "/generate-stream/", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/generate-stream/", bytes.NewBufferString("{not json"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	// Ошибка валидации отклоняется до какого-либо обращения к модели
	mockClient.AssertNotCalled(t, "GenerateText")
	mockClient.AssertNotCalled(t, "GenerateTextStream")
}

func TestGenerateStreamNDJSON(t *testing.T) {
	rawResponse := `[{"speaker":"사용자","content":"안녕하세요","emotions":["기쁨"]},{"speaker":"김수진","content":"네","emotions":["슬픔"]}]`

	mockClient := mocks.NewMockAIClient(t)
	mockClient.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(rawResponse, nil, nil).Twice()

	router, _ := setupRouter(t, mockClient, nil)

	body := model.GenerationRequest{
		PersonName:       "김수진",
		Age:              17,
		Gender:           "female",
		Situation:        "학교 생활",
		StartTimestamp:   "2025-06-01",
		StepDays:         3,
		NumConversations: 2,
	}
	w := performJSON(router, http.MethodPost, "/generate-stream/", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))

	// Каждая строка ответа - самостоятельный JSON-объект
	var statuses []string
	var records []model.ConversationRecord
	scanner := bufio.NewScanner(w.Body)
	for scanner.Scan() {
		line := scanner.Bytes()
		var status model.StatusLine
		require.NoError(t, json.Unmarshal(line, &status))
		if status.Status != "" {
			statuses = append(statuses, status.Status)
			continue
		}
		var rec model.ConversationRecord
		require.NoError(t, json.Unmarshal(line, &rec))
		records = append(records, rec)
	}

	assert.Equal(t, []string{
		model.StatusGenerating,
		model.StatusProgress,
		model.StatusProgress,
		model.StatusComplete,
	}, statuses)

	require.Len(t, records, 2)
	assert.Equal(t, "2025-06-01", records[0].Timestamp)
	assert.Equal(t, "2025-06-04", records[1].Timestamp)

	mockClient.AssertExpectations(t)
}

func TestSaveConversations(t *testing.T) {
	t.Run("EmptyData", func(t *testing.T) {
		router, _ := setupRouter(t, mocks.NewMockAIClient(t), nil)
		w := performJSON(router, http.MethodPost, "/save-conversations/", gin.H{"data": []interface{}{}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("HappyPath", func(t *testing.T) {
		router, outDir := setupRouter(t, mocks.NewMockAIClient(t), nil)

		body := gin.H{"data": []gin.H{{
			"person_name": "김수진",
			"timestamp":   "2025-06-01",
			"age":         17,
		}}}
		w := performJSON(router, http.MethodPost, "/save-conversations/", body)
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Contains(t, resp["file_path"], "dialogue_report_with_emotions_김수진_20250601.json")

		entries, err := os.ReadDir(outDir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
	})

	t.Run("S3Disabled", func(t *testing.T) {
		router, _ := setupRouter(t, mocks.NewMockAIClient(t), nil)

		body := gin.H{"data": []gin.H{{"person_name": "김수진", "timestamp": "2025-06-01"}}}
		w := performJSON(router, http.MethodPost, "/save-conversations/?upload=s3", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "S3")
	})

	t.Run("S3Upload", func(t *testing.T) {
		uploader := mocks.NewMockUploader(t)
		uploader.On("Upload", mock.Anything, "dialogue_report_with_emotions_김수진_20250601.json", mock.Anything).
			Return("s3://test-bucket/project/dialogue_report_with_emotions_김수진_20250601.json", nil).Once()

		router, _ := setupRouter(t, mocks.NewMockAIClient(t), uploader)

		body := gin.H{"data": []gin.H{{"person_name": "김수진", "timestamp": "2025-06-01"}}}
		w := performJSON(router, http.MethodPost, "/save-conversations/?upload=s3", body)
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "s3://test-bucket/project/dialogue_report_with_emotions_김수진_20250601.json", resp["s3_uri"])
		assert.NotEmpty(t, resp["file_path"])

		uploader.AssertExpectations(t)
	})

	t.Run("S3UploadError", func(t *testing.T) {
		uploader := mocks.NewMockUploader(t)
		uploader.On("Upload", mock.Anything, mock.Anything, mock.Anything).
			Return("", errors.New("access denied")).Once()

		router, outDir := setupRouter(t, mocks.NewMockAIClient(t), uploader)

		body := gin.H{"data": []gin.H{{"person_name": "김수진", "timestamp": "2025-06-01"}}}
		w := performJSON(router, http.MethodPost, "/save-conversations/?upload=s3", body)
		require.Equal(t, http.StatusInternalServerError, w.Code)

		// Локальный файл уже сохранен, путь возвращается даже при сбое выгрузки
		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp["file_path"])

		entries, err := os.ReadDir(outDir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)

		uploader.AssertExpectations(t)
	})
}
