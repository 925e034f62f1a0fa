package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FileStore сохраняет артефакты генерации в локальную директорию
// в виде JSON с отступами.
type FileStore struct {
	dir string
	log *zap.Logger
}

// NewFileStore создает хранилище; директория создается при первом сохранении.
func NewFileStore(dir string, logger *zap.Logger) *FileStore {
	return &FileStore{dir: dir, log: logger}
}

// ReportFilename формирует имя файла отчета из имени участника и даты
// первой записи (дефисы даты убираются, как в исходном сервисе).
func ReportFilename(personName, timestamp string) string {
	if personName == "" {
		personName = "unknown"
	}
	return fmt.Sprintf("dialogue_report_with_emotions_%s_%s.json", personName, strings.ReplaceAll(timestamp, "-", ""))
}

// Save сериализует значение и записывает его в файл с указанным именем.
// При коллизии имени добавляется короткий uuid-суффикс, существующие
// файлы не перезаписываются. Возвращает итоговый путь.
func (s *FileStore) Save(name string, v interface{}) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("не удалось создать директорию %s: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации артефакта: %w", err)
	}

	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err == nil {
		ext := filepath.Ext(name)
		base := strings.TrimSuffix(name, ext)
		path = filepath.Join(s.dir, fmt.Sprintf("%s_%s%s", base, uuid.NewString()[:8], ext))
		s.log.Warn("Файл уже существует, сохраняем под новым именем", zap.String("path", path))
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("ошибка записи файла %s: %w", path, err)
	}

	s.log.Info("Артефакт сохранен", zap.String("path", path), zap.Int("bytes", len(data)))
	return path, nil
}
