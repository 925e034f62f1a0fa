package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReportFilename(t *testing.T) {
	assert.Equal(t,
		"dialogue_report_with_emotions_김수진_20250601.json",
		ReportFilename("김수진", "2025-06-01"),
	)
	assert.Equal(t,
		"dialogue_report_with_emotions_unknown_20250601.json",
		ReportFilename("", "20250601"),
	)
}

func TestFileStoreSave(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, zap.NewNop())

	payload := []map[string]interface{}{{"person_name": "김수진", "age": 17}}
	path, err := store.Save("report.json", payload)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "김수진", got[0]["person_name"])
}

func TestFileStoreSaveCollision(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, zap.NewNop())

	first, err := store.Save("report.json", "first")
	require.NoError(t, err)

	// Повторное имя получает суффикс, существующий файл не трогается
	second, err := store.Save("report.json", "second")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, `"first"`, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestFileStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "output")
	store := NewFileStore(dir, zap.NewNop())

	_, err := store.Save("report.json", map[string]string{"k": "v"})
	require.NoError(t, err)

	_, err = os.Stat(dir)
	assert.NoError(t, err)
}
