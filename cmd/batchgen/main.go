package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"dialogue-server/internal/ai"
	"dialogue-server/internal/config"
	"dialogue-server/internal/extract"
	"dialogue-server/internal/prompt"
	"dialogue-server/internal/storage"
	"dialogue-server/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Фиксированный набор персон пакетной генерации.
var personas = []prompt.Persona{
	{Name: "청소년 여성", AgeGroup: "청소년", Gender: "여성", Role: "학생", Topic: "학교 생활"},
	{Name: "성인 남성", AgeGroup: "성인", Gender: "남성", Role: "직장인", Topic: "직장 생활"},
	{Name: "노년층 남성", AgeGroup: "노년층", Gender: "남성", Role: "은퇴자", Topic: "일상 대화"},
}

func main() {
	perPersona := flag.Int("n", 5, "количество записей на персону")
	windowDays := flag.Int("window", 30, "окно случайных временных меток, дней назад от текущего момента")
	output := flag.String("output", "", "директория вывода (по умолчанию из конфигурации)")
	uploadS3 := flag.Bool("s3", false, "выгрузить итоговый файл в S3")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	if *perPersona < 1 {
		log.Fatal("Количество записей на персону должно быть не меньше одной", zap.Int("n", *perPersona))
	}
	if *windowDays < 1 {
		log.Fatal("Окно временных меток должно быть не меньше одного дня", zap.Int("window", *windowDays))
	}

	aiClient, err := ai.NewClient(cfg)
	if err != nil {
		log.Fatal("Failed to create AI client", zap.Error(err))
	}

	profile, _ := prompt.ByName(cfg.EmotionProfile)

	outDir := cfg.OutputDir
	if *output != "" {
		outDir = *output
	}
	store := storage.NewFileStore(outDir, log.Named("FileStore"))

	ctx := context.Background()
	results := make(map[string][]map[string]interface{}, len(personas))

	now := time.Now()
	window := time.Duration(*windowDays) * 24 * time.Hour

	for _, persona := range personas {
		log.Info("Генерация записей для персоны",
			zap.String("persona", persona.Name),
			zap.Int("count", *perPersona),
		)

		emotions := sampleEmotions(profile.Emotions, *perPersona)
		for i, emotion := range emotions {
			userPrompt := prompt.BuildBatchPrompt(persona, emotion)

			raw, usage, err := aiClient.GenerateText(ctx, prompt.BatchSystemPrompt, userPrompt, ai.Params{
				Temperature: &cfg.AITemperature,
				TopP:        &cfg.AITopP,
			})
			if err != nil {
				log.Error("Ошибка генерации записи",
					zap.String("persona", persona.Name),
					zap.String("emotion", emotion),
					zap.Error(err),
				)
				continue
			}

			rec := extract.ExtractRecord(raw)
			rec["time"] = randomPastTime(now, window).Format("2006-01-02 15:04:05")
			results[persona.Name] = append(results[persona.Name], rec)

			log.Info("Запись сгенерирована",
				zap.String("persona", persona.Name),
				zap.String("emotion", emotion),
				zap.Int("index", i+1),
				zap.Int("totalTokens", usage.TotalTokens),
			)
		}
	}

	filename := fmt.Sprintf("batch_dialogues_%s.json", now.Format("20060102_150405"))
	path, err := store.Save(filename, results)
	if err != nil {
		log.Fatal("Не удалось сохранить результаты", zap.Error(err))
	}
	log.Info("Пакетная генерация завершена", zap.String("path", path))

	if *uploadS3 {
		if !cfg.S3Enabled {
			log.Fatal("S3 выгрузка запрошена, но S3_ENABLED=false")
		}
		uploader, err := storage.NewS3Uploader(ctx, cfg, log.Named("S3Uploader"))
		if err != nil {
			log.Fatal("Failed to create S3 uploader", zap.Error(err))
		}
		body, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			log.Fatal("Ошибка сериализации результатов", zap.Error(err))
		}
		uri, err := uploader.Upload(ctx, filename, body)
		if err != nil {
			log.Fatal("S3 upload failed", zap.Error(err))
		}
		log.Info("Результаты выгружены в S3", zap.String("uri", uri))
	}
}

// randomPastTime возвращает случайный момент в пределах window до now.
// Неположительное окно дает сам момент now.
func randomPastTime(now time.Time, window time.Duration) time.Time {
	if window <= 0 {
		return now
	}
	return now.Add(-time.Duration(rand.Int63n(int64(window))))
}

// sampleEmotions возвращает n эмоций из словаря: сначала случайная
// перестановка без повторов, затем добор с повторами, если n больше словаря.
func sampleEmotions(vocab []string, n int) []string {
	out := make([]string, 0, n)
	for _, idx := range rand.Perm(len(vocab)) {
		if len(out) == n {
			return out
		}
		out = append(out, vocab[idx])
	}
	for len(out) < n {
		out = append(out, vocab[rand.Intn(len(vocab))])
	}
	return out
}
