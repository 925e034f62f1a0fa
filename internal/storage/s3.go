package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"

	appconfig "dialogue-server/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// Uploader выгружает сериализованный артефакт во внешнее хранилище
// и возвращает URI объекта.
type Uploader interface {
	Upload(ctx context.Context, filename string, body []byte) (string, error)
}

// S3Uploader выгружает сериализованные артефакты в бакет объектного
// хранилища под заданным префиксом ключа. Ошибки выгрузки сообщаются
// вызывающему, повторов нет.
type S3Uploader struct {
	client *s3.Client
	bucket string
	prefix string
	log    *zap.Logger
}

// NewS3Uploader создает клиента S3. Креденшелы берутся из стандартной
// цепочки AWS SDK (переменные окружения AWS_ACCESS_KEY_ID и т.д.).
func NewS3Uploader(ctx context.Context, cfg *appconfig.Config, logger *zap.Logger) (*S3Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию AWS: %w", err)
	}

	return &S3Uploader{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.S3Bucket,
		prefix: cfg.S3KeyPrefix,
		log:    logger,
	}, nil
}

// Upload выполняет PutObject и возвращает итоговый URI объекта.
func (u *S3Uploader) Upload(ctx context.Context, filename string, body []byte) (string, error) {
	key := path.Join(u.prefix, filename)

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		u.log.Error("Ошибка выгрузки в S3", zap.String("bucket", u.bucket), zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("ошибка выгрузки в s3://%s/%s: %w", u.bucket, key, err)
	}

	uri := fmt.Sprintf("s3://%s/%s", u.bucket, key)
	u.log.Info("Артефакт выгружен в S3", zap.String("uri", uri), zap.Int("bytes", len(body)))
	return uri, nil
}

var _ Uploader = (*S3Uploader)(nil)
