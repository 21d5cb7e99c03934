package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ppn-portal/src/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const source = "ppn-portal"

// S3Config S3設定
type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	UseSSL          bool
}

// S3ConfigFrom converts the application settings
func S3ConfigFrom(c config.S3Config) *S3Config {
	return &S3Config{
		Endpoint:        c.Endpoint,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		Region:          c.Region,
		Bucket:          c.Bucket,
		UseSSL:          c.UseSSL,
	}
}

// Archiver stores participant exports and rotated log files in S3
type Archiver struct {
	client s3iface.S3API
	bucket string
	prefix string
	logger *logrus.Logger
	now    func() time.Time
}

// NewArchiver S3アーカイバを作成
func NewArchiver(config *S3Config, prefix string, logger *logrus.Logger) (*Archiver, error) {
	awsConfig := &aws.Config{
		Region:           aws.String(config.Region),
		Credentials:      credentials.NewStaticCredentials(config.AccessKeyID, config.SecretAccessKey, ""),
		DisableSSL:       aws.Bool(!config.UseSSL),
		S3ForcePathStyle: aws.Bool(true), // MinIOなどのS3互換ストレージ用
	}

	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("AWSセッションの作成に失敗: %w", err)
	}

	return NewArchiverWithClient(s3.New(sess), config.Bucket, prefix, logger), nil
}

// NewArchiverWithClient 既存のS3クライアントでアーカイバを作成
func NewArchiverWithClient(client s3iface.S3API, bucket, prefix string, logger *logrus.Logger) *Archiver {
	return &Archiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
		now:    time.Now,
	}
}

// ExportKey returns the object key of a participants export
func (a *Archiver) ExportKey(experimentID int, at time.Time, id uuid.UUID) string {
	name := fmt.Sprintf("%s-%s.csv", at.UTC().Format("20060102T150405Z"), id)
	if a.prefix == "" {
		return fmt.Sprintf("experiment-%d/%s", experimentID, name)
	}
	return fmt.Sprintf("%s/experiment-%d/%s", a.prefix, experimentID, name)
}

// ArchiveExport 参加者CSVをS3に保存し、オブジェクトキーを返す
func (a *Archiver) ArchiveExport(ctx context.Context, experimentID int, data []byte) (string, error) {
	at := a.now()
	key := a.ExportKey(experimentID, at, uuid.New())

	if err := a.put(ctx, key, bytes.NewReader(data), "text/csv; charset=utf-8", at); err != nil {
		return "", err
	}

	a.logger.WithFields(logrus.Fields{
		"experiment_id": experimentID,
		"bucket":        a.bucket,
		"key":           key,
		"size":          len(data),
	}).Info("参加者エクスポートをS3に保存しました")
	return key, nil
}

// UploadLogFile ログファイルをS3にアップロード
func (a *Archiver) UploadLogFile(ctx context.Context, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("ファイルの読み込みに失敗: %w", err)
	}
	defer file.Close()

	fileName := filepath.Base(filePath)
	objectKey := "logs/" + fileName

	if err := a.put(ctx, objectKey, file, "text/plain", a.now()); err != nil {
		return err
	}

	a.logger.WithFields(logrus.Fields{
		"file":   fileName,
		"bucket": a.bucket,
		"key":    objectKey,
	}).Info("ログファイルをS3にアップロードしました")
	return nil
}

// UploadOldLogs 古いログファイルをアップロードして削除。
// 現在書き込み中のファイルは対象外。
func (a *Archiver) UploadOldLogs(ctx context.Context, logDir, current string, maxAge time.Duration) error {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return fmt.Errorf("ログディレクトリの読み取りに失敗: %w", err)
	}

	cutoffTime := a.now().Add(-maxAge)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}

		filePath := filepath.Join(logDir, entry.Name())
		if current != "" && filepath.Clean(filePath) == filepath.Clean(current) {
			continue
		}

		fileInfo, err := entry.Info()
		if err != nil {
			a.logger.WithError(err).WithField("file", entry.Name()).Error("ファイル情報の取得に失敗")
			continue
		}
		if !fileInfo.ModTime().Before(cutoffTime) {
			continue
		}

		if err := a.UploadLogFile(ctx, filePath); err != nil {
			a.logger.WithError(err).WithField("file", entry.Name()).Error("ログファイルのアップロードに失敗")
			continue
		}

		if err := os.Remove(filePath); err != nil {
			a.logger.WithError(err).WithField("file", entry.Name()).Error("ローカルファイルの削除に失敗")
		}
	}

	return nil
}

// StartPeriodicUpload 定期的なアップロードを開始。ctxの終了で停止する。
func (a *Archiver) StartPeriodicUpload(ctx context.Context, logDir string, current func() string, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := a.UploadOldLogs(ctx, logDir, current(), maxAge); err != nil {
					a.logger.WithError(err).Error("定期的なログアップロードに失敗")
				}
			}
		}
	}()

	a.logger.WithFields(logrus.Fields{
		"interval": interval,
		"maxAge":   maxAge,
	}).Info("定期的なログアップロードを開始しました")
}

func (a *Archiver) put(ctx context.Context, key string, body io.ReadSeeker, contentType string, at time.Time) error {
	_, err := a.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
		Metadata: map[string]*string{
			"upload-time": aws.String(at.UTC().Format(time.RFC3339)),
			"source":      aws.String(source),
		},
	})
	if err != nil {
		return fmt.Errorf("S3アップロードに失敗: %w", err)
	}
	return nil
}
