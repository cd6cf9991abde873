// internal/services/storage_service.go
package services

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"

	"github.com/smartstudy/marketplace-backend/internal/apperrors"
	"github.com/smartstudy/marketplace-backend/internal/config"
)

// StorageService is the content-store boundary: unit files live in S3 and
// the catalog only keeps their references. Access-checked downloads go
// through short-lived presigned URLs.
type StorageService struct {
	s3Client *s3.S3
	config   *config.Config
}

type UploadResult struct {
	Key      string `json:"key"`
	FileName string `json:"file_name"`
	Size     int64  `json:"size"`
	FileType string `json:"file_type"`
}

const presignedURLTTL = 15 * time.Minute

var allowedUnitExtensions = []string{".pdf", ".docx", ".doc", ".pptx", ".txt"}

func NewStorageService(config *config.Config) (*StorageService, error) {
	if config.AWS.AccessKeyID == "" {
		// Return service without S3 for local development
		return &StorageService{config: config}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(config.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			config.AWS.AccessKeyID,
			config.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		config:   config,
	}, nil
}

// UploadUnitFile stores one unit's content and returns the reference the
// catalog persists.
func (s *StorageService) UploadUnitFile(file multipart.File, header *multipart.FileHeader, resourceID uuid.UUID, unitNumber int) (*UploadResult, error) {
	fileExt := strings.ToLower(filepath.Ext(header.Filename))
	allowed := false
	for _, ext := range allowedUnitExtensions {
		if fileExt == ext {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, apperrors.Newf(apperrors.KindValidation, "file type %s is not allowed", fileExt)
	}

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	key := fmt.Sprintf("resources/%s/unit%d/%s%s", resourceID, unitNumber, uuid.New().String(), fileExt)

	if s.s3Client != nil {
		params := &s3.PutObjectInput{
			Bucket:        aws.String(s.config.AWS.S3Bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(fileBytes),
			ContentType:   aws.String(header.Header.Get("Content-Type")),
			ContentLength: aws.Int64(int64(len(fileBytes))),
		}

		if _, err := s.s3Client.PutObject(params); err != nil {
			return nil, fmt.Errorf("failed to upload to S3: %w", err)
		}
	}

	return &UploadResult{
		Key:      key,
		FileName: header.Filename,
		Size:     int64(len(fileBytes)),
		FileType: strings.TrimPrefix(fileExt, "."),
	}, nil
}

// PresignedDownloadURL returns a short-lived URL for one content object.
func (s *StorageService) PresignedDownloadURL(key, fileName string) (string, error) {
	if s.s3Client == nil {
		// Local development serves uploads straight from the app
		return fmt.Sprintf("http://%s:%s/uploads/%s", s.config.Server.Host, s.config.Server.Port, key), nil
	}

	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket:                     aws.String(s.config.AWS.S3Bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", fileName)),
	})

	url, err := req.Presign(presignedURLTTL)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url, nil
}

func (s *StorageService) DeleteFile(key string) error {
	if s.s3Client == nil {
		return nil
	}

	_, err := s.s3Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}

	return nil
}
