// internal/services/storage_service.go
package services

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"

	"github.com/openbid/auction-backend/internal/config"
)

// StorageService keeps auction images and settlement evidence. Uploads land
// under a temp prefix; settlement steps promote them into the
// per-transaction namespace.
type StorageService struct {
	s3Client *s3.S3
	config   *config.Config
	localDir string
}

type UploadResult struct {
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

type UploadOptions struct {
	MaxSize      int64 // in bytes
	AllowedTypes []string
}

func NewStorageService(config *config.Config) (*StorageService, error) {
	if config.AWS.AccessKeyID == "" {
		// Local-disk storage for development
		return &StorageService{config: config, localDir: "./uploads"}, nil
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

// UploadTemp stores an uploaded file under the temp prefix and returns its
// key, later consumed by PromoteEvidence.
func (s *StorageService) UploadTemp(file multipart.File, header *multipart.FileHeader, options UploadOptions) (*UploadResult, error) {
	if options.MaxSize > 0 && header.Size > options.MaxSize {
		return nil, fmt.Errorf("file size %d bytes exceeds maximum allowed size %d bytes", header.Size, options.MaxSize)
	}

	if len(options.AllowedTypes) > 0 {
		fileExt := strings.ToLower(filepath.Ext(header.Filename))
		allowed := false
		for _, allowedType := range options.AllowedTypes {
			if fileExt == allowedType {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, fmt.Errorf("file type %s is not allowed", fileExt)
		}
	}

	key := fmt.Sprintf("temp/%d-%s%s", time.Now().UnixNano(), uuid.New().String()[:8], filepath.Ext(header.Filename))

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	contentType := header.Header.Get("Content-Type")
	if s.s3Client != nil {
		if err := s.putS3(key, fileBytes, contentType); err != nil {
			return nil, err
		}
	} else {
		if err := s.putLocal(key, fileBytes); err != nil {
			return nil, err
		}
	}

	return &UploadResult{
		Key:      key,
		Size:     header.Size,
		MimeType: contentType,
	}, nil
}

// PromoteEvidence moves a temp upload into the per-transaction namespace and
// returns the permanent key.
func (s *StorageService) PromoteEvidence(tempKey string, transactionID uuid.UUID, name string) (string, error) {
	if !strings.HasPrefix(tempKey, "temp/") {
		return "", fmt.Errorf("invalid temp key %q", tempKey)
	}

	targetKey := fmt.Sprintf("transactions/%s/%s", transactionID, name)

	if s.s3Client != nil {
		_, err := s.s3Client.CopyObject(&s3.CopyObjectInput{
			Bucket:     aws.String(s.config.AWS.S3Bucket),
			CopySource: aws.String(s.config.AWS.S3Bucket + "/" + tempKey),
			Key:        aws.String(targetKey),
		})
		if err != nil {
			return "", fmt.Errorf("failed to copy object: %w", err)
		}
		_, err = s.s3Client.DeleteObject(&s3.DeleteObjectInput{
			Bucket: aws.String(s.config.AWS.S3Bucket),
			Key:    aws.String(tempKey),
		})
		if err != nil {
			return "", fmt.Errorf("failed to delete temp object: %w", err)
		}
		return targetKey, nil
	}

	srcPath := filepath.Join(s.localDir, filepath.FromSlash(tempKey))
	dstPath := filepath.Join(s.localDir, filepath.FromSlash(targetKey))
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create evidence directory: %w", err)
	}
	if err := os.Rename(srcPath, dstPath); err != nil {
		return "", fmt.Errorf("failed to move evidence file: %w", err)
	}
	return targetKey, nil
}

func (s *StorageService) putS3(key string, fileBytes []byte, contentType string) error {
	_, err := s.s3Client.PutObject(&s3.PutObjectInput{
		Bucket:        aws.String(s.config.AWS.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(fileBytes),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(fileBytes))),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

func (s *StorageService) putLocal(key string, fileBytes []byte) error {
	path := filepath.Join(s.localDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}
	if err := os.WriteFile(path, fileBytes, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
