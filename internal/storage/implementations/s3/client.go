package s3

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/pkg/errors"
	"github.com/inferloop/patternscope/pkg/models"
)

// archiveVersion is bumped when Archive changes shape.
const archiveVersion = "1.0"

// Archive is the object stored for one detection run.
type Archive struct {
	RunID     string                  `json:"run_id"`
	Version   string                  `json:"version"`
	CreatedAt time.Time               `json:"created_at"`
	Result    *models.DetectionResult `json:"result"`
}

// S3Archive writes detection results to S3 as (optionally gzipped) JSON.
type S3Archive struct {
	config   *config.S3Config
	s3Client *s3.S3
	uploader *s3manager.Uploader
	logger   *logrus.Logger
	mu       sync.RWMutex
	now      func() time.Time
	newID    func() uuid.UUID
}

// NewS3Archive creates an archive; call Connect before use.
func NewS3Archive(cfg *config.S3Config, logger *logrus.Logger) (*S3Archive, error) {
	if cfg == nil {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig, "S3 config cannot be nil")
	}

	if cfg.Bucket == "" {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig, "S3 bucket is required")
	}

	if logger == nil {
		logger = logrus.New()
	}

	return &S3Archive{
		config: cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.New,
	}, nil
}

// Connect creates the session and checks the bucket is reachable.
func (s *S3Archive) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.s3Client != nil {
		return nil // Already connected
	}

	awsConfig := &aws.Config{
		Region: aws.String(s.config.Region),
	}

	// Set credentials if provided
	if s.config.AccessKeyID != "" && s.config.SecretAccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			s.config.AccessKeyID,
			s.config.SecretAccessKey,
			"",
		)
	}

	// Set custom endpoint if provided (for S3-compatible services)
	if s.config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(s.config.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(s.config.ForcePathStyle)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed, "Failed to create AWS session")
	}

	client := s3.New(sess)

	headCtx := ctx
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		headCtx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	if _, err := client.HeadBucketWithContext(headCtx, &s3.HeadBucketInput{
		Bucket: aws.String(s.config.Bucket),
	}); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed,
			fmt.Sprintf("Failed to access bucket '%s'", s.config.Bucket))
	}

	s.s3Client = client
	s.uploader = s3manager.NewUploaderWithClient(client)

	s.logger.WithFields(logrus.Fields{
		"region": s.config.Region,
		"bucket": s.config.Bucket,
	}).Info("Connected to S3")

	return nil
}

// Close drops the client.
func (s *S3Archive) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.s3Client = nil
	s.uploader = nil
	return nil
}

// PersistResults uploads result under a date-partitioned key.
func (s *S3Archive) PersistResults(ctx context.Context, result *models.DetectionResult) error {
	if result == nil {
		return errors.NewValidationError(errors.CodeInvalidInput, "Detection result cannot be nil")
	}

	s.mu.RLock()
	uploader := s.uploader
	s.mu.RUnlock()

	if uploader == nil {
		return errors.NewStorageError(errors.CodeNotConnected, "S3 not connected")
	}

	archive := Archive{
		RunID:     s.newID().String(),
		Version:   archiveVersion,
		CreatedAt: s.now(),
		Result:    result,
	}

	body, err := encode(archive, s.config.UseCompression)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "Failed to encode detection result")
	}

	key := ObjectKey(s.config.Prefix, archive.RunID, archive.CreatedAt, s.config.UseCompression)
	input := &s3manager.UploadInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]*string{
			"run-id":   aws.String(archive.RunID),
			"success":  aws.String(strconv.FormatBool(result.Success)),
			"patterns": aws.String(strconv.Itoa(len(result.Patterns))),
		},
	}
	if s.config.UseCompression {
		input.ContentEncoding = aws.String("gzip")
	}

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	if _, err := uploader.UploadWithContext(ctx, input); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "Failed to upload to S3")
	}

	s.logger.WithFields(logrus.Fields{
		"bucket": s.config.Bucket,
		"key":    key,
		"bytes":  len(body),
	}).Info("Archived detection result to S3")

	return nil
}

// ObjectKey returns prefix/YYYY/MM/DD/<run id>.json[.gz].
func ObjectKey(prefix, runID string, at time.Time, compressed bool) string {
	name := runID + ".json"
	if compressed {
		name += ".gz"
	}
	return path.Join(prefix, at.UTC().Format("2006/01/02"), name)
}

func encode(archive Archive, compress bool) ([]byte, error) {
	data, err := json.Marshal(archive)
	if err != nil {
		return nil, err
	}
	if !compress {
		return data, nil
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
