package storefront

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/storage"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Upload errors
var (
	ErrUploadEmpty       = shared.NewDomainError("INVALID_INPUT", "Uploaded file is empty")
	ErrUploadTooLarge    = shared.NewDomainError("FILE_TOO_LARGE", "Uploaded file exceeds the size limit")
	ErrUploadType        = shared.NewDomainError("UNSUPPORTED_MEDIA_TYPE", "Only image uploads are accepted")
	ErrUploadUnavailable = shared.NewDomainError("STORAGE_DISABLED", "Image storage is not configured")
)

// DefaultAllowedTypes are accepted when no list is configured
var DefaultAllowedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// UploadMetrics records upload outcomes
type UploadMetrics interface {
	RecordUpload(ctx context.Context, contentType string, ok bool)
}

// UploadOptions configures UploadService
type UploadOptions struct {
	MaxSize       int64
	AllowedTypes  []string
	KeyPrefix     string
	PresignExpiry time.Duration
}

// UploadService stores product images and returns presigned links
type UploadService struct {
	store   storage.ObjectStorage
	opts    UploadOptions
	metrics UploadMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewUploadService creates an UploadService. store may be nil when storage
// is disabled; uploads then fail with ErrUploadUnavailable.
func NewUploadService(store storage.ObjectStorage, opts UploadOptions, metrics UploadMetrics, logger *zap.Logger) *UploadService {
	if opts.MaxSize <= 0 {
		opts.MaxSize = 5 << 20
	}
	if len(opts.AllowedTypes) == 0 {
		opts.AllowedTypes = DefaultAllowedTypes
	}
	if opts.PresignExpiry <= 0 {
		opts.PresignExpiry = storage.DefaultPresignExpiry
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadService{
		store:   store,
		opts:    opts,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// MaxSize returns the upload limit in bytes
func (s *UploadService) MaxSize() int64 {
	return s.opts.MaxSize
}

// Upload reads at most MaxSize bytes from r, checks the sniffed content
// type and stores the image.
func (s *UploadService) Upload(ctx context.Context, r io.Reader) (res *UploadResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "storefront", "UploadImage")
	contentType := ""
	defer func() {
		telemetry.EndSpan(span, err)
		if s.metrics != nil && contentType != "" {
			s.metrics.RecordUpload(ctx, contentType, err == nil)
		}
	}()

	if s.store == nil {
		return nil, ErrUploadUnavailable
	}

	data, err := io.ReadAll(io.LimitReader(r, s.opts.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrUploadEmpty
	}
	if int64(len(data)) > s.opts.MaxSize {
		return nil, ErrUploadTooLarge
	}

	contentType = sniffContentType(data)
	if !slices.Contains(s.opts.AllowedTypes, contentType) {
		return nil, ErrUploadType
	}

	key := s.objectKey(contentType)
	span.SetAttributes(telemetry.SpanAttrObjectKey.String(key))
	if err := s.store.Put(ctx, key, data, contentType); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}
	url, expiresAt, err := s.store.PresignGet(ctx, key, s.opts.PresignExpiry)
	if err != nil {
		return nil, fmt.Errorf("presign image: %w", err)
	}

	s.logger.Info("Image uploaded",
		zap.String("key", key),
		zap.String("content_type", contentType),
		zap.Int("size", len(data)))
	return &UploadResult{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		URL:         url,
		ExpiresAt:   expiresAt,
	}, nil
}

// objectKey builds "<prefix>products/2026/10/18/<uuid>.png"
func (s *UploadService) objectKey(contentType string) string {
	day := s.now().UTC().Format("2006/01/02")
	return strings.TrimPrefix(path.Join(s.opts.KeyPrefix, "products", day, uuid.NewString()+extensions[contentType]), "/")
}

func sniffContentType(data []byte) string {
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}
