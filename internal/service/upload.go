package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/timmy/moodtune/internal/domain"
	"github.com/timmy/moodtune/internal/logger"
	"github.com/timmy/moodtune/internal/pipeline"
	"github.com/timmy/moodtune/internal/repository"
	"github.com/timmy/moodtune/internal/storage"
)

// allowedImageTypes are the MIME types the decoder understands.
var allowedImageTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/bmp",
	"image/tiff",
}

// UploadService handles face photo uploads end to end: sniffing, the
// recommendation pipeline, object storage and persistence.
type UploadService struct {
	pipeline     *pipeline.Pipeline
	repo         *repository.UploadRepository
	storage      storage.ObjectStorage
	uploadPrefix string
	maxBytes     int64
	linkBase     string
}

// UploadConfig holds configuration for the upload service
type UploadConfig struct {
	UploadPrefix string
	MaxBytes     int64
	LinkBase     string
}

// UploadResult is the outcome of one upload.
type UploadResult struct {
	// ImageID is the persisted upload; for a cached result it is the most
	// recent earlier upload of the same bytes, if any.
	ImageID string
	Result  *pipeline.Result
}

// NewUploadService creates a new upload service.
// Parameters:
//   - p: recommendation pipeline.
//   - repo: upload repository.
//   - objectStorage: image storage; nil disables storing uploads.
//   - cfg: limits and link settings.
//
// Returns:
//   - *UploadService: service safe for concurrent use.
func NewUploadService(
	p *pipeline.Pipeline,
	repo *repository.UploadRepository,
	objectStorage storage.ObjectStorage,
	cfg *UploadConfig,
) *UploadService {
	return &UploadService{
		pipeline:     p,
		repo:         repo,
		storage:      objectStorage,
		uploadPrefix: cfg.UploadPrefix,
		maxBytes:     cfg.MaxBytes,
		linkBase:     cfg.LinkBase,
	}
}

// SniffImage checks that data is an image type the pipeline can decode.
// Returns the MIME type and the file extension without the dot.
func SniffImage(data []byte) (string, string, error) {
	if len(data) == 0 {
		return "", "", fmt.Errorf("%w: empty upload", domain.ErrInvalidImage)
	}
	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), allowedImageTypes...) {
		return "", "", fmt.Errorf("%w: %s", domain.ErrUnsupportedImage, mt.String())
	}
	return mt.String(), strings.TrimPrefix(mt.Extension(), "."), nil
}

// Upload runs the pipeline on data and records the result.
// A fingerprint cache hit is returned with the image ID of the earlier
// upload and not persisted again. The fingerprint cache is written only
// after the upload is saved, so a failed save is retried in full.
func (s *UploadService) Upload(ctx context.Context, data []byte) (*UploadResult, error) {
	start := time.Now()

	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", domain.ErrInvalidImage, len(data), s.maxBytes)
	}
	contentType, format, err := SniffImage(data)
	if err != nil {
		return nil, err
	}

	logger.With(logger.Fields{
		logger.FieldSize: len(data),
		"content_type":   contentType,
	}).Info(ctx, "Received image")

	res, err := s.pipeline.Evaluate(ctx, data)
	if err != nil {
		return nil, err
	}

	if res.Cached {
		prev, err := s.repo.GetLatestByHash(ctx, res.Fingerprint)
		switch {
		case err == nil:
			return &UploadResult{ImageID: prev.ID, Result: res}, nil
		case errors.Is(err, domain.ErrRecordNotFound):
			// Cached by another writer of the shared result store; record it here.
			logger.CtxInfo(ctx, "Cached result has no recorded upload, saving it")
		default:
			return nil, fmt.Errorf("failed to look up previous upload: %w", err)
		}
	}

	id := uuid.New().String()
	ctx = logger.WithField(ctx, logger.FieldImageID, id)

	image := &domain.UploadedImage{
		ID:              id,
		ContentHash:     res.Fingerprint,
		Format:          format,
		FileSize:        int64(len(data)),
		DetectedEmotion: res.Emotion.String(),
		Confidence:      res.Confidence,
		Status:          domain.UploadStatusProcessed,
	}
	image.StorageKey = s.storeImage(ctx, id, format, contentType, data)

	recs := make([]domain.MusicRecommendation, 0, len(res.Recommendations))
	for _, r := range res.Recommendations {
		recs = append(recs, domain.MusicRecommendation{
			SongTitle:   r.SongTitle,
			Artist:      r.Artist,
			Mood:        r.Mood,
			PreviewURL:  r.PreviewURL,
			SpotifyLink: r.SpotifyLink,
		})
	}

	if err := s.repo.CreateWithRecommendations(ctx, image, recs); err != nil {
		return nil, fmt.Errorf("failed to save recommendations: %w", err)
	}
	s.pipeline.CacheResult(ctx, res)

	logger.Since(start).WithField(logger.FieldCount, len(recs)).Info(ctx, "Saved %d recommendations", len(recs))

	return &UploadResult{ImageID: id, Result: res}, nil
}

// storeImage uploads the image when storage is enabled. Failures are logged;
// the upload still succeeds without a storage key.
func (s *UploadService) storeImage(ctx context.Context, id, format, contentType string, data []byte) string {
	if s.storage == nil {
		return ""
	}
	key := storage.ImageKey(s.uploadPrefix, id, format)
	if err := s.storage.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("key", key).Warn("Failed to store uploaded image")
		return ""
	}
	return key
}

// StoredUpload is a persisted upload with its recommendations.
type StoredUpload struct {
	ImageID string
	Emotion string
	// ImageURL is empty when the image was not written to object storage.
	ImageURL        string
	Recommendations []domain.Recommendation
}

// Recommendations returns the songs stored for an upload.
// Parameters:
//   - ctx: request context.
//   - imageID: upload ID.
//
// Returns:
//   - *StoredUpload: the upload with stored songs and derived embed links.
//   - error: domain.ErrRecordNotFound for an unknown upload.
func (s *UploadService) Recommendations(ctx context.Context, imageID string) (*StoredUpload, error) {
	image, err := s.repo.GetByID(ctx, imageID)
	if err != nil {
		return nil, err
	}

	recs := make([]domain.Recommendation, 0, len(image.Recommendations))
	for _, r := range image.Recommendations {
		recs = append(recs, domain.Recommendation{
			SongTitle:    r.SongTitle,
			Artist:       r.Artist,
			PreviewURL:   r.PreviewURL,
			SpotifyLink:  r.SpotifyLink,
			SpotifyEmbed: r.EmbedLink(s.linkBase),
			Emotion:      image.DetectedEmotion,
			Mood:         r.Mood,
		})
	}
	return &StoredUpload{
		ImageID:         image.ID,
		Emotion:         image.DetectedEmotion,
		ImageURL:        s.ImageURL(image),
		Recommendations: recs,
	}, nil
}

// ImageURL returns the public URL of a stored upload, or "" when the upload
// was not stored.
func (s *UploadService) ImageURL(image *domain.UploadedImage) string {
	if s.storage == nil || image.StorageKey == "" {
		return ""
	}
	return s.storage.GetURL(image.StorageKey)
}

// EmotionStats returns processed upload counts for every known emotion,
// zero included. Rows with a label outside the known set are skipped.
func (s *UploadService) EmotionStats(ctx context.Context) (map[string]int64, error) {
	counts, err := s.repo.CountByEmotion(ctx)
	if err != nil {
		return nil, err
	}

	stats := make(map[string]int64, len(domain.Emotions))
	for _, e := range domain.Emotions {
		stats[e.String()] = 0
	}
	for label, n := range counts {
		e, ok := domain.ParseEmotion(label)
		if !ok {
			logger.FromContext(ctx).WithField(logger.FieldEmotion, label).Warn("Skipping unknown emotion in stats")
			continue
		}
		stats[e.String()] += n
	}
	return stats, nil
}
