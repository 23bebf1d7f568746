package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/moodtune/internal/domain"
	"gorm.io/gorm"
)

// UploadRepository persists uploaded images and the songs recommended for them.
type UploadRepository struct {
	db *gorm.DB
}

// NewUploadRepository creates a new UploadRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *UploadRepository: repository instance bound to db.
func NewUploadRepository(db *gorm.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// CreateWithRecommendations inserts an image and its recommendations in one
// transaction; either all rows are written or none.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - image: image record; its Recommendations are ignored.
//   - recs: recommendation rows, re-keyed to image.ID.
//
// Returns:
//   - error: non-nil if any insert fails.
func (r *UploadRepository) CreateWithRecommendations(ctx context.Context, image *domain.UploadedImage, recs []domain.MusicRecommendation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Recommendations").Create(image).Error; err != nil {
			return fmt.Errorf("failed to create uploaded image: %w", err)
		}
		if len(recs) == 0 {
			return nil
		}
		for i := range recs {
			recs[i].ImageID = image.ID
		}
		if err := tx.Create(&recs).Error; err != nil {
			return fmt.Errorf("failed to create recommendations: %w", err)
		}
		image.Recommendations = recs
		return nil
	})
}

// GetByID retrieves an image with its recommendations.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: image ID.
//
// Returns:
//   - *domain.UploadedImage: image with Recommendations loaded in insertion order.
//   - error: domain.ErrRecordNotFound when no such image exists.
func (r *UploadRepository) GetByID(ctx context.Context, id string) (*domain.UploadedImage, error) {
	var image domain.UploadedImage
	err := r.db.WithContext(ctx).
		Preload("Recommendations", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		First(&image, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &image, nil
}

// GetLatestByHash returns the most recent upload with the given content hash.
func (r *UploadRepository) GetLatestByHash(ctx context.Context, hash string) (*domain.UploadedImage, error) {
	var image domain.UploadedImage
	err := r.db.WithContext(ctx).
		Where("content_hash = ?", hash).
		Order("created_at DESC").
		First(&image).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &image, nil
}

// CountByEmotion returns how many processed uploads were labeled with each emotion.
func (r *UploadRepository) CountByEmotion(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		DetectedEmotion string
		Count           int64
	}
	if err := r.db.WithContext(ctx).
		Model(&domain.UploadedImage{}).
		Select("detected_emotion, COUNT(*) AS count").
		Where("status = ?", domain.UploadStatusProcessed).
		Group("detected_emotion").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.DetectedEmotion] = row.Count
	}
	return counts, nil
}
