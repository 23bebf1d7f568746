package domain

import (
	"strings"
	"time"
)

// UploadStatus represents the processing status of an uploaded image.
// Values include UploadStatusPending, UploadStatusProcessed, and UploadStatusFailed.
type UploadStatus string

const (
	UploadStatusPending   UploadStatus = "pending"
	UploadStatusProcessed UploadStatus = "processed"
	UploadStatusFailed    UploadStatus = "failed"
)

// UploadedImage is a face photo submitted for a recommendation.
type UploadedImage struct {
	ID              string       `gorm:"type:text;primaryKey" json:"id"`
	ContentHash     string       `gorm:"type:text;index:idx_uploads_hash" json:"content_hash"`
	StorageKey      string       `gorm:"type:text" json:"storage_key,omitempty"`
	Format          string       `gorm:"type:text" json:"format"`
	FileSize        int64        `json:"file_size"`
	DetectedEmotion string       `gorm:"type:text;index:idx_uploads_emotion" json:"detected_emotion"`
	Confidence      float64      `json:"confidence"`
	Status          UploadStatus `gorm:"type:text;default:pending" json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`

	Recommendations []MusicRecommendation `gorm:"foreignKey:ImageID;constraint:OnDelete:CASCADE" json:"recommendations,omitempty"`
}

// TableName returns the database table name for UploadedImage.
func (UploadedImage) TableName() string {
	return "uploaded_images"
}

// MusicRecommendation is a song that was recommended for an uploaded image.
type MusicRecommendation struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ImageID     string    `gorm:"type:text;not null;index:idx_recs_image" json:"image_id"`
	SongTitle   string    `gorm:"type:text" json:"song_title"`
	Artist      string    `gorm:"type:text" json:"artist"`
	Mood        string    `gorm:"type:text" json:"mood"`
	PreviewURL  string    `gorm:"type:text" json:"preview_url"`
	SpotifyLink string    `gorm:"type:text" json:"spotify_link"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for MusicRecommendation.
func (MusicRecommendation) TableName() string {
	return "music_recommendations"
}

// EmbedLink derives the embeddable player link from the stored streaming link.
func (r MusicRecommendation) EmbedLink(linkBase string) string {
	id := r.SpotifyLink[strings.LastIndex(r.SpotifyLink, "/")+1:]
	return NewRecommendation(CatalogEntry{ExternalID: id}, "", linkBase).SpotifyEmbed
}
