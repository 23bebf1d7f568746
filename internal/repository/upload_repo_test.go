package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/timmy/moodtune/internal/config"
	"github.com/timmy/moodtune/internal/domain"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := InitDB(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "data", "test.db"),
		AutoMigrate: true,
	})
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	t.Cleanup(func() { Close(db) })
	return db
}

func sampleRecs() []domain.MusicRecommendation {
	return []domain.MusicRecommendation{
		{SongTitle: "Walking on Sunshine", Artist: "Katrina", Mood: "happy", SpotifyLink: "https://open.spotify.com/track/a1"},
		{SongTitle: "Happy", Artist: "Pharrell", Mood: "happy", SpotifyLink: "https://open.spotify.com/track/b2"},
	}
}

func TestUploadRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewUploadRepository(newTestDB(t))

	image := &domain.UploadedImage{
		ID:              "img-1",
		ContentHash:     "abc",
		Format:          "png",
		FileSize:        1024,
		DetectedEmotion: "happy",
		Confidence:      0.91,
		Status:          domain.UploadStatusProcessed,
	}
	if err := repo.CreateWithRecommendations(ctx, image, sampleRecs()); err != nil {
		t.Fatalf("CreateWithRecommendations() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "img-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.DetectedEmotion != "happy" || got.Status != domain.UploadStatusProcessed {
		t.Errorf("GetByID() = %+v", got)
	}
	if len(got.Recommendations) != 2 {
		t.Fatalf("len(Recommendations) = %d, want 2", len(got.Recommendations))
	}
	if got.Recommendations[0].SongTitle != "Walking on Sunshine" || got.Recommendations[1].ImageID != "img-1" {
		t.Errorf("Recommendations = %+v", got.Recommendations)
	}
}

func TestUploadRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewUploadRepository(newTestDB(t))

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("GetByID() error = %v, want ErrRecordNotFound", err)
	}
	if _, err := repo.GetLatestByHash(ctx, "missing"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("GetLatestByHash() error = %v, want ErrRecordNotFound", err)
	}
}

func TestUploadRepository_TransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := NewUploadRepository(newTestDB(t))

	first := &domain.UploadedImage{ID: "dup", Status: domain.UploadStatusProcessed}
	if err := repo.CreateWithRecommendations(ctx, first, nil); err != nil {
		t.Fatalf("first create error = %v", err)
	}

	// Same primary key: the image insert fails, so no recommendation may remain.
	second := &domain.UploadedImage{ID: "dup", Status: domain.UploadStatusProcessed}
	if err := repo.CreateWithRecommendations(ctx, second, sampleRecs()); err == nil {
		t.Fatal("duplicate create succeeded")
	}

	var count int64
	if err := repo.db.Model(&domain.MusicRecommendation{}).Where("image_id = ?", "dup").Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("%d recommendations survived a failed transaction", count)
	}
}

func TestUploadRepository_GetLatestByHashAndCounts(t *testing.T) {
	ctx := context.Background()
	repo := NewUploadRepository(newTestDB(t))

	uploads := []*domain.UploadedImage{
		{ID: "a", ContentHash: "h1", DetectedEmotion: "happy", Status: domain.UploadStatusProcessed},
		{ID: "b", ContentHash: "h2", DetectedEmotion: "sad", Status: domain.UploadStatusProcessed},
		{ID: "c", ContentHash: "h1", DetectedEmotion: "happy", Status: domain.UploadStatusProcessed},
		{ID: "d", ContentHash: "h3", DetectedEmotion: "", Status: domain.UploadStatusFailed},
	}
	for _, u := range uploads {
		if err := repo.CreateWithRecommendations(ctx, u, nil); err != nil {
			t.Fatalf("create %s: %v", u.ID, err)
		}
	}

	got, err := repo.GetLatestByHash(ctx, "h1")
	if err != nil {
		t.Fatalf("GetLatestByHash() error = %v", err)
	}
	if got.ContentHash != "h1" {
		t.Errorf("GetLatestByHash() = %+v", got)
	}

	counts, err := repo.CountByEmotion(ctx)
	if err != nil {
		t.Fatalf("CountByEmotion() error = %v", err)
	}
	if counts["happy"] != 2 || counts["sad"] != 1 || len(counts) != 2 {
		t.Errorf("CountByEmotion() = %v", counts)
	}
}

func TestMusicRecommendation_EmbedLink(t *testing.T) {
	rec := domain.MusicRecommendation{SpotifyLink: "https://open.spotify.com/track/xyz"}
	if got := rec.EmbedLink(""); got != "https://open.spotify.com/embed/track/xyz" {
		t.Errorf("EmbedLink() = %q", got)
	}
}
