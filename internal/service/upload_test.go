package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/timmy/moodtune/internal/config"
	"github.com/timmy/moodtune/internal/domain"
	"github.com/timmy/moodtune/internal/emotion"
	"github.com/timmy/moodtune/internal/pipeline"
	"github.com/timmy/moodtune/internal/repository"
	"github.com/timmy/moodtune/internal/storage"
	"github.com/timmy/moodtune/internal/vision"
	"gorm.io/gorm"
)

type catalogString string

func (c catalogString) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(string(c))), nil
}

func (c catalogString) Name() string { return "test" }

func testCatalog() catalogString {
	var b strings.Builder
	b.WriteString("name,artist,id,mood\n")
	for i := 0; i < 12; i++ {
		mood := "happy"
		if i%2 == 1 {
			mood = "chill"
		}
		fmt.Fprintf(&b, "Song %d,Artist %d,t%d,%s\n", i, i, i, mood)
	}
	return catalogString(b.String())
}

func newTestService(t *testing.T, objects storage.ObjectStorage, faces []image.Rectangle) *UploadService {
	t.Helper()
	svc, _ := newTestServiceWithDB(t, objects, faces)
	return svc
}

func newTestServiceWithDB(t *testing.T, objects storage.ObjectStorage, faces []image.Rectangle) (*UploadService, *gorm.DB) {
	t.Helper()

	rt, err := pipeline.NewRuntime(pipeline.Deps{
		Detector: vision.DetectorFunc(func(*image.Gray) []image.Rectangle { return faces }),
		ModelLoader: emotion.LoaderFunc(func(context.Context) (emotion.Model, error) {
			return emotion.ModelFunc(func(context.Context, emotion.Tensor) ([]float32, error) {
				return []float32{0, 0, 0, 0.9, 0.1, 0, 0}, nil
			}), nil
		}),
		CatalogSource: testCatalog(),
	}, pipeline.DefaultSettings())
	if err != nil {
		t.Fatalf("NewRuntime() error = %v", err)
	}
	t.Cleanup(func() { rt.Close() })

	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "test.db"),
		AutoMigrate: true,
	})
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	t.Cleanup(func() { repository.Close(db) })

	svc := NewUploadService(pipeline.New(rt), repository.NewUploadRepository(db), objects, &UploadConfig{
		UploadPrefix: "uploads/",
		MaxBytes:     1 << 20,
		LinkBase:     domain.DefaultLinkBase,
	})
	return svc, db
}

func pngBytes(t *testing.T, seed uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: seed, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

var oneFace = []image.Rectangle{image.Rect(20, 20, 80, 80)}

func TestSniffImage(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantExt string
		wantErr error
	}{
		{name: "png", data: pngBytes(t, 1), wantExt: "png"},
		{name: "empty", data: nil, wantErr: domain.ErrInvalidImage},
		{name: "text", data: []byte("hello, not an image"), wantErr: domain.ErrUnsupportedImage},
		{name: "pdf", data: []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n"), wantErr: domain.ErrUnsupportedImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ext, err := SniffImage(tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SniffImage() error = %v, want %v", err, tt.wantErr)
				}
				if !errors.Is(err, domain.ErrInvalidImage) {
					t.Errorf("error %v does not match ErrInvalidImage", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SniffImage() error = %v", err)
			}
			if ext != tt.wantExt {
				t.Errorf("ext = %q, want %q", ext, tt.wantExt)
			}
		})
	}
}

func TestUploadService_Upload(t *testing.T) {
	objects := storage.NewMemoryStorage("https://cdn.example.com")
	svc := newTestService(t, objects, oneFace)
	ctx := context.Background()

	out, err := svc.Upload(ctx, pngBytes(t, 1))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if out.ImageID == "" {
		t.Fatal("Upload() returned no image ID")
	}
	if out.Result.Emotion != domain.EmotionHappy || len(out.Result.Recommendations) != 5 {
		t.Errorf("result = %s with %d songs", out.Result.Emotion, len(out.Result.Recommendations))
	}

	key := storage.ImageKey("uploads/", out.ImageID, "png")
	if ok, _ := objects.Exists(ctx, key); !ok {
		t.Errorf("image not stored under %s", key)
	}

	stored, err := svc.Recommendations(ctx, out.ImageID)
	if err != nil {
		t.Fatalf("Recommendations() error = %v", err)
	}
	if stored.ImageURL != "https://cdn.example.com/"+key || stored.Emotion != "happy" {
		t.Errorf("stored upload = %s/%s", stored.ImageURL, stored.Emotion)
	}
	recs := stored.Recommendations
	if len(recs) != 5 {
		t.Fatalf("stored %d recommendations, want 5", len(recs))
	}
	for i, r := range recs {
		if r.Emotion != "happy" || r.Mood != "happy" {
			t.Errorf("recs[%d] = %s/%s", i, r.Emotion, r.Mood)
		}
		if r.SpotifyLink != out.Result.Recommendations[i].SpotifyLink {
			t.Errorf("recs[%d] link = %s, want %s", i, r.SpotifyLink, out.Result.Recommendations[i].SpotifyLink)
		}
		if r.SpotifyEmbed != out.Result.Recommendations[i].SpotifyEmbed {
			t.Errorf("recs[%d] embed = %s, want %s", i, r.SpotifyEmbed, out.Result.Recommendations[i].SpotifyEmbed)
		}
	}

	stats, err := svc.EmotionStats(ctx)
	if err != nil {
		t.Fatalf("EmotionStats() error = %v", err)
	}
	if stats["happy"] != 1 {
		t.Errorf("stats = %v, want happy:1", stats)
	}
	if len(stats) != len(domain.Emotions) || stats["sad"] != 0 {
		t.Errorf("stats = %v, want every emotion listed", stats)
	}
}

func TestUploadService_FailedSaveIsNotCached(t *testing.T) {
	svc, db := newTestServiceWithDB(t, nil, oneFace)
	ctx := context.Background()
	data := pngBytes(t, 4)

	if err := db.Migrator().DropTable(&domain.MusicRecommendation{}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Upload(ctx, data); err == nil {
		t.Fatal("Upload() succeeded without a recommendations table")
	}

	if err := db.AutoMigrate(&domain.MusicRecommendation{}); err != nil {
		t.Fatal(err)
	}
	retry, err := svc.Upload(ctx, data)
	if err != nil {
		t.Fatalf("retry Upload() error = %v", err)
	}
	if retry.Result.Cached {
		t.Error("retry served from the fingerprint cache after a failed save")
	}
	if retry.ImageID == "" {
		t.Fatal("retry returned no image ID")
	}
	if _, err := svc.Recommendations(ctx, retry.ImageID); err != nil {
		t.Errorf("Recommendations() after retry error = %v", err)
	}

	stats, err := svc.EmotionStats(ctx)
	if err != nil {
		t.Fatalf("EmotionStats() error = %v", err)
	}
	if stats["happy"] != 1 {
		t.Errorf("stats = %v, want one persisted upload", stats)
	}
}

func TestUploadService_CachedUploadIsNotPersistedTwice(t *testing.T) {
	svc := newTestService(t, nil, oneFace)
	ctx := context.Background()
	data := pngBytes(t, 2)

	first, err := svc.Upload(ctx, data)
	if err != nil {
		t.Fatalf("first Upload() error = %v", err)
	}
	second, err := svc.Upload(ctx, data)
	if err != nil {
		t.Fatalf("second Upload() error = %v", err)
	}
	if !second.Result.Cached {
		t.Error("second upload was not served from the fingerprint cache")
	}
	if second.ImageID != first.ImageID {
		t.Errorf("cached ImageID = %q, want %q", second.ImageID, first.ImageID)
	}

	stats, err := svc.EmotionStats(ctx)
	if err != nil {
		t.Fatalf("EmotionStats() error = %v", err)
	}
	if stats["happy"] != 1 {
		t.Errorf("stats = %v, want one persisted upload", stats)
	}
}

func TestUploadService_Errors(t *testing.T) {
	tests := []struct {
		name    string
		faces   []image.Rectangle
		data    func(t *testing.T) []byte
		wantErr error
	}{
		{
			name:    "no face",
			faces:   nil,
			data:    func(t *testing.T) []byte { return pngBytes(t, 3) },
			wantErr: domain.ErrFaceNotFound,
		},
		{
			name:    "not an image",
			faces:   oneFace,
			data:    func(*testing.T) []byte { return []byte("plain text body") },
			wantErr: domain.ErrUnsupportedImage,
		},
		{
			name:    "too large",
			faces:   oneFace,
			data:    func(*testing.T) []byte { return make([]byte, 2<<20) },
			wantErr: domain.ErrInvalidImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, nil, tt.faces)
			ctx := context.Background()

			_, err := svc.Upload(ctx, tt.data(t))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Upload() error = %v, want %v", err, tt.wantErr)
			}
			stats, err := svc.EmotionStats(ctx)
			if err != nil {
				t.Fatalf("EmotionStats() error = %v", err)
			}
			for label, n := range stats {
				if n != 0 {
					t.Errorf("failed upload was persisted: %s=%d", label, n)
				}
			}
		})
	}
}

func TestUploadService_RecommendationsNotFound(t *testing.T) {
	svc := newTestService(t, nil, oneFace)

	_, err := svc.Recommendations(context.Background(), "missing")
	if !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("Recommendations() error = %v, want ErrRecordNotFound", err)
	}
}

func TestUploadService_ImageURL(t *testing.T) {
	objects := storage.NewMemoryStorage("https://cdn.example.com")
	withStorage := newTestService(t, objects, oneFace)
	without := newTestService(t, nil, oneFace)

	img := &domain.UploadedImage{StorageKey: "uploads/abc.png"}
	if got := withStorage.ImageURL(img); got != "https://cdn.example.com/uploads/abc.png" {
		t.Errorf("ImageURL() = %q", got)
	}
	if got := without.ImageURL(img); got != "" {
		t.Errorf("ImageURL() without storage = %q, want empty", got)
	}
	if got := withStorage.ImageURL(&domain.UploadedImage{}); got != "" {
		t.Errorf("ImageURL() without key = %q, want empty", got)
	}
}
