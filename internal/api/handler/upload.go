package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/moodtune/internal/service"
)

// ImageField is the multipart form field carrying the photo.
const ImageField = "image"

// multipartOverhead is the allowance for form boundaries and headers on top
// of the image itself.
const multipartOverhead = 64 << 10

// Uploader is the part of the upload service the HTTP layer needs.
type Uploader interface {
	Upload(ctx context.Context, data []byte) (*service.UploadResult, error)
	Recommendations(ctx context.Context, imageID string) (*service.StoredUpload, error)
	EmotionStats(ctx context.Context) (map[string]int64, error)
}

// UploadHandler handles photo upload and recommendation endpoints.
type UploadHandler struct {
	uploads  Uploader
	maxBytes int64
}

// NewUploadHandler creates a new upload handler.
// Parameters:
//   - uploads: upload service.
//   - maxBytes: largest accepted image; non-positive disables the check.
// Returns:
//   - *UploadHandler: initialized handler.
func NewUploadHandler(uploads Uploader, maxBytes int64) *UploadHandler {
	return &UploadHandler{
		uploads:  uploads,
		maxBytes: maxBytes,
	}
}

// Upload handles POST /api/v1/upload.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *UploadHandler) Upload(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	}

	file, err := c.FormFile(ImageField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.tooLarge(c)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "No image uploaded: expected multipart field '" + ImageField + "'",
		})
		return
	}

	if h.maxBytes > 0 && file.Size > h.maxBytes {
		h.tooLarge(c)
		return
	}

	f, err := file.Open()
	if err != nil {
		respondError(c, "Failed to read upload", err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, "Failed to read upload", err)
		return
	}

	out, err := h.uploads.Upload(c.Request.Context(), data)
	if err != nil {
		respondError(c, "Recommendation failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          out.Result.Status,
		"image_id":        out.ImageID,
		"emotion":         out.Result.Emotion,
		"confidence":      out.Result.Confidence,
		"cached":          out.Result.Cached,
		"recommendations": out.Result.Recommendations,
	})
}

func (h *UploadHandler) tooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{
		"status": "error",
		"error":  fmt.Sprintf("Image exceeds %d bytes", h.maxBytes),
	})
}

// GetRecommendations handles GET /api/v1/recommendations/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *UploadHandler) GetRecommendations(c *gin.Context) {
	id := c.Param("id")

	stored, err := h.uploads.Recommendations(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Failed to get recommendations", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "success",
		"image_id":        stored.ImageID,
		"emotion":         stored.Emotion,
		"image_url":       stored.ImageURL,
		"recommendations": stored.Recommendations,
	})
}

// GetStats handles GET /api/v1/stats.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *UploadHandler) GetStats(c *gin.Context) {
	counts, err := h.uploads.EmotionStats(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to get stats", err)
		return
	}

	var total int64
	for _, n := range counts {
		total += n
	}

	c.JSON(http.StatusOK, gin.H{
		"emotions": counts,
		"total":    total,
	})
}
