// internal/interfaces/http/handlers/upload.go
package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/domain/upload"
)

// AvatarSetter records a user's new avatar URL
type AvatarSetter interface {
	SetAvatar(ctx context.Context, userID uint, url string) error
}

// UploadHandler handles image upload endpoints
type UploadHandler struct {
	uploadService *upload.Service
	avatars       AvatarSetter
	logger        *logrus.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(uploadService *upload.Service, avatars AvatarSetter, logger *logrus.Logger) *UploadHandler {
	return &UploadHandler{
		uploadService: uploadService,
		avatars:       avatars,
		logger:        logger,
	}
}

// UploadImage handles POST /uploads/image (form field "image")
func (h *UploadHandler) UploadImage(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	header, err := c.FormFile("image")
	if err != nil {
		h.formError(c, err)
		return
	}

	file, err := h.uploadService.Upload(c.Request.Context(), userID, folderOf(c), header)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, "Image uploaded successfully", file)
}

// UploadImages handles POST /uploads/images (form field "images"). Either
// every file is stored or none is.
func (h *UploadHandler) UploadImages(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		h.formError(c, err)
		return
	}

	files, err := h.uploadService.UploadMany(c.Request.Context(), userID, folderOf(c), form.File["images"])
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, "Images uploaded successfully", gin.H{
		"files": files,
		"count": len(files),
	})
}

// UploadAvatar handles POST /uploads/avatar and points the caller's profile
// at the stored image
func (h *UploadHandler) UploadAvatar(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	header, err := c.FormFile("avatar")
	if err != nil {
		h.formError(c, err)
		return
	}

	ctx := c.Request.Context()
	file, err := h.uploadService.Upload(ctx, userID, upload.FolderAvatars, header)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	if err := h.avatars.SetAvatar(ctx, userID, file.URL); err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, "Avatar updated successfully", file)
}

// ServeImage handles GET /uploads/images/:filename
func (h *UploadHandler) ServeImage(c *gin.Context) {
	file, path, err := h.uploadService.Open(c.Request.Context(), c.Param("filename"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	c.Header("Content-Type", file.MimeType)
	c.Header("Cache-Control", "public, max-age=86400")
	c.File(path)
}

func (h *UploadHandler) formError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		handleError(c, h.logger, upload.ErrNoFile)
	case errors.As(err, &tooLarge), errors.Is(err, multipart.ErrMessageTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
	}
}

func folderOf(c *gin.Context) upload.Folder {
	if folder := c.PostForm("folder"); folder != "" {
		return upload.Folder(folder)
	}
	return upload.FolderProducts
}
