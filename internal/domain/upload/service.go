// internal/domain/upload/service.go
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/config"
	"gorm.io/gorm"
)

// allowedTypes maps sniffed MIME types to the extension files are stored with
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Service stores uploaded images on local disk and records them in the database
type Service struct {
	db     *gorm.DB
	config *config.Config
	logger *logrus.Logger
}

// NewService creates a new upload service
func NewService(db *gorm.DB, cfg *config.Config, logger *logrus.Logger) *Service {
	return &Service{
		db:     db,
		config: cfg,
		logger: logger,
	}
}

type checkedFile struct {
	header   *multipart.FileHeader
	mimeType string
	ext      string
}

// Upload validates and stores a single image
func (s *Service) Upload(ctx context.Context, userID uint, folder Folder, header *multipart.FileHeader) (*UploadedFile, error) {
	if header == nil {
		return nil, ErrNoFile
	}
	files, err := s.UploadMany(ctx, userID, folder, []*multipart.FileHeader{header})
	if err != nil {
		return nil, err
	}
	return &files[0], nil
}

// UploadMany validates every file before storing any of them. Either all
// files are stored or none are.
func (s *Service) UploadMany(ctx context.Context, userID uint, folder Folder, headers []*multipart.FileHeader) ([]UploadedFile, error) {
	if !folder.Valid() {
		return nil, ErrInvalidFolder
	}
	if len(headers) == 0 {
		return nil, ErrNoFile
	}
	if limit := s.config.Upload.MaxFiles; limit > 0 && len(headers) > limit {
		return nil, fmt.Errorf("%w: at most %d files per upload", ErrTooManyFiles, limit)
	}

	checked := make([]checkedFile, 0, len(headers))
	for _, h := range headers {
		c, err := s.check(h)
		if err != nil {
			return nil, err
		}
		checked = append(checked, c)
	}

	dir := filepath.Join(s.config.Upload.LocalPath, string(folder))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	records := make([]UploadedFile, 0, len(checked))
	var written []string
	cleanup := func() {
		for _, path := range written {
			_ = os.Remove(path)
		}
	}

	for _, c := range checked {
		name := uuid.NewString() + c.ext
		path := filepath.Join(dir, name)
		size, err := s.write(c.header, path)
		if err != nil {
			cleanup()
			return nil, err
		}
		written = append(written, path)

		records = append(records, UploadedFile{
			OriginalName: filepath.Base(c.header.Filename),
			Filename:     name,
			Folder:       folder,
			URL:          s.publicURL(name),
			MimeType:     c.mimeType,
			Size:         size,
			UploadedBy:   userID,
		})
	}

	if err := s.db.WithContext(ctx).Create(&records).Error; err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to save upload records: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"folder":  folder,
		"count":   len(records),
	}).Info("Images uploaded")

	return records, nil
}

// Open resolves a stored file name to its record and absolute path on disk.
// Names containing path elements are rejected.
func (s *Service) Open(ctx context.Context, filename string) (*UploadedFile, string, error) {
	if !safeFilename(filename) {
		return nil, "", ErrInvalidFilename
	}

	var file UploadedFile
	if err := s.db.WithContext(ctx).Where("filename = ?", filename).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrFileNotFound
		}
		return nil, "", fmt.Errorf("failed to get upload: %w", err)
	}

	path := filepath.Join(s.config.Upload.LocalPath, string(file.Folder), file.Filename)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, "", ErrFileNotFound
		}
		return nil, "", fmt.Errorf("failed to stat upload: %w", err)
	}
	return &file, path, nil
}

func (s *Service) check(h *multipart.FileHeader) (checkedFile, error) {
	if h == nil {
		return checkedFile{}, ErrNoFile
	}
	if h.Size > s.config.Upload.MaxSize {
		return checkedFile{}, &FileTooLargeError{Filename: h.Filename, Limit: s.config.Upload.MaxSize}
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(h.Filename)), ".")
	if !s.extensionAllowed(ext) {
		return checkedFile{}, &UnsupportedTypeError{Filename: h.Filename, MimeType: "." + ext}
	}

	f, err := h.Open()
	if err != nil {
		return checkedFile{}, fmt.Errorf("failed to open %s: %w", h.Filename, err)
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return checkedFile{}, fmt.Errorf("failed to read %s: %w", h.Filename, err)
	}
	stored, ok := allowedTypes[mt.String()]
	if !ok {
		return checkedFile{}, &UnsupportedTypeError{Filename: h.Filename, MimeType: mt.String()}
	}
	return checkedFile{header: h, mimeType: mt.String(), ext: stored}, nil
}

// write copies the upload to path, enforcing the size limit on the actual bytes
func (s *Service) write(h *multipart.FileHeader, path string) (int64, error) {
	src, err := h.Open()
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", h.Filename, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	limit := s.config.Upload.MaxSize
	n, copyErr := io.Copy(dst, io.LimitReader(src, limit+1))
	closeErr := dst.Close()
	switch {
	case copyErr != nil:
		_ = os.Remove(path)
		return 0, fmt.Errorf("failed to save file: %w", copyErr)
	case closeErr != nil:
		_ = os.Remove(path)
		return 0, fmt.Errorf("failed to save file: %w", closeErr)
	case n > limit:
		_ = os.Remove(path)
		return 0, &FileTooLargeError{Filename: h.Filename, Limit: limit}
	}
	return n, nil
}

func (s *Service) extensionAllowed(ext string) bool {
	for _, allowed := range s.config.Upload.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func (s *Service) publicURL(name string) string {
	return strings.TrimRight(s.config.Upload.PublicURL, "/") + "/" + name
}

func safeFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	return filepath.Base(name) == name
}
