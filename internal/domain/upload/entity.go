// internal/domain/upload/entity.go
package upload

import (
	"errors"
	"fmt"
	"time"
)

// Folder groups stored images by purpose
type Folder string

const (
	FolderProducts Folder = "products"
	FolderAvatars  Folder = "avatars"
)

// Valid reports whether f is a known folder
func (f Folder) Valid() bool {
	return f == FolderProducts || f == FolderAvatars
}

// UploadedFile records an image written to local storage
type UploadedFile struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	OriginalName string    `gorm:"not null;size:255" json:"original_name"`
	Filename     string    `gorm:"not null;size:255;uniqueIndex" json:"filename"`
	Folder       Folder    `gorm:"not null;size:20;index" json:"folder"`
	URL          string    `gorm:"not null;size:500" json:"url"`
	MimeType     string    `gorm:"not null;size:100" json:"mime_type"`
	Size         int64     `gorm:"not null" json:"size"`
	UploadedBy   uint      `gorm:"not null;index" json:"uploaded_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName overrides the table name for UploadedFile
func (UploadedFile) TableName() string { return "uploaded_files" }

// RelativePath is the file location under the storage root
func (f *UploadedFile) RelativePath() string {
	return string(f.Folder) + "/" + f.Filename
}

// FormattedSize returns a human-readable file size
func (f *UploadedFile) FormattedSize() string {
	const unit = 1024
	if f.Size < unit {
		return fmt.Sprintf("%d B", f.Size)
	}
	div, exp := int64(unit), 0
	for n := f.Size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(f.Size)/float64(div), "KMGTPE"[exp])
}

var (
	ErrNoFile          = errors.New("no file uploaded")
	ErrTooManyFiles    = errors.New("too many files")
	ErrInvalidFolder   = errors.New("invalid upload folder")
	ErrInvalidFilename = errors.New("invalid file name")
	ErrFileNotFound    = errors.New("file not found")
)

// FileTooLargeError is returned when a file exceeds the configured size limit
type FileTooLargeError struct {
	Filename string
	Limit    int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("%s exceeds the %d byte limit", e.Filename, e.Limit)
}

// UnsupportedTypeError is returned for anything but jpeg, png, gif or webp
type UnsupportedTypeError struct {
	Filename string
	MimeType string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("only image files are allowed: %s is %s", e.Filename, e.MimeType)
}
