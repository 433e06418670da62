package upload_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/marketplace-api/internal/domain/upload"
	"github.com/your-org/marketplace-api/internal/pkg/logger"
	"github.com/your-org/marketplace-api/internal/testutil"
	"gorm.io/gorm"
)

type part struct {
	name string
	data []byte
}

func formFiles(t *testing.T, parts ...part) []*multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, p := range parts {
		fw, err := w.CreateFormFile("images", p.name)
		require.NoError(t, err)
		_, err = fw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["images"]
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func gifBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, img, nil))
	return buf.Bytes()
}

func newService(t *testing.T) (*upload.Service, *gorm.DB, string) {
	t.Helper()
	db := testutil.NewDB(t, &upload.UploadedFile{})
	cfg := testutil.Config()
	cfg.Upload.LocalPath = t.TempDir()
	return upload.NewService(db, cfg, logger.Discard()), db, cfg.Upload.LocalPath
}

func TestUpload_StoresImageUnderFolder(t *testing.T) {
	svc, _, root := newService(t)

	file, err := svc.Upload(context.Background(), 7, upload.FolderProducts, formFiles(t, part{"photo.PNG", pngBytes(t)})[0])
	require.NoError(t, err)

	assert.Equal(t, "image/png", file.MimeType)
	assert.Equal(t, "photo.PNG", file.OriginalName)
	assert.True(t, strings.HasSuffix(file.Filename, ".png"))
	assert.Equal(t, "/api/v1/uploads/images/"+file.Filename, file.URL)
	assert.Equal(t, uint(7), file.UploadedBy)

	stored, err := os.ReadFile(filepath.Join(root, "products", file.Filename))
	require.NoError(t, err)
	assert.Equal(t, pngBytes(t), stored)

	got, path, err := svc.Open(context.Background(), file.Filename)
	require.NoError(t, err)
	assert.Equal(t, file.ID, got.ID)
	assert.Equal(t, filepath.Join(root, "products", file.Filename), path)
}

func TestUpload_RejectsNonImages(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, 1, upload.FolderProducts, formFiles(t, part{"notes.txt", []byte("hello")})[0])
	var unsupported *upload.UnsupportedTypeError
	assert.ErrorAs(t, err, &unsupported)

	// right extension, wrong content
	_, err = svc.Upload(ctx, 1, upload.FolderProducts, formFiles(t, part{"fake.png", []byte("<html>not an image</html>")})[0])
	assert.ErrorAs(t, err, &unsupported)

	_, err = svc.Upload(ctx, 1, upload.Folder("secrets"), formFiles(t, part{"a.png", pngBytes(t)})[0])
	assert.ErrorIs(t, err, upload.ErrInvalidFolder)
}

func TestUpload_EnforcesSizeLimit(t *testing.T) {
	db := testutil.NewDB(t, &upload.UploadedFile{})
	cfg := testutil.Config()
	cfg.Upload.LocalPath = t.TempDir()
	cfg.Upload.MaxSize = 16
	svc := upload.NewService(db, cfg, logger.Discard())

	_, err := svc.Upload(context.Background(), 1, upload.FolderAvatars, formFiles(t, part{"big.png", pngBytes(t)})[0])
	var tooLarge *upload.FileTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, int64(16), tooLarge.Limit)
}

func TestUploadMany_AllOrNothing(t *testing.T) {
	svc, db, root := newService(t)
	ctx := context.Background()

	files, err := svc.UploadMany(ctx, 3, upload.FolderProducts, formFiles(t,
		part{"one.png", pngBytes(t)},
		part{"two.gif", gifBytes(t)},
	))
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "image/gif", files[1].MimeType)

	_, err = svc.UploadMany(ctx, 3, upload.FolderProducts, formFiles(t,
		part{"three.png", pngBytes(t)},
		part{"four.txt", []byte("nope")},
	))
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&upload.UploadedFile{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	entries, err := os.ReadDir(filepath.Join(root, "products"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestUploadMany_Limits(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.UploadMany(ctx, 1, upload.FolderProducts, nil)
	assert.ErrorIs(t, err, upload.ErrNoFile)

	img := pngBytes(t)
	parts := make([]part, 6)
	for i := range parts {
		parts[i] = part{"p.png", img}
	}
	_, err = svc.UploadMany(ctx, 1, upload.FolderProducts, formFiles(t, parts...))
	assert.ErrorIs(t, err, upload.ErrTooManyFiles)
}

func TestOpen_RejectsTraversal(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	for _, name := range []string{"", "..", "../etc/passwd", "products/x.png", `..\x.png`, "a..png"} {
		_, _, err := svc.Open(ctx, name)
		assert.ErrorIs(t, err, upload.ErrInvalidFilename, name)
	}

	_, _, err := svc.Open(ctx, "missing.png")
	assert.ErrorIs(t, err, upload.ErrFileNotFound)
}
