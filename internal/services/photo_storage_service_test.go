package services

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partyquiz/server/internal/models"
)

// encodedTestImage builds a base64 PNG of the given dimensions
func encodedTestImage(t *testing.T, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func newTestPhotoService(t *testing.T) *PhotoStorageService {
	t.Helper()
	svc, err := NewPhotoStorageService(t.TempDir(), 8, 1280)
	require.NoError(t, err)
	return svc
}

func TestPhotoStorageService_Store(t *testing.T) {
	t.Run("bare base64 roundtrip", func(t *testing.T) {
		svc := newTestPhotoService(t)

		stored, err := svc.Store(encodedTestImage(t, 64, 48), "device-1")
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(stored, "device-1/"))
		assert.True(t, strings.HasSuffix(stored, ".jpg"))
		assert.NotContains(t, stored, string(os.PathSeparator)+string(os.PathSeparator))

		fullPath, err := svc.GetFullPath(stored)
		require.NoError(t, err)
		onDisk, err := imaging.Open(fullPath)
		require.NoError(t, err)
		assert.Equal(t, 64, onDisk.Bounds().Dx())
		assert.Equal(t, 48, onDisk.Bounds().Dy())
	})

	t.Run("data-URL prefix is stripped", func(t *testing.T) {
		svc := newTestPhotoService(t)

		encoded := "data:image/png;base64," + encodedTestImage(t, 10, 10)
		stored, err := svc.Store(encoded, "device-1")
		require.NoError(t, err)
		assert.True(t, svc.Exists(stored))
	})

	t.Run("oversized image is resized to fit", func(t *testing.T) {
		svc, err := NewPhotoStorageService(t.TempDir(), 8, 32)
		require.NoError(t, err)

		stored, err := svc.Store(encodedTestImage(t, 100, 50), "device-1")
		require.NoError(t, err)

		fullPath, err := svc.GetFullPath(stored)
		require.NoError(t, err)
		onDisk, err := imaging.Open(fullPath)
		require.NoError(t, err)
		assert.LessOrEqual(t, onDisk.Bounds().Dx(), 32)
		assert.LessOrEqual(t, onDisk.Bounds().Dy(), 32)
	})

	t.Run("rejects payload over the size cap", func(t *testing.T) {
		svc, err := NewPhotoStorageService(t.TempDir(), 0, 1280)
		require.NoError(t, err)

		_, err = svc.Store(encodedTestImage(t, 10, 10), "device-1")
		assert.ErrorIs(t, err, models.ErrPayloadTooLarge)
	})

	t.Run("rejects invalid base64", func(t *testing.T) {
		svc := newTestPhotoService(t)

		_, err := svc.Store("not!!valid!!base64", "device-1")
		assert.ErrorIs(t, err, models.ErrInvalidImage)
	})

	t.Run("rejects non-image payload", func(t *testing.T) {
		svc := newTestPhotoService(t)

		encoded := base64.StdEncoding.EncodeToString([]byte("just some text"))
		_, err := svc.Store(encoded, "device-1")
		assert.ErrorIs(t, err, models.ErrInvalidImage)
	})

	t.Run("hostile device id cannot escape the root", func(t *testing.T) {
		svc := newTestPhotoService(t)

		stored, err := svc.Store(encodedTestImage(t, 10, 10), "../../etc")
		require.NoError(t, err)

		fullPath, err := svc.GetFullPath(stored)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(fullPath, svc.BasePath()))
	})
}

func TestPhotoStorageService_GetFullPath(t *testing.T) {
	svc := newTestPhotoService(t)

	t.Run("rejects traversal", func(t *testing.T) {
		_, err := svc.GetFullPath("../outside.jpg")
		assert.ErrorIs(t, err, models.ErrPathTraversal)
	})

	t.Run("rejects empty path", func(t *testing.T) {
		_, err := svc.GetFullPath("  ")
		assert.Error(t, err)
	})

	t.Run("resolves a stored reference", func(t *testing.T) {
		stored, err := svc.Store(encodedTestImage(t, 10, 10), "device-1")
		require.NoError(t, err)

		fullPath, err := svc.GetFullPath(stored)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(svc.BasePath(), filepath.FromSlash(stored)), fullPath)
	})
}

func TestPhotoStorageService_Exists(t *testing.T) {
	svc := newTestPhotoService(t)

	assert.False(t, svc.Exists("device-1/missing.jpg"))
	assert.False(t, svc.Exists("../outside.jpg"))

	stored, err := svc.Store(encodedTestImage(t, 10, 10), "device-1")
	require.NoError(t, err)
	assert.True(t, svc.Exists(stored))
}

func TestNewPhotoStorageService_EmptyBasePath(t *testing.T) {
	_, err := NewPhotoStorageService("  ", 8, 1280)
	assert.Error(t, err)
}
