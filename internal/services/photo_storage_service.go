package services

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/jdeng/goheif"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/partyquiz/server/internal/models"
	"github.com/partyquiz/server/internal/observability"
)

// PhotoStorageService persists team photos sent by phone clients. Input is
// a data-URL or bare base64 string; output is a normalized JPEG under
// <base>/<device>/<timestamp>.jpg and the forward-slash relative path as
// the opaque reference handed back to the relay.
type PhotoStorageService struct {
	basePath     string
	maxSizeBytes int64
	maxEdge      int
	logger       *observability.Logger
}

// NewPhotoStorageService creates the service rooted at basePath. maxEdge
// bounds the longest side of the stored image; phone captures are far
// larger than any quiz display needs.
func NewPhotoStorageService(basePath string, maxSizeMB int64, maxEdge int) (*PhotoStorageService, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, err
	}

	if maxEdge <= 0 {
		maxEdge = 1280
	}

	return &PhotoStorageService{
		basePath:     absPath,
		maxSizeBytes: maxSizeMB * 1024 * 1024,
		maxEdge:      maxEdge,
		logger:       observability.WithField("component", "photo_storage"),
	}, nil
}

// Store decodes, normalizes, and writes a photo, returning its opaque
// relative path.
func (s *PhotoStorageService) Store(encoded string, deviceID models.DeviceID) (string, error) {
	raw, err := decodePayload(encoded)
	if err != nil {
		return "", err
	}
	if int64(len(raw)) > s.maxSizeBytes {
		return "", models.ErrPayloadTooLarge
	}

	img, err := decodeImage(raw)
	if err != nil {
		return "", err
	}

	if img.Bounds().Dx() > s.maxEdge || img.Bounds().Dy() > s.maxEdge {
		img = imaging.Fit(img, s.maxEdge, s.maxEdge, imaging.Lanczos)
	}

	relativeDir := sanitizeDeviceDir(deviceID)
	absoluteDir := filepath.Join(s.basePath, relativeDir)
	if err := os.MkdirAll(absoluteDir, 0755); err != nil {
		return "", err
	}

	filename := fmt.Sprintf("%d.jpg", time.Now().UnixNano())
	relativePath := filepath.Join(relativeDir, filename)
	absolutePath := filepath.Join(s.basePath, relativePath)

	if !strings.HasPrefix(absolutePath, s.basePath) {
		return "", models.ErrPathTraversal
	}

	file, err := os.OpenFile(absolutePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if err := imaging.Encode(file, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		os.Remove(absolutePath)
		return "", err
	}

	s.logger.WithField("device_id", string(deviceID)).Debugf("stored photo %s (%d bytes in)", relativePath, len(raw))
	return strings.ReplaceAll(relativePath, string(os.PathSeparator), "/"), nil
}

// GetFullPath resolves a stored reference to an absolute path, refusing
// anything that escapes the storage root.
func (s *PhotoStorageService) GetFullPath(storedPath string) (string, error) {
	if strings.TrimSpace(storedPath) == "" {
		return "", fmt.Errorf("stored path cannot be empty")
	}

	fullPath := filepath.Join(s.basePath, filepath.FromSlash(storedPath))
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absPath, s.basePath) {
		return "", models.ErrPathTraversal
	}
	return absPath, nil
}

// Exists checks whether a stored reference still resolves to a file
func (s *PhotoStorageService) Exists(storedPath string) bool {
	fullPath, err := s.GetFullPath(storedPath)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

// BasePath returns the storage root, for mounting the static file server
func (s *PhotoStorageService) BasePath() string {
	return s.basePath
}

// decodePayload strips an optional "data:image/...;base64," prefix and
// base64-decodes the remainder.
func decodePayload(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "data:") {
		idx := strings.Index(encoded, ",")
		if idx < 0 {
			return nil, models.ErrInvalidImage
		}
		encoded = encoded[idx+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// Some clients emit the URL-safe alphabet.
		raw, err = base64.URLEncoding.DecodeString(encoded)
		if err != nil {
			return nil, models.ErrInvalidImage
		}
	}
	if len(raw) == 0 {
		return nil, models.ErrInvalidImage
	}
	return raw, nil
}

// decodeImage decodes HEIC captures via goheif and everything else via
// imaging, then applies the EXIF orientation so stored photos are upright.
func decodeImage(raw []byte) (image.Image, error) {
	var img image.Image
	var err error

	if isHEIC(raw) {
		img, err = goheif.Decode(bytes.NewReader(raw))
	} else {
		img, err = imaging.Decode(bytes.NewReader(raw))
	}
	if err != nil {
		return nil, models.ErrInvalidImage
	}

	return applyOrientation(img, raw), nil
}

// applyOrientation reads the EXIF orientation tag and rotates/flips
// accordingly. Missing or unreadable EXIF leaves the image as-is.
func applyOrientation(img image.Image, raw []byte) image.Image {
	meta, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return img
	}
	tag, err := meta.Get(exif.Orientation)
	if err != nil {
		return img
	}
	orientation, err := tag.Int(0)
	if err != nil {
		return img
	}

	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// isHEIC sniffs the ISO BMFF ftyp box for HEIF brands
func isHEIC(raw []byte) bool {
	if len(raw) < 12 || !bytes.Equal(raw[4:8], []byte("ftyp")) {
		return false
	}
	switch string(raw[8:12]) {
	case "heic", "heix", "hevc", "heim", "heis", "hevm", "hevs", "mif1":
		return true
	}
	return false
}

// sanitizeDeviceDir turns an opaque client-supplied device id into a safe
// directory name.
func sanitizeDeviceDir(deviceID models.DeviceID) string {
	var b strings.Builder
	for _, r := range string(deviceID) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := b.String()
	if name == "" {
		name = "unknown"
	}
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}
