package media

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"parley/internal/models"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultUploadDir       = "/tmp/parley/uploads"
	DefaultMaxUploadSizeMB = 10
	MasterMaxSize          = 2048
	JPEGQuality            = 82
	WebPQuality            = 70
)

// LocalProcessor runs the image pipeline in-process and stores assets on the
// local filesystem. It backs development, tests, and single-node deployments.
type LocalProcessor struct {
	uploadDir string
	maxBytes  int64
}

// NewLocalProcessor returns a LocalProcessor writing under uploadDir.
func NewLocalProcessor(uploadDir string, maxUploadSizeMB int) *LocalProcessor {
	if uploadDir == "" {
		uploadDir = DefaultUploadDir
	}
	if maxUploadSizeMB <= 0 {
		maxUploadSizeMB = DefaultMaxUploadSizeMB
	}
	return &LocalProcessor{
		uploadDir: uploadDir,
		maxBytes:  int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// Process validates and normalizes the upload, encodes a JPEG+WebP master
// capped at MasterMaxSize, and stores both under a deterministic sha256 ref.
// Re-uploading identical content for the same owner lands on the same ref.
func (p *LocalProcessor) Process(ctx context.Context, in ProcessInput) (*ProcessResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if in.OwnerID == 0 {
		return nil, models.NewValidationError("Invalid owner")
	}
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > p.maxBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", p.maxBytes/(1024*1024)))
	}

	detectedType := http.DetectContentType(in.Content)
	if !isAllowedMIME(detectedType) {
		return nil, models.NewValidationError("Invalid media type")
	}

	decoded, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	if !isSupportedDecodedFormat(format) {
		return nil, models.NewValidationError("Unsupported image format")
	}

	sourceMimeType := decodedFormatToMime(format)
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, sourceMimeType) {
		return nil, models.NewValidationError("Media content type mismatch")
	}

	master := resizeToFit(decoded, MasterMaxSize, MasterMaxSize)

	encodedJPG, err := encodeJPEG(master, JPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	encodedWebP, err := encodeWebP(master, WebPQuality)
	if err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}

	ref := buildDeterministicRef(in.OwnerID, encodedJPG)

	jpgAbs := filepath.Join(p.uploadDir, ref, "master.jpg")
	webpAbs := filepath.Join(p.uploadDir, ref, "master.webp")

	if err := writeBytesToFile(jpgAbs, encodedJPG); err != nil {
		return nil, fmt.Errorf("store master.jpg: %w", err)
	}
	if err := writeBytesToFile(webpAbs, encodedWebP); err != nil {
		_ = os.RemoveAll(filepath.Join(p.uploadDir, ref))
		return nil, fmt.Errorf("store master.webp: %w", err)
	}

	bounds := master.Bounds()
	return &ProcessResult{
		Ref:         ref,
		ContentType: "image/jpeg",
		SizeBytes:   int64(len(encodedJPG)),
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}

// Remove deletes the asset directory for ref.
func (p *LocalProcessor) Remove(_ context.Context, ref string) error {
	if !isValidRef(ref) {
		return models.NewValidationError("Invalid media ref")
	}
	return os.RemoveAll(filepath.Join(p.uploadDir, ref))
}

// ResolvePath returns the on-disk master path for ref, for serving.
func (p *LocalProcessor) ResolvePath(ref string) (string, error) {
	if !isValidRef(ref) {
		return "", models.NewValidationError("Invalid media ref")
	}
	fullPath := filepath.Join(p.uploadDir, ref, "master.jpg")
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return "", models.NewNotFoundError("Media", ref)
		}
		return "", err
	}
	return fullPath, nil
}

// isValidRef checks that the ref is strictly lowercase hex (SHA-256 style).
// This prevents path traversal attacks via crafted ref parameters.
func isValidRef(ref string) bool {
	if len(ref) == 0 || len(ref) > 128 {
		return false
	}
	for _, c := range ref {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scaleW := float64(maxWidth) / float64(w)
	scaleH := float64(maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func isSupportedDecodedFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg", "png", "gif", "webp":
		return true
	default:
		return false
	}
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}

func buildDeterministicRef(ownerID uint, content []byte) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%d:", ownerID)
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

func writeBytesToFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
