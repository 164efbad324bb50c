// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package imaging validates and stores uploaded images.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // GIF decoder for DecodeConfig
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP decoder

	"github.com/olegiv/tegsite/internal/util"
)

// MIME types accepted for upload.
const (
	MimeTypeJPEG = "image/jpeg"
	MimeTypePNG  = "image/png"
	MimeTypeGIF  = "image/gif"
	MimeTypeWebP = "image/webp"
	MimeTypeSVG  = "image/svg+xml"
)

// DefaultMaxSize is the upload limit when none is configured (5MB).
const DefaultMaxSize = 5 * 1024 * 1024

// jpegQuality is used when re-encoding JPEG uploads.
const jpegQuality = 92

// AllowedExtensions maps accepted file extensions to their MIME type.
var AllowedExtensions = map[string]string{
	".png":  MimeTypePNG,
	".jpg":  MimeTypeJPEG,
	".jpeg": MimeTypeJPEG,
	".gif":  MimeTypeGIF,
	".webp": MimeTypeWebP,
	".svg":  MimeTypeSVG,
}

// Upload errors.
var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image exceeds maximum upload size")
	ErrContentMismatch = errors.New("file content does not match its extension")
	ErrUnsafeSVG       = errors.New("svg contains scripting")
)

// svgScript matches script elements, event handler attributes and
// javascript: URLs inside SVG markup.
var svgScript = regexp.MustCompile(`(?i)<script|\son[a-z]+\s*=|javascript:`)

// StoredImage describes a file written to the upload directory.
type StoredImage struct {
	Filename string
	Path     string
	MimeType string
	Size     int64
	Width    int
	Height   int
}

// Processor validates uploads and writes them under uploadDir.
type Processor struct {
	uploadDir string
	maxSize   int64
}

// NewProcessor creates a new image processor. A non-positive maxSize
// selects DefaultMaxSize.
func NewProcessor(uploadDir string, maxSize int64) *Processor {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Processor{
		uploadDir: uploadDir,
		maxSize:   maxSize,
	}
}

// UploadDir returns the directory images are stored in.
func (p *Processor) UploadDir() string {
	return p.uploadDir
}

// MaxSize returns the upload limit in bytes.
func (p *Processor) MaxSize() int64 {
	return p.maxSize
}

// Store validates the upload and saves it under a random hex filename that
// keeps the original extension. JPEG and PNG are re-encoded with EXIF
// orientation applied so metadata is stripped.
func (p *Processor) Store(r io.Reader, originalFilename string) (*StoredImage, error) {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	mimeType, ok := AllowedExtensions[ext]
	if !ok {
		return nil, ErrUnsupportedType
	}

	data, err := io.ReadAll(io.LimitReader(r, p.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > p.maxSize {
		return nil, ErrTooLarge
	}

	var width, height int
	if mimeType == MimeTypeSVG {
		if err := checkSVG(data); err != nil {
			return nil, err
		}
	} else {
		if formatToMimeType(detectFormat(data)) != mimeType {
			return nil, ErrContentMismatch
		}
		data, width, height, err = normalize(data, mimeType)
		if err != nil {
			return nil, err
		}
	}

	filename := strings.ReplaceAll(uuid.New().String(), "-", "") + ext
	path, err := p.saveImageFile(filename, data)
	if err != nil {
		return nil, err
	}

	return &StoredImage{
		Filename: filename,
		Path:     path,
		MimeType: mimeType,
		Size:     int64(len(data)),
		Width:    width,
		Height:   height,
	}, nil
}

// Delete removes a stored image. A missing file is not an error.
func (p *Processor) Delete(filename string) error {
	path, err := util.UploadPath(p.uploadDir, filename)
	if err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// normalize decodes raster data, returning possibly re-encoded bytes and
// the final dimensions. GIF and WebP are kept byte for byte.
func normalize(data []byte, mimeType string) ([]byte, int, int, error) {
	switch mimeType {
	case MimeTypeJPEG, MimeTypePNG:
		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, 0, 0, fmt.Errorf("failed to decode image: %w", err)
		}
		img = applyOrientation(img, readExifOrientation(bytes.NewReader(data)))

		out, err := encodeImage(img, mimeType)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("failed to encode image: %w", err)
		}
		b := img.Bounds()
		return out, b.Dx(), b.Dy(), nil
	default:
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, 0, 0, fmt.Errorf("failed to read image config: %w", err)
		}
		return data, cfg.Width, cfg.Height, nil
	}
}

func checkSVG(data []byte) error {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if !bytes.Contains(bytes.ToLower(head), []byte("<svg")) {
		return ErrContentMismatch
	}
	if svgScript.Match(data) {
		return ErrUnsafeSVG
	}
	return nil
}

// readExifOrientation reads the EXIF orientation tag from image data.
// Returns 1 (normal) if orientation cannot be determined.
func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}

	return orientation
}

// applyOrientation applies an EXIF orientation (1-8) to img.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate270(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate90(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

func encodeImage(img image.Image, mimeType string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	if mimeType == MimeTypePNG {
		err = png.Encode(&buf, img)
	} else {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// detectFormat detects the image format from raw bytes.
func detectFormat(data []byte) string {
	contentType := http.DetectContentType(data)
	// TIFF is never accepted (CVE-2023-36308 in disintegration/imaging).
	if strings.Contains(contentType, "tiff") {
		return ""
	}
	switch {
	case strings.Contains(contentType, "jpeg"):
		return "jpeg"
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "gif"):
		return "gif"
	case strings.Contains(contentType, "webp"):
		return "webp"
	default:
		return ""
	}
}

// formatToMimeType converts format string to MIME type.
func formatToMimeType(format string) string {
	switch format {
	case "jpeg", "jpg":
		return MimeTypeJPEG
	case "png":
		return MimeTypePNG
	case "gif":
		return MimeTypeGIF
	case "webp":
		return MimeTypeWebP
	default:
		return "application/octet-stream"
	}
}

// saveImageFile writes data to uploadDir/filename, creating the directory if needed.
func (p *Processor) saveImageFile(filename string, data []byte) (string, error) {
	path, err := util.UploadPath(p.uploadDir, filename)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(p.uploadDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	return path, nil
}
