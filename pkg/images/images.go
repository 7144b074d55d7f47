package images

import (
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// ErrUnsupportedType is returned for uploads that are not images.
var ErrUnsupportedType = errors.New("this filetype is not supported")

// maxDimension caps the longer side of stored photos.
const maxDimension = 800

// Processor resizes uploaded photos and writes them into a public directory
// under randomly generated names.
type Processor struct {
	dir string
}

// NewProcessor creates a Processor writing into dir.
func NewProcessor(dir string) *Processor {
	return &Processor{dir: dir}
}

// Process validates, resizes and stores an uploaded photo, returning the
// generated filename. The extension comes from the upload's MIME subtype.
func (p *Processor) Process(file *multipart.FileHeader) (string, error) {
	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", ErrUnsupportedType
	}
	ext := strings.TrimPrefix(contentType, "image/")
	name := fmt.Sprintf("%s.%s", uuid.New().String(), ext)

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	img, err := imaging.Decode(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	// Fit shrinks so the longer dimension is at most maxDimension while
	// preserving aspect ratio; smaller images pass through unchanged.
	resized := imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}
	if err := imaging.Save(resized, filepath.Join(p.dir, name)); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	return name, nil
}
