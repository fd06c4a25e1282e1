// Package attachment checks files before they are attached to a message.
package attachment

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedAttachmentType is returned for anything but an image.
	ErrUnsupportedAttachmentType = errors.New("unsupported attachment type")
	// ErrAttachmentTooLarge is returned for files over the size limit.
	ErrAttachmentTooLarge = errors.New("attachment too large")
)

// DefaultMaxBytes is used when a Gate is created without a limit.
const DefaultMaxBytes = 10 << 20

const sniffLen = 512

// File describes a candidate attachment.
type File struct {
	Name        string
	ContentType string // declared type, may carry parameters
	Size        int64
}

// Gate validates attachments. Upload is not its concern.
type Gate struct {
	maxBytes int64
}

// NewGate creates a gate accepting images up to maxBytes. A non-positive
// limit means DefaultMaxBytes.
func NewGate(maxBytes int64) *Gate {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Gate{maxBytes: maxBytes}
}

// MaxBytes returns the size limit.
func (g *Gate) MaxBytes() int64 { return g.maxBytes }

// Validate accepts f if its declared content type is in the image family
// and it fits the size limit.
func (g *Gate) Validate(f File) error {
	mediaType, _, err := mime.ParseMediaType(f.ContentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return fmt.Errorf("%w: %q", ErrUnsupportedAttachmentType, f.ContentType)
	}
	if f.Size > g.maxBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrAttachmentTooLarge, f.Size, g.maxBytes)
	}
	return nil
}

// FromPath describes the file at path. The content type comes from the
// extension, or from the first bytes of the file when the extension is
// unknown.
func FromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}

	f := File{Name: filepath.Base(path), Size: info.Size()}
	if f.ContentType = byExtension(path); f.ContentType != "" {
		return f, nil
	}

	fh, err := os.Open(path)
	if err != nil {
		return File{}, err
	}
	defer func() { _ = fh.Close() }()
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(fh, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}
	f.ContentType = http.DetectContentType(head[:n])
	return f, nil
}

// Types missing from some system mime tables.
var extraTypes = map[string]string{
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
}

func byExtension(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return ""
	}
	if t, ok := extraTypes[ext]; ok {
		return t
	}
	return mime.TypeByExtension(ext)
}
