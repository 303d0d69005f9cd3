package resource

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const DefaultMaxUploadSize = 5 << 20 // 5MiB

// sniffLen is enough for mimetype to recognise jpeg, png and gif signatures.
const sniffLen = 512

var (
	allowedImageExtensions = map[string]bool{
		".jpeg": true,
		".jpg":  true,
		".png":  true,
		".gif":  true,
	}

	allowedImageTypes = map[string]bool{
		"image/jpeg": true,
		"image/jpg":  true,
		"image/png":  true,
		"image/gif":  true,
	}

	sniffedImageTypes = []string{"image/jpeg", "image/png", "image/gif"}
)

// Upload is a single file attached to a create request.
type Upload struct {
	// Filename is the name the client sent, only its extension is kept.
	Filename string
	// ContentType is the type the client declared for the part.
	ContentType string
	// Size is the declared size, zero when unknown.
	Size    int64
	Content io.Reader
}

// Ext returns the lowercased extension of the client filename.
func (u *Upload) Ext() string {
	return strings.ToLower(filepath.Ext(filepath.Base(u.Filename)))
}

// UploadPolicy is applied to every upload before anything is written.
type UploadPolicy struct {
	MaxSize        int64
	ValidateImages bool
}

// check validates u against the policy. It returns the reader to save from, which replays any bytes
// consumed while sniffing the content.
func (p UploadPolicy) check(u *Upload) (io.Reader, error) {
	if p.MaxSize > 0 && u.Size > p.MaxSize {
		return nil, fmt.Errorf("%w: %d bytes, limit is %d", ErrFileTooLarge, u.Size, p.MaxSize)
	}

	if !p.ValidateImages {
		return u.Content, nil
	}

	if ext := u.Ext(); !allowedImageExtensions[ext] {
		return nil, fmt.Errorf("%w: extension %q", ErrInvalidFileType, ext)
	}

	mediaType, _, err := mime.ParseMediaType(u.ContentType)
	if err != nil || !allowedImageTypes[strings.ToLower(mediaType)] {
		return nil, fmt.Errorf("%w: content type %q", ErrInvalidFileType, u.ContentType)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(u.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrUpload, err)
	}
	head = head[:n]

	detected := mimetype.Detect(head)
	if !mimetype.EqualsAny(detected.String(), sniffedImageTypes...) {
		return nil, fmt.Errorf("%w: content looks like %s", ErrInvalidFileType, detected.String())
	}

	return io.MultiReader(bytes.NewReader(head), u.Content), nil
}
