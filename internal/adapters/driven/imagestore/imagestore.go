// Package imagestore keeps the uploaded images of one resource in a flat directory.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"schoolboard/internal/core/service/resource"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

const defaultFilePermissions = os.FileMode(0644)

// extensions end up in public URLs, anything unusual is dropped
var safeExt = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

var ErrInvalidFilename = errors.New("invalid stored filename")

// FileStore handles image storage for a single resource directory
type FileStore struct {
	baseDir string
	now     func() time.Time
}

var _ resource.ImageStore = (*FileStore)(nil)

// New creates the directory if needed and returns a FileStore rooted there
func New(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("could not create upload directory %s: %w", baseDir, err)
	}
	return &FileStore{baseDir: baseDir, now: time.Now}, nil
}

func (fs *FileStore) Dir() string {
	return fs.baseDir
}

// newFilename builds {unixMillis}-{uuidv7}{ext}
func (fs *FileStore) newFilename(ext string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("could not generate uuid: %w", err)
	}

	ext = strings.ToLower(ext)
	if !safeExt.MatchString(ext) {
		ext = ""
	}

	return fmt.Sprintf("%d-%s%s", fs.now().UnixMilli(), id.String(), ext), nil
}

// Save copies src into a new file and syncs it before returning its bare name
func (fs *FileStore) Save(ctx context.Context, ext string, src io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	filename, err := fs.newFilename(ext)
	if err != nil {
		return "", 0, err
	}
	path := filepath.Join(fs.baseDir, filename)

	// O_EXCL: a name clash fails loudly instead of overwriting someone else's image
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, defaultFilePermissions)
	if err != nil {
		return "", 0, fmt.Errorf("could not create %s: %w", path, err)
	}

	written, err := io.Copy(dst, src)
	if err == nil {
		err = dst.Sync()
	}
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("could not write %s: %w", path, err)
	}

	return filename, written, nil
}

// Remove deletes a stored image. A missing file is reported as os.ErrNotExist.
func (fs *FileStore) Remove(ctx context.Context, filename string) error {
	path, err := fs.resolve(filename)
	if err != nil {
		return err
	}

	return os.Remove(path)
}

// Sweep removes every regular file not in keep that is older than grace. Dot files are never touched.
func (fs *FileStore) Sweep(ctx context.Context, keep map[string]bool, grace time.Duration) ([]string, error) {
	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload directory for cleanup: %w", err)
	}

	cutoff := fs.now().Add(-grace)
	var removed []string

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") || keep[name] {
			continue
		}

		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(fs.baseDir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("failed to remove orphaned upload %s: %w", name, err)
		}
		removed = append(removed, name)
	}

	return removed, nil
}

// resolve maps a stored filename to its path, refusing anything that would leave baseDir
func (fs *FileStore) resolve(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || filename == "." || filename == ".." || strings.ContainsAny(filename, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	return filepath.Join(fs.baseDir, filename), nil
}
