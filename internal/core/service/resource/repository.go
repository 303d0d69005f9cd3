package resource

import (
	"context"
	"io"
	"schoolboard/internal/core/domain"
	"time"
)

// Repository is the Record Store of one resource: a single JSON document holding the collection.
type Repository interface {
	// Queries
	ListAll(ctx context.Context) ([]domain.Record, error)
	// Snapshot also reports whether the document exists. A missing or blank document lists as empty
	// but was never initialised, so nothing can be concluded about which images are referenced.
	Snapshot(ctx context.Context) (records []domain.Record, present bool, err error)

	// Commands
	Append(ctx context.Context, fields domain.Record, imageFilename string) (domain.Record, error)
	DeleteByID(ctx context.Context, id int64) (domain.Record, error)
}

// ImageStore is the upload directory of one resource.
type ImageStore interface {
	// Save writes src under a new collision-free name ending in ext. It returns the bare filename and the
	// number of bytes written.
	Save(ctx context.Context, ext string, src io.Reader) (string, int64, error)
	Remove(ctx context.Context, filename string) error
	// Sweep removes regular files not listed in keep whose modification time is older than grace.
	Sweep(ctx context.Context, keep map[string]bool, grace time.Duration) ([]string, error)
}
