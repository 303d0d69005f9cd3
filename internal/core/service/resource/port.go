package resource

import (
	"context"
	"schoolboard/internal/core/domain"
	"time"
)

type Service interface {
	Spec() domain.ResourceSpec

	// Queries
	ListRecords(ctx context.Context) ([]domain.Record, error)

	// Commands
	CreateRecord(ctx context.Context, fields map[string]any, upload *Upload) (domain.Record, error)
	DeleteRecord(ctx context.Context, id int64) (domain.Record, error)

	// Maintenance
	SweepOrphans(ctx context.Context, grace time.Duration) (int, error)
}
