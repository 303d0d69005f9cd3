package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"schoolboard/internal/core/domain"
	"time"
)

type resourceService struct {
	spec         domain.ResourceSpec
	resourceRepo Repository
	images       ImageStore
	policy       UploadPolicy
}

func NewService(spec domain.ResourceSpec, repo Repository, images ImageStore, maxUploadSize int64) Service {
	return &resourceService{
		spec:         spec,
		resourceRepo: repo,
		images:       images,
		policy: UploadPolicy{
			MaxSize:        maxUploadSize,
			ValidateImages: spec.ValidateImages,
		},
	}
}

var _ Service = (*resourceService)(nil)

func (s *resourceService) Spec() domain.ResourceSpec {
	return s.spec
}

func (s *resourceService) ListRecords(ctx context.Context) ([]domain.Record, error) {
	records, err := s.resourceRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRecords %s: %w", s.spec.Name, err)
	}

	return records, nil
}

// CreateRecord runs the write path in order: validate upload, persist file, append record, and remove
// the file again if the record could not be persisted.
func (s *resourceService) CreateRecord(ctx context.Context, fields map[string]any, upload *Upload) (domain.Record, error) {
	// a request without any field is still a valid, if empty, record
	if fields == nil {
		fields = map[string]any{}
	}
	newRecord, err := domain.NewFromMap(fields)
	if err != nil {
		return nil, fmt.Errorf("CreateRecord %s: %w", s.spec.Name, err)
	}

	var filename string
	if upload != nil {
		filename, err = s.saveUpload(ctx, upload)
		if err != nil {
			return nil, fmt.Errorf("CreateRecord %s: %w", s.spec.Name, err)
		}
	}

	result, err := s.resourceRepo.Append(ctx, newRecord, filename)
	if err != nil {
		if filename != "" {
			s.discardImage(filename, "orphaned upload")
		}
		return nil, fmt.Errorf("CreateRecord %s: %w", s.spec.Name, err)
	}

	return result, nil
}

func (s *resourceService) saveUpload(ctx context.Context, upload *Upload) (string, error) {
	src, err := s.policy.check(upload)
	if err != nil {
		return "", err
	}

	// one extra byte tells an exactly-at-limit file apart from a larger one
	if s.policy.MaxSize > 0 {
		src = io.LimitReader(src, s.policy.MaxSize+1)
	}

	filename, written, err := s.images.Save(ctx, upload.Ext(), src)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrUpload, err)
	}

	if s.policy.MaxSize > 0 && written > s.policy.MaxSize {
		s.discardImage(filename, "oversized upload")
		return "", fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, s.policy.MaxSize)
	}

	return filename, nil
}

// DeleteRecord removes the record first. The image goes afterwards and a failure there is only logged.
func (s *resourceService) DeleteRecord(ctx context.Context, id int64) (domain.Record, error) {
	deleted, err := s.resourceRepo.DeleteByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("DeleteRecord %s/%d: %w", s.spec.Name, id, err)
	}

	if filename := deleted.ImageFilename(); filename != "" {
		s.discardImage(filename, "image of deleted record")
	}

	return deleted, nil
}

// SweepOrphans removes uploads no record points at. Files younger than grace are left alone since they
// may belong to a create that has not reached the document yet.
func (s *resourceService) SweepOrphans(ctx context.Context, grace time.Duration) (int, error) {
	records, present, err := s.resourceRepo.Snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("SweepOrphans %s: %w", s.spec.Name, err)
	}

	// a missing document says nothing about the uploads, they may belong to a document moved aside
	if !present {
		log.Printf("WARN: skipping orphan sweep for %s, its document does not exist yet", s.spec.Name)
		return 0, nil
	}

	keep := make(map[string]bool, len(records))
	for _, record := range records {
		if filename := record.ImageFilename(); filename != "" {
			keep[filename] = true
		}
	}

	removed, err := s.images.Sweep(ctx, keep, grace)
	for _, filename := range removed {
		log.Printf("INFO: removed orphaned %s upload '%s'", s.spec.Name, filename)
	}
	if err != nil {
		return len(removed), fmt.Errorf("SweepOrphans %s: %w", s.spec.Name, err)
	}

	return len(removed), nil
}

// discardImage is best effort, it never fails the request it runs in.
func (s *resourceService) discardImage(filename, what string) {
	// the request context may already be done, cleanup must still happen
	err := s.images.Remove(context.Background(), filename)
	if err == nil {
		return
	}

	if errors.Is(err, os.ErrNotExist) {
		log.Printf("WARN: %s '%s' for %s was already gone", what, filename, s.spec.Name)
		return
	}
	log.Printf("ERROR: failed to delete %s '%s' for %s: %v", what, filename, s.spec.Name, err)
}
