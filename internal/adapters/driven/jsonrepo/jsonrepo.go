package jsonrepo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"maps"
	"os"
	"path/filepath"
	"schoolboard/internal/core/domain"
	"schoolboard/internal/core/service/resource"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// JsonRepository stores one resource collection as a JSON array document. Every operation reads the
// document from disk, mutations write the whole collection back.
type JsonRepository struct {
	filename string
	spec     domain.ResourceSpec

	// mu serialises read-modify-write cycles so concurrent creates can't lose each other's records
	mu         sync.RWMutex
	persister  Persister
	normaliser *dataNormaliser
	now        func() time.Time
}

var _ resource.Repository = (*JsonRepository)(nil)

type Option func(*JsonRepository)

// WithPersister replaces the file persister, tests use it to simulate failing writes.
func WithPersister(p Persister) Option {
	return func(r *JsonRepository) {
		r.persister = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *JsonRepository) {
		r.now = now
	}
}

// NewJsonRepository creates the repository for spec backed by dataDir/<name>.json. A missing document
// is fine, it reads as an empty collection until the first write creates it.
func NewJsonRepository(dataDir string, spec domain.ResourceSpec, opts ...Option) (*JsonRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("could not create data directory %s: %w", dataDir, err)
	}

	filename, err := filepath.Abs(filepath.Join(dataDir, spec.DocumentName()))
	if err != nil {
		return nil, err
	}

	repo := &JsonRepository{
		filename:   filename,
		spec:       spec,
		persister:  NewFilePersister(),
		normaliser: NewDataNormaliser(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(repo)
	}

	return repo, nil
}

// Filename returns the absolute path of the backing document.
func (r *JsonRepository) Filename() string {
	return r.filename
}

// load reads the collection. present is false when the document is missing or blank, which reads as an
// empty collection that was never initialised.
func (r *JsonRepository) load() (records []domain.Record, present bool, err error) {
	data, err := os.ReadFile(r.filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []domain.Record{}, false, nil
		}
		return nil, false, fmt.Errorf("%w: %w", resource.ErrStorageRead, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []domain.Record{}, false, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, true, fmt.Errorf("%w: %s: %v", resource.ErrMalformedData, r.filename, err)
	}

	var trailing any
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		return nil, true, fmt.Errorf("%w: %s: unexpected data after the array", resource.ErrMalformedData, r.filename)
	}

	records, err = r.normaliser.normalise(raw)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %s: %v", resource.ErrMalformedData, r.filename, err)
	}

	return records, true, nil
}

// persist writes the entire collection back to the JSON document
func (r *JsonRepository) persist(records []domain.Record) error {
	if err := r.persister.Persist(r.filename, records); err != nil {
		log.Printf("ERROR: Failed to persist data to %s: %v", r.filename, err)
		return fmt.Errorf("%w: %w", resource.ErrStorageWrite, err)
	}
	return nil
}

func (r *JsonRepository) ListAll(ctx context.Context) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	records, _, err := r.load()
	return records, err
}

// Snapshot is ListAll that also reports whether the document exists with content.
func (r *JsonRepository) Snapshot(ctx context.Context) ([]domain.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.load()
}

func (r *JsonRepository) Append(ctx context.Context, fields domain.Record, imageFilename string) (domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	collection, _, err := r.load()
	if err != nil {
		return nil, err
	}

	newRecord := make(domain.Record, len(fields)+4)
	maps.Copy(newRecord, fields)

	newRecord.SetID(r.nextID(collection))

	if imageFilename != "" {
		newRecord[domain.KeyImage] = imageFilename
	} else {
		newRecord[domain.KeyImage] = nil
	}

	stamp := r.now().UTC().Format(domain.TimestampLayout)
	newRecord[domain.KeyCreatedAt] = stamp
	if r.spec.StampUpdatedAt {
		newRecord[domain.KeyUpdatedAt] = stamp
	}

	if err := r.persist(append(collection, newRecord)); err != nil {
		return nil, err
	}

	return newRecord, nil
}

func (r *JsonRepository) DeleteByID(ctx context.Context, id int64) (domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	collection, _, err := r.load()
	if err != nil {
		return nil, err
	}

	index := slices.IndexFunc(collection, func(record domain.Record) bool {
		recordID, ok := record.ID()
		return ok && recordID == id
	})
	if index == -1 {
		return nil, fmt.Errorf("%w: %s id %d", resource.ErrRecordNotFound, r.spec.Name, id)
	}

	deleted := collection[index]
	remaining := slices.Delete(collection, index, index+1)

	// on failure the document still holds the record, so nothing is deleted
	if err := r.persist(remaining); err != nil {
		return nil, err
	}

	return deleted, nil
}

func (r *JsonRepository) nextID(collection []domain.Record) int64 {
	var maxID int64
	taken := make(map[int64]bool, len(collection))

	for _, record := range collection {
		id, _ := record.ID()
		taken[id] = true
		maxID = max(maxID, id)
	}

	if r.spec.IDStrategy == domain.IDSequentialCount {
		candidate := int64(len(collection)) + 1
		if !taken[candidate] {
			return candidate
		}
		log.Printf("WARN: %s id %d from collection length is taken, using %d", r.spec.Name, candidate, maxID+1)
	}

	return maxID + 1
}
