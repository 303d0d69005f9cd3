package jsonrepo_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"schoolboard/internal/adapters/driven/jsonrepo"
	"schoolboard/internal/core/domain"
	"schoolboard/internal/core/service/resource"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testData = `[
	{"id": 5, "title": "lab", "imageUrl": "5.png", "createdAt": "2024-01-01T00:00:00.000Z"},
	{"id": 10, "title": "reception", "imageUrl": null, "createdAt": "2024-01-02T00:00:00.000Z"},
	{"id": 25, "title": "classroom", "imageUrl": null, "createdAt": "2024-01-03T00:00:00.000Z", "views": 12345678901234567890}
]`

var fixedNow = time.Date(2024, 3, 1, 12, 30, 45, 123_000_000, time.UTC)

type failingPersister struct {
	calls int
}

func (p *failingPersister) Persist(filename string, records []domain.Record) error {
	p.calls++
	return errors.New("disk full")
}

// setupTestEnvironment writes initialData (if not nil) as the document for spec and returns the repository
func setupTestEnvironment(t *testing.T, spec domain.ResourceSpec, initialData *string, opts ...jsonrepo.Option) *jsonrepo.JsonRepository {
	t.Helper()
	tempDir := t.TempDir()

	if initialData != nil {
		err := os.WriteFile(filepath.Join(tempDir, spec.DocumentName()), []byte(*initialData), 0644)
		require.NoError(t, err, "Failed to write initial test data")
	}

	opts = append([]jsonrepo.Option{jsonrepo.WithClock(func() time.Time { return fixedNow })}, opts...)

	repo, err := jsonrepo.NewJsonRepository(tempDir, spec, opts...)
	require.NoError(t, err, "Failed to initialize repository")
	return repo
}

func ptr(s string) *string {
	return &s
}

func ids(records []domain.Record) []int64 {
	result := make([]int64, 0, len(records))
	for _, record := range records {
		id, _ := record.ID()
		result = append(result, id)
	}
	return result
}

func TestListAll(t *testing.T) {
	testCases := map[string]struct {
		initialData *string
		wantIDs     []int64
		wantErr     error
	}{
		"ok - collection keeps document order": {
			initialData: ptr(testData),
			wantIDs:     []int64{5, 10, 25},
		},
		"ok - missing document": {
			initialData: nil,
			wantIDs:     []int64{},
		},
		"ok - empty document": {
			initialData: ptr(""),
			wantIDs:     []int64{},
		},
		"ok - whitespace document": {
			initialData: ptr(" \n\t"),
			wantIDs:     []int64{},
		},
		"ok - empty array": {
			initialData: ptr("[]"),
			wantIDs:     []int64{},
		},
		"error - invalid JSON": {
			initialData: ptr(`[{"id": 1,`),
			wantErr:     resource.ErrMalformedData,
		},
		"error - object instead of array": {
			initialData: ptr(`{"id": 1}`),
			wantErr:     resource.ErrMalformedData,
		},
		"error - non-object item": {
			initialData: ptr(`[{"id": 1}, 7]`),
			wantErr:     resource.ErrMalformedData,
		},
		"error - missing id": {
			initialData: ptr(`[{"title": "no id"}]`),
			wantErr:     resource.ErrMalformedData,
		},
		"error - string id": {
			initialData: ptr(`[{"id": "1"}]`),
			wantErr:     resource.ErrMalformedData,
		},
		"error - trailing data": {
			initialData: ptr(`[{"id": 1}] [{"id": 2}]`),
			wantErr:     resource.ErrMalformedData,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			repo := setupTestEnvironment(t, domain.News, tc.initialData)

			records, err := repo.ListAll(context.Background())

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			assert.NotNil(t, records)
			assert.Equal(t, tc.wantIDs, ids(records))
		})
	}
}

func TestListAll_StorageReadError(t *testing.T) {
	tempDir := t.TempDir()
	// a directory where the document should be can't be read as a file
	require.NoError(t, os.Mkdir(filepath.Join(tempDir, domain.News.DocumentName()), 0755))

	repo, err := jsonrepo.NewJsonRepository(tempDir, domain.News)
	require.NoError(t, err)

	_, err = repo.ListAll(context.Background())
	assert.ErrorIs(t, err, resource.ErrStorageRead)
}

func TestListAll_CancelledContext(t *testing.T) {
	repo := setupTestEnvironment(t, domain.News, ptr(testData))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.ListAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSnapshot(t *testing.T) {
	testCases := map[string]struct {
		initialData *string
		wantPresent bool
		wantIDs     []int64
	}{
		"missing document":     {initialData: nil, wantPresent: false, wantIDs: []int64{}},
		"blank document":       {initialData: ptr(" \n"), wantPresent: false, wantIDs: []int64{}},
		"empty array":          {initialData: ptr("[]"), wantPresent: true, wantIDs: []int64{}},
		"populated collection": {initialData: ptr(testData), wantPresent: true, wantIDs: []int64{5, 10, 25}},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			repo := setupTestEnvironment(t, domain.News, tc.initialData)

			records, present, err := repo.Snapshot(context.Background())

			require.NoError(t, err)
			assert.Equal(t, tc.wantPresent, present)
			assert.Equal(t, tc.wantIDs, ids(records))
		})
	}
}

func TestAppend(t *testing.T) {
	testCases := map[string]struct {
		spec          domain.ResourceSpec
		initialData   *string
		fields        domain.Record
		imageFilename string
		wantRecord    domain.Record
	}{
		"first record gets id 1": {
			spec:        domain.Trips,
			initialData: nil,
			fields:      domain.Record{"destination": "Goa", "date": "2024-01-01", "description": "trip"},
			wantRecord: domain.Record{
				"id": int64(1), "destination": "Goa", "date": "2024-01-01", "description": "trip",
				"imageUrl": nil, "createdAt": "2024-03-01T12:30:45.123Z",
			},
		},
		"next id is max plus one": {
			spec:          domain.News,
			initialData:   ptr(testData),
			fields:        domain.Record{"title": "gym", "content": "new floor"},
			imageFilename: "1709296245123-abc.png",
			wantRecord: domain.Record{
				"id": int64(26), "title": "gym", "content": "new floor",
				"imageUrl": "1709296245123-abc.png", "createdAt": "2024-03-01T12:30:45.123Z", "updatedAt": "2024-03-01T12:30:45.123Z",
			},
		},
		"server fields win over client ones": {
			spec:        domain.Radio,
			initialData: ptr(`[{"id": 3}]`),
			fields:      domain.Record{"id": 1, "title": "show", "imageUrl": "../../etc/passwd", "createdAt": "yesterday"},
			wantRecord: domain.Record{
				"id": int64(4), "title": "show", "imageUrl": nil, "createdAt": "2024-03-01T12:30:45.123Z",
			},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			repo := setupTestEnvironment(t, tc.spec, tc.initialData)
			ctx := context.Background()

			before, err := repo.ListAll(ctx)
			require.NoError(t, err)

			record, err := repo.Append(ctx, tc.fields, tc.imageFilename)
			require.NoError(t, err)
			assert.Equal(t, tc.wantRecord, record)

			after, err := repo.ListAll(ctx)
			require.NoError(t, err)
			require.Len(t, after, len(before)+1)

			newID, _ := record.ID()
			for _, id := range ids(before) {
				assert.Greater(t, newID, id)
			}
			assert.Equal(t, newID, ids(after)[len(after)-1])
		})
	}
}

func TestAppend_PreservesExistingRecords(t *testing.T) {
	repo := setupTestEnvironment(t, domain.News, ptr(testData))
	ctx := context.Background()

	_, err := repo.Append(ctx, domain.Record{"title": "gym"}, "")
	require.NoError(t, err)

	data, err := os.ReadFile(repo.Filename())
	require.NoError(t, err)

	// numbers are written back literally, not through float64
	assert.Contains(t, string(data), "12345678901234567890")

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 4)
	assert.Equal(t, "5.png", raw[0]["imageUrl"])
	assert.Equal(t, "reception", raw[1]["title"])
}

func TestAppend_RoundTripKeepsOrderAndFields(t *testing.T) {
	repo := setupTestEnvironment(t, domain.Students, nil)
	ctx := context.Background()

	const n = 10
	for i := range n {
		_, err := repo.Append(ctx, domain.Record{
			"name":         fmt.Sprintf("student %d", i),
			"grade":        "7B",
			"achievements": []string{"chess", fmt.Sprintf("prize %d", i)},
		}, "")
		require.NoError(t, err)
	}

	records, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, n)

	for i, record := range records {
		assert.Equal(t, domain.Record{
			"id":           int64(i + 1),
			"name":         fmt.Sprintf("student %d", i),
			"grade":        "7B",
			"achievements": []any{"chess", fmt.Sprintf("prize %d", i)},
			"imageUrl":     nil,
			"createdAt":    "2024-03-01T12:30:45.123Z",
			"updatedAt":    "2024-03-01T12:30:45.123Z",
		}, record)
	}
}

func TestAppend_SequentialCountStrategy(t *testing.T) {
	spec := domain.Radio
	spec.IDStrategy = domain.IDSequentialCount

	testCases := map[string]struct {
		initialData string
		wantID      int64
	}{
		"empty":                       {initialData: `[]`, wantID: 1},
		"no gaps":                     {initialData: `[{"id": 1}, {"id": 2}, {"id": 3}]`, wantID: 4},
		"gap below the count":         {initialData: `[{"id": 1}, {"id": 5}]`, wantID: 3},
		"count collides after delete": {initialData: `[{"id": 1}, {"id": 3}]`, wantID: 4},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			repo := setupTestEnvironment(t, spec, ptr(tc.initialData))

			record, err := repo.Append(context.Background(), domain.Record{"title": "show"}, "")
			require.NoError(t, err)

			id, _ := record.ID()
			assert.Equal(t, tc.wantID, id)
		})
	}
}

func TestAppend_PersistFailureLeavesDocument(t *testing.T) {
	persister := &failingPersister{}
	repo := setupTestEnvironment(t, domain.News, ptr(testData), jsonrepo.WithPersister(persister))
	ctx := context.Background()

	record, err := repo.Append(ctx, domain.Record{"title": "lost"}, "1-x.png")
	assert.ErrorIs(t, err, resource.ErrStorageWrite)
	assert.Nil(t, record)
	assert.Equal(t, 1, persister.calls)

	records, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 10, 25}, ids(records))
}

func TestAppend_ConcurrentWritersDoNotLoseRecords(t *testing.T) {
	repo := setupTestEnvironment(t, domain.Trips, nil)
	ctx := context.Background()

	const writers = 40
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Append(ctx, domain.Record{"destination": fmt.Sprintf("city %d", i)}, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	records, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, writers)

	seen := make(map[int64]bool, writers)
	for _, id := range ids(records) {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	for id := int64(1); id <= writers; id++ {
		assert.True(t, seen[id], "missing id %d", id)
	}
}

func TestDeleteByID(t *testing.T) {
	testCases := map[string]struct {
		id         int64
		wantTitle  string
		wantRemain []int64
		wantErr    error
	}{
		"ok - middle record": {
			id:         10,
			wantTitle:  "reception",
			wantRemain: []int64{5, 25},
		},
		"ok - first record": {
			id:         5,
			wantTitle:  "lab",
			wantRemain: []int64{10, 25},
		},
		"error - record not found": {
			id:         999,
			wantRemain: []int64{5, 10, 25},
			wantErr:    resource.ErrRecordNotFound,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			repo := setupTestEnvironment(t, domain.News, ptr(testData))
			ctx := context.Background()

			deleted, err := repo.DeleteByID(ctx, tc.id)

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, deleted)

				data, readErr := os.ReadFile(repo.Filename())
				require.NoError(t, readErr)
				assert.Equal(t, testData, string(data), "document must not be rewritten")
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.wantTitle, deleted["title"])
				id, _ := deleted.ID()
				assert.Equal(t, tc.id, id)
			}

			records, err := repo.ListAll(ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.wantRemain, ids(records))
		})
	}
}

func TestDeleteByID_NextIDFollowsRemainingMax(t *testing.T) {
	repo := setupTestEnvironment(t, domain.Trips, nil)
	ctx := context.Background()

	for range 3 {
		_, err := repo.Append(ctx, domain.Record{"destination": "Goa"}, "")
		require.NoError(t, err)
	}

	_, err := repo.DeleteByID(ctx, 2)
	require.NoError(t, err)

	record, err := repo.Append(ctx, domain.Record{"destination": "Pune"}, "")
	require.NoError(t, err)

	// a gap is never refilled
	id, _ := record.ID()
	assert.Equal(t, int64(4), id)

	records, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4}, ids(records))
}

func TestDeleteByID_PersistFailureKeepsRecord(t *testing.T) {
	repo := setupTestEnvironment(t, domain.News, ptr(testData), jsonrepo.WithPersister(&failingPersister{}))
	ctx := context.Background()

	deleted, err := repo.DeleteByID(ctx, 10)
	assert.ErrorIs(t, err, resource.ErrStorageWrite)
	assert.Nil(t, deleted)

	records, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 10, 25}, ids(records))
}

func TestWatch_NotifiesOnWrite(t *testing.T) {
	repo := setupTestEnvironment(t, domain.News, ptr(testData))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 1)
	err := repo.Watch(ctx, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)

	_, err = repo.Append(context.Background(), domain.Record{"title": "watched"}, "")
	require.NoError(t, err)

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the document change")
	}
}
