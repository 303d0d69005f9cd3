package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/goccy/go-json"
)

// keys every record carries regardless of its resource
const (
	KeyID        = "id"
	KeyImage     = "imageUrl"
	KeyCreatedAt = "createdAt"
	KeyUpdatedAt = "updatedAt"
)

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

var ErrInvalidID = errors.New("record id is not a positive integer")

type Record map[string]any

// ID returns the numeric id of the record. The id may have come from a decoded document (json.Number,
// float64) or from a record built in memory (int64, int).
func (r Record) ID() (int64, bool) {
	id, ok := r[KeyID]
	if !ok {
		return 0, false
	}

	n, err := ParseID(id)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (r Record) SetID(id int64) {
	r[KeyID] = id
}

// ImageFilename returns the stored filename of the attached image, empty if there is none.
func (r Record) ImageFilename() string {
	name, _ := r[KeyImage].(string)
	return name
}

func NewFromMap(data map[string]any) (Record, error) {
	if data == nil {
		return nil, errors.New("cannot create record from nil data")
	}

	return Record(data), nil
}

// ParseIDParam parses an id taken from a URL path.
func ParseIDParam(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return n, nil
}

// ParseID converts a numeric id as found in a record into an int64. Strings are not ids.
func ParseID(v any) (int64, error) {
	var n int64
	switch id := v.(type) {
	case int64:
		n = id
	case int:
		n = int64(id)
	case json.Number:
		parsed, err := id.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidID, id.String())
		}
		n = parsed
	case float64:
		if id != math.Trunc(id) || id > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %v", ErrInvalidID, id)
		}
		n = int64(id)
	default:
		return 0, fmt.Errorf("%w: %T", ErrInvalidID, v)
	}

	if n <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidID, n)
	}
	return n, nil
}
