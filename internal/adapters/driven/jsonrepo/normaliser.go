package jsonrepo

import (
	"fmt"
	"log"
	"schoolboard/internal/core/domain"
)

// dataNormaliser is an unexported struct responsible for transforming a decoded document into its canonical in-memory form
type dataNormaliser struct{}

func NewDataNormaliser() *dataNormaliser {
	return &dataNormaliser{}
}

// normalise checks the document is an array of objects with positive integer ids. Ids become int64,
// every other value is kept exactly as decoded so a rewrite doesn't alter it.
func (n *dataNormaliser) normalise(value any) ([]domain.Record, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array, found %T", value)
	}

	records := make([]domain.Record, 0, len(items))
	seen := make(map[int64]bool, len(items))

	for i, item := range items {
		itemMap, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d is %T, not an object", i, item)
		}

		id, err := domain.ParseID(itemMap[domain.KeyID])
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}

		// older radio documents can hold duplicates, they stay readable
		if seen[id] {
			log.Printf("WARN: duplicate id %d found at index %d", id, i)
		}
		seen[id] = true

		record := domain.Record(itemMap)
		record.SetID(id)
		records = append(records, record)
	}

	return records, nil
}
