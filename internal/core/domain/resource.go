package domain

// IDStrategy decides the id of a record appended to a collection.
type IDStrategy int

const (
	// IDMaxPlusOne assigns one more than the largest existing id, or 1 for an empty collection.
	IDMaxPlusOne IDStrategy = iota
	// IDSequentialCount assigns len(collection)+1. Kept for documents created by the old radio controller.
	IDSequentialCount
)

// Field is a form field a resource accepts on create.
type Field struct {
	Name string
	// List fields collect every non-empty value sent under Name and are always stored as an array.
	List bool
}

// Messages are the human readable texts returned to clients for one resource.
type Messages struct {
	Created  string
	Deleted  string
	NotFound string
}

// ResourceSpec is everything that differs between two resources. The store, upload handling and
// endpoints are shared.
type ResourceSpec struct {
	Name     string
	Fields   []Field
	Messages Messages

	IDStrategy IDStrategy
	// StampUpdatedAt adds updatedAt next to createdAt on new records.
	StampUpdatedAt bool
	// ValidateImages restricts uploads to jpeg, png and gif.
	ValidateImages bool
}

// DocumentName is the filename of the JSON document backing the resource.
func (s ResourceSpec) DocumentName() string {
	return s.Name + ".json"
}
