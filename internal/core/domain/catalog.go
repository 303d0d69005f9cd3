package domain

var (
	News = ResourceSpec{
		Name:   "news",
		Fields: []Field{{Name: "title"}, {Name: "content"}},
		Messages: Messages{
			Created:  "News added successfully!",
			Deleted:  "News entry deleted successfully",
			NotFound: "News entry not found",
		},
		StampUpdatedAt: true,
	}

	Trips = ResourceSpec{
		Name:   "trips",
		Fields: []Field{{Name: "destination"}, {Name: "date"}, {Name: "description"}},
		Messages: Messages{
			Created:  "Trip added successfully!",
			Deleted:  "Trip deleted successfully",
			NotFound: "Trip not found",
		},
		ValidateImages: true,
	}

	Students = ResourceSpec{
		Name:   "students",
		Fields: []Field{{Name: "name"}, {Name: "grade"}, {Name: "achievements", List: true}},
		Messages: Messages{
			Created:  "Student added successfully",
			Deleted:  "Student deleted successfully",
			NotFound: "Student not found",
		},
		StampUpdatedAt: true,
		ValidateImages: true,
	}

	Radio = ResourceSpec{
		Name:   "radio",
		Fields: []Field{{Name: "title"}, {Name: "description"}},
		Messages: Messages{
			Created:  "Radio entry added successfully!",
			Deleted:  "Radio entry deleted successfully",
			NotFound: "Radio entry not found",
		},
	}
)

// Catalog returns the served resources in route registration order.
func Catalog() []ResourceSpec {
	return []ResourceSpec{News, Trips, Students, Radio}
}
