package config

const (
	// MaxCategoryNameLength is the maximum length for category names.
	// Limited to 100 to fit in PostgreSQL VARCHAR(100) and keep breadcrumb
	// paths renderable.
	MaxCategoryNameLength = 100

	// MaxCategoryDescriptionLength is the maximum length for category
	// descriptions.
	MaxCategoryDescriptionLength = 500

	// MaxTreeDepth bounds how deep a category can sit. Deeper hierarchies
	// are an anti-pattern for budget breakdowns and make the cascaded
	// path recomputation needlessly expensive.
	MaxTreeDepth = 10

	// DefaultPageSize is the page size used when a listing request does not
	// specify one.
	DefaultPageSize = 20

	// MaxPageSize caps the page size a caller may request.
	MaxPageSize = 100

	// MaxBulkCreateItems caps a single bulk creation batch.
	MaxBulkCreateItems = 50
)
