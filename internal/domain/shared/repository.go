package shared

const (
	defaultPageSize = 20
	maxPageSize     = 500
)

// Filter narrows a tenant listing. Filters holds equality conditions keyed
// by column name; repositories whitelist the keys they accept.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Filters  map[string]interface{}
}

// DefaultFilter lists the first page, newest first
func DefaultFilter() Filter {
	return Filter{
		Page:     1,
		PageSize: defaultPageSize,
		OrderBy:  "created_at",
		OrderDir: "desc",
		Filters:  map[string]interface{}{},
	}
}

// Limit returns PageSize clamped to maxPageSize, or zero for no paging
func (f Filter) Limit() int {
	switch {
	case f.PageSize <= 0:
		return 0
	case f.PageSize > maxPageSize:
		return maxPageSize
	default:
		return f.PageSize
	}
}

// Offset returns the number of rows before the requested page
func (f Filter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit()
}
