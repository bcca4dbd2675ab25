package persist

// PageOptions controls pagination and sorting for paged queries.
type PageOptions struct {
	Limit     int    // Max results per page (default 50, max 1000).
	Offset    int    // Number of results to skip.
	SortBy    string // Sort key (validated against the definition's whitelist).
	SortOrder string // "asc" or "desc" (default "desc").
}

// Page wraps a paginated result set with the total count of rows matching
// the filter, computed with the same WHERE clause as the page query.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// normalizePageOptions applies defaults and caps to page options.
func normalizePageOptions(opts PageOptions) PageOptions {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Limit > 1000 {
		opts.Limit = 1000
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	if opts.SortOrder != "asc" {
		opts.SortOrder = "desc"
	}
	return opts
}
