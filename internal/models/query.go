package models

// ListQuery is the immutable snapshot of one collection view's parameters,
// sent as-is with each request.
type ListQuery struct {
	SearchText    string `json:"search"`
	SortField     string `json:"sort_field"`
	SortDirection string `json:"sort_direction"`
	Page          int    `json:"page"`
}

// PageMeta is the pagination block of a collection response.
type PageMeta struct {
	CurrentPage int     `json:"current_page"`
	LastPage    int     `json:"last_page"`
	PerPage     int     `json:"per_page"`
	Total       int     `json:"total"`
	NextPageURL *string `json:"next_page_url"`
	PrevPageURL *string `json:"prev_page_url"`
}
