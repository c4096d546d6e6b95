package models

// Pagination describes the page a list response holds. Offset listings fill
// Page, PageSize and TotalCount; cursor listings fill PageSize and NextCursor.
type Pagination struct {
	Page       int    `json:"page,omitempty"`
	PageSize   int    `json:"page_size"`
	TotalCount int    `json:"total_count,omitempty"`
	NextCursor string `json:"next_cursor,omitempty"`
}
