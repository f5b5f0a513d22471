package helpers

import (
	"net/http"
	"strconv"

	"orbit/internal/domain"
)

// Pagination query parameter defaults and limits.
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// queryInt returns the query parameter as a positive int, or fallback when it
// is missing, malformed, or less than 1.
func queryInt(r *http.Request, key string, fallback int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

// ParsePagination reads page and page_size from the query string. Bad values
// fall back to the defaults rather than erroring; page_size is capped at
// MaxPageSize.
func ParsePagination(r *http.Request) domain.PaginationParams {
	pageSize := queryInt(r, "page_size", DefaultPageSize)
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return domain.PaginationParams{
		Page:     queryInt(r, "page", DefaultPage),
		PageSize: pageSize,
	}
}

// PaginationMeta is the pagination block included in paginated list responses.
// swagger:model PaginationMeta
type PaginationMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPaginationMeta builds PaginationMeta for the given page of a total-item
// result set. TotalPages rounds up; a zero pageSize yields zero pages.
func NewPaginationMeta(page, pageSize, total int) PaginationMeta {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return PaginationMeta{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}
