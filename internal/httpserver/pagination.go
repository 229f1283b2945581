package httpserver

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/podut/hangman-server/internal/core"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type pageParams struct {
	Page     int
	PageSize int
}

func (p pageParams) offset() int { return (p.Page - 1) * p.PageSize }

// parsePage reads ?page (>= 1, default 1) and ?page_size (1..100,
// default 20).
func parsePage(r *http.Request) (pageParams, error) {
	p := pageParams{Page: 1, PageSize: defaultPageSize}
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, core.NewValidationError(core.ErrValidation, "page", "must be a positive integer")
		}
		p.Page = n
	}
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			return p, core.NewValidationError(core.ErrValidation, "page_size", fmt.Sprintf("must be between 1 and %d", maxPageSize))
		}
		p.PageSize = n
	}
	return p, nil
}

type pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalItems int  `json:"total_items"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

type page[T any] struct {
	Items      []T        `json:"items"`
	Pagination pagination `json:"pagination"`
}

// totalPages is at least 1 so an empty list still has a first page.
func totalPages(total, size int) int {
	if total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

func newPage[T any](items []T, p pageParams, total int) page[T] {
	pages := totalPages(total, p.PageSize)
	return page[T]{
		Items: items,
		Pagination: pagination{
			Page:       p.Page,
			PageSize:   p.PageSize,
			TotalItems: total,
			TotalPages: pages,
			HasNext:    p.Page < pages,
			HasPrev:    p.Page > 1,
		},
	}
}

// linkHeader builds an RFC 5988 Link value with first, last, next and prev
// relations. Other query parameters on u are preserved.
func linkHeader(u *url.URL, p pageParams, total int) string {
	pages := totalPages(total, p.PageSize)
	link := func(n int, rel string) string {
		q := u.Query()
		q.Set("page", strconv.Itoa(n))
		q.Set("page_size", strconv.Itoa(p.PageSize))
		return fmt.Sprintf(`<%s?%s>; rel="%s"`, u.Path, q.Encode(), rel)
	}
	links := []string{link(1, "first"), link(pages, "last")}
	if p.Page < pages {
		links = append(links, link(p.Page+1, "next"))
	}
	if p.Page > 1 {
		links = append(links, link(p.Page-1, "prev"))
	}
	return strings.Join(links, ", ")
}

// writePage sets the Link header and writes the page body.
func writePage[T any](w http.ResponseWriter, r *http.Request, items []T, p pageParams, total int) {
	w.Header().Set("Link", linkHeader(r.URL, p, total))
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	writeJSON(w, http.StatusOK, newPage(items, p, total))
}
