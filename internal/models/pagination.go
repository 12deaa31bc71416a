package models

// PageQuery is a cursor-less page request.
type PageQuery struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// Offset returns the row offset for the requested page.
func (q PageQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// Pagination describes the returned page. NextPage is nil on the last page.
type Pagination struct {
	Page     int  `json:"page"`
	NextPage *int `json:"next_page,omitempty"`
}

// Paginate trims an over-fetched result set (page_size+1 rows requested) and
// reports whether a further page exists, avoiding a separate count query.
func Paginate[T any](rows []T, q PageQuery) ([]T, Pagination) {
	p := Pagination{Page: q.Page}
	if len(rows) == q.PageSize+1 {
		rows = rows[:q.PageSize]
		next := q.Page + 1
		p.NextPage = &next
	}
	return rows, p
}
