package dto

import "github.com/concerttix/console/internal/domain"

// UserListQuery captures admin user listing filters.
type UserListQuery struct {
	Search  string      `query:"search"`
	Role    domain.Role `query:"role"`
	Page    int         `query:"page"`
	PerPage int         `query:"per_page"`
}

// Filter converts the query into a client filter.
func (q UserListQuery) Filter() domain.UserFilter {
	return domain.UserFilter{Search: q.Search, Role: q.Role, Page: q.Page, PerPage: q.PerPage}
}

// ConcertListQuery captures concert listing filters.
type ConcertListQuery struct {
	Search  string               `query:"search"`
	Status  domain.ConcertStatus `query:"status"`
	Page    int                  `query:"page"`
	PerPage int                  `query:"per_page"`
}

// Filter converts the query into a client filter.
func (q ConcertListQuery) Filter() domain.ConcertFilter {
	return domain.ConcertFilter{Search: q.Search, Status: q.Status, Page: q.Page, PerPage: q.PerPage}
}

// SalesReportQuery captures the sales report range.
type SalesReportQuery struct {
	StartDate string `query:"start_date"`
	EndDate   string `query:"end_date"`
	ConcertID int64  `query:"concert_id"`
}
