package domain

// Pagination mirrors the API's paging block.
type Pagination struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasPrev bool `json:"has_prev"`
	HasNext bool `json:"has_next"`
}

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// UserFilter narrows admin user listings.
type UserFilter struct {
	Search  string
	Role    Role
	Page    int
	PerPage int
}

// Ticket is the downloadable artifact of a paid order.
type Ticket struct {
	Filename    string
	ContentType string
	Content     []byte
}
