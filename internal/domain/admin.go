package domain

// DashboardStats is the admin overview.
type DashboardStats struct {
	TotalUsers     int          `json:"total_users"`
	TotalConcerts  int          `json:"total_concerts"`
	TotalOrders    int          `json:"total_orders"`
	TotalRevenue   float64      `json:"total_revenue"`
	MonthlyRevenue float64      `json:"monthly_revenue"`
	RecentOrders   []Order      `json:"recent_orders"`
	TopConcerts    []TopConcert `json:"top_concerts"`
}

// TopConcert ranks concerts by tickets sold.
type TopConcert struct {
	Title       string  `json:"title"`
	Venue       string  `json:"venue"`
	TicketsSold int     `json:"tickets_sold"`
	Revenue     float64 `json:"revenue"`
}

// SalesReportFilter bounds the admin sales report.
type SalesReportFilter struct {
	StartDate string
	EndDate   string
	ConcertID int64
}
