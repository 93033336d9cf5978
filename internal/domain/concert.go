package domain

// ConcertStatus enumerates concert scheduling states.
type ConcertStatus string

const (
	ConcertUpcoming  ConcertStatus = "upcoming"
	ConcertOngoing   ConcertStatus = "ongoing"
	ConcertCompleted ConcertStatus = "completed"
)

// Concert is an event with purchasable ticket types.
type Concert struct {
	ID          int64         `json:"concert_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Venue       string        `json:"venue"`
	Date        string        `json:"date"`
	Time        string        `json:"time"`
	BannerImage *string       `json:"banner_image"`
	Status      ConcertStatus `json:"status"`
	TicketTypes []TicketType  `json:"ticket_types,omitempty"`
}

// TicketType is a priced class of tickets for a concert.
type TicketType struct {
	ID                int64   `json:"ticket_type_id"`
	ConcertID         int64   `json:"concert_id"`
	Name              string  `json:"name"`
	Price             float64 `json:"price"`
	QuantityTotal     int     `json:"quantity_total"`
	QuantityAvailable int     `json:"quantity_available"`
}

// ConcertInput creates or updates a concert.
type ConcertInput struct {
	Title       string        `json:"title,omitempty"`
	Description string        `json:"description,omitempty"`
	Venue       string        `json:"venue,omitempty"`
	Date        string        `json:"date,omitempty"`
	Time        string        `json:"time,omitempty"`
	BannerImage string        `json:"banner_image,omitempty"`
	Status      ConcertStatus `json:"status,omitempty"`
}

// TicketTypeInput creates or updates a ticket type.
type TicketTypeInput struct {
	Name          string  `json:"name,omitempty"`
	Price         float64 `json:"price,omitempty"`
	QuantityTotal int     `json:"quantity_total,omitempty"`
}

// ConcertFilter narrows concert listings.
type ConcertFilter struct {
	Search  string
	Status  ConcertStatus
	Page    int
	PerPage int
}
