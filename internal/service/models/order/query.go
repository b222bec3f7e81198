package order

// Query represents pagination and filter parameters for listing orders.
type Query struct {
	Status *Status `json:"status,omitempty"`
	Page   int     `json:"page,omitempty"`
	Limit  int     `json:"limit,omitempty"`
}

// Offset is the window start for the requested page.
func (q *Query) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Page is one page of orders together with pagination metadata.
type Page struct {
	Data []Order  `json:"data"`
	Meta PageMeta `json:"meta"`
}

type PageMeta struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	LastPage int   `json:"lastPage"`
}
