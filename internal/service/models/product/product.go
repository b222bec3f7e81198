package product

// Product is the validated catalog record returned by the product service
// for one requested product id.
type Product struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price"`
}
