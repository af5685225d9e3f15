package core

// Order is the externally supplied instruction to trade a quantity of an
// instrument at a price. It is immutable once created; field names follow
// the wire contract.
type Order struct {
	ClientID    string  `json:"clientId"`
	StockSymbol string  `json:"stockSymbol"`
	Quantity    int64   `json:"quantity"`
	Price       float64 `json:"price"`
}

// Validate checks the basic shape of an order before it enters the pipeline.
func (o Order) Validate() error {
	if o.ClientID == "" || o.StockSymbol == "" {
		return ErrInvalidArgument
	}
	if o.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if o.Price <= 0 {
		return ErrInvalidPrice
	}
	return nil
}
