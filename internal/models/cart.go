package models

// CartItem is a submitted line: a product reference and a quantity.
type CartItem struct {
	Product  string `json:"product" binding:"required,uuid"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}
