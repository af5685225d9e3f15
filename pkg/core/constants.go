package core

import "errors"

// Errors
var (
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrTradeExists      = errors.New("trade exists")
	ErrNonexistentTrade = errors.New("nonexistent trade")
)
