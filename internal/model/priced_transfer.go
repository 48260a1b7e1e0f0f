package model

import "github.com/shopspring/decimal"

// PricedTransfer annotates a transfer with prices at its block.
// Priced is false when no venue could price the token.
type PricedTransfer struct {
	Transfer  TransferEvent
	Priced    bool
	PriceWETH float64
	PriceUSD  float64
	HasUSD    bool
	ValueUSD  decimal.Decimal
	Venue     Venue
	Pool      string
}

// PricedTransferColumns extends TransferColumns with the price annotations.
var PricedTransferColumns = append(append([]string{}, TransferColumns...),
	"price_weth", "price_usd", "value_usd", "venue", "pool_address")
