package pricing

import (
	"fmt"

	"transferScope/internal/model"
)

// QuoteStatus tells whether a price was found.
type QuoteStatus int

const (
	QuoteUnavailable QuoteStatus = iota
	QuoteFound
)

func (s QuoteStatus) String() string {
	if s == QuoteFound {
		return "found"
	}
	return "unavailable"
}

// Quote is the result of a price lookup. Missing liquidity is an ordinary
// unavailable quote, not an error.
type Quote struct {
	Status QuoteStatus
	// Price of the base token denominated in the quote token.
	Price float64
	Venue model.Venue
	Pair  model.PairReference
	Block uint64
}

func unavailable(block uint64) Quote {
	return Quote{Status: QuoteUnavailable, Block: block}
}

func (q Quote) Available() bool {
	return q.Status == QuoteFound
}

func (q Quote) PricePoint() model.PricePoint {
	return model.PricePoint{BlockNumber: q.Block, Price: q.Price, Venue: q.Venue}
}

func (q Quote) String() string {
	if !q.Available() {
		return fmt.Sprintf("unavailable at block %d", q.Block)
	}
	return fmt.Sprintf("%g via %s pool %s at block %d", q.Price, q.Venue, q.Pair.Pool.Hex(), q.Block)
}
