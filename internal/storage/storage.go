package storage

import "transferScope/internal/model"

// TransferSink is an append-only destination for transfer events. Implementations
// must be safe for concurrent use and write each batch without interleaving.
type TransferSink interface {
	PutTransferBatch(events []model.TransferEvent) error
}

// TokenSink is an append-only destination for discovered tokens.
type TokenSink interface {
	PutTokens(tokens []model.Token) error
}

// PricedSink is an append-only destination for priced transfers.
type PricedSink interface {
	PutPricedBatch(rows []model.PricedTransfer) error
}

// TokenSinks writes each batch to every sink in order, stopping at the first error.
type TokenSinks []TokenSink

func (s TokenSinks) PutTokens(tokens []model.Token) error {
	for _, sink := range s {
		if err := sink.PutTokens(tokens); err != nil {
			return err
		}
	}
	return nil
}
