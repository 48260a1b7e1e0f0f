package storage

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"transferScope/internal/model"
)

// CSVTransferSink appends transfers to a CSV table.
type CSVTransferSink struct {
	out *csvAppender
}

func NewCSVTransferSink(path string) *CSVTransferSink {
	return &CSVTransferSink{out: newCSVAppender(path, model.TransferColumns)}
}

// PutTransferBatch appends a batch of transfer rows.
func (s *CSVTransferSink) PutTransferBatch(events []model.TransferEvent) error {
	rows := make([][]string, 0, len(events))
	for _, event := range events {
		rows = append(rows, transferRow(event))
	}
	return s.out.append(rows)
}

func transferRow(event model.TransferEvent) []string {
	quantity := "0"
	if event.Quantity != nil {
		quantity = event.Quantity.String()
	}
	return []string{
		event.Token.Hex(),
		event.From.Hex(),
		event.To.Hex(),
		quantity,
		strconv.FormatUint(event.BlockNumber, 10),
		event.TxHash.Hex(),
	}
}

// ReadTransfersCSV loads a transfers table written by CSVTransferSink.
func ReadTransfersCSV(path string) ([]model.TransferEvent, error) {
	records, index, err := readCSV(path, model.TransferColumns)
	if err != nil {
		return nil, err
	}

	events := make([]model.TransferEvent, 0, len(records))
	for i, record := range records {
		field := func(name string) string {
			pos := index[name]
			if pos >= len(record) {
				return ""
			}
			return record[pos]
		}
		line := i + 2

		for _, name := range []string{"address", "from", "to"} {
			if !common.IsHexAddress(field(name)) {
				return nil, fmt.Errorf("%s:%d: invalid %s %q", path, line, name, field(name))
			}
		}
		quantity, ok := new(big.Int).SetString(field("quantity"), 10)
		if !ok || quantity.Sign() < 0 {
			return nil, fmt.Errorf("%s:%d: invalid quantity %q", path, line, field("quantity"))
		}
		block, err := strconv.ParseUint(field("blockNumber"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: invalid blockNumber: %w", path, line, err)
		}

		events = append(events, model.TransferEvent{
			Token:       common.HexToAddress(field("address")),
			From:        common.HexToAddress(field("from")),
			To:          common.HexToAddress(field("to")),
			Quantity:    quantity,
			BlockNumber: block,
			TxHash:      common.HexToHash(field("transactionHash")),
		})
	}
	return events, nil
}
