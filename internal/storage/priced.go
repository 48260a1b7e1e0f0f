package storage

import (
	"strconv"

	"transferScope/internal/model"
)

// CSVPricedSink appends priced transfers to a CSV table.
type CSVPricedSink struct {
	out *csvAppender
}

func NewCSVPricedSink(path string) *CSVPricedSink {
	return &CSVPricedSink{out: newCSVAppender(path, model.PricedTransferColumns)}
}

// PutPricedBatch appends rows; unpriced columns are left empty.
func (s *CSVPricedSink) PutPricedBatch(rows []model.PricedTransfer) error {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		record := transferRow(row.Transfer)
		priceWETH, priceUSD, valueUSD := "", "", ""
		if row.Priced {
			priceWETH = strconv.FormatFloat(row.PriceWETH, 'g', -1, 64)
		}
		if row.HasUSD {
			priceUSD = strconv.FormatFloat(row.PriceUSD, 'g', -1, 64)
			valueUSD = row.ValueUSD.StringFixed(6)
		}
		record = append(record, priceWETH, priceUSD, valueUSD, string(row.Venue), row.Pool)
		out = append(out, record)
	}
	return s.out.append(out)
}
