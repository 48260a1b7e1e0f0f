package storage

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"transferScope/internal/model"
)

// TokenColumns is the header of the tokens table.
var TokenColumns = []string{
	"address",
	"symbol",
	"name",
	"decimals",
	"total_supply",
	"block_timestamp",
	"block_number",
	"block_hash",
}

// CSVTokenSink appends tokens to a CSV table.
type CSVTokenSink struct {
	out *csvAppender
}

func NewCSVTokenSink(path string) *CSVTokenSink {
	return &CSVTokenSink{out: newCSVAppender(path, TokenColumns)}
}

func (s *CSVTokenSink) PutTokens(tokens []model.Token) error {
	rows := make([][]string, 0, len(tokens))
	for _, token := range tokens {
		supply := ""
		if token.TotalSupply != nil {
			supply = token.TotalSupply.String()
		}
		rows = append(rows, []string{
			token.Address.Hex(),
			token.Symbol,
			token.Name,
			strconv.FormatUint(uint64(token.Decimals), 10),
			supply,
			strconv.FormatUint(token.CreationTimestamp, 10),
			strconv.FormatUint(token.CreationBlock, 10),
			token.CreationBlockHash.Hex(),
		})
	}
	return s.out.append(rows)
}

// ReadTokensCSV loads tokens. Only address and block_number are required;
// other columns are read when present.
func ReadTokensCSV(path string) ([]model.Token, error) {
	records, index, err := readCSV(path, []string{"address", "block_number"})
	if err != nil {
		return nil, err
	}

	tokens := make([]model.Token, 0, len(records))
	for i, record := range records {
		field := func(name string) string {
			pos, ok := index[name]
			if !ok || pos >= len(record) {
				return ""
			}
			return record[pos]
		}
		line := i + 2

		if !common.IsHexAddress(field("address")) {
			return nil, fmt.Errorf("%s:%d: invalid address %q", path, line, field("address"))
		}
		block, err := strconv.ParseUint(field("block_number"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: invalid block_number: %w", path, line, err)
		}

		token := model.Token{
			Address:           common.HexToAddress(field("address")),
			Symbol:            field("symbol"),
			Name:              field("name"),
			CreationBlock:     block,
			CreationBlockHash: common.HexToHash(field("block_hash")),
		}
		if raw := field("decimals"); raw != "" {
			decimals, err := strconv.ParseUint(raw, 10, 8)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: invalid decimals: %w", path, line, err)
			}
			token.Decimals = uint8(decimals)
		}
		if raw := field("total_supply"); raw != "" {
			supply, ok := new(big.Int).SetString(raw, 10)
			if !ok {
				return nil, fmt.Errorf("%s:%d: invalid total_supply %q", path, line, raw)
			}
			token.TotalSupply = supply
		}
		if raw := field("block_timestamp"); raw != "" {
			ts, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: invalid block_timestamp: %w", path, line, err)
			}
			token.CreationTimestamp = ts
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}
