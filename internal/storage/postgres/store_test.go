package postgres

import (
	"context"
	"math/big"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"transferScope/internal/model"
	"transferScope/internal/scanner"
)

func TestNewStoreRequiresDSN(t *testing.T) {
	if _, err := NewStore(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestTokenRowConversion(t *testing.T) {
	supply := "1000000000000000000000000"
	row := tokenRow{
		Address:        "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
		Symbol:         "WETH",
		Name:           "Wrapped Ether",
		Decimals:       18,
		TotalSupply:    &supply,
		BlockNumber:    4719568,
		BlockHash:      "0x01",
		BlockTimestamp: 1513077455,
	}

	token, err := row.token()
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if token.Address != common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2") {
		t.Fatalf("unexpected address %s", token.Address.Hex())
	}
	if token.CreationBlock != 4719568 || token.Decimals != 18 {
		t.Fatalf("unexpected token %+v", token)
	}
	if token.TotalSupply == nil || token.TotalSupply.String() != supply {
		t.Fatalf("unexpected total supply %v", token.TotalSupply)
	}
}

func TestTokenRowConversionRejectsInvalid(t *testing.T) {
	if _, err := (tokenRow{Address: "nope"}).token(); err == nil {
		t.Fatalf("expected invalid address error")
	}
	bad := "12abc"
	if _, err := (tokenRow{Address: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", TotalSupply: &bad}).token(); err == nil {
		t.Fatalf("expected invalid supply error")
	}
}

// Runs against a real database when SCANNER_TEST_PG_DSN is set.
func TestStoreTokensAndMemo(t *testing.T) {
	dsn := os.Getenv("SCANNER_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("SCANNER_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}

	token := model.Token{
		Address:           common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		Symbol:            "TST",
		Name:              "Test",
		Decimals:          6,
		TotalSupply:       big.NewInt(1_000_000),
		CreationBlock:     100,
		CreationBlockHash: common.HexToHash("0x01"),
		CreationTimestamp: 1_700_000_000,
	}
	if err := store.TokenSink(ctx).PutTokens([]model.Token{token}); err != nil {
		t.Fatalf("put tokens: %v", err)
	}
	tokens, err := store.LoadTokens(ctx, 0)
	if err != nil {
		t.Fatalf("load tokens: %v", err)
	}
	var found bool
	for _, got := range tokens {
		if got.Address == token.Address {
			found = got.Symbol == "TST" && got.CreationBlock == 100
		}
	}
	if !found {
		t.Fatalf("token not loaded back: %+v", tokens)
	}

	if err := store.Save(ctx, token.Address, scanner.MemoEntry{ChunkSize: 625, NextFrom: 5001}); err != nil {
		t.Fatalf("save memo: %v", err)
	}
	entry, ok, err := store.Load(ctx, token.Address)
	if err != nil || !ok {
		t.Fatalf("load memo: ok=%v err=%v", ok, err)
	}
	if entry.ChunkSize != 625 || entry.NextFrom != 5001 {
		t.Fatalf("unexpected memo %+v", entry)
	}
}
