package erc20

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"transferScope/internal/chain"
)

type fakeReader struct {
	responses map[string]func(block *big.Int) ([]byte, error)
	calls     []string
}

func (f *fakeReader) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	selector := common.Bytes2Hex(msg.Data[:4])
	f.calls = append(f.calls, selector)
	fn, ok := f.responses[selector]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return fn(block)
}

type fakeLogs struct {
	logs []types.Log
	err  error
}

func (f fakeLogs) FilterLogs(context.Context, uint64, uint64, []common.Address, []common.Hash) ([]types.Log, error) {
	return f.logs, f.err
}

func selector(t *testing.T, method string) string {
	t.Helper()
	parsed, err := ABI()
	require.NoError(t, err)
	return common.Bytes2Hex(parsed.Methods[method].ID)
}

func packOutput(t *testing.T, method string, values ...interface{}) []byte {
	t.Helper()
	parsed, err := ABI()
	require.NoError(t, err)
	out, err := parsed.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	return out
}

func transferLog(token, from, to common.Address, amount *big.Int, block uint64) types.Log {
	return types.Log{
		Address:     token,
		Topics:      []common.Hash{TransferTopic, common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
		Data:        common.LeftPadBytes(amount.Bytes(), 32),
		BlockNumber: block,
		TxHash:      common.HexToHash("0x01"),
		Index:       3,
	}
}

func TestTransferTopicMatchesABI(t *testing.T) {
	parsed, err := ABI()
	require.NoError(t, err)
	require.Equal(t, parsed.Events["Transfer"].ID, TransferTopic)
}

func TestTransferLogsDecodes(t *testing.T) {
	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	from := common.HexToAddress("0x2222222222222222222222222222222222222222")
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")
	amount, _ := new(big.Int).SetString("123456789012345678901234567890", 10)

	removed := transferLog(token, from, to, big.NewInt(1), 11)
	removed.Removed = true

	q := NewTransferQuerier(fakeLogs{logs: []types.Log{transferLog(token, from, to, amount, 10), removed}})
	events, err := q.TransferLogs(context.Background(), token, 1, 20)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, from, events[0].From)
	require.Equal(t, to, events[0].To)
	require.Equal(t, 0, events[0].Quantity.Cmp(amount))
	require.Equal(t, uint64(10), events[0].BlockNumber)
	require.Equal(t, token, events[0].Token)
}

func TestTransferLogsDecodeError(t *testing.T) {
	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	bad := transferLog(token, common.Address{}, common.Address{}, big.NewInt(5), 42)
	// ERC721 transfers index the token id as a fourth topic.
	bad.Topics = append(bad.Topics, common.BigToHash(big.NewInt(5)))
	bad.Data = nil

	q := NewTransferQuerier(fakeLogs{logs: []types.Log{bad}})
	_, err := q.TransferLogs(context.Background(), token, 1, 100)

	var decodeErr *chain.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	require.Equal(t, uint64(42), decodeErr.BlockNumber)
	require.Equal(t, chain.ClassDecode, chain.NewClassifier(nil).Classify(err))
}

func TestTransferLogsPassesBackendError(t *testing.T) {
	q := NewTransferQuerier(fakeLogs{err: chain.ErrResultTooLarge})
	_, err := q.TransferLogs(context.Background(), common.Address{}, 1, 2)
	require.ErrorIs(t, err, chain.ErrResultTooLarge)
}

func TestFetchTokenMetaBytes32Fallback(t *testing.T) {
	var symbol [32]byte
	copy(symbol[:], "MKR")
	bytes32, err := Bytes32ABI()
	require.NoError(t, err)
	symbolOut, err := bytes32.Methods["symbol"].Outputs.Pack(symbol)
	require.NoError(t, err)

	reader := &fakeReader{responses: map[string]func(*big.Int) ([]byte, error){
		selector(t, "decimals"): func(*big.Int) ([]byte, error) { return packOutput(t, "decimals", uint8(18)), nil },
		selector(t, "symbol"):   func(*big.Int) ([]byte, error) { return symbolOut, nil },
		selector(t, "name"):     func(*big.Int) ([]byte, error) { return packOutput(t, "name", "Maker"), nil },
		selector(t, "totalSupply"): func(*big.Int) ([]byte, error) {
			return packOutput(t, "totalSupply", big.NewInt(1000)), nil
		},
	}}

	meta, err := FetchTokenMeta(context.Background(), reader, common.HexToAddress("0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2"), 0, nil)
	require.NoError(t, err)
	require.Equal(t, uint8(18), meta.Decimals)
	require.Equal(t, "MKR", meta.Symbol)
	require.Equal(t, "Maker", meta.Name)
	require.Equal(t, "1000", meta.TotalSupply)
}

func TestDecimalsFallsBackToLatest(t *testing.T) {
	reader := &fakeReader{responses: map[string]func(*big.Int) ([]byte, error){
		selector(t, "decimals"): func(block *big.Int) ([]byte, error) {
			if block != nil {
				return nil, errors.New("missing trie node")
			}
			return packOutput(t, "decimals", uint8(6)), nil
		},
	}}

	decimals, err := Decimals(context.Background(), reader, common.Address{}, 15_000_000)
	require.NoError(t, err)
	require.Equal(t, uint8(6), decimals)
	require.Len(t, reader.calls, 2)
}

func TestIsERC20(t *testing.T) {
	full := &fakeReader{responses: map[string]func(*big.Int) ([]byte, error){
		selector(t, "balanceOf"):   func(*big.Int) ([]byte, error) { return packOutput(t, "balanceOf", big.NewInt(0)), nil },
		selector(t, "totalSupply"): func(*big.Int) ([]byte, error) { return packOutput(t, "totalSupply", big.NewInt(1)), nil },
	}}
	require.True(t, IsERC20(context.Background(), full, common.Address{}, 100))

	partial := &fakeReader{responses: map[string]func(*big.Int) ([]byte, error){
		selector(t, "balanceOf"): func(*big.Int) ([]byte, error) { return packOutput(t, "balanceOf", big.NewInt(0)), nil },
	}}
	require.False(t, IsERC20(context.Background(), partial, common.Address{}, 100))
}
