package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	// ErrResultTooLarge is returned when a log query would exceed the provider's result cap.
	ErrResultTooLarge = errors.New("log query result too large")
	// ErrRequestTimeout is returned when a single RPC request exceeds its timeout.
	ErrRequestTimeout = errors.New("rpc request timeout")
	// ErrEmptyResult is returned when an eth_call yields no data, typically
	// because no contract code exists at the address for that block.
	ErrEmptyResult = errors.New("empty call result")
)

// limitExceededCode is the JSON-RPC error code providers use for oversized log queries.
const limitExceededCode = -32005

// DecodeError reports a log that could not be parsed against the expected event shape.
type DecodeError struct {
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
	Err         error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode log %s#%d at block %d: %v", e.TxHash.Hex(), e.LogIndex, e.BlockNumber, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ErrorClass tells a caller how to react to an RPC failure.
type ErrorClass int

const (
	ClassNone ErrorClass = iota
	ClassFatal
	ClassTooLarge
	ClassDecode
	ClassTimeout
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassTooLarge:
		return "too_large"
	case ClassDecode:
		return "decode"
	case ClassTimeout:
		return "timeout"
	default:
		return "fatal"
	}
}

// Transient reports whether the failure may succeed with a narrower query.
func (c ErrorClass) Transient() bool {
	return c == ClassTooLarge || c == ClassDecode || c == ClassTimeout
}

// DefaultTooLargeMarkers are provider messages that signal an oversized log query.
func DefaultTooLargeMarkers() []string {
	return []string{
		"query returned more than",
		"too many results",
		"response size exceeded",
		"log response size exceeded",
		"block range is too wide",
		"exceed maximum block range",
	}
}

// Classifier maps RPC errors onto error classes. Provider error text is not a
// stable contract, so the oversized-result markers are configurable.
type Classifier struct {
	markers []string
}

// NewClassifier builds a classifier. An empty marker list uses DefaultTooLargeMarkers.
func NewClassifier(markers []string) *Classifier {
	if len(markers) == 0 {
		markers = DefaultTooLargeMarkers()
	}
	normalized := make([]string, 0, len(markers))
	for _, marker := range markers {
		marker = strings.ToLower(strings.TrimSpace(marker))
		if marker == "" {
			continue
		}
		normalized = append(normalized, marker)
	}
	return &Classifier{markers: normalized}
}

// Classify returns the class of err.
func (c *Classifier) Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}

	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return ClassDecode
	}
	if errors.Is(err, ErrResultTooLarge) {
		return ClassTooLarge
	}
	if errors.Is(err, ErrRequestTimeout) {
		return ClassTimeout
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == limitExceededCode {
		return ClassTooLarge
	}

	if c != nil {
		msg := strings.ToLower(err.Error())
		for _, marker := range c.markers {
			if strings.Contains(msg, marker) {
				return ClassTooLarge
			}
		}
	}
	return ClassFatal
}
