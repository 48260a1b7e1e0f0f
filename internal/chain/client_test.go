package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"
)

func TestClientDoMapsRequestTimeout(t *testing.T) {
	c := &Client{opts: ClientOptions{RequestTimeout: 10 * time.Millisecond}}

	err := c.do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, ErrRequestTimeout) {
		t.Fatalf("expected request timeout, got %v", err)
	}
}

func TestClientDoKeepsParentCancellation(t *testing.T) {
	c := &Client{opts: ClientOptions{RequestTimeout: time.Second}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.do(ctx, func(ctx context.Context) error {
		return ctx.Err()
	})
	if errors.Is(err, ErrRequestTimeout) {
		t.Fatalf("parent cancellation must not be reported as timeout")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestAsBigIntCopies(t *testing.T) {
	src := big.NewInt(7)
	got, err := AsBigInt(src)
	if err != nil {
		t.Fatalf("AsBigInt: %v", err)
	}
	got.SetInt64(9)
	if src.Int64() != 7 {
		t.Fatalf("AsBigInt must not alias its input")
	}
	if _, err := AsBigInt("nope"); err == nil {
		t.Fatalf("expected error for string input")
	}
}

func TestAsUint8(t *testing.T) {
	if v, err := AsUint8(uint8(18)); err != nil || v != 18 {
		t.Fatalf("unexpected result %d %v", v, err)
	}
	if _, err := AsUint8(big.NewInt(300)); err == nil {
		t.Fatalf("expected overflow error")
	}
}
