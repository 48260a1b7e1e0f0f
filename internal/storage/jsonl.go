package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"transferScope/internal/model"
)

type transferRecord struct {
	Address         string `json:"address"`
	From            string `json:"from"`
	To              string `json:"to"`
	Quantity        string `json:"quantity"`
	BlockNumber     uint64 `json:"blockNumber"`
	TransactionHash string `json:"transactionHash"`
	LogIndex        uint   `json:"logIndex"`
}

// JsonlTransferSink writes transfer events to a JSONL file.
type JsonlTransferSink struct {
	path string
	mu   sync.Mutex
}

func NewJsonlTransferSink(path string) *JsonlTransferSink {
	return &JsonlTransferSink{path: path}
}

// PutTransferBatch appends a batch of transfers as JSON lines.
func (s *JsonlTransferSink) PutTransferBatch(events []model.TransferEvent) error {
	if len(events) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, event := range events {
		quantity := "0"
		if event.Quantity != nil {
			quantity = event.Quantity.String()
		}
		line, err := json.Marshal(transferRecord{
			Address:         event.Token.Hex(),
			From:            event.From.Hex(),
			To:              event.To.Hex(),
			Quantity:        quantity,
			BlockNumber:     event.BlockNumber,
			TransactionHash: event.TxHash.Hex(),
			LogIndex:        event.LogIndex,
		})
		if err != nil {
			return fmt.Errorf("marshal transfer: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write transfer: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}
