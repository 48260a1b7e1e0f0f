package storage

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// csvAppender appends rows to a CSV file, writing the header only when the
// file is new or empty so reruns keep appending to the same table.
type csvAppender struct {
	path   string
	header []string
	mu     sync.Mutex
}

func newCSVAppender(path string, header []string) *csvAppender {
	return &csvAppender{path: path, header: header}
}

func (a *csvAppender) append(rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	dir := filepath.Dir(a.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	file, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat output file: %w", err)
	}

	buf := bufio.NewWriter(file)
	writer := csv.NewWriter(buf)
	if stat.Size() == 0 {
		if err := writer.Write(a.header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// readCSV loads a CSV file and indexes its header. Required columns must be present.
func readCSV(path string, required []string) ([][]string, map[string]int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(bufio.NewReader(file))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%s: missing header", path)
	}

	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		index[name] = i
	}
	for _, name := range required {
		if _, ok := index[name]; !ok {
			return nil, nil, fmt.Errorf("%s: missing column %q", path, name)
		}
	}
	return records[1:], index, nil
}
