package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MemoEntry is the remembered scan state of one token.
type MemoEntry struct {
	ChunkSize uint64 `json:"chunk_size"`
	NextFrom  uint64 `json:"next_from"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Memo keeps per-token chunk sizes and resume points across invocations.
// Entries are keyed by token and never shared between tokens.
type Memo interface {
	Load(ctx context.Context, token common.Address) (MemoEntry, bool, error)
	Save(ctx context.Context, token common.Address, entry MemoEntry) error
}

// EntryFor snapshots a cursor into a memo entry.
func EntryFor(cursor *Cursor) MemoEntry {
	return MemoEntry{
		ChunkSize: cursor.ChunkSize(),
		NextFrom:  cursor.FromBlock(),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func memoKey(token common.Address) string {
	return strings.ToLower(token.Hex())
}

// MemoryMemo is an in-process memo.
type MemoryMemo struct {
	mu   sync.RWMutex
	data map[string]MemoEntry
}

func NewMemoryMemo() *MemoryMemo {
	return &MemoryMemo{data: make(map[string]MemoEntry)}
}

func (m *MemoryMemo) Load(_ context.Context, token common.Address) (MemoEntry, bool, error) {
	m.mu.RLock()
	entry, ok := m.data[memoKey(token)]
	m.mu.RUnlock()
	return entry, ok, nil
}

func (m *MemoryMemo) Save(_ context.Context, token common.Address, entry MemoEntry) error {
	m.mu.Lock()
	m.data[memoKey(token)] = entry
	m.mu.Unlock()
	return nil
}

// FileMemo stores all entries in one JSON file, rewritten atomically on save.
type FileMemo struct {
	path string

	mu     sync.Mutex
	loaded bool
	data   map[string]MemoEntry
}

func NewFileMemo(path string) *FileMemo {
	return &FileMemo{path: path}
}

func (m *FileMemo) Load(_ context.Context, token common.Address) (MemoEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureLoaded(); err != nil {
		return MemoEntry{}, false, err
	}
	entry, ok := m.data[memoKey(token)]
	return entry, ok, nil
}

func (m *FileMemo) Save(_ context.Context, token common.Address, entry MemoEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureLoaded(); err != nil {
		return err
	}
	m.data[memoKey(token)] = entry

	dir := filepath.Dir(m.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create memo dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(m.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal memo: %w", err)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write memo tmp: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("rename memo: %w", err)
	}
	return nil
}

func (m *FileMemo) ensureLoaded() error {
	if m.loaded {
		return nil
	}
	m.data = make(map[string]MemoEntry)
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			m.loaded = true
			return nil
		}
		return fmt.Errorf("read memo: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &m.data); err != nil {
			return fmt.Errorf("parse memo: %w", err)
		}
	}
	m.loaded = true
	return nil
}
