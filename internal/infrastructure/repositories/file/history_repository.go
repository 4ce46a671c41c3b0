package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"peerchat/internal/core/domain"
	"peerchat/internal/core/ports"

	"go.uber.org/zap"
)

type historyTable struct {
	SchemaVersion int                  `json:"schemaVersion"`
	Messages      []domain.ChatMessage `json:"messages"`
}

// HistoryRepository stores one append-only log file per peer. Read-modify-
// write cycles are serialized per peer id.
type HistoryRepository struct {
	dir    string
	logger *zap.SugaredLogger

	mu    sync.Mutex
	locks map[domain.UserID]*sync.Mutex
}

func NewHistoryRepository(dir string, logger *zap.SugaredLogger) (ports.HistoryRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &HistoryRepository{
		dir:    dir,
		logger: logger,
		locks:  make(map[domain.UserID]*sync.Mutex),
	}, nil
}

// peerLock returns the mutex guarding one peer's log.
func (r *HistoryRepository) peerLock(peerID domain.UserID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[peerID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[peerID] = lock
	}
	return lock
}

// Peer IDs are alphanumeric, so they embed directly into file names.
func (r *HistoryRepository) path(peerID domain.UserID) string {
	return filepath.Join(r.dir, fmt.Sprintf("history_%s.json", peerID))
}

func (r *HistoryRepository) Append(ctx context.Context, peerID domain.UserID, message domain.ChatMessage) error {
	lock := r.peerLock(peerID)
	lock.Lock()
	defer lock.Unlock()

	table, err := r.loadTable(peerID)
	if err != nil {
		return err
	}
	table.Messages = append(table.Messages, message)
	return writeTable(r.path(peerID), table)
}

func (r *HistoryRepository) Load(ctx context.Context, peerID domain.UserID) ([]domain.ChatMessage, error) {
	lock := r.peerLock(peerID)
	lock.Lock()
	defer lock.Unlock()

	table, err := r.loadTable(peerID)
	if err != nil {
		return nil, err
	}
	return table.Messages, nil
}

func (r *HistoryRepository) Clear(ctx context.Context, peerID domain.UserID) error {
	lock := r.peerLock(peerID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(r.path(peerID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// loadTable reads one peer's log. A corrupt log file is cleared and replaced
// with a fresh table so new messages can still be appended.
func (r *HistoryRepository) loadTable(peerID domain.UserID) (*historyTable, error) {
	path := r.path(peerID)
	table := &historyTable{SchemaVersion: schemaVersion, Messages: []domain.ChatMessage{}}
	if err := readTable(path, table); err != nil {
		if os.IsNotExist(err) {
			return table, nil
		}
		r.logger.Warnw("history table unreadable, clearing", "peer_id", peerID, "path", path, "error", err)
		if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
			r.logger.Warnw("failed to clear corrupt history table", "error", removeErr)
		}
		return &historyTable{SchemaVersion: schemaVersion, Messages: []domain.ChatMessage{}}, nil
	}
	if table.Messages == nil {
		table.Messages = []domain.ChatMessage{}
	}
	return table, nil
}
