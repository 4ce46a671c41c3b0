package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"peerchat/internal/core/domain"
	"peerchat/internal/core/ports"

	"go.uber.org/zap"
)

const peersFileName = "peers.json"

type peerTable struct {
	SchemaVersion int                                    `json:"schemaVersion"`
	Peers         map[domain.UserID]*domain.PeerIdentity `json:"peers"`
}

// PeerRepository stores all known peer identities in one peers.json table.
type PeerRepository struct {
	path   string
	logger *zap.SugaredLogger
	mu     sync.Mutex
}

func NewPeerRepository(dir string, logger *zap.SugaredLogger) (ports.PeerRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &PeerRepository{
		path:   filepath.Join(dir, peersFileName),
		logger: logger,
	}, nil
}

func (r *PeerRepository) Save(ctx context.Context, identity *domain.PeerIdentity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	table, err := r.loadTable()
	if err != nil {
		return err
	}
	copied := *identity
	table.Peers[identity.PeerID] = &copied
	return writeTable(r.path, table)
}

func (r *PeerRepository) GetByID(ctx context.Context, id domain.UserID) (*domain.PeerIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	table, err := r.loadTable()
	if err != nil {
		return nil, err
	}
	identity, ok := table.Peers[id]
	if !ok {
		return nil, domain.ErrPeerNotFound
	}
	copied := *identity
	return &copied, nil
}

func (r *PeerRepository) List(ctx context.Context) ([]*domain.PeerIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	table, err := r.loadTable()
	if err != nil {
		return nil, err
	}

	out := make([]*domain.PeerIdentity, 0, len(table.Peers))
	for _, identity := range table.Peers {
		copied := *identity
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeerID < out[j].PeerID })
	return out, nil
}

// loadTable reads peers.json. Corrupt data is cleared and replaced with a
// fresh table so later saves are not wedged by one broken file.
func (r *PeerRepository) loadTable() (*peerTable, error) {
	table := &peerTable{SchemaVersion: schemaVersion, Peers: make(map[domain.UserID]*domain.PeerIdentity)}
	if err := readTable(r.path, table); err != nil {
		if os.IsNotExist(err) {
			return table, nil
		}
		r.logger.Warnw("peer table unreadable, clearing", "path", r.path, "error", err)
		if removeErr := os.Remove(r.path); removeErr != nil && !os.IsNotExist(removeErr) {
			r.logger.Warnw("failed to clear corrupt peer table", "error", removeErr)
		}
		return &peerTable{SchemaVersion: schemaVersion, Peers: make(map[domain.UserID]*domain.PeerIdentity)}, nil
	}
	if table.Peers == nil {
		table.Peers = make(map[domain.UserID]*domain.PeerIdentity)
	}
	return table, nil
}
