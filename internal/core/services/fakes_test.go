package services

import (
	"context"
	"sync"

	"peerchat/internal/core/domain"
	"peerchat/internal/core/ports"

	"github.com/pion/webrtc/v3"
)

type memProfileRepo struct {
	mu      sync.Mutex
	profile *domain.UserProfile
	saveErr error
}

func (r *memProfileRepo) Save(ctx context.Context, profile *domain.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	copied := *profile
	r.profile = &copied
	return nil
}

func (r *memProfileRepo) Load(ctx context.Context) (*domain.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.profile == nil {
		return nil, domain.ErrProfileNotFound
	}
	copied := *r.profile
	return &copied, nil
}

func (r *memProfileRepo) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profile = nil
	return nil
}

type memPeerRepo struct {
	mu    sync.Mutex
	peers map[domain.UserID]*domain.PeerIdentity
}

func newMemPeerRepo() *memPeerRepo {
	return &memPeerRepo{peers: make(map[domain.UserID]*domain.PeerIdentity)}
}

func (r *memPeerRepo) Save(ctx context.Context, identity *domain.PeerIdentity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *identity
	r.peers[identity.PeerID] = &copied
	return nil
}

func (r *memPeerRepo) GetByID(ctx context.Context, id domain.UserID) (*domain.PeerIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.peers[id]
	if !ok {
		return nil, domain.ErrPeerNotFound
	}
	copied := *identity
	return &copied, nil
}

func (r *memPeerRepo) List(ctx context.Context) ([]*domain.PeerIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.PeerIdentity
	for _, identity := range r.peers {
		copied := *identity
		out = append(out, &copied)
	}
	return out, nil
}

type memHistoryRepo struct {
	mu        sync.Mutex
	logs      map[domain.UserID][]domain.ChatMessage
	appendErr error
}

func newMemHistoryRepo() *memHistoryRepo {
	return &memHistoryRepo{logs: make(map[domain.UserID][]domain.ChatMessage)}
}

func (r *memHistoryRepo) Append(ctx context.Context, peerID domain.UserID, message domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return r.appendErr
	}
	r.logs[peerID] = append(r.logs[peerID], message)
	return nil
}

func (r *memHistoryRepo) Load(ctx context.Context, peerID domain.UserID) ([]domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ChatMessage, len(r.logs[peerID]))
	copy(out, r.logs[peerID])
	return out, nil
}

func (r *memHistoryRepo) Clear(ctx context.Context, peerID domain.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.logs, peerID)
	return nil
}

// fakeTransport records transport calls and lets tests fire callbacks as if
// they came from the network. Callbacks are never invoked from within the
// transport methods themselves.
type fakeTransport struct {
	mu        sync.Mutex
	callbacks ports.TransportCallbacks

	offerStarted  bool
	answerStarted bool
	remoteOffer   webrtc.SessionDescription
	appliedAnswer *webrtc.SessionDescription
	sent          [][]byte
	closed        bool

	startOfferErr  error
	startAnswerErr error
	sendErr        error
}

func (t *fakeTransport) StartOffer(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.startOfferErr != nil {
		return t.startOfferErr
	}
	t.offerStarted = true
	return nil
}

func (t *fakeTransport) StartAnswer(ctx context.Context, offer webrtc.SessionDescription) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.startAnswerErr != nil {
		return t.startAnswerErr
	}
	t.answerStarted = true
	t.remoteOffer = offer
	return nil
}

func (t *fakeTransport) ApplyAnswer(ctx context.Context, answer webrtc.SessionDescription) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.appliedAnswer = &answer
	return nil
}

func (t *fakeTransport) AddRemoteCandidate(candidate webrtc.ICECandidateInit) error {
	return nil
}

func (t *fakeTransport) Send(payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sendErr != nil {
		return t.sendErr
	}
	copied := make([]byte, len(payload))
	copy(copied, payload)
	t.sent = append(t.sent, copied)
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) sentPayloads() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.sent))
	copy(out, t.sent)
	return out
}

type fakeFactory struct {
	mu         sync.Mutex
	transports []*fakeTransport
	newErr     error
}

func (f *fakeFactory) NewPeerTransport(callbacks ports.TransportCallbacks) (ports.PeerTransport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.newErr != nil {
		return nil, f.newErr
	}
	transport := &fakeTransport{callbacks: callbacks}
	f.transports = append(f.transports, transport)
	return transport, nil
}

func (f *fakeFactory) last() *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.transports) == 0 {
		return nil
	}
	return f.transports[len(f.transports)-1]
}

type nopMetrics struct{}

func (nopMetrics) SessionStarted(role domain.SessionRole)            {}
func (nopMetrics) SessionConnected()                                 {}
func (nopMetrics) SessionClosed()                                    {}
func (nopMetrics) MessageSent(bytes int)                             {}
func (nopMetrics) MessageReceived(bytes int)                         {}
func (nopMetrics) MediaTransferred(kind domain.MediaKind, bytes int) {}
